//go:build integration

package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/chrisnesbitt427/steplotto/internal/ingest"
	"github.com/chrisnesbitt427/steplotto/internal/ledger"
	"github.com/chrisnesbitt427/steplotto/internal/persistence/memory"
)

func TestKafkaSubmissionReachesLedger(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkaContainer.RunContainer(ctx, testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	broker := brokers[0]

	topic := "step_submissions"

	conn, err := kafka.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))

	store := memory.NewStore()
	normalizer := ingest.NewNormalizer(ledger.NewService(store), testLogger(t))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{broker},
		GroupID:     "steplotto-integration",
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	consumerCtx, stop := context.WithCancel(ctx)
	defer stop()

	proc := NewProcessor(reader, NewSubmissionHandler(normalizer, testLogger(t)), WithLogger(testLogger(t)))
	go func() {
		_ = proc.Run(consumerCtx)
	}()

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	err = writer.WriteMessages(ctx,
		kafka.Message{Key: []byte("alice"), Value: []byte("garbage")},
		kafka.Message{Key: []byte("alice"), Value: []byte(`{"name":"alice","steps":"abc","date":"2024-01-10"}`)},
		kafka.Message{Key: []byte("alice"), Value: frame(3, []byte(`{"name":"alice","steps":[4000,5000],"date":"2024-01-10"}`))},
	)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := store.CountEntries(ctx, "alice")
		return err == nil && n == 2
	}, 60*time.Second, 500*time.Millisecond)
}
