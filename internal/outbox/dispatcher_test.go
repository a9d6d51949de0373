package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/chrisnesbitt427/steplotto/internal/events"
)

func TestWireFormatRoundTrip(t *testing.T) {
	frame := encodeWireFormat(42, []byte(`{"steps":1}`))
	require.Equal(t, byte(0), frame[0])

	id, payload, err := DecodeWireFormat(frame)
	require.NoError(t, err)
	require.Equal(t, 42, id)
	require.JSONEq(t, `{"steps":1}`, string(payload))

	_, _, err = DecodeWireFormat([]byte(`{"steps":1}`))
	require.Error(t, err)
}

func TestDeliverGroupsByTopicAndCachesSchemaIDs(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 21}
	fixed := time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC)
	d := NewDispatcher(nil, producer, registry, time.Second, 10)
	d.now = func() time.Time { return fixed }

	messages := []Message{
		stepsMessage(1, "alice"),
		stepsMessage(2, "bob"),
		leagueMessage(3, events.TypeLeagueCreated, "Walkers"),
	}

	require.NoError(t, d.deliver(context.Background(), messages))

	require.Len(t, producer.writes, 2)
	require.Equal(t, "steplotto_steps", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 2)
	require.Equal(t, "alice", string(producer.writes[0].messages[0].Key))
	require.Equal(t, fixed, producer.writes[0].messages[0].Time)
	require.Equal(t, "steplotto_leagues", producer.writes[1].topic)

	require.Len(t, registry.calls, 2, "one registry call per subject")

	id, payload, err := DecodeWireFormat(producer.writes[0].messages[0].Value)
	require.NoError(t, err)
	require.Equal(t, 21, id)
	require.JSONEq(t, string(messages[0].Payload), string(payload))

	require.NoError(t, d.deliver(context.Background(), messages[:1]))
	require.Len(t, registry.calls, 2, "cached schema ids are reused across batches")
}

func TestDeliverRejectsUnknownEventType(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{}
	d := NewDispatcher(nil, producer, registry, time.Second, 10)

	msg := stepsMessage(1, "alice")
	msg.EventType = "steps.unknown"

	err := d.deliver(context.Background(), []Message{msg})
	require.ErrorContains(t, err, "no schema metadata for event_type=steps.unknown")
	require.Empty(t, producer.writes)
	require.Empty(t, registry.calls)
}

func TestDeliverPropagatesRegistryFailure(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{err: errors.New("registry down")}
	d := NewDispatcher(nil, producer, registry, time.Second, 10)

	err := d.deliver(context.Background(), []Message{stepsMessage(1, "alice")})
	require.ErrorContains(t, err, "registry down")
	require.Empty(t, producer.writes)
}

func TestEverySchemaIsValidJSON(t *testing.T) {
	for eventType := range events.Routes {
		entry, ok := schemaCatalog[eventType]
		require.Truef(t, ok, "missing schema for %s", eventType)
		require.Truef(t, json.Valid([]byte(entry.Schema)), "invalid schema for %s", eventType)
	}
}

func stepsMessage(id int64, userID string) Message {
	route := events.Routes[events.TypeStepsRecorded]
	payload, _ := json.Marshal(events.StepsRecorded{
		UserID:     userID,
		Date:       "2024-01-10",
		Steps:      8000,
		IngestedAt: time.Date(2024, time.January, 10, 7, 0, 0, 0, time.UTC),
	})
	return Message{
		EventID:       id,
		AggregateType: route.AggregateType,
		AggregateID:   userID + ":2024-01-10",
		EventType:     events.TypeStepsRecorded,
		Topic:         route.Topic,
		SchemaSubject: route.SchemaSubject,
		PartitionKey:  userID,
		Payload:       payload,
	}
}

func leagueMessage(id int64, eventType, leagueID string) Message {
	route := events.Routes[eventType]
	payload, _ := json.Marshal(events.LeagueCreated{LeagueID: leagueID, CreatedBy: "alice"})
	return Message{
		EventID:       id,
		AggregateType: route.AggregateType,
		AggregateID:   leagueID,
		EventType:     eventType,
		Topic:         route.Topic,
		SchemaSubject: route.SchemaSubject,
		PartitionKey:  leagueID,
		Payload:       payload,
	}
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: copied})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	err   error
	calls []schemaCall
}

type schemaCall struct {
	subject string
	schema  string
}

func (s *stubRegistry) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, schemaCall{subject: subject, schema: schema})
	if s.err != nil {
		return 0, s.err
	}
	if s.id == 0 {
		s.id = 1
	}
	return s.id, nil
}
