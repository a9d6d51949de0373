// Package consumer reads step submissions from Kafka and applies them through the ingestion
// normalizer.
package consumer

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// maxFetchBackoff bounds the pause between failed fetches while the broker is unreachable.
const maxFetchBackoff = 30 * time.Second

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded representation of a submission record. SchemaID is zero for
// payloads published without Schema Registry framing.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Key       string
	SchemaID  int
	Payload   json.RawMessage
}

type rejectedError struct{ err error }

func (e *rejectedError) Error() string { return e.err.Error() }
func (e *rejectedError) Unwrap() error { return e.err }

// Reject marks a handler error as permanent: the message is committed and counted instead
// of retried.
func Reject(err error) error {
	if err == nil {
		return nil
	}
	return &rejectedError{err: err}
}

// IsRejected reports whether err was produced by Reject.
func IsRejected(err error) bool {
	var rejected *rejectedError
	return errors.As(err, &rejected)
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRetry sets how many times a failing handler is invoked for one message and the base
// delay between attempts.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(p *Processor) {
		if attempts > 0 {
			p.attempts = attempts
		}
		if baseDelay > 0 {
			p.baseDelay = baseDelay
		}
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader    Reader
	handler   Handler
	logger    *slog.Logger
	attempts  int
	baseDelay time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:    reader,
		handler:   handler,
		logger:    slog.Default().With("component", "consumer"),
		attempts:  5,
		baseDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes Kafka messages until the context is cancelled. A message whose handler keeps
// failing is left uncommitted and Run returns, so a restarted consumer resumes from it.
func (p *Processor) Run(ctx context.Context) error {
	fetchFailures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			fetchFailures++
			delay := p.fetchBackoff(fetchFailures)
			p.logger.Error("fetch error", "attempt", fetchFailures, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		fetchFailures = 0

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Warn("decode error", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", decodeErr)
			recordDecodeError(msg.Topic)
			// Commit malformed messages to avoid poison-pill loops.
			p.commit(ctx, msg)
			continue
		}

		if handleErr := p.handle(ctx, event); handleErr != nil {
			if IsRejected(handleErr) {
				p.logger.Warn("submission rejected", "topic", event.Topic, "offset", event.Offset, "key", event.Key, "error", handleErr)
				recordRejected(event)
				p.commit(ctx, msg)
				continue
			}
			recordHandlerError(event)
			return fmt.Errorf("handle %s/%d@%d: %w", event.Topic, event.Partition, event.Offset, handleErr)
		}

		if p.commit(ctx, msg) {
			recordProcessed(event)
		}
	}
}

func (p *Processor) handle(ctx context.Context, event Message) error {
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		err = p.handler.Handle(ctx, event)
		if err == nil || IsRejected(err) {
			return err
		}
		if attempt == p.attempts {
			break
		}

		delay := p.baseDelay << (attempt - 1)
		p.logger.Warn("handler error, retrying", "offset", event.Offset, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// fetchBackoff doubles from baseDelay per consecutive fetch failure, capped at maxFetchBackoff.
func (p *Processor) fetchBackoff(failures int) time.Duration {
	delay := p.baseDelay
	for i := 1; i < failures && delay < maxFetchBackoff; i++ {
		delay *= 2
	}
	return min(delay, maxFetchBackoff)
}

func (p *Processor) commit(ctx context.Context, msg kafka.Message) bool {
	if err := p.reader.CommitMessages(ctx, msg); err != nil {
		p.logger.Error("commit error", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return false
	}
	return true
}

// decodeMessage accepts either a bare JSON payload or a Confluent-framed one (magic byte 0
// followed by a big-endian schema id).
func decodeMessage(msg kafka.Message) (Message, error) {
	value := msg.Value
	schemaID := 0

	if len(value) > 0 && value[0] == 0 {
		if len(value) < 5 {
			return Message{}, fmt.Errorf("invalid payload length: %d", len(value))
		}
		schemaID = int(binary.BigEndian.Uint32(value[1:5]))
		value = value[5:]
	}

	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return Message{}, errors.New("empty payload")
	}
	if !json.Valid(trimmed) {
		return Message{}, errors.New("payload is not valid JSON")
	}

	return Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Key:       string(msg.Key),
		SchemaID:  schemaID,
		Payload:   json.RawMessage(append([]byte(nil), trimmed...)),
	}, nil
}
