package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/Ticket-Allocation-System/pkg/tracing"
)

const (
	HeaderEventType     = "event_type"
	HeaderEventID       = "event_id"
	HeaderAggregateType = "aggregate_type"
)

// ErrPermanent marks a dispatch failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent")

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic}
}

// Message builds the kafka message for event. Keying by aggregate keeps the
// events of one order on one partition, in order.
func (d *Dispatcher) Message(event Event) kafka.Message {
	headers := make([]kafka.Header, 0, len(event.Headers)+4)
	for _, k := range slices.Sorted(maps.Keys(event.Headers)) {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(event.Headers[k])})
	}
	headers = append(headers,
		kafka.Header{Key: HeaderEventType, Value: []byte(event.Type)},
		kafka.Header{Key: HeaderEventID, Value: []byte(strconv.FormatInt(event.ID, 10))},
		kafka.Header{Key: HeaderAggregateType, Value: []byte(event.AggregateType)},
	)
	headers = tracing.InjectKafkaHeaders(tracing.WithTraceparent(context.Background(), event.Traceparent), headers)

	return kafka.Message{
		Topic:   d.topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
		Time:    event.CreatedAt,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	if err := d.producer.WriteMessages(ctx, d.Message(event)); err != nil {
		d.log.Error("outbox dispatch failed", "event_id", event.ID, "err", err)
		if permanent(err) {
			return fmt.Errorf("dispatch event %d: %w: %w", event.ID, ErrPermanent, err)
		}
		return fmt.Errorf("dispatch event %d: %w", event.ID, err)
	}
	d.log.Debug("outbox dispatched", "event_id", event.ID, "type", event.Type)
	return nil
}

// permanent reports broker answers that will not change on a retry. Writer
// batches report per message errors through kafka.WriteErrors.
func permanent(err error) bool {
	var werrs kafka.WriteErrors
	if errors.As(err, &werrs) {
		for _, e := range werrs {
			if e != nil && !permanent(e) {
				return false
			}
		}
		return werrs.Count() > 0
	}
	return errors.Is(err, kafka.MessageSizeTooLarge) ||
		errors.Is(err, kafka.InvalidMessage) ||
		errors.Is(err, kafka.TopicAuthorizationFailed) ||
		errors.Is(err, ErrPermanent)
}
