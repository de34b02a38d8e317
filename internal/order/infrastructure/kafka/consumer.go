package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Ticket-Allocation-System/internal/order/domain"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/tracing"
)

const (
	ActionBook   = "book"
	ActionCancel = "cancel"
)

// Command is the payload of the order command topic.
type Command struct {
	OrderID int64  `json:"order_id"`
	Action  string `json:"action"`
}

type Orders interface {
	Book(ctx context.Context, id int64) (domain.BookResult, error)
	Cancel(ctx context.Context, id int64) (domain.CancelResult, error)
}

type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
}

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	log     *slog.Logger
	reader  MessageReader
	orders  Orders
	idem    Deduper
	tracer  trace.Tracer
	backoff time.Duration
}

const maxBackoff = 5 * time.Second

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, orders Orders, idem Deduper) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return NewConsumerWithReader(log, r, orders, idem)
}

func NewConsumerWithReader(log *slog.Logger, r MessageReader, orders Orders, idem Deduper) *Consumer {
	return &Consumer{
		log:     log,
		reader:  r,
		orders:  orders,
		idem:    idem,
		tracer:  otel.Tracer("order-consumer"),
		backoff: 100 * time.Millisecond,
	}
}

// Run consumes until ctx is cancelled. Every fetched message is committed,
// including ones that fail, so a poison command cannot stall the partition.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.seen(ctx, key)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if seen {
			c.log.Info("duplicate command skipped", "key", key)
		} else {
			c.handle(ctx, msg)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

// seen retries the idempotency check on the same message until it answers.
// Offsets commit cumulatively, so moving past an unchecked message would
// drop it for good.
func (c *Consumer) seen(ctx context.Context, key string) (bool, error) {
	wait := c.backoff
	for {
		seen, err := c.idem.Seen(ctx, key)
		if err == nil {
			return seen, nil
		}
		c.log.Error("idempotency check failed", "key", key, "retry_in", wait, "err", err)
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, maxBackoff)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderCommand")
	defer span.End()

	var cmd Command
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		c.log.Error("unmarshal failed", "offset", msg.Offset, "err", err)
		return
	}
	span.SetAttributes(attribute.Int64("order_id", cmd.OrderID), attribute.String("action", cmd.Action))

	if err := c.apply(msgCtx, cmd); err != nil {
		span.RecordError(err)
		c.log.Error("order command failed", "order_id", cmd.OrderID, "action", cmd.Action, "err", err)
	}
}

func (c *Consumer) apply(ctx context.Context, cmd Command) error {
	switch cmd.Action {
	case ActionBook:
		res, err := c.orders.Book(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		c.log.Info("book command processed", "order_id", cmd.OrderID, "outcome", res.Outcome)
	case ActionCancel:
		res, err := c.orders.Cancel(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		c.log.Info("cancel command processed", "order_id", cmd.OrderID, "outcome", res.Outcome, "retry_after", res.RetryAfter)
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
	return nil
}
