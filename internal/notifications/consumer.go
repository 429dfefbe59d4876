package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/warehouse-flow/pkg/enums"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
	"github.com/angelmondragon/warehouse-flow/pkg/outbox"
	"github.com/google/uuid"
)

const (
	QCFailedAlertsConsumer = "qc-failed-alerts"
	LowStockAlertsConsumer = "low-stock-alerts"
)

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Receiver is satisfied by *pubsub.Subscriber.
type Receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Consumer turns one warehouse event type into email alerts. Each event id is
// handled at most once per consumer name.
type Consumer struct {
	name        string
	eventType   enums.OutboxEventType
	build       alertBuilder
	mailer      Mailer
	idempotency idempotencyChecker
	logg        *logger.Logger
}

// NewQCFailedConsumer alerts on qc_result_recorded events with status FAILED.
func NewQCFailedConsumer(mailer Mailer, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	return newConsumer(QCFailedAlertsConsumer, enums.EventQCResultRecorded, qcFailedAlert, mailer, manager, logg)
}

// NewLowStockConsumer alerts on stock_low events.
func NewLowStockConsumer(mailer Mailer, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	return newConsumer(LowStockAlertsConsumer, enums.EventStockLow, lowStockAlert, mailer, manager, logg)
}

func newConsumer(name string, eventType enums.OutboxEventType, build alertBuilder, mailer Mailer, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if mailer == nil {
		return nil, errors.New("mailer required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Consumer{
		name:        name,
		eventType:   eventType,
		build:       build,
		mailer:      mailer,
		idempotency: manager,
		logg:        logg,
	}, nil
}

func (c *Consumer) Name() string { return c.name }

// Run receives from the subscription until ctx is canceled.
func (c *Consumer) Run(ctx context.Context, subscription Receiver) error {
	if subscription == nil {
		return fmt.Errorf("%s: subscription required", c.name)
	}
	return subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked. Undecodable messages
// are acked so they do not loop; delivery failures are nacked for redelivery.
func (c *Consumer) process(ctx context.Context, messageID string, attributes map[string]string, data []byte) bool {
	eventType := attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"consumer":   c.name,
		"message_id": messageID,
		"event_type": eventType,
	})

	if eventType != string(c.eventType) {
		c.logg.Debug(logCtx, "skipping unrelated event")
		return true
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return true
	}
	logCtx = c.logg.WithField(logCtx, "event_id", envelope.EventID)

	alert, err := c.build(envelope)
	if err != nil {
		c.logg.Error(logCtx, "failed to build alert", err)
		return true
	}
	if alert == nil {
		return true
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, c.name, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return true
	}

	if err := c.mailer.Send(ctx, *alert); err != nil {
		c.logg.Error(logCtx, "alert delivery failed", err)
		if delErr := c.idempotency.Delete(ctx, c.name, eventID); delErr != nil {
			c.logg.Error(logCtx, "failed to clear idempotency marker", delErr)
		}
		return false
	}
	c.logg.Info(logCtx, "alert sent")
	return true
}
