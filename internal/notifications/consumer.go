package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/davidruizdev/storefront-backend/pkg/enums"
	"github.com/davidruizdev/storefront-backend/pkg/logger"
	"github.com/davidruizdev/storefront-backend/pkg/outbox"
	"github.com/davidruizdev/storefront-backend/pkg/outbox/payloads"
)

const (
	receiptConsumerScope = "order-receipts"
	receiptGuardTTL      = 24 * time.Hour
)

type receiptSender interface {
	SendOrderReceipt(ctx context.Context, orderID uuid.UUID) error
}

type replayGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Consumer watches order events and mails a receipt when an order converges to paid.
type Consumer struct {
	sender       receiptSender
	subscription *pubsub.Subscriber
	guard        replayGuard
	logg         *logger.Logger
}

// NewConsumer builds an order receipt consumer.
func NewConsumer(sender receiptSender, subscription *pubsub.Subscriber, guard replayGuard, logg *logger.Logger) (*Consumer, error) {
	if sender == nil {
		return nil, fmt.Errorf("receipt sender required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("replay guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		sender:       sender,
		subscription: subscription,
		guard:        guard,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventOrderPaid) {
		c.logg.Info(logCtx, "skipping event without receipt")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	guardKey := c.guard.IdempotencyKey(receiptConsumerScope, eventID.String())
	fresh, err := c.guard.SetNX(ctx, guardKey, "processed", receiptGuardTTL)
	if err != nil {
		c.logg.Error(logCtx, "replay guard check failed", err)
		return processResult{nack: true}
	}
	if !fresh {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload payloads.OrderPaidEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.guard.Del(ctx, guardKey)
		return processResult{nack: true}
	}
	if payload.OrderID == uuid.Nil {
		c.logg.Warn(logCtx, "payload missing order id")
		_ = c.guard.Del(ctx, guardKey)
		return processResult{ack: true}
	}

	logCtx = c.logg.WithOrderID(logCtx, payload.OrderID.String())
	if err := c.sender.SendOrderReceipt(ctx, payload.OrderID); err != nil {
		c.logg.Error(logCtx, "receipt delivery failed", err)
		_ = c.guard.Del(ctx, guardKey)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}
