package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"papeleria/globals"
	"papeleria/models"

	"github.com/redis/go-redis/v9"
)

// OrderChannel carries order lifecycle events as JSON.
const OrderChannel = "order-events"

const (
	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
)

// Emitter publishes order events to Redis.
type Emitter struct {
	rdb *redis.Client
	now func() time.Time
}

func NewEmitter(rdb *redis.Client) *Emitter {
	return &Emitter{rdb: rdb, now: time.Now}
}

func (e *Emitter) OrderCreated(ctx context.Context, o models.Order) error {
	return e.publish(ctx, event(EventOrderCreated, o, e.now()))
}

func (e *Emitter) OrderUpdated(ctx context.Context, o models.Order) error {
	return e.publish(ctx, event(EventOrderUpdated, o, e.now()))
}

func event(kind string, o models.Order, at time.Time) models.OrderEvent {
	return models.OrderEvent{
		Type:    kind,
		OrderID: o.OrderID,
		UserID:  o.UserID,
		Client:  o.Client,
		Status:  o.Status,
		Total:   o.Total,
		At:      at,
	}
}

func (e *Emitter) publish(ctx context.Context, ev models.OrderEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	if err := e.rdb.Publish(ctx, OrderChannel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Subscribe delivers every order event to handle until ctx is cancelled.
func Subscribe(ctx context.Context, rdb *redis.Client, handle func(models.OrderEvent)) {
	sub := rdb.Subscribe(ctx, OrderChannel)
	defer sub.Close()

	globals.Log.Info().Str("channel", OrderChannel).Msg("listening for order events")
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev models.OrderEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				globals.Log.Warn().Err(err).Msg("bad order event payload")
				continue
			}
			handle(ev)
		}
	}
}
