package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/notify"
)

// EventHandler applies one decoded dataset event.
type EventHandler interface {
	Handle(ctx context.Context, ev *notify.Event) error
}

// HandleMessage decodes a dataset event from msg and applies it.
// Malformed events and failed writes are logged and dropped.
func HandleMessage(ctx context.Context, msg kafka.Message, h EventHandler, log *zap.Logger) bool {
	fields := []zap.Field{
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	}

	ev, err := notify.DecodeEvent(msg.Value)
	if err != nil {
		log.Warn("skipping malformed event", append(fields, zap.Error(err))...)
		return false
	}
	fields = append(fields,
		zap.String("event_id", ev.EventID),
		zap.String("operation", ev.Operation),
		zap.String("entity_type", ev.EntityType),
	)

	if err := h.Handle(ctx, ev); err != nil {
		log.Error("handle event", append(fields, zap.Error(err))...)
		return false
	}
	log.Info("event indexed", fields...)
	return true
}
