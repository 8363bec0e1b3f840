package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/logger"
)

// RunConsumer reads dataset events from topics and hands each one to h.
// Messages are committed once handled, whether or not the handler succeeded.
func RunConsumer(ctx context.Context, brokers []string, groupID string, topics []string, h EventHandler, log *zap.Logger) {
	log = logger.OrNop(log).Named("kafka")
	if len(brokers) == 0 || len(topics) == 0 {
		log.Warn("brokers or topics empty, consumer not started")
		return
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})
	defer r.Close()

	log.Info("consumer started", zap.String("group", groupID), zap.Strings("topics", topics))

	for {
		select {
		case <-ctx.Done():
			log.Info("consumer stopping")
			return
		default:
		}

		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("read message", zap.Error(err))
			if !pause(ctx, time.Second) {
				return
			}
			continue
		}

		HandleMessage(ctx, msg, h, log)

		if err := r.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", zap.Error(err), zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset))
		}
	}
}

// pause waits for d and reports false if ctx ended first.
func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
