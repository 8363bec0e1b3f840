// Package stream consumes dataset events from a Redis Stream.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/document"
	"github.com/gavram/ckan-search/internal/logger"
	"github.com/gavram/ckan-search/internal/notify"
	"github.com/gavram/ckan-search/internal/service"
)

// EventHandler applies one decoded dataset event.
type EventHandler interface {
	Handle(ctx context.Context, ev *notify.Event) error
}

type Config struct {
	RedisURL     string
	StreamKey    string
	GroupName    string
	ConsumerName string
	BatchSize    int64
	BlockTimeout time.Duration
}

// Consumer reads a stream through a consumer group. Entries are
// acknowledged only after they were applied.
type Consumer struct {
	client  *redis.Client
	config  Config
	handler EventHandler
	logger  *zap.Logger
}

func NewConsumer(cfg Config, h EventHandler, log *zap.Logger) (*Consumer, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("stream: parse redis url: %w", err)
	}
	return &Consumer{
		client:  redis.NewClient(opts),
		config:  cfg,
		handler: h,
		logger:  logger.OrNop(log).Named("stream"),
	}, nil
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()

	if err := c.ensureGroup(ctx); err != nil {
		return err
	}
	c.logger.Info("consumer started",
		zap.String("stream", c.config.StreamKey),
		zap.String("group", c.config.GroupName),
		zap.String("consumer", c.config.ConsumerName),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping")
			return nil
		default:
		}
		if err := c.readAndProcess(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("read stream", zap.Error(err))
			if !pause(ctx, time.Second) {
				return nil
			}
		}
	}
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.config.StreamKey, c.config.GroupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("stream: create group %s: %w", c.config.GroupName, err)
	}
	return nil
}

func (c *Consumer) readAndProcess(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.config.GroupName,
		Consumer: c.config.ConsumerName,
		Streams:  []string{c.config.StreamKey, ">"},
		Count:    c.config.BatchSize,
		Block:    c.config.BlockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, s := range streams {
		for _, msg := range s.Messages {
			if !c.process(ctx, msg) {
				continue
			}
			if err := c.client.XAck(ctx, c.config.StreamKey, c.config.GroupName, msg.ID).Err(); err != nil {
				c.logger.Error("ack failed", zap.String("message_id", msg.ID), zap.Error(err))
			}
		}
	}
	return nil
}

// process applies one entry and reports whether it may be acknowledged.
// Malformed entries are acknowledged so they are not redelivered forever.
func (c *Consumer) process(ctx context.Context, msg redis.XMessage) bool {
	ev, err := parseEvent(msg)
	if err != nil {
		c.logger.Warn("dropping malformed entry", zap.String("message_id", msg.ID), zap.Error(err))
		return true
	}
	if err := c.handler.Handle(ctx, ev); err != nil {
		if isMalformed(err) {
			c.logger.Warn("dropping malformed event",
				zap.String("message_id", msg.ID),
				zap.String("event_id", ev.EventID),
				zap.String("operation", ev.Operation),
				zap.Error(err),
			)
			return true
		}
		c.logger.Error("handle event",
			zap.String("message_id", msg.ID),
			zap.String("event_id", ev.EventID),
			zap.String("operation", ev.Operation),
			zap.Error(err),
		)
		return false
	}
	return true
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

// isMalformed reports errors that redelivery cannot fix.
func isMalformed(err error) bool {
	return errors.Is(err, notify.ErrUnknownOperation) || errors.Is(err, document.ErrMissingID)
}

func parseEvent(msg redis.XMessage) (*notify.Event, error) {
	ev := &notify.Event{EntityType: service.PackageType}
	if v, ok := msg.Values["event_id"].(string); ok {
		ev.EventID = v
	}
	if v, ok := msg.Values["operation"].(string); ok {
		ev.Operation = v
	}
	if v, ok := msg.Values["entity_type"].(string); ok && v != "" {
		ev.EntityType = v
	}
	raw, ok := msg.Values["entity"].(string)
	if !ok {
		return nil, errors.New("entity field missing")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&ev.Entity); err != nil {
		return nil, fmt.Errorf("decode entity: %w", err)
	}
	return ev, nil
}
