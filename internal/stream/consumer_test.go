package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/document"
	"github.com/gavram/ckan-search/internal/notify"
	"github.com/gavram/ckan-search/internal/service"
)

type handlerFunc func(ctx context.Context, ev *notify.Event) error

func (f handlerFunc) Handle(ctx context.Context, ev *notify.Event) error { return f(ctx, ev) }

func TestParseEvent(t *testing.T) {
	ev, err := parseEvent(redis.XMessage{
		ID: "1-0",
		Values: map[string]interface{}{
			"event_id":    "e1",
			"operation":   "new",
			"entity_type": "package",
			"entity":      `{"id":7,"title":"Roads"}`,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "e1", ev.EventID)
	assert.Equal(t, "new", ev.Operation)
	assert.Equal(t, "package", ev.EntityType)
	assert.Equal(t, json.Number("7"), ev.Entity["id"])
}

func TestParseEvent_DefaultsEntityType(t *testing.T) {
	ev, err := parseEvent(redis.XMessage{Values: map[string]interface{}{
		"operation": "deleted",
		"entity":    `{"id":"x"}`,
	}})
	require.NoError(t, err)
	assert.Equal(t, "package", ev.EntityType)
}

func TestParseEvent_Malformed(t *testing.T) {
	_, err := parseEvent(redis.XMessage{Values: map[string]interface{}{"operation": "new"}})
	assert.Error(t, err)

	_, err = parseEvent(redis.XMessage{Values: map[string]interface{}{"operation": "new", "entity": "{"}})
	assert.Error(t, err)
}

func TestProcess_AckDecision(t *testing.T) {
	var failing bool
	c := &Consumer{
		logger: zap.NewNop(),
		handler: handlerFunc(func(context.Context, *notify.Event) error {
			if failing {
				return errors.New("engine down")
			}
			return nil
		}),
	}
	good := redis.XMessage{ID: "1-0", Values: map[string]interface{}{"operation": "new", "entity": `{"id":"a"}`}}

	assert.True(t, c.process(context.Background(), good))

	failing = true
	assert.False(t, c.process(context.Background(), good), "failed events stay pending")

	bad := redis.XMessage{ID: "2-0", Values: map[string]interface{}{"operation": "new"}}
	assert.True(t, c.process(context.Background(), bad), "malformed entries are acknowledged")
}

func TestNewConsumer_BadURL(t *testing.T) {
	_, err := NewConsumer(Config{RedisURL: "not-a-url"}, nil, nil)
	assert.Error(t, err)
}

func TestProcess_AcksEventsRejectedByNotifier(t *testing.T) {
	registry := service.NewRegistry(service.NewNoopIndex(nil), zap.NewNop())
	c := &Consumer{
		logger:  zap.NewNop(),
		handler: notify.NewNotifier(registry, zap.NewNop()),
	}

	unknownOp := redis.XMessage{ID: "3-0", Values: map[string]interface{}{
		"operation": "purged",
		"entity":    `{"id":"x"}`,
	}}
	assert.True(t, c.process(context.Background(), unknownOp), "unknown operation is acknowledged")

	missingID := redis.XMessage{ID: "4-0", Values: map[string]interface{}{
		"operation": "new",
		"entity":    `{"title":"no id"}`,
	}}
	assert.True(t, c.process(context.Background(), missingID), "entity without id is acknowledged")
}

func TestIsMalformed(t *testing.T) {
	assert.True(t, isMalformed(fmt.Errorf("wrapped: %w", notify.ErrUnknownOperation)))
	assert.True(t, isMalformed(&service.IndexError{Op: "insert", Err: document.ErrMissingID}))
	assert.False(t, isMalformed(errors.New("engine down")))
}

func TestPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, pause(ctx, time.Minute))
	assert.True(t, pause(context.Background(), time.Millisecond))
}
