package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/notify"
)

type handlerFunc func(ctx context.Context, ev *notify.Event) error

func (f handlerFunc) Handle(ctx context.Context, ev *notify.Event) error { return f(ctx, ev) }

func TestHandleMessage(t *testing.T) {
	var got *notify.Event
	h := handlerFunc(func(_ context.Context, ev *notify.Event) error {
		got = ev
		return nil
	})

	msg := kafka.Message{
		Topic: "ckan.datasets",
		Value: []byte(`{"event_id":"e1","operation":"changed","entity_type":"package","entity":{"id":"ds-1"}}`),
	}
	ok := HandleMessage(context.Background(), msg, h, zap.NewNop())
	assert.True(t, ok)
	require.NotNil(t, got)
	assert.Equal(t, "changed", got.Operation)
	assert.Equal(t, "ds-1", got.Entity["id"])
}

func TestHandleMessage_Malformed(t *testing.T) {
	called := false
	h := handlerFunc(func(context.Context, *notify.Event) error {
		called = true
		return nil
	})

	ok := HandleMessage(context.Background(), kafka.Message{Value: []byte("garbage")}, h, zap.NewNop())
	assert.False(t, ok)
	assert.False(t, called)
}

func TestHandleMessage_HandlerError(t *testing.T) {
	h := handlerFunc(func(context.Context, *notify.Event) error { return errors.New("engine down") })

	msg := kafka.Message{Value: []byte(`{"operation":"new","entity":{"id":"x"}}`)}
	assert.False(t, HandleMessage(context.Background(), msg, h, zap.NewNop()))
}

func TestPause(t *testing.T) {
	assert.True(t, pause(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.False(t, pause(ctx, time.Minute))
	assert.Less(t, time.Since(start), time.Second)
}
