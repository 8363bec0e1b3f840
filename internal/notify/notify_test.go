package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/document"
	"github.com/gavram/ckan-search/internal/service"
)

type recordingIndex struct {
	calls []string
	ids   []string
	err   error
}

func (r *recordingIndex) Insert(_ context.Context, doc document.Document, _ ...service.WriteOption) error {
	r.calls = append(r.calls, "insert")
	r.ids = append(r.ids, doc.ID())
	return r.err
}

func (r *recordingIndex) Update(_ context.Context, doc document.Document, _ ...service.WriteOption) error {
	r.calls = append(r.calls, "update")
	r.ids = append(r.ids, doc.ID())
	return r.err
}

func (r *recordingIndex) Remove(_ context.Context, id string, _ ...service.WriteOption) error {
	r.calls = append(r.calls, "remove")
	r.ids = append(r.ids, id)
	return r.err
}

func (r *recordingIndex) Clear(context.Context) error { return nil }
func (r *recordingIndex) Commit(context.Context) error { return nil }

func newTestNotifier() (*recordingIndex, *Notifier) {
	idx := &recordingIndex{}
	return idx, NewNotifier(service.NewRegistry(idx, zap.NewNop()), zap.NewNop())
}

func TestParseOperation(t *testing.T) {
	rec := map[string]any{"id": "ds-1", "title": "Roads"}

	op, err := ParseOperation(OpNew, rec)
	require.NoError(t, err)
	require.IsType(t, Insert{}, op)
	assert.Equal(t, "Roads", op.(Insert).Doc["title"])

	op, err = ParseOperation(OpChanged, rec)
	require.NoError(t, err)
	assert.IsType(t, Update{}, op)

	op, err = ParseOperation(OpDeleted, rec)
	require.NoError(t, err)
	assert.Equal(t, Delete{ID: "ds-1"}, op)
}

func TestParseOperation_Unknown(t *testing.T) {
	_, err := ParseOperation("archived", map[string]any{"id": "x"})
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestParseOperation_MissingID(t *testing.T) {
	for _, name := range []string{OpNew, OpChanged, OpDeleted} {
		_, err := ParseOperation(name, map[string]any{"title": "x"})
		assert.ErrorIs(t, err, document.ErrMissingID, name)
	}
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"event_id":"e1","operation":"new","entity":{"id":42,"title":"Roads"}}`))
	require.NoError(t, err)
	assert.Equal(t, "e1", ev.EventID)
	assert.Equal(t, service.PackageType, ev.EntityType)

	op, err := ParseOperation(ev.Operation, ev.Entity)
	require.NoError(t, err)
	assert.Equal(t, "42", op.(Insert).Doc.ID())

	_, err = DecodeEvent([]byte(`{not json`))
	assert.Error(t, err)
}

func TestNotifier_Dispatch(t *testing.T) {
	idx, n := newTestNotifier()
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, service.PackageType, Insert{Doc: document.Document{"id": "a"}}))
	require.NoError(t, n.Notify(ctx, service.PackageType, Update{Doc: document.Document{"id": "b"}}))
	require.NoError(t, n.Notify(ctx, service.PackageType, Delete{ID: "c"}))

	assert.Equal(t, []string{"insert", "update", "remove"}, idx.calls)
	assert.Equal(t, []string{"a", "b", "c"}, idx.ids)
}

func TestNotifier_UnknownEntityTypeIsIgnored(t *testing.T) {
	idx, n := newTestNotifier()

	require.NoError(t, n.Notify(context.Background(), "group", Insert{Doc: document.Document{"id": "g"}}))
	assert.Empty(t, idx.calls)
}

func TestNotifier_Handle(t *testing.T) {
	idx, n := newTestNotifier()
	ctx := context.Background()

	err := n.Handle(ctx, &Event{Operation: OpDeleted, EntityType: service.PackageType, Entity: map[string]any{"id": "z"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"remove"}, idx.calls)

	err = n.Handle(ctx, &Event{Operation: "bogus", EntityType: service.PackageType, Entity: map[string]any{"id": "z"}})
	assert.ErrorIs(t, err, ErrUnknownOperation)

	idx.err = errors.New("engine down")
	err = n.Handle(ctx, &Event{Operation: OpNew, EntityType: service.PackageType, Entity: map[string]any{"id": "y"}})
	assert.EqualError(t, err, "engine down")
}

type unsupportedOp struct{}

func (unsupportedOp) operation() {}

func TestNotifier_UnhandledOperationIsAnError(t *testing.T) {
	idx, n := newTestNotifier()

	err := n.Notify(context.Background(), service.PackageType, unsupportedOp{})
	assert.ErrorIs(t, err, ErrUnknownOperation)
	assert.Empty(t, idx.calls)
}
