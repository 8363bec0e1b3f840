// Package notify turns host change notifications into index writes.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/document"
	"github.com/gavram/ckan-search/internal/logger"
	"github.com/gavram/ckan-search/internal/service"
)

// Host operation names.
const (
	OpNew     = "new"
	OpChanged = "changed"
	OpDeleted = "deleted"
)

var ErrUnknownOperation = errors.New("notify: unknown operation")

// Operation is one of Insert, Update or Delete.
type Operation interface {
	operation()
}

type Insert struct{ Doc document.Document }

type Update struct{ Doc document.Document }

type Delete struct{ ID string }

func (Insert) operation() {}
func (Update) operation() {}
func (Delete) operation() {}

// ParseOperation maps a host operation name and its record to an Operation.
func ParseOperation(name string, record map[string]any) (Operation, error) {
	switch name {
	case OpNew, OpChanged:
		doc, err := document.New(record)
		if err != nil {
			return nil, fmt.Errorf("notify: %s: %w", name, err)
		}
		if name == OpNew {
			return Insert{Doc: doc}, nil
		}
		return Update{Doc: doc}, nil
	case OpDeleted:
		id := document.Document(record).ID()
		if id == "" {
			return nil, fmt.Errorf("notify: %s: %w", name, document.ErrMissingID)
		}
		return Delete{ID: id}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
}

// Event is the envelope published by the host on every dataset change.
type Event struct {
	EventID    string         `json:"event_id,omitempty"`
	Operation  string         `json:"operation"`
	EntityType string         `json:"entity_type"`
	Entity     map[string]any `json:"entity"`
}

// DecodeEvent parses a JSON event, keeping numbers as json.Number.
func DecodeEvent(data []byte) (*Event, error) {
	var ev Event
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&ev); err != nil {
		return nil, fmt.Errorf("notify: decode event: %w", err)
	}
	if ev.EntityType == "" {
		ev.EntityType = service.PackageType
	}
	return &ev, nil
}

// Notifier dispatches operations to the index registered for an entity type.
type Notifier struct {
	registry *service.Registry
	logger   *zap.Logger
}

func NewNotifier(registry *service.Registry, log *zap.Logger) *Notifier {
	return &Notifier{registry: registry, logger: logger.OrNop(log)}
}

// Notify applies op to the index for entityType.
func (n *Notifier) Notify(ctx context.Context, entityType string, op Operation) error {
	idx := n.registry.IndexFor(entityType)
	switch o := op.(type) {
	case Insert:
		return idx.Insert(ctx, o.Doc)
	case Update:
		return idx.Update(ctx, o.Doc)
	case Delete:
		return idx.Remove(ctx, o.ID)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownOperation, op)
	}
}

// Handle parses ev and applies it.
func (n *Notifier) Handle(ctx context.Context, ev *Event) error {
	op, err := ParseOperation(ev.Operation, ev.Entity)
	if err != nil {
		return err
	}
	if err := n.Notify(ctx, ev.EntityType, op); err != nil {
		return err
	}
	n.logger.Debug("event applied",
		zap.String("event_id", ev.EventID),
		zap.String("operation", ev.Operation),
		zap.String("entity_type", ev.EntityType),
	)
	return nil
}
