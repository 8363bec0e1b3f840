package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gavram/ckan-search/internal/notify"
	"github.com/gavram/ckan-search/internal/service"
)

// MaxRows caps a single search page.
const MaxRows = 1000

// ErrValidation is wrapped by every error returned from this package.
var ErrValidation = errors.New("validation")

func invalid(msgs ...string) error {
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

// Validator validates input DTOs for the search API
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// ValidateSearchRequest checks paging and filter clauses.
func (v *Validator) ValidateSearchRequest(req service.Request) error {
	var errs []string
	if req.Start != nil && *req.Start < 0 {
		errs = append(errs, "start must be non-negative")
	}
	if req.Rows != nil {
		if *req.Rows < 0 {
			errs = append(errs, "rows must be non-negative")
		} else if *req.Rows > MaxRows {
			errs = append(errs, fmt.Sprintf("rows must not exceed %d", MaxRows))
		}
	}
	for _, f := range req.Filters {
		if strings.TrimSpace(f.Field) == "" {
			errs = append(errs, "fq requires field:value")
			break
		}
	}
	if len(errs) > 0 {
		return invalid(errs...)
	}
	return nil
}

// ValidateDatasetID rejects blank ids.
func (v *Validator) ValidateDatasetID(id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("id is required")
	}
	return nil
}

// ValidateDataset checks a dataset record before it is indexed.
func (v *Validator) ValidateDataset(record map[string]any) error {
	if len(record) == 0 {
		return invalid("dataset body is empty")
	}
	id, ok := record["id"]
	if !ok || id == nil {
		return invalid("id is required")
	}
	if s, isStr := id.(string); isStr {
		return v.ValidateDatasetID(s)
	}
	return nil
}

// ValidateEvent checks a notification envelope.
func (v *Validator) ValidateEvent(ev *notify.Event) error {
	var errs []string
	switch ev.Operation {
	case notify.OpNew, notify.OpChanged, notify.OpDeleted:
	default:
		errs = append(errs, fmt.Sprintf("operation must be one of: %s, %s, %s", notify.OpNew, notify.OpChanged, notify.OpDeleted))
	}
	if strings.TrimSpace(ev.EntityType) == "" {
		errs = append(errs, "entity_type is required")
	}
	if err := v.ValidateDataset(ev.Entity); err != nil {
		errs = append(errs, strings.TrimPrefix(err.Error(), ErrValidation.Error()+": "))
	}
	if len(errs) > 0 {
		return invalid(errs...)
	}
	return nil
}
