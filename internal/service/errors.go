package service

import (
	"errors"
	"fmt"
)

// ErrFacetsUnsupported is returned for queries that ask for facets.
var ErrFacetsUnsupported = errors.New("facets are not supported yet")

// IndexError wraps any failure while writing to the index.
type IndexError struct {
	Op  string
	ID  string
	Err error
}

func (e *IndexError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("index: %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("index: %s: %v", e.Op, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// QueryError wraps any failure while running a query.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return "query: " + e.Err.Error() }

func (e *QueryError) Unwrap() error { return e.Err }
