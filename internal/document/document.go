// Package document shapes host records into flat index documents.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldID is the key every document is indexed under.
const FieldID = "id"

var ErrMissingID = errors.New("document: id is required")

// Document is one flat indexed record keyed by field name.
type Document map[string]any

// New copies record into a Document. The id must be present and non-blank;
// numeric ids are stringified. time.Time values are written as RFC 3339.
func New(record map[string]any) (Document, error) {
	id, err := idOf(record[FieldID])
	if err != nil {
		return nil, err
	}
	doc := make(Document, len(record))
	for k, v := range record {
		doc[k] = encodeValue(v)
	}
	doc[FieldID] = id
	return doc, nil
}

// ID returns the document id, or "" when it has none.
func (d Document) ID() string {
	id, _ := idOf(d[FieldID])
	return id
}

// Keys lists the field names, used for debug logging.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	return keys
}

func idOf(v any) (string, error) {
	var id string
	switch t := v.(type) {
	case string:
		id = t
	case json.Number:
		id = t.String()
	case float64:
		id = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		id = strconv.Itoa(t)
	case int64:
		id = strconv.FormatInt(t, 10)
	case nil:
	default:
		return "", fmt.Errorf("document: unsupported id type %T", v)
	}
	if strings.TrimSpace(id) == "" {
		return "", ErrMissingID
	}
	return id, nil
}

func encodeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.Format(time.RFC3339Nano)
	default:
		return v
	}
}

// DecodeTimes returns a copy of d where top-level string values that parse
// as RFC 3339 timestamps are replaced by time.Time.
func DecodeTimes(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		if s, ok := v.(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
				out[k] = ts
				continue
			}
		}
		out[k] = v
	}
	return out
}
