package document

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Source yields documents one at a time and returns io.EOF when drained.
type Source interface {
	Next() (Document, error)
}

// JSONLinesSource reads one JSON object per line. Blank lines are skipped.
type JSONLinesSource struct {
	sc   *bufio.Scanner
	line int
}

func NewJSONLinesSource(r io.Reader) *JSONLinesSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &JSONLinesSource{sc: sc}
}

func (s *JSONLinesSource) Next() (Document, error) {
	for s.sc.Scan() {
		s.line++
		raw := bytes.TrimSpace(s.sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var record map[string]any
		if err := dec.Decode(&record); err != nil {
			return nil, fmt.Errorf("line %d: %w", s.line, err)
		}
		doc, err := New(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", s.line, err)
		}
		return doc, nil
	}
	if err := s.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// SliceSource serves documents from memory.
type SliceSource struct {
	docs []Document
	pos  int
}

func NewSliceSource(docs ...Document) *SliceSource {
	return &SliceSource{docs: docs}
}

func (s *SliceSource) Next() (Document, error) {
	if s.pos >= len(s.docs) {
		return nil, io.EOF
	}
	d := s.docs[s.pos]
	s.pos++
	return d, nil
}
