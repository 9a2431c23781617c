package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/facilityhub/facility/pkg/types"
)

// Document is a record as stored in the search mirror
type Document struct {
	Kind types.Kind
	ID   int64

	// Source is the record's JSON encoding, parent included
	Source json.RawMessage

	// Text holds every scalar value of Source, space separated, for
	// backends without their own analyzer
	Text string
}

// NewDocument encodes a record for the mirror. The record must have an id.
func NewDocument(record types.Record) (*Document, error) {
	id := record.GetID()
	if id == nil {
		return nil, fmt.Errorf("cannot index %s without an id", record.Kind())
	}

	source, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s %d: %w", record.Kind(), *id, err)
	}

	text, err := flattenText(source)
	if err != nil {
		return nil, err
	}

	return &Document{
		Kind:   record.Kind(),
		ID:     *id,
		Source: source,
		Text:   text,
	}, nil
}

func flattenText(source []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(source))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("failed to decode document source: %w", err)
	}

	var parts []string
	collectScalars(v, &parts)
	return strings.Join(parts, " "), nil
}

func collectScalars(v any, parts *[]string) {
	switch t := v.(type) {
	case map[string]any:
		// Stable order keeps the text deterministic
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectScalars(t[k], parts)
		}
	case []any:
		for _, item := range t {
			collectScalars(item, parts)
		}
	case string:
		if t != "" {
			*parts = append(*parts, t)
		}
	case json.Number:
		*parts = append(*parts, t.String())
	case bool:
		*parts = append(*parts, strconv.FormatBool(t))
	}
}
