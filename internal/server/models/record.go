package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"maps"
)

const (
	fieldID        = "id"
	fieldUpdatedAt = "updatedAt"
	fieldIsDeleted = "isDeleted"
)

var errNotObject = errors.New("expected a JSON object")

// Record is a JSON object whose fields are kept as raw, compacted JSON so
// that fields the server does not interpret survive a round trip unchanged.
// A Record is treated as immutable; the With* helpers return modified copies.
type Record struct {
	fields map[string]json.RawMessage
}

// NewRecord builds a Record from already-encoded field values.
func NewRecord(fields map[string]json.RawMessage) Record {
	r := Record{fields: make(map[string]json.RawMessage, len(fields))}
	for k, v := range fields {
		r.fields[k] = compact(v)
	}
	return r
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.fields)
}

func (r *Record) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errNotObject
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return err
	}
	*r = NewRecord(fields)
	return nil
}

// Field returns the raw value of name, or nil when the field is absent.
func (r Record) Field(name string) json.RawMessage {
	return r.fields[name]
}

// Len reports the number of fields.
func (r Record) Len() int {
	return len(r.fields)
}

// Key returns the compact JSON encoding of the id field, which is used as the
// identity key. ok is false when the id is absent or null.
func (r Record) Key() (key string, ok bool) {
	id, found := r.fields[fieldID]
	if !found || isNull(id) {
		return "", false
	}
	return string(id), true
}

// UpdatedAtRaw returns the raw updatedAt value, or nil when absent.
func (r Record) UpdatedAtRaw() json.RawMessage {
	return r.fields[fieldUpdatedAt]
}

// Deleted reports whether isDeleted is the JSON literal true.
func (r Record) Deleted() bool {
	return string(r.fields[fieldIsDeleted]) == "true"
}

// withDeleted returns a copy with isDeleted set. A false flag is not added to
// a record that never had one, so repeated merges encode identically.
func (r Record) withDeleted(deleted bool) Record {
	if _, present := r.fields[fieldIsDeleted]; !deleted && !present {
		return r
	}
	out := Record{fields: maps.Clone(r.fields)}
	if out.fields == nil {
		out.fields = make(map[string]json.RawMessage, 1)
	}
	if deleted {
		out.fields[fieldIsDeleted] = json.RawMessage("true")
	} else {
		out.fields[fieldIsDeleted] = json.RawMessage("false")
	}
	return out
}

func compact(v json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return append(json.RawMessage(nil), v...)
	}
	return buf.Bytes()
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || string(v) == "null"
}
