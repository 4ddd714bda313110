package mgoquery

import (
	"strings"

	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

//==============================================================================

// QueryOptions carries the option fragments for a single operation. Each
// fragment keeps the loose shape the caller handed in; the parser package
// normalizes them right before execution.
type QueryOptions struct {
	// Table is the target collection, already prefixed.
	Table string `json:"table,omitempty"`

	// Where is a filter mapping, a list of filter mappings or nil.
	Where interface{} `json:"where,omitempty"`

	// Field is a projection: "a,b", []string or a native mapping.
	Field interface{} `json:"field,omitempty"`

	// FieldReverse turns the projection into an exclusion list.
	FieldReverse bool `json:"fieldReverse,omitempty"`

	// Order is true, "natural", "a DESC,b" or a field to direction mapping.
	Order interface{} `json:"order,omitempty"`

	// Limit is a count, "offset,count", a pair or a Window.
	Limit interface{} `json:"limit,omitempty"`

	// Group is "a,b" or a list of grouping keys.
	Group interface{} `json:"group,omitempty"`

	// Distinct is a field name or true to use the projected field.
	Distinct interface{} `json:"distinct,omitempty"`

	// Upsert creates a record when an update matches nothing.
	Upsert bool `json:"upsert,omitempty"`

	// Session attaches an externally held session to the operation instead
	// of leasing one from the pool. The session is never closed here. mgo
	// sessions carry no server transactions: operations sharing a session
	// share its socket and consistency mode only. Use Txn for writes that
	// must apply together.
	Session *mgo.Session `json:"-"`

	// Txn queues the write into the giving transaction instead of running
	// it. Reads ignore it.
	Txn *Txn `json:"-"`
}

//==============================================================================

// Window defines a normalized pagination window. A zero Count means the
// window has no cap.
type Window struct {
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// IsZero returns true if the window neither skips nor caps records.
func (w Window) IsZero() bool {
	return w.Offset == 0 && w.Count == 0
}

// Single returns true if the window asks for exactly one record.
func (w Window) Single() bool {
	return w.Count == 1
}

//==============================================================================

// SortKey defines a single field ordering.
type SortKey struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc"`
}

// Sort defines a normalized ordering. Natural takes precedence over Keys and
// requests insertion order.
type Sort struct {
	Natural bool      `json:"natural,omitempty"`
	Keys    []SortKey `json:"keys,omitempty"`
}

// NaturalOrder is the sentinel ordering for insertion order.
var NaturalOrder = Sort{Natural: true}

// naturalKey is the native key used for insertion order.
const naturalKey = "$natural"

// IsZero returns true if no ordering was requested.
func (s Sort) IsZero() bool {
	return !s.Natural && len(s.Keys) == 0
}

// Fields returns the ordering in the form accepted by mgo.Query.Sort.
func (s Sort) Fields() []string {
	if s.Natural {
		return []string{naturalKey}
	}

	fields := make([]string, 0, len(s.Keys))
	for _, key := range s.Keys {
		if key.Desc {
			fields = append(fields, "-"+key.Field)
			continue
		}

		fields = append(fields, key.Field)
	}

	return fields
}

// Document returns the ordering as a native $sort document.
func (s Sort) Document() bson.D {
	if s.Natural {
		return bson.D{{Name: naturalKey, Value: 1}}
	}

	doc := make(bson.D, 0, len(s.Keys))
	for _, key := range s.Keys {
		dir := 1
		if key.Desc {
			dir = -1
		}

		doc = append(doc, bson.DocElem{Name: key.Field, Value: dir})
	}

	return doc
}

// String returns the ordering in its "a DESC,b" form.
func (s Sort) String() string {
	if s.Natural {
		return "natural"
	}

	parts := make([]string, 0, len(s.Keys))
	for _, key := range s.Keys {
		if key.Desc {
			parts = append(parts, key.Field+" DESC")
			continue
		}

		parts = append(parts, key.Field)
	}

	return strings.Join(parts, ",")
}
