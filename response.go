package mgoquery

import "gopkg.in/mgo.v2/bson"

//==============================================================================

// CountResult is the normalized reply for a count. Total is set when no
// grouping was requested, Groups holds the raw {_id, total} rows otherwise.
type CountResult struct {
	Total  int      `json:"total"`
	Groups []bson.M `json:"groups,omitempty"`
}

// Grouped returns true if the result carries per-group rows.
func (c CountResult) Grouped() bool {
	return c.Groups != nil
}

//==============================================================================

// GroupTotal defines a single group key with its aggregated total.
type GroupTotal struct {
	Group interface{} `json:"group" bson:"group"`
	Total float64     `json:"total" bson:"total"`
}

// SumResult is the normalized reply for a sum. Total is set when no grouping
// was requested, Groups holds one entry per group key otherwise.
type SumResult struct {
	Total  float64      `json:"total"`
	Groups []GroupTotal `json:"groups,omitempty"`
}

// Grouped returns true if the result carries per-group totals.
func (s SumResult) Grouped() bool {
	return s.Groups != nil
}
