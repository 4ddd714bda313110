package client

import (
	"context"
	"net/http"

	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/model"
	mhttp "github.com/influx6/mgoquery/protocols/http"
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

//==============================================================================

// Request accumulates options for one collection, the way model.Model does on
// the server, and sends them with the next operation. A Request is not safe
// for concurrent use.
type Request struct {
	client *Client
	table  string
	q      mhttp.Query
}

// Where sets the filter.
func (r *Request) Where(where interface{}) *Request {
	r.q.Where = where
	return r
}

// Field sets the projection.
func (r *Request) Field(field interface{}) *Request {
	r.q.Field = field
	r.q.FieldReverse = false
	return r
}

// FieldReverse sets a projection excluding the giving fields.
func (r *Request) FieldReverse(field interface{}) *Request {
	r.q.Field = field
	r.q.FieldReverse = true
	return r
}

// Order sets the ordering.
func (r *Request) Order(order interface{}) *Request {
	r.q.Order = order
	return r
}

// Limit sets the pagination window.
func (r *Request) Limit(limit interface{}) *Request {
	r.q.Limit = limit
	return r
}

// Page sets a 1-based page. A zero size uses the server page size.
func (r *Request) Page(page, size int) *Request {
	r.q.Page = page
	r.q.PageSize = size
	return r
}

// Group sets the grouping keys.
func (r *Request) Group(group interface{}) *Request {
	r.q.Group = group
	return r
}

// Distinct requests distinct values.
func (r *Request) Distinct(distinct interface{}) *Request {
	r.q.Distinct = distinct
	return r
}

// Upsert makes the next update create a record when nothing matches.
func (r *Request) Upsert(upsert bool) *Request {
	r.q.Upsert = upsert
	return r
}

// take returns the accumulated query and clears it.
func (r *Request) take() mhttp.Query {
	q := r.q
	r.q = mhttp.Query{}
	return q
}

//==============================================================================

// Add inserts record and returns its identifier.
func (r *Request) Add(ctx context.Context, record bson.M) (string, error) {
	q := r.take()
	q.Data = record

	var id string
	err := r.client.call(ctx, http.MethodPost, r.table, "", q, &id)
	return id, err
}

// AddMany inserts list and returns the identifiers in order.
func (r *Request) AddMany(ctx context.Context, list []bson.M) ([]string, error) {
	q := r.take()
	q.Data = list

	var ids []string
	err := r.client.call(ctx, http.MethodPost, r.table, "", q, &ids)
	return ids, err
}

// Select returns the matching records.
func (r *Request) Select(ctx context.Context) ([]bson.M, error) {
	var records []bson.M
	err := r.client.call(ctx, http.MethodPost, r.table, "select", r.take(), &records)
	return records, err
}

// Find returns the first matching record, or an empty record.
func (r *Request) Find(ctx context.Context) (bson.M, error) {
	var record bson.M
	err := r.client.call(ctx, http.MethodPost, r.table, "find", r.take(), &record)
	return record, err
}

// CountSelect returns the requested page with its pagination state. flag is
// "first", "last" or empty to keep an out of range page.
func (r *Request) CountSelect(ctx context.Context, flag string) (model.Page, error) {
	q := r.take()
	q.PageFlag = flag

	var page model.Page
	err := r.client.call(ctx, http.MethodPost, r.table, "page", q, &page)
	return page, err
}

// Update applies data to the matching records and returns how many were
// modified.
func (r *Request) Update(ctx context.Context, data bson.M) (int, error) {
	q := r.take()
	q.Data = data

	var n int
	err := r.client.call(ctx, http.MethodPost, r.table, "update", q, &n)
	return n, err
}

// Delete removes the matching records and returns how many were removed.
func (r *Request) Delete(ctx context.Context) (int, error) {
	var n int
	err := r.client.call(ctx, http.MethodPost, r.table, "delete", r.take(), &n)
	return n, err
}

// Count returns the number of matching records.
func (r *Request) Count(ctx context.Context) (mgoquery.CountResult, error) {
	var res mgoquery.CountResult
	err := r.client.call(ctx, http.MethodPost, r.table, "count", r.take(), &res)
	return res, err
}

// Sum returns the sum of field over the matching records.
func (r *Request) Sum(ctx context.Context, field string) (mgoquery.SumResult, error) {
	q := r.take()
	q.Field = field

	var res mgoquery.SumResult
	err := r.client.call(ctx, http.MethodPost, r.table, "sum", q, &res)
	return res, err
}

// Aggregate runs pipeline against the collection.
func (r *Request) Aggregate(ctx context.Context, pipeline []interface{}) ([]bson.M, error) {
	q := r.take()
	q.Pipeline = pipeline

	var records []bson.M
	err := r.client.call(ctx, http.MethodPost, r.table, "aggregate", q, &records)
	return records, err
}

// Indexes lists the indexes of the collection.
func (r *Request) Indexes(ctx context.Context) ([]mgo.Index, error) {
	var list []mgo.Index
	err := r.client.call(ctx, http.MethodGet, r.table, "indexes", r.take(), &list)
	return list, err
}

// EnsureIndex creates an index from "a,b", a list or a field to direction
// mapping.
func (r *Request) EnsureIndex(ctx context.Context, indexes interface{}, unique bool) error {
	q := r.take()
	q.Indexes = indexes
	q.Unique = unique

	return r.client.call(ctx, http.MethodPut, r.table, "indexes", q, nil)
}
