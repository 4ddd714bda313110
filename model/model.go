// Package model provides the chainable record facade. A Model accumulates
// option fragments across calls (Where, Field, Order, Limit, ...) and hands
// them to the execution layer when an operation runs, clearing them
// afterwards. A Model is not safe for concurrent use; derive one per request
// with Model(name).
package model

import (
	"context"
	"path"
	"strings"

	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/db/mongo"
	"github.com/influx6/mgoquery/engine"
	"github.com/influx6/mgoquery/parser"
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

//==============================================================================

// Executor defines the execution layer a Model runs against. *engine.Engine
// implements it.
type Executor interface {
	Add(ctx context.Context, data map[string]interface{}, opts mgoquery.QueryOptions) (string, error)
	AddMany(ctx context.Context, list []map[string]interface{}, opts mgoquery.QueryOptions) ([]string, error)
	Select(ctx context.Context, opts mgoquery.QueryOptions) ([]bson.M, error)
	Find(ctx context.Context, opts mgoquery.QueryOptions) (bson.M, error)
	Update(ctx context.Context, data map[string]interface{}, opts mgoquery.QueryOptions) (int, error)
	Delete(ctx context.Context, opts mgoquery.QueryOptions) (int, error)
	Count(ctx context.Context, opts mgoquery.QueryOptions) (mgoquery.CountResult, error)
	Sum(ctx context.Context, field string, opts mgoquery.QueryOptions) (mgoquery.SumResult, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts mgoquery.QueryOptions) ([]bson.M, error)
	EnsureIndex(ctx context.Context, indexes interface{}, unique bool, opts mgoquery.QueryOptions) error
	Indexes(ctx context.Context, opts mgoquery.QueryOptions) ([]mgo.Index, error)
	MapReduce(ctx context.Context, job *mgo.MapReduce, opts mgoquery.QueryOptions) ([]bson.M, *mgo.MapReduceInfo, error)
}

//==============================================================================

// Model defines a record facade bound to one collection.
type Model struct {
	// Name is the collection name without prefix.
	Name string

	// PK is the primary key field.
	PK string

	// Hooks holds the lifecycle pipelines of this model.
	Hooks Hooks

	// Models holds the hooks of named models created through Model.
	Models map[string]Hooks

	db       Executor
	prefix   string
	pageSize int
	opts     mgoquery.QueryOptions
}

// New returns a new Model for the giving collection name. The table prefix
// and page size come from cfg.
func New(name string, db Executor, cfg mongo.Config) *Model {
	return &Model{
		Name:     name,
		PK:       parser.IDField,
		Models:   make(map[string]Hooks),
		db:       db,
		prefix:   cfg.Prefix,
		pageSize: cfg.PageSizeOrDefault(),
	}
}

// Model returns a new Model for another collection sharing this model's
// executor, config and registered hooks. The collection name is the base of
// name, so "admin/user" maps to "user" with the hooks of "admin/user".
func (m *Model) Model(name string) *Model {
	next := Model{
		Name:     path.Base(name),
		PK:       parser.IDField,
		Models:   m.Models,
		db:       m.db,
		prefix:   m.prefix,
		pageSize: m.pageSize,
	}

	if hooks, ok := m.Models[name]; ok {
		next.Hooks = hooks
	}

	return &next
}

// TableName returns the prefixed collection name of this model.
func (m *Model) TableName() string {
	return m.prefix + m.Name
}

// Options returns the options accumulated so far.
func (m *Model) Options() mgoquery.QueryOptions {
	return m.opts
}

// take returns the accumulated options, defaulting the table, and clears
// them for the next operation.
func (m *Model) take() mgoquery.QueryOptions {
	opts := m.opts
	m.opts = mgoquery.QueryOptions{}

	if opts.Table == "" {
		opts.Table = m.TableName()
	}

	return opts
}

//==============================================================================

// Where merges a filter into the accumulated one. A string is kept as a raw
// server side expression. Mappings are merged key by key; any other shape
// replaces the filter.
func (m *Model) Where(where interface{}) *Model {
	if where == nil {
		return m
	}

	if raw, ok := where.(string); ok {
		if raw == "" {
			return m
		}
		where = bson.M{"_string": raw}
	}

	next, ok := asMap(where)
	if !ok {
		m.opts.Where = where
		return m
	}

	current, ok := asMap(m.opts.Where)
	if !ok {
		current = bson.M{}
	}

	merged := make(bson.M, len(current)+len(next))
	for key, value := range current {
		merged[key] = value
	}
	for key, value := range next {
		merged[key] = value
	}

	m.opts.Where = merged
	return m
}

// Field sets the projection.
func (m *Model) Field(field interface{}) *Model {
	if field == nil {
		return m
	}

	m.opts.Field = field
	m.opts.FieldReverse = false
	return m
}

// FieldReverse sets a projection excluding the giving fields.
func (m *Model) FieldReverse(field interface{}) *Model {
	if field == nil {
		return m
	}

	m.opts.Field = field
	m.opts.FieldReverse = true
	return m
}

// Table overrides the collection. The model prefix is added unless
// hasPrefix is true.
func (m *Model) Table(table string, hasPrefix bool) *Model {
	table = strings.TrimSpace(table)
	if table == "" {
		return m
	}

	if !hasPrefix {
		table = m.prefix + table
	}

	m.opts.Table = table
	return m
}

// Limit sets the pagination window: a count, "offset,count", a pair or a
// mgoquery.Window.
func (m *Model) Limit(limit interface{}) *Model {
	if limit == nil {
		return m
	}

	m.opts.Limit = limit
	return m
}

// Page sets the window for the giving 1-based page. pageSize defaults to the
// configured page size.
func (m *Model) Page(page int, pageSize ...int) *Model {
	size := m.pageSize
	if len(pageSize) != 0 && pageSize[0] > 0 {
		size = pageSize[0]
	}

	if page < 1 {
		page = 1
	}

	m.opts.Limit = mgoquery.Window{Offset: size * (page - 1), Count: size}
	return m
}

// Order sets the ordering.
func (m *Model) Order(order interface{}) *Model {
	m.opts.Order = order
	return m
}

// Group sets the grouping keys.
func (m *Model) Group(group interface{}) *Model {
	m.opts.Group = group
	return m
}

// Distinct requests distinct values. A field name also becomes the
// projection.
func (m *Model) Distinct(distinct interface{}) *Model {
	m.opts.Distinct = distinct
	if field, ok := distinct.(string); ok {
		m.opts.Field = field
	}
	return m
}

// Upsert makes the next update create a record when nothing matches.
func (m *Model) Upsert(upsert bool) *Model {
	m.opts.Upsert = upsert
	return m
}

// Session runs the next operation on a caller held session. The session is
// not closed by the model. Sharing a session shares its socket, not a
// transaction; see Txn.
func (m *Model) Session(ses *mgo.Session) *Model {
	m.opts.Session = ses
	return m
}

// Txn queues the next write into t. The write applies when t is committed.
func (m *Model) Txn(t *mgoquery.Txn) *Model {
	m.opts.Txn = t
	return m
}

func asMap(v interface{}) (bson.M, bool) {
	switch w := v.(type) {
	case bson.M:
		return w, true
	case map[string]interface{}:
		return bson.M(w), true
	case bson.D:
		return w.Map(), true
	default:
		return nil, false
	}
}

//==============================================================================

// Add inserts a record and returns its identifier.
func (m *Model) Add(ctx context.Context, data bson.M) (string, error) {
	if len(data) == 0 {
		m.take()
		return "", mgoquery.Invalid("Add", "add data is empty")
	}

	opts := m.take()

	record, err := runData(ctx, m.Hooks.BeforeAdd, clone(data), opts)
	if err != nil {
		return "", err
	}

	id, err := m.db.Add(ctx, record, opts)
	if err != nil {
		return "", err
	}

	added := clone(record)
	added[m.PK] = id
	if _, err := runData(ctx, m.Hooks.AfterAdd, added, opts); err != nil {
		return "", err
	}

	return id, nil
}

// AddMany inserts a batch of records and returns their identifiers in order.
func (m *Model) AddMany(ctx context.Context, list []bson.M) ([]string, error) {
	if len(list) == 0 {
		m.take()
		return nil, mgoquery.Invalid("AddMany", "addMany must be a non-empty list of records")
	}

	opts := m.take()

	records := make([]map[string]interface{}, len(list))
	for i, data := range list {
		record, err := runData(ctx, m.Hooks.BeforeAdd, clone(data), opts)
		if err != nil {
			return nil, err
		}
		records[i] = record
	}

	ids, err := m.db.AddMany(ctx, records, opts)
	if err != nil {
		return nil, err
	}

	for i, record := range records {
		added := clone(record)
		added[m.PK] = ids[i]
		if _, err := runData(ctx, m.Hooks.AfterAdd, added, opts); err != nil {
			return nil, err
		}
	}

	return ids, nil
}

// ThenResult reports whether ThenAdd found or created the record.
type ThenResult struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ThenAdd inserts data unless a record matching where exists.
func (m *Model) ThenAdd(ctx context.Context, data bson.M, where interface{}) (ThenResult, error) {
	found, err := m.Where(where).Find(ctx)
	if err != nil {
		return ThenResult{}, err
	}

	if len(found) != 0 {
		return ThenResult{ID: engine.IDString(found[m.PK]), Type: "exist"}, nil
	}

	id, err := m.Add(ctx, data)
	if err != nil {
		return ThenResult{}, err
	}

	return ThenResult{ID: id, Type: "add"}, nil
}

// ThenUpdate updates the record matching where with data, or inserts data
// when none exists. It returns the record identifier.
func (m *Model) ThenUpdate(ctx context.Context, data bson.M, where interface{}) (string, error) {
	found, err := m.Where(where).Find(ctx)
	if err != nil {
		return "", err
	}

	if len(found) == 0 {
		return m.Add(ctx, data)
	}

	if _, err := m.Where(where).Update(ctx, data); err != nil {
		return "", err
	}

	return engine.IDString(found[m.PK]), nil
}

//==============================================================================

// Update applies data to the matching records and returns how many were
// modified. A primary key in data moves into the filter.
func (m *Model) Update(ctx context.Context, data bson.M) (int, error) {
	data = clone(data)
	if id, ok := data[m.PK]; ok && id != nil {
		m.Where(bson.M{m.PK: id})
		delete(data, m.PK)
	}

	if len(data) == 0 {
		m.take()
		return 0, mgoquery.Invalid("Update", "update data is empty")
	}

	opts := m.take()

	data, err := runData(ctx, m.Hooks.BeforeUpdate, data, opts)
	if err != nil {
		return 0, err
	}

	n, err := m.db.Update(ctx, data, opts)
	if err != nil {
		return 0, err
	}

	if _, err := runData(ctx, m.Hooks.AfterUpdate, data, opts); err != nil {
		return 0, err
	}

	return n, nil
}

// UpdateMany updates every record of list with the same accumulated options
// and returns the summed modified count.
func (m *Model) UpdateMany(ctx context.Context, list []bson.M) (int, error) {
	opts := m.opts
	m.opts = mgoquery.QueryOptions{}

	var total int
	for _, data := range list {
		m.opts = opts

		n, err := m.Update(ctx, data)
		if err != nil {
			return total, err
		}

		total += n
	}

	return total, nil
}

// Increment adds step to field on the matching records.
func (m *Model) Increment(ctx context.Context, field string, step float64) (int, error) {
	return m.db.Update(ctx, bson.M{"$inc": bson.M{field: step}}, m.take())
}

// Decrement subtracts step from field on the matching records.
func (m *Model) Decrement(ctx context.Context, field string, step float64) (int, error) {
	return m.db.Update(ctx, bson.M{"$inc": bson.M{field: -step}}, m.take())
}

// Delete removes the matching records and returns how many were removed.
func (m *Model) Delete(ctx context.Context) (int, error) {
	opts, err := runOptions(ctx, m.Hooks.BeforeDelete, m.take())
	if err != nil {
		return 0, err
	}

	n, err := m.db.Delete(ctx, opts)
	if err != nil {
		return 0, err
	}

	if _, err := runOptions(ctx, m.Hooks.AfterDelete, opts); err != nil {
		return 0, err
	}

	return n, nil
}

//==============================================================================

// Select returns the matching records.
func (m *Model) Select(ctx context.Context) ([]bson.M, error) {
	return m.selectWith(ctx, m.take())
}

func (m *Model) selectWith(ctx context.Context, opts mgoquery.QueryOptions) ([]bson.M, error) {
	opts, err := runOptions(ctx, m.Hooks.BeforeSelect, opts)
	if err != nil {
		return nil, err
	}

	records, err := m.db.Select(ctx, opts)
	if err != nil {
		return nil, err
	}

	return runRecords(ctx, m.Hooks.AfterSelect, records, opts)
}

// Find returns the first matching record, or an empty record.
func (m *Model) Find(ctx context.Context) (bson.M, error) {
	opts := m.take()
	opts.Limit = 1

	opts, err := runOptions(ctx, m.Hooks.BeforeFind, opts)
	if err != nil {
		return nil, err
	}

	record, err := m.db.Find(ctx, opts)
	if err != nil {
		return nil, err
	}

	return runData(ctx, m.Hooks.AfterFind, record, opts)
}

// Count returns the number of matching records.
func (m *Model) Count(ctx context.Context) (mgoquery.CountResult, error) {
	return m.db.Count(ctx, m.take())
}

// Sum returns the sum of field over the matching records.
func (m *Model) Sum(ctx context.Context, field string) (mgoquery.SumResult, error) {
	opts := m.take()
	opts.Field = field
	return m.db.Sum(ctx, field, opts)
}

// Aggregate runs pipeline against the model collection.
func (m *Model) Aggregate(ctx context.Context, pipeline interface{}) ([]bson.M, error) {
	return m.db.Aggregate(ctx, pipeline, m.take())
}

// MapReduce runs job over the matching records.
func (m *Model) MapReduce(ctx context.Context, job *mgo.MapReduce) ([]bson.M, *mgo.MapReduceInfo, error) {
	return m.db.MapReduce(ctx, job, m.take())
}

// CreateIndex creates an index on the model collection.
func (m *Model) CreateIndex(ctx context.Context, indexes interface{}, unique bool) error {
	return m.db.EnsureIndex(ctx, indexes, unique, m.take())
}

// Indexes lists the indexes of the model collection.
func (m *Model) Indexes(ctx context.Context) ([]mgo.Index, error) {
	return m.db.Indexes(ctx, m.take())
}

// clone returns a shallow copy of data.
func clone(data map[string]interface{}) bson.M {
	copied := make(bson.M, len(data)+1)
	for key, value := range data {
		copied[key] = value
	}
	return copied
}
