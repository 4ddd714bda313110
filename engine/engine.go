// Package engine executes one native operation per call against MongoDB. Each
// call translates its QueryOptions through the parser, leases a connection
// from the pool, runs the operation and releases the connection on every
// path.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/db/mongo"
	"github.com/influx6/mgoquery/logs"
	"github.com/influx6/mgoquery/parser"
	"github.com/influx6/mgoquery/utils"
	"github.com/pborman/uuid"
	"gopkg.in/mgo.v2/bson"
)

//==============================================================================

// Leaser defines the pool contract the engine runs operations through.
type Leaser interface {
	AutoRelease(ctx context.Context, fn func(*mongo.Conn) error) error
}

// Engine defines the execution layer for a single database.
type Engine struct {
	mgoquery.EventLog

	// Database names the database shared sessions are bound to.
	Database string

	// PK is the identifier field coerced by the filter translation.
	PK string

	// TxnCollection overrides DefaultTxnCollection for Commit.
	TxnCollection string

	pool Leaser

	ml           sync.Mutex
	lastInsertID []string
}

// New returns a new Engine running through the giving pool.
func New(l mgoquery.EventLog, pool Leaser, database string) *Engine {
	if l == nil {
		l = logs.Discard
	}

	return &Engine{
		EventLog: l,
		Database: database,
		PK:       parser.IDField,
		pool:     pool,
	}
}

// FromMongnod returns a new Engine for the giving connection manager.
func FromMongnod(l mgoquery.EventLog, m *mongo.Mongnod) *Engine {
	return New(l, m, m.Database)
}

// LastInsertID returns the identifier of the most recent insert, the last
// one for a batch.
func (e *Engine) LastInsertID() string {
	e.ml.Lock()
	defer e.ml.Unlock()

	if len(e.lastInsertID) == 0 {
		return ""
	}

	return e.lastInsertID[len(e.lastInsertID)-1]
}

// LastInsertIDs returns the identifiers of the most recent insert call.
func (e *Engine) LastInsertIDs() []string {
	e.ml.Lock()
	defer e.ml.Unlock()

	return append([]string(nil), e.lastInsertID...)
}

//==============================================================================

// run executes fn on a leased connection, or on the caller's session when
// opts carries one. A caller session is never closed here.
func (e *Engine) run(ctx context.Context, rid string, opts mgoquery.QueryOptions, fn func(*mongo.Conn) error) error {
	if opts.Session != nil {
		e.Log(rid, "run", "Info : Shared Session : Db[%s]", e.Database)
		return fn(&mongo.Conn{Session: opts.Session, DB: opts.Session.DB(e.Database)})
	}

	return e.pool.AutoRelease(ctx, fn)
}

// requestID returns a new id tagging the log lines of one call.
func requestID() string {
	return uuid.New()
}

// pk returns the identifier field in use.
func (e *Engine) pk() string {
	if e.PK == "" {
		return parser.IDField
	}

	return e.PK
}

//==============================================================================

// Add inserts a single record and returns its identifier as a string. An
// identifier is generated when data carries none. data is not modified. With
// opts.Txn the insert is queued and applied on Commit.
func (e *Engine) Add(ctx context.Context, data map[string]interface{}, opts mgoquery.QueryOptions) (string, error) {
	rid := requestID()
	e.Log(rid, "Add", "Started : Table[%s]", opts.Table)

	if len(data) == 0 {
		err := mgoquery.Invalid("Add", "insert data is empty")
		e.Error(rid, "Add", err, "Completed")
		return "", err
	}

	if opts.Table == "" {
		err := mgoquery.Invalid("Add", "table is empty")
		e.Error(rid, "Add", err, "Completed")
		return "", err
	}

	doc, id := e.record(data)

	var err error
	if opts.Txn != nil {
		err = e.queue(rid, "Add", opts.Txn, insertOps(opts.Table, doc))
	} else {
		err = e.run(ctx, rid, opts, func(c *mongo.Conn) error {
			e.Log(rid, "Add", "DBAction : db.%s.insert(%s)", opts.Table, utils.Query.Query(doc))
			return c.C(opts.Table).Insert(doc)
		})
	}
	if err != nil {
		e.Error(rid, "Add", err, "Completed")
		return "", err
	}

	e.ml.Lock()
	e.lastInsertID = []string{id}
	e.ml.Unlock()

	e.Log(rid, "Add", "Completed : ID[%s]", id)
	return id, nil
}

// AddMany inserts a batch of records and returns their identifiers in order.
func (e *Engine) AddMany(ctx context.Context, list []map[string]interface{}, opts mgoquery.QueryOptions) ([]string, error) {
	rid := requestID()
	e.Log(rid, "AddMany", "Started : Table[%s] : Records[%d]", opts.Table, len(list))

	if len(list) == 0 {
		err := mgoquery.Invalid("AddMany", "input must be a non-empty list of records")
		e.Error(rid, "AddMany", err, "Completed")
		return nil, err
	}

	if opts.Table == "" {
		err := mgoquery.Invalid("AddMany", "table is empty")
		e.Error(rid, "AddMany", err, "Completed")
		return nil, err
	}

	docs := make([]bson.M, len(list))
	ids := make([]string, len(list))
	for i, data := range list {
		if len(data) == 0 {
			err := mgoquery.Invalid("AddMany", fmt.Sprintf("record %d is empty", i))
			e.Error(rid, "AddMany", err, "Completed")
			return nil, err
		}

		docs[i], ids[i] = e.record(data)
	}

	var err error
	if opts.Txn != nil {
		err = e.queue(rid, "AddMany", opts.Txn, insertOps(opts.Table, docs...))
	} else {
		err = e.run(ctx, rid, opts, func(c *mongo.Conn) error {
			e.Log(rid, "AddMany", "DBAction : db.%s.insertMany(%s)", opts.Table, utils.Query.Query(docs))

			batch := make([]interface{}, len(docs))
			for i, doc := range docs {
				batch[i] = doc
			}
			return c.C(opts.Table).Insert(batch...)
		})
	}
	if err != nil {
		e.Error(rid, "AddMany", err, "Completed")
		return nil, err
	}

	e.ml.Lock()
	e.lastInsertID = ids
	e.ml.Unlock()

	e.Log(rid, "AddMany", "Completed")
	return ids, nil
}

// record copies data, generating an identifier when missing.
func (e *Engine) record(data map[string]interface{}) (bson.M, string) {
	doc := make(bson.M, len(data)+1)
	for key, value := range data {
		doc[key] = value
	}

	id, ok := doc[parser.IDField]
	if !ok || id == nil {
		id = bson.NewObjectId()
		doc[parser.IDField] = id
	}

	return doc, IDString(id)
}

// IDString returns the string form of an identifier value.
func IDString(id interface{}) string {
	switch v := id.(type) {
	case bson.ObjectId:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
