package engine

import (
	"context"

	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/db/mongo"
	"gopkg.in/mgo.v2"
)

//==============================================================================

// EnsureIndex creates an index on opts.Table. indexes is "a,b", a list of
// field names or a field to direction mapping; see IndexKey.
func (e *Engine) EnsureIndex(ctx context.Context, indexes interface{}, unique bool, opts mgoquery.QueryOptions) error {
	rid := requestID()
	e.Log(rid, "EnsureIndex", "Started : Table[%s]", opts.Table)

	key := IndexKey(indexes)

	var err error
	switch {
	case opts.Table == "":
		err = mgoquery.Invalid("EnsureIndex", "table is empty")
	case len(key) == 0:
		err = mgoquery.Invalid("EnsureIndex", "index fields are empty")
	}
	if err != nil {
		e.Error(rid, "EnsureIndex", err, "Completed")
		return err
	}

	index := mgo.Index{Key: key, Unique: unique}

	err = e.run(ctx, rid, opts, func(c *mongo.Conn) error {
		e.Log(rid, "EnsureIndex", "DBAction : db.%s.createIndex(%v, {unique: %t})", opts.Table, key, unique)
		return c.C(opts.Table).EnsureIndex(index)
	})
	if err != nil {
		e.Error(rid, "EnsureIndex", err, "Completed")
		return err
	}

	e.Log(rid, "EnsureIndex", "Completed")
	return nil
}

// Indexes lists the indexes of opts.Table.
func (e *Engine) Indexes(ctx context.Context, opts mgoquery.QueryOptions) ([]mgo.Index, error) {
	rid := requestID()
	e.Log(rid, "Indexes", "Started : Table[%s]", opts.Table)

	if opts.Table == "" {
		err := mgoquery.Invalid("Indexes", "table is empty")
		e.Error(rid, "Indexes", err, "Completed")
		return nil, err
	}

	var indexes []mgo.Index
	err := e.run(ctx, rid, opts, func(c *mongo.Conn) error {
		e.Log(rid, "Indexes", "DBAction : db.%s.getIndexes()", opts.Table)

		var err error
		indexes, err = c.C(opts.Table).Indexes()
		return err
	})
	if err != nil {
		e.Error(rid, "Indexes", err, "Completed")
		return nil, err
	}

	e.Log(rid, "Indexes", "Completed : Indexes[%d]", len(indexes))
	return indexes, nil
}
