package engine

import (
	"context"

	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/db/mongo"
	"github.com/influx6/mgoquery/parser"
	"github.com/influx6/mgoquery/utils"
	"gopkg.in/mgo.v2/bson"
	"gopkg.in/mgo.v2/txn"
)

//==============================================================================

// DefaultTxnCollection names the collection the transaction runner keeps its
// documents in. The runner also uses "<name>.stash".
const DefaultTxnCollection = "mgoquery_txns"

// Commit runs every write queued in t through the mgo/txn runner. Either all
// of them apply or none do, in which case mgoquery.ErrTxnAborted is
// returned. A Txn commits once.
func (e *Engine) Commit(ctx context.Context, t *mgoquery.Txn) error {
	rid := requestID()
	e.Log(rid, "Commit", "Started : Txn[%s]", t.ID.Hex())

	ops, err := t.Seal()
	if err != nil {
		e.Error(rid, "Commit", err, "Completed")
		return err
	}

	if len(ops) == 0 {
		e.Log(rid, "Commit", "Completed : Ops[0]")
		return nil
	}

	err = e.run(ctx, rid, mgoquery.QueryOptions{}, func(c *mongo.Conn) error {
		e.Log(rid, "Commit", "DBAction : db.%s.run(%s)", e.txnCollection(), utils.Query.Query(ops))
		return txn.NewRunner(c.C(e.txnCollection())).Run(ops, t.ID, nil)
	})
	if err != nil {
		e.Error(rid, "Commit", err, "Completed")
		return err
	}

	e.Log(rid, "Commit", "Completed : Ops[%d]", len(ops))
	return nil
}

func (e *Engine) txnCollection() string {
	if e.TxnCollection == "" {
		return DefaultTxnCollection
	}

	return e.TxnCollection
}

// queue records ops into t in place of running them.
func (e *Engine) queue(rid, op string, t *mgoquery.Txn, ops []txn.Op) error {
	e.Log(rid, op, "Info : Queued[%d] : Txn[%s]", len(ops), t.ID.Hex())
	return t.Queue(ops...)
}

// insertOps returns one insert per document, asserting the record is new.
func insertOps(table string, docs ...bson.M) []txn.Op {
	ops := make([]txn.Op, len(docs))
	for i, doc := range docs {
		ops[i] = txn.Op{C: table, Id: doc[parser.IDField], Assert: txn.DocMissing, Insert: doc}
	}

	return ops
}

// txnTargets returns the identifiers a queued update or delete addresses.
// The runner works on single documents by _id, so the filter must hold the
// _id field alone, as a value or an {$in: [...]} list. A single record window
// keeps the first identifier.
func txnTargets(op, pk string, where interface{}, single bool) ([]interface{}, error) {
	if pk != parser.IDField {
		return nil, mgoquery.Invalid(op, "transactional writes need _id as the identifier field")
	}

	sel, ok := where.(bson.M)
	if !ok || len(sel) != 1 {
		return nil, mgoquery.Invalid(op, "transactional writes must select records by _id only")
	}

	value, ok := sel[pk]
	if !ok {
		return nil, mgoquery.Invalid(op, "transactional writes must select records by _id only")
	}

	ids := []interface{}{value}
	if cond, ok := value.(bson.M); ok {
		in, ok := cond["$in"].([]interface{})
		if !ok || len(cond) != 1 || len(in) == 0 {
			return nil, mgoquery.Invalid(op, "transactional writes take an _id value or an $in list")
		}
		ids = in
	}

	if single {
		ids = ids[:1]
	}

	return ids, nil
}
