package engine

import (
	"context"

	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/db/mongo"
	"github.com/influx6/mgoquery/utils"
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/txn"
)

//==============================================================================

// Update applies data to the records matching opts and returns the number of
// records modified, counting an upserted record as one. Every match is
// updated unless the window asks for exactly one record. data is wrapped
// under $set unless all of its keys are update operators.
//
// A single record update counts as 1 whenever a record matched, even if its
// values were already those of data: mgo reports no modified count for it.
//
// With opts.Txn the update is queued per _id and the count is the number of
// records queued.
func (e *Engine) Update(ctx context.Context, data map[string]interface{}, opts mgoquery.QueryOptions) (int, error) {
	rid := requestID()
	e.Log(rid, "Update", "Started : Table[%s]", opts.Table)

	if len(data) == 0 {
		err := mgoquery.Invalid("Update", "update data is empty")
		e.Error(rid, "Update", err, "Completed")
		return 0, err
	}

	p, err := newPlan("Update", e.pk(), opts)
	if err != nil {
		e.Error(rid, "Update", err, "Completed")
		return 0, err
	}

	doc := updateDocument(data)
	multi := !p.window.Single()

	if opts.Txn != nil {
		n, err := e.queueUpdate(rid, p, opts, doc)
		if err != nil {
			e.Error(rid, "Update", err, "Completed")
			return 0, err
		}

		e.Log(rid, "Update", "Completed : Queued[%d]", n)
		return n, nil
	}

	var n int
	err = e.run(ctx, rid, opts, func(c *mongo.Conn) error {
		e.Log(rid, "Update", "DBAction : db.%s.update(%s, %s, {multi: %t, upsert: %t})", p.table, utils.Query.Query(p.where), utils.Query.Query(doc), multi, opts.Upsert)

		col := c.C(p.table)

		if !multi {
			if opts.Upsert {
				info, err := col.Upsert(p.where, doc)
				if err != nil {
					return err
				}
				n = changed(info)
				return nil
			}

			switch err := col.Update(p.where, doc); err {
			case nil:
				n = 1
			case mgo.ErrNotFound:
				n = 0
			default:
				return err
			}
			return nil
		}

		info, err := col.UpdateAll(p.where, doc)
		if err != nil {
			return err
		}
		n = changed(info)

		// UpdateAll never upserts; create the record when nothing matched.
		if opts.Upsert && info.Matched == 0 {
			info, err := col.Upsert(p.where, doc)
			if err != nil {
				return err
			}
			n = changed(info)
		}

		return nil
	})
	if err != nil {
		e.Error(rid, "Update", err, "Completed")
		return 0, err
	}

	e.Log(rid, "Update", "Completed : Modified[%d]", n)
	return n, nil
}

// queueUpdate records one update per targeted _id into opts.Txn.
func (e *Engine) queueUpdate(rid string, p plan, opts mgoquery.QueryOptions, doc interface{}) (int, error) {
	if opts.Upsert {
		return 0, mgoquery.Invalid("Update", "upsert is not supported inside a transaction")
	}

	ids, err := txnTargets("Update", e.pk(), p.where, p.window.Single())
	if err != nil {
		return 0, err
	}

	ops := make([]txn.Op, len(ids))
	for i, id := range ids {
		ops[i] = txn.Op{C: p.table, Id: id, Assert: txn.DocExists, Update: doc}
	}

	if err := e.queue(rid, "Update", opts.Txn, ops); err != nil {
		return 0, err
	}

	return len(ids), nil
}

// changed returns the modified count of info, with an upsert counted once.
func changed(info *mgo.ChangeInfo) int {
	if info == nil {
		return 0
	}

	if info.UpsertedId != nil {
		return info.Updated + 1
	}

	return info.Updated
}

//==============================================================================

// Delete removes the records matching opts and returns how many were
// removed. Every match is removed unless the window asks for exactly one
// record. With opts.Txn the removal is queued per _id and the count is the
// number of records queued.
func (e *Engine) Delete(ctx context.Context, opts mgoquery.QueryOptions) (int, error) {
	rid := requestID()
	e.Log(rid, "Delete", "Started : Table[%s]", opts.Table)

	p, err := newPlan("Delete", e.pk(), opts)
	if err != nil {
		e.Error(rid, "Delete", err, "Completed")
		return 0, err
	}

	justOne := p.window.Single()

	if opts.Txn != nil {
		ids, err := txnTargets("Delete", e.pk(), p.where, justOne)
		if err == nil {
			ops := make([]txn.Op, len(ids))
			for i, id := range ids {
				ops[i] = txn.Op{C: p.table, Id: id, Assert: txn.DocExists, Remove: true}
			}
			err = e.queue(rid, "Delete", opts.Txn, ops)
		}
		if err != nil {
			e.Error(rid, "Delete", err, "Completed")
			return 0, err
		}

		e.Log(rid, "Delete", "Completed : Queued[%d]", len(ids))
		return len(ids), nil
	}

	var n int
	err = e.run(ctx, rid, opts, func(c *mongo.Conn) error {
		e.Log(rid, "Delete", "DBAction : db.%s.remove(%s, {justOne: %t})", p.table, utils.Query.Query(p.where), justOne)

		col := c.C(p.table)

		if justOne {
			switch err := col.Remove(p.where); err {
			case nil:
				n = 1
			case mgo.ErrNotFound:
				n = 0
			default:
				return err
			}
			return nil
		}

		info, err := col.RemoveAll(p.where)
		if err != nil {
			return err
		}

		n = info.Removed
		return nil
	})
	if err != nil {
		e.Error(rid, "Delete", err, "Completed")
		return 0, err
	}

	e.Log(rid, "Delete", "Completed : Removed[%d]", n)
	return n, nil
}
