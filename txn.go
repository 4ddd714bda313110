package mgoquery

import (
	"errors"
	"sync"

	"gopkg.in/mgo.v2/bson"
	"gopkg.in/mgo.v2/txn"
)

//==============================================================================

// ErrTxnAborted is returned when a committed Txn could not be applied. None
// of its writes took effect.
var ErrTxnAborted = txn.ErrAborted

// ErrTxnCommitted is returned when a Txn is queued into or committed after
// its first commit.
var ErrTxnCommitted = errors.New("transaction already committed")

// Txn queues writes that apply as one unit. Writes given a Txn through
// QueryOptions.Txn are recorded instead of executed, and are run together by
// the mgo/txn runner on commit: either all of them apply or none do.
type Txn struct {
	// ID identifies the transaction document in the runner collection.
	ID bson.ObjectId

	ml        sync.Mutex
	ops       []txn.Op
	committed bool
}

// NewTxn returns a new empty Txn.
func NewTxn() *Txn {
	return &Txn{ID: bson.NewObjectId()}
}

// Queue appends ops to the transaction.
func (t *Txn) Queue(ops ...txn.Op) error {
	t.ml.Lock()
	defer t.ml.Unlock()

	if t.committed {
		return ErrTxnCommitted
	}

	t.ops = append(t.ops, ops...)
	return nil
}

// Ops returns a copy of the queued operations.
func (t *Txn) Ops() []txn.Op {
	t.ml.Lock()
	defer t.ml.Unlock()

	return append([]txn.Op(nil), t.ops...)
}

// Len returns the number of queued operations.
func (t *Txn) Len() int {
	t.ml.Lock()
	defer t.ml.Unlock()

	return len(t.ops)
}

// Seal marks the transaction committed and returns its operations. Sealing
// twice fails with ErrTxnCommitted.
func (t *Txn) Seal() ([]txn.Op, error) {
	t.ml.Lock()
	defer t.ml.Unlock()

	if t.committed {
		return nil, ErrTxnCommitted
	}

	t.committed = true
	return append([]txn.Op(nil), t.ops...), nil
}
