package mongo

import (
	"sync"

	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/db"
	"github.com/influx6/mgoquery/logs"
)

//==============================================================================

// Registry maps a config fingerprint to its connection manager, so every
// distinct configuration owns exactly one pool. The host application creates
// a Registry at start up and calls Shutdown when done.
type Registry struct {
	log   mgoquery.EventLog
	ml    sync.Mutex
	nodes map[string]*Mongnod
}

var _ db.Db = (*Registry)(nil)

// NewRegistry returns a new empty Registry.
func NewRegistry(l mgoquery.EventLog) *Registry {
	if l == nil {
		l = logs.Discard
	}

	return &Registry{
		log:   l,
		nodes: make(map[string]*Mongnod),
	}
}

// Get returns the connection manager for the giving config, creating it on
// first request.
func (r *Registry) Get(c Config) *Mongnod {
	key := c.Fingerprint()

	r.ml.Lock()
	defer r.ml.Unlock()

	if node, ok := r.nodes[key]; ok {
		return node
	}

	node := New(r.log, c)
	r.nodes[key] = node
	return node
}

// Len returns the number of managers held.
func (r *Registry) Len() int {
	r.ml.Lock()
	defer r.ml.Unlock()
	return len(r.nodes)
}

// Shutdown drains and closes every manager and empties the registry.
func (r *Registry) Shutdown(context interface{}) {
	r.log.Log(context, "Registry.Shutdown", "Started : Pools[%d]", r.Len())

	r.ml.Lock()
	nodes := r.nodes
	r.nodes = make(map[string]*Mongnod)
	r.ml.Unlock()

	dbs := make([]db.Db, 0, len(nodes))
	for _, node := range nodes {
		dbs = append(dbs, node)
	}
	db.ShutdownAll(context, dbs...)

	r.log.Log(context, "Registry.Shutdown", "Completed")
}
