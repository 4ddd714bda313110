// Package mongo provides the MongoDB connection factory: configuration,
// connection string composition, a lazily dialed master session and the
// bounded pool of session copies every operation leases from.
package mongo

import (
	"context"
	"errors"
	"sync"

	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/db"
	"github.com/influx6/mgoquery/db/pool"
	"github.com/influx6/mgoquery/logs"
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/txn"
)

//==============================================================================

// ErrInvalidSession is returned when a connection carries no session.
var ErrInvalidSession = errors.New("Invalid Session")

// Conn defines a single pooled connection: a session copy bound to the
// configured database.
type Conn struct {
	Session *mgo.Session
	DB      *mgo.Database
}

// C returns the collection with the giving name.
func (c *Conn) C(name string) *mgo.Collection {
	return c.DB.C(name)
}

// Ping verifies the connection is still alive.
func (c *Conn) Ping() error {
	if c.Session == nil {
		return ErrInvalidSession
	}

	return c.Session.Ping()
}

// Broken reports whether err leaves the session that produced it unusable.
// Not-found, server side query and write errors, aborted transactions and
// cancellations keep the session. Anything else, such as a dropped socket,
// does not: an mgo session holds on to a dead socket until refreshed.
func Broken(err error) bool {
	if err == nil || err == mgo.ErrNotFound || err == mgo.ErrCursor {
		return false
	}

	if mgoquery.IsValidation(err) || errors.Is(err, txn.ErrAborted) {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var qerr *mgo.QueryError
	var lerr *mgo.LastError
	var berr *mgo.BulkError
	if errors.As(err, &qerr) || errors.As(err, &lerr) || errors.As(err, &berr) {
		return false
	}

	return true
}

// Close closes the session of this connection.
func (c *Conn) Close() {
	if c.Session != nil {
		c.Session.Close()
	}
}

//==============================================================================

var _ db.Db = (*Mongnod)(nil)

// Mongnod defines a mongo connection manager for a single Config. It dials
// one master session on first use and leases copies of it through a bounded
// pool.
type Mongnod struct {
	mgoquery.EventLog
	Config

	ml     sync.Mutex
	master *mgo.Session

	pool *pool.Pool[*Conn]
}

// New returns a new Mongnod instance. No connection is made until the first
// lease.
func New(l mgoquery.EventLog, c Config) *Mongnod {
	if l == nil {
		l = logs.Discard
	}

	m := Mongnod{
		EventLog: l,
		Config:   c,
	}

	cfg := pool.Config[*Conn]{
		Create:         m.create,
		Destroy:        (*Conn).Close,
		MaxSize:        c.MaxPoolSize(),
		MinSize:        pool.DefaultMinSize,
		AcquireTimeout: c.AcquireTimeout(),
		Broken:         Broken,
	}

	if c.ValidateOnRelease {
		cfg.Validate = (*Conn).Ping
	}

	m.pool = pool.New(cfg)
	return &m
}

// Pool returns the connection pool of this manager.
func (m *Mongnod) Pool() *pool.Pool[*Conn] {
	return m.pool
}

// AutoRelease leases a connection, runs fn and releases it on every path.
func (m *Mongnod) AutoRelease(ctx context.Context, fn func(*Conn) error) error {
	return m.pool.AutoRelease(ctx, fn)
}

// Session returns a new session copy outside of the pool. It is meant to be
// shared across several operations through QueryOptions.Session; the caller
// owns it and must close it.
func (m *Mongnod) Session(context interface{}) (*mgo.Session, error) {
	ms, err := m.dial(context)
	if err != nil {
		return nil, err
	}

	return ms.Copy(), nil
}

// Shutdown drains the pool and closes the master session.
func (m *Mongnod) Shutdown(context interface{}) {
	m.Log(context, "Shutdown", "Started : Db[%s]", m.Database)

	m.pool.DrainAndClear()

	m.ml.Lock()
	if m.master != nil {
		m.master.Close()
		m.master = nil
	}
	m.ml.Unlock()

	m.Log(context, "Shutdown", "Completed")
}

//==============================================================================

// create builds a new pooled connection from the master session.
func (m *Mongnod) create(ctx context.Context) (*Conn, error) {
	ms, err := m.dial("mongnod.create")
	if err != nil {
		return nil, err
	}

	ses := ms.Copy()
	return &Conn{Session: ses, DB: ses.DB(m.Database)}, nil
}

// dial returns the master session, connecting on first use.
func (m *Mongnod) dial(context interface{}) (*mgo.Session, error) {
	m.ml.Lock()
	defer m.ml.Unlock()

	if m.master != nil {
		return m.master, nil
	}

	m.Log(context, "dial", "Started : Db[%s] : Addrs%v", m.Database, m.Addrs())

	if m.ShouldLogConnect() {
		m.Log(context, "dial", "Info : Connect[%s]", m.ConnectionString(true))
	}

	ses, err := mgo.DialWithInfo(m.DialInfo())
	if err != nil {
		m.Error(context, "dial", err, "Completed")
		return nil, err
	}

	ses.SetMode(mgo.Monotonic, true)
	m.master = ses

	m.Log(context, "dial", "Completed")
	return ses, nil
}
