package db_test

import (
	"sync/atomic"
	"testing"

	"github.com/influx6/mgoquery/db"
	"github.com/influx6/mgoquery/tests"
)

type closer struct {
	calls *int32
}

func (c closer) Shutdown(context interface{}) {
	atomic.AddInt32(c.calls, 1)
}

// TestShutdownAll validates every Db is shut down before ShutdownAll returns.
func TestShutdownAll(t *testing.T) {
	t.Logf("Given the need to close several backends at once")
	{
		var calls int32
		dbs := []db.Db{closer{&calls}, closer{&calls}, closer{&calls}}

		db.ShutdownAll("test", dbs...)
		if got := atomic.LoadInt32(&calls); got != 3 {
			t.Fatalf("\t%s\tShould have shut down 3 backends but got %d", tests.Failed, got)
		}
		t.Logf("\t%s\tShould have shut down every backend", tests.Success)

		db.ShutdownAll("test")
		t.Logf("\t%s\tShould have returned for an empty list", tests.Success)
	}
}
