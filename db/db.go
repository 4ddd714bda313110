// Package db holds the contracts shared by the storage backends.
package db

import "golang.org/x/sync/errgroup"

// Db is implemented by connection managers and registries so a host can
// close them uniformly.
type Db interface {
	Shutdown(context interface{})
}

// ShutdownAll shuts every giving Db down concurrently and returns once all
// of them are done.
func ShutdownAll(context interface{}, dbs ...Db) {
	var g errgroup.Group

	for _, d := range dbs {
		d := d
		g.Go(func() error {
			d.Shutdown(context)
			return nil
		})
	}

	g.Wait()
}
