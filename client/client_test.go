package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/client"
	"github.com/influx6/mgoquery/client/data"
	"github.com/influx6/mgoquery/client/web"
	"github.com/influx6/mgoquery/db/mongo"
	"github.com/influx6/mgoquery/db/pool"
	"github.com/influx6/mgoquery/logs"
	"github.com/influx6/mgoquery/model"
	mhttp "github.com/influx6/mgoquery/protocols/http"
	"github.com/influx6/mgoquery/tests"
	"gopkg.in/mgo.v2/bson"
)

//==============================================================================

// executor answers the operations the tests reach.
type executor struct {
	model.Executor

	opts []mgoquery.QueryOptions
	err  error
}

func (x *executor) Add(ctx context.Context, data map[string]interface{}, opts mgoquery.QueryOptions) (string, error) {
	x.opts = append(x.opts, opts)
	return "id-1", x.err
}

func (x *executor) Select(ctx context.Context, opts mgoquery.QueryOptions) ([]bson.M, error) {
	x.opts = append(x.opts, opts)
	if x.err != nil {
		return nil, x.err
	}
	return []bson.M{{"name": "a"}, {"name": "b"}}, nil
}

func (x *executor) Count(ctx context.Context, opts mgoquery.QueryOptions) (mgoquery.CountResult, error) {
	x.opts = append(x.opts, opts)
	return mgoquery.CountResult{Total: 2}, x.err
}

// recorder keeps the requests handed to the http transport.
type recorder struct {
	requests []data.Request
}

func (r *recorder) Do(ctx context.Context, req data.Request) (data.Reply, error) {
	r.requests = append(r.requests, req)
	return web.HTTP.Do(ctx, req)
}

func newServer(x *executor) *httptest.Server {
	base := model.New("", x, mongo.Config{Prefix: "think_"})
	return httptest.NewServer(mhttp.New(logs.Discard, base, nil))
}

//==============================================================================

// TestClient validates operations sent through the client.
func TestClient(t *testing.T) {
	t.Logf("Given a running server")
	{
		ctx := context.Background()

		var x executor
		srv := newServer(&x)
		defer srv.Close()

		var rec recorder
		c := client.New(srv.URL+"/", &rec)

		t.Logf("\tWhen pinging the server")
		{
			version, err := c.Ping(ctx)
			if err != nil || version != mhttp.Version {
				t.Fatalf("\t%s\tShould have read the protocol version: %q %v", tests.Failed, version, err)
			}
			t.Logf("\t%s\tShould have read the protocol version", tests.Success)
		}

		t.Logf("\tWhen selecting with options")
		{
			records, err := c.Table("user").Where(bson.M{"name": "a"}).Limit(5).Order("name DESC").Select(ctx)
			if err != nil || len(records) != 2 || records[1]["name"] != "b" {
				t.Fatalf("\t%s\tShould have returned the records: %v %v", tests.Failed, records, err)
			}
			t.Logf("\t%s\tShould have returned the records", tests.Success)

			opts := x.opts[len(x.opts)-1]
			if opts.Table != "think_user" || !reflect.DeepEqual(opts.Where, bson.M{"name": "a"}) || opts.Limit != 5.0 || opts.Order != "name DESC" {
				t.Fatalf("\t%s\tShould have carried the options: %+v", tests.Failed, opts)
			}
			t.Logf("\t%s\tShould have carried the options", tests.Success)

			last := rec.requests[len(rec.requests)-1]
			if last.RequestID == "" || last.Endpoint != srv.URL+"/user/select" {
				t.Fatalf("\t%s\tShould have tagged the request: %+v", tests.Failed, last)
			}
			t.Logf("\t%s\tShould have tagged the request", tests.Success)
		}

		t.Logf("\tWhen reusing a request")
		{
			r := c.Table("user").Where(bson.M{"name": "a"})
			r.Count(ctx)

			res, err := r.Count(ctx)
			if err != nil || res.Total != 2 || x.opts[len(x.opts)-1].Where != nil {
				t.Fatalf("\t%s\tShould have cleared the options after use: %+v %v", tests.Failed, x.opts[len(x.opts)-1], err)
			}
			t.Logf("\t%s\tShould have cleared the options after use", tests.Success)
		}

		t.Logf("\tWhen adding a record")
		{
			id, err := c.Table("user").Add(ctx, bson.M{"name": "c"})
			if err != nil || id != "id-1" {
				t.Fatalf("\t%s\tShould have returned the id: %q %v", tests.Failed, id, err)
			}
			t.Logf("\t%s\tShould have returned the id", tests.Success)
		}
	}
}

// TestReplyErrors validates failures surfacing as local errors.
func TestReplyErrors(t *testing.T) {
	t.Logf("Given a server that fails requests")
	{
		ctx := context.Background()

		t.Logf("\tWhen the pool times out")
		{
			x := executor{err: &pool.TimeoutError{Wait: time.Second}}
			srv := newServer(&x)
			defer srv.Close()

			_, err := client.New(srv.URL, nil).Table("user").Select(ctx)

			var rerr *client.ReplyError
			if !errors.As(err, &rerr) || rerr.Status != http.StatusServiceUnavailable || rerr.RequestID == "" {
				t.Fatalf("\t%s\tShould have returned a reply error: %v", tests.Failed, err)
			}
			t.Logf("\t%s\tShould have returned a reply error", tests.Success)

			if !errors.Is(err, mgoquery.ErrPoolTimeout) {
				t.Fatalf("\t%s\tShould have matched the pool timeout: %v", tests.Failed, err)
			}
			t.Logf("\t%s\tShould have matched the pool timeout", tests.Success)
		}

		t.Logf("\tWhen adding an empty record")
		{
			var x executor
			srv := newServer(&x)
			defer srv.Close()

			_, err := client.New(srv.URL, nil).Table("user").Add(ctx, bson.M{})
			if !mgoquery.IsValidation(err) || len(x.opts) != 0 {
				t.Fatalf("\t%s\tShould have matched a validation error: %v", tests.Failed, err)
			}
			t.Logf("\t%s\tShould have matched a validation error", tests.Success)
		}
	}
}
