// Package http provides a JSON over http front for the model facade, which
// allows tying the query layer into a http request-response server.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/logs"
	"github.com/influx6/mgoquery/metrics"
	"github.com/influx6/mgoquery/model"
	"github.com/pborman/uuid"
)

// Headers set on every response.
const (
	VersionHeader   = "X-Mgoquery-Version"
	RequestIDHeader = "X-Mgoquery-Request-ID"

	Version = "mgoquery.v1.0"
)

// ShutdownTimeout is the wait given to in-flight requests once the server
// context ends.
var ShutdownTimeout = 5 * time.Second

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID returns the request id attached to ctx.
func RequestID(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey).(string)
	return rid
}

//==============================================================================

// Server serves model operations over http.
type Server struct {
	mgoquery.EventLog
	base   *model.Model
	ops    *metrics.Operations
	router chi.Router
}

// New returns a new Server backed by base. Each request derives its own
// model for the routed collection. ops may be nil.
func New(l mgoquery.EventLog, base *model.Model, ops *metrics.Operations) *Server {
	if l == nil {
		l = logs.Discard
	}

	s := Server{
		EventLog: l,
		base:     base,
		ops:      ops,
		router:   chi.NewRouter(),
	}

	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestID)

	s.router.Head("/", s.capabilities)

	s.router.Route("/{table}", func(r chi.Router) {
		r.Post("/", s.handle("Add", add))
		r.Post("/select", s.handle("Select", selectRecords))
		r.Post("/page", s.handle("CountSelect", page))
		r.Post("/find", s.handle("Find", find))
		r.Post("/update", s.handle("Update", update))
		r.Post("/delete", s.handle("Delete", remove))
		r.Post("/count", s.handle("Count", count))
		r.Post("/sum", s.handle("Sum", sum))
		r.Post("/aggregate", s.handle("Aggregate", aggregate))
		r.Get("/indexes", s.handle("Indexes", indexes))
		r.Put("/indexes", s.handle("EnsureIndex", ensureIndex))
	})

	return &s
}

// Mount attaches another handler, such as a metrics endpoint, under pattern.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.Handle(pattern, h)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe runs a http server on addr until ctx ends, then shuts it
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.Log("server", "ListenAndServe", "Started : Addr[%s]", addr)

	srv := http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	failed := make(chan error, 1)
	go func() {
		s.Log("server", "ListenAndServe", "Info : Listening on: %s", addr)
		failed <- srv.ListenAndServe()
	}()

	select {
	case err := <-failed:
		s.Error("server", "ListenAndServe", err, "Completed")
		return err

	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdown); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.Error("server", "ListenAndServe", err, "Completed")
		return err
	}

	s.Log("server", "ListenAndServe", "Completed")
	return nil
}

// capabilities answers HEAD requests with the accepted methods.
func (s *Server) capabilities(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Methods", "HEAD, GET, POST, PUT")
	w.Header().Set("Accepts", "application/json")
	w.WriteHeader(http.StatusOK)
}

// requestID tags a request with the caller supplied id, from the header or
// the rid parameter, or a generated one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(RequestIDHeader)
		if rid == "" {
			rid = r.URL.Query().Get("rid")
		}
		if rid == "" {
			rid = uuid.New()
		}

		w.Header().Set(VersionHeader, Version)
		w.Header().Set(RequestIDHeader, rid)

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, rid)))
	})
}
