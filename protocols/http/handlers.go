package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/model"
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

// maxBody caps the size of a request body.
const maxBody = 4 << 20

//==============================================================================

// Query defines the JSON body accepted by every operation. Option fields
// keep the loose shapes the model accepts.
type Query struct {
	Where        interface{} `json:"where,omitempty"`
	Field        interface{} `json:"field,omitempty"`
	FieldReverse bool        `json:"fieldReverse,omitempty"`
	Order        interface{} `json:"order,omitempty"`
	Limit        interface{} `json:"limit,omitempty"`
	Page         int         `json:"page,omitempty"`
	PageSize     int         `json:"pagesize,omitempty"`
	PageFlag     string      `json:"pageFlag,omitempty"`
	Group        interface{} `json:"group,omitempty"`
	Distinct     interface{} `json:"distinct,omitempty"`
	Upsert       bool        `json:"upsert,omitempty"`

	// Data is the record or list of records for add and update.
	Data interface{} `json:"data,omitempty"`

	// Pipeline is the aggregation pipeline.
	Pipeline []interface{} `json:"pipeline,omitempty"`

	// Indexes and Unique describe an index to create.
	Indexes interface{} `json:"indexes,omitempty"`
	Unique  bool        `json:"unique,omitempty"`
}

// apply hands the option fields to m.
func (q Query) apply(m *model.Model) {
	m.Where(q.Where)

	if q.FieldReverse {
		m.FieldReverse(q.Field)
	} else {
		m.Field(q.Field)
	}

	if q.Order != nil {
		m.Order(q.Order)
	}

	if q.Page > 0 {
		m.Page(q.Page, q.PageSize)
	} else {
		m.Limit(q.Limit)
	}

	if q.Group != nil {
		m.Group(q.Group)
	}

	if q.Distinct != nil {
		m.Distinct(q.Distinct)
	}

	m.Upsert(q.Upsert)
}

// flag returns the page flag named by the query.
func (q Query) flag() model.PageFlag {
	switch strings.ToLower(q.PageFlag) {
	case "first":
		return model.PageFirst
	case "last":
		return model.PageLast
	default:
		return model.PageKeep
	}
}

//==============================================================================

// BadRequestError is returned for bodies that can not be read as a Query.
type BadRequestError struct {
	Message string
}

// Error implements the error interface.
func (e *BadRequestError) Error() string {
	return e.Message
}

// reply defines the response envelope.
type reply struct {
	OK      bool        `json:"ok"`
	Result  interface{} `json:"result"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// operation runs against the model derived for the routed collection.
type operation func(ctx context.Context, m *model.Model, q Query) (interface{}, error)

// handle wraps op into a handler which decodes the body, applies the query
// options and writes the reply.
func (s *Server) handle(name string, op operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rid := RequestID(r.Context())
		table := chi.URLParam(r, "table")

		s.Log(rid, name, "Started : Table[%s]", table)

		result, err := s.run(r, table, op)
		if err != nil {
			class, status := classify(err)
			s.ops.Observe(name, class, time.Since(start))
			s.Error(rid, name, err, "Completed")

			writeJSON(w, status, reply{Error: class, Message: err.Error()})
			return
		}

		s.ops.Observe(name, "ok", time.Since(start))
		s.Log(rid, name, "Completed")

		writeJSON(w, http.StatusOK, reply{OK: true, Result: result})
	}
}

func (s *Server) run(r *http.Request, table string, op operation) (interface{}, error) {
	var q Query
	if err := decode(r, &q); err != nil {
		return nil, err
	}

	m := s.base.Model(table)
	q.apply(m)

	return op(r.Context(), m, q)
}

// decode reads the body into q. An empty body is an empty query.
func decode(r *http.Request, q *Query) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return &BadRequestError{Message: "failed to read request body"}
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, q); err != nil {
		return &BadRequestError{Message: "invalid JSON: " + err.Error()}
	}

	return nil
}

// classify maps an error to its reply class and status code.
func classify(err error) (string, int) {
	var bad *BadRequestError

	switch {
	case errors.As(err, &bad):
		return "bad_request", http.StatusBadRequest
	case mgoquery.IsValidation(err):
		return "validation", http.StatusBadRequest
	case errors.Is(err, mgoquery.ErrPoolTimeout):
		return "timeout", http.StatusServiceUnavailable
	case errors.Is(err, mgoquery.ErrPoolClosed):
		return "closed", http.StatusServiceUnavailable
	case errors.Is(err, mgo.ErrNotFound):
		return "not_found", http.StatusNotFound
	case mgo.IsDup(err):
		return "duplicate", http.StatusConflict
	default:
		return "internal", http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, r reply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(r)
}

//==============================================================================

// records returns data as a list of records. A single record becomes a list
// of one.
func records(data interface{}) ([]bson.M, bool, error) {
	switch d := data.(type) {
	case map[string]interface{}:
		return []bson.M{d}, false, nil
	case []interface{}:
		list := make([]bson.M, len(d))
		for i, item := range d {
			record, ok := item.(map[string]interface{})
			if !ok {
				return nil, true, &BadRequestError{Message: "data must be a record or a list of records"}
			}
			list[i] = record
		}
		return list, true, nil
	default:
		return nil, false, &BadRequestError{Message: "data must be a record or a list of records"}
	}
}

func add(ctx context.Context, m *model.Model, q Query) (interface{}, error) {
	list, many, err := records(q.Data)
	if err != nil {
		return nil, err
	}

	if many {
		return m.AddMany(ctx, list)
	}

	return m.Add(ctx, list[0])
}

func selectRecords(ctx context.Context, m *model.Model, q Query) (interface{}, error) {
	return m.Select(ctx)
}

func page(ctx context.Context, m *model.Model, q Query) (interface{}, error) {
	return m.CountSelect(ctx, q.flag())
}

func find(ctx context.Context, m *model.Model, q Query) (interface{}, error) {
	return m.Find(ctx)
}

func update(ctx context.Context, m *model.Model, q Query) (interface{}, error) {
	list, many, err := records(q.Data)
	if err != nil {
		return nil, err
	}

	if many {
		return m.UpdateMany(ctx, list)
	}

	return m.Update(ctx, list[0])
}

func remove(ctx context.Context, m *model.Model, q Query) (interface{}, error) {
	return m.Delete(ctx)
}

func count(ctx context.Context, m *model.Model, q Query) (interface{}, error) {
	return m.Count(ctx)
}

func sum(ctx context.Context, m *model.Model, q Query) (interface{}, error) {
	field, _ := q.Field.(string)
	return m.Sum(ctx, field)
}

func aggregate(ctx context.Context, m *model.Model, q Query) (interface{}, error) {
	if len(q.Pipeline) == 0 {
		return nil, &BadRequestError{Message: "pipeline is required"}
	}

	return m.Aggregate(ctx, q.Pipeline)
}

func indexes(ctx context.Context, m *model.Model, q Query) (interface{}, error) {
	return m.Indexes(ctx)
}

func ensureIndex(ctx context.Context, m *model.Model, q Query) (interface{}, error) {
	if err := m.CreateIndex(ctx, q.Indexes, q.Unique); err != nil {
		return nil, err
	}

	return true, nil
}
