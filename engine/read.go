package engine

import (
	"context"
	"strings"

	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/db/mongo"
	"github.com/influx6/mgoquery/utils"
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

//==============================================================================

// Select returns the records matching opts. The filter narrows the set, the
// projection trims fields, then ordering and the window apply. With a
// distinct field the call returns one {field: value} record per distinct
// value and ignores ordering and the window.
func (e *Engine) Select(ctx context.Context, opts mgoquery.QueryOptions) ([]bson.M, error) {
	rid := requestID()
	e.Log(rid, "Select", "Started : Table[%s]", opts.Table)

	p, err := newPlan("Select", e.pk(), opts)
	if err != nil {
		e.Error(rid, "Select", err, "Completed")
		return nil, err
	}

	if p.distinct != "" {
		values, err := e.distinct(ctx, rid, p, opts)
		if err != nil {
			e.Error(rid, "Select", err, "Completed")
			return nil, err
		}

		records := make([]bson.M, len(values))
		for i, value := range values {
			records[i] = bson.M{p.distinct: value}
		}

		e.Log(rid, "Select", "Completed : Distinct[%d]", len(records))
		return records, nil
	}

	records, err := e.find(ctx, rid, p, opts)
	if err != nil {
		e.Error(rid, "Select", err, "Completed")
		return nil, err
	}

	e.Log(rid, "Select", "Completed : Records[%d]", len(records))
	return records, nil
}

// Distinct returns the distinct values of the field named by opts.Distinct.
func (e *Engine) Distinct(ctx context.Context, opts mgoquery.QueryOptions) ([]interface{}, error) {
	rid := requestID()
	e.Log(rid, "Distinct", "Started : Table[%s]", opts.Table)

	p, err := newPlan("Distinct", e.pk(), opts)
	if err == nil && p.distinct == "" {
		err = mgoquery.Invalid("Distinct", "distinct field is empty")
	}
	if err != nil {
		e.Error(rid, "Distinct", err, "Completed")
		return nil, err
	}

	values, err := e.distinct(ctx, rid, p, opts)
	if err != nil {
		e.Error(rid, "Distinct", err, "Completed")
		return nil, err
	}

	e.Log(rid, "Distinct", "Completed")
	return values, nil
}

// Find returns the first record matching opts, or an empty record when
// nothing matches.
func (e *Engine) Find(ctx context.Context, opts mgoquery.QueryOptions) (bson.M, error) {
	rid := requestID()
	e.Log(rid, "Find", "Started : Table[%s]", opts.Table)

	p, err := newPlan("Find", e.pk(), opts)
	if err != nil {
		e.Error(rid, "Find", err, "Completed")
		return nil, err
	}

	p.distinct = ""
	p.window.Count = 1

	records, err := e.find(ctx, rid, p, opts)
	if err != nil {
		e.Error(rid, "Find", err, "Completed")
		return nil, err
	}

	if len(records) == 0 {
		e.Log(rid, "Find", "Completed : No Record")
		return bson.M{}, nil
	}

	e.Log(rid, "Find", "Completed")
	return records[0], nil
}

func (e *Engine) find(ctx context.Context, rid string, p plan, opts mgoquery.QueryOptions) ([]bson.M, error) {
	records := []bson.M{}

	err := e.run(ctx, rid, opts, func(c *mongo.Conn) error {
		e.Log(rid, "find", "DBAction : db.%s.find(%s, %s).sort(%s).skip(%d).limit(%d)", p.table, utils.Query.Query(p.where), utils.Query.Query(p.field), p.sort.String(), p.window.Offset, p.window.Count)

		q := c.C(p.table).Find(p.where)
		if len(p.field) != 0 {
			q = q.Select(p.field)
		}

		if !p.sort.IsZero() {
			q = q.Sort(p.sort.Fields()...)
		}

		if p.window.Offset > 0 {
			q = q.Skip(p.window.Offset)
		}

		if p.window.Count > 0 {
			q = q.Limit(p.window.Count)
		}

		return q.All(&records)
	})

	return records, err
}

func (e *Engine) distinct(ctx context.Context, rid string, p plan, opts mgoquery.QueryOptions) ([]interface{}, error) {
	values := []interface{}{}

	err := e.run(ctx, rid, opts, func(c *mongo.Conn) error {
		e.Log(rid, "distinct", "DBAction : db.%s.distinct(%q, %s)", p.table, p.distinct, utils.Query.Query(p.where))
		return c.C(p.table).Find(p.where).Distinct(p.distinct, &values)
	})

	return values, err
}

//==============================================================================

// Count returns the number of records matching opts. Without a group the
// result carries the total; with one it carries the raw {_id, total} rows.
func (e *Engine) Count(ctx context.Context, opts mgoquery.QueryOptions) (mgoquery.CountResult, error) {
	rid := requestID()
	e.Log(rid, "Count", "Started : Table[%s]", opts.Table)

	var res mgoquery.CountResult

	p, err := newPlan("Count", e.pk(), opts)
	if err != nil {
		e.Error(rid, "Count", err, "Completed")
		return res, err
	}

	rows, err := e.pipe(ctx, rid, p.table, countPipeline(p), opts)
	if err != nil {
		e.Error(rid, "Count", err, "Completed")
		return res, err
	}

	if len(p.group) != 0 {
		res.Groups = rows
	} else if len(rows) != 0 {
		res.Total = utils.ToInt(rows[0]["total"])
	}

	e.Log(rid, "Count", "Completed : Total[%d] : Groups[%d]", res.Total, len(res.Groups))
	return res, nil
}

// Sum returns the sum of field over the records matching opts. Without a
// group the result carries the total, 0 when nothing matches; with one it
// carries a {group, total} pair per group key.
func (e *Engine) Sum(ctx context.Context, field string, opts mgoquery.QueryOptions) (mgoquery.SumResult, error) {
	rid := requestID()
	e.Log(rid, "Sum", "Started : Table[%s] : Field[%s]", opts.Table, field)

	var res mgoquery.SumResult

	field = strings.TrimSpace(field)
	if field == "" {
		err := mgoquery.Invalid("Sum", "sum field is empty")
		e.Error(rid, "Sum", err, "Completed")
		return res, err
	}

	p, err := newPlan("Sum", e.pk(), opts)
	if err != nil {
		e.Error(rid, "Sum", err, "Completed")
		return res, err
	}

	rows, err := e.pipe(ctx, rid, p.table, sumPipeline(p, field), opts)
	if err != nil {
		e.Error(rid, "Sum", err, "Completed")
		return res, err
	}

	if len(p.group) != 0 {
		res.Groups = make([]mgoquery.GroupTotal, len(rows))
		for i, row := range rows {
			total, _ := utils.ToFloat(row["total"])
			res.Groups[i] = mgoquery.GroupTotal{Group: row["_id"], Total: total}
		}
	} else if len(rows) != 0 {
		res.Total, _ = utils.ToFloat(rows[0]["total"])
	}

	e.Log(rid, "Sum", "Completed : Total[%v] : Groups[%d]", res.Total, len(res.Groups))
	return res, nil
}

// Aggregate runs the giving pipeline against opts.Table and returns every
// result row.
func (e *Engine) Aggregate(ctx context.Context, pipeline interface{}, opts mgoquery.QueryOptions) ([]bson.M, error) {
	rid := requestID()
	e.Log(rid, "Aggregate", "Started : Table[%s]", opts.Table)

	if opts.Table == "" {
		err := mgoquery.Invalid("Aggregate", "table is empty")
		e.Error(rid, "Aggregate", err, "Completed")
		return nil, err
	}

	rows, err := e.pipe(ctx, rid, opts.Table, pipeline, opts)
	if err != nil {
		e.Error(rid, "Aggregate", err, "Completed")
		return nil, err
	}

	e.Log(rid, "Aggregate", "Completed : Rows[%d]", len(rows))
	return rows, nil
}

func (e *Engine) pipe(ctx context.Context, rid string, table string, pipeline interface{}, opts mgoquery.QueryOptions) ([]bson.M, error) {
	rows := []bson.M{}

	err := e.run(ctx, rid, opts, func(c *mongo.Conn) error {
		e.Log(rid, "pipe", "DBAction : db.%s.aggregate(%s)", table, utils.Query.Query(pipeline))
		return c.C(table).Pipe(pipeline).AllowDiskUse().All(&rows)
	})

	return rows, err
}

//==============================================================================

// MapReduce runs job over the records matching opts. Inline jobs return
// their rows; jobs with an output collection return none and report through
// the info.
func (e *Engine) MapReduce(ctx context.Context, job *mgo.MapReduce, opts mgoquery.QueryOptions) ([]bson.M, *mgo.MapReduceInfo, error) {
	rid := requestID()
	e.Log(rid, "MapReduce", "Started : Table[%s]", opts.Table)

	if job == nil || job.Map == "" || job.Reduce == "" {
		err := mgoquery.Invalid("MapReduce", "map and reduce functions are required")
		e.Error(rid, "MapReduce", err, "Completed")
		return nil, nil, err
	}

	p, err := newPlan("MapReduce", e.pk(), opts)
	if err != nil {
		e.Error(rid, "MapReduce", err, "Completed")
		return nil, nil, err
	}

	var rows []bson.M
	var info *mgo.MapReduceInfo

	err = e.run(ctx, rid, opts, func(c *mongo.Conn) error {
		e.Log(rid, "MapReduce", "DBAction : db.%s.mapReduce(%s)", p.table, utils.Query.Query(p.where))

		var err error
		if job.Out == nil {
			info, err = c.C(p.table).Find(p.where).MapReduce(job, &rows)
			return err
		}

		info, err = c.C(p.table).Find(p.where).MapReduce(job, nil)
		return err
	})
	if err != nil {
		e.Error(rid, "MapReduce", err, "Completed")
		return nil, nil, err
	}

	e.Log(rid, "MapReduce", "Completed")
	return rows, info, nil
}
