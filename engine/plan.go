package engine

import (
	"sort"
	"strings"

	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/parser"
	"github.com/influx6/mgoquery/utils"
	"gopkg.in/mgo.v2/bson"
)

//==============================================================================

// rawKey holds a raw filter string set through the record facade. It runs as
// a server side $where expression.
const rawKey = "_string"

// plan defines the normalized form of a QueryOptions for one operation.
type plan struct {
	table    string
	where    interface{}
	field    bson.M
	sort     mgoquery.Sort
	window   mgoquery.Window
	group    []string
	distinct string
}

// newPlan translates opts for the giving operation. Every caller mistake is
// reported here, before a connection is leased.
func newPlan(op string, pk string, opts mgoquery.QueryOptions) (plan, error) {
	var p plan

	p.table = strings.TrimSpace(opts.Table)
	if p.table == "" {
		return p, mgoquery.Invalid(op, "table is empty")
	}

	where, err := filter(op, parser.ParseWhereKey(opts.Where, pk))
	if err != nil {
		return p, err
	}

	p.where = where
	p.field = parser.ParseField(opts.Field, opts.FieldReverse)
	p.sort = parser.ParseOrder(opts.Order)
	p.window = parser.ParseLimit(opts.Limit)
	p.group = parser.ParseGroup(opts.Group)

	distinct, err := distinctField(op, parser.ParseDistinct(opts.Distinct), opts.Field, p.field)
	if err != nil {
		return p, err
	}

	p.distinct = distinct
	return p, nil
}

// filter turns a translated where tree into a single selector. A list of
// filters is ORed; a one item list is used as is.
func filter(op string, where interface{}) (interface{}, error) {
	switch w := where.(type) {
	case bson.M:
		if raw, ok := w[rawKey]; ok {
			sel := make(bson.M, len(w))
			for key, value := range w {
				sel[key] = value
			}
			delete(sel, rawKey)
			sel["$where"] = raw
			return sel, nil
		}
		return w, nil
	case bson.D:
		return w, nil
	case []interface{}:
		filters := make([]interface{}, 0, len(w))
		for _, item := range w {
			sel, err := filter(op, item)
			if err != nil {
				return nil, err
			}

			filters = append(filters, sel)
		}

		switch len(filters) {
		case 0:
			return bson.M{}, nil
		case 1:
			return filters[0], nil
		}

		return bson.M{"$or": filters}, nil
	default:
		return nil, mgoquery.Invalid(op, "where must be a mapping or a list of mappings")
	}
}

// emptyFilter returns true if sel matches every record.
func emptyFilter(sel interface{}) bool {
	return utils.IsEmpty(sel)
}

// distinctField resolves the distinct option. true picks the first projected
// field.
func distinctField(op string, distinct interface{}, raw interface{}, field bson.M) (string, error) {
	switch d := distinct.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(d), nil
	case bool:
		if !d {
			return "", nil
		}

		if names := parser.ParseGroup(raw); len(names) != 0 {
			return names[0], nil
		}

		keys := make([]string, 0, len(field))
		for key, value := range field {
			if utils.ToInt(value) != 0 {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)

		if len(keys) == 0 {
			return "", mgoquery.Invalid(op, "distinct needs a field")
		}

		return keys[0], nil
	default:
		return "", mgoquery.Invalid(op, "distinct must be a field name or true")
	}
}

//==============================================================================

// groupID returns the $group key for the giving grouping: null for the whole
// set, "$key" for one key and a {key: "$key"} mapping for several.
func groupID(group []string) interface{} {
	switch len(group) {
	case 0:
		return nil
	case 1:
		return "$" + group[0]
	}

	id := make(bson.M, len(group))
	for _, key := range group {
		id[key] = "$" + key
	}

	return id
}

// totalPipeline returns [$match?, $group, $sort?] with the giving total
// accumulator. Natural order has no meaning in a pipeline and is dropped.
func totalPipeline(p plan, total interface{}) []bson.M {
	pipeline := make([]bson.M, 0, 3)

	if !emptyFilter(p.where) {
		pipeline = append(pipeline, bson.M{"$match": p.where})
	}

	pipeline = append(pipeline, bson.M{"$group": bson.M{
		"_id":   groupID(p.group),
		"total": bson.M{"$sum": total},
	}})

	if !p.sort.IsZero() && !p.sort.Natural {
		pipeline = append(pipeline, bson.M{"$sort": p.sort.Document()})
	}

	return pipeline
}

// countPipeline returns the pipeline counting records per group.
func countPipeline(p plan) []bson.M {
	return totalPipeline(p, 1)
}

// sumPipeline returns the pipeline summing field per group.
func sumPipeline(p plan, field string) []bson.M {
	return totalPipeline(p, "$"+field)
}

//==============================================================================

// updateDocument wraps data under $set unless every top level key already is
// an update operator.
func updateDocument(data map[string]interface{}) bson.M {
	for key := range data {
		if !strings.HasPrefix(key, "$") {
			return bson.M{"$set": bson.M(data)}
		}
	}

	return bson.M(data)
}

//==============================================================================

// IndexKey returns the mgo index key for the giving index description: "a,b",
// a list of names or a field to direction mapping. Mappings are keyed in name order;
// pass a bson.D to control the order.
func IndexKey(indexes interface{}) []string {
	switch ix := indexes.(type) {
	case string, []string, []interface{}:
		return parser.ParseGroup(ix)
	case bson.D:
		keys := make([]string, 0, len(ix))
		for _, elem := range ix {
			keys = append(keys, indexDirection(elem.Name, elem.Value))
		}
		return keys
	case bson.M:
		return indexMap(ix)
	case map[string]interface{}:
		return indexMap(ix)
	case map[string]int:
		m := make(map[string]interface{}, len(ix))
		for key, value := range ix {
			m[key] = value
		}
		return indexMap(m)
	default:
		return nil
	}
}

func indexMap(m map[string]interface{}) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	keys := make([]string, 0, len(names))
	for _, name := range names {
		keys = append(keys, indexDirection(name, m[name]))
	}

	return keys
}

// indexDirection returns name in mgo form: "-name" for descending, and
// "$kind:name" for special index kinds such as text or 2dsphere.
func indexDirection(name string, value interface{}) string {
	if kind, ok := value.(string); ok {
		switch strings.ToLower(kind) {
		case "desc", "-1":
			return "-" + name
		case "asc", "1", "":
			return name
		}
		return "$" + kind + ":" + name
	}

	if fl, ok := utils.ToFloat(value); ok && fl < 0 {
		return "-" + name
	}

	return name
}
