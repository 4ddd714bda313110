// Package parser translates loose query option shapes into their native
// mgo/bson form. Every function here is pure: no I/O and no shared state.
package parser

import (
	"reflect"
	"sort"
	"strings"

	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/utils"
	"gopkg.in/mgo.v2/bson"
)

//==============================================================================

// IDField is the identifier field whose 24 character hex string values are
// coerced into bson.ObjectId values.
const IDField = "_id"

// comparison maps the caller facing comparison tokens to native operators.
// Tokens are case-sensitive.
var comparison = map[string]string{
	"EQ":    "$eq",
	"=":     "$eq",
	"NEQ":   "$ne",
	"!=":    "$ne",
	"<>":    "$ne",
	"GT":    "$gt",
	">":     "$gt",
	"EGT":   "$gte",
	">=":    "$gte",
	"LT":    "$lt",
	"<":     "$lt",
	"ELT":   "$lte",
	"<=":    "$lte",
	"OR":    "$or",
	"IN":    "$in",
	"NOTIN": "$nin",
}

// Operator returns the native operator for the giving comparison token.
func Operator(token string) (string, bool) {
	op, ok := comparison[token]
	return op, ok
}

//==============================================================================

// ParseField returns the projection for the giving field option. Strings and
// lists produce an inclusion map, or an exclusion map when reverse is true. A
// native mapping is copied as is, with every value forced to 0 under reverse.
// A nil or unknown field returns an empty map, meaning all fields.
func ParseField(field interface{}, reverse bool) bson.M {
	switch f := field.(type) {
	case string:
		return fieldList(utils.SplitList(f), reverse)
	case []string:
		return fieldList(f, reverse)
	case []interface{}:
		return fieldList(names(f), reverse)
	case bson.M:
		return fieldMap(f, reverse)
	case map[string]interface{}:
		return fieldMap(f, reverse)
	case bson.D:
		return fieldMap(f.Map(), reverse)
	default:
		if m, ok := stringMap(field); ok {
			return fieldMap(m, reverse)
		}

		if items, ok := list(field); ok {
			return fieldList(names(items), reverse)
		}

		return bson.M{}
	}
}

func fieldList(names []string, reverse bool) bson.M {
	flag := 1
	if reverse {
		flag = 0
	}

	result := make(bson.M, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		result[name] = flag
	}

	return result
}

func fieldMap(fields map[string]interface{}, reverse bool) bson.M {
	result := make(bson.M, len(fields))
	for key, value := range fields {
		if reverse {
			result[key] = 0
			continue
		}

		result[key] = value
	}

	return result
}

//==============================================================================

// ParseLimit returns the pagination window for the giving limit option.
//
// Accepted shapes are nil (no window), a number n (offset 0, count n),
// "offset,count", a two item list and mgoquery.Window. Components that can
// not be read as numbers become 0 and negatives are clamped to 0. When the
// count of an untyped shape is 0 the first component becomes the count and
// the offset is dropped, so [5] and "5" both read as "first five". A typed
// Window is taken as is, which is the only way to ask for an offset with no
// cap.
func ParseLimit(limit interface{}) mgoquery.Window {
	switch l := limit.(type) {
	case nil:
		return mgoquery.Window{}
	case mgoquery.Window:
		return mgoquery.Window{Offset: positive(l.Offset), Count: positive(l.Count)}
	case *mgoquery.Window:
		if l == nil {
			return mgoquery.Window{}
		}
		return mgoquery.Window{Offset: positive(l.Offset), Count: positive(l.Count)}
	case bool:
		return mgoquery.Window{}
	case string:
		if strings.TrimSpace(l) == "" {
			return mgoquery.Window{}
		}

		parts := strings.Split(l, ",")
		items := make([]interface{}, len(parts))
		for i, part := range parts {
			items[i] = part
		}
		return window(items)
	case []interface{}:
		return window(l)
	case []int:
		items := make([]interface{}, len(l))
		for i, n := range l {
			items[i] = n
		}
		return window(items)
	case []string:
		items := make([]interface{}, len(l))
		for i, n := range l {
			items[i] = n
		}
		return window(items)
	case [2]int:
		return window([]interface{}{l[0], l[1]})
	default:
		if items, ok := list(limit); ok {
			return window(items)
		}

		return mgoquery.Window{Count: positive(utils.ToInt(l))}
	}
}

// window collapses a loose pair into a Window.
func window(pair []interface{}) mgoquery.Window {
	var first, second interface{}
	if len(pair) > 0 {
		first = pair[0]
	}
	if len(pair) > 1 {
		second = pair[1]
	}

	skip := positive(utils.ToInt(first))
	count := positive(utils.ToInt(second))
	if count != 0 {
		return mgoquery.Window{Offset: skip, Count: count}
	}

	return mgoquery.Window{Count: skip}
}

func positive(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

//==============================================================================

// ParseOrder returns the normalized ordering for the giving order option.
//
// true and "natural" yield mgoquery.NaturalOrder. A string such as
// "id DESC,name" yields one key per item with a case-insensitive direction.
// Mappings accept booleans, numbers and direction strings as values where
// false, 0, -1, nil, "" and "desc" mean descending. Plain maps carry no order
// so their keys are sorted by name; use bson.D to keep a caller order.
func ParseOrder(order interface{}) mgoquery.Sort {
	switch o := order.(type) {
	case nil:
		return mgoquery.Sort{}
	case mgoquery.Sort:
		return o
	case bool:
		if o {
			return mgoquery.NaturalOrder
		}
		return mgoquery.Sort{}
	case string:
		return orderList(utils.SplitList(o))
	case []string:
		return orderList(o)
	case bson.D:
		keys := make([]mgoquery.SortKey, 0, len(o))
		for _, elem := range o {
			keys = append(keys, mgoquery.SortKey{Field: elem.Name, Desc: descending(elem.Value)})
		}
		return naturalKeys(keys)
	case bson.M:
		return orderMap(o)
	case map[string]interface{}:
		return orderMap(o)
	case map[string]int:
		m := make(map[string]interface{}, len(o))
		for key, value := range o {
			m[key] = value
		}
		return orderMap(m)
	case map[string]string:
		m := make(map[string]interface{}, len(o))
		for key, value := range o {
			m[key] = value
		}
		return orderMap(m)
	default:
		if m, ok := stringMap(order); ok {
			return orderMap(m)
		}

		if items, ok := list(order); ok {
			return orderList(names(items))
		}

		return mgoquery.Sort{}
	}
}

func orderList(items []string) mgoquery.Sort {
	if len(items) == 1 && items[0] == "natural" {
		return mgoquery.NaturalOrder
	}

	keys := make([]mgoquery.SortKey, 0, len(items))
	for _, item := range items {
		parts := strings.Fields(item)
		if len(parts) == 0 {
			continue
		}

		desc := len(parts) > 1 && strings.EqualFold(parts[1], "desc")
		keys = append(keys, mgoquery.SortKey{Field: parts[0], Desc: desc})
	}

	return mgoquery.Sort{Keys: keys}
}

func orderMap(m map[string]interface{}) mgoquery.Sort {
	names := make([]string, 0, len(m))
	for key := range m {
		names = append(names, key)
	}
	sort.Strings(names)

	keys := make([]mgoquery.SortKey, 0, len(names))
	for _, name := range names {
		keys = append(keys, mgoquery.SortKey{Field: name, Desc: descending(m[name])})
	}

	return naturalKeys(keys)
}

// naturalKeys folds an already native {$natural: n} ordering back into the
// sentinel so parsing stays idempotent.
func naturalKeys(keys []mgoquery.SortKey) mgoquery.Sort {
	if len(keys) == 1 && keys[0].Field == "$natural" {
		return mgoquery.NaturalOrder
	}

	return mgoquery.Sort{Keys: keys}
}

// descending reports whether a mapping value asks for descending order.
func descending(v interface{}) bool {
	switch d := v.(type) {
	case nil:
		return true
	case bool:
		return !d
	case string:
		return d == "" || strings.EqualFold(d, "desc")
	default:
		if fl, ok := utils.ToFloat(v); ok {
			return fl == 0 || fl == -1
		}
		return false
	}
}

//==============================================================================

// ParseGroup returns the grouping keys for the giving group option, keeping
// their order. nil and empty values return an empty list, meaning the whole
// set is aggregated as one group.
func ParseGroup(group interface{}) []string {
	switch g := group.(type) {
	case string:
		items := utils.SplitList(g)
		if items == nil {
			return []string{}
		}
		return items
	case []string:
		keys := make([]string, 0, len(g))
		for _, key := range g {
			if key = strings.TrimSpace(key); key != "" {
				keys = append(keys, key)
			}
		}
		return keys
	case []interface{}:
		keys := make([]string, 0, len(g))
		for _, item := range g {
			if key, ok := item.(string); ok && strings.TrimSpace(key) != "" {
				keys = append(keys, strings.TrimSpace(key))
			}
		}
		return keys
	default:
		if items, ok := list(group); ok {
			return ParseGroup(items)
		}

		return []string{}
	}
}

//==============================================================================

// ParseWhere translates a filter tree using IDField as the identifier field.
// See ParseWhereKey.
func ParseWhere(where interface{}) interface{} {
	return ParseWhereKey(where, IDField)
}

// ParseWhereKey translates a filter tree into native operators.
//
// nil returns an empty bson.M. A mapping returns a bson.M (a bson.D keeps its
// order), and a list returns a list with each item translated; the parser
// never combines list items itself. Keys found in the comparison table are
// rewritten to their operator, nested mappings and lists recurse, and a 24
// character hex string under pk (directly or inside one of its operators) is
// coerced into a bson.ObjectId. ObjectId values pass through untouched, so
// translating twice yields the same tree.
func ParseWhereKey(where interface{}, pk string) interface{} {
	if where == nil {
		return bson.M{}
	}

	return translate(where, pk, false)
}

func translate(value interface{}, pk string, inID bool) interface{} {
	switch v := value.(type) {
	case bson.ObjectId:
		return v
	case string:
		if inID && bson.IsObjectIdHex(v) {
			return bson.ObjectIdHex(v)
		}
		return v
	case bson.M:
		return translateMap(v, pk, inID)
	case map[string]interface{}:
		return translateMap(v, pk, inID)
	case bson.D:
		doc := make(bson.D, 0, len(v))
		for _, elem := range v {
			key, child := translateKey(elem.Name, pk, inID)
			doc = append(doc, bson.DocElem{Name: key, Value: translate(elem.Value, pk, child)})
		}
		return doc
	case []bson.M:
		list := make([]interface{}, len(v))
		for i, item := range v {
			list[i] = translateMap(item, pk, inID)
		}
		return list
	case []map[string]interface{}:
		list := make([]interface{}, len(v))
		for i, item := range v {
			list[i] = translateMap(item, pk, inID)
		}
		return list
	case []interface{}:
		list := make([]interface{}, len(v))
		for i, item := range v {
			list[i] = translate(item, pk, inID)
		}
		return list
	case []string:
		if !inID {
			return v
		}

		list := make([]interface{}, len(v))
		for i, item := range v {
			list[i] = translate(item, pk, inID)
		}
		return list
	default:
		if m, ok := stringMap(value); ok {
			return translateMap(m, pk, inID)
		}

		if items, ok := list(value); ok {
			return translate(items, pk, inID)
		}

		return value
	}
}

func translateMap(m map[string]interface{}, pk string, inID bool) bson.M {
	result := make(bson.M, len(m))
	for key, value := range m {
		nkey, child := translateKey(key, pk, inID)
		result[nkey] = translate(value, pk, child)
	}

	return result
}

// translateKey returns the native key and whether values below it sit in the
// identifier context.
func translateKey(key string, pk string, inID bool) (string, bool) {
	if key == pk {
		return key, true
	}

	op, ok := comparison[key]
	if ok {
		// $or opens a fresh set of filters.
		if op == "$or" {
			return op, false
		}
		return op, inID
	}

	if strings.HasPrefix(key, "$") {
		return key, inID && key != "$or" && key != "$and" && key != "$nor"
	}

	return key, false
}

//==============================================================================

// ParseDistinct returns the distinct option unchanged.
func ParseDistinct(distinct interface{}) interface{} {
	return distinct
}

//==============================================================================

// stringMap copies a string keyed map of any value type, such as
// map[string]bool, into a generic mapping.
func stringMap(v interface{}) (map[string]interface{}, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}

	m := make(map[string]interface{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}

	return m, true
}

// list copies a slice or array of any element type, such as []float64, into
// a generic list. Byte slices are not lists.
func list(v interface{}) ([]interface{}, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
	default:
		return nil, false
	}

	items := make([]interface{}, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}

	return items, true
}

// names keeps the string items of a list.
func names(items []interface{}) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if name, ok := item.(string); ok {
			out = append(out, name)
		}
	}

	return out
}
