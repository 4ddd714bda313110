package utils

import (
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// listsep defines a regexp for splitting comma separated option lists.
var listsep = regexp.MustCompile(`\s*,\s*`)

// SplitList splits a comma separated list, trimming whitespace around each
// item and dropping empty items.
func SplitList(fl string) []string {
	fl = strings.TrimSpace(fl)
	if fl == "" {
		return nil
	}

	var items []string
	for _, item := range listsep.Split(fl, -1) {
		if item == "" {
			continue
		}

		items = append(items, item)
	}

	return items
}

// ToInt coerces the giving value into an int, truncating floats. Numeric
// strings such as "4.7" are read as floats first. Values that can not be read
// as a number become 0.
func ToInt(v interface{}) int {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}

	fl, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(fl) || math.IsInf(fl, 0) {
		return 0
	}

	return int(fl)
}

// ToFloat coerces the giving numeric value into a float64. Non-numeric
// values, strings included, return false.
func ToFloat(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		fl, err := cast.ToFloat64E(v)
		return fl, err == nil
	default:
		return 0, false
	}
}

// IsEmpty returns true for nil, empty strings, empty maps and empty lists.
func IsEmpty(v interface{}) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
