package utils_test

import (
	"testing"

	"github.com/influx6/mgoquery/tests"
	"github.com/influx6/mgoquery/utils"
	"gopkg.in/mgo.v2/bson"
)

//==============================================================================

// TestToInt validates the lenient numeric coercion.
func TestToInt(t *testing.T) {
	t.Logf("Given the need to coerce loose values into ints")
	{
		cases := []struct {
			In   interface{}
			Want int
		}{
			{In: 10, Want: 10},
			{In: int64(7), Want: 7},
			{In: 3.9, Want: 3},
			{In: "12", Want: 12},
			{In: " 4 ", Want: 4},
			{In: "4.7", Want: 4},
			{In: "t", Want: 0},
			{In: "3abc", Want: 0},
			{In: nil, Want: 0},
			{In: []int{1}, Want: 0},
			{In: true, Want: 1},
			{In: uint16(9), Want: 9},
			{In: "NaN", Want: 0},
		}

		for _, c := range cases {
			t.Logf("\tWhen giving %#v", c.In)
			{
				if got := utils.ToInt(c.In); got != c.Want {
					t.Fatalf("\t%s\tShould have coerced into %d: got %d", tests.Failed, c.Want, got)
				}
				t.Logf("\t%s\tShould have coerced into %d", tests.Success, c.Want)
			}
		}
	}
}

// TestToFloat validates only numeric kinds are read as floats.
func TestToFloat(t *testing.T) {
	t.Logf("Given the need to read numeric option values")
	{
		if fl, ok := utils.ToFloat(int8(-1)); !ok || fl != -1 {
			t.Fatalf("\t%s\tShould have read int8(-1) as -1: %v %t", tests.Failed, fl, ok)
		}
		t.Logf("\t%s\tShould have read small integer kinds", tests.Success)

		if fl, ok := utils.ToFloat(float32(2.5)); !ok || fl != 2.5 {
			t.Fatalf("\t%s\tShould have read float32(2.5): %v %t", tests.Failed, fl, ok)
		}
		t.Logf("\t%s\tShould have read floats", tests.Success)

		for _, v := range []interface{}{nil, "1", true, []int{1}} {
			if _, ok := utils.ToFloat(v); ok {
				t.Fatalf("\t%s\tShould have refused %#v", tests.Failed, v)
			}
		}
		t.Logf("\t%s\tShould have refused non-numeric values", tests.Success)
	}
}

// TestSplitList validates the comma list splitter.
func TestSplitList(t *testing.T) {
	t.Logf("Given the need to split comma separated option lists")
	{
		items := utils.SplitList(" name , age,, address ")
		if len(items) != 3 || items[0] != "name" || items[1] != "age" || items[2] != "address" {
			t.Fatalf("\t%s\tShould have split into three trimmed items: %q", tests.Failed, items)
		}
		t.Logf("\t%s\tShould have split into three trimmed items", tests.Success)

		if items := utils.SplitList("   "); items != nil {
			t.Fatalf("\t%s\tShould have returned nil for a blank list: %q", tests.Failed, items)
		}
		t.Logf("\t%s\tShould have returned nil for a blank list", tests.Success)
	}
}

// TestIsEmpty validates emptiness checks across loose shapes.
func TestIsEmpty(t *testing.T) {
	t.Logf("Given the need to detect empty option values")
	{
		empty := []interface{}{nil, "", []string{}, map[string]interface{}{}}
		for _, v := range empty {
			if !utils.IsEmpty(v) {
				t.Fatalf("\t%s\tShould have reported %#v as empty", tests.Failed, v)
			}
		}
		t.Logf("\t%s\tShould have reported empty values as empty", tests.Success)

		full := []interface{}{"a", []string{"a"}, map[string]interface{}{"a": 1}, 0, false}
		for _, v := range full {
			if utils.IsEmpty(v) {
				t.Fatalf("\t%s\tShould not have reported %#v as empty", tests.Failed, v)
			}
		}
		t.Logf("\t%s\tShould not have reported filled values as empty", tests.Success)
	}
}

// TestQuery validates the shell-like rendering of native documents.
func TestQuery(t *testing.T) {
	t.Logf("Given the need to log native queries")
	{
		t.Logf("\tWhen rendering a pipeline with ordered stages")
		{
			pipeline := []bson.M{
				{"$match": bson.M{"_id": bson.ObjectIdHex("5a1b2c3d4e5f6a7b8c9d0e1f")}},
				{"$sort": bson.D{{Name: "name", Value: 1}, {Name: "age", Value: -1}}},
			}

			want := `[{"$match":{"_id":{"$oid":"5a1b2c3d4e5f6a7b8c9d0e1f"}}},{"$sort":{"name":1,"age":-1}}]`
			if got := utils.Query.Query(pipeline); got != want {
				t.Fatalf("\t%s\tShould have rendered %s but got %s", tests.Failed, want, got)
			}
			t.Logf("\t%s\tShould have kept stage key order and rendered ObjectIds", tests.Success)
		}

		t.Logf("\tWhen rendering with indentation")
		{
			want := "{\n\t\"b\": 1,\n\t\"a\": 2\n}"
			got := utils.Query.QueryIndent(bson.D{{Name: "b", Value: 1}, {Name: "a", Value: 2}})
			if got != want {
				t.Fatalf("\t%s\tShould have rendered %q but got %q", tests.Failed, want, got)
			}
			t.Logf("\t%s\tShould have indented the ordered document", tests.Success)
		}
	}
}
