package engine

import (
	"reflect"
	"testing"

	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/tests"
	"gopkg.in/mgo.v2/bson"
)

//==============================================================================

// TestUpdateDocument validates the $set wrapping of update payloads.
func TestUpdateDocument(t *testing.T) {
	t.Logf("Given the need to turn update data into an update document")
	{
		t.Logf("\tWhen the data only holds update operators")
		{
			data := bson.M{"$inc": bson.M{"age": 1}}
			if doc := updateDocument(data); !reflect.DeepEqual(doc, data) {
				t.Fatalf("\t%s\tShould have passed the data through: %v", tests.Failed, doc)
			}
			t.Logf("\t%s\tShould have passed the data through", tests.Success)
		}

		t.Logf("\tWhen the data holds plain fields")
		{
			doc := updateDocument(bson.M{"name": "x"})
			if !reflect.DeepEqual(doc, bson.M{"$set": bson.M{"name": "x"}}) {
				t.Fatalf("\t%s\tShould have wrapped the data under $set: %v", tests.Failed, doc)
			}
			t.Logf("\t%s\tShould have wrapped the data under $set", tests.Success)
		}

		t.Logf("\tWhen the data mixes operators and fields")
		{
			doc := updateDocument(bson.M{"$inc": bson.M{"age": 1}, "name": "x"})
			if _, ok := doc["$set"]; !ok {
				t.Fatalf("\t%s\tShould have wrapped the whole data under $set: %v", tests.Failed, doc)
			}
			t.Logf("\t%s\tShould have wrapped the whole data under $set", tests.Success)
		}
	}
}

//==============================================================================

// TestNewPlan validates the normalization of options for an operation.
func TestNewPlan(t *testing.T) {
	t.Logf("Given the need to normalize query options")
	{
		t.Logf("\tWhen no table is set")
		{
			_, err := newPlan("Select", "_id", mgoquery.QueryOptions{})
			if !mgoquery.IsValidation(err) {
				t.Fatalf("\t%s\tShould have failed validation: %v", tests.Failed, err)
			}
			t.Logf("\t%s\tShould have failed validation", tests.Success)
		}

		t.Logf("\tWhen the filter is a scalar")
		{
			_, err := newPlan("Select", "_id", mgoquery.QueryOptions{Table: "user", Where: 42})
			if !mgoquery.IsValidation(err) {
				t.Fatalf("\t%s\tShould have failed validation: %v", tests.Failed, err)
			}
			t.Logf("\t%s\tShould have failed validation", tests.Success)
		}

		t.Logf("\tWhen the filter is a list")
		{
			p, err := newPlan("Select", "_id", mgoquery.QueryOptions{
				Table: "user",
				Where: []interface{}{bson.M{"name": "a"}, bson.M{"age": bson.M{">": 3}}},
			})
			if err != nil {
				t.Fatalf("\t%s\tShould have built the plan: %v", tests.Failed, err)
			}

			want := bson.M{"$or": []interface{}{bson.M{"name": "a"}, bson.M{"age": bson.M{"$gt": 3}}}}
			if !reflect.DeepEqual(p.where, want) {
				t.Fatalf("\t%s\tShould have ORed the filters: %v", tests.Failed, p.where)
			}
			t.Logf("\t%s\tShould have ORed the filters", tests.Success)

			p, _ = newPlan("Select", "_id", mgoquery.QueryOptions{Table: "user", Where: []bson.M{{"name": "a"}}})
			if !reflect.DeepEqual(p.where, bson.M{"name": "a"}) {
				t.Fatalf("\t%s\tShould have used a single filter as is: %v", tests.Failed, p.where)
			}
			t.Logf("\t%s\tShould have used a single filter as is", tests.Success)
		}

		t.Logf("\tWhen the filter carries a raw string")
		{
			p, err := newPlan("Select", "_id", mgoquery.QueryOptions{Table: "user", Where: bson.M{"_string": "this.a > this.b", "name": "x"}})
			if err != nil {
				t.Fatalf("\t%s\tShould have built the plan: %v", tests.Failed, err)
			}

			want := bson.M{"$where": "this.a > this.b", "name": "x"}
			if !reflect.DeepEqual(p.where, want) {
				t.Fatalf("\t%s\tShould have moved the raw string into $where: %v", tests.Failed, p.where)
			}
			t.Logf("\t%s\tShould have moved the raw string into $where", tests.Success)
		}

		t.Logf("\tWhen distinct is true")
		{
			p, err := newPlan("Select", "_id", mgoquery.QueryOptions{Table: "user", Field: "name,age", Distinct: true})
			if err != nil || p.distinct != "name" {
				t.Fatalf("\t%s\tShould have used the first projected field: %q %v", tests.Failed, p.distinct, err)
			}
			t.Logf("\t%s\tShould have used the first projected field", tests.Success)

			_, err = newPlan("Select", "_id", mgoquery.QueryOptions{Table: "user", Distinct: true})
			if !mgoquery.IsValidation(err) {
				t.Fatalf("\t%s\tShould have failed without a projected field: %v", tests.Failed, err)
			}
			t.Logf("\t%s\tShould have failed without a projected field", tests.Success)
		}
	}
}

//==============================================================================

// TestPipelines validates the count and sum aggregation pipelines.
func TestPipelines(t *testing.T) {
	t.Logf("Given the need to build aggregation pipelines")
	{
		t.Logf("\tWhen counting without filter, group or order")
		{
			p, _ := newPlan("Count", "_id", mgoquery.QueryOptions{Table: "user"})

			want := []bson.M{{"$group": bson.M{"_id": nil, "total": bson.M{"$sum": 1}}}}
			if got := countPipeline(p); !reflect.DeepEqual(got, want) {
				t.Fatalf("\t%s\tShould have grouped the whole set: %v", tests.Failed, got)
			}
			t.Logf("\t%s\tShould have grouped the whole set", tests.Success)
		}

		t.Logf("\tWhen counting with filter, group and order")
		{
			p, _ := newPlan("Count", "_id", mgoquery.QueryOptions{
				Table: "user",
				Where: bson.M{"age": bson.M{"EGT": 18}},
				Group: "name",
				Order: "total DESC",
			})

			want := []bson.M{
				{"$match": bson.M{"age": bson.M{"$gte": 18}}},
				{"$group": bson.M{"_id": "$name", "total": bson.M{"$sum": 1}}},
				{"$sort": bson.D{{Name: "total", Value: -1}}},
			}
			if got := countPipeline(p); !reflect.DeepEqual(got, want) {
				t.Fatalf("\t%s\tShould have built match, group and sort stages: %v", tests.Failed, got)
			}
			t.Logf("\t%s\tShould have built match, group and sort stages", tests.Success)
		}

		t.Logf("\tWhen summing over several group keys in natural order")
		{
			p, _ := newPlan("Sum", "_id", mgoquery.QueryOptions{Table: "user", Group: "name,city", Order: true})

			want := []bson.M{
				{"$group": bson.M{"_id": bson.M{"name": "$name", "city": "$city"}, "total": bson.M{"$sum": "$v"}}},
			}
			if got := sumPipeline(p, "v"); !reflect.DeepEqual(got, want) {
				t.Fatalf("\t%s\tShould have keyed the group by every field: %v", tests.Failed, got)
			}
			t.Logf("\t%s\tShould have keyed the group by every field", tests.Success)
		}
	}
}

//==============================================================================

// TestIndexKey validates the index key translation.
func TestIndexKey(t *testing.T) {
	t.Logf("Given the need to translate index specs")
	{
		cases := []struct {
			Name    string
			Indexes interface{}
			Want    []string
		}{
			{Name: "string", Indexes: "name, age", Want: []string{"name", "age"}},
			{Name: "list", Indexes: []string{"name"}, Want: []string{"name"}},
			{Name: "mapping", Indexes: bson.M{"b": -1, "a": 1}, Want: []string{"a", "-b"}},
			{Name: "ordered", Indexes: bson.D{{Name: "b", Value: "desc"}, {Name: "a", Value: "text"}}, Want: []string{"-b", "$text:a"}},
			{Name: "unknown", Indexes: 4, Want: nil},
		}

		for _, c := range cases {
			t.Logf("\tWhen giving a %s", c.Name)
			{
				if got := IndexKey(c.Indexes); !reflect.DeepEqual(got, c.Want) {
					t.Fatalf("\t%s\tShould have produced %v: %v", tests.Failed, c.Want, got)
				}
				t.Logf("\t%s\tShould have produced %v", tests.Success, c.Want)
			}
		}
	}
}
