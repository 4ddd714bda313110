// Package mgoquery provides a query construction and execution layer that
// sits above MongoDB. Callers describe what they want with engine-agnostic
// option fragments (filters, ordering, pagination, grouping, projection)
// and the layer translates them into native mgo/bson operators, runs them
// through a bounded pool of sessions and hands back normalized results.
//
// eg
/*

  opts := mgoquery.QueryOptions{
    Table: "think_user",
    Where: map[string]interface{}{"age": map[string]interface{}{">": 18}},
    Field: "name,age",
    Order: "age DESC,name",
    Limit: "0,10",
  }

  where => {"age": {"$gt": 18}}
  field => {"name": 1, "age": 1}
  order => [{"age": -1}, {"name": 1}]
  limit => skip(0).limit(10)

*/
//
// The parser package owns the translation, db/pool owns the session lease
// discipline, engine executes one native operation per call and model
// provides the chainable record facade.
package mgoquery
