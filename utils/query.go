package utils

import (
	"bytes"
	"encoding/json"

	"gopkg.in/mgo.v2/bson"
)

//==========================================================================================

// Query renders native queries and documents as shell-like json for the
// DBAction log lines. bson.D documents keep their key order and ObjectIds
// are written as {"$oid": hex}.
var Query query

type query struct{}

// QueryIndent returns the rendered document indented with tabs.
func (q query) QueryIndent(ms interface{}) string {
	data, err := json.MarshalIndent(shell(ms), "", "\t")
	if err != nil {
		return ""
	}

	return string(data)
}

// Query returns the compact rendering of the provided document.
func (q query) Query(ms interface{}) string {
	data, err := json.Marshal(shell(ms))
	if err != nil {
		return ""
	}

	return string(data)
}

//==========================================================================================

// shell rewrites the bson specific values of a document into forms
// encoding/json can render faithfully.
func shell(v interface{}) interface{} {
	switch x := v.(type) {
	case bson.ObjectId:
		if !x.Valid() {
			return string(x)
		}
		return map[string]string{"$oid": x.Hex()}
	case bson.D:
		return orderedDoc(x)
	case []bson.D:
		list := make([]interface{}, len(x))
		for i, doc := range x {
			list[i] = orderedDoc(doc)
		}
		return list
	case bson.M:
		return shellMap(x)
	case map[string]interface{}:
		return shellMap(x)
	case []bson.M:
		list := make([]interface{}, len(x))
		for i, doc := range x {
			list[i] = shellMap(doc)
		}
		return list
	case []interface{}:
		list := make([]interface{}, len(x))
		for i, item := range x {
			list[i] = shell(item)
		}
		return list
	default:
		return v
	}
}

func shellMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for key, value := range m {
		out[key] = shell(value)
	}
	return out
}

// orderedDoc marshals a bson.D as a json object in element order.
type orderedDoc bson.D

// MarshalJSON implements json.Marshaler.
func (d orderedDoc) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, elem := range d {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(elem.Name)
		if err != nil {
			return nil, err
		}

		value, err := json.Marshal(shell(elem.Value))
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
