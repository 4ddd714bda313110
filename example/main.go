// Command example queries a running example/server through the client.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/influx6/mgoquery/client"
	"github.com/influx6/mgoquery/logs"
	"github.com/influx6/mgoquery/utils"
	"gopkg.in/mgo.v2/bson"
)

var events = logs.New(os.Stdout, "debug")

var app = "example-app"

//==============================================================================

func main() {
	addr := "http://127.0.0.1:3000"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := client.New(addr, nil)

	version, err := c.Ping(ctx)
	if err != nil {
		events.Error(app, "Ping", err, "Server unavailable")
		os.Exit(1)
	}
	events.Log(app, "Ping", "Info : Server Version[%s]", version)

	users := c.Table("users")

	if _, err := users.Add(ctx, bson.M{"name": "alex", "age": 20}); err != nil {
		events.Error(app, "Add", err, "Add failed")
	}

	page, err := users.Order("age DESC").Page(1, 5).CountSelect(ctx, "last")
	if err != nil {
		events.Error(app, "CountSelect", err, "Page query failed")
		os.Exit(1)
	}

	fmt.Printf("Received Page %d of %d: %s\n", page.CurrentPage, page.TotalPages, utils.Query.QueryIndent(page.Data))
}
