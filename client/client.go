// Package client provides a Go client for the http front served by
// protocols/http.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/client/data"
	"github.com/influx6/mgoquery/client/web"
	mhttp "github.com/influx6/mgoquery/protocols/http"
	"github.com/pborman/uuid"
	"gopkg.in/mgo.v2"
)

//==============================================================================

// Transport defines an interface for requests transport, which allows us
// build custom transports based on different low-level systems.
type Transport interface {
	Do(ctx context.Context, r data.Request) (data.Reply, error)
}

//==============================================================================

// ReplyError is returned when the server answers with a failure. It unwraps
// to the matching mgoquery error so errors.Is and mgoquery.IsValidation work
// across the wire.
type ReplyError struct {
	Status    int
	Class     string
	Message   string
	RequestID string
}

// Error returns the message for this reply.
func (e *ReplyError) Error() string {
	return fmt.Sprintf("%s : %s", e.Class, e.Message)
}

// Unwrap returns the local error matching the reply class, if any.
func (e *ReplyError) Unwrap() error {
	switch e.Class {
	case "validation":
		return &mgoquery.ValidationError{Msg: e.Message}
	case "timeout":
		return mgoquery.ErrPoolTimeout
	case "closed":
		return mgoquery.ErrPoolClosed
	case "not_found":
		return mgo.ErrNotFound
	default:
		return nil
	}
}

//==============================================================================

// Client issues model operations against a server address.
type Client struct {
	addr      string
	transport Transport
}

// New returns a new Client for addr. A nil transport uses web.HTTP.
func New(addr string, transport Transport) *Client {
	if transport == nil {
		transport = web.HTTP
	}

	return &Client{
		addr:      strings.TrimRight(addr, "/"),
		transport: transport,
	}
}

// Table returns a new request builder for the giving collection.
func (c *Client) Table(name string) *Request {
	return &Request{client: c, table: name}
}

// Ping checks the server is reachable and returns its protocol version.
func (c *Client) Ping(ctx context.Context) (string, error) {
	reply, err := c.transport.Do(ctx, data.Request{
		Method:    http.MethodHead,
		Endpoint:  c.addr + "/",
		RequestID: uuid.New(),
	})
	if err != nil {
		return "", err
	}

	if !reply.OK {
		return "", &ReplyError{Status: reply.Status, Class: "unavailable", Message: http.StatusText(reply.Status), RequestID: reply.RequestID}
	}

	return reply.Version, nil
}

// call sends q to the operation path of table and decodes the result into
// result when it is non-nil.
func (c *Client) call(ctx context.Context, method, table, op string, q mhttp.Query, result interface{}) error {
	body, err := json.Marshal(q)
	if err != nil {
		return err
	}

	reply, err := c.transport.Do(ctx, data.Request{
		Method:    method,
		Endpoint:  c.addr + "/" + url.PathEscape(table) + "/" + op,
		RequestID: uuid.New(),
		Body:      body,
	})
	if err != nil {
		return err
	}

	if !reply.OK {
		return &ReplyError{Status: reply.Status, Class: reply.Error, Message: reply.Message, RequestID: reply.RequestID}
	}

	if result == nil || len(reply.Result) == 0 {
		return nil
	}

	return json.Unmarshal(reply.Result, result)
}
