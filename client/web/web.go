package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/influx6/mgoquery/client/data"
	mhttp "github.com/influx6/mgoquery/protocols/http"
)

// HTTP provides a handle for the http request processor.
var HTTP webHTTP

type webHTTP struct{}

var client = http.Client{Timeout: 30 * time.Second}

// Do issues the request and collects the reply envelope.
func (webHTTP) Do(ctx context.Context, r data.Request) (data.Reply, error) {
	var reply data.Reply

	req, err := http.NewRequestWithContext(ctx, r.Method, r.Endpoint, bytes.NewReader(r.Body))
	if err != nil {
		return reply, err
	}

	req.Header.Set("Content-Type", "application/json")
	if r.RequestID != "" {
		req.Header.Set(mhttp.RequestIDHeader, r.RequestID)
	}

	res, err := client.Do(req)
	if err != nil {
		return reply, err
	}

	defer res.Body.Close()

	reply.Status = res.StatusCode
	reply.RequestID = res.Header.Get(mhttp.RequestIDHeader)
	reply.Version = res.Header.Get(mhttp.VersionHeader)

	// HEAD replies carry headers only.
	if r.Method == http.MethodHead {
		reply.OK = res.StatusCode == http.StatusOK
		return reply, nil
	}

	if err := json.NewDecoder(res.Body).Decode(&reply); err != nil {
		return reply, err
	}

	return reply, nil
}
