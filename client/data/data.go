package data

import "encoding/json"

// Request defines a single call handed to a transport.
type Request struct {
	Method    string
	Endpoint  string
	RequestID string
	Body      []byte
}

//==============================================================================

// Reply defines the envelope received back from the server.
type Reply struct {
	OK      bool            `json:"ok"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`

	// Set from the http exchange rather than the body.
	Status    int    `json:"-"`
	RequestID string `json:"-"`
	Version   string `json:"-"`
}
