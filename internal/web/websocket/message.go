// Package websocket serves GraphQL operations over the graphql-transport-ws
// subprotocol.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"
)

// Protocol is the websocket subprotocol the handler negotiates
const Protocol = "graphql-transport-ws"

// Message types
const (
	MsgConnectionInit = "connection_init"
	MsgConnectionAck  = "connection_ack"
	MsgPing           = "ping"
	MsgPong           = "pong"
	MsgSubscribe      = "subscribe"
	MsgNext           = "next"
	MsgError          = "error"
	MsgComplete       = "complete"
)

// Close codes
const (
	CloseInvalidMessage     = 4400
	CloseUnauthorized       = 4401
	CloseInitTimeout        = 4408
	CloseSubscriberExists   = 4409
	CloseTooManyInitRequest = 4429
)

// Message is one protocol frame
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Request is the payload of a subscribe message
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`

	// Init is the connection_init payload of the connection
	Init map[string]any `json:"-"`
}

// Executor runs one operation. The returned channel carries every result
// and is closed when the operation ends; it must also end once ctx is done.
type Executor func(ctx context.Context, r *http.Request, req Request) <-chan *graphql.Result

func newMessage(id, typ string, payload any) (*Message, error) {
	m := &Message{ID: id, Type: typ}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		m.Payload = data
	}
	return m, nil
}
