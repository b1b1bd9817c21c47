package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

/*
Subscriber is the capability a schema needs for the subscription
transport: start one subscription and stream its results until the
channel closes. *graphql.Schema from graph-gophers/graphql-go
satisfies it when built with subscription resolvers.
*/
type Subscriber interface {
	Subscribe(ctx context.Context, queryString string, operationName string, variables map[string]any) (<-chan any, error)
}

// graphql-ws (subscriptions-transport-ws framing) message types.
const (
	msgConnectionInit      = "connection_init"
	msgConnectionAck       = "connection_ack"
	msgConnectionKeepAlive = "ka"
	msgConnectionTerminate = "connection_terminate"
	msgConnectionError     = "connection_error"
	msgStart               = "start"
	msgData                = "data"
	msgError               = "error"
	msgComplete            = "complete"
	msgStop                = "stop"
)

type operationMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type startPayload struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

/*
Transport upgrades HTTP requests to graphql-ws sessions and streams
subscription results from the schema to the client. It is an
http.Handler so hosts on any routing framework can mount it; the fiber
adapter does exactly that.
*/
type Transport struct {
	schema    Subscriber
	keepAlive time.Duration
	upgrader  websocket.Upgrader
}

// defaultKeepAlive is how often ka frames are sent once a client has
// completed the connection_init handshake.
const defaultKeepAlive = 20 * time.Second

// NewTransport returns a Transport streaming from the given schema.
func NewTransport(schema Subscriber) *Transport {
	return &Transport{
		schema:    schema,
		keepAlive: defaultKeepAlive,
		upgrader: websocket.Upgrader{
			CheckOrigin:  func(*http.Request) bool { return true },
			Subprotocols: []string{"graphql-ws"},
		},
	}
}

func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("websocket upgrade failed", "error", err)
		return
	}

	sess := &session{
		id:         uuid.NewString(),
		conn:       conn,
		schema:     t.schema,
		kaInterval: t.keepAlive,
		active:     map[string]*operation{},
	}
	sess.run(r.Context())
}

// session is one websocket connection carrying any number of
// concurrently running subscriptions, keyed by client-chosen id.
type session struct {
	id         string
	conn       *websocket.Conn
	schema     Subscriber
	kaInterval time.Duration
	kaOnce     sync.Once

	writeMu sync.Mutex
	mu      sync.Mutex
	active  map[string]*operation
}

// operation is one running subscription. The value doubles as an
// ownership token: a restart under the same id installs a new
// operation, and only the current owner may unregister the id.
type operation struct {
	cancel context.CancelFunc
}

func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.conn.Close()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg operationMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.write(operationMessage{
				Type:    msgConnectionError,
				Payload: errPayload(err),
			})
			continue
		}

		switch msg.Type {
		case msgConnectionInit:
			s.write(operationMessage{Type: msgConnectionAck})
			s.write(operationMessage{Type: msgConnectionKeepAlive})
			s.kaOnce.Do(func() { go s.keepAlive(ctx) })
		case msgStart:
			s.start(ctx, msg)
		case msgStop:
			s.stop(msg.ID)
		case msgConnectionTerminate:
			return
		}
	}
}

func (s *session) start(ctx context.Context, msg operationMessage) {
	var params startPayload
	if err := json.Unmarshal(msg.Payload, &params); err != nil {
		s.write(operationMessage{ID: msg.ID, Type: msgError, Payload: errPayload(err)})
		return
	}

	opCtx, cancel := context.WithCancel(ctx)
	op := &operation{cancel: cancel}

	s.mu.Lock()
	if prev, dup := s.active[msg.ID]; dup {
		prev.cancel()
	}
	s.active[msg.ID] = op
	s.mu.Unlock()

	stream, err := s.schema.Subscribe(opCtx, params.Query, params.OperationName, params.Variables)
	if err != nil {
		s.finish(msg.ID, op)
		s.write(operationMessage{ID: msg.ID, Type: msgError, Payload: errPayload(err)})
		return
	}

	go func() {
		for event := range stream {
			payload, err := json.Marshal(event)
			if err != nil {
				log.Error("failed to encode subscription event",
					"session", s.id, "operation", msg.ID, "error", err)
				continue
			}
			s.write(operationMessage{ID: msg.ID, Type: msgData, Payload: payload})
		}

		// A superseded operation stays silent; the id now belongs to
		// its replacement.
		if s.finish(msg.ID, op) {
			s.write(operationMessage{ID: msg.ID, Type: msgComplete})
		}
	}()
}

// finish cancels op and unregisters its id, but only when op is still
// the registered owner. Reports whether it was.
func (s *session) finish(id string, op *operation) bool {
	op.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active[id] == op {
		delete(s.active, id)
		return true
	}
	return false
}

func (s *session) stop(id string) {
	s.mu.Lock()
	op, ok := s.active[id]
	if ok {
		delete(s.active, id)
	}
	s.mu.Unlock()

	if ok {
		op.cancel()
	}
}

// keepAlive emits ka frames on a timer until the connection ends.
func (s *session) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(s.kaInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.write(operationMessage{Type: msgConnectionKeepAlive})
		}
	}
}

func (s *session) write(msg operationMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteJSON(msg); err != nil {
		log.Error("failed to write websocket message", "session", s.id, "error", err)
	}
}

func errPayload(err error) json.RawMessage {
	payload, _ := json.Marshal(map[string]string{"message": err.Error()})
	return payload
}
