package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024
)

var errClientClosed = errors.New("client closed")

// Client is one websocket connection and the operations running on it
type Client struct {
	ID string

	conn    *websocket.Conn
	request *http.Request
	exec    Executor
	logger  *zap.Logger

	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	init map[string]any
	ack  bool
	ops  map[string]context.CancelFunc
	wg   sync.WaitGroup
}

func newClient(ctx context.Context, id string, conn *websocket.Conn, r *http.Request, exec Executor, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		ID:      id,
		conn:    conn,
		request: r,
		exec:    exec,
		logger:  logger.With(zap.String("client_id", id)),
		send:    make(chan []byte, 256),
		ctx:     ctx,
		cancel:  cancel,
		ops:     make(map[string]context.CancelFunc),
	}
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Operations returns the number of running operations
func (c *Client) Operations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ops)
}

// ReadPump reads protocol messages until the connection fails or the client
// is closed. Running operations are cancelled on return.
func (c *Client) ReadPump() {
	defer func() {
		c.cancel()
		c.wg.Wait()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			c.Close(CloseInvalidMessage, "invalid message")
			return
		}
		if !c.handle(&msg) {
			return
		}
	}
}

// handle processes one message and reports whether reading should continue
func (c *Client) handle(msg *Message) bool {
	switch msg.Type {
	case MsgConnectionInit:
		c.mu.Lock()
		if c.ack {
			c.mu.Unlock()
			c.Close(CloseTooManyInitRequest, "too many initialisation requests")
			return false
		}
		c.ack = true
		if len(msg.Payload) > 0 {
			json.Unmarshal(msg.Payload, &c.init)
		}
		c.mu.Unlock()
		c.sendMessage("", MsgConnectionAck, nil)

	case MsgPing:
		c.sendMessage("", MsgPong, nil)

	case MsgPong:

	case MsgSubscribe:
		if !c.acknowledged() {
			c.Close(CloseUnauthorized, "unauthorized")
			return false
		}
		var req Request
		if msg.ID == "" || json.Unmarshal(msg.Payload, &req) != nil || req.Query == "" {
			c.Close(CloseInvalidMessage, "invalid subscribe message")
			return false
		}
		if !c.start(msg.ID, req) {
			c.Close(CloseSubscriberExists, "subscriber for "+msg.ID+" already exists")
			return false
		}

	case MsgComplete:
		c.stop(msg.ID)

	default:
		c.Close(CloseInvalidMessage, "unknown message type "+msg.Type)
		return false
	}
	return true
}

func (c *Client) acknowledged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ack
}

// start runs an operation under id. It reports false when id is taken.
func (c *Client) start(id string, req Request) bool {
	c.mu.Lock()
	if _, exists := c.ops[id]; exists {
		c.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.ops[id] = cancel
	req.Init = c.init
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer c.stop(id)

		failed := false
		for res := range c.exec(ctx, c.request, req) {
			if ctx.Err() != nil || failed {
				continue
			}
			if res.Data == nil && res.HasErrors() {
				c.sendMessage(id, MsgError, res.Errors)
				failed = true
				continue
			}
			c.sendMessage(id, MsgNext, res)
		}
		if ctx.Err() == nil && !failed {
			c.sendMessage(id, MsgComplete, nil)
		}
	}()

	c.logger.Debug("operation started", zap.String("operation_id", id), zap.String("operation", req.OperationName))
	return true
}

func (c *Client) stop(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.ops[id]; ok {
		cancel()
		delete(c.ops, id)
	}
}

// WritePump writes queued messages and keepalive pings to the connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.cancel()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		}
	}
}

func (c *Client) sendMessage(id, typ string, payload any) {
	if err := c.Send(id, typ, payload); err != nil && !errors.Is(err, errClientClosed) {
		c.logger.Warn("failed to send message", zap.String("type", typ), zap.Error(err))
	}
}

// Send queues a protocol message for the client
func (c *Client) Send(id, typ string, payload any) error {
	msg, err := newMessage(id, typ, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return errClientClosed
	}
}

// Close ends the connection with a close frame carrying code
func (c *Client) Close(code int, reason string) {
	c.logger.Debug("closing websocket", zap.Int("code", code), zap.String("reason", reason))
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
	c.cancel()
}
