package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config holds WebSocket configuration
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int

	CheckOrigin func(r *http.Request) bool

	// InitTimeout closes connections that send no connection_init in time
	InitTimeout time.Duration

	EnableCompression bool
}

// DefaultConfig returns default WebSocket configuration
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		InitTimeout: 10 * time.Second,
	}
}

// Handler upgrades HTTP connections and serves operations on them
type Handler struct {
	config   *Config
	upgrader *websocket.Upgrader
	exec     Executor
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	clients map[string]*Client
}

// NewHandler creates a handler running operations with exec
func NewHandler(exec Executor, logger *zap.Logger, config *Config) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Handler{
		config: config,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:    config.ReadBufferSize,
			WriteBufferSize:   config.WriteBufferSize,
			CheckOrigin:       config.CheckOrigin,
			EnableCompression: config.EnableCompression,
			Subprotocols:      []string{Protocol},
		},
		exec:    exec,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[string]*Client),
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	// the request context ends with this handler
	r = r.WithContext(context.WithoutCancel(r.Context()))
	client := newClient(h.ctx, uuid.NewString(), conn, r, h.exec, h.logger)

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	go client.WritePump()
	go func() {
		client.ReadPump()
		h.mu.Lock()
		delete(h.clients, client.ID)
		h.mu.Unlock()
		h.logger.Debug("websocket connection closed", zap.String("client_id", client.ID))
	}()
	if h.config.InitTimeout > 0 {
		go func() {
			select {
			case <-time.After(h.config.InitTimeout):
				if !client.acknowledged() {
					client.Close(CloseInitTimeout, "connection initialisation timeout")
				}
			case <-client.Done():
			}
		}()
	}

	h.logger.Debug("websocket connection established", zap.String("client_id", client.ID))
}

// Clients returns the number of open connections
func (h *Handler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown closes every connection
func (h *Handler) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close(websocket.CloseGoingAway, "server shutting down")
	}
	h.cancel()
}
