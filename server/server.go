// Package server exposes the curio read API and the WebSocket feed of
// ingest job progress. Writes enter through POST /api/ingest, which
// enqueues a batch job; everything else is read-only over the two stores.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/teranos/curio/config"
	"github.com/teranos/curio/index"
	"github.com/teranos/curio/pulse/async"
	"github.com/teranos/curio/store"
	"go.uber.org/zap"
)

// CurioServer serves the item read API and broadcasts pipeline activity to
// WebSocket clients.
type CurioServer struct {
	items       *store.ItemStore
	documents   *index.DocumentStore
	deadLetters *store.DeadLetterStore
	daemon      *async.WorkerPool // background batch processor, nil in read-only deployments
	cfg         *config.Config

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	lastStatus *cachedPipelineStatus // cache last pipeline status for change detection

	logger *zap.SugaredLogger

	// HTTP server with timeouts
	httpServer *http.Server

	// Lifecycle management
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	broadcastDrops atomic.Int64
	state          atomic.Int32
}

// New creates a CurioServer over the primary and search databases. The
// daemon may be nil, in which case ingest endpoints report unavailable.
func New(primary, search *sql.DB, cfg *config.Config, daemon *async.WorkerPool, logger *zap.SugaredLogger) *CurioServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &CurioServer{
		items:       store.NewItemStore(primary),
		documents:   index.NewDocumentStore(search),
		deadLetters: store.NewDeadLetterStore(primary),
		daemon:      daemon,
		cfg:         cfg,
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the server hub event loop
func (s *CurioServer) Run() {
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debugw("Server hub stopping due to context cancellation")
			return
		case client := <-s.register:
			s.handleClientRegister(client)
		case client := <-s.unregister:
			s.handleClientUnregister(client)
		}
	}
}

// handleClientRegister handles a new client connection
func (s *CurioServer) handleClientRegister(client *Client) {
	s.mu.Lock()
	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection",
			"client_id", client.id,
			"max_clients", MaxClients,
		)
		client.close()
		return
	}
	s.clients[client] = true
	totalClients := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected",
		"client_id", client.id,
		"total_clients", totalClients,
	)
}

// handleClientUnregister handles a client disconnection
func (s *CurioServer) handleClientUnregister(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		totalClients := len(s.clients)
		s.mu.Unlock()

		client.close()

		s.logger.Infow("Client disconnected",
			"client_id", client.id,
			"total_clients", totalClients,
		)
	} else {
		s.mu.Unlock()
	}
}

// broadcastMessage sends a message to all connected clients.
// Returns the number of clients that accepted the message (channel not full).
func (s *CurioServer) broadcastMessage(msg interface{}) int {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		select {
		case client.sendMsg <- msg:
			sent++
		default:
			s.broadcastDrops.Add(1)
		}
	}
	return sent
}

// GetDaemon returns the worker pool, nil when running read-only
func (s *CurioServer) GetDaemon() *async.WorkerPool {
	return s.daemon
}
