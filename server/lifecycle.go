package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teranos/curio/config"
	"github.com/teranos/curio/errors"
)

// getState returns the current server state
func (s *CurioServer) getState() ServerState {
	return ServerState(s.state.Load())
}

// setState atomically updates the server state
func (s *CurioServer) setState(newState ServerState) {
	s.state.Store(int32(newState))
	s.logger.Infow("Server state changed", "new_state", stateString(newState))
}

// stateString returns human-readable state name
func stateString(state ServerState) string {
	switch state {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking from config
func (s *CurioServer) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin validates the request origin against configured allowed origins.
// Missing Origin headers (direct clients, tests) are allowed; prefix matching
// lets any port on an allowed host through.
func (s *CurioServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	allowed := s.cfg.Server.AllowedOrigins
	if len(allowed) == 0 {
		return strings.HasPrefix(origin, "http://localhost") ||
			strings.HasPrefix(origin, "https://localhost")
	}

	for _, allowedOrigin := range allowed {
		if strings.HasPrefix(origin, allowedOrigin) {
			return true
		}
	}
	return false
}

// startBackgroundServices starts the daemon and the broadcast goroutines
func (s *CurioServer) startBackgroundServices() {
	if s.daemon != nil {
		s.daemon.Start()
		s.logger.Infow("Ingest workers started", "workers", s.daemon.Workers())

		s.startJobUpdateBroadcaster()
		s.startStatusBroadcaster()
	}
}

// Start starts the server on the specified port and blocks until the HTTP
// listener returns.
func (s *CurioServer) Start(port int) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run()
	}()

	s.startBackgroundServices()

	actualPort, err := findAvailablePort(port)
	if err != nil {
		return errors.Wrap(err, "failed to find available port")
	}

	if actualPort != port {
		s.logger.Infow("Port in use, using alternative",
			"requested_port", port,
			"actual_port", actualPort,
		)
	}

	mux := s.setupHTTPRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", actualPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infow("Server ready",
		"url", fmt.Sprintf("http://localhost:%d", actualPort),
		"port", actualPort,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Stop gracefully shuts down the server and cleans up resources
func (s *CurioServer) Stop() error {
	s.logger.Infow("Initiating server shutdown")

	s.setState(ServerStateDraining)

	// Stop workers FIRST so in-flight batches checkpoint before the
	// broadcast goroutines go away
	if s.daemon != nil {
		s.logger.Infow("Stopping ingest workers")
		s.daemon.Stop()
		s.logger.Infow("Ingest workers stopped")
	}

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnw("HTTP server shutdown error", "error", err)
		}
	}

	// Close all client connections BEFORE cancelling context so
	// readPump/writePump exit cleanly
	s.mu.Lock()
	clientsToClose := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clientsToClose = append(clientsToClose, client)
		delete(s.clients, client)
	}
	s.mu.Unlock()

	if len(clientsToClose) > 0 {
		s.logger.Infow("Closing client connections", "count", len(clientsToClose))
		for _, client := range clientsToClose {
			client.conn.Close() // unblocks readPump
		}
	}

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infow("All goroutines stopped cleanly")
	case <-time.After(ShutdownTimeout):
		s.logger.Warnw("Goroutine shutdown timed out, forcing exit",
			"timeout", ShutdownTimeout,
		)
	}

	s.setState(ServerStateStopped)

	s.logger.Infow("Server shutdown complete",
		"broadcast_drops", s.broadcastDrops.Load(),
	)

	return nil
}

// isPortAvailable checks if a port is available for binding
func isPortAvailable(port int) bool {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}

// findAvailablePort tries the requested port first, then the configured
// default, then a high fallback range.
func findAvailablePort(requestedPort int) (int, error) {
	if isPortAvailable(requestedPort) {
		return requestedPort, nil
	}

	if requestedPort != config.DefaultServerPort && isPortAvailable(config.DefaultServerPort) {
		return config.DefaultServerPort, nil
	}

	fallbackStart := 58750
	for i := 0; i < 10; i++ {
		port := fallbackStart + i
		if isPortAvailable(port) {
			return port, nil
		}
	}

	return 0, fmt.Errorf("no available ports found (tried %d, %d, and range %d-%d)",
		requestedPort, config.DefaultServerPort, fallbackStart, fallbackStart+9)
}
