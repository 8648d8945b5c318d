package server

import (
	"net/http"
)

// setupHTTPRoutes configures all HTTP handlers on a dedicated mux
func (s *CurioServer) setupHTTPRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.corsMiddleware(s.HandleWebSocket)) // job progress + pipeline status feed
	mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))
	mux.HandleFunc("/api/items/", s.corsMiddleware(s.HandleItem))            // GET /api/items/{id}
	mux.HandleFunc("/api/search", s.corsMiddleware(s.HandleSearch))          // GET with filter query params
	mux.HandleFunc("/api/ingest", s.corsMiddleware(s.HandleIngest))          // POST batch enqueue
	mux.HandleFunc("/api/jobs/", s.corsMiddleware(s.HandleJob))              // GET /api/jobs/{id}
	mux.HandleFunc("/api/jobs", s.corsMiddleware(s.HandleJobs))              // GET job listing
	mux.HandleFunc("/api/dead-letters", s.corsMiddleware(s.HandleDeadLetters)) // GET rejected payloads
	mux.HandleFunc("/api/stats", s.corsMiddleware(s.HandleStats))            // GET store counts

	return mux
}

// corsMiddleware adds CORS headers to HTTP responses using configured allowed origins.
// Uses the same origin validation as WebSocket connections (server.allowed_origins config).
func (s *CurioServer) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}
