// Package sym defines canonical glyphs for curio subsystems and system markers.
// These symbols are stable across CLI output, logs, and documentation.
package sym

// Subsystem glyphs.
const (
	IX     = "⨳" // ix — ingest of scraped listing payloads
	Item   = "◆" // item — canonical listing entity
	Search = "⊨" // search — search-index queries
	Pulse  = "✧" // pulse — async job processing
	DB     = "⛁" // db — primary store and migrations
	Watch  = "◉" // watch — filter notification stream
)

// Pulse lifecycle markers, used by the worker pool logger.
const (
	PulseOpen  = "✿" // opening operations (startup, recovery)
	PulseClose = "❀" // closing operations (shutdown, drain)
)

// Outcome markers for materialization results.
const (
	Applied = "✓"
	Skipped = "≈" // converged without writing (lost to equal-or-newer version)
	Failed  = "✗"
)
