package metrics

import "sync"

// Event counter names.
//
// Names are intentionally flat; the Prometheus handler exposes all of them
// under a single counter metric with an `event` label.
const (
	ConnectionOpened  = "connection_opened"
	ConnectionClosed  = "connection_closed"
	ConnectionEvicted = "connection_evicted"

	MatchCreated = "match_created"
	MatchSkipped = "match_skipped"
	MatchEnded   = "match_ended"

	SignalForwarded = "signal_forwarded"
	ChatForwarded   = "chat_forwarded"

	DropMalformedEvent  = "drop_malformed_event"
	DropUnknownEvent    = "drop_unknown_event"
	DropOutOfStateEvent = "drop_out_of_state_event"
	DropNoPartner       = "drop_no_partner"
	DropDeliveryFailed  = "drop_delivery_failed"
	DropRateLimited     = "drop_rate_limited"
	DropTooLarge        = "drop_message_too_large"
	DropTooManyConns    = "drop_too_many_connections"
)

// Metrics is a minimal, concurrency-safe counter registry.
//
// It keeps the matchmaking and relay logic testable without pulling in a full
// metrics backend; the /metrics endpoint exposes it for scraping.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{m: make(map[string]uint64)}
}

func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[string]uint64)
	}
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
