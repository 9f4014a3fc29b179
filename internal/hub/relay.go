package hub

import (
	"encoding/json"
	"log/slog"

	"github.com/sparkchat/spark-signaling/internal/metrics"
)

// Relay forwards signaling and chat payloads to the sender's current match
// partner without interpreting them. A sender with no partner gets nothing
// back: signaling that arrives after the partner already left is an expected
// race, not a fault.
type Relay struct {
	logger     *slog.Logger
	metrics    *metrics.Metrics
	registry   *Registry
	matchmaker *Matchmaker
	now        nowFunc
}

func NewRelay(logger *slog.Logger, m *metrics.Metrics, registry *Registry, matchmaker *Matchmaker) *Relay {
	return &Relay{
		logger:     logger,
		metrics:    m,
		registry:   registry,
		matchmaker: matchmaker,
		now:        realNow,
	}
}

// ForwardSignal envelopes a WebRTC negotiation payload and delivers it to the
// sender's partner.
func (r *Relay) ForwardSignal(from, kind string, data json.RawMessage) {
	partner, ok := r.matchmaker.PartnerOf(from)
	if !ok {
		r.metrics.Inc(metrics.DropNoPartner)
		r.logger.Debug("dropping signal from unmatched user", "user_id", from, "kind", kind)
		return
	}
	r.metrics.Inc(metrics.SignalForwarded)
	r.registry.Send(partner, newSignalEvent(r.now, kind, from, data))
}

// ForwardChat delivers a chat line to the sender's partner.
func (r *Relay) ForwardChat(from, message string) {
	partner, ok := r.matchmaker.PartnerOf(from)
	if !ok {
		r.metrics.Inc(metrics.DropNoPartner)
		r.logger.Debug("dropping chat from unmatched user", "user_id", from)
		return
	}
	r.metrics.Inc(metrics.ChatForwarded)
	r.registry.Send(partner, newChatEvent(r.now, from, message))
}
