package hub

import (
	"log/slog"

	"github.com/sparkchat/spark-signaling/internal/metrics"
)

// Dispatcher drives the per-connection session lifecycle. It mediates between
// the Registry, the Matchmaker, and the Relay; neither of those reaches into
// the others' state.
//
// A session moves through Unmatched → Waiting → Matched and back. Events that
// are invalid in the current state are dropped without closing the
// connection.
type Dispatcher struct {
	logger     *slog.Logger
	metrics    *metrics.Metrics
	registry   *Registry
	matchmaker *Matchmaker
	relay      *Relay
	now        nowFunc
}

func NewDispatcher(logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	registry := NewRegistry(logger, m)
	matchmaker := NewMatchmaker()
	return &Dispatcher{
		logger:     logger,
		metrics:    m,
		registry:   registry,
		matchmaker: matchmaker,
		relay:      NewRelay(logger, m, registry, matchmaker),
		now:        realNow,
	}
}

// HandleConnect registers the connection and announces presence. A prior
// connection holding the same user id is kicked; its waiting or matched state
// carries over to the new connection, since matchmaking is keyed by user id,
// not by socket.
func (d *Dispatcher) HandleConnect(userID, connID string, peer Peer) {
	if evicted := d.registry.Register(userID, connID, peer); evicted != nil {
		evicted.Kick("user id reconnected elsewhere")
	}

	count := d.registry.Count()
	d.registry.Send(userID, newConnectedEvent(d.now, userID))
	d.registry.Send(userID, newOnlineCountEvent(d.now, count))
	d.registry.Broadcast(newOnlineCountEvent(d.now, count))

	d.logger.Info("user connected", "user_id", userID, "conn_id", connID, "online", count)
}

// HandleDisconnect tears down the session. It is idempotent: a stale
// disconnect from an evicted connection (connID no longer registered) is a
// no-op, so a reconnecting user's fresh session is never torn down by the old
// socket's cleanup.
func (d *Dispatcher) HandleDisconnect(userID, connID string) {
	if !d.registry.Unregister(userID, connID) {
		d.logger.Debug("ignoring stale disconnect", "user_id", userID, "conn_id", connID)
		return
	}

	if partner, hadMatch := d.matchmaker.Disconnect(userID); hadMatch {
		d.metrics.Inc(metrics.MatchEnded)
		d.registry.Send(partner, newPartnerDisconnectedEvent(d.now))
	}

	count := d.registry.Count()
	d.registry.Broadcast(newOnlineCountEvent(d.now, count))
	d.logger.Info("user disconnected", "user_id", userID, "conn_id", connID, "online", count)
}

// HandleEvent processes one inbound event in arrival order for its
// connection.
func (d *Dispatcher) HandleEvent(userID string, ev ClientEvent) {
	switch ev.Type {
	case EventFindMatch:
		if _, matched := d.matchmaker.PartnerOf(userID); matched {
			// Matched users must skip, not re-request; honoring this would
			// leave them both matched and waiting.
			d.metrics.Inc(metrics.DropOutOfStateEvent)
			d.logger.Debug("ignoring find_match from matched user", "user_id", userID)
			return
		}
		d.findMatch(userID, matchRequestFromEvent(ev))

	case EventSkip:
		if _, matched := d.matchmaker.PartnerOf(userID); !matched {
			d.metrics.Inc(metrics.DropOutOfStateEvent)
			d.logger.Debug("ignoring skip from unmatched user", "user_id", userID)
			return
		}
		oldPartner, hadMatch, newPartner, matched := d.matchmaker.Skip(userID, matchRequestFromEvent(ev))
		if hadMatch {
			d.metrics.Inc(metrics.MatchSkipped)
			d.registry.Send(oldPartner, newPartnerDisconnectedEvent(d.now))
		}
		// hadMatch can be false if the partner disconnected between the
		// check above and the skip; the user still re-enters matching.
		d.announceMatchResult(userID, newPartner, matched, "Looking for a new partner...")

	case EventOffer, EventAnswer, EventICECandidate:
		d.relay.ForwardSignal(userID, ev.Type, ev.Data)

	case EventChatMessage:
		d.relay.ForwardChat(userID, ev.Message)

	default:
		d.metrics.Inc(metrics.DropUnknownEvent)
		d.logger.Debug("ignoring unknown event", "user_id", userID, "event", ev.Type)
	}
}

func (d *Dispatcher) findMatch(userID string, req MatchRequest) {
	partner, matched := d.matchmaker.FindMatch(userID, req)
	d.announceMatchResult(userID, partner, matched, "Looking for a partner...")
}

// announceMatchResult emits match_found to both sides (the requester is the
// initiator of the WebRTC offer) or waiting to the requester alone.
func (d *Dispatcher) announceMatchResult(userID, partner string, matched bool, waitingMessage string) {
	if matched {
		d.metrics.Inc(metrics.MatchCreated)
		d.registry.Send(userID, newMatchFoundEvent(d.now, partner, true))
		d.registry.Send(partner, newMatchFoundEvent(d.now, userID, false))
		d.logger.Info("match created", "user_id", userID, "partner_id", partner)
		return
	}
	d.registry.Send(userID, newWaitingEvent(d.now, waitingMessage))
}

func matchRequestFromEvent(ev ClientEvent) MatchRequest {
	return MatchRequest{
		Interests:       ev.Interests,
		PreferredGender: ev.PreferredGender,
		Gender:          ev.Gender,
	}
}

// Status is the read-only counters surface exposed over HTTP.
type Status struct {
	ActiveConnections int `json:"active_connections"`
	WaitingQueue      int `json:"waiting_queue"`
	ActiveMatches     int `json:"active_matches"`
}

func (d *Dispatcher) Status() Status {
	return Status{
		ActiveConnections: d.registry.Count(),
		WaitingQueue:      d.matchmaker.WaitingCount(),
		ActiveMatches:     d.matchmaker.MatchPairCount(),
	}
}
