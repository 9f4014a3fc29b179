package hub

import (
	"log/slog"
	"sync"

	"github.com/sparkchat/spark-signaling/internal/metrics"
)

// Peer is the transport side of a registered connection. Deliver must not
// block; implementations queue the event and report failure if the queue is
// full or the connection is gone.
type Peer interface {
	Deliver(ev ServerEvent) error

	// Kick asks the transport to close the connection. Used when a new
	// connection claims an id that is already registered.
	Kick(reason string)
}

type registeredConn struct {
	connID string
	peer   Peer
}

// Registry tracks which user ids currently have a live connection. Each
// registration carries a connection id so a stale disconnect from an evicted
// connection cannot remove its replacement.
type Registry struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	conns map[string]registeredConn
}

func NewRegistry(logger *slog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		logger:  logger,
		metrics: m,
		conns:   make(map[string]registeredConn),
	}
}

// Register binds userID to the given connection. If the id is already bound,
// the prior peer is evicted and returned so the caller can close it.
func (r *Registry) Register(userID, connID string, peer Peer) (evicted Peer) {
	r.mu.Lock()
	prev, existed := r.conns[userID]
	r.conns[userID] = registeredConn{connID: connID, peer: peer}
	r.mu.Unlock()

	r.metrics.Inc(metrics.ConnectionOpened)
	if existed {
		r.metrics.Inc(metrics.ConnectionEvicted)
		r.logger.Info("evicting prior connection for user", "user_id", userID, "old_conn_id", prev.connID, "new_conn_id", connID)
		return prev.peer
	}
	return nil
}

// Unregister removes userID's registration, but only if it still belongs to
// connID. Returns whether a registration was removed.
func (r *Registry) Unregister(userID, connID string) bool {
	r.mu.Lock()
	cur, ok := r.conns[userID]
	if ok && cur.connID == connID {
		delete(r.conns, userID)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		r.metrics.Inc(metrics.ConnectionClosed)
	}
	return ok
}

// Send delivers an event to userID's connection. Delivery is best-effort: a
// missing registration or a full outbound queue drops the event with a log
// line, never an error to the caller.
func (r *Registry) Send(userID string, ev ServerEvent) {
	r.mu.Lock()
	cur, ok := r.conns[userID]
	r.mu.Unlock()

	if !ok {
		r.metrics.Inc(metrics.DropDeliveryFailed)
		r.logger.Debug("dropping event for unknown user", "user_id", userID, "event", ev.Type)
		return
	}
	if err := cur.peer.Deliver(ev); err != nil {
		r.metrics.Inc(metrics.DropDeliveryFailed)
		r.logger.Warn("dropping undeliverable event", "user_id", userID, "event", ev.Type, "err", err)
	}
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Broadcast sends an event to every registered connection. The recipient set
// is snapshotted under the lock and delivery happens outside it, so a user
// connecting mid-broadcast may miss this round; the next broadcast covers
// them.
func (r *Registry) Broadcast(ev ServerEvent) {
	r.mu.Lock()
	peers := make([]registeredConn, 0, len(r.conns))
	ids := make([]string, 0, len(r.conns))
	for id, c := range r.conns {
		peers = append(peers, c)
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for i, c := range peers {
		if err := c.peer.Deliver(ev); err != nil {
			r.metrics.Inc(metrics.DropDeliveryFailed)
			r.logger.Debug("broadcast delivery failed", "user_id", ids[i], "event", ev.Type, "err", err)
		}
	}
}
