// Package signaling terminates the WebSocket transport at /ws/{user_id} and
// feeds decoded events into the hub. One reader and one writer goroutine per
// connection; all outbound traffic flows through a bounded queue so a slow
// client never blocks the hub.
package signaling

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sparkchat/spark-signaling/internal/config"
	"github.com/sparkchat/spark-signaling/internal/hub"
	"github.com/sparkchat/spark-signaling/internal/metrics"
	"github.com/sparkchat/spark-signaling/internal/ratelimit"
)

const (
	writeTimeout  = 10 * time.Second
	maxUserIDLen  = 128
	handshakeWait = 10 * time.Second
)

type Server struct {
	logger     *slog.Logger
	metrics    *metrics.Metrics
	dispatcher *hub.Dispatcher
	cfg        config.Config
	clock      ratelimit.Clock
	upgrader   websocket.Upgrader

	mu    sync.Mutex
	peers map[*wsPeer]struct{}
}

func NewServer(logger *slog.Logger, m *metrics.Metrics, dispatcher *hub.Dispatcher, cfg config.Config) *Server {
	return &Server{
		logger:     logger,
		metrics:    m,
		dispatcher: dispatcher,
		cfg:        cfg,
		clock:      ratelimit.RealClock{},
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeWait,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			// Origin policy is enforced by HTTP middleware before the
			// handshake reaches this handler.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		peers: make(map[*wsPeer]struct{}),
	}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/{user_id}", s.handleWS)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if strings.TrimSpace(userID) == "" || len(userID) > maxUserIDLen {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	if s.cfg.MaxConnections > 0 && s.peerCount() >= s.cfg.MaxConnections {
		s.metrics.Inc(metrics.DropTooManyConns)
		s.logger.Warn("rejecting connection, at capacity", "user_id", userID, "max", s.cfg.MaxConnections)
		http.Error(w, "server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.logger.Debug("websocket upgrade failed", "user_id", userID, "err", err)
		return
	}

	peer := &wsPeer{
		conn: conn,
		send: make(chan hub.ServerEvent, s.cfg.WSSendQueueSize),
		done: make(chan struct{}),
	}
	connID := uuid.NewString()

	s.addPeer(peer)
	defer s.removePeer(peer)

	go s.writePump(peer)
	defer peer.shutdown(websocket.CloseNormalClosure, "")

	s.dispatcher.HandleConnect(userID, connID, peer)
	defer s.dispatcher.HandleDisconnect(userID, connID)

	s.readPump(userID, peer)
}

// readPump runs in the handler goroutine and processes inbound events
// strictly in arrival order. It returns when the connection closes, times out
// idle, or exceeds the read limit.
func (s *Server) readPump(userID string, p *wsPeer) {
	conn := p.conn
	conn.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))
	})

	rate := int64(s.cfg.MaxMessagesPerSecond)
	bucket := ratelimit.NewTokenBucket(s.clock, rate, rate)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				s.metrics.Inc(metrics.DropTooLarge)
				s.logger.Warn("closing connection, message too large", "user_id", userID, "limit", s.cfg.MaxMessageBytes)
			case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				s.logger.Debug("websocket read error", "user_id", userID, "err", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))

		if !bucket.Allow(1) {
			s.metrics.Inc(metrics.DropRateLimited)
			s.logger.Debug("dropping rate-limited event", "user_id", userID)
			continue
		}

		ev, err := hub.ParseClientEvent(raw)
		if err != nil {
			s.metrics.Inc(metrics.DropMalformedEvent)
			s.logger.Debug("dropping malformed event", "user_id", userID, "err", err)
			continue
		}

		s.dispatcher.HandleEvent(userID, ev)
	}
}

// writePump owns all writes to the connection: queued events, periodic pings,
// and the final close frame.
func (s *Server) writePump(p *wsPeer) {
	ticker := time.NewTicker(s.cfg.WSPingInterval)
	defer ticker.Stop()
	defer p.conn.Close()

	for {
		select {
		case ev := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-p.done:
			code, reason := p.closeFrame()
			msg := websocket.FormatCloseMessage(code, reason)
			_ = p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
			return
		}
	}
}

func (s *Server) addPeer(p *wsPeer) {
	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removePeer(p *wsPeer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
}

func (s *Server) peerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Shutdown closes every open connection. http.Server.Shutdown does not touch
// hijacked connections, so the caller invokes this after the HTTP listener
// has drained.
func (s *Server) Shutdown() {
	s.mu.Lock()
	peers := make([]*wsPeer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		p.shutdown(websocket.CloseGoingAway, "server shutting down")
	}
}

// wsPeer adapts one WebSocket connection to the hub.Peer interface.
type wsPeer struct {
	conn *websocket.Conn
	send chan hub.ServerEvent

	once   sync.Once
	done   chan struct{}
	mu     sync.Mutex
	code   int
	reason string
}

// Deliver queues an event without blocking. A full queue or a closed
// connection reports an error; the hub treats both as a dropped delivery.
func (p *wsPeer) Deliver(ev hub.ServerEvent) error {
	select {
	case <-p.done:
		return errors.New("connection closed")
	default:
	}
	select {
	case p.send <- ev:
		return nil
	default:
		return errors.New("send queue full")
	}
}

// Kick closes the connection with a policy-violation close frame. Called by
// the hub when the user id reconnects elsewhere.
func (p *wsPeer) Kick(reason string) {
	p.shutdown(websocket.ClosePolicyViolation, reason)
}

func (p *wsPeer) shutdown(code int, reason string) {
	p.once.Do(func() {
		p.mu.Lock()
		p.code = code
		p.reason = reason
		p.mu.Unlock()
		close(p.done)
	})
}

func (p *wsPeer) closeFrame() (int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code, p.reason
}
