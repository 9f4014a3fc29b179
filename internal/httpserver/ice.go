package httpserver

import (
	"net/http"
	"strings"
)

type iceServerPayload struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type iceResponse struct {
	ICEServers []iceServerPayload `json:"ice_servers"`
	TTLSeconds int64              `json:"ttl_seconds,omitempty"`
}

// handleICEServers returns the ICE server list a browser should pass to its
// RTCPeerConnection. TURN entries without static credentials get ephemeral
// TURN REST credentials minted per request.
func (s *Server) handleICEServers(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.ICEConfigError(); err != nil {
		s.logger.Error("ice endpoint unavailable", "err", err)
		http.Error(w, "ice configuration invalid", http.StatusServiceUnavailable)
		return
	}

	resp := iceResponse{ICEServers: []iceServerPayload{}}
	for _, server := range s.cfg.ICEServers {
		payload := iceServerPayload{URLs: server.URLs}
		payload.Username = server.Username
		if cred, ok := server.Credential.(string); ok {
			payload.Credential = cred
		}

		if payload.Username == "" && s.turnGen != nil && hasTURNURL(server.URLs) {
			creds, err := s.turnGen.GenerateRandom()
			if err != nil {
				s.logger.Error("minting turn credentials failed", "err", err)
				http.Error(w, "credential generation failed", http.StatusInternalServerError)
				return
			}
			payload.Username = creds.Username
			payload.Credential = creds.Credential
			resp.TTLSeconds = s.cfg.TURNREST.TTLSeconds
		}

		resp.ICEServers = append(resp.ICEServers, payload)
	}

	// Ephemeral credentials must not be cached by intermediaries.
	w.Header().Set("Cache-Control", "no-store")
	s.writeJSON(w, http.StatusOK, resp)
}

func hasTURNURL(urls []string) bool {
	for _, u := range urls {
		if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
			return true
		}
	}
	return false
}
