package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

const (
	envICEServersJSON = "SPARK_ICE_SERVERS_JSON"
	envStunURLs       = "SPARK_STUN_URLS"
	envTurnURLs       = "SPARK_TURN_URLS"
	envTurnUsername   = "SPARK_TURN_USERNAME"
	envTurnCredential = "SPARK_TURN_CREDENTIAL"
)

type iceServerJSON struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// parseICEServersFromValues resolves the ICE server list handed to clients.
// The JSON form wins when set; otherwise the convenience STUN/TURN variables
// are combined. TURN entries may omit static credentials when TURN REST
// ephemeral credentials are enabled, since those are injected per request.
func parseICEServersFromValues(iceJSON, stunURLs, turnURLs, turnUsername, turnCredential string, turnRESTEnabled bool) ([]webrtc.ICEServer, error) {
	if strings.TrimSpace(iceJSON) != "" {
		return parseICEServersJSON(iceJSON, turnRESTEnabled)
	}

	var servers []webrtc.ICEServer

	if urls := splitURLList(stunURLs); len(urls) > 0 {
		for _, u := range urls {
			if !strings.HasPrefix(u, "stun:") && !strings.HasPrefix(u, "stuns:") {
				return nil, fmt.Errorf("invalid STUN URL %q (expected stun: or stuns: scheme)", u)
			}
		}
		servers = append(servers, webrtc.ICEServer{URLs: urls})
	}

	if urls := splitURLList(turnURLs); len(urls) > 0 {
		for _, u := range urls {
			if !strings.HasPrefix(u, "turn:") && !strings.HasPrefix(u, "turns:") {
				return nil, fmt.Errorf("invalid TURN URL %q (expected turn: or turns: scheme)", u)
			}
		}
		server := webrtc.ICEServer{URLs: urls}
		hasStatic := turnUsername != "" || turnCredential != ""
		if hasStatic {
			if turnUsername == "" || turnCredential == "" {
				return nil, fmt.Errorf("%s and %s must both be set or both be empty", envTurnUsername, envTurnCredential)
			}
			server.Username = turnUsername
			server.Credential = turnCredential
		} else if !turnRESTEnabled {
			return nil, fmt.Errorf("TURN URLs configured without credentials: set %s/%s or enable TURN REST", envTurnUsername, envTurnCredential)
		}
		servers = append(servers, server)
	} else if turnUsername != "" || turnCredential != "" {
		return nil, fmt.Errorf("%s/%s set without %s", envTurnUsername, envTurnCredential, envTurnURLs)
	}

	return servers, nil
}

func parseICEServersJSON(raw string, turnRESTEnabled bool) ([]webrtc.ICEServer, error) {
	var entries []iceServerJSON
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", envICEServersJSON, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("invalid %s: must contain at least one server", envICEServersJSON)
	}

	servers := make([]webrtc.ICEServer, 0, len(entries))
	for i, entry := range entries {
		if len(entry.URLs) == 0 {
			return nil, fmt.Errorf("invalid %s: server %d has no urls", envICEServersJSON, i)
		}
		hasTURN := false
		for _, u := range entry.URLs {
			u = strings.TrimSpace(u)
			if u == "" {
				return nil, fmt.Errorf("invalid %s: server %d has an empty url", envICEServersJSON, i)
			}
			switch {
			case strings.HasPrefix(u, "stun:"), strings.HasPrefix(u, "stuns:"):
			case strings.HasPrefix(u, "turn:"), strings.HasPrefix(u, "turns:"):
				hasTURN = true
			default:
				return nil, fmt.Errorf("invalid %s: server %d url %q has an unsupported scheme", envICEServersJSON, i, u)
			}
		}

		server := webrtc.ICEServer{URLs: entry.URLs}
		if entry.Username != "" || entry.Credential != "" {
			if entry.Username == "" || entry.Credential == "" {
				return nil, fmt.Errorf("invalid %s: server %d must set both username and credential or neither", envICEServersJSON, i)
			}
			server.Username = entry.Username
			server.Credential = entry.Credential
		} else if hasTURN && !turnRESTEnabled {
			return nil, fmt.Errorf("invalid %s: server %d has TURN urls but no credentials and TURN REST is disabled", envICEServersJSON, i)
		}

		servers = append(servers, server)
	}

	return servers, nil
}

func splitURLList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
