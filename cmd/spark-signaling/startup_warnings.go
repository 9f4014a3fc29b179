package main

import (
	"log/slog"
	"strings"

	"github.com/sparkchat/spark-signaling/internal/config"
)

// logStartupWarnings flags configurations that work but are probably not what
// an operator wants in production. None of these stop startup.
func logStartupWarnings(logger *slog.Logger, cfg config.Config) {
	wildcard := false
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
	}

	if wildcard {
		logger.Warn("allowed origins contains a wildcard; any website can open signaling connections")
	}
	if len(cfg.AllowedOrigins) == 0 && cfg.Mode == config.ModeProd {
		logger.Warn("no allowed origins configured; only same-host browser origins will be accepted")
	}
	if cfg.Mode == config.ModeProd && cfg.MaxConnections <= 0 {
		logger.Warn("no connection cap configured; consider MAX_CONNECTIONS in production")
	}

	if err := cfg.ICEConfigError(); err != nil {
		logger.Warn("ice server configuration invalid; /webrtc/ice will return 503", "err", err)
	} else if len(cfg.ICEServers) == 0 {
		logger.Warn("no ICE servers configured; clients behind NAT may fail to connect to each other")
	}
	if cfg.TURNREST.Enabled() && !hasTURNServer(cfg) {
		logger.Warn("TURN REST secret configured but no TURN server URLs present")
	}
}

func hasTURNServer(cfg config.Config) bool {
	for _, s := range cfg.ICEServers {
		for _, u := range s.URLs {
			if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
				return true
			}
		}
	}
	return false
}
