package httpserver

import (
	"net/http"
	"strings"

	"github.com/sparkchat/spark-signaling/internal/origin"
)

// withOriginPolicy enforces the allowed-origins list on browser requests and
// answers CORS preflights. Requests without an Origin header (curl, server to
// server) pass untouched; with no allow list configured, only same-host
// origins are accepted.
func (s *Server) withOriginPolicy(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Origin")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		normalized, originHost, ok := origin.Normalize(header)
		if !ok {
			s.logger.Debug("rejecting malformed origin", "origin", header, "path", r.URL.Path)
			http.Error(w, "forbidden origin", http.StatusForbidden)
			return
		}
		if !origin.Allowed(normalized, originHost, r.Host, s.cfg.AllowedOrigins) {
			s.logger.Debug("rejecting disallowed origin", "origin", normalized, "path", r.URL.Path)
			http.Error(w, "forbidden origin", http.StatusForbidden)
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", header)
		h.Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", strings.Join([]string{http.MethodGet, http.MethodOptions}, ", "))
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
