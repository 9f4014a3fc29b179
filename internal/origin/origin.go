// Package origin validates browser Origin headers for the WebSocket handshake
// and the CORS-enabled HTTP surface.
package origin

import (
	"net/url"
	"strconv"
	"strings"
)

// Normalize validates an Origin header value and returns it in canonical
// scheme://host[:port] form, along with the host[:port] part for same-host
// comparisons. Default ports (80 for http, 443 for https) are folded away.
//
// The special value "null" (sandboxed iframes, file:// pages) is returned
// as-is.
func Normalize(header string) (normalized string, host string, ok bool) {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return "", "", false
	}
	if raw == "null" {
		return "null", "", true
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", "", false
	}
	// An origin is only scheme://host[:port]; anything more means the header
	// was forged or mangled.
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" || (u.Path != "" && u.Path != "/") {
		return "", "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}

	host, ok = canonicalHostPort(u.Host, scheme)
	if !ok {
		return "", "", false
	}
	return scheme + "://" + host, host, true
}

// Allowed reports whether a normalized origin may access the server.
//
// With a non-empty allow list, each entry must be "*" or a normalized origin.
// With an empty allow list the policy is same-host: the origin's host[:port]
// must equal the request's Host header (default ports folded). Scheme is
// deliberately not compared because a TLS-terminating proxy may present the
// request as plain HTTP.
func Allowed(normalizedOrigin, originHost, requestHost string, allowList []string) bool {
	if len(allowList) > 0 {
		for _, entry := range allowList {
			if entry == "*" || entry == normalizedOrigin {
				return true
			}
		}
		return false
	}

	var scheme string
	switch {
	case strings.HasPrefix(normalizedOrigin, "http://"):
		scheme = "http"
	case strings.HasPrefix(normalizedOrigin, "https://"):
		scheme = "https"
	default:
		// "null" and anything unnormalized can never match a host.
		return false
	}

	reqHost, ok := canonicalHostPort(strings.TrimSpace(requestHost), scheme)
	if !ok {
		return false
	}
	return originHost == reqHost
}

// canonicalHostPort lowercases the hostname, validates the port, and folds
// away the scheme's default port. IPv6 literals stay bracketed.
func canonicalHostPort(hostport, scheme string) (string, bool) {
	hostname, portStr, ok := splitHostPort(strings.ToLower(hostport))
	if !ok || hostname == "" {
		return "", false
	}

	var port uint64
	if portStr != "" {
		n, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil || n == 0 {
			return "", false
		}
		port = n
	}
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		port = 0
	}

	out := hostname
	if strings.Contains(hostname, ":") {
		out = "[" + hostname + "]"
	}
	if port != 0 {
		out += ":" + strconv.FormatUint(port, 10)
	}
	return out, true
}

// splitHostPort splits an authority host[:port]. IPv6 literals are returned
// without brackets; the port is returned unvalidated and empty when absent.
func splitHostPort(raw string) (hostname, port string, ok bool) {
	if raw == "" {
		return "", "", false
	}

	if strings.HasPrefix(raw, "[") {
		end := strings.IndexByte(raw, ']')
		if end < 0 {
			return "", "", false
		}
		hostname = raw[1:end]
		rest := raw[end+1:]
		switch {
		case rest == "":
			return hostname, "", true
		case strings.HasPrefix(rest, ":") && len(rest) > 1:
			return hostname, rest[1:], true
		default:
			return "", "", false
		}
	}

	switch strings.Count(raw, ":") {
	case 0:
		return raw, "", true
	case 1:
		i := strings.IndexByte(raw, ':')
		if i == 0 || i == len(raw)-1 {
			return "", "", false
		}
		return raw[:i], raw[i+1:], true
	default:
		// Unbracketed IPv6 is not valid in an authority.
		return "", "", false
	}
}
