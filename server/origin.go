package server

import (
	"net/http"
	"strings"
)

var DefaultAllowedOrigins = []string{"chrisprice.dev", "localhost"}

// originHost extracts the host of an Origin value: whatever follows "://"
// up to the first ":". Values without a scheme yield "".
func originHost(origin string) string {
	_, rest, found := strings.Cut(origin, "://")
	if !found {
		return ""
	}
	host, _, _ := strings.Cut(rest, ":")
	return host
}

// allowedOrigin returns the Origin to echo back, or "" when the request
// carries no acceptable one. With repeated headers the last one counts.
func (s *Server) allowedOrigin(r *http.Request) string {
	values := r.Header.Values("Origin")
	if len(values) == 0 {
		return ""
	}
	origin := values[len(values)-1]

	host := originHost(origin)
	if host == "" {
		return ""
	}
	for _, allowed := range s.allowedOrigins() {
		if host == allowed {
			return origin
		}
	}
	return ""
}

func (s *Server) allowedOrigins() []string {
	if s.AllowedOrigins == nil {
		return DefaultAllowedOrigins
	}
	return s.AllowedOrigins
}
