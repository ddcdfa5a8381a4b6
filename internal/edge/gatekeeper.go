// Package edge implements the request-time playback gate that runs next to
// content delivery. It validates access tokens without any network call or
// datastore lookup, so it can sit on the hot path of every chunk fetch.
package edge

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"clip-gateway/internal/platform/metrics"
	"clip-gateway/internal/token"
)

// accessCookieName matches the cookie set by the orchestrator API.
const accessCookieName = "segment_access"

// Gatekeeper filters inbound content requests. Allowed requests are passed
// to the wrapped handler unchanged; everything else is rejected before it
// reaches the origin.
type Gatekeeper struct {
	tokens  *token.Service
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewGatekeeper returns a Gatekeeper validating against tokens. Metrics may
// be nil.
func NewGatekeeper(tokens *token.Service, log *slog.Logger, m *metrics.Metrics) *Gatekeeper {
	return &Gatekeeper{tokens: tokens, log: log, metrics: m, now: time.Now}
}

// Protect wraps next (typically a reverse proxy to the content origin) with
// token validation. The request path must look like /stream/{segmentID}/...;
// the token comes from the segment_access cookie or a bearer header.
//
// Deny reasons go to the log and metrics only. The response body is fixed so
// an attacker cannot distinguish failure causes.
func (g *Gatekeeper) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		segmentID, ok := segmentIDFromPath(r.URL.Path)
		if !ok {
			g.log.Warn("rejected request with invalid segment path",
				slog.String("path", r.URL.Path))
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		tok, ok := extractToken(r)
		if !ok {
			g.deny(w, r, segmentID, "missing access token")
			return
		}

		decision := g.tokens.Validate(tok, segmentID, g.now())
		if !decision.Allowed {
			g.deny(w, r, segmentID, decision.Reason)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// deny logs the reason for operators and returns a fixed 403 body.
func (g *Gatekeeper) deny(w http.ResponseWriter, r *http.Request, segmentID, reason string) {
	g.log.Warn("access denied",
		slog.String("segment_id", segmentID),
		slog.String("path", r.URL.Path),
		slog.String("reason", reason),
	)
	if g.metrics != nil {
		g.metrics.IncEdgeDenials()
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// segmentIDFromPath extracts the segment ID from /stream/{segmentID}/...
// A path without a trailing component after the segment ID does not match.
func segmentIDFromPath(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "/stream/")
	if !ok {
		return "", false
	}
	id, _, ok := strings.Cut(rest, "/")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// extractToken pulls the access token from the segment_access cookie, or
// from an Authorization bearer header for clients that cannot send cookies.
func extractToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(accessCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	auth := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(auth, "Bearer "); ok && tok != "" {
		return tok, true
	}
	return "", false
}
