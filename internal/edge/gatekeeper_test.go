package edge

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clip-gateway/internal/platform/logger"
	"clip-gateway/internal/token"
)

func newTestGate(t *testing.T) (*Gatekeeper, *token.Service) {
	t.Helper()
	tokens, err := token.New("test-secret")
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	return NewGatekeeper(tokens, logger.Nop(), nil), tokens
}

func issue(t *testing.T, tokens *token.Service, segmentID string) string {
	t.Helper()
	tok, err := tokens.Issue(segmentID, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

func passthrough(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestProtect_allows_valid_cookie(t *testing.T) {
	gate, tokens := newTestGate(t)
	var called bool
	h := gate.Protect(passthrough(&called))

	req := httptest.NewRequest(http.MethodGet, "/stream/seg-1/chunk0.ts", nil)
	req.AddCookie(&http.Cookie{Name: "segment_access", Value: issue(t, tokens, "seg-1")})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !called {
		t.Error("allowed request must reach the origin handler")
	}
}

func TestProtect_allows_bearer_header(t *testing.T) {
	gate, tokens := newTestGate(t)
	var called bool
	h := gate.Protect(passthrough(&called))

	req := httptest.NewRequest(http.MethodGet, "/stream/seg-1/master.m3u8", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, tokens, "seg-1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !called {
		t.Errorf("expected pass-through, got %d called=%v", rec.Code, called)
	}
}

func TestProtect_denies_missing_token(t *testing.T) {
	gate, _ := newTestGate(t)
	var called bool
	h := gate.Protect(passthrough(&called))

	req := httptest.NewRequest(http.MethodGet, "/stream/seg-1/chunk0.ts", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if called {
		t.Error("denied request must not reach the origin handler")
	}
}

func TestProtect_denies_wrong_segment(t *testing.T) {
	gate, tokens := newTestGate(t)
	var called bool
	h := gate.Protect(passthrough(&called))

	req := httptest.NewRequest(http.MethodGet, "/stream/seg-2/chunk0.ts", nil)
	req.AddCookie(&http.Cookie{Name: "segment_access", Value: issue(t, tokens, "seg-1")})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden || called {
		t.Errorf("token for seg-1 must not open seg-2: code=%d called=%v", rec.Code, called)
	}
}

func TestProtect_denies_expired_token(t *testing.T) {
	gate, tokens := newTestGate(t)
	var called bool
	h := gate.Protect(passthrough(&called))

	tok, err := tokens.Issue("seg-1", -time.Minute, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/stream/seg-1/chunk0.ts", nil)
	req.AddCookie(&http.Cookie{Name: "segment_access", Value: tok})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden || called {
		t.Errorf("expired token must be denied: code=%d called=%v", rec.Code, called)
	}
}

func TestProtect_deny_body_hides_reason(t *testing.T) {
	gate, tokens := newTestGate(t)
	h := gate.Protect(passthrough(new(bool)))

	// Three different failure causes must produce indistinguishable bodies.
	reqMissing := httptest.NewRequest(http.MethodGet, "/stream/seg-1/c.ts", nil)

	reqWrongSeg := httptest.NewRequest(http.MethodGet, "/stream/seg-2/c.ts", nil)
	reqWrongSeg.AddCookie(&http.Cookie{Name: "segment_access", Value: issue(t, tokens, "seg-1")})

	reqGarbage := httptest.NewRequest(http.MethodGet, "/stream/seg-1/c.ts", nil)
	reqGarbage.AddCookie(&http.Cookie{Name: "segment_access", Value: "garbage"})

	var bodies []string
	for _, req := range []*http.Request{reqMissing, reqWrongSeg, reqGarbage} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		bodies = append(bodies, rec.Body.String())
	}
	for _, b := range bodies[1:] {
		if b != bodies[0] {
			t.Errorf("deny bodies differ: %q vs %q", bodies[0], b)
		}
	}
	for _, fragment := range []string{"expired", "signature", "mismatch", "cookie", "token"} {
		if strings.Contains(strings.ToLower(bodies[0]), fragment) {
			t.Errorf("deny body leaks reason fragment %q: %q", fragment, bodies[0])
		}
	}
}

func TestProtect_bad_path(t *testing.T) {
	gate, tokens := newTestGate(t)
	var called bool
	h := gate.Protect(passthrough(&called))

	for _, path := range []string{"/other/seg-1/c.ts", "/stream/", "/stream/seg-1"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(&http.Cookie{Name: "segment_access", Value: issue(t, tokens, "seg-1")})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("path %q: expected 400, got %d", path, rec.Code)
		}
	}
	if called {
		t.Error("malformed paths must not reach the origin handler")
	}
}

func TestSegmentIDFromPath(t *testing.T) {
	cases := []struct {
		path string
		id   string
		ok   bool
	}{
		{"/stream/seg-1/chunk0.ts", "seg-1", true},
		{"/stream/seg-1/hls/master.m3u8", "seg-1", true},
		{"/stream/seg-1", "", false},
		{"/stream//chunk0.ts", "", false},
		{"/segments/seg-1/chunk0.ts", "", false},
		{"/", "", false},
	}
	for _, c := range cases {
		id, ok := segmentIDFromPath(c.path)
		if id != c.id || ok != c.ok {
			t.Errorf("segmentIDFromPath(%q) = (%q, %v), want (%q, %v)", c.path, id, ok, c.id, c.ok)
		}
	}
}
