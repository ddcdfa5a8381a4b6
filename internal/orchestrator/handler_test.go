package orchestrator

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clip-gateway/internal/platform/logger"
	"clip-gateway/internal/token"

	"github.com/go-chi/chi/v5"
)

var errTest = errors.New("mediaconvert said no")

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/segments/{segment_id}/stream", h.RequestSegment)
	return r
}

func newHandlerFixture(t *testing.T, objects *fakeObjectStore, meta MetadataStore, tc Transcoder) (*chi.Mux, *token.Service) {
	t.Helper()
	tokens, err := token.New("test-secret")
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	svc := NewService(objects, meta, tc, tokens, logger.Nop(), ServiceConfig{
		PollInterval: 5 * time.Millisecond,
		PollBudget:   40 * time.Millisecond,
	})
	h := NewHandler(svc, logger.Nop(), nil)
	return newTestRouter(h), tokens
}

func accessCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == accessCookieName {
			return c
		}
	}
	return nil
}

func TestRequestSegment_exists(t *testing.T) {
	objects := &fakeObjectStore{present: map[string]bool{OutputKey("seg-1"): true}}
	r, tokens := newHandlerFixture(t, objects, NewInMemoryMetadataStore(), &fakeTranscoder{})

	req := httptest.NewRequest(http.MethodGet, "/segments/seg-1/stream", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body segmentResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != StatusExists {
		t.Errorf("status = %q, want %q", body.Status, StatusExists)
	}
	if !strings.Contains(body.PlaybackURL, "segments/seg-1/hls/master.m3u8") {
		t.Errorf("unexpected playback url %q", body.PlaybackURL)
	}

	c := accessCookie(t, rec)
	if c == nil {
		t.Fatal("expected segment_access cookie")
	}
	if !c.HttpOnly || !c.Secure || c.Path != "/" {
		t.Errorf("cookie attributes wrong: %+v", c)
	}
	if d := tokens.Validate(c.Value, "seg-1", time.Now()); !d.Allowed {
		t.Errorf("issued cookie should validate, got Deny(%q)", d.Reason)
	}
	if body.Token != c.Value {
		t.Error("body token and cookie value should match")
	}
}

func TestRequestSegment_not_found(t *testing.T) {
	r, _ := newHandlerFixture(t, &fakeObjectStore{}, NewInMemoryMetadataStore(), &fakeTranscoder{})

	req := httptest.NewRequest(http.MethodGet, "/segments/missing/stream", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRequestSegment_pending(t *testing.T) {
	r, _ := newHandlerFixture(t, &fakeObjectStore{}, seededMetadata("seg-1"), &fakeTranscoder{})

	req := httptest.NewRequest(http.MethodGet, "/segments/seg-1/stream", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if accessCookie(t, rec) == nil {
		t.Error("202 should still set the access cookie for the retry flow")
	}
	var body segmentResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != StatusPending {
		t.Errorf("status = %q, want %q", body.Status, StatusPending)
	}
	if body.PlaybackURL != "" {
		t.Errorf("pending response must not carry a playback url, got %q", body.PlaybackURL)
	}
}

func TestRequestSegment_missing_user(t *testing.T) {
	r, _ := newHandlerFixture(t, &fakeObjectStore{}, NewInMemoryMetadataStore(), &fakeTranscoder{})

	req := httptest.NewRequest(http.MethodGet, "/segments/seg-1/stream", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without X-User-ID, got %d", rec.Code)
	}
}

func TestRequestSegment_submission_failure(t *testing.T) {
	tc := &fakeTranscoder{err: errTest}
	r, _ := newHandlerFixture(t, &fakeObjectStore{}, seededMetadata("seg-1"), tc)

	req := httptest.NewRequest(http.MethodGet, "/segments/seg-1/stream", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502 on submission failure, got %d", rec.Code)
	}
}
