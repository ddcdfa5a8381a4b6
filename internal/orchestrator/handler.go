package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"clip-gateway/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// accessCookieName is the cookie carrying the segment access token. The
// edge layer reads the same cookie.
const accessCookieName = "segment_access"

// Handler exposes the segment-request endpoint using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and
// optional Metrics. Metrics may be nil to disable metric recording (e.g. in
// tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

type segmentResponse struct {
	Status      Status `json:"status"`
	Message     string `json:"message,omitempty"`
	SegmentPath string `json:"segment_path,omitempty"`
	PlaybackURL string `json:"playback_url,omitempty"`
	Token       string `json:"token,omitempty"`
}

// RequestSegment handles GET /segments/{segment_id}/stream.
// The caller's identity arrives in X-User-ID (set by the auth layer in
// front of this service).
func (h *Handler) RequestSegment(w http.ResponseWriter, r *http.Request) {
	segmentID := chi.URLParam(r, "segment_id")
	userID := r.Header.Get("X-User-ID")

	if segmentID == "" || userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "missing required parameters"})
		return
	}

	res, err := h.svc.Request(r.Context(), SegmentRequest{
		SegmentID: SegmentID(segmentID),
		UserID:    userID,
	})
	if err != nil {
		h.writeError(w, segmentID, err)
		return
	}

	switch res.Status {
	case StatusExists, StatusReady:
		h.setAccessCookie(w, res.Token)
		if h.metrics != nil {
			h.metrics.IncTokensIssued()
			h.metrics.IncSegmentsReady()
			if res.JobID != "" {
				h.metrics.IncJobsSubmitted()
			}
		}
		h.log.Info("segment granted",
			slog.String("segment_id", segmentID),
			slog.String("user_id", userID),
			slog.String("status", string(res.Status)),
			slog.String("job_id", res.JobID),
		)
		writeJSON(w, http.StatusOK, segmentResponse{
			Status:      res.Status,
			SegmentPath: res.SegmentPath,
			PlaybackURL: res.PlaybackURL,
			Token:       res.Token,
		})

	case StatusNotFound:
		writeJSON(w, http.StatusNotFound, segmentResponse{
			Status:  StatusNotFound,
			Message: "segment id not found",
		})

	case StatusPending:
		// The job is accepted but not visible yet. The cookie is set now so
		// the client's retry can go straight to playback once ready.
		h.setAccessCookie(w, res.Token)
		if h.metrics != nil {
			h.metrics.IncTokensIssued()
			h.metrics.IncJobsSubmitted()
			h.metrics.IncPollTimeouts()
		}
		h.log.Info("segment pending",
			slog.String("segment_id", segmentID),
			slog.String("user_id", userID),
			slog.String("job_id", res.JobID),
		)
		writeJSON(w, http.StatusAccepted, segmentResponse{
			Status:  StatusPending,
			Message: "segment is being processed, try again in a moment",
		})

	default:
		h.log.Error("unexpected orchestration status", slog.String("status", string(res.Status)))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, segmentID string, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		// Only the caller that actually disconnected sees a cancelled
		// context; nothing useful to write.
		h.log.Debug("request cancelled", slog.String("segment_id", segmentID))
	case errors.Is(err, ErrJobSubmission):
		h.log.Error("job submission failed", slog.String("segment_id", segmentID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": "transcode submission failed, please retry"})
	case errors.Is(err, ErrUpstreamUnavailable):
		h.log.Error("upstream unavailable", slog.String("segment_id", segmentID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "temporarily unavailable, please retry"})
	case errors.Is(err, ErrBadMetadata):
		h.log.Error("bad segment metadata", slog.String("segment_id", segmentID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "segment metadata is invalid"})
	default:
		h.log.Error("segment request failed", slog.String("segment_id", segmentID), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (h *Handler) setAccessCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    token,
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
