package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"clip-gateway/internal/timecode"
	"clip-gateway/internal/token"
)

// Defaults for the materialize-or-wait protocol.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollBudget   = 60 * time.Second
	DefaultTokenTTL     = time.Hour

	// readRetries bounds retry attempts for transient failures of the
	// idempotent reads (object existence, metadata lookup).
	readRetries = 2
)

var (
	// ErrJobSubmission wraps a failed transcode submission. Submissions are
	// never retried automatically: the job is expensive and double-submitting
	// it is worse than making the caller resubmit.
	ErrJobSubmission = errors.New("transcode job submission failed")

	// ErrUpstreamUnavailable wraps a metadata or object-store read that kept
	// failing after bounded retries.
	ErrUpstreamUnavailable = errors.New("upstream store unavailable")

	// ErrBadMetadata wraps a metadata record whose time fields do not parse.
	ErrBadMetadata = errors.New("invalid segment metadata")
)

// Service runs the materialize-or-wait protocol: resolve an existing output,
// or submit one clip job and wait a bounded time for the output to appear.
// Each call is an independent, stateless invocation; the only cross-request
// state is the in-process flight group deduplicating concurrent cold
// requests for the same segment.
type Service struct {
	objects    ObjectStore
	metadata   MetadataStore
	transcoder Transcoder
	tokens     *token.Service
	log        *slog.Logger

	tokenTTL     time.Duration
	pollInterval time.Duration
	pollBudget   time.Duration
	frameRate    int

	flight singleflight.Group
}

// ServiceConfig carries tunables for NewService. Zero values select the
// defaults above (frame rate defaults to timecode.DefaultFrameRate).
type ServiceConfig struct {
	TokenTTL     time.Duration
	PollInterval time.Duration
	PollBudget   time.Duration
	FrameRate    int
}

// NewService wires the orchestrator to its collaborators.
func NewService(objects ObjectStore, metadata MetadataStore, transcoder Transcoder, tokens *token.Service, log *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollBudget <= 0 {
		cfg.PollBudget = DefaultPollBudget
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = timecode.DefaultFrameRate
	}
	return &Service{
		objects:      objects,
		metadata:     metadata,
		transcoder:   transcoder,
		tokens:       tokens,
		log:          log,
		tokenTTL:     cfg.TokenTTL,
		pollInterval: cfg.PollInterval,
		pollBudget:   cfg.PollBudget,
		frameRate:    cfg.FrameRate,
	}
}

// Request resolves one segment request. Outcomes:
//   - StatusExists: output already materialized, no job submitted.
//   - StatusReady: job submitted, output appeared within the poll budget.
//   - StatusPending: job submitted, output not yet visible. Not an error.
//   - StatusNotFound: no metadata record for the segment.
//
// Cancellation of ctx abandons the wait for the caller that cancelled; the
// shared poll and the already-submitted job keep running, and later requests
// find the output via the fast path.
func (s *Service) Request(ctx context.Context, req SegmentRequest) (*Result, error) {
	key := OutputKey(req.SegmentID)

	exists, err := s.existsWithRetry(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return s.grant(StatusExists, req.SegmentID, "")
	}

	// Concurrent first requests for the same cold segment share one
	// submission and one poll. The flight body is detached from the
	// individual caller's context so one disconnect cannot cancel the
	// answer for everyone else; the poll budget still bounds the work.
	ch := s.flight.DoChan(string(req.SegmentID), func() (interface{}, error) {
		return s.materialize(context.WithoutCancel(ctx), req.SegmentID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	}
}

// materialize runs the cold path: metadata lookup, job submission, bounded
// poll for the output object.
func (s *Service) materialize(ctx context.Context, id SegmentID) (*Result, error) {
	meta, err := s.metadataWithRetry(ctx, id)
	if errors.Is(err, ErrMetadataNotFound) {
		return &Result{Status: StatusNotFound}, nil
	}
	if err != nil {
		return nil, err
	}

	startTC, endTC, err := clipWindow(meta, s.frameRate)
	if err != nil {
		return nil, err
	}

	handle, err := s.transcoder.SubmitClipJob(ctx, ClipJob{
		SegmentID:     id,
		SourceRef:     meta.SourceRef,
		StartTimecode: startTC,
		EndTimecode:   endTC,
		OutputPrefix:  OutputPrefix(id),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJobSubmission, err)
	}

	s.log.Info("clip job submitted",
		slog.String("segment_id", string(id)),
		slog.String("job_id", handle.JobID),
		slog.String("start", startTC),
		slog.String("end", endTC),
		slog.String("output_prefix", handle.OutputPrefix),
	)

	ready, err := s.waitForOutput(ctx, OutputKey(id))
	if err != nil {
		return nil, err
	}
	if !ready {
		s.log.Info("poll budget exhausted, segment still pending",
			slog.String("segment_id", string(id)),
			slog.String("job_id", handle.JobID),
		)
		res, err := s.grant(StatusPending, id, handle.JobID)
		if err != nil {
			return nil, err
		}
		// Pending responses carry a token (for the client's retry-then-play
		// flow) but no playback URL, since there is nothing to play yet.
		res.PlaybackURL = ""
		res.SegmentPath = ""
		return res, nil
	}

	return s.grant(StatusReady, id, handle.JobID)
}

// grant mints the access token and assembles a terminal Result.
func (s *Service) grant(status Status, id SegmentID, jobID string) (*Result, error) {
	tok, err := s.tokens.Issue(string(id), s.tokenTTL, time.Now())
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	key := OutputKey(id)
	return &Result{
		Status:      status,
		SegmentPath: key,
		PlaybackURL: s.objects.PublicURL(key),
		Token:       tok,
		JobID:       jobID,
	}, nil
}

// waitForOutput polls object existence every pollInterval until the object
// appears or pollBudget elapses. Budget exhaustion returns (false, nil);
// caller cancellation returns the context error.
func (s *Service) waitForOutput(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.pollBudget)
	defer cancel()

	// First check happens right away: short clips can finish before the
	// first tick.
	exists, err := s.existsWithRetry(ctx, key)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return false, nil
		}
		return false, err
	}
	if exists {
		return true, nil
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return false, nil
			}
			return false, ctx.Err()
		case <-ticker.C:
			exists, err := s.existsWithRetry(ctx, key)
			if err != nil {
				// The budget timer expiring mid-check is still a
				// normal pending outcome.
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return false, nil
				}
				return false, err
			}
			if exists {
				return true, nil
			}
		}
	}
}

// existsWithRetry wraps ObjectStore.Exists with bounded backoff, since a
// synchronous client is waiting on the answer.
func (s *Service) existsWithRetry(ctx context.Context, key string) (bool, error) {
	var exists bool
	op := func() error {
		var err error
		exists, err = s.objects.Exists(ctx, key)
		return err
	}
	if err := backoff.Retry(op, readBackoff(ctx)); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return exists, nil
}

// metadataWithRetry wraps MetadataStore.GetSegmentMetadata with bounded
// backoff. Not-found is a terminal answer, never retried.
func (s *Service) metadataWithRetry(ctx context.Context, id SegmentID) (*SegmentMetadata, error) {
	var meta *SegmentMetadata
	op := func() error {
		var err error
		meta, err = s.metadata.GetSegmentMetadata(ctx, id)
		if errors.Is(err, ErrMetadataNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, readBackoff(ctx)); err != nil {
		if errors.Is(err, ErrMetadataNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return meta, nil
}

func readBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	return backoff.WithContext(backoff.WithMaxRetries(b, readRetries), ctx)
}

// clipWindow computes the frame-accurate start/end timecodes for a metadata
// record. Offsets and durations may be wall-clock strings or whole seconds;
// whole-second records come from the ingest path that stores durations as
// plain integers.
func clipWindow(meta *SegmentMetadata, frameRate int) (startTC, endTC string, err error) {
	startSecs, startIsInt := wholeSeconds(meta.StartOffset)
	durSecs, durIsInt := wholeSeconds(meta.Duration)
	if startIsInt && durIsInt {
		return timecode.SecondsToTimecode(startSecs), timecode.SecondsToTimecode(startSecs + durSecs), nil
	}

	start := meta.StartOffset
	if startIsInt {
		start = wallClockFromSeconds(startSecs)
	}
	dur := meta.Duration
	if durIsInt {
		dur = wallClockFromSeconds(durSecs)
	}

	startTC, err = timecode.ToTimecode(start, frameRate)
	if err != nil {
		return "", "", fmt.Errorf("%w: start offset: %v", ErrBadMetadata, err)
	}
	endTC, err = timecode.AddDuration(start, dur, frameRate)
	if err != nil {
		return "", "", fmt.Errorf("%w: duration: %v", ErrBadMetadata, err)
	}
	return startTC, endTC, nil
}

func wholeSeconds(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func wallClockFromSeconds(n int) string {
	return fmt.Sprintf("%02d:%02d:%02d.000", n/3600, (n%3600)/60, n%60)
}
