package orchestrator

import "fmt"

// SegmentID uniquely identifies a bounded time-window clip of a source asset.
type SegmentID string

// SegmentRequest is one client request to materialize-or-fetch a segment.
// It lives only for the duration of a single orchestration call.
type SegmentRequest struct {
	SegmentID SegmentID
	UserID    string
}

// SegmentMetadata describes how to carve a segment out of its source asset.
// Rows are created out-of-band before a segment is first requested and are
// read-only to the orchestrator.
type SegmentMetadata struct {
	SegmentID   SegmentID
	SourceRef   string // URI of the source asset (e.g. s3://bucket/in.mp4)
	StartOffset string // wall-clock offset from asset start, HH:MM:SS[.mmm] or whole seconds
	Duration    string // clip length, same forms as StartOffset
}

// JobHandle identifies a submitted transcode job. The orchestrator never
// manages the job's lifecycle; completion is observed through output existence.
type JobHandle struct {
	JobID        string
	OutputPrefix string
}

// ClipJob is the request handed to the transcode capability.
type ClipJob struct {
	SegmentID     SegmentID
	SourceRef     string
	StartTimecode string // HH:MM:SS:FF
	EndTimecode   string // HH:MM:SS:FF
	OutputPrefix  string
}

// Status is the terminal outcome of one orchestration call.
type Status string

const (
	// StatusExists means the output artifact was already materialized.
	StatusExists Status = "exists"
	// StatusReady means a job was submitted and the artifact appeared
	// within the poll budget.
	StatusReady Status = "ready"
	// StatusNotFound means no metadata record exists for the segment.
	StatusNotFound Status = "not_found"
	// StatusPending means a job was submitted but the artifact did not
	// appear within the poll budget. Not an error: a later request will
	// find it through the fast existence path.
	StatusPending Status = "pending"
)

// Result is the outcome of one orchestration call. Token and PlaybackURL are
// set for StatusExists and StatusReady; JobID is set whenever a job was
// submitted so operators can map segment -> job -> output location.
type Result struct {
	Status      Status
	SegmentPath string
	PlaybackURL string
	Token       string
	JobID       string
}

// OutputKey returns the object key whose existence marks the segment as
// materialized.
func OutputKey(id SegmentID) string {
	return fmt.Sprintf("segments/%s/hls/master.m3u8", id)
}

// OutputPrefix returns the object-key prefix under which the transcoder
// writes the segment's artifacts.
func OutputPrefix(id SegmentID) string {
	return fmt.Sprintf("segments/%s/hls/", id)
}
