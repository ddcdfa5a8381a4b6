package orchestrator

import "context"

// Transcoder is the external clip/transcode capability. SubmitClipJob blocks
// only on job acceptance, never on completion; completion is observed
// indirectly through ObjectStore.Exists.
type Transcoder interface {
	SubmitClipJob(ctx context.Context, job ClipJob) (*JobHandle, error)
}
