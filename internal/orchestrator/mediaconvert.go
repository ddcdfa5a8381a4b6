package orchestrator

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
	mctypes "github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
)

// MediaConvertTranscoder submits clip+transcode jobs to AWS Elemental
// MediaConvert. Jobs clip the source asset between two zero-based timecodes
// and write an HLS rendition under the segment's output prefix.
type MediaConvertTranscoder struct {
	client *mediaconvert.Client
	role   string
	bucket string
}

var _ Transcoder = (*MediaConvertTranscoder)(nil)

// NewMediaConvertTranscoder returns a Transcoder that submits jobs under the
// given IAM role, writing output to the given bucket.
func NewMediaConvertTranscoder(client *mediaconvert.Client, role, bucket string) *MediaConvertTranscoder {
	return &MediaConvertTranscoder{client: client, role: role, bucket: bucket}
}

// SubmitClipJob implements Transcoder. It returns once MediaConvert accepts
// the job; it never waits for the job to run.
func (t *MediaConvertTranscoder) SubmitClipJob(ctx context.Context, job ClipJob) (*JobHandle, error) {
	destination := fmt.Sprintf("s3://%s/%s", t.bucket, job.OutputPrefix)

	input := &mediaconvert.CreateJobInput{
		Role: aws.String(t.role),
		Settings: &mctypes.JobSettings{
			Inputs: []mctypes.Input{
				{
					FileInput:      aws.String(job.SourceRef),
					TimecodeSource: mctypes.InputTimecodeSourceZerobased,
					InputClippings: []mctypes.InputClipping{
						{
							StartTimecode: aws.String(job.StartTimecode),
							EndTimecode:   aws.String(job.EndTimecode),
						},
					},
					AudioSelectors: map[string]mctypes.AudioSelector{
						"Audio Selector 1": {DefaultSelection: mctypes.AudioDefaultSelectionDefault},
					},
				},
			},
			OutputGroups: []mctypes.OutputGroup{
				{
					Name: aws.String("HLS Group"),
					OutputGroupSettings: &mctypes.OutputGroupSettings{
						Type: mctypes.OutputGroupTypeHlsGroupSettings,
						HlsGroupSettings: &mctypes.HlsGroupSettings{
							Destination: aws.String(destination),
						},
					},
					Outputs: []mctypes.Output{
						{
							ContainerSettings: &mctypes.ContainerSettings{
								Container: mctypes.ContainerTypeM3u8,
							},
							VideoDescription: &mctypes.VideoDescription{
								CodecSettings: &mctypes.VideoCodecSettings{
									Codec: mctypes.VideoCodecH264,
									H264Settings: &mctypes.H264Settings{
										RateControlMode: mctypes.H264RateControlModeQvbr,
										MaxBitrate:      aws.Int32(5_000_000),
									},
								},
							},
							AudioDescriptions: []mctypes.AudioDescription{
								{
									AudioSourceName: aws.String("Audio Selector 1"),
									CodecSettings: &mctypes.AudioCodecSettings{
										Codec: mctypes.AudioCodecAac,
										AacSettings: &mctypes.AacSettings{
											Bitrate:    aws.Int32(96_000),
											CodingMode: mctypes.AacCodingModeCodingMode20,
											SampleRate: aws.Int32(48_000),
										},
									},
								},
							},
						},
					},
				},
			},
		},
		UserMetadata: map[string]string{
			"segment_id": string(job.SegmentID),
		},
	}

	resp, err := t.client.CreateJob(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create mediaconvert job for %s: %w", job.SegmentID, err)
	}

	return &JobHandle{
		JobID:        aws.ToString(resp.Job.Id),
		OutputPrefix: job.OutputPrefix,
	}, nil
}
