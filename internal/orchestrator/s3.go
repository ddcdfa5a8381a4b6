package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3ObjectStore is an ObjectStore backed by an S3 bucket fronted by a CDN
// distribution at publicDomain.
type S3ObjectStore struct {
	client       *s3.Client
	bucket       string
	publicDomain string
}

var _ ObjectStore = (*S3ObjectStore)(nil)

// NewS3ObjectStore returns an ObjectStore for the given bucket. publicDomain
// is the CDN hostname used to build playback URLs.
func NewS3ObjectStore(client *s3.Client, bucket, publicDomain string) *S3ObjectStore {
	return &S3ObjectStore{client: client, bucket: bucket, publicDomain: publicDomain}
}

// Exists implements ObjectStore using HeadObject. A missing key is not an
// error; anything else (throttling, auth, network) is surfaced for retry.
func (s *S3ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return false, nil
	}
	return false, fmt.Errorf("head s3://%s/%s: %w", s.bucket, key, err)
}

// PublicURL implements ObjectStore.
func (s *S3ObjectStore) PublicURL(key string) string {
	return fmt.Sprintf("https://%s/%s", s.publicDomain, key)
}
