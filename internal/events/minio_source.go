package events

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
)

const (
	objectCreatedEvent = "s3:ObjectCreated:*"

	SubmissionPrefix = "submissions/"
	ResultPrefix     = "results/"
	objectSuffix     = ".json"
)

type SubmissionEvent struct {
	SubmissionID string
	ObjectKey    string
	EventName    string
}

type SubmissionEventSource interface {
	Run(ctx context.Context, handler func(context.Context, SubmissionEvent) error) error
}

// MinioSubmissionSource emits one event per JSON object created under submissions/.
type MinioSubmissionSource struct {
	client *minio.Client
	bucket string
}

func NewMinioSubmissionSource(client *minio.Client, bucket string) *MinioSubmissionSource {
	return &MinioSubmissionSource{client: client, bucket: bucket}
}

func (s *MinioSubmissionSource) Run(ctx context.Context, handler func(context.Context, SubmissionEvent) error) error {
	notificationCh := s.client.ListenBucketNotification(ctx, s.bucket, SubmissionPrefix, objectSuffix, []string{objectCreatedEvent})
	for {
		select {
		case <-ctx.Done():
			return nil
		case info, ok := <-notificationCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream closed")
			}
			if info.Err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream error: %w", info.Err)
			}
			for _, record := range info.Records {
				objectKey, err := decodeObjectKey(record.S3.Object.Key)
				if err != nil {
					continue
				}
				submissionID, err := parseObjectKey(objectKey)
				if err != nil {
					continue
				}
				event := SubmissionEvent{
					SubmissionID: submissionID,
					ObjectKey:    objectKey,
					EventName:    record.EventName,
				}
				if err := handler(ctx, event); err != nil {
					return err
				}
			}
		}
	}
}

// ResultKey is where the outcome for a submission is written.
func ResultKey(submissionID string) string {
	return ResultPrefix + submissionID + objectSuffix
}

func decodeObjectKey(encoded string) (string, error) {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", err
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", fmt.Errorf("object key is empty")
	}
	return decoded, nil
}

// parseObjectKey accepts exactly submissions/<id>.json and returns <id>.
func parseObjectKey(objectKey string) (string, error) {
	cleaned := strings.Trim(strings.ReplaceAll(objectKey, "\\", "/"), "/")
	if !strings.HasPrefix(cleaned, SubmissionPrefix) {
		return "", fmt.Errorf("object key %q is not under %s", objectKey, SubmissionPrefix)
	}
	name := strings.TrimPrefix(cleaned, SubmissionPrefix)
	if strings.Contains(name, "/") || path.Ext(name) != objectSuffix {
		return "", fmt.Errorf("object key %q does not match %s<id>%s", objectKey, SubmissionPrefix, objectSuffix)
	}
	submissionID := strings.TrimSpace(strings.TrimSuffix(name, objectSuffix))
	if submissionID == "" {
		return "", fmt.Errorf("object key %q missing submission id", objectKey)
	}
	return submissionID, nil
}
