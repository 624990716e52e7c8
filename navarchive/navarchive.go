// Package navarchive archives completed form submissions to an S3-
// compatible object store, for debugging form flows in production. It
// does not participate in navigation state or any navigation invariant.
package navarchive

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/navkit-dev/navkit/submit"
)

// Artifact is the JSON blob stored for one archived submission.
type Artifact struct {
	RequestID   string            `json:"request_id"`
	Method      string            `json:"method"`
	Action      string            `json:"action"`
	Status      int               `json:"status,omitempty"`
	Header      map[string][]string `json:"header,omitempty"`
	Destination string            `json:"destination,omitempty"`
	Error       string            `json:"error,omitempty"`
	ArchivedAt  time.Time         `json:"archived_at"`
}

// Store archives submit.Result artifacts to S3.
type Store struct {
	client  *s3.Client
	bucket  string
	prefix  string
	maxSize int64
}

// New builds a Store. prefix is the key prefix archived artifacts are
// written under, e.g. "navkit/submits/". maxSize bounds the serialized
// artifact size in bytes; 0 means no limit.
func New(client *s3.Client, bucket, prefix string, maxSize int64) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix, maxSize: maxSize}
}

// NewFromEnv builds a Store using an S3 client resolved from the process's
// ambient AWS configuration (environment variables, shared config files,
// IAM role credentials), the usual way this package is constructed outside
// of tests.
func NewFromEnv(ctx context.Context, bucket, prefix string, maxSize int64, optFns ...func(*awsconfig.LoadOptions) error) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("navarchive: load aws config: %w", err)
	}
	return New(s3.NewFromConfig(cfg), bucket, prefix, maxSize), nil
}

// Archive writes one artifact for a submission outcome. submitErr is the error
// submit.Submit returned, if any; result is whatever it returned
// alongside that error (its Response may be set even on error).
func (s *Store) Archive(ctx context.Context, form submit.Form, result submit.Result, submitErr error) (string, error) {
	requestID := generateRequestID()

	artifact := Artifact{
		RequestID:  requestID,
		Method:     string(form.Method),
		Action:     form.Action,
		ArchivedAt: time.Now().UTC(),
	}
	if form.Action == "" {
		artifact.Action = form.Name
	}
	if result.Response != nil {
		artifact.Status = result.Response.StatusCode
		artifact.Header = map[string][]string(result.Response.Header)
	}
	if result.Destination.ID != (uuid.UUID{}) && result.Destination.URL != nil {
		artifact.Destination = result.Destination.URL.String()
	}
	if submitErr != nil {
		artifact.Error = submitErr.Error()
	}

	body, err := json.Marshal(artifact)
	if err != nil {
		return "", fmt.Errorf("navarchive: marshal artifact: %w", err)
	}
	if s.maxSize > 0 && int64(len(body)) > s.maxSize {
		return "", fmt.Errorf("navarchive: artifact of %d bytes exceeds max size %d", len(body), s.maxSize)
	}

	key := s.prefix + requestID + ".json"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("navarchive: put object: %w", err)
	}

	return requestID, nil
}

// Fetch retrieves a previously archived artifact by request id.
func (s *Store) Fetch(ctx context.Context, requestID string) (*Artifact, error) {
	key := s.prefix + requestID + ".json"
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("navarchive: get object: %w", err)
	}
	defer out.Body.Close()

	var artifact Artifact
	if err := json.NewDecoder(out.Body).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("navarchive: decode artifact: %w", err)
	}
	return &artifact, nil
}

// Submitter wraps a submit.Submitter, archiving every completed
// submission regardless of outcome.
type Submitter struct {
	inner *submit.Submitter
	store *Store
}

// Wrap builds an archiving Submitter around inner.
func Wrap(inner *submit.Submitter, store *Store) *Submitter {
	return &Submitter{inner: inner, store: store}
}

// Submit delegates to the wrapped submit.Submitter and archives the
// outcome before returning it.
func (s *Submitter) Submit(ctx context.Context, form submit.Form) (submit.Result, error) {
	result, err := s.inner.Submit(ctx, form)
	if _, archErr := s.store.Archive(ctx, form, result, err); archErr != nil {
		if err == nil {
			return result, archErr
		}
	}
	return result, err
}

func generateRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
