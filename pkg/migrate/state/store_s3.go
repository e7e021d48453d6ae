package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Store : one json object per scope, for runs on machines that don't keep local disk
type S3Store struct {
	client s3iface.S3API
	Bucket string
	Prefix string
	now    func() time.Time
}

func NewS3Store(client s3iface.S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, Bucket: bucket, Prefix: prefix, now: time.Now}
}

func (s *S3Store) key(scope Scope) string {
	return path.Join(s.Prefix, "checkpoint-"+scope.Key()+".json")
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

func (s *S3Store) Get(ctx context.Context, scope Scope) (*Checkpoint, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(scope)),
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state : get s3://%s/%s : %w", s.Bucket, s.key(scope), err)
	}
	defer out.Body.Close()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("state : read s3://%s/%s : %w", s.Bucket, s.key(scope), err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(b, &cp); err != nil {
		return nil, fmt.Errorf("state : corrupt checkpoint s3://%s/%s : %w", s.Bucket, s.key(scope), err)
	}
	return &cp, nil
}

// Set : a single PutObject replaces the whole object, readers never see a partial write
func (s *S3Store) Set(ctx context.Context, cp *Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = s.now().UTC()
	}
	b, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(s.key(cp.Scope)),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("state : put s3://%s/%s : %w", s.Bucket, s.key(cp.Scope), err)
	}
	return nil
}

func (s *S3Store) Reset(ctx context.Context, scope Scope) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(scope)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("state : delete s3://%s/%s : %w", s.Bucket, s.key(scope), err)
	}
	return nil
}

func (s *S3Store) Close() error { return nil }
