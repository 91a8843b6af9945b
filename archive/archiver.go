// Package archive exports chat transcripts to object storage. Retention
// itself is an external concern; this only produces the snapshot objects.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/avelasqz/chatd/engine"
	"github.com/avelasqz/chatd/pkg/logx"
)

// ObjectPutter is the slice of the S3 API the archiver needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver uploads session snapshots as JSON objects.
type Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

// New creates an archiver writing under bucket/prefix.
func New(client ObjectPutter, bucket, prefix string) *Archiver {
	logx.WithFields(logx.Fields{
		"bucket": bucket,
		"prefix": prefix,
	}).Info("Transcript archiver initialized")

	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Bucket returns the target bucket name.
func (a *Archiver) Bucket() string {
	return a.bucket
}

// ArchiveSnapshot uploads the snapshot and returns the object key.
func (a *Archiver) ArchiveSnapshot(ctx context.Context, snap *engine.StateSnapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", ErrUploadFailed(err)
	}

	key := fmt.Sprintf("%s/%s/%s-%s.json",
		a.prefix,
		snap.ID,
		time.Now().UTC().Format("20060102T150405Z"),
		uuid.New().String()[:8],
	)

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		logx.WithError(err).Error("Failed to upload transcript")
		return "", ErrUploadFailed(err)
	}

	logx.WithFields(logx.Fields{
		"chat_id": snap.ID,
		"key":     key,
		"bytes":   len(data),
	}).Info("Transcript archived")

	return key, nil
}
