package archive

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelasqz/chatd/engine"
)

type capturePutter struct {
	input *s3.PutObjectInput
	err   error
}

func (c *capturePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	c.input = params
	if c.err != nil {
		return nil, c.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveSnapshot(t *testing.T) {
	putter := &capturePutter{}
	a := New(putter, "transcripts", "chats")

	snap := &engine.StateSnapshot{
		ID:            "s1",
		Exists:        true,
		Instructions:  "You are helpful.",
		CreatedAt:     time.Now().UTC(),
		LastUpdatedAt: time.Now().UTC(),
		TotalMessages: 2,
		Version:       2,
		RecentMessages: []engine.MessageView{
			{Role: "user", Content: "hello", Timestamp: time.Now().UTC()},
			{Role: "assistant", Content: "hi", Timestamp: time.Now().UTC()},
		},
	}

	key, err := a.ArchiveSnapshot(context.Background(), snap)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "chats/s1/"))
	assert.True(t, strings.HasSuffix(key, ".json"))

	require.NotNil(t, putter.input)
	assert.Equal(t, "transcripts", *putter.input.Bucket)
	assert.Equal(t, key, *putter.input.Key)
	assert.Equal(t, "application/json", *putter.input.ContentType)

	body, err := io.ReadAll(putter.input.Body)
	require.NoError(t, err)

	var round engine.StateSnapshot
	require.NoError(t, json.Unmarshal(body, &round))
	assert.Equal(t, snap.ID, round.ID)
	assert.Len(t, round.RecentMessages, 2)
	assert.Equal(t, "hello", round.RecentMessages[0].Content)
}

func TestArchiveSnapshotUploadError(t *testing.T) {
	putter := &capturePutter{err: context.DeadlineExceeded}
	a := New(putter, "transcripts", "chats")

	_, err := a.ArchiveSnapshot(context.Background(), &engine.StateSnapshot{ID: "s1"})
	require.Error(t, err)
}
