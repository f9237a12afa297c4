package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestBlobStore_UploadImage(t *testing.T) {
	putter := &fakePutter{}
	store := newBlobStore(putter, "lorewiki", "https://cdn.example.com/")

	url, err := store.UploadImage(context.Background(), AvatarPrefix, []byte("png-bytes"), "image/png; charset=binary")

	require.NoError(t, err)
	key := aws.ToString(putter.input.Key)
	assert.True(t, strings.HasPrefix(key, "avatars/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.Equal(t, "https://cdn.example.com/"+key, url)
	assert.Equal(t, "lorewiki", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "image/png", aws.ToString(putter.input.ContentType))
	assert.Equal(t, []byte("png-bytes"), putter.body)
}

func TestBlobStore_UploadImage_Rejects(t *testing.T) {
	store := newBlobStore(&fakePutter{}, "b", "https://cdn.example.com")

	_, err := store.UploadImage(context.Background(), HeaderPrefix, []byte("x"), "application/pdf")
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	_, err = store.UploadImage(context.Background(), HeaderPrefix, nil, "image/jpeg")
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	_, err = store.UploadImage(context.Background(), HeaderPrefix, make([]byte, MaxUploadBytes+1), "image/jpeg")
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestBlobStore_UploadImage_StorageError(t *testing.T) {
	store := newBlobStore(&fakePutter{err: errors.New("access denied")}, "b", "https://cdn.example.com")

	_, err := store.UploadImage(context.Background(), HeaderPrefix, []byte("x"), "image/webp")

	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
}
