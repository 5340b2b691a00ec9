package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerRoundTrip(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, expiresAt, err := signer.Sign("job-1", "exports/2026/grid.pdf")
	require.NoError(t, err)
	require.False(t, expiresAt.IsZero())

	grant, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "job-1", grant.JobID)
	assert.Equal(t, "exports/2026/grid.pdf", grant.Key)
	assert.True(t, grant.ExpiresAt.Equal(expiresAt))
}

func TestSignerRejectsTamperingAndExpiry(t *testing.T) {
	now := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	signer := NewSigner("secret", time.Minute)
	signer.now = func() time.Time { return now }

	token, _, err := signer.Sign("job-1", "a.csv")
	require.NoError(t, err)

	other := NewSigner("other", time.Minute)
	other.now = signer.now
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Verify(strings.Replace(token, ".", "x.", 1))
	assert.ErrorIs(t, err, ErrInvalidToken)

	now = now.Add(2 * time.Minute)
	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestSignerRequiresSecret(t *testing.T) {
	_, _, err := NewSigner("", time.Hour).Sign("job", "key")
	assert.Error(t, err)
}

func TestCleanKey(t *testing.T) {
	key, err := CleanKey("/exports//a/b.pdf")
	require.NoError(t, err)
	assert.Equal(t, "exports/a/b.pdf", key)

	_, err = CleanKey("../etc/passwd")
	assert.Error(t, err)
	_, err = CleanKey("")
	assert.Error(t, err)
}

func TestLocalStorageLifecycle(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "jobs/x.csv", []byte("a,b\n"), "text/csv"))
	rc, err := store.Open(ctx, "jobs/x.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "a,b\n", string(data))

	require.NoError(t, store.Delete(ctx, "jobs/x.csv"))
	require.NoError(t, store.Delete(ctx, "jobs/x.csv"))
	_, err = store.Open(ctx, "jobs/x.csv")
	assert.ErrorIs(t, err, ErrNotFound)
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoragePrefixesKeys(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	store := newS3Storage(fake, "bucket", "exports")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "job-1/grid.xlsx", []byte("xlsx"), "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.Contains(t, fake.objects, "exports/job-1/grid.xlsx")
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", fake.types["exports/job-1/grid.xlsx"])

	rc, err := store.Open(ctx, "job-1/grid.xlsx")
	require.NoError(t, err)
	defer rc.Close() //nolint:errcheck
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "xlsx", string(data))

	require.NoError(t, store.Delete(ctx, "job-1/grid.xlsx"))
	_, err = store.Open(ctx, "job-1/grid.xlsx")
	assert.True(t, errors.Is(err, ErrNotFound))
}
