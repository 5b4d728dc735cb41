package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/railzwaylabs/interviewledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePutter struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakePutter) PutObject(_ context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.bucket, f.key, f.contentType, f.body = bucket, object, opts.ContentType, body
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: size}, nil
}

func TestKey(t *testing.T) {
	assert.Equal(t, "invoices/inst-1/inv-abc.pdf", Key(" inst-1 ", "inv-abc.pdf"))
}

func TestMinioStorePut(t *testing.T) {
	fake := &fakePutter{}
	store := newMinioStore(fake, "invoices-bucket", zap.NewNop())

	require.NoError(t, store.Put(context.Background(), "invoices/inst-1/a.pdf", []byte("%PDF-1.3"), "application/pdf"))
	assert.Equal(t, "invoices-bucket", fake.bucket)
	assert.Equal(t, "invoices/inst-1/a.pdf", fake.key)
	assert.Equal(t, "application/pdf", fake.contentType)
	assert.Equal(t, []byte("%PDF-1.3"), fake.body)

	fake.err = errors.New("bucket gone")
	err := store.Put(context.Background(), "k", []byte("x"), "application/pdf")
	assert.ErrorIs(t, err, fake.err)
}

func TestProvideDisabled(t *testing.T) {
	store, err := Provide(Params{Config: config.Config{}, Log: zap.NewNop()})
	require.NoError(t, err)
	assert.Nil(t, store)
}
