package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Backend addresses an S3 bucket (or a GCS bucket via its S3
// interoperability endpoint) as an ObjectBackend. Credentials are read
// from the standard AWS environment variables / credentials file by
// the minio client; nothing here reads or stores a secret directly.
type S3Backend struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Backend dials endpoint (host[:port], no scheme) using the
// default environment credential chain. useSSL should be true for
// anything other than local test endpoints.
func NewS3Backend(endpoint, bucket, prefix string, useSSL bool) (*S3Backend, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewEnvAWS(),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to object store at %s: %w", endpoint, err)
	}
	return &S3Backend{client: client, bucket: bucket, prefix: prefix}, nil
}

func (b *S3Backend) objectName(hash string) string {
	if b.prefix == "" {
		return hash
	}
	return b.prefix + "/" + hash
}

func (b *S3Backend) Put(ctx context.Context, hash string, data []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, b.objectName(hash), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

func (b *S3Backend) Get(ctx context.Context, hash string) ([]byte, bool, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, b.objectName(hash), minio.GetObjectOptions{})
	if err != nil {
		return nil, false, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (b *S3Backend) Exists(ctx context.Context, hash string) (bool, error) {
	_, err := b.client.StatObject(ctx, b.bucket, b.objectName(hash), minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PutFile streams a local file into the backend, used when pushing a
// store entry's packed representation rather than an in-memory blob.
func (b *S3Backend) PutFile(ctx context.Context, hash, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	_, err = b.client.PutObject(ctx, b.bucket, b.objectName(hash), f, info.Size(), minio.PutObjectOptions{})
	return err
}
