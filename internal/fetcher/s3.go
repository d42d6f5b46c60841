package fetcher

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
)

// S3Options configures the object storage client.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// S3Blobs reads objects through a minio client. It works against AWS S3 and
// any S3-compatible store.
type S3Blobs struct {
	client *minio.Client
}

// NewS3Blobs creates an S3Blobs from static credentials.
func NewS3Blobs(opts S3Options) (*S3Blobs, error) {
	if opts.Endpoint == "" {
		return nil, eris.New("s3: endpoint is required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, eris.Wrap(err, "s3: new client")
	}
	return &S3Blobs{client: client}, nil
}

// ReadObject returns the full content of bucket/key. A missing object yields
// an error that matches ErrNotFound.
func (s *S3Blobs) ReadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if _, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" || errResp.Code == "NoSuchBucket" {
			return nil, eris.Wrapf(ErrNotFound, "s3://%s/%s", bucket, key)
		}
		return nil, eris.Wrapf(err, "s3: stat %s/%s", bucket, key)
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, eris.Wrapf(err, "s3: get %s/%s", bucket, key)
	}
	defer obj.Close() //nolint:errcheck

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, eris.Wrapf(err, "s3: read %s/%s", bucket, key)
	}
	return data, nil
}
