package storage

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MinioConfig locates a bucket on a MinIO or S3 compatible endpoint.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	SSL       bool
}

// Minio stores files as objects in one bucket; paths are object keys.
type Minio struct {
	client *minio.Client
	bucket string
}

// NewMinio connects to the endpoint and makes sure the bucket exists.
func NewMinio(ctx context.Context, cfg MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.SSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "minio: new client")
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "minio: check bucket %q", cfg.Bucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrapf(err, "minio: make bucket %q", cfg.Bucket)
		}
		logrus.WithField("bucket", cfg.Bucket).Info("created bucket")
	}
	return NewMinioWithClient(client, cfg.Bucket), nil
}

// NewMinioWithClient uses an existing client.
func NewMinioWithClient(client *minio.Client, bucket string) *Minio {
	return &Minio{client: client, bucket: bucket}
}

// Fetch downloads the object at key.
func (m *Minio) Fetch(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "minio: get %q", key)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errors.Wrapf(err, "minio: read %q", key)
	}
	return data, nil
}

// Store uploads data to key.
func (m *Minio) Store(ctx context.Context, key string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, objectKey(key), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: ContentType(key)})
	if err != nil {
		return errors.Wrapf(err, "minio: put %q", key)
	}
	return nil
}

// objectKey turns a slash or backslash separated path into an object key.
func objectKey(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(p), "/")
}

// ContentType guesses the MIME type of a model file from its extension.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".glb":
		return "model/gltf-binary"
	case ".gltf":
		return "model/gltf+json"
	case ".obj":
		return "model/obj"
	case ".stl":
		return "model/stl"
	case ".dae":
		return "model/vnd.collada+xml"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
