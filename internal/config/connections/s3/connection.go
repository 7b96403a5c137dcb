package s3

import (
	"context"
	"fmt"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type ConnectionInfo struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

// S3 is the object store holding uploaded import files.
type S3 struct {
	Client *minio.Client
	Bucket string
	Region string
}

func NewConnection(info ConnectionInfo) (*S3, error) {
	if info.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	client, err := minio.New(info.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(info.AccessKey, info.SecretKey, ""),
		Secure: info.UseSSL,
		Region: info.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client %s: %w", info.Endpoint, err)
	}

	return &S3{Client: client, Bucket: info.Bucket, Region: info.Region}, nil
}

// EnsureBucket creates the import bucket on first start.
func (s *S3) EnsureBucket(ctx context.Context) error {
	exists, err := s.Client.BucketExists(ctx, s.Bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := s.Client.MakeBucket(ctx, s.Bucket, minio.MakeBucketOptions{Region: s.Region}); err != nil {
		return err
	}
	log.Printf("[S3][BUCKET] created bucket=%s region=%s", s.Bucket, s.Region)
	return nil
}

// Ping checks that the import bucket is reachable without creating it.
func (s *S3) Ping(ctx context.Context) error {
	ok, err := s.Client.BucketExists(ctx, s.Bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %q missing", s.Bucket)
	}
	return nil
}
