package opener

import (
	"context"
	"fmt"
	"io"
	"log"

	"edudebt_collection/internal/models"
	"edudebt_collection/internal/ports"

	"github.com/minio/minio-go/v7"
)

type S3Client interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Opener reads import files from S3 and stores uploads in Bucket.
type S3Opener struct {
	Client S3Client
	Bucket string
}

func NewS3Opener(cli S3Client, bucket string) *S3Opener {
	return &S3Opener{Client: cli, Bucket: bucket}
}

func s3Err(op string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("s3 %s: %w: %v", op, models.ErrNotFound, err)
	}
	return fmt.Errorf("s3 %s: %w", op, err)
}

func (s *S3Opener) Open(ctx context.Context, bucket, key string) (io.ReadCloser, ports.Meta, error) {
	log.Printf("[OPENER][S3][START] bucket=%q key=%q", bucket, key)
	st, err := s.Client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		log.Printf("[OPENER][S3][ERR] stat: %v", err)
		return nil, ports.Meta{}, s3Err("stat", err)
	}
	obj, err := s.Client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		log.Printf("[OPENER][S3][ERR] get: %v", err)
		return nil, ports.Meta{}, s3Err("get", err)
	}
	log.Printf("[OPENER][S3][OK] content_type=%q size=%d etag=%q", st.ContentType, st.Size, st.ETag)
	return obj, ports.Meta{
		Source:      "s3",
		ContentType: st.ContentType,
		Size:        st.Size,
		Bucket:      bucket,
		Key:         key,
	}, nil
}

func (s *S3Opener) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (ports.Meta, error) {
	if s.Bucket == "" {
		return ports.Meta{}, fmt.Errorf("s3 put: %w: no bucket configured", models.ErrInvalidInput)
	}
	if size <= 0 {
		size = -1
	}
	info, err := s.Client.PutObject(ctx, s.Bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		log.Printf("[OPENER][S3][ERR] put bucket=%q key=%q: %v", s.Bucket, key, err)
		return ports.Meta{}, models.StoreError("s3 put", err)
	}
	log.Printf("[OPENER][S3][PUT] bucket=%q key=%q size=%d", s.Bucket, key, info.Size)
	return ports.Meta{
		Source:      "s3",
		ContentType: contentType,
		Size:        info.Size,
		Bucket:      s.Bucket,
		Key:         key,
	}, nil
}
