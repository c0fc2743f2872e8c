package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"funnel/api/internal/util"
)

const contentTypeCSV = "text/csv"

// Service stores and retrieves CSV exports in a MinIO (S3-compatible) bucket.
type Service struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

// NewService connects to the object store and ensures the bucket exists.
func NewService(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket %s: %w", bucket, err)
		}
		log.Printf("export: created bucket %s", bucket)
	}

	return &Service{client: client, bucket: bucket, now: time.Now}, nil
}

// Put renders the rows as CSV and writes them under a per-user key.
func (s *Service) Put(ctx context.Context, userID, kind string, header []string, rows [][]string) (Object, error) {
	data, err := buildCSV(header, rows)
	if err != nil {
		return Object{}, fmt.Errorf("build csv: %w", err)
	}

	now := s.now().UTC()
	filename := fmt.Sprintf("%s-%s.csv", sanitizeFilename(kind), now.Format("20060102-150405"))
	key := fmt.Sprintf("%s/%s-%s", userID, util.NewID("exp"), filename)

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentTypeCSV,
	})
	if err != nil {
		return Object{}, fmt.Errorf("put %s: %w", key, err)
	}

	return Object{
		Key:         key,
		Filename:    filename,
		Size:        info.Size,
		ContentType: contentTypeCSV,
		CreatedAt:   now,
	}, nil
}

// Get retrieves a stored export by key.
func (s *Service) Get(ctx context.Context, key string) (Download, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return Download{}, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return Download{}, ErrNotFound
		}
		return Download{}, fmt.Errorf("read %s: %w", key, err)
	}

	filename := path.Base(key)
	if i := strings.Index(filename, "-"); i >= 0 && strings.HasPrefix(filename, "exp_") {
		filename = filename[i+1:]
	}

	return Download{
		Filename:    filename,
		ContentType: contentTypeCSV,
		Data:        data,
	}, nil
}
