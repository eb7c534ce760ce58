// Package media stores message attachments and profile pictures and hands
// out time-limited download URLs. Clients embed the resolved URL in photo
// and video message content.
package media

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

var ErrEmptyKey = errors.New("media: empty object key")

// Resolver uploads attachment bytes and resolves keys to download URLs.
type Resolver interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
	URL(ctx context.Context, key string) (string, error)
}

// S3Resolver backs Resolver with an S3 bucket. Downloads go through
// presigned GETs so the bucket never needs public read.
type S3Resolver struct {
	uploader *manager.Uploader
	presign  *s3.PresignClient
	bucket   string
	ttl      time.Duration
	logger   *zap.Logger
}

func NewS3Resolver(ctx context.Context, region, bucket string, ttl time.Duration, logger *zap.Logger) (*S3Resolver, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg)
	return &S3Resolver{
		uploader: manager.NewUploader(client),
		presign:  s3.NewPresignClient(client),
		bucket:   bucket,
		ttl:      ttl,
		logger:   logger,
	}, nil
}

func (r *S3Resolver) Upload(ctx context.Context, key, contentType string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	_, err := r.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		r.logger.Error("media upload failed", zap.String("key", key), zap.Error(err))
		return err
	}
	r.logger.Info("media uploaded", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

func (r *S3Resolver) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = r.ttl
	})
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
