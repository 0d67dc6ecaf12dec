package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string // e.g. http://localstack:4566
	AccessKey string
	SecretKey string
	// PublicBaseURL overrides the URL prefix returned for stored objects,
	// typically a CDN domain.
	PublicBaseURL string
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3 struct {
	client  objectAPI
	bucket  string
	baseURL string
	log     *zap.Logger
}

// NewS3 builds a client from the default AWS chain, overridden by static
// keys and a custom endpoint when given.
func NewS3(ctx context.Context, o S3Options, log *zap.Logger) (*S3, error) {
	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(o.Region)}
	if o.AccessKey != "" || o.SecretKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, ""),
		))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	})
	return newS3(client, o, log), nil
}

func newS3(client objectAPI, o S3Options, log *zap.Logger) *S3 {
	return &S3{client: client, bucket: o.Bucket, baseURL: publicBase(o), log: log}
}

func publicBase(o S3Options) string {
	switch {
	case o.PublicBaseURL != "":
		return strings.TrimRight(o.PublicBaseURL, "/")
	case o.Endpoint != "":
		return fmt.Sprintf("%s/%s", strings.TrimRight(o.Endpoint, "/"), o.Bucket)
	default:
		return fmt.Sprintf("https://%s.s3.amazonaws.com", o.Bucket)
	}
}

func (s *S3) Save(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	// PutObject needs a seekable body to sign the payload.
	data, err := io.ReadAll(body)
	if err != nil {
		return "", errors.Wrap(err, "read upload")
	}
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(clean),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", errors.Wrapf(err, "put s3://%s/%s", s.bucket, clean)
	}
	s.log.Debug("object stored", zap.String("bucket", s.bucket), zap.String("key", clean), zap.Int("bytes", len(data)))
	return s.baseURL + "/" + clean, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	clean, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(clean),
	})
	return errors.Wrapf(err, "delete s3://%s/%s", s.bucket, clean)
}
