package remote

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/tallysync/internal/client/models"
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

func newS3Client(ctx context.Context, o S3Options) (*s3.Client, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(opt *s3.Options) {
		if o.BaseEndpoint != "" {
			opt.BaseEndpoint = aws.String(o.BaseEndpoint)
			opt.UsePathStyle = true
		}
	}), nil
}

// S3Submitter archives each record as <prefix>/<collection>/<id>.json.
// Overwriting the same key with the same revision is harmless, which keeps
// retries idempotent.
type S3Submitter struct {
	client  objectPutter
	bucket  string
	prefix  string
	timeout time.Duration
}

func NewS3Submitter(client objectPutter, bucket, prefix string, timeout time.Duration) *S3Submitter {
	return &S3Submitter{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), timeout: timeout}
}

// Key returns the object key used for rec.
func (s *S3Submitter) Key(rec *models.Record) string {
	return path.Join(s.prefix, rec.Collection, rec.ID+".json")
}

func (s *S3Submitter) Submit(ctx context.Context, rec *models.Record) error {
	body, err := rec.Payload()
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", rec.Collection, rec.ID, err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(rec)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"idempotency-key": IdempotencyKey(rec),
		},
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", rec.Collection, rec.ID, err)
	}
	return nil
}
