package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	cfg "github.com/dafibh/loanbook/loanbook-backend/internal/config"
	"github.com/dafibh/loanbook/loanbook-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// s3API is the subset of the S3 client used by the archive
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3LoanArchive implements domain.LoanArchiver by writing JSON snapshots to S3
type S3LoanArchive struct {
	client s3API
	bucket string
	now    func() time.Time
}

var _ domain.LoanArchiver = (*S3LoanArchive)(nil)

// NewS3LoanArchive creates a new S3 loan archive
func NewS3LoanArchive(ctx context.Context, s3cfg cfg.S3Config) (*S3LoanArchive, error) {
	// Build AWS config options
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(s3cfg.Region),
	}

	// Add credentials if provided
	if s3cfg.AccessKeyID != "" && s3cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				s3cfg.AccessKeyID,
				s3cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Endpoint override for MinIO/LocalStack
	var client *s3.Client
	if s3cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	archive := newS3LoanArchive(client, s3cfg.Bucket)
	if err := archive.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return archive, nil
}

func newS3LoanArchive(client s3API, bucket string) *S3LoanArchive {
	return &S3LoanArchive{
		client: client,
		bucket: bucket,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ensureBucket creates the bucket if it doesn't exist. The bucket stays private.
func (a *S3LoanArchive) ensureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket (may be permission denied): %w", err)
	}

	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// ObjectKey returns the key a snapshot of loan taken at t is stored under
func ObjectKey(loan *domain.Loan, t time.Time) string {
	return fmt.Sprintf("loans/%s/%s.json", loan.ID, t.UTC().Format("20060102T150405.000000000Z"))
}

// Archive uploads a JSON snapshot of the loan
func (a *S3LoanArchive) Archive(ctx context.Context, loan *domain.Loan) error {
	data, err := json.Marshal(loan)
	if err != nil {
		return fmt.Errorf("failed to encode loan: %w", err)
	}

	key := ObjectKey(loan, a.now())
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload loan snapshot: %w", err)
	}

	log.Info().
		Str("loan_id", loan.ID.String()).
		Str("bucket", a.bucket).
		Str("key", key).
		Msg("Loan archived")
	return nil
}
