package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"dirzip/internal/config"
)

// Uploader is the part of manager.Uploader the S3 destination uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

var _ Uploader = (*manager.Uploader)(nil)

// NewS3Uploader builds a multipart uploader from the export settings and
// the default AWS configuration chain.
func NewS3Uploader(ctx context.Context, cfg config.ExportConfig) (*manager.Uploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.S3PartSize > 0 {
			u.PartSize = cfg.S3PartSize
		}
		if cfg.S3Concurrency > 0 {
			u.Concurrency = cfg.S3Concurrency
		}
	}), nil
}

// S3Destination streams the archive into an S3 object through a pipe
// feeding a multipart upload. Writes block while the uploader is busy,
// so memory stays bounded by the uploader's part buffers.
type S3Destination struct {
	ctx      context.Context
	uploader Uploader
	bucket   string
	key      string

	pw   *io.PipeWriter
	done chan error
	loc  string
}

var _ Destination = (*S3Destination)(nil)

// NewS3Destination creates a destination for s3://bucket/key. The upload
// starts at Declare and runs under ctx.
func NewS3Destination(ctx context.Context, uploader Uploader, bucket, key string) *S3Destination {
	return &S3Destination{ctx: ctx, uploader: uploader, bucket: bucket, key: key}
}

// Declare starts the upload.
func (d *S3Destination) Declare(length int64) error {
	if d.pw != nil {
		return errors.New("upload already started")
	}
	pr, pw := io.Pipe()
	d.pw = pw
	d.done = make(chan error, 1)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.key),
		Body:        pr,
		ContentType: aws.String("application/zip"),
	}
	if length >= 0 {
		input.Metadata = map[string]string{"archive-length": strconv.FormatInt(length, 10)}
	}

	go func() {
		out, err := d.uploader.Upload(d.ctx, input)
		if err == nil && out != nil {
			d.loc = out.Location
		}
		// Unblock a writer stuck on a failed upload.
		pr.CloseWithError(err)
		d.done <- err
	}()
	return nil
}

func (d *S3Destination) Write(p []byte) (int, error) {
	if d.pw == nil {
		return 0, errors.New("write before upload started")
	}
	return d.pw.Write(p)
}

// Flush is a no-op: bytes move as soon as the uploader reads them.
func (d *S3Destination) Flush(ctx context.Context) error {
	return ctx.Err()
}

// Finish ends the body and waits for the upload. A transfer error is
// handed to the uploader, which then aborts the multipart upload.
func (d *S3Destination) Finish(transferErr error) error {
	if d.pw == nil {
		return nil
	}
	if transferErr != nil {
		d.pw.CloseWithError(transferErr)
		<-d.done
		return nil
	}
	d.pw.Close()
	if err := <-d.done; err != nil {
		return fmt.Errorf("uploading to %s: %w", d, err)
	}
	return nil
}

// Location returns the uploaded object's URL once Finish succeeded.
func (d *S3Destination) Location() string { return d.loc }

func (d *S3Destination) String() string {
	return Target{Kind: TargetS3, Bucket: d.bucket, Key: d.key}.String()
}
