package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/elajah-datadog/dogflare/internal/config"
	"github.com/elajah-datadog/dogflare/internal/core"
)

// S3Mirror stores mirrored attachment content in an S3 bucket under
// <prefix>/content/<hash>. Uploads stream through the SDK's multipart
// upload manager so large attachments never have to fit in memory.
type S3Mirror struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

var _ core.Mirror = (*S3Mirror)(nil)

// NewS3Mirror creates an S3 mirror from configuration. When an access key
// pair is configured it is used as a static credentials provider; otherwise
// the SDK's default chain applies.
func NewS3Mirror(cfg config.MirrorConfig) (*S3Mirror, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 mirror requires s3_bucket to be set")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Mirror{
		name:     cfg.Name,
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (m *S3Mirror) key(hash string) string {
	if m.prefix == "" {
		return "content/" + hash
	}
	return m.prefix + "/content/" + hash
}

// Put uploads content under its digest. An object that already exists is
// left alone (the upload would write identical bytes anyway, so the
// existence check is an optimization, not a correctness requirement).
func (m *S3Mirror) Put(hash string, r io.Reader, size int64) error {
	ctx := context.Background()

	exists, err := m.Has(hash)
	if err != nil {
		return err
	}
	if exists {
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if size >= 0 && written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	_, err = m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(hash)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", hash, err)
	}
	return nil
}

// Has reports whether content with the given digest is mirrored.
func (m *S3Mirror) Has(hash string) (bool, error) {
	_, err := m.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(hash)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", hash, err)
	}
	return true, nil
}

// Get downloads mirrored content by digest and writes it to w.
func (m *S3Mirror) Get(hash string, w io.Writer) error {
	out, err := m.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(hash)),
	})
	if err != nil {
		return fmt.Errorf("downloading %s: %w", hash, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading %s: %w", hash, err)
	}
	return nil
}

// Validate verifies the bucket is reachable with the configured credentials.
func (m *S3Mirror) Validate() error {
	_, err := m.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(m.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", m.bucket, err)
	}
	return nil
}
