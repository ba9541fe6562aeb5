// Package publish uploads written artifacts to S3.
package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/guttosm/twpulse/internal/fault"
	"github.com/guttosm/twpulse/internal/logger"
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher copies local files into a bucket under a key prefix.
type S3Publisher struct {
	client objectPutter
	bucket string
	prefix string
}

// Options configures NewS3Publisher.
type Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// NewS3Publisher builds a publisher from the default AWS credential chain.
func NewS3Publisher(ctx context.Context, o Options) (*S3Publisher, error) {
	if o.Bucket == "" {
		return nil, fault.New(fault.KindValidation, "publish.NewS3Publisher", "bucket is required")
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if o.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(o.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
		}
		so.UsePathStyle = o.PathStyle
	})
	return newS3Publisher(client, o.Bucket, o.Prefix), nil
}

func newS3Publisher(client objectPutter, bucket, prefix string) *S3Publisher {
	return &S3Publisher{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key of a local file.
func (p *S3Publisher) Key(file string) string {
	return path.Join(p.prefix, filepath.Base(file))
}

// Publish uploads every file and returns the s3:// URIs written.
func (p *S3Publisher) Publish(ctx context.Context, files []string) ([]string, error) {
	var uris []string
	for _, f := range files {
		if err := p.put(ctx, f); err != nil {
			return uris, fault.Wrap(fault.KindOutput, "publish.Publish", err)
		}
		uri := fmt.Sprintf("s3://%s/%s", p.bucket, p.Key(f))
		logger.L().Info().Str("file", f).Str("uri", uri).Msg("artifact published")
		uris = append(uris, uri)
	}
	return uris, nil
}

func (p *S3Publisher) put(ctx context.Context, file string) error {
	fh, err := os.Open(file)
	if err != nil {
		return err
	}
	defer func() { _ = fh.Close() }()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(p.Key(file)),
		Body:        fh,
		ContentType: aws.String(contentType(file)),
		Metadata:    map[string]string{"source": "twpulse"},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", file, err)
	}
	return nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}
