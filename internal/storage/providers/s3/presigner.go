// Package s3 resolves s3://bucket/key references into presigned GET URLs.
package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mrlokans/tastier/internal/storage"
)

// Config holds connection settings. Empty credentials fall back to the
// default AWS credential chain.
type Config struct {
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	TTL          time.Duration
}

// Presigner implements storage.URLResolver for the "s3" scheme.
type Presigner struct {
	client *s3.PresignClient
	ttl    time.Duration
}

// New builds a presigner from cfg.
func New(ctx context.Context, cfg Config) (*Presigner, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewWithClient(client, cfg.TTL), nil
}

// NewWithClient wraps an existing S3 client.
func NewWithClient(client *s3.Client, ttl time.Duration) *Presigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Presigner{client: s3.NewPresignClient(client), ttl: ttl}
}

// ResolveURL returns a presigned GET URL for the referenced object.
func (p *Presigner) ResolveURL(ctx context.Context, ref storage.Ref) (string, error) {
	req, err := p.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", ref.Raw, err)
	}
	return req.URL, nil
}
