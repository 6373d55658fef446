package blob

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultSignedURLTTL is the fixed lifetime of signed read URLs.
const DefaultSignedURLTTL = 6 * time.Hour

type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
	SignTTL   time.Duration
}

// Client wraps the chat-media bucket: signed read URLs, uploads and
// best-effort deletes.
type Client struct {
	cfg     S3Config
	s3      *s3.Client
	presign *s3.PresignClient
}

func NewClient(ctx context.Context, cfg S3Config) (*Client, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 region and bucket are required")
	}
	if cfg.SignTTL <= 0 {
		cfg.SignTTL = DefaultSignedURLTTL
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if parsed, err := url.Parse(endpoint); err == nil {
			endpoint = parsed.String()
		}
		opts = append(opts, config.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				if service == s3.ServiceID {
					return aws.Endpoint{URL: endpoint, SigningRegion: cfg.Region}, nil
				}
				return aws.Endpoint{}, &aws.EndpointNotFoundError{}
			}),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	return &Client{
		cfg:     cfg,
		s3:      s3Client,
		presign: s3.NewPresignClient(s3Client),
	}, nil
}

// Bucket returns the chat-media bucket name the client signs for.
func (c *Client) Bucket() string {
	return c.cfg.Bucket
}

// SignGet mints a time-limited signed read URL for one storage path.
func (c *Client) SignGet(ctx context.Context, path string) (string, error) {
	if c == nil {
		return "", errors.New("s3 client not initialized")
	}
	if path == "" {
		return "", errors.New("storage path is required")
	}
	presigned, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(path),
	}, func(po *s3.PresignOptions) {
		po.Expires = c.cfg.SignTTL
	})
	if err != nil {
		return "", err
	}
	return presigned.URL, nil
}

// SignGetBatch mints signed read URLs for many paths in one pass. Paths that
// fail to sign are omitted from the result; the first error is returned
// alongside whatever succeeded so the caller can decide whether to abort.
func (c *Client) SignGetBatch(ctx context.Context, paths []string) (map[string]string, error) {
	urls := make(map[string]string, len(paths))
	var firstErr error
	for _, p := range paths {
		u, err := c.SignGet(ctx, p)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		urls[p] = u
	}
	return urls, firstErr
}

// Upload writes a media blob at the given path.
func (c *Client) Upload(ctx context.Context, path, contentType string, data []byte) error {
	if c == nil {
		return errors.New("s3 client not initialized")
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(path),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	_, err := c.s3.PutObject(ctx, input)
	return err
}

// Delete removes blobs by path. Best effort: the first error is returned but
// remaining paths are still attempted.
func (c *Client) Delete(ctx context.Context, paths ...string) error {
	if c == nil {
		return errors.New("s3 client not initialized")
	}
	var firstErr error
	for _, p := range paths {
		if p == "" {
			continue
		}
		_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.cfg.Bucket),
			Key:    aws.String(p),
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
