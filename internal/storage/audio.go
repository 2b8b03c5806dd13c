// Package storage holds song audio objects in an S3-compatible bucket
// (R2 in deployment) and hands out presigned upload URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type Client struct {
	Bucket    string
	S3        *s3.Client
	Presigner *s3.PresignClient
}

// NewFromEnv builds a client from S3_* env vars. Returns an error listing the
// missing vars so catalog startup can log storage as unconfigured.
func NewFromEnv(ctx context.Context) (*Client, error) {
	endpoint := os.Getenv("S3_ENDPOINT")
	region := os.Getenv("S3_REGION")
	access := os.Getenv("S3_ACCESS_KEY_ID")
	secret := os.Getenv("S3_SECRET_ACCESS_KEY")
	bucket := os.Getenv("S3_BUCKET")

	if endpoint == "" || access == "" || secret == "" || bucket == "" {
		return nil, fmt.Errorf("missing S3 env vars (S3_ENDPOINT, S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY, S3_BUCKET)")
	}
	if region == "" {
		region = "auto"
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(access, secret, "")),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		// R2 needs path-style addressing
		o.UsePathStyle = true
	})

	return &Client{
		Bucket:    bucket,
		S3:        client,
		Presigner: s3.NewPresignClient(client),
	}, nil
}

// AudioKey builds the object key for a song upload:
// <prefix>/<songID>/<uuid><ext>
func AudioKey(prefix, songID, ext string) string {
	if prefix == "" {
		prefix = "audio"
	}
	return prefix + "/" + songID + "/" + uuid.New().String() + ext
}

// SignedPutURL presigns a PUT so the browser uploads directly to the bucket.
func (c *Client) SignedPutURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	out, err := c.Presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(po *s3.PresignOptions) {
		po.Expires = ttl
	})
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

// GetObjectStream opens the audio object for server-side streaming.
func (c *Client) GetObjectStream(ctx context.Context, key string) (io.ReadCloser, string, error) {
	out, err := c.S3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", err
	}

	ctype := ""
	if out.ContentType != nil {
		ctype = *out.ContentType
	}
	if strings.TrimSpace(ctype) == "" {
		ctype = "application/octet-stream"
	}
	return out.Body, ctype, nil
}

// SignedURLTTL reads the optional SIGNED_URL_TTL_SECONDS env var.
func SignedURLTTL() time.Duration {
	s := strings.TrimSpace(os.Getenv("SIGNED_URL_TTL_SECONDS"))
	if s == "" {
		return 10 * time.Minute
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(n) * time.Second
}
