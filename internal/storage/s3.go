package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".wav":  "audio/wav",
	".json": "application/json",
	".txt":  "text/plain; charset=utf-8",
}

// S3Config locates the bucket deliverables are published to.
type S3Config struct {
	Bucket string
	Region string
	Prefix string
}

// S3Publisher uploads finished deliverables to an S3 bucket.
type S3Publisher struct {
	client s3iface.S3API
	cfg    S3Config
}

// NewS3Publisher opens an AWS session for cfg.Region using the default
// credential chain.
func NewS3Publisher(cfg S3Config) (*S3Publisher, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            aws.Config{Region: aws.String(cfg.Region)},
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create aws session: %w", err)
	}
	return NewS3PublisherWithClient(s3.New(sess), cfg), nil
}

// NewS3PublisherWithClient wires an existing S3 client.
func NewS3PublisherWithClient(client s3iface.S3API, cfg S3Config) *S3Publisher {
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &S3Publisher{client: client, cfg: cfg}
}

// Publish uploads the local file under {prefix}/{jobID}/{basename} and returns its URL.
func (p *S3Publisher) Publish(ctx context.Context, jobID, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("storage: open %s: %w", localPath, err)
	}
	defer file.Close()

	key := p.objectKey(jobID, filepath.Base(localPath))
	input := &s3.PutObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
		Body:   file,
	}
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(localPath))]; ok {
		input.ContentType = aws.String(ct)
	}
	if _, err := p.client.PutObjectWithContext(ctx, input); err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", key, err)
	}
	return p.objectURL(key), nil
}

func (p *S3Publisher) objectKey(jobID, name string) string {
	if p.cfg.Prefix == "" {
		return path.Join(jobID, name)
	}
	return path.Join(p.cfg.Prefix, jobID, name)
}

func (p *S3Publisher) objectURL(key string) string {
	if p.cfg.Region == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", p.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.cfg.Bucket, p.cfg.Region, key)
}
