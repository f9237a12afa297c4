package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dimitrije/lorewiki-api/internal/config"
	"github.com/google/uuid"
)

// MaxUploadBytes bounds avatar and header image uploads.
const MaxUploadBytes = 5 << 20

const (
	AvatarPrefix = "avatars"
	HeaderPrefix = "headers"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// BlobStore uploads images to S3-compatible storage and returns their public
// URL.
type BlobStore struct {
	client  objectPutter
	bucket  string
	baseURL string
}

func NewBlobStore(ctx context.Context, cfg config.StorageConfig) (*BlobStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return newBlobStore(client, cfg.Bucket, baseURL), nil
}

func newBlobStore(client objectPutter, bucket, baseURL string) *BlobStore {
	return &BlobStore{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

// UploadImage stores data under prefix and returns its public URL.
func (b *BlobStore) UploadImage(ctx context.Context, prefix string, data []byte, contentType string) (string, error) {
	contentType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", InvalidArgument("unsupported image type")
	}
	if len(data) == 0 {
		return "", InvalidArgument("image is empty")
	}
	if len(data) > MaxUploadBytes {
		return "", InvalidArgument(fmt.Sprintf("image exceeds %d bytes", MaxUploadBytes))
	}

	key := path.Join(prefix, uuid.NewString()+ext)
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return b.baseURL + "/" + key, nil
}
