package tatara

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ShelfClient wraps an S3-compatible client for the remote artifact shelf.
type ShelfClient struct {
	Client     *s3.Client
	BucketName string
}

// NewShelfClient initializes the shelf client from configuration values. The
// shelf is optional: missing credentials are a configuration error for the
// commands that need it, not for the build core.
func NewShelfClient(cfg *Config) (*ShelfClient, error) {
	endpoint := cfg.Values["TATARA_SHELF_ENDPOINT"]
	accessKey := cfg.Values["TATARA_SHELF_ACCESS_KEY_ID"]
	secretKey := cfg.Values["TATARA_SHELF_SECRET_ACCESS_KEY"]
	bucketName := cfg.Values["TATARA_SHELF_BUCKET"]

	if endpoint == "" || accessKey == "" || secretKey == "" || bucketName == "" {
		return nil, &ConfigurationError{Msg: "shelf credentials missing in configuration " +
			"(TATARA_SHELF_ENDPOINT, TATARA_SHELF_ACCESS_KEY_ID, TATARA_SHELF_SECRET_ACCESS_KEY, TATARA_SHELF_BUCKET)"}
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: endpoint}, nil
	})

	options := []func(*config.LoadOptions) error{
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		config.WithRegion("auto"),
	}
	if Debug {
		options = append(options, config.WithClientLogMode(aws.LogRetries|aws.LogRequest))
	}

	awsCfg, err := config.LoadDefaultConfig(context.TODO(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load shelf config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &ShelfClient{Client: client, BucketName: bucketName}, nil
}

// DownloadObject fetches an object from the shelf.
func (c *ShelfClient) DownloadObject(ctx context.Context, key string) ([]byte, error) {
	output, err := c.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer output.Body.Close()
	return io.ReadAll(output.Body)
}

// UploadObject stores raw bytes on the shelf.
func (c *ShelfClient) UploadObject(ctx context.Context, key string, data []byte) error {
	_, err := c.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.BucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// UploadFile streams a local file to the shelf.
func (c *ShelfClient) UploadFile(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = c.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.BucketName),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}
