package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sardine-ai/go-widget-config/model"
)

// S3API is the subset of *s3.Client used by AwsS3Repository.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// AwsS3Repository is a struct that implements the Repository interface for
// configuration blobs stored as objects within an S3 bucket.
type AwsS3Repository struct {
	Name            string // Name of the configuration source
	BucketName      string // Name of the S3 bucket
	Prefix          string // Object key prefix
	Region          string // AWS region, from the environment when empty
	Endpoint        string // Optional S3 compatible endpoint (path-style addressing)
	AccessKeyID     string // Optional static credentials
	SecretAccessKey string // Optional static credentials
	Client          S3API  // S3 client instance
	clientOnce      sync.Once
	clientInitErr   error
}

// GetName returns the name of the configuration source.
func (a *AwsS3Repository) GetName() string {
	return a.Name
}

func (a *AwsS3Repository) client(ctx context.Context) (S3API, error) {
	// Thread-safe client initialization using sync.Once (only if client not pre-configured)
	a.clientOnce.Do(func() {
		if a.Client != nil {
			return
		}
		var opts []func(*config.LoadOptions) error
		if a.Region != "" {
			opts = append(opts, config.WithRegion(a.Region))
		}
		if a.AccessKeyID != "" {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(a.AccessKeyID, a.SecretAccessKey, "")))
		}
		cfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			a.clientInitErr = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}
		a.Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if a.Endpoint != "" {
				o.BaseEndpoint = aws.String(a.Endpoint)
				o.UsePathStyle = true
			}
		})
	})
	if a.clientInitErr != nil {
		return nil, a.clientInitErr
	}
	return a.Client, nil
}

func (a *AwsS3Repository) key(channel model.Channel) *string {
	return aws.String(objectName(a.Prefix, channel))
}

func (a *AwsS3Repository) Read(ctx context.Context, channel model.Channel) (string, error) {
	client, err := a.client(ctx)
	if err != nil {
		return "", err
	}
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.BucketName),
		Key:    a.key(channel),
	})
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	defer result.Body.Close()

	// Read the object content from the response body.
	content, err := io.ReadAll(result.Body)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func (a *AwsS3Repository) Write(ctx context.Context, channel model.Channel, blob string) error {
	client, err := a.client(ctx)
	if err != nil {
		return err
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.BucketName),
		Key:         a.key(channel),
		Body:        strings.NewReader(blob),
		ContentType: aws.String("application/json"),
	})
	return err
}

// Delete removes the channel's object. S3 reports success for absent keys.
func (a *AwsS3Repository) Delete(ctx context.Context, channel model.Channel) error {
	client, err := a.client(ctx)
	if err != nil {
		return err
	}
	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.BucketName),
		Key:    a.key(channel),
	})
	return err
}
