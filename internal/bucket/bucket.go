// Package bucket archives raw report uploads in S3-compatible object storage.
package bucket

import (
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/dependency"
)

type Config struct {
	S3AccessKey       string `mapstructure:"s3AccessKey"`
	S3SecretAccessKey string `mapstructure:"s3SecretAccessKey"`
	S3Endpoint        string `mapstructure:"s3Endpoint"`
	S3BucketName      string `mapstructure:"s3BucketName"`
	S3BucketLocation  string `mapstructure:"s3BucketLocation"`
	BaseFolder        string `mapstructure:"baseFolder"`
	SubdomainEndpoint string `mapstructure:"subdomainEndpoint"`
}

// Enabled reports whether enough is configured to reach a bucket.
func (c *Config) Enabled() bool {
	return c.S3Endpoint != "" && c.S3BucketName != ""
}

type Bucket struct {
	*minio.Client
	*Config
}

var _ dependency.FileStore = (*Bucket)(nil)

// New creates the archive bucket client.
func (c *Config) New() (*Bucket, error) {
	cli, err := minio.New(c.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.S3AccessKey, c.S3SecretAccessKey, ""),
		Secure: true,
		Region: c.S3BucketLocation,
	})
	if err != nil {
		return nil, fmt.Errorf("can't create s3 client: %w", err)
	}
	return &Bucket{
		Client: cli,
		Config: c,
	}, nil
}
