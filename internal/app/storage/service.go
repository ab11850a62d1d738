/*
Package storage provides access to the S3-compatible object store holding
uploaded file attachments.

The real-time layer only reads: when a message references uploaded files, the
fan-out payload carries short-lived presigned download URLs generated here.
Uploads are handled by the HTTP API, which shares the same bucket.
*/
package storage

import (
	"context"
	"time"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Service defines the public interface for the file storage service.
type Service interface {
	// PresignDownload generates a pre-signed URL for downloading a file.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)
}

// NewService is the factory function for Service.
// It initializes and returns a concrete implementation based on the provided configuration.
func NewService(cfg ServiceConfig) (Service, error) {
	// Currently, only S3 compatible implementations are supported.
	return newS3Client(cfg)
}
