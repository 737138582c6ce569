package gcsuploader

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
)

// StorageService stores uploaded documents and reads them back.
type StorageService interface {
	// UploadUserDocument stores data under the user's folder and returns its gs:// URI.
	UploadUserDocument(ctx context.Context, userID, filename string, data []byte) (string, error)

	// FetchFromGCS downloads file bytes from the given storage URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)

	// ExtractFilenameFromGCSURI extracts the original filename from a storage URI.
	ExtractFilenameFromGCSURI(uri string) string
}

// GCSStorageService is the StorageService backed by one GCS bucket.
type GCSStorageService struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

var _ StorageService = (*GCSStorageService)(nil)

// NewGCSStorageService creates a storage client using Application Default
// Credentials.
func NewGCSStorageService(ctx context.Context, bucket string) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStorageService: create storage client: %w", err)
	}
	return &GCSStorageService{client: client, bucket: bucket, now: time.Now}, nil
}

// Close closes the storage client.
func (s *GCSStorageService) Close() error {
	return s.client.Close()
}

// UploadUserDocument implements StorageService.
func (s *GCSStorageService) UploadUserDocument(ctx context.Context, userID, filename string, data []byte) (string, error) {
	object := UserObjectName(userID, filename, s.now())
	if err := UploadBytes(ctx, s.client, s.bucket, object, data); err != nil {
		return "", fmt.Errorf("UploadUserDocument: %w", err)
	}
	return GCSURI(s.bucket, object), nil
}

// FetchFromGCS implements StorageService.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchFromGCS(ctx, s.client, gcsURI)
}

// ExtractFilenameFromGCSURI implements StorageService.
func (s *GCSStorageService) ExtractFilenameFromGCSURI(uri string) string {
	return ExtractFilenameFromGCSURI(uri)
}
