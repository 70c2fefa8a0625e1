package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vidgallery/backend/internal/config"
	"github.com/vidgallery/backend/internal/thumbnails"
)

type uploaderStub struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (u *uploaderStub) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if u.err != nil {
		return nil, u.err
	}
	u.input = input
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	u.body = data
	return &manager.UploadOutput{}, nil
}

func TestSaveReturnsPublicLocation(t *testing.T) {
	uploader := &uploaderStub{}
	store := NewS3StorageWithUploader(uploader, "thumbs", "https://cdn.example.com/")

	location, err := store.Save(context.Background(), "thumbnails/v1.jpg", strings.NewReader("jpeg"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if location != "https://cdn.example.com/thumbnails/v1.jpg" {
		t.Fatalf("unexpected location %q", location)
	}
	if aws.ToString(uploader.input.Bucket) != "thumbs" {
		t.Fatalf("unexpected bucket %q", aws.ToString(uploader.input.Bucket))
	}
	if aws.ToString(uploader.input.ContentType) != "image/jpeg" {
		t.Fatalf("unexpected content type %q", aws.ToString(uploader.input.ContentType))
	}
	if string(uploader.body) != "jpeg" {
		t.Fatalf("unexpected body %q", uploader.body)
	}
}

func TestSaveWithoutPublicURLReturnsKey(t *testing.T) {
	store := NewS3StorageWithUploader(&uploaderStub{}, "thumbs", "")

	location, err := store.Save(context.Background(), "/thumbnails/../thumbnails/v2.jpg", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if location != "thumbnails/v2.jpg" {
		t.Fatalf("unexpected location %q", location)
	}
}

func TestSaveErrors(t *testing.T) {
	failing := NewS3StorageWithUploader(&uploaderStub{err: errors.New("denied")}, "thumbs", "")
	if _, err := failing.Save(context.Background(), "a.jpg", strings.NewReader("x")); err == nil {
		t.Fatalf("expected upload error")
	}

	if _, err := failing.Save(context.Background(), "/", strings.NewReader("x")); err == nil {
		t.Fatalf("expected empty key error")
	}

	var missing *S3Storage
	if _, err := missing.Save(context.Background(), "a.jpg", strings.NewReader("x")); !errors.Is(err, thumbnails.ErrStorageUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestNewS3StorageRequiresBucket(t *testing.T) {
	if _, err := NewS3Storage(context.Background(), config.ObjectStoreConfig{}); err == nil {
		t.Fatalf("expected error without bucket")
	}
}
