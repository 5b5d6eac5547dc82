package storage

import (
	"context"
	"io"
)

// UploadResult описывает опубликованный объект.
type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader — публикация снапшотов результатов в объектное хранилище.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	GetPublicURL(key string) string
}
