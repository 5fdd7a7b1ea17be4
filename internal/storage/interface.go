package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

// ObjectStorage stores original resume files.
type ObjectStorage interface {
	// Put uploads an object
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get downloads an object fully into memory
	Get(ctx context.Context, key string) ([]byte, error)

	// PresignURL returns a time-limited download URL for an object
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Delete deletes an object
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}

// ResumeKey builds the object key of an application's resume file.
func ResumeKey(prefix, applicationID, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "resume"
	}
	key := fmt.Sprintf("%s/%s", applicationID, base)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}
