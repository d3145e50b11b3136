package core

import (
	"context"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrObjectNotFound is returned by FileStorage implementations for missing keys.
var ErrObjectNotFound = errors.New("object not found")

type (
	// File is an uploaded file waiting to be stored.
	File struct {
		Name        string
		Size        int64
		ContentType string
		Content     io.Reader
	}

	ObjectInfo struct {
		Key         string    `json:"key"`
		Size        int64     `json:"size"`
		ContentType string    `json:"content_type"`
		Updated     time.Time `json:"updated"`
	}

	// FileStorage is an object store for user uploads.
	FileStorage interface {
		Upload(ctx context.Context, key string, f File) (*ObjectInfo, error)
		Download(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
		Delete(ctx context.Context, key string) error
		Exists(ctx context.Context, key string) (bool, error)
		Info(ctx context.Context, key string) (*ObjectInfo, error)
		List(ctx context.Context, prefix string) ([]ObjectInfo, error)
		SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
		PublicURL(key string) string
	}
)

// Ext returns the lower-cased extension of the file name.
func (f File) Ext() string {
	return strings.ToLower(path.Ext(f.Name))
}

// ObjectKey builds a unique object key under `prefix`, keeping the extension of `filename`.
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(prefix, time.Now().UTC().Format("2006/01/02"), uuid.NewString()+ext)
}

// CheckUpload validates the extension and the size of an uploaded file.
func CheckUpload(field string, f File, maxSize int64, exts ...string) error {
	ext := f.Ext()
	allowed := false
	for _, e := range exts {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed {
		return NewValidationError(
			errors.New("unsupported file type"),
			FieldError{Field: field, Error: "unsupported file type, allowed: " + strings.Join(exts, ", ")},
		)
	}
	if f.Size > maxSize {
		return NewValidationError(
			errors.New("file too large"),
			FieldError{Field: field, Error: "file size cannot exceed " + humanSize(maxSize)},
		)
	}
	return nil
}

// RemoveObjects deletes the given keys, skipping empty and already missing ones.
// Every key is attempted; the first failure is returned.
func RemoveObjects(ctx context.Context, storage FileStorage, keys ...string) error {
	var first error
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := storage.Delete(ctx, key); err != nil && errors.Cause(err) != ErrObjectNotFound && first == nil {
			first = errors.Wrapf(err, "deleting object %s", key)
		}
	}
	return first
}

func humanSize(n int64) string {
	const mb = 1 << 20
	if n%mb == 0 {
		return strconv.FormatInt(n/mb, 10) + "MB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}
