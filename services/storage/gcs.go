// Package storagesvc implements core.FileStorage on Google Cloud Storage and in memory.
package storagesvc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/services/metrics"
)

const (
	uploadTimeout = 2 * time.Minute
	opTimeout     = 30 * time.Second
)

type gcsStorage struct {
	client *storage.Client
	bucket string
}

var _ core.FileStorage = (*gcsStorage)(nil)

// NewGCSStorage connects to the configured bucket using the credentials file or JSON,
// falling back to the application default credentials.
func NewGCSStorage(ctx context.Context, conf core.StorageConfig) (core.FileStorage, func() error, error) {
	if conf.Bucket == "" {
		return nil, nil, errors.New("storage bucket is not configured")
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	switch {
	case conf.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(conf.CredentialsJSON)))
	case conf.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(conf.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating storage client")
	}
	return &gcsStorage{client: client, bucket: conf.Bucket}, client.Close, nil
}

func (s *gcsStorage) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(key)
}

func objectInfo(attrs *storage.ObjectAttrs) *core.ObjectInfo {
	return &core.ObjectInfo{
		Key:         attrs.Name,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Updated:     attrs.Updated.UTC(),
	}
}

func notFound(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return core.ErrObjectNotFound
	}
	return err
}

func (s *gcsStorage) Upload(ctx context.Context, key string, f core.File) (info *core.ObjectInfo, err error) {
	defer func() { metrics.ObserveStorage("upload", err) }()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.object(key).NewWriter(ctx)
	w.ContentType = contentType(f)
	if _, err = io.Copy(w, f.Content); err != nil {
		_ = w.Close()
		return nil, errors.Wrap(err, "writing object")
	}
	if err = w.Close(); err != nil {
		return nil, errors.Wrap(err, "closing object writer")
	}
	return objectInfo(w.Attrs()), nil
}

func (s *gcsStorage) Download(ctx context.Context, key string) (rc io.ReadCloser, info *core.ObjectInfo, err error) {
	defer func() { metrics.ObserveStorage("download", err) }()

	r, err := s.object(key).NewReader(ctx)
	if err != nil {
		return nil, nil, notFound(err)
	}
	return r, &core.ObjectInfo{
		Key:         key,
		Size:        r.Attrs.Size,
		ContentType: r.Attrs.ContentType,
		Updated:     r.Attrs.LastModified.UTC(),
	}, nil
}

func (s *gcsStorage) Delete(ctx context.Context, key string) (err error) {
	defer func() { metrics.ObserveStorage("delete", err) }()

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return notFound(s.object(key).Delete(ctx))
}

func (s *gcsStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Info(ctx, key)
	if err == core.ErrObjectNotFound {
		return false, nil
	}
	return err == nil, err
}

func (s *gcsStorage) Info(ctx context.Context, key string) (*core.ObjectInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	attrs, err := s.object(key).Attrs(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return objectInfo(attrs), nil
}

func (s *gcsStorage) List(ctx context.Context, prefix string) ([]core.ObjectInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	res := make([]core.ObjectInfo, 0)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "listing objects")
		}
		res = append(res, *objectInfo(attrs))
	}
	return res, nil
}

func (s *gcsStorage) SignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:  http.MethodGet,
		Expires: time.Now().Add(expiry),
		Scheme:  storage.SigningSchemeV4,
	})
	return u, errors.Wrap(err, "signing url")
}

func (s *gcsStorage) PublicURL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, strings.TrimLeft(key, "/"))
}

// contentType trusts the declared type, then guesses from the extension.
func contentType(f core.File) string {
	if f.ContentType != "" && f.ContentType != "application/octet-stream" {
		return f.ContentType
	}
	switch f.Ext() {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt", ".md":
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}
