package storagesvc

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/services/metrics"
)

type memObject struct {
	data []byte
	info core.ObjectInfo
}

// MemoryStorage keeps objects in memory. It serves local development and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memObject
	baseURL string
}

var _ core.FileStorage = (*MemoryStorage)(nil)

func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string]memObject),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *MemoryStorage) Upload(_ context.Context, key string, f core.File) (*core.ObjectInfo, error) {
	data, err := io.ReadAll(f.Content)
	metrics.ObserveStorage("upload", err)
	if err != nil {
		return nil, errors.Wrap(err, "reading upload")
	}
	obj := memObject{
		data: data,
		info: core.ObjectInfo{
			Key:         key,
			Size:        int64(len(data)),
			ContentType: contentType(f),
			Updated:     time.Now().UTC(),
		},
	}
	s.mu.Lock()
	s.objects[key] = obj
	s.mu.Unlock()
	info := obj.info
	return &info, nil
}

func (s *MemoryStorage) get(key string) (memObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return memObject{}, core.ErrObjectNotFound
	}
	return obj, nil
}

func (s *MemoryStorage) Download(_ context.Context, key string) (io.ReadCloser, *core.ObjectInfo, error) {
	obj, err := s.get(key)
	metrics.ObserveStorage("download", err)
	if err != nil {
		return nil, nil, err
	}
	info := obj.info
	return io.NopCloser(bytes.NewReader(obj.data)), &info, nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		metrics.ObserveStorage("delete", core.ErrObjectNotFound)
		return core.ErrObjectNotFound
	}
	delete(s.objects, key)
	metrics.ObserveStorage("delete", nil)
	return nil
}

func (s *MemoryStorage) Exists(_ context.Context, key string) (bool, error) {
	_, err := s.get(key)
	return err == nil, nil
}

func (s *MemoryStorage) Info(_ context.Context, key string) (*core.ObjectInfo, error) {
	obj, err := s.get(key)
	if err != nil {
		return nil, err
	}
	info := obj.info
	return &info, nil
}

func (s *MemoryStorage) List(_ context.Context, prefix string) ([]core.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]core.ObjectInfo, 0)
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			res = append(res, obj.info)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Key < res[j].Key })
	return res, nil
}

// SignedURL returns the public URL with an expiry query parameter; nothing is actually signed.
func (s *MemoryStorage) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if _, err := s.get(key); err != nil {
		return "", err
	}
	q := url.Values{"expires": {time.Now().Add(expiry).UTC().Format(time.RFC3339)}}
	return s.PublicURL(key) + "?" + q.Encode(), nil
}

func (s *MemoryStorage) PublicURL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}

// Len returns the number of stored objects.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
