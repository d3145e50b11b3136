package storagesvc

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlou/innergrow.ai/core"
)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage("http://localhost:8000/media/")

	info, err := s.Upload(ctx, "exam_materials/a.pdf", core.File{Name: "a.pdf", Content: strings.NewReader("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, int64(8), info.Size)
	assert.Equal(t, "application/pdf", info.ContentType)

	_, err = s.Upload(ctx, "avatars/b.png", core.File{Name: "b.png", ContentType: "image/png", Content: strings.NewReader("png")})
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "exam_materials/a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, dinfo, err := s.Download(ctx, "exam_materials/a.pdf")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, info.Key, dinfo.Key)

	objs, err := s.List(ctx, "exam_materials/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "exam_materials/a.pdf", objs[0].Key)

	assert.Equal(t, "http://localhost:8000/media/avatars/b.png", s.PublicURL("avatars/b.png"))
	u, err := s.SignedURL(ctx, "avatars/b.png", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://localhost:8000/media/avatars/b.png?expires="))

	require.NoError(t, s.Delete(ctx, "avatars/b.png"))
	assert.Equal(t, core.ErrObjectNotFound, s.Delete(ctx, "avatars/b.png"))
	_, _, err = s.Download(ctx, "avatars/b.png")
	assert.Equal(t, core.ErrObjectNotFound, err)
	_, err = s.SignedURL(ctx, "avatars/b.png", time.Hour)
	assert.Equal(t, core.ErrObjectNotFound, err)
	assert.Equal(t, 1, s.Len())
}

func TestContentType(t *testing.T) {
	tests := []struct {
		file core.File
		want string
	}{
		{file: core.File{Name: "x.PNG"}, want: "image/png"},
		{file: core.File{Name: "x.jpeg", ContentType: "application/octet-stream"}, want: "image/jpeg"},
		{file: core.File{Name: "x.docx"}, want: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{file: core.File{Name: "x.bin"}, want: "application/octet-stream"},
		{file: core.File{Name: "x.pdf", ContentType: "application/x-pdf"}, want: "application/x-pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.file.Name, func(t *testing.T) {
			if got := contentType(tt.file); got != tt.want {
				t.Errorf("contentType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGCSStorage_PublicURL(t *testing.T) {
	s := &gcsStorage{bucket: "innergrow-media"}
	assert.Equal(t, "https://storage.googleapis.com/innergrow-media/books/1/a.png", s.PublicURL("/books/1/a.png"))
}
