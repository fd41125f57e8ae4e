package ingest

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/andresuchdata/stockcast/internal/storage"
)

// ObjectSource reads exports stored under a key prefix in object storage.
type ObjectSource struct {
	objects storage.ObjectStorage
	prefix  string
}

func NewObjectSource(objects storage.ObjectStorage, prefix string) *ObjectSource {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &ObjectSource{objects: objects, prefix: prefix}
}

func (s *ObjectSource) Name() string { return "storage" }

func (s *ObjectSource) ListFiles(ctx context.Context) ([]File, error) {
	objects, err := s.objects.ListObjects(ctx, s.prefix)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(objects))
	for _, obj := range objects {
		format, ok := formatFor(obj.Key)
		if !ok {
			continue
		}
		files = append(files, File{
			ID:           obj.Key,
			Name:         path.Base(obj.Key),
			Format:       format,
			ModifiedTime: obj.LastModified.UTC(),
			Size:         obj.Size,
		})
	}
	return files, nil
}

func (s *ObjectSource) Open(ctx context.Context, file File) (io.ReadCloser, error) {
	data, err := s.objects.GetObject(ctx, file.ID)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
