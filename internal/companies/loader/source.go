package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/desmedtandreas/companions-app-backend/pkg/platform/sentinel"
)

// DirSource reads a dump set from a local directory.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return file, nil
}

// HTTPSource fetches a dump set from a base URL, one request per file.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{baseURL: baseURL, client: client}
}

func (s *HTTPSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	url := s.baseURL + "/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, sentinel.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}
