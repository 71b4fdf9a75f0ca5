// Package fetchertest serves fetcher requests from an in-process
// http.Handler, without sockets.
package fetchertest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/censusdis/internal/fetcher"
)

// Handler is a fetcher.Fetcher that answers from an http.Handler. Status
// handling matches fetcher.HTTPFetcher: 204 is fetcher.ErrNoContent and any
// other non-200 status is an error. Nothing is retried.
type Handler struct {
	h http.Handler

	mu   sync.Mutex
	urls []string
}

var _ fetcher.Fetcher = (*Handler)(nil)

// New returns a Handler serving from h.
func New(h http.Handler) *Handler {
	return &Handler{h: h}
}

// URLs returns every URL requested so far, in order.
func (f *Handler) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

func (f *Handler) serve(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()

	req := httptest.NewRequest(http.MethodGet, url, nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)

	switch rec.Code {
	case http.StatusOK:
		return rec.Body.Bytes(), nil
	case http.StatusNoContent:
		return nil, fetcher.ErrNoContent
	default:
		return nil, eris.Errorf("download: unexpected status %d from %s: %s", rec.Code, url, rec.Body.String())
	}
}

// Download implements fetcher.Fetcher.
func (f *Handler) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	body, err := f.serve(ctx, url)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

// DownloadToFile implements fetcher.Fetcher.
func (f *Handler) DownloadToFile(ctx context.Context, url, path string) (int64, error) {
	body, err := f.serve(ctx, url)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrap(err, "download: mkdir")
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return 0, eris.Wrap(err, "download: write file")
	}
	return int64(len(body)), nil
}
