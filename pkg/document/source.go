package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrNotFound is returned by sources that have no document for a ref.
var ErrNotFound = errors.New("document: not found")

// Source retrieves plan documents.
type Source interface {
	Fetch(ctx context.Context, ref Ref) (*Document, error)
}

// MemorySource serves pre-built documents keyed by Ref.Key.
type MemorySource struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewMemorySource returns a source holding docs.
func NewMemorySource(docs ...*Document) *MemorySource {
	m := &MemorySource{docs: make(map[string]*Document)}
	for _, d := range docs {
		m.Put(d)
	}
	return m
}

// Put adds or replaces a document.
func (m *MemorySource) Put(doc *Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.Ref.Key()] = doc
}

func (m *MemorySource) Fetch(_ context.Context, ref Ref) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[ref.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return doc, nil
}

// FileSource reads saved HTML pages from a directory tree laid out like the
// site: <root>/<year>/<kind>/<CODE>.html, or <root>/<kind>/<CODE>.html when the
// ref carries no year.
type FileSource struct {
	root string
}

// NewFileSource returns a source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{root: dir}
}

// Path returns where ref is expected on disk.
func (f *FileSource) Path(ref Ref) string {
	parts := []string{f.root}
	if ref.Year != "" {
		parts = append(parts, ref.Year)
	}
	parts = append(parts, string(ref.Kind), ref.Code+".html")
	return filepath.Join(parts...)
}

func (f *FileSource) Fetch(_ context.Context, ref Ref) (*Document, error) {
	path := f.Path(ref)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s at %s", ErrNotFound, ref, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if ref.URL == "" {
		ref.URL = (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
	}
	return ParseHTML(bytes.NewReader(data), ref)
}

// HTTPSource fetches pages from the handbook site, pacing requests with a
// token bucket.
type HTTPSource struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewHTTPSource returns a source that fetches at most rps pages per second.
// Refs without a URL are resolved against baseURL.
func NewHTTPSource(baseURL string, rps float64, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &HTTPSource{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(limit, 1),
		logger:  slog.Default().With("component", "document.http"),
	}
}

// URL returns the address ref is fetched from.
func (h *HTTPSource) URL(ref Ref) string {
	if ref.URL != "" {
		return ref.URL
	}
	if ref.Year != "" {
		return fmt.Sprintf("%s/%s/%s/%s", h.baseURL, ref.Year, ref.Kind, ref.Code)
	}
	return fmt.Sprintf("%s/%s/%s", h.baseURL, ref.Kind, ref.Code)
}

func (h *HTTPSource) Fetch(ctx context.Context, ref Ref) (*Document, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch %s: rate limit wait: %w", ref, err)
	}
	target := h.URL(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	defer func() { _ = resp.Body.Close() }()

	h.logger.DebugContext(ctx, "fetched page", "url", target, "status", resp.StatusCode)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", target, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", target, err)
	}
	ref.URL = target
	return ParseHTML(bytes.NewReader(body), ref)
}
