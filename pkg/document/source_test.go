package document

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySource(t *testing.T) {
	doc := &Document{Ref: Ref{Kind: KindMajor, Code: "COMP-MAJ"}}
	src := NewMemorySource(doc)

	got, err := src.Fetch(context.Background(), Ref{Kind: KindMajor, Code: "COMP-MAJ", Title: "Computer Science"})
	require.NoError(t, err)
	assert.Same(t, doc, got)

	_, err = src.Fetch(context.Background(), Ref{Kind: KindMinor, Code: "COMP-MAJ"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2019", "program"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2019", "program", "MCOMP.html"), []byte(samplePage), 0o600))

	src := NewFileSource(dir)
	doc, err := src.Fetch(context.Background(), Ref{Kind: KindProgram, Code: "MCOMP", Year: "2019"})
	require.NoError(t, err)
	assert.Len(t, doc.Blocks, 9)
	assert.Contains(t, doc.Ref.URL, "file://")

	_, err = src.Fetch(context.Background(), Ref{Kind: KindProgram, Code: "MADAN"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2019/program/MCOMP" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, 0, srv.Client())
	doc, err := src.Fetch(context.Background(), Ref{Kind: KindProgram, Code: "MCOMP", Year: "2019"})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/2019/program/MCOMP", doc.Ref.URL)
	assert.Contains(t, doc.Links, "specialisations")

	_, err = src.Fetch(context.Background(), Ref{Kind: KindProgram, Code: "MADAN", Year: "2019"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPSourceHonoursCancellation(t *testing.T) {
	src := NewHTTPSource("http://127.0.0.1:1", 0.001, nil)
	// Drain the single burst token so the next call must wait.
	require.True(t, src.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Fetch(ctx, Ref{Kind: KindProgram, Code: "MCOMP"})
	require.Error(t, err)
}

type countingSource struct {
	calls int
	doc   *Document
	err   error
}

func (c *countingSource) Fetch(_ context.Context, ref Ref) (*Document, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	d := *c.doc
	d.Ref = ref
	return &d, nil
}

func TestCachedSource(t *testing.T) {
	inner := &countingSource{doc: &Document{Blocks: []Block{Paragraph("", "6 units from completion of COMP6442")}}}
	src := NewCachedSource(inner, NewMemoryCache(), time.Hour)
	ref := Ref{Kind: KindMajor, Code: "COMP-MAJ"}

	first, err := src.Fetch(context.Background(), ref)
	require.NoError(t, err)
	second, err := src.Fetch(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first.Blocks, second.Blocks)
	assert.Equal(t, ref, second.Ref)
}

func TestCachedSourcePropagatesErrors(t *testing.T) {
	boom := errors.New("unreachable")
	src := NewCachedSource(&countingSource{err: boom}, NewMemoryCache(), time.Hour)
	_, err := src.Fetch(context.Background(), Ref{Kind: KindMajor, Code: "X"})
	require.ErrorIs(t, err, boom)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
