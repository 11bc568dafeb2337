package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nir0k/photokeep/internal/catalog"
	"github.com/nir0k/photokeep/internal/media"
	"github.com/nir0k/photokeep/internal/storage"
)

func openCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xE0}, 0o644))
	return path
}

func TestCatalogIndexAddAndRemove(t *testing.T) {
	cat := openCatalog(t)
	ci := NewCatalogIndex(cat)
	ctx := context.Background()
	dir := t.TempDir()

	path := writeFile(t, dir, "PK_2026-08-31-10-00-00-000.jpg")
	require.NoError(t, ci.FileAdded(ctx, path))

	e, ok, err := cat.FindBySource(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, IndexOwner, e.Owner)
	require.Equal(t, "PK_2026-08-31-10-00-00-000.jpg", e.DisplayName)
	require.Equal(t, int64(4), e.Size)

	// Upsert keeps a single row per path.
	require.NoError(t, ci.FileAdded(ctx, path))
	rows, err := cat.Query(IndexOwner)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, ci.FileRemoved(ctx, path))
	_, ok, err = cat.FindBySource(path)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, ci.FileRemoved(ctx, path))
}

func TestCatalogIndexRescan(t *testing.T) {
	cat := openCatalog(t)
	ci := NewCatalogIndex(cat)
	ctx := context.Background()
	dir := t.TempDir()

	kept := writeFile(t, dir, "PK_2026-08-31-10-00-00-000.jpg")
	gone := writeFile(t, dir, "PK_2026-08-31-10-00-01-000.jpg")
	writeFile(t, dir, "notes.txt")
	require.NoError(t, ci.FileAdded(ctx, gone))

	require.NoError(t, os.Remove(gone))
	added, removed, err := ci.Rescan(ctx, dir)
	require.NoError(t, err)
	require.Equal(t, 1, added)
	require.Equal(t, 1, removed)

	_, ok, err := cat.FindBySource(kept)
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = cat.FindBySource(gone)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHTTPUploader(t *testing.T) {
	var got uploadEnvelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.URL, "device-42", 5*time.Second)
	content := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}
	err := u.Upload(context.Background(), "PK_2026-08-31-10-00-00-000.jpg", bytes.NewReader(content))
	require.NoError(t, err)

	require.Equal(t, "1.0", got.Version)
	require.Equal(t, "PK_2026-08-31-10-00-00-000.jpg", got.Filename)
	require.Equal(t, "device-42", got.DeviceID)
	decoded, err := base64.StdEncoding.DecodeString(got.Content)
	require.NoError(t, err)
	require.Equal(t, content, decoded)
}

func TestHTTPUploaderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.URL, "device-42", 5*time.Second)
	err := u.Upload(context.Background(), "x.jpg", bytes.NewReader([]byte{1}))
	require.Error(t, err)
}

// stubBackend serves Open and DisplayName for publisher tests.
type stubBackend struct {
	name string
	data []byte
}

func (s *stubBackend) Name() string { return "stub" }
func (s *stubBackend) Write(ctx context.Context, c *media.Capture) (storage.Locator, error) {
	return storage.Locator{}, nil
}
func (s *stubBackend) Save(ctx context.Context, md media.Metadata, loc storage.Locator) error {
	return nil
}
func (s *stubBackend) Read(ctx context.Context, loc storage.Locator) (media.Metadata, error) {
	return media.Metadata{}, nil
}
func (s *stubBackend) List(ctx context.Context) ([]storage.Locator, error) { return nil, nil }
func (s *stubBackend) Delete(ctx context.Context, loc storage.Locator) error {
	return nil
}
func (s *stubBackend) Open(ctx context.Context, loc storage.Locator) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}
func (s *stubBackend) DisplayName(ctx context.Context, loc storage.Locator) (string, error) {
	return s.name, nil
}
func (s *stubBackend) Close() error { return nil }

type countingUploader struct {
	names []string
	err   error
}

func (c *countingUploader) Upload(ctx context.Context, name string, content io.Reader) error {
	c.names = append(c.names, name)
	return c.err
}

func TestPublishedIndexesFileWritesOnly(t *testing.T) {
	cat := openCatalog(t)
	ci := NewCatalogIndex(cat)
	ctx := context.Background()

	path := writeFile(t, t.TempDir(), "PK_2026-08-31-10-00-00-000.jpg")
	p := NewPublisher(&stubBackend{}, ci, nil, false)

	require.NoError(t, p.Published(ctx, storage.FileLocator(path)))
	_, ok, err := cat.FindBySource(path)
	require.NoError(t, err)
	require.True(t, ok)

	// Catalog-backed rows are indexed at insert time; publication must not
	// add anything for them.
	require.NoError(t, p.Published(ctx, storage.ContentLocator("abc")))
	rows, err := cat.Query(IndexOwner)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestPublishedAutoSend(t *testing.T) {
	ctx := context.Background()
	up := &countingUploader{}
	backend := &stubBackend{name: "PK_x.jpg", data: []byte{0xFF, 0xD8}}

	off := NewPublisher(backend, nil, up, false)
	require.NoError(t, off.Published(ctx, storage.ContentLocator("1")))
	require.Empty(t, up.names)

	on := NewPublisher(backend, nil, up, true)
	require.NoError(t, on.Published(ctx, storage.ContentLocator("1")))
	require.Equal(t, []string{"PK_x.jpg"}, up.names)
}

func TestSendFailureIsPublicationKind(t *testing.T) {
	up := &countingUploader{err: context.DeadlineExceeded}
	p := NewPublisher(&stubBackend{name: "PK_x.jpg"}, nil, up, true)

	err := p.Send(context.Background(), storage.ContentLocator("1"))
	require.True(t, storage.HasKind(err, storage.KindPublication))

	none := NewPublisher(&stubBackend{}, nil, nil, false)
	err = none.Send(context.Background(), storage.ContentLocator("1"))
	require.True(t, storage.HasKind(err, storage.KindPublication))
}
