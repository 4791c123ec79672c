package internal

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombodb/zdbkit/internal/config"
	"github.com/zombodb/zdbkit/internal/config/storage"
)

func intPtr(v int) *int { return &v }

// restoreBackend plays the index management and bulk side of the
// Elasticsearch API.
type restoreBackend struct {
	mu      sync.Mutex
	exists  bool
	created []string
	lines   []string
}

func (b *restoreBackend) handler(t *testing.T) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		switch {
		case r.Method == http.MethodHead:
			if b.exists {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
		case r.Method == http.MethodPut:
			b.created = append(b.created, strings.Trim(r.URL.Path, "/"))
			b.exists = true
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		case strings.HasSuffix(r.URL.Path, "/_bulk"):
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
				if line != "" {
					b.lines = append(b.lines, line)
				}
			}
			_, _ = w.Write([]byte(`{"errors":false}`))
		case strings.HasSuffix(r.URL.Path, "/_refresh"):
			_, _ = w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

func configureDumpTest(t *testing.T, elasticURL, directory string) {
	t.Helper()

	config.Loaded = &config.Config{
		Elasticsearch: &config.ElasticsearchConfig{
			URL:  elasticURL,
			Bulk: &config.BulkConfig{Concurrency: intPtr(1)},
		},
		Storage: &storage.Storage{Local: &storage.LocalStorage{Directory: directory}},
	}
}

func writeLocalDump(t *testing.T, directory, index, name string, content []byte) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(directory, index), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(directory, index, name), content, 0o644))
}

func TestRestoreReplaysDump(t *testing.T) {
	backend := &restoreBackend{}
	server := httptest.NewServer(backend.handler(t))
	defer server.Close()

	directory := t.TempDir()
	configureDumpTest(t, server.URL, directory)

	dump := `{"_id":"65537","_source":{"name":"a","zdb_ctid":65537}}` + "\n" +
		`{"_id":"65538","_source":{"name":"b","zdb_ctid":65538}}` + "\n"
	writeLocalDump(t, directory, "products", "2026-01-02T15:04:05", []byte(dump))

	entries, err := ListAllDumps(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "products", entries[0].Index)
	assert.Equal(t, "local", entries[0].Source)
	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), entries[0].Timestamp)

	docs, err := Restore(context.Background(), &entries[0], "restored")
	require.NoError(t, err)
	assert.EqualValues(t, 2, docs)

	assert.Equal(t, []string{"restored"}, backend.created)
	require.Len(t, backend.lines, 4)
	assert.JSONEq(t, `{"index":{"_id":"65537"}}`, backend.lines[0])
	assert.Equal(t, `{"name":"a","zdb_ctid":65537}`, backend.lines[1])
	assert.JSONEq(t, `{"index":{"_id":"65538"}}`, backend.lines[2])
	assert.Equal(t, `{"name":"b","zdb_ctid":65538}`, backend.lines[3])
}

func TestRestoreDecompressesDump(t *testing.T) {
	backend := &restoreBackend{exists: true}
	server := httptest.NewServer(backend.handler(t))
	defer server.Close()

	directory := t.TempDir()
	configureDumpTest(t, server.URL, directory)

	var compressed bytes.Buffer
	encoder, err := zstd.NewWriter(&compressed)
	require.NoError(t, err)
	_, err = encoder.Write([]byte(`{"_id":"1","_source":{"name":"a"}}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, encoder.Close())

	writeLocalDump(t, directory, "products", "2026-01-02T15:04:05.zstd", compressed.Bytes())

	entries, err := ListAllDumps(context.Background(), "local")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	docs, err := Restore(context.Background(), &entries[0], "products")
	require.NoError(t, err)
	assert.EqualValues(t, 1, docs)

	assert.Empty(t, backend.created)
	require.Len(t, backend.lines, 2)
	assert.Equal(t, `{"name":"a"}`, backend.lines[1])
}

func TestRestoreMalformedDump(t *testing.T) {
	backend := &restoreBackend{exists: true}
	server := httptest.NewServer(backend.handler(t))
	defer server.Close()

	directory := t.TempDir()
	configureDumpTest(t, server.URL, directory)

	writeLocalDump(t, directory, "products", "2026-01-02T15:04:05", []byte("not json\n"))

	entries, err := ListAllDumps(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = Restore(context.Background(), &entries[0], "products")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed dump line 1")
}

func TestFindDumpByID(t *testing.T) {
	entries := []DumpEntry{
		{Name: "2026-02-01T00:00:00.zstd"},
		{Name: "2026-01-01T00:00:00"},
	}

	found := FindDumpByID(entries, "2026-01-01")
	require.NotNil(t, found)
	assert.Equal(t, "2026-01-01T00:00:00", found.Name)

	found = FindDumpByID(entries, "2026-02-01T00:00:00.zstd")
	require.NotNil(t, found)
	assert.Equal(t, "2026-02-01T00:00:00.zstd", found.Name)

	assert.Nil(t, FindDumpByID(entries, "2027"))
}

func TestDumpTimestamp(t *testing.T) {
	modified := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), dumpTimestamp("2026-01-02T15:04:05.gzip", modified))
	assert.Equal(t, modified, dumpTimestamp("README", modified))
}

func TestListAllDumpsSourceValidation(t *testing.T) {
	config.Loaded = &config.Config{Storage: &storage.Storage{Local: &storage.LocalStorage{Directory: t.TempDir()}}}

	_, err := ListAllDumps(context.Background(), "s3")
	assert.ErrorContains(t, err, "s3 storage is not configured")

	_, err = ListAllDumps(context.Background(), "ftp")
	assert.ErrorContains(t, err, "unsupported dump source")

	config.Loaded = &config.Config{}
	_, err = ListAllDumps(context.Background(), "")
	assert.ErrorContains(t, err, "no storage backend")
}
