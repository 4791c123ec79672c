package internal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombodb/zdbkit/internal/config"
	"github.com/zombodb/zdbkit/internal/elastic"
)

// scrollBackend plays the scroll side of the Elasticsearch API, serving
// the configured pages one per search request.
type scrollBackend struct {
	mu    sync.Mutex
	pages [][]elastic.ExportedDoc
	next  int
}

func (s *scrollBackend) handler(t *testing.T) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			_, _ = w.Write([]byte(`{"succeeded":true}`))
		case http.MethodPost:
			var hits []elastic.ExportedDoc
			if s.next < len(s.pages) {
				hits = s.pages[s.next]
				s.next++
			}
			payload := map[string]any{
				"_scroll_id": "cursor",
				"hits":       map[string]any{"hits": hits},
			}
			// resty only unmarshals the scroll response when the server says json
			w.Header().Set("Content-Type", "application/json")
			require.NoError(t, json.NewEncoder(w).Encode(payload))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

func TestDumpStoresExport(t *testing.T) {
	backend := &scrollBackend{pages: [][]elastic.ExportedDoc{
		{
			{ID: "65537", Source: json.RawMessage(`{"name":"a"}`)},
			{ID: "65538", Source: json.RawMessage(`{"name":"b"}`)},
		},
		{
			{ID: "65539", Source: json.RawMessage(`{"name":"c"}`)},
		},
	}}
	server := httptest.NewServer(backend.handler(t))
	defer server.Close()

	directory := t.TempDir()
	configureDumpTest(t, server.URL, directory)

	require.NoError(t, Dump(context.Background(), "products"))

	files, err := os.ReadDir(filepath.Join(directory, "products"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	content, err := os.ReadFile(filepath.Join(directory, "products", files[0].Name()))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"_id":"65537","_source":{"name":"a"}}`, lines[0])
	assert.JSONEq(t, `{"_id":"65538","_source":{"name":"b"}}`, lines[1])
	assert.JSONEq(t, `{"_id":"65539","_source":{"name":"c"}}`, lines[2])
}

func TestDumpCompressesExport(t *testing.T) {
	backend := &scrollBackend{pages: [][]elastic.ExportedDoc{
		{{ID: "1", Source: json.RawMessage(`{"name":"a"}`)}},
	}}
	server := httptest.NewServer(backend.handler(t))
	defer server.Close()

	directory := t.TempDir()
	configureDumpTest(t, server.URL, directory)

	compress := &config.CompressConfig{Algorithm: config.AlgorithmZstd}
	require.NoError(t, compress.Validate())
	config.Loaded.Compress = compress

	require.NoError(t, Dump(context.Background(), "products"))

	files, err := os.ReadDir(filepath.Join(directory, "products"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0].Name(), ".zstd"))

	file, err := os.Open(filepath.Join(directory, "products", files[0].Name()))
	require.NoError(t, err)
	defer file.Close()

	decompressed, err := Decompress(file, files[0].Name())
	require.NoError(t, err)

	content, err := io.ReadAll(decompressed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"_id":"1","_source":{"name":"a"}}`, strings.TrimSpace(string(content)))
}

func TestDumpRequiresStorage(t *testing.T) {
	config.Loaded = &config.Config{Elasticsearch: &config.ElasticsearchConfig{URL: "http://127.0.0.1:9"}}

	err := Dump(context.Background(), "products")
	assert.ErrorContains(t, err, "no storage backend")
}
