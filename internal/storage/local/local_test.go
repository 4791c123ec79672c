package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombodb/zdbkit/internal/config"
	"github.com/zombodb/zdbkit/internal/config/storage"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func configure(t *testing.T, local *storage.LocalStorage) {
	t.Helper()
	config.Loaded = &config.Config{Storage: &storage.Storage{Local: local}}
}

func writeDump(t *testing.T, root, index, name string, modified time.Time) string {
	t.Helper()

	dir := filepath.Join(root, index)
	require.NoError(t, os.MkdirAll(dir, 0755))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("dump"), 0644))
	require.NoError(t, os.Chtimes(path, modified, modified))

	return path
}

func TestStoreWritesTimestampedFile(t *testing.T) {
	root := t.TempDir()
	configure(t, &storage.LocalStorage{Directory: root})

	require.NoError(t, Store(context.Background(), "products", strings.NewReader("ndjson payload")))

	entries, err := os.ReadDir(filepath.Join(root, "products"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, isDumpName(entries[0].Name()))

	content, err := os.ReadFile(filepath.Join(root, "products", entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "ndjson payload", string(content))
}

func TestStoreAppendsCompressionSuffix(t *testing.T) {
	root := t.TempDir()
	configure(t, &storage.LocalStorage{Directory: root})
	config.Loaded.Compress = &config.CompressConfig{Algorithm: config.AlgorithmZstd}

	require.NoError(t, Store(context.Background(), "products", strings.NewReader("payload")))

	entries, err := os.ReadDir(filepath.Join(root, "products"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".zstd"))
}

func TestIsDumpName(t *testing.T) {
	assert.True(t, isDumpName("2026-01-02T15:04:05"))
	assert.True(t, isDumpName("2026-01-02T15:04:05.zstd"))
	assert.False(t, isDumpName("README"))
	assert.False(t, isDumpName("2026.backup"))
}

func TestListDumpsNewestFirst(t *testing.T) {
	root := t.TempDir()
	configure(t, &storage.LocalStorage{Directory: root})

	now := time.Now()
	writeDump(t, root, "products", "2026-01-01T00:00:00", now.Add(-3*time.Hour))
	writeDump(t, root, "products", "2026-01-02T00:00:00", now.Add(-1*time.Hour))
	writeDump(t, root, "users", "2026-01-01T12:00:00", now.Add(-2*time.Hour))
	writeDump(t, root, "products", "README", now)
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray"), []byte("x"), 0644))

	dumps, err := ListDumps()
	require.NoError(t, err)
	require.Len(t, dumps, 3)

	assert.Equal(t, "2026-01-02T00:00:00", dumps[0].Name)
	assert.Equal(t, "products", dumps[0].Index)
	assert.Equal(t, "users", dumps[1].Index)
	assert.Equal(t, "2026-01-01T00:00:00", dumps[2].Name)
}

func TestCleanupRetentionCountPerIndex(t *testing.T) {
	root := t.TempDir()
	configure(t, &storage.LocalStorage{
		Directory:      root,
		RetentionCount: intPtr(1),
	})

	now := time.Now()
	oldProducts := writeDump(t, root, "products", "2026-01-01T00:00:00", now.Add(-2*time.Hour))
	newProducts := writeDump(t, root, "products", "2026-01-02T00:00:00", now.Add(-1*time.Hour))
	oldUsers := writeDump(t, root, "users", "2026-01-01T00:00:00", now.Add(-3*time.Hour))
	newUsers := writeDump(t, root, "users", "2026-01-02T00:00:00", now.Add(-1*time.Minute))

	require.NoError(t, CleanupRetention(context.Background()))

	assert.NoFileExists(t, oldProducts)
	assert.FileExists(t, newProducts)
	assert.NoFileExists(t, oldUsers)
	assert.FileExists(t, newUsers)
}

func TestCleanupRetentionAge(t *testing.T) {
	root := t.TempDir()
	configure(t, &storage.LocalStorage{
		Directory:       root,
		RetentionPeriod: strPtr("daily"),
	})

	now := time.Now()
	stale := writeDump(t, root, "products", "2026-01-01T00:00:00", now.AddDate(0, 0, -3))
	fresh := writeDump(t, root, "products", "2026-01-02T00:00:00", now.Add(-time.Hour))

	require.NoError(t, CleanupRetention(context.Background()))

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}

func TestCleanupRetentionUnconfigured(t *testing.T) {
	root := t.TempDir()
	configure(t, &storage.LocalStorage{Directory: root})

	kept := writeDump(t, root, "products", "2026-01-01T00:00:00", time.Now().AddDate(0, 0, -30))

	require.NoError(t, CleanupRetention(context.Background()))
	assert.FileExists(t, kept)
}

func TestOpenDump(t *testing.T) {
	root := t.TempDir()
	configure(t, &storage.LocalStorage{Directory: root})

	path := writeDump(t, root, "products", "2026-01-01T00:00:00", time.Now())

	reader, err := OpenDump(path)
	require.NoError(t, err)
	defer reader.Close()

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "dump", string(content))

	_, err = OpenDump(filepath.Join(root, "products", "missing"))
	assert.Error(t, err)
}
