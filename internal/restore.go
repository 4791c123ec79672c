package internal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zombodb/zdbkit/internal/config"
	"github.com/zombodb/zdbkit/internal/elastic"
	"github.com/zombodb/zdbkit/internal/storage/local"
	"github.com/zombodb/zdbkit/internal/storage/s3"
)

// restoreScanBuffer caps a single dump line. Documents larger than this
// cannot be restored.
const restoreScanBuffer = 64 * 1024 * 1024

// DumpEntry identifies a stored dump across storage backends.
type DumpEntry struct {
	Index     string
	Name      string
	Key       string // object key on s3, absolute path on local storage
	Source    string // "s3" or "local"
	Timestamp time.Time
	Size      int64
}

// ListAllDumps collects the dumps available for restore. Source narrows
// the search to "s3" or "local"; an empty source includes every
// configured backend. Entries are sorted newest first.
func ListAllDumps(ctx context.Context, source string) ([]DumpEntry, error) {
	var entries []DumpEntry

	s3Configured := config.Loaded.Storage != nil && config.Loaded.Storage.S3 != nil
	localConfigured := config.Loaded.Storage != nil && config.Loaded.Storage.Local != nil

	switch source {
	case "s3":
		if !s3Configured {
			return nil, errors.New("restore: s3 storage is not configured")
		}
	case "local":
		if !localConfigured {
			return nil, errors.New("restore: local storage is not configured")
		}
	case "":
		if !s3Configured && !localConfigured {
			return nil, errors.New("restore: no storage backend is configured")
		}
	default:
		return nil, fmt.Errorf("restore: unsupported dump source %q", source)
	}

	if s3Configured && source != "local" {
		client, err := s3.CreateClient()
		if err != nil {
			return nil, err
		}

		dumps, err := s3.ListDumps(ctx, client)
		if err != nil {
			return nil, err
		}

		for _, dump := range dumps {
			entries = append(entries, DumpEntry{
				Index:     dump.Index,
				Name:      dump.Name,
				Key:       dump.Key,
				Source:    "s3",
				Timestamp: dumpTimestamp(dump.Name, dump.LastModified),
				Size:      dump.Size,
			})
		}
	}

	if localConfigured && source != "s3" {
		dumps, err := local.ListDumps()
		if err != nil {
			return nil, err
		}

		for _, dump := range dumps {
			entries = append(entries, DumpEntry{
				Index:     dump.Index,
				Name:      dump.Name,
				Key:       dump.Path,
				Source:    "local",
				Timestamp: dumpTimestamp(dump.Name, dump.LastModified),
				Size:      dump.Size,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	return entries, nil
}

// dumpTimestamp parses the timestamp prefix of a dump name, falling
// back to the storage modification time.
func dumpTimestamp(name string, modified time.Time) time.Time {
	if len(name) >= 19 {
		if parsed, err := time.Parse("2006-01-02T15:04:05", name[:19]); err == nil {
			return parsed
		}
	}
	return modified
}

// FindDumpByID returns the newest dump whose name contains or equals
// the given id, or nil when nothing matches.
func FindDumpByID(entries []DumpEntry, id string) *DumpEntry {
	for i := range entries {
		if strings.Contains(entries[i].Name, id) || entries[i].Name == id {
			return &entries[i]
		}
	}
	return nil
}

// Restore replays a stored dump into the target index and returns the
// number of documents indexed. The target index is created from the
// default mapping when it does not exist; existing documents are
// overwritten by id.
func Restore(ctx context.Context, entry *DumpEntry, targetIndex string) (int64, error) {
	logger := log.Logger.With().
		Str("caller", "restore").
		Str("dump", entry.Name).
		Str("source", entry.Source).
		Str("index", targetIndex).
		Logger()

	var (
		reader io.ReadCloser
		err    error
	)
	switch entry.Source {
	case "s3":
		reader, err = s3.DownloadDump(ctx, entry.Key)
	case "local":
		reader, err = local.OpenDump(entry.Key)
	default:
		return 0, fmt.Errorf("restore: unsupported dump source %q", entry.Source)
	}
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	decompressed, err := Decompress(reader, entry.Name)
	if err != nil {
		return 0, fmt.Errorf("restore: failed to decompress dump: %w", err)
	}

	client := elastic.New(config.Loaded.Elasticsearch)

	exists, err := client.IndexExists(ctx, targetIndex)
	if err != nil {
		return 0, err
	}
	if !exists {
		logger.Info().Msg("target index does not exist, creating it")
		if err := client.CreateIndex(ctx, targetIndex, elastic.DefaultMapping()); err != nil {
			return 0, err
		}
	}

	bulk := client.NewBulkRequest(ctx, targetIndex, true)

	scanner := bufio.NewScanner(decompressed)
	scanner.Buffer(make([]byte, 0, 1024*1024), restoreScanBuffer)

	var line int64
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		line++

		var doc elastic.ExportedDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			bulk.Terminate()
			_, _ = bulk.Finish()
			return 0, fmt.Errorf("restore: malformed dump line %d: %w", line, err)
		}

		if err := bulk.IndexRaw(doc.ID, doc.Source); err != nil {
			_, _ = bulk.Finish()
			return 0, err
		}
	}

	if err := scanner.Err(); err != nil {
		bulk.Terminate()
		_, _ = bulk.Finish()
		return 0, fmt.Errorf("restore: failed to read dump: %w", err)
	}

	docs, err := bulk.Finish()
	if err != nil {
		return docs, err
	}

	logger.Info().Int64("docs", docs).Msg("restore completed")
	return docs, nil
}
