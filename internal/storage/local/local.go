package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zombodb/zdbkit/internal/config"
)

// Store saves an index dump under <directory>/<index>/<timestamp>, with
// the compression extension when compression is configured.
func Store(ctx context.Context, index string, reader io.Reader) error {
	logger := log.Logger.With().Str("caller", "local_store").Logger()

	if config.Loaded.Storage == nil || config.Loaded.Storage.Local == nil {
		return errors.New("local: config is not present")
	}

	directory := filepath.Join(config.Loaded.Storage.Local.Directory, index)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("local: failed to create directory: %w", err)
	}

	logger.Info().
		Str("index", index).
		Str("directory", directory).
		Msg("storing dump in local storage")

	filename := time.Now().Format("2006-01-02T15:04:05")
	if config.Loaded.Compress != nil {
		filename = fmt.Sprintf("%s.%s", filename, config.Loaded.Compress.Algorithm)
	}
	path := filepath.Join(directory, filename)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("local: failed to create file: %w", err)
	}

	bytesWritten, err := io.Copy(file, reader)
	if err != nil {
		file.Close()
		return fmt.Errorf("local: failed to write dump: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("local: failed to close dump file: %w", err)
	}

	logger.Info().
		Str("file", path).
		Str("index", index).
		Str("size", fmt.Sprintf("%d bytes", bytesWritten)).
		Msg("dump stored in local storage")

	if err := CleanupRetention(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to clean up old local dumps during retention policy enforcement")
	}

	return nil
}

// DumpInfo describes one stored dump file.
type DumpInfo struct {
	Index        string
	Name         string
	Path         string
	LastModified time.Time
	Size         int64
}

// isDumpName reports whether a file name starts with a dump timestamp,
// the 2006-01-02T15:04:05 layout with an optional compression
// extension.
func isDumpName(name string) bool {
	return len(name) >= 19 && name[4] == '-' && name[7] == '-' && name[10] == 'T' && name[13] == ':' && name[16] == ':'
}

// ListDumps lists every dump in the local directory, newest first. Each
// index owns one subdirectory.
func ListDumps() ([]DumpInfo, error) {
	root := config.Loaded.Storage.Local.Directory

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("local: failed to read directory: %w", err)
	}

	var dumps []DumpInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		index := entry.Name()
		files, err := os.ReadDir(filepath.Join(root, index))
		if err != nil {
			return nil, fmt.Errorf("local: failed to read index directory: %w", err)
		}

		for _, file := range files {
			if file.IsDir() || !isDumpName(file.Name()) {
				continue
			}

			info, err := file.Info()
			if err != nil {
				continue // skip files we cannot stat
			}

			dumps = append(dumps, DumpInfo{
				Index:        index,
				Name:         file.Name(),
				Path:         filepath.Join(root, index, file.Name()),
				LastModified: info.ModTime(),
				Size:         info.Size(),
			})
		}
	}

	sort.Slice(dumps, func(i, j int) bool {
		return dumps[i].LastModified.After(dumps[j].LastModified)
	})

	return dumps, nil
}

// CleanupRetention removes old dumps per the retention policy. The age
// policy applies to every dump; the count policy keeps the newest N
// dumps of each index.
func CleanupRetention(_ context.Context) error {
	logger := log.Logger.With().Str("caller", "local_retention_cleanup").Logger()

	if config.Loaded.Storage == nil || config.Loaded.Storage.Local == nil {
		return nil
	}

	if !config.Loaded.Storage.Local.IsRetentionConfigured() {
		logger.Debug().Msg("no local retention policy configured, skipping cleanup")
		return nil
	}

	effectiveRetentionDays, err := config.Loaded.Storage.Local.GetEffectiveRetentionDays()
	if err != nil {
		return fmt.Errorf("local: failed to parse retention period: %w", err)
	}

	retentionCount := config.Loaded.Storage.Local.RetentionCount

	logEvent := logger.Info().Str("directory", config.Loaded.Storage.Local.Directory)
	if effectiveRetentionDays > 0 {
		logEvent = logEvent.Int("retention_days", effectiveRetentionDays)
	}
	if retentionCount != nil {
		logEvent = logEvent.Int("retention_count", *retentionCount)
	}
	logEvent.Msg("starting local retention cleanup")

	dumps, err := ListDumps()
	if err != nil {
		return err
	}

	var toDelete []string

	if effectiveRetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -effectiveRetentionDays)
		for _, dump := range dumps {
			if dump.LastModified.Before(cutoff) {
				toDelete = append(toDelete, dump.Path)
			}
		}
	}

	if retentionCount != nil {
		byIndex := make(map[string][]DumpInfo)
		for _, dump := range dumps {
			byIndex[dump.Index] = append(byIndex[dump.Index], dump)
		}

		for _, group := range byIndex {
			for i := *retentionCount; i < len(group); i++ {
				if !slices.Contains(toDelete, group[i].Path) {
					toDelete = append(toDelete, group[i].Path)
				}
			}
		}
	}

	for _, path := range toDelete {
		if err := os.Remove(path); err != nil {
			logger.Error().Err(err).
				Str("path", path).
				Msg("failed to delete local dump during retention cleanup")
		} else {
			logger.Info().
				Str("path", path).
				Msg("deleted old local dump")
		}
	}

	if len(toDelete) > 0 {
		logger.Info().
			Int("deleted_count", len(toDelete)).
			Str("directory", config.Loaded.Storage.Local.Directory).
			Msg("local retention cleanup completed")
	} else {
		logger.Info().
			Str("directory", config.Loaded.Storage.Local.Directory).
			Msg("local retention cleanup completed - no dumps to delete")
	}

	return nil
}

// OpenDump opens a stored dump file for reading.
func OpenDump(path string) (io.ReadCloser, error) {
	logger := log.Logger.With().Str("caller", "local_open_dump").Logger()

	if config.Loaded.Storage == nil || config.Loaded.Storage.Local == nil {
		return nil, errors.New("local: config is not present")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("local: failed to stat dump file: %w", err)
	}
	if info.IsDir() {
		return nil, errors.New("local: dump path is a directory, not a file")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("local: failed to open dump file: %w", err)
	}

	logger.Info().
		Str("path", path).
		Str("size", fmt.Sprintf("%d bytes", info.Size())).
		Msg("opened local dump file")

	return file, nil
}
