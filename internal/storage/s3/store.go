package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/zombodb/zdbkit/internal/config"
)

// CreateClient builds an S3 client from the storage config.
func CreateClient() (*minio.Client, error) {
	if config.Loaded.Storage == nil || config.Loaded.Storage.S3 == nil {
		return nil, errors.New("s3: config is not present")
	}

	client, err := minio.New(config.Loaded.Storage.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.Loaded.Storage.S3.AccessKey, config.Loaded.Storage.S3.SecretKey, ""),
		Region: config.Loaded.Storage.S3.GetRegion(),
		Secure: true,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: failed to create client: %w", err)
	}

	if config.Loaded.IsVerbose() {
		client.TraceOn(log.Logger)
	}

	return client, nil
}

// Store uploads an index dump to <prefix>/<index>/<timestamp>, with the
// compression extension when compression is configured.
func Store(ctx context.Context, index string, reader io.Reader) error {
	logger := log.Logger.With().Str("caller", "s3_store").Logger()

	client, err := CreateClient()
	if err != nil {
		return err
	}

	logger.Info().
		Str("endpoint", config.Loaded.Storage.S3.Endpoint).
		Str("bucket", config.Loaded.Storage.S3.Bucket).
		Str("index", index).
		Msg("starting dump upload to S3")

	objectName := fmt.Sprintf("%s/%s", index, time.Now().Format("2006-01-02T15:04:05"))

	if config.Loaded.Storage.S3.Prefix != nil {
		objectName = fmt.Sprintf("%s/%s", *config.Loaded.Storage.S3.Prefix, objectName)
	}

	if config.Loaded.Compress != nil {
		objectName = fmt.Sprintf("%s.%s", objectName, config.Loaded.Compress.Algorithm)
	}

	info, err := client.PutObject(ctx, config.Loaded.Storage.S3.Bucket, objectName, reader, -1, minio.PutObjectOptions{
		SendContentMd5: true,
	})
	if err != nil {
		return fmt.Errorf("s3: failed to store dump: %w", err)
	}

	logger.Info().
		Str("key", info.Key).
		Str("bucket", config.Loaded.Storage.S3.Bucket).
		Str("size", fmt.Sprintf("%d bytes", info.Size)).
		Msg("dump uploaded to S3")

	if err := CleanupRetention(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to clean up old S3 dumps during retention policy enforcement")
	}

	return nil
}

// DumpInfo describes one stored dump object.
type DumpInfo struct {
	Index        string
	Name         string
	Key          string
	LastModified time.Time
	Size         int64
}

// isDumpName reports whether an object's base name starts with a dump
// timestamp, the 2006-01-02T15:04:05 layout with an optional
// compression extension.
func isDumpName(name string) bool {
	return len(name) >= 19 && name[4] == '-' && name[7] == '-' && name[10] == 'T' && name[13] == ':' && name[16] == ':'
}

// ListDumps lists every dump in the bucket, newest first. Dumps live
// one key segment per index: <prefix>/<index>/<timestamp>.
func ListDumps(ctx context.Context, client *minio.Client) ([]DumpInfo, error) {
	var dumps []DumpInfo
	prefix := ""

	if config.Loaded.Storage.S3.Prefix != nil {
		prefix = *config.Loaded.Storage.S3.Prefix
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
	}

	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}

	for object := range client.ListObjects(ctx, config.Loaded.Storage.S3.Bucket, opts) {
		if object.Err != nil {
			return nil, fmt.Errorf("s3: failed to list objects: %w", object.Err)
		}

		if strings.HasSuffix(object.Key, "/") {
			continue
		}

		name := path.Base(object.Key)
		if !isDumpName(name) {
			continue
		}

		dumps = append(dumps, DumpInfo{
			Index:        path.Base(path.Dir(object.Key)),
			Name:         name,
			Key:          object.Key,
			LastModified: object.LastModified,
			Size:         object.Size,
		})
	}

	sort.Slice(dumps, func(i, j int) bool {
		return dumps[i].LastModified.After(dumps[j].LastModified)
	})

	return dumps, nil
}

// CleanupRetention removes old dumps per the retention policy. The age
// policy applies to every dump; the count policy keeps the newest N
// dumps of each index.
func CleanupRetention(ctx context.Context) error {
	logger := log.Logger.With().Str("caller", "s3_retention_cleanup").Logger()

	if config.Loaded.Storage == nil || config.Loaded.Storage.S3 == nil {
		return nil
	}

	if !config.Loaded.Storage.S3.IsRetentionConfigured() {
		logger.Debug().Msg("no S3 retention policy configured, skipping cleanup")
		return nil
	}

	effectiveRetentionDays, err := config.Loaded.Storage.S3.GetEffectiveRetentionDays()
	if err != nil {
		return fmt.Errorf("s3: failed to parse retention period: %w", err)
	}

	retentionCount := config.Loaded.Storage.S3.RetentionCount

	logEvent := logger.Info().Str("bucket", config.Loaded.Storage.S3.Bucket)
	if effectiveRetentionDays > 0 {
		logEvent = logEvent.Int("retention_days", effectiveRetentionDays)
	}
	if retentionCount != nil {
		logEvent = logEvent.Int("retention_count", *retentionCount)
	}
	logEvent.Msg("starting S3 retention cleanup")

	client, err := CreateClient()
	if err != nil {
		return err
	}

	dumps, err := ListDumps(ctx, client)
	if err != nil {
		return err
	}

	var toDelete []string

	if effectiveRetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -effectiveRetentionDays)
		for _, dump := range dumps {
			if dump.LastModified.Before(cutoff) {
				toDelete = append(toDelete, dump.Key)
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
				if !slices.Contains(toDelete, group[i].Key) {
					toDelete = append(toDelete, group[i].Key)
				}
			}
		}
	}

	for _, key := range toDelete {
		if err := client.RemoveObject(ctx, config.Loaded.Storage.S3.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
			logger.Error().Err(err).
				Str("key", key).
				Str("bucket", config.Loaded.Storage.S3.Bucket).
				Msg("failed to delete S3 dump during retention cleanup")
		} else {
			logger.Info().
				Str("key", key).
				Str("bucket", config.Loaded.Storage.S3.Bucket).
				Msg("deleted old S3 dump")
		}
	}

	if len(toDelete) > 0 {
		logger.Info().
			Int("deleted_count", len(toDelete)).
			Str("bucket", config.Loaded.Storage.S3.Bucket).
			Msg("S3 retention cleanup completed")
	} else {
		logger.Info().
			Str("bucket", config.Loaded.Storage.S3.Bucket).
			Msg("S3 retention cleanup completed - no dumps to delete")
	}

	return nil
}

// DownloadDump streams a dump object from S3.
func DownloadDump(ctx context.Context, key string) (io.ReadCloser, error) {
	logger := log.Logger.With().Str("caller", "s3_download").Logger()

	client, err := CreateClient()
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("key", key).
		Str("bucket", config.Loaded.Storage.S3.Bucket).
		Msg("downloading dump from S3")

	object, err := client.GetObject(ctx, config.Loaded.Storage.S3.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3: failed to get dump object: %w", err)
	}

	stat, err := object.Stat()
	if err != nil {
		object.Close()
		return nil, fmt.Errorf("s3: failed to stat dump object: %w", err)
	}

	logger.Info().
		Str("key", key).
		Str("size", fmt.Sprintf("%d bytes", stat.Size)).
		Msg("started dump download from S3")

	return object, nil
}
