package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/zombodb/zdbkit/internal/config"
	"github.com/zombodb/zdbkit/internal/elastic"
	"github.com/zombodb/zdbkit/internal/storage/local"
	"github.com/zombodb/zdbkit/internal/storage/s3"
)

// Dump exports every document of an index and ships the stream to the
// configured storage backends. When both S3 and local storage are set
// the stream is buffered once and replayed so the index is only
// scrolled a single time.
func Dump(ctx context.Context, index string) error {
	logger := log.Logger.With().Str("caller", "dump").Str("index", index).Logger()

	s3Configured := config.Loaded.Storage != nil && config.Loaded.Storage.S3 != nil
	localConfigured := config.Loaded.Storage != nil && config.Loaded.Storage.Local != nil
	if !s3Configured && !localConfigured {
		return errors.New("dump: no storage backend is configured")
	}

	client := elastic.New(config.Loaded.Elasticsearch)

	export := client.Export(index)
	if err := export.Start(ctx); err != nil {
		return err
	}

	var stream io.Reader = export
	if config.Loaded.Compress != nil {
		compressed, err := Compress(stream)
		if err != nil {
			export.Abort(err)
			return fmt.Errorf("dump: failed to compress export: %w", err)
		}
		stream = compressed
	}

	var storeErr error
	switch {
	case s3Configured && localConfigured:
		// both backends want the stream, buffer it once and replay
		buffer := &bytes.Buffer{}
		if _, err := buffer.ReadFrom(stream); err != nil {
			export.Abort(err)
			return fmt.Errorf("dump: failed to buffer export: %w", err)
		}

		var errs []error
		if err := s3.Store(ctx, index, bytes.NewReader(buffer.Bytes())); err != nil {
			logger.Error().Err(err).Msg("failed to store dump to s3")
			errs = append(errs, err)
		}
		if err := local.Store(ctx, index, bytes.NewReader(buffer.Bytes())); err != nil {
			logger.Error().Err(err).Msg("failed to store dump to local storage")
			errs = append(errs, err)
		}
		storeErr = errors.Join(errs...)
	case s3Configured:
		storeErr = s3.Store(ctx, index, stream)
	default:
		storeErr = local.Store(ctx, index, stream)
	}

	if storeErr != nil {
		export.Abort(storeErr)
		return storeErr
	}

	if err := export.Wait(); err != nil {
		return err
	}

	logger.Info().Int64("docs", export.Docs()).Msg("dump completed")
	return nil
}
