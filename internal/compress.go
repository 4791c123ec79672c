package internal

import (
	"errors"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/zombodb/zdbkit/internal/config"
)

// Compress wraps the input stream with the configured compression
// algorithm. The returned reader fails with the compression error if
// the input cannot be drained.
func Compress(input io.Reader) (io.Reader, error) {
	r, w := io.Pipe()

	switch config.Loaded.Compress.Algorithm {
	case config.AlgorithmZstd:
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(*config.Loaded.Compress.CompressLevel)))
		if err != nil {
			return nil, err
		}

		go func() {
			if _, err := encoder.ReadFrom(input); err != nil {
				encoder.Close()
				w.CloseWithError(err)
				return
			}
			w.CloseWithError(encoder.Close())
		}()

		return r, nil
	case config.AlgorithmGzip:
		writer, err := gzip.NewWriterLevel(w, *config.Loaded.Compress.CompressLevel)
		if err != nil {
			return nil, err
		}

		go func() {
			if _, err := io.Copy(writer, input); err != nil {
				writer.Close()
				w.CloseWithError(err)
				return
			}
			w.CloseWithError(writer.Close())
		}()

		return r, nil
	default:
		return nil, errors.New("unsupported compress algorithm")
	}
}

// Decompress undoes Compress based on the artifact name suffix. Names
// without a compression suffix pass through untouched.
func Decompress(input io.Reader, filename string) (io.Reader, error) {
	switch {
	case strings.HasSuffix(filename, "."+config.AlgorithmZstd):
		decoder, err := zstd.NewReader(input)
		if err != nil {
			return nil, err
		}
		return decoder, nil
	case strings.HasSuffix(filename, "."+config.AlgorithmGzip):
		reader, err := gzip.NewReader(input)
		if err != nil {
			return nil, err
		}
		return reader, nil
	default:
		return input, nil
	}
}
