package config

import (
	"fmt"

	"github.com/klauspost/compress/gzip"
)

const (
	AlgorithmZstd = "zstd"
	AlgorithmGzip = "gzip"
)

type CompressConfig struct {
	Algorithm     string `hcl:"algorithm"`
	CompressLevel *int   `hcl:"compress_level"`
}

// Validate checks the algorithm and fills in its default level when none
// was configured.
func (c *CompressConfig) Validate() error {
	var defaultLevel int

	switch c.Algorithm {
	case AlgorithmZstd:
		defaultLevel = 3
	case AlgorithmGzip:
		defaultLevel = gzip.DefaultCompression
	default:
		return fmt.Errorf("compress.algorithm: unsupported algorithm %q", c.Algorithm)
	}

	if c.CompressLevel == nil {
		c.CompressLevel = &defaultLevel
	}

	return nil
}
