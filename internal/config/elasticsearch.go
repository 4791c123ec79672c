package config

import (
	"fmt"
	"runtime"
)

// Refresh modes. Anything else is treated as an Elasticsearch refresh
// interval (e.g. "5s") and left to the cluster.
const (
	RefreshImmediate = "immediate"
	RefreshAsync     = "async"
)

type ElasticsearchConfig struct {
	URL string `hcl:"url"`

	Username *string `hcl:"username"`
	Password *string `hcl:"password"`

	Shards          *int    `hcl:"shards"`
	Replicas        *int    `hcl:"replicas"`
	RefreshInterval *string `hcl:"refresh_interval"`

	Bulk *BulkConfig `hcl:"bulk,block"`
}

// BulkConfig tunes the _bulk pipeline.
type BulkConfig struct {
	Concurrency *int `hcl:"concurrency"`
	BatchSize   *int `hcl:"batch_size"`
	QueueSize   *int `hcl:"queue_size"`
}

func (c ElasticsearchConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("elasticsearch.url: must not be empty")
	}

	if c.Bulk != nil {
		if c.Bulk.Concurrency != nil && *c.Bulk.Concurrency < 1 {
			return fmt.Errorf("elasticsearch.bulk.concurrency: must be at least 1")
		}
		if c.Bulk.BatchSize != nil && *c.Bulk.BatchSize < 1 {
			return fmt.Errorf("elasticsearch.bulk.batch_size: must be positive")
		}
		if c.Bulk.QueueSize != nil && *c.Bulk.QueueSize < 1 {
			return fmt.Errorf("elasticsearch.bulk.queue_size: must be positive")
		}
	}

	return nil
}

func (c ElasticsearchConfig) GetShards() int {
	if c.Shards == nil {
		return 5
	}

	return *c.Shards
}

func (c ElasticsearchConfig) GetReplicas() int {
	if c.Replicas == nil {
		return 0
	}

	return *c.Replicas
}

func (c ElasticsearchConfig) GetRefreshInterval() string {
	if c.RefreshInterval == nil {
		return RefreshImmediate
	}

	return *c.RefreshInterval
}

func (c ElasticsearchConfig) GetBulkConcurrency() int {
	if c.Bulk == nil || c.Bulk.Concurrency == nil {
		return runtime.NumCPU()
	}

	return *c.Bulk.Concurrency
}

// GetBulkBatchSize is the byte cap of a single _bulk request body.
func (c ElasticsearchConfig) GetBulkBatchSize() int {
	if c.Bulk == nil || c.Bulk.BatchSize == nil {
		return 8 * 1024 * 1024
	}

	return *c.Bulk.BatchSize
}

func (c ElasticsearchConfig) GetBulkQueueSize() int {
	if c.Bulk == nil || c.Bulk.QueueSize == nil {
		return 10_000
	}

	return *c.Bulk.QueueSize
}
