package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zombodb/zdbkit/internal/config"
)

// Error is a failed Elasticsearch response: a non-2xx status, or a _bulk
// response that reported item errors.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("elastic: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to a single Elasticsearch cluster.
type Client struct {
	http *resty.Client
	cfg  *config.ElasticsearchConfig
}

func New(cfg *config.ElasticsearchConfig) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.URL, "/")).
		SetTimeout(5 * time.Minute).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.Username != nil {
		password := ""
		if cfg.Password != nil {
			password = *cfg.Password
		}
		client.SetBasicAuth(*cfg.Username, password)
	}

	if config.Loaded != nil && config.Loaded.IsVerbose() {
		client.SetDebug(true)
	}

	return &Client{http: client, cfg: cfg}
}

// URL is the cluster base URL without a trailing slash.
func (c *Client) URL() string {
	return c.http.BaseURL
}

// refreshSetting maps the configured refresh mode to the index-level
// `refresh_interval` setting. The immediate and async modes disable the
// cluster's own refresh cycle since the client refreshes explicitly; any
// other value is an Elasticsearch interval and passes through.
func (c *Client) refreshSetting() string {
	switch interval := c.cfg.GetRefreshInterval(); interval {
	case config.RefreshImmediate, config.RefreshAsync:
		return "-1"
	default:
		return interval
	}
}

// CreateIndex creates an index with the configured shard, replica and
// refresh settings plus the given mappings.
func (c *Client) CreateIndex(ctx context.Context, index string, mapping map[string]any) error {
	body := map[string]any{
		"settings": map[string]any{
			"index": map[string]any{
				"number_of_shards":   c.cfg.GetShards(),
				"number_of_replicas": c.cfg.GetReplicas(),
				"refresh_interval":   c.refreshSetting(),
			},
		},
		"mappings": mapping,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Put("/" + index)
	if err != nil {
		return fmt.Errorf("elastic: failed to create index %s: %w", index, err)
	}
	if resp.IsError() {
		return &Error{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	return nil
}

// DeleteIndex removes an index. A missing index is not an error.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete("/" + index)
	if err != nil {
		return fmt.Errorf("elastic: failed to delete index %s: %w", index, err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return &Error{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	return nil
}

// IndexExists reports whether the index is present on the cluster.
func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Head("/" + index)
	if err != nil {
		return false, fmt.Errorf("elastic: failed to check index %s: %w", index, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &Error{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
}

// RefreshIndex makes everything indexed so far visible to searches.
func (c *Client) RefreshIndex(ctx context.Context, index string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Post("/" + index + "/_refresh")
	if err != nil {
		return fmt.Errorf("elastic: failed to refresh index %s: %w", index, err)
	}
	if resp.IsError() {
		return &Error{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	return nil
}

// bulkFilterPath trims _bulk responses down to the error fields; a
// response of {"errors":false} is all a successful request carries.
const bulkFilterPath = "errors,items.index.error.caused_by.reason"

type bulkResponse struct {
	Errors bool `json:"errors"`
}

// sendBulk posts one NDJSON body to the index's _bulk endpoint.
// withRefresh asks Elasticsearch to refresh the index before responding.
// Elasticsearch answers _bulk with 200 even when individual actions
// failed, so the response body is parsed for the errors flag.
func (c *Client) sendBulk(ctx context.Context, index string, body []byte, withRefresh bool) error {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-ndjson").
		SetQueryParam("filter_path", bulkFilterPath).
		SetBody(body)
	if withRefresh {
		req.SetQueryParam("refresh", "true")
	}

	resp, err := req.Post("/" + index + "/_bulk")
	if err != nil {
		return fmt.Errorf("elastic: bulk request failed: %w", err)
	}
	if resp.IsError() {
		return &Error{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var parsed bulkResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return &Error{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if parsed.Errors {
		return &Error{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	return nil
}
