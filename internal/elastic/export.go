package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
)

// exportPageSize is how many documents each scroll page fetches.
const exportPageSize = 1000

// scrollKeepAlive is how long Elasticsearch keeps the scroll context
// alive between page fetches.
const scrollKeepAlive = "1m"

// ExportedDoc is one line of an index export.
type ExportedDoc struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

// Export streams every document of an index as NDJSON, one ExportedDoc
// per line. Start begins the scroll in the background, Read consumes
// the stream, and Wait reports how the scroll ended.
type Export struct {
	client *Client
	index  string

	reader *io.PipeReader
	writer *io.PipeWriter
	docs   atomic.Int64
	done   chan struct{}
	err    error
}

// Export prepares a streaming export of every document in the index.
func (c *Client) Export(index string) *Export {
	reader, writer := io.Pipe()

	return &Export{
		client: c,
		index:  index,
		reader: reader,
		writer: writer,
		done:   make(chan struct{}),
	}
}

// Start verifies the index exists and begins scrolling it in the
// background. Errors past this point are delivered through Read and
// Wait.
func (e *Export) Start(ctx context.Context) error {
	exists, err := e.client.IndexExists(ctx, e.index)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("elastic: index %s does not exist", e.index)
	}

	go e.run(ctx)

	return nil
}

func (e *Export) Read(p []byte) (int, error) {
	return e.reader.Read(p)
}

// Wait blocks until the scroll has finished and returns its error.
func (e *Export) Wait() error {
	<-e.done
	return e.err
}

// Docs is the number of documents written to the stream. It is only
// stable after Wait has returned.
func (e *Export) Docs() int64 {
	return e.docs.Load()
}

// Abort stops the export early. The scroll goroutine fails its next
// write and cleans up.
func (e *Export) Abort(err error) {
	e.reader.CloseWithError(err)
}

func (e *Export) run(ctx context.Context) {
	e.err = e.scroll(ctx)
	e.writer.CloseWithError(e.err)
	close(e.done)
}

type scrollResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []ExportedDoc `json:"hits"`
	} `json:"hits"`
}

func (e *Export) scroll(ctx context.Context) error {
	var page scrollResponse

	resp, err := e.client.http.R().
		SetContext(ctx).
		SetQueryParam("scroll", scrollKeepAlive).
		SetBody(map[string]any{
			"size":  exportPageSize,
			"sort":  []string{"_doc"},
			"query": map[string]any{"match_all": map[string]any{}},
		}).
		SetResult(&page).
		Post("/" + e.index + "/_search")
	if err != nil {
		return fmt.Errorf("elastic: failed to start scroll over %s: %w", e.index, err)
	}
	if resp.IsError() {
		return &Error{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	scrollID := page.ScrollID
	defer func() { e.clearScroll(scrollID) }()

	enc := json.NewEncoder(e.writer)
	for len(page.Hits.Hits) > 0 {
		for i := range page.Hits.Hits {
			if err := enc.Encode(&page.Hits.Hits[i]); err != nil {
				return err
			}
			e.docs.Add(1)
		}

		page = scrollResponse{}
		resp, err := e.client.http.R().
			SetContext(ctx).
			SetBody(map[string]any{
				"scroll":    scrollKeepAlive,
				"scroll_id": scrollID,
			}).
			SetResult(&page).
			Post("/_search/scroll")
		if err != nil {
			return fmt.Errorf("elastic: failed to continue scroll over %s: %w", e.index, err)
		}
		if resp.IsError() {
			return &Error{StatusCode: resp.StatusCode(), Body: resp.String()}
		}

		if page.ScrollID != "" {
			scrollID = page.ScrollID
		}
	}

	return nil
}

// clearScroll releases the server-side scroll context. Best effort; the
// context expires on its own after the keep-alive anyway.
func (e *Export) clearScroll(scrollID string) {
	if scrollID == "" {
		return
	}

	_, _ = e.client.http.R().
		SetBody(map[string]any{"scroll_id": []string{scrollID}}).
		Delete("/_search/scroll")
}
