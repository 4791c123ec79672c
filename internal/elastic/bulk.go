package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zombodb/zdbkit/internal/config"
)

// ErrTerminated is returned by enqueue operations and Finish after the
// pipeline has been aborted with Terminate.
var ErrTerminated = errors.New("elastic: bulk request terminated")

// maxBulkActions caps the number of actions in a single _bulk request.
const maxBulkActions = 10_000

// lingerTimeout is how long a worker waits for one more command before
// shipping a non-full request.
const lingerTimeout = 333 * time.Millisecond

// TupleMeta is the heap tuple visibility metadata stored on every
// indexed document under the zdb_* system fields.
type TupleMeta struct {
	CTID uint64
	CMin uint32
	CMax uint32
	XMin uint64
	XMax uint64
}

type commandKind int

const (
	commandIndex commandKind = iota
	commandIndexRaw
	commandUpdate
	commandDelete
)

type bulkCommand struct {
	kind commandKind
	id   string
	meta TupleMeta
	doc  map[string]any
	raw  json.RawMessage
}

type bulkActionMeta struct {
	ID              any `json:"_id"`
	RetryOnConflict int `json:"retry_on_conflict,omitempty"`
}

type bulkAction struct {
	Index  *bulkActionMeta `json:"index,omitempty"`
	Update *bulkActionMeta `json:"update,omitempty"`
	Delete *bulkActionMeta `json:"delete,omitempty"`
}

// BulkRequest batches index, update and delete commands into _bulk
// requests shipped by a pool of worker goroutines. The first failed
// request cancels the pipeline; the error surfaces from every later
// enqueue and from Finish.
type BulkRequest struct {
	client *Client
	index  string
	logger zerolog.Logger

	batchSize    int
	concurrency  int
	allowRefresh bool
	refreshMode  string

	commands chan bulkCommand
	group    *errgroup.Group
	ctx      context.Context
	cancel   context.CancelCauseFunc

	// finishCtx is canceled by Terminate and by the caller's context,
	// but not by worker completion; the final refresh runs on it.
	finishCtx context.Context

	queued      atomic.Int64
	shipped     atomic.Int64
	requests    atomic.Int64
	refreshSent atomic.Bool
}

// NewBulkRequest sets up a pipeline against the index and starts its
// workers. Queue size, concurrency and the per-request byte cap come
// from the bulk config block. When allowRefresh is false, Finish always
// issues an explicit refresh regardless of how much work was shipped.
func (c *Client) NewBulkRequest(ctx context.Context, index string, allowRefresh bool) *BulkRequest {
	cancelCtx, cancel := context.WithCancelCause(ctx)
	group, groupCtx := errgroup.WithContext(cancelCtx)

	b := &BulkRequest{
		client:       c,
		index:        index,
		logger:       log.Logger.With().Str("caller", "bulk").Str("index", index).Logger(),
		batchSize:    c.cfg.GetBulkBatchSize(),
		concurrency:  c.cfg.GetBulkConcurrency(),
		allowRefresh: allowRefresh,
		refreshMode:  c.cfg.GetRefreshInterval(),
		commands:     make(chan bulkCommand, c.cfg.GetBulkQueueSize()),
		group:        group,
		ctx:          groupCtx,
		cancel:       cancel,
		finishCtx:    cancelCtx,
	}

	for i := 0; i < b.concurrency; i++ {
		group.Go(b.worker)
	}

	return b
}

// Index queues a full document. The document id is the encoded ctid and
// the zdb_* system fields are injected into doc, which is modified in
// place.
func (b *BulkRequest) Index(meta TupleMeta, doc map[string]any) error {
	return b.queue(bulkCommand{kind: commandIndex, meta: meta, doc: doc})
}

// IndexRaw queues a document whose source is already-encoded JSON on a
// single line. Restore uses it to replay exported documents byte for
// byte.
func (b *BulkRequest) IndexRaw(id string, source json.RawMessage) error {
	return b.queue(bulkCommand{kind: commandIndexRaw, id: id, raw: source})
}

// Update queues a partial document update. Elasticsearch retries the
// update once on version conflict.
func (b *BulkRequest) Update(id string, doc map[string]any) error {
	return b.queue(bulkCommand{kind: commandUpdate, id: id, doc: doc})
}

// Delete queues a document deletion.
func (b *BulkRequest) Delete(id string) error {
	return b.queue(bulkCommand{kind: commandDelete, id: id})
}

func (b *BulkRequest) queue(cmd bulkCommand) error {
	if b.ctx.Err() != nil {
		return context.Cause(b.ctx)
	}

	select {
	case b.commands <- cmd:
	case <-b.ctx.Done():
		return context.Cause(b.ctx)
	}

	if total := b.queued.Add(1); total%10_000 == 0 {
		b.logger.Debug().
			Int64("total", total).
			Int("backlog", len(b.commands)).
			Msg("bulk progress")
	}

	return nil
}

// Terminate aborts the pipeline: workers stop picking up commands and
// whatever is still queued is dropped.
func (b *BulkRequest) Terminate() {
	b.cancel(ErrTerminated)
}

// Finish closes the queue, waits for the workers to drain it, and
// refreshes the index according to the configured refresh mode. It
// returns the number of documents shipped in successful requests.
// Nothing may be enqueued after Finish has been called.
//
// The explicit refresh is skipped when the whole run fit into a single
// request that already carried refresh=true, unless the pipeline was
// created with allowRefresh=false.
func (b *BulkRequest) Finish() (int64, error) {
	defer b.cancel(nil)

	close(b.commands)

	if err := b.group.Wait(); err != nil {
		return b.shipped.Load(), err
	}
	if b.finishCtx.Err() != nil {
		return b.shipped.Load(), context.Cause(b.finishCtx)
	}

	shipped := b.shipped.Load()
	requests := b.requests.Load()
	forceRefresh := !b.allowRefresh

	if !forceRefresh {
		if requests == 0 {
			return shipped, nil
		}
		if requests == 1 && b.refreshSent.Load() {
			// the only request already refreshed the index
			return shipped, nil
		}
	}

	switch b.refreshMode {
	case config.RefreshImmediate:
		if err := b.client.RefreshIndex(b.finishCtx, b.index); err != nil {
			return shipped, err
		}
	case config.RefreshAsync:
		go func() {
			if err := b.client.RefreshIndex(context.Background(), b.index); err != nil {
				b.logger.Warn().Err(err).Msg("async refresh failed")
			}
		}()
	default:
		// the cluster refreshes on its own interval
	}

	return shipped, nil
}

func (b *BulkRequest) worker() error {
	for {
		if b.ctx.Err() != nil {
			return context.Cause(b.ctx)
		}

		var first bulkCommand
		var ok bool
		select {
		case first, ok = <-b.commands:
			if !ok {
				return nil
			}
		case <-b.ctx.Done():
			return context.Cause(b.ctx)
		}

		body, count, err := b.buildBody(first)
		if err != nil {
			return err
		}
		if b.ctx.Err() != nil {
			return context.Cause(b.ctx)
		}

		// A single worker that has not completed a request yet can ask
		// Elasticsearch to refresh as part of the request itself,
		// saving the explicit refresh after Finish.
		withRefresh := b.allowRefresh &&
			b.refreshMode == config.RefreshImmediate &&
			b.concurrency == 1 &&
			b.requests.Load() == 0

		if err := b.client.sendBulk(b.ctx, b.index, body, withRefresh); err != nil {
			return err
		}

		b.requests.Add(1)
		b.shipped.Add(int64(count))
		if withRefresh {
			b.refreshSent.Store(true)
		}
	}
}

// buildBody serializes the first command and keeps draining the queue
// into the request body until the action or byte cap is reached, the
// queue stays empty past the linger timeout, or the queue is closed.
func (b *BulkRequest) buildBody(first bulkCommand) ([]byte, int, error) {
	var buf bytes.Buffer

	if err := serializeCommand(&buf, first); err != nil {
		return nil, 0, err
	}
	count := 1

	for count < maxBulkActions && buf.Len() < b.batchSize {
		select {
		case cmd, ok := <-b.commands:
			if !ok {
				return buf.Bytes(), count, nil
			}
			if err := serializeCommand(&buf, cmd); err != nil {
				return nil, count, err
			}
			count++
		case <-time.After(lingerTimeout):
			return buf.Bytes(), count, nil
		case <-b.ctx.Done():
			return buf.Bytes(), count, nil
		}
	}

	return buf.Bytes(), count, nil
}

func serializeCommand(buf *bytes.Buffer, cmd bulkCommand) error {
	enc := json.NewEncoder(buf)

	switch cmd.kind {
	case commandIndex:
		if err := enc.Encode(bulkAction{Index: &bulkActionMeta{ID: cmd.meta.CTID}}); err != nil {
			return err
		}

		cmd.doc["zdb_ctid"] = cmd.meta.CTID
		cmd.doc["zdb_cmin"] = cmd.meta.CMin
		cmd.doc["zdb_cmax"] = cmd.meta.CMax
		cmd.doc["zdb_xmin"] = cmd.meta.XMin
		cmd.doc["zdb_xmax"] = cmd.meta.XMax

		return enc.Encode(cmd.doc)
	case commandIndexRaw:
		if err := enc.Encode(bulkAction{Index: &bulkActionMeta{ID: cmd.id}}); err != nil {
			return err
		}

		buf.Write(bytes.TrimSpace(cmd.raw))
		buf.WriteByte('\n')

		return nil
	case commandUpdate:
		if err := enc.Encode(bulkAction{Update: &bulkActionMeta{ID: cmd.id, RetryOnConflict: 1}}); err != nil {
			return err
		}

		return enc.Encode(map[string]any{"doc": cmd.doc})
	case commandDelete:
		return enc.Encode(bulkAction{Delete: &bulkActionMeta{ID: cmd.id}})
	default:
		return fmt.Errorf("elastic: unknown bulk command kind %d", cmd.kind)
	}
}
