package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"

	"github.com/zombodb/zdbkit/internal/config"
	"github.com/zombodb/zdbkit/internal/elastic"
)

// Transaction ids stamped on rebuilt documents: a frozen xmin is
// visible to every snapshot, an invalid xmax marks the document as
// never deleted.
const (
	frozenTransactionID  = 2
	invalidTransactionID = 0
)

// EncodeItemPointer packs a heap tuple id into the integer document id
// scheme: block number in the high bits, offset in the low 16.
func EncodeItemPointer(block uint32, offset uint16) uint64 {
	return uint64(block)<<16 | uint64(offset)
}

// tableIdentifier quotes a possibly schema-qualified table name.
func tableIdentifier(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

// IndexNameForTable derives the default index name for a table,
// dropping any schema qualifier.
func IndexNameForTable(table string) string {
	parts := strings.Split(table, ".")
	return "zdb_" + parts[len(parts)-1]
}

// Reindex rebuilds an index from the rows of a table. Any existing
// index of that name is deleted, recreated from the default mapping and
// filled by streaming every row through the bulk pipeline. A failed
// build deletes the half-built index again.
func Reindex(ctx context.Context, table, index string) (int64, error) {
	logger := log.Logger.With().
		Str("caller", "reindex").
		Str("table", table).
		Str("index", index).
		Logger()

	conn, err := pgx.Connect(ctx, config.Loaded.Postgres.DSN())
	if err != nil {
		return 0, fmt.Errorf("reindex: failed to connect to postgres: %w", err)
	}
	defer conn.Close(context.Background())

	client := elastic.New(config.Loaded.Elasticsearch)

	if err := client.DeleteIndex(ctx, index); err != nil {
		return 0, err
	}
	if err := client.CreateIndex(ctx, index, elastic.DefaultMapping()); err != nil {
		return 0, err
	}

	rows, err := streamRows(ctx, conn, client, table, index)
	if err != nil {
		// a half-built index is useless, drop it again
		if cleanupErr := client.DeleteIndex(context.Background(), index); cleanupErr != nil {
			logger.Error().Err(cleanupErr).Msg("failed to delete index after aborted build")
		}
		return 0, err
	}

	logger.Info().Int64("rows", rows).Str("url", client.URL()).Msg("indexed rows")
	return rows, nil
}

func streamRows(ctx context.Context, conn *pgx.Conn, client *elastic.Client, table, index string) (int64, error) {
	bulk := client.NewBulkRequest(ctx, index, true)

	query := fmt.Sprintf(`SELECT t.ctid, row_to_json(t.*) FROM %s AS t`, tableIdentifier(table))
	rows, err := conn.Query(ctx, query)
	if err != nil {
		bulk.Terminate()
		_, _ = bulk.Finish()
		return 0, fmt.Errorf("reindex: failed to query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ctid pgtype.TID
			doc  map[string]any
		)
		if err := rows.Scan(&ctid, &doc); err != nil {
			bulk.Terminate()
			_, _ = bulk.Finish()
			return 0, fmt.Errorf("reindex: failed to scan row: %w", err)
		}

		meta := elastic.TupleMeta{
			CTID: EncodeItemPointer(ctid.BlockNumber, ctid.OffsetNumber),
			CMin: 0,
			CMax: 0,
			XMin: frozenTransactionID,
			XMax: invalidTransactionID,
		}

		if err := bulk.Index(meta, doc); err != nil {
			_, _ = bulk.Finish()
			return 0, err
		}
	}

	if err := rows.Err(); err != nil {
		bulk.Terminate()
		_, _ = bulk.Finish()
		return 0, fmt.Errorf("reindex: failed to read rows: %w", err)
	}

	return bulk.Finish()
}
