// Package postgres is a store.Index backed by PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dgallion1/statchunk/internal/chunker"
	"github.com/dgallion1/statchunk/internal/store"
)

// Index is a store.Index over a pgx connection pool.
type Index struct {
	Pool *pgxpool.Pool
	log  *slog.Logger
}

var _ store.Index = (*Index)(nil)

// Open connects to connStr, pings the server and creates the tables.
func Open(ctx context.Context, connStr string, log *slog.Logger) (*Index, error) {
	if log == nil {
		log = slog.Default()
	}
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	x := &Index{Pool: pool, log: log.With("component", "postgres")}
	if err := x.Initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return x, nil
}

// Initialize sets up the tables and indices.
func (x *Index) Initialize(ctx context.Context) error {
	_, err := x.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS statute_documents (
			collection   TEXT NOT NULL,
			doc_id       TEXT NOT NULL,
			title        TEXT NOT NULL DEFAULT '',
			source       TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL DEFAULT '',
			chunk_count  INTEGER NOT NULL DEFAULT 0,
			indexed_at   TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (collection, doc_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create statute_documents table: %w", err)
	}

	_, err = x.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS statute_chunks (
			collection TEXT NOT NULL,
			doc_id     TEXT NOT NULL,
			chunk_id   TEXT NOT NULL,
			position   INTEGER NOT NULL,
			document   TEXT NOT NULL,
			metadata   JSONB NOT NULL,
			PRIMARY KEY (collection, doc_id, chunk_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create statute_chunks table: %w", err)
	}

	_, err = x.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS statute_documents_hash_idx ON statute_documents (collection, content_hash);
		CREATE INDEX IF NOT EXISTS statute_chunks_section_idx ON statute_chunks ((metadata->>'section_number'));
	`)
	if err != nil {
		return fmt.Errorf("failed to create indices: %w", err)
	}
	return nil
}

func (x *Index) Close() error {
	x.Pool.Close()
	return nil
}

// UpsertChunks sends all records in one pgx batch.
func (x *Index) UpsertChunks(ctx context.Context, collection, docID string, records []chunker.Record) error {
	if len(records) == 0 {
		return ctx.Err()
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO statute_chunks (collection, doc_id, chunk_id, position, document, metadata)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (collection, doc_id, chunk_id)
			DO UPDATE SET position = EXCLUDED.position, document = EXCLUDED.document, metadata = EXCLUDED.metadata
		`, collection, docID, r.ID, r.Position, r.Document, r.Metadata)
	}
	if err := x.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return classify(fmt.Errorf("upsert chunks: %w", err))
	}
	return nil
}

func (x *Index) Chunks(ctx context.Context, collection, docID string) ([]chunker.Record, error) {
	rows, err := x.Pool.Query(ctx, `
		SELECT chunk_id, position, document, metadata
		FROM statute_chunks
		WHERE collection = $1 AND doc_id = $2
		ORDER BY position, chunk_id
	`, collection, docID)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to query chunks: %w", err))
	}
	defer rows.Close()

	var out []chunker.Record
	for rows.Next() {
		var r chunker.Record
		if err := rows.Scan(&r.ID, &r.Position, &r.Document, &r.Metadata); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (x *Index) PutDocument(ctx context.Context, doc store.Document) error {
	_, err := x.Pool.Exec(ctx, `
		INSERT INTO statute_documents (collection, doc_id, title, source, content_hash, chunk_count, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (collection, doc_id)
		DO UPDATE SET title = EXCLUDED.title, source = EXCLUDED.source, content_hash = EXCLUDED.content_hash,
			chunk_count = EXCLUDED.chunk_count, indexed_at = EXCLUDED.indexed_at
	`, doc.Collection, doc.DocID, doc.Title, doc.Source, doc.ContentHash, doc.ChunkCount, doc.IndexedAt)
	if err != nil {
		return classify(fmt.Errorf("put document: %w", err))
	}
	return nil
}

func (x *Index) FindByHash(ctx context.Context, collection, hash string) (string, bool, error) {
	var docID string
	err := x.Pool.QueryRow(ctx, `
		SELECT doc_id FROM statute_documents
		WHERE collection = $1 AND content_hash = $2
		ORDER BY indexed_at
		LIMIT 1
	`, collection, hash).Scan(&docID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify(fmt.Errorf("find by hash: %w", err))
	}
	return docID, true, nil
}

func (x *Index) ListDocuments(ctx context.Context, collection string) ([]store.Document, error) {
	rows, err := x.Pool.Query(ctx, `
		SELECT collection, doc_id, title, source, content_hash, chunk_count, indexed_at
		FROM statute_documents
		WHERE collection = $1
		ORDER BY doc_id
	`, collection)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list documents: %w", err))
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Document, error) {
		var d store.Document
		err := row.Scan(&d.Collection, &d.DocID, &d.Title, &d.Source, &d.ContentHash, &d.ChunkCount, &d.IndexedAt)
		return d, err
	})
}

// DeleteDocument removes chunks and the document row in one transaction.
func (x *Index) DeleteDocument(ctx context.Context, collection, docID string) (int, error) {
	var chunks, docs int64
	err := pgx.BeginFunc(ctx, x.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM statute_chunks WHERE collection = $1 AND doc_id = $2`, collection, docID)
		if err != nil {
			return err
		}
		chunks = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM statute_documents WHERE collection = $1 AND doc_id = $2`, collection, docID)
		if err != nil {
			return err
		}
		docs = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, classify(fmt.Errorf("delete document: %w", err))
	}
	if chunks == 0 && docs == 0 {
		return 0, fmt.Errorf("%s/%s: %w", collection, docID, store.ErrNotFound)
	}
	x.log.Debug("deleted document", "collection", collection, "doc_id", docID, "chunks", chunks)
	return int(chunks), nil
}

// classify marks errors that pgconn says are safe to retry.
func classify(err error) error {
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return store.Retryable(err)
	}
	return err
}
