// Package badger is an embedded store.Index backed by BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/dgallion1/statchunk/internal/chunker"
	"github.com/dgallion1/statchunk/internal/store"
)

// Index is a store.Index over a BadgerDB instance.
type Index struct {
	db  *badger.DB
	log *slog.Logger
}

var _ store.Index = (*Index)(nil)

// badgerLogger adapts slog.Logger to the badger.Logger interface.
type badgerLogger struct {
	log *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any) {
	l.log.Error(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Warningf(msg string, items ...any) {
	l.log.Warn(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Infof(msg string, items ...any) {
	l.log.Debug(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Debugf(msg string, items ...any) {
	l.log.Debug(fmt.Sprintf(msg, items...))
}

// Open opens the database at dir, creating the directory if needed. An empty
// dir opens an in-memory database.
func Open(dir string, log *slog.Logger) (*Index, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "badger")

	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
		info, err := os.Stat(dir)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", dir)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{log: log}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Index{db: db, log: log}, nil
}

func (x *Index) Close() error {
	return x.db.Close()
}

// UpsertChunks writes records in one write batch.
func (x *Index) UpsertChunks(ctx context.Context, collection, docID string, records []chunker.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wb := x.db.NewWriteBatch()
	defer wb.Cancel()

	for _, r := range records {
		val, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", r.ID, err)
		}
		if err := wb.Set(chunkKey(collection, docID, r.ID), val); err != nil {
			return fmt.Errorf("set record %s: %w", r.ID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush chunks: %w", err)
	}
	return nil
}

func (x *Index) Chunks(ctx context.Context, collection, docID string) ([]chunker.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []chunker.Record
	err := x.db.View(func(tx *badger.Txn) error {
		return scan(tx, chunkPrefix(collection, docID), func(_ []byte, val []byte) error {
			var r chunker.Record
			if err := json.Unmarshal(val, &r); err != nil {
				return fmt.Errorf("unmarshal record: %w", err)
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// PutDocument writes the document record and moves its hash entry when the
// content hash changed.
func (x *Index) PutDocument(ctx context.Context, doc store.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return x.db.Update(func(tx *badger.Txn) error {
		prev, err := readDocument(tx, doc.Collection, doc.DocID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if prev != nil && prev.ContentHash != "" && prev.ContentHash != doc.ContentHash {
			if err := tx.Delete(hashKey(doc.Collection, prev.ContentHash)); err != nil {
				return err
			}
		}
		if err := tx.Set(docKey(doc.Collection, doc.DocID), val); err != nil {
			return err
		}
		if doc.ContentHash == "" {
			return nil
		}
		return tx.Set(hashKey(doc.Collection, doc.ContentHash), []byte(doc.DocID))
	})
}

func (x *Index) FindByHash(ctx context.Context, collection, hash string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	var docID string
	err := x.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(hashKey(collection, hash))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			docID = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return docID, true, nil
}

func (x *Index) ListDocuments(ctx context.Context, collection string) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []store.Document
	err := x.db.View(func(tx *badger.Txn) error {
		return scan(tx, docPrefix(collection), func(_ []byte, val []byte) error {
			var d store.Document
			if err := json.Unmarshal(val, &d); err != nil {
				return fmt.Errorf("unmarshal document: %w", err)
			}
			out = append(out, d)
			return nil
		})
	})
	return out, err
}

func (x *Index) DeleteDocument(ctx context.Context, collection, docID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var (
		keys [][]byte
		doc  *store.Document
	)
	err := x.db.View(func(tx *badger.Txn) error {
		var err error
		doc, err = readDocument(tx, collection, docID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return scan(tx, chunkPrefix(collection, docID), func(key, _ []byte) error {
			keys = append(keys, key)
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	if doc == nil && len(keys) == 0 {
		return 0, fmt.Errorf("%s/%s: %w", collection, docID, store.ErrNotFound)
	}

	wb := x.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
	}
	if doc != nil {
		if err := wb.Delete(docKey(collection, docID)); err != nil {
			return 0, err
		}
		if doc.ContentHash != "" {
			if err := wb.Delete(hashKey(collection, doc.ContentHash)); err != nil {
				return 0, err
			}
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush delete: %w", err)
	}

	x.log.Debug("deleted document", "collection", collection, "doc_id", docID, "chunks", len(keys))
	return len(keys), nil
}

func readDocument(tx *badger.Txn, collection, docID string) (*store.Document, error) {
	item, err := tx.Get(docKey(collection, docID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var d store.Document
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &d)
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &d, nil
}

// scan calls fn for every key under prefix. Keys are copied; values are only
// valid inside fn.
func scan(tx *badger.Txn, prefix []byte, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		key := item.KeyCopy(nil)
		err := item.Value(func(val []byte) error {
			return fn(key, val)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
