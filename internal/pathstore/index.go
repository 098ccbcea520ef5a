package pathstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgallion1/statchunk/internal/chunker"
	"github.com/dgallion1/statchunk/internal/store"
)

// Key layout under Root:
//
//	{root}/{collection}/docs/{docID}                 document record
//	{root}/{collection}/chunks/{docID}/{position}    chunk record
//	{root}/{collection}/by_hash/{hash}/{docID}       dedup entry
const Root = "statchunk"

// Index is a store.Index over a pathstore server.
type Index struct {
	c *Client
}

var _ store.Index = (*Index)(nil)

// NewIndex wraps c. Closing the Index closes c.
func NewIndex(c *Client) *Index {
	return &Index{c: c}
}

func docPath(collection, docID string) string {
	return fmt.Sprintf("%s/%s/docs/%s", Root, collection, docID)
}

func chunksPath(collection, docID string) string {
	return fmt.Sprintf("%s/%s/chunks/%s", Root, collection, docID)
}

func hashPath(collection, hash string) string {
	return fmt.Sprintf("%s/%s/by_hash/%s", Root, collection, hash)
}

// UpsertChunks writes one node per record, keyed by position.
func (x *Index) UpsertChunks(ctx context.Context, collection, docID string, records []chunker.Record) error {
	for _, r := range records {
		key := fmt.Sprintf("%s/%06d", chunksPath(collection, docID), r.Position)
		err := x.c.PutNode(ctx, key, NodeRequest{
			Value:      r,
			MemoryType: "semantic",
			Source:     "statchunk:" + docID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (x *Index) Chunks(ctx context.Context, collection, docID string) ([]chunker.Record, error) {
	nodes, err := x.c.ListChildren(ctx, chunksPath(collection, docID), 0)
	if err != nil {
		return nil, err
	}
	out := make([]chunker.Record, 0, len(nodes))
	for _, n := range nodes {
		var r chunker.Record
		if err := decodeValue(n.Value, &r); err != nil {
			return nil, fmt.Errorf("decode chunk %s: %w", n.Key, err)
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// PutDocument writes the document node and its dedup entry, removing the
// entry of a previous content hash.
func (x *Index) PutDocument(ctx context.Context, doc store.Document) error {
	prev, err := x.document(ctx, doc.Collection, doc.DocID)
	if err != nil {
		return err
	}
	if prev != nil && prev.ContentHash != "" && prev.ContentHash != doc.ContentHash {
		err := x.c.DeleteNode(ctx, hashPath(doc.Collection, prev.ContentHash)+"/"+doc.DocID, false)
		if err != nil && !errors.Is(err, errNodeNotFound) {
			return err
		}
	}

	err = x.c.PutNode(ctx, docPath(doc.Collection, doc.DocID), NodeRequest{
		Value:      doc,
		MemoryType: "metacognitive",
		Source:     "statchunk:" + doc.DocID,
	})
	if err != nil {
		return err
	}
	if doc.ContentHash == "" {
		return nil
	}
	return x.c.PutNode(ctx, hashPath(doc.Collection, doc.ContentHash)+"/"+doc.DocID, NodeRequest{
		Value:      map[string]any{"doc_id": doc.DocID},
		MemoryType: "metacognitive",
		Source:     "statchunk:" + doc.DocID,
	})
}

func (x *Index) FindByHash(ctx context.Context, collection, hash string) (string, bool, error) {
	nodes, err := x.c.ListChildren(ctx, hashPath(collection, hash), 1)
	if err != nil {
		return "", false, err
	}
	if len(nodes) == 0 {
		return "", false, nil
	}
	var entry struct {
		DocID string `json:"doc_id"`
	}
	if err := decodeValue(nodes[0].Value, &entry); err != nil {
		return "", false, fmt.Errorf("decode hash entry: %w", err)
	}
	return entry.DocID, entry.DocID != "", nil
}

func (x *Index) ListDocuments(ctx context.Context, collection string) ([]store.Document, error) {
	nodes, err := x.c.ListChildren(ctx, fmt.Sprintf("%s/%s/docs", Root, collection), 0)
	if err != nil {
		return nil, err
	}
	out := make([]store.Document, 0, len(nodes))
	for _, n := range nodes {
		var d store.Document
		if err := decodeValue(n.Value, &d); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", n.Key, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (x *Index) DeleteDocument(ctx context.Context, collection, docID string) (int, error) {
	doc, err := x.document(ctx, collection, docID)
	if err != nil {
		return 0, err
	}
	chunks, err := x.c.ListChildren(ctx, chunksPath(collection, docID), 0)
	if err != nil {
		return 0, err
	}
	if doc == nil && len(chunks) == 0 {
		return 0, fmt.Errorf("%s/%s: %w", collection, docID, store.ErrNotFound)
	}

	if len(chunks) > 0 {
		if err := x.c.DeleteNode(ctx, chunksPath(collection, docID), true); err != nil && !errors.Is(err, errNodeNotFound) {
			return 0, err
		}
	}
	if doc != nil {
		if err := x.c.DeleteNode(ctx, docPath(collection, docID), false); err != nil && !errors.Is(err, errNodeNotFound) {
			return 0, err
		}
		if doc.ContentHash != "" {
			err := x.c.DeleteNode(ctx, hashPath(collection, doc.ContentHash)+"/"+docID, false)
			if err != nil && !errors.Is(err, errNodeNotFound) {
				return 0, err
			}
		}
	}
	return len(chunks), nil
}

func (x *Index) Close() error {
	x.c.Close()
	return nil
}

func (x *Index) document(ctx context.Context, collection, docID string) (*store.Document, error) {
	node, err := x.c.GetNode(ctx, docPath(collection, docID))
	if err != nil || node == nil {
		return nil, err
	}
	var d store.Document
	if err := decodeValue(node.Value, &d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &d, nil
}

// decodeValue converts a generic JSON value into dst.
func decodeValue(v any, dst any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
