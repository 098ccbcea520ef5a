// Package storetest is a behavioral test suite shared by every store.Index
// backend.
package storetest

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/dgallion1/statchunk/internal/chunker"
	"github.com/dgallion1/statchunk/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Statute is a small document that chunks into three records.
const Statute = `TITLE 17
ARTICLE 1
PART 1
17-1-101. Executive director.
(1) The governor shall appoint an executive director of the department.
(2) The executive director shall manage all correctional facilities.
17-1-102. Definitions.
As used in this article, unless the context otherwise requires, the following definitions apply.
`

// Records chunks and prepares Statute, annotated the way the ingest
// pipeline annotates batches.
func Records(t *testing.T, docID string) []chunker.Record {
	t.Helper()
	b, err := chunker.New(chunker.DefaultConfig())
	require.NoError(t, err)
	chunks, err := b.Parse(Statute)
	require.NoError(t, err)

	batch := chunker.Prepare(chunks)
	batch.Annotate("doc_id", docID)
	batch.Annotate("source", "title17.txt")
	return batch.Records()
}

// Run exercises an Index. newIndex must return an empty index; the suite
// closes it.
func Run(t *testing.T, newIndex func(t *testing.T) store.Index) {
	t.Run("UpsertAndChunksInOrder", func(t *testing.T) {
		idx := newIndex(t)
		defer idx.Close()
		ctx := context.Background()

		recs := Records(t, "title17")
		require.Len(t, recs, 3)

		// Later batch written first; order must still follow Position.
		require.NoError(t, idx.UpsertChunks(ctx, "statutes", "title17", recs[2:]))
		require.NoError(t, idx.UpsertChunks(ctx, "statutes", "title17", recs[:2]))

		got, err := idx.Chunks(ctx, "statutes", "title17")
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i := range recs {
			assert.Equal(t, recs[i].ID, got[i].ID)
			assert.Equal(t, recs[i].Position, got[i].Position)
			assert.Equal(t, recs[i].Document, got[i].Document)
			assert.Equal(t, recs[i].Metadata["section_number"], got[i].Metadata["section_number"])
			assert.Equal(t, "title17", got[i].Metadata["doc_id"])
		}
	})

	t.Run("UpsertReplacesSameID", func(t *testing.T) {
		idx := newIndex(t)
		defer idx.Close()
		ctx := context.Background()

		recs := Records(t, "title17")
		require.NoError(t, idx.UpsertChunks(ctx, "statutes", "title17", recs))

		changed := recs[0]
		changed.Document = "amended text"
		require.NoError(t, idx.UpsertChunks(ctx, "statutes", "title17", []chunker.Record{changed}))

		got, err := idx.Chunks(ctx, "statutes", "title17")
		require.NoError(t, err)
		require.Len(t, got, len(recs))
		assert.Equal(t, "amended text", got[0].Document)
	})

	t.Run("CollectionsAreIsolated", func(t *testing.T) {
		idx := newIndex(t)
		defer idx.Close()
		ctx := context.Background()

		require.NoError(t, idx.UpsertChunks(ctx, "colorado", "title17", Records(t, "title17")))

		got, err := idx.Chunks(ctx, "wyoming", "title17")
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = idx.Chunks(ctx, "colorado", "title18")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("DocumentsAndHashLookup", func(t *testing.T) {
		idx := newIndex(t)
		defer idx.Close()
		ctx := context.Background()

		now := time.Now().UTC().Truncate(time.Second)
		docs := []store.Document{
			{Collection: "statutes", DocID: "title17", Title: "Corrections", Source: "title17.txt", ContentHash: "aaa", ChunkCount: 3, IndexedAt: now},
			{Collection: "statutes", DocID: "title18", Title: "Criminal Code", Source: "title18.pdf", ContentHash: "bbb", ChunkCount: 9, IndexedAt: now},
			{Collection: "other", DocID: "title17", Title: "Elsewhere", ContentHash: "aaa", IndexedAt: now},
		}
		for _, d := range docs {
			require.NoError(t, idx.PutDocument(ctx, d))
		}

		list, err := idx.ListDocuments(ctx, "statutes")
		require.NoError(t, err)
		require.Len(t, list, 2)
		sort.Slice(list, func(i, j int) bool { return list[i].DocID < list[j].DocID })
		assert.Equal(t, "title17", list[0].DocID)
		assert.Equal(t, "Corrections", list[0].Title)
		assert.Equal(t, 3, list[0].ChunkCount)
		assert.Equal(t, "statutes", list[0].Collection)
		assert.True(t, list[0].IndexedAt.Equal(now), "indexed_at round trip: %v", list[0].IndexedAt)
		assert.Equal(t, "title18", list[1].DocID)

		docID, ok, err := idx.FindByHash(ctx, "statutes", "bbb")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "title18", docID)

		_, ok, err = idx.FindByHash(ctx, "statutes", "ccc")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = idx.FindByHash(ctx, "empty", "aaa")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DeleteDocument", func(t *testing.T) {
		idx := newIndex(t)
		defer idx.Close()
		ctx := context.Background()

		recs := Records(t, "title17")
		require.NoError(t, idx.UpsertChunks(ctx, "statutes", "title17", recs))
		require.NoError(t, idx.UpsertChunks(ctx, "statutes", "title18", recs))
		require.NoError(t, idx.PutDocument(ctx, store.Document{
			Collection: "statutes", DocID: "title17", ContentHash: "aaa", ChunkCount: len(recs), IndexedAt: time.Now(),
		}))

		n, err := idx.DeleteDocument(ctx, "statutes", "title17")
		require.NoError(t, err)
		assert.Equal(t, len(recs), n)

		got, err := idx.Chunks(ctx, "statutes", "title17")
		require.NoError(t, err)
		assert.Empty(t, got)

		list, err := idx.ListDocuments(ctx, "statutes")
		require.NoError(t, err)
		assert.Empty(t, list)

		_, ok, err := idx.FindByHash(ctx, "statutes", "aaa")
		require.NoError(t, err)
		assert.False(t, ok)

		// Sibling document untouched.
		got, err = idx.Chunks(ctx, "statutes", "title18")
		require.NoError(t, err)
		assert.Len(t, got, len(recs))

		_, err = idx.DeleteDocument(ctx, "statutes", "title17")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("DeleteChunksWithoutDocumentRecord", func(t *testing.T) {
		idx := newIndex(t)
		defer idx.Close()
		ctx := context.Background()

		recs := Records(t, "orphan")
		require.NoError(t, idx.UpsertChunks(ctx, "statutes", "orphan", recs))

		n, err := idx.DeleteDocument(ctx, "statutes", "orphan")
		require.NoError(t, err)
		assert.Equal(t, len(recs), n)
	})
}
