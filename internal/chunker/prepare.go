package chunker

import (
	"strconv"
	"strings"

	"github.com/dgallion1/statchunk/internal/doctree"
)

// Batch is the index-ready form of a chunk sequence: three parallel slices of
// equal length, in chunk order.
type Batch struct {
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
	IDs       []string         `json:"ids"`
}

// Record is one row of a Batch. Position is its index in the batch.
type Record struct {
	ID       string         `json:"id"`
	Position int            `json:"position"`
	Document string         `json:"document"`
	Metadata map[string]any `json:"metadata"`
}

// SearchableText is the text sent to the index for a chunk: the hierarchy and
// citation on the first line, the body on the second.
func SearchableText(c doctree.Chunk) string {
	return c.Hierarchy.String() + " || " + c.Citation + "\n" + c.Text
}

// ChunkID is the undisambiguated identifier for a chunk.
func ChunkID(c doctree.Chunk) string {
	if c.Subsection == "" {
		return c.SectionID
	}
	return c.SectionID + "_" + c.Subsection
}

// Prepare maps chunks to a Batch. IDs that repeat within the call get a
// "#n" suffix in emission order: base, base#1, base#2, ...
func Prepare(chunks []doctree.Chunk) Batch {
	b := Batch{
		Documents: make([]string, 0, len(chunks)),
		Metadatas: make([]map[string]any, 0, len(chunks)),
		IDs:       make([]string, 0, len(chunks)),
	}

	seen := make(map[string]int, len(chunks))
	for _, c := range chunks {
		base := ChunkID(c)
		idx := seen[base]
		seen[base] = idx + 1

		id := base
		if idx > 0 {
			id = base + "#" + strconv.Itoa(idx)
		}

		b.Documents = append(b.Documents, SearchableText(c))
		b.Metadatas = append(b.Metadatas, map[string]any{
			"section_number": c.SectionID,
			"section_title":  c.SectionTitle,
			"subsection":     c.Subsection,
			"hierarchy":      strings.Join(c.Hierarchy, " | "),
			"full_citation":  c.Citation,
			"token_count":    c.Tokens,
			"chunk_index":    idx,
		})
		b.IDs = append(b.IDs, id)
	}
	return b
}

// Len returns the number of records.
func (b Batch) Len() int {
	return len(b.IDs)
}

// Records zips the three slices.
func (b Batch) Records() []Record {
	out := make([]Record, len(b.IDs))
	for i := range b.IDs {
		out[i] = Record{
			ID:       b.IDs[i],
			Position: i,
			Document: b.Documents[i],
			Metadata: b.Metadatas[i],
		}
	}
	return out
}

// Annotate sets key on every metadata record. Values must be primitives.
func (b Batch) Annotate(key string, value any) {
	for _, m := range b.Metadatas {
		m[key] = value
	}
}
