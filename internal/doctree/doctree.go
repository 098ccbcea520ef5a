package doctree

import "strings"

// Hierarchy is the TITLE/ARTICLE/PART path active when a section began,
// e.g. ["TITLE 17", "ARTICLE 1", "PART 1"]. Levels that were never set are
// omitted.
type Hierarchy []string

// String joins the labels with " | ".
func (h Hierarchy) String() string {
	return strings.Join(h, " | ")
}

// Clone returns an independent copy so a snapshot can't be mutated later.
func (h Hierarchy) Clone() Hierarchy {
	if len(h) == 0 {
		return nil
	}
	out := make(Hierarchy, len(h))
	copy(out, h)
	return out
}

// Section is one statute section as delimited by the scanner.
type Section struct {
	ID        string    // Section number, e.g. "17-1-101" or "17-1-101.5"
	Title     string    // Free text following the number
	Lines     []string  // Raw content lines in document order
	Hierarchy Hierarchy // Snapshot taken when the section opened
}

// Chunk is a bounded, citation-annotated unit of statute text.
type Chunk struct {
	Text         string    `json:"content"`
	SectionID    string    `json:"section_number"`
	SectionTitle string    `json:"section_title"`
	Subsection   string    `json:"subsection,omitempty"` // "" when the chunk has no marker; may be composite, e.g. "(1)(a)"
	Hierarchy    Hierarchy `json:"hierarchy"`
	Citation     string    `json:"full_citation"`
	Tokens       int       `json:"token_count"`
}

// Citation formats "{section_id}. {section_title}".
func Citation(sectionID, title string) string {
	return strings.TrimSpace(sectionID + ". " + title)
}
