package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/statchunk/internal/doctree"
	"github.com/dgallion1/statchunk/internal/pipeline"
	"github.com/dgallion1/statchunk/internal/store"
)

var (
	// headerStyle for file and collection banners
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	// dimStyle for muted metadata text
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// citeStyle for chunk ids
	citeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	// boxStyle for per-file summaries
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

const previewRunes = 72

// renderFile prints one line per chunk followed by a summary box.
func renderFile(w io.Writer, r fileResult) {
	fmt.Fprintln(w, headerStyle.Render(r.File))
	if r.Err != nil {
		fmt.Fprintf(w, "  %s %v\n\n", errorStyle.Render("error:"), r.Err)
		return
	}

	tokens := 0
	for _, c := range r.Chunks {
		tokens += c.Tokens
		id := c.SectionID
		if c.Subsection != "" {
			id += c.Subsection
		}
		fmt.Fprintf(w, "  %s %s %s\n",
			citeStyle.Render(fmt.Sprintf("%-20s", id)),
			dimStyle.Render(fmt.Sprintf("%4d tok", c.Tokens)),
			preview(c.Text),
		)
		if len(c.Hierarchy) > 0 {
			fmt.Fprintf(w, "  %s %s\n", strings.Repeat(" ", 20), dimStyle.Render(c.Hierarchy.String()))
		}
	}

	summary := fmt.Sprintf("%s %s\n%s %d  %s %d  %s %d",
		dimStyle.Render("Title:"), r.Title,
		dimStyle.Render("Chunks:"), len(r.Chunks),
		dimStyle.Render("Sections:"), countSections(r.Chunks),
		dimStyle.Render("Tokens:"), tokens,
	)
	fmt.Fprintln(w, boxStyle.Render(summary))
	fmt.Fprintln(w)
}

func countSections(chunks []doctree.Chunk) int {
	seen := make(map[string]struct{})
	for _, c := range chunks {
		seen[c.SectionID] = struct{}{}
	}
	return len(seen)
}

// preview flattens text to one line, cut at previewRunes.
func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= previewRunes {
		return text
	}
	return string(r[:previewRunes-3]) + "..."
}

// renderJob prints the final state of an ingest job.
func renderJob(w io.Writer, snap pipeline.JobSnapshot) {
	style := successStyle
	switch snap.Status {
	case pipeline.StatusFailed:
		style = errorStyle
	case pipeline.StatusPartial, pipeline.StatusDupSkipped:
		style = warnStyle
	}

	line := fmt.Sprintf("%s %s %s",
		style.Render(fmt.Sprintf("%-17s", snap.Status)),
		headerStyle.Render(snap.Filename),
		dimStyle.Render(fmt.Sprintf("doc_id=%s stored=%d/%d", snap.DocID, snap.Progress.ChunksStored, snap.Progress.TotalChunks)),
	)
	if snap.DuplicateOf != "" {
		line += dimStyle.Render(" duplicate_of=" + snap.DuplicateOf)
	}
	fmt.Fprintln(w, line)
	for _, e := range snap.Progress.Errors {
		fmt.Fprintf(w, "  %s %s\n", errorStyle.Render("error:"), e)
	}
}

// renderDocuments lists the documents of a collection.
func renderDocuments(w io.Writer, collection string, docs []store.Document) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s (%d documents)", collection, len(docs))))
	for _, d := range docs {
		fmt.Fprintf(w, "  %s %s %s\n",
			citeStyle.Render(fmt.Sprintf("%-24s", d.DocID)),
			dimStyle.Render(fmt.Sprintf("%5d chunks", d.ChunkCount)),
			d.Title,
		)
	}
}
