// Package scanner delimits statute sections and tracks the TITLE/ARTICLE/PART
// hierarchy in one forward pass over the document lines.
package scanner

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/dgallion1/statchunk/internal/doctree"
)

var (
	titleRe   = regexp.MustCompile(`(?i)^\s*TITLE\s+(\d+)[\s\-:]*`)
	articleRe = regexp.MustCompile(`(?i)^\s*ARTICLE\s+(\d+)[\s\-:]*`)
	partRe    = regexp.MustCompile(`(?i)^\s*PART\s+(\d+)[\s\-:]*`)

	// Section number with optional decimal extension: 17-1-101, 17-1-101.5.
	sectionRe = regexp.MustCompile(`^\s*(\d+-\d+-\d+(?:\.\d+)?)\.?\s*(.*)$`)

	editorsNoteRe = regexp.MustCompile(`(?i)^\s*editor(?:'|’)?s note:`)

	// Same marker grammar the chunker splits on; used only to detect a body
	// that starts on the section line itself.
	inlineMarkerRe = regexp.MustCompile(`(?i)\((?:\d+|[a-z]|[ivx]+)\)`)
)

// state holds the three hierarchy slots. Empty string means unset.
type state struct {
	title   string
	article string
	part    string
}

func (s *state) snapshot() doctree.Hierarchy {
	var h doctree.Hierarchy
	for _, label := range []string{s.title, s.article, s.part} {
		if label != "" {
			h = append(h, label)
		}
	}
	return h
}

// header applies a TITLE/ARTICLE/PART line to the state. It reports false
// when the line is not a header.
func (s *state) header(line string) bool {
	if m := titleRe.FindStringSubmatch(line); m != nil {
		s.title = "TITLE " + m[1]
		s.article = ""
		s.part = ""
		return true
	}
	if m := articleRe.FindStringSubmatch(line); m != nil {
		s.article = "ARTICLE " + m[1]
		s.part = ""
		return true
	}
	if m := partRe.FindStringSubmatch(line); m != nil {
		s.part = "PART " + m[1]
		return true
	}
	return false
}

// Scan splits document text into sections in document order. Sections that
// end up with no content lines are dropped.
func Scan(text string) []doctree.Section {
	sc := newSectionScanner()
	for _, line := range strings.Split(text, "\n") {
		sc.line(line)
	}
	return sc.finish()
}

// ScanReader is Scan over a stream.
func ScanReader(r io.Reader) ([]doctree.Section, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	sc := newSectionScanner()
	for s.Scan() {
		sc.line(s.Text())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return sc.finish(), nil
}

type sectionScanner struct {
	st       state
	open     *doctree.Section
	sections []doctree.Section
}

func newSectionScanner() *sectionScanner {
	return &sectionScanner{}
}

func (sc *sectionScanner) line(raw string) {
	line := strings.TrimRight(raw, " \t\r\f\v")
	if editorsNoteRe.MatchString(line) {
		return
	}

	if sc.st.header(line) {
		sc.flush()
		return
	}

	if m := sectionRe.FindStringSubmatch(line); m != nil {
		sc.flush()
		title, body := splitInlineBody(strings.TrimSpace(m[2]))
		sc.open = &doctree.Section{
			ID:        m[1],
			Title:     title,
			Hierarchy: sc.st.snapshot(),
		}
		if body != "" {
			sc.open.Lines = append(sc.open.Lines, body)
		}
		return
	}

	if sc.open == nil || strings.TrimSpace(line) == "" {
		return
	}
	sc.open.Lines = append(sc.open.Lines, line)
}

func (sc *sectionScanner) flush() {
	if sc.open != nil && sc.open.ID != "" && len(sc.open.Lines) > 0 {
		sc.sections = append(sc.sections, *sc.open)
	}
	sc.open = nil
}

func (sc *sectionScanner) finish() []doctree.Section {
	sc.flush()
	return sc.sections
}

// splitInlineBody separates "Executive director. (1) The governor ..." into
// the title and the body that starts at the first subsection marker.
func splitInlineBody(rest string) (title, body string) {
	loc := inlineMarkerRe.FindStringIndex(rest)
	if loc == nil {
		return rest, ""
	}
	return strings.TrimSpace(rest[:loc[0]]), strings.TrimSpace(rest[loc[0]:])
}
