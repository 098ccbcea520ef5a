package scanner

import (
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/statchunk/internal/doctree"
)

func TestScan_HierarchySnapshots(t *testing.T) {
	input := `TITLE 17
CORRECTIONS
ARTICLE 1
Department of Corrections
PART 1
17-1-101. Executive director.
The governor shall appoint a director.
PART 2
17-1-201. Parole board.
There is created a parole board.
ARTICLE 2
17-2-101. Short title.
This article is the parole act.
TITLE 18
18-1-101. Crimes.
No act is a crime unless so defined.
`
	sections := Scan(input)
	if len(sections) != 4 {
		t.Fatalf("expected 4 sections, got %d", len(sections))
	}

	want := []struct {
		id   string
		hier doctree.Hierarchy
	}{
		{"17-1-101", doctree.Hierarchy{"TITLE 17", "ARTICLE 1", "PART 1"}},
		{"17-1-201", doctree.Hierarchy{"TITLE 17", "ARTICLE 1", "PART 2"}},
		{"17-2-101", doctree.Hierarchy{"TITLE 17", "ARTICLE 2"}},
		{"18-1-101", doctree.Hierarchy{"TITLE 18"}},
	}
	for i, w := range want {
		if sections[i].ID != w.id {
			t.Errorf("section %d: expected id %q, got %q", i, w.id, sections[i].ID)
		}
		if !reflect.DeepEqual(sections[i].Hierarchy, w.hier) {
			t.Errorf("section %d: expected hierarchy %v, got %v", i, w.hier, sections[i].Hierarchy)
		}
	}
}

func TestScan_SectionFields(t *testing.T) {
	input := "17-1-101.5. Legislative declaration.\nLine one.\n\n   \nLine two.  \n"
	sections := Scan(input)
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	s := sections[0]
	if s.ID != "17-1-101.5" {
		t.Errorf("expected id %q, got %q", "17-1-101.5", s.ID)
	}
	if s.Title != "Legislative declaration." {
		t.Errorf("expected title %q, got %q", "Legislative declaration.", s.Title)
	}
	want := []string{"Line one.", "Line two."}
	if !reflect.DeepEqual(s.Lines, want) {
		t.Errorf("expected lines %q, got %q", want, s.Lines)
	}
	if s.Hierarchy != nil {
		t.Errorf("expected empty hierarchy, got %v", s.Hierarchy)
	}
}

func TestScan_InlineBody(t *testing.T) {
	sections := Scan("17-1-101. Executive director. (1) The governor shall appoint. (2) There is created.\n")
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if sections[0].Title != "Executive director." {
		t.Errorf("expected title %q, got %q", "Executive director.", sections[0].Title)
	}
	want := []string{"(1) The governor shall appoint. (2) There is created."}
	if !reflect.DeepEqual(sections[0].Lines, want) {
		t.Errorf("expected lines %q, got %q", want, sections[0].Lines)
	}
}

func TestScan_EmptySectionDropped(t *testing.T) {
	input := "17-1-101. Repealed.\n17-1-102. Definitions.\nText.\n17-1-103. Also empty.\nPART 2\n"
	sections := Scan(input)
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if sections[0].ID != "17-1-102" {
		t.Errorf("expected 17-1-102, got %q", sections[0].ID)
	}
}

func TestScan_LinesBeforeFirstSectionDropped(t *testing.T) {
	input := "Colorado Revised Statutes 2024\nUncodified preface text.\n17-1-101. Title.\nBody.\n"
	sections := Scan(input)
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if !reflect.DeepEqual(sections[0].Lines, []string{"Body."}) {
		t.Errorf("unexpected lines %q", sections[0].Lines)
	}
}

func TestScan_EditorsNotesSkipped(t *testing.T) {
	input := "17-1-101. Title.\nBody.\nEditor's note: This section was amended.\n  editors note: another.\nEditor’s note: curly.\nMore body.\n"
	sections := Scan(input)
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	want := []string{"Body.", "More body."}
	if !reflect.DeepEqual(sections[0].Lines, want) {
		t.Errorf("expected %q, got %q", want, sections[0].Lines)
	}
}

func TestScan_HeaderFlushesSection(t *testing.T) {
	input := "TITLE 17\n17-1-101. Title.\nBody of 101.\n  article 3 - General provisions\nOrphan line after header.\n17-3-101. Next.\nBody of 301.\n"
	sections := Scan(input)
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	if !reflect.DeepEqual(sections[0].Lines, []string{"Body of 101."}) {
		t.Errorf("header should close the open section, got %q", sections[0].Lines)
	}
	if !reflect.DeepEqual(sections[1].Hierarchy, doctree.Hierarchy{"TITLE 17", "ARTICLE 3"}) {
		t.Errorf("unexpected hierarchy %v", sections[1].Hierarchy)
	}
}

func TestScan_HeaderTakesPriority(t *testing.T) {
	// Looks like a header first, so it never opens a section.
	sections := Scan("PART 1 17-1-101. Not a section\nBody.\n")
	if len(sections) != 0 {
		t.Errorf("expected 0 sections, got %d", len(sections))
	}
}

func TestScan_SnapshotIsolation(t *testing.T) {
	sections := Scan("TITLE 1\nARTICLE 1\n1-1-101. A.\nBody.\n1-1-102. B.\nBody.\n")
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	sections[0].Hierarchy[0] = "MUTATED"
	if sections[1].Hierarchy[0] != "TITLE 1" {
		t.Error("hierarchy snapshots share backing storage")
	}
}

func TestScan_NoStructure(t *testing.T) {
	if sections := Scan("plain prose\nwith no statute numbers\n"); len(sections) != 0 {
		t.Errorf("expected 0 sections, got %d", len(sections))
	}
	if sections := Scan(""); len(sections) != 0 {
		t.Errorf("expected 0 sections for empty input, got %d", len(sections))
	}
}

func TestScanReader_MatchesScan(t *testing.T) {
	input := "TITLE 17\r\nARTICLE 1\r\n17-1-101. Title.\r\nBody one.\r\nBody two.\r\n"
	fromReader, err := ScanReader(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(fromReader, Scan(input)) {
		t.Errorf("ScanReader and Scan disagree:\n%+v\n%+v", fromReader, Scan(input))
	}
	if !reflect.DeepEqual(fromReader[0].Lines, []string{"Body one.", "Body two."}) {
		t.Errorf("unexpected lines %q", fromReader[0].Lines)
	}
}
