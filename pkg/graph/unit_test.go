package graph

import (
	"reflect"
	"strings"
	"testing"
)

func byWords(text string) int {
	return len(strings.Fields(text))
}

func TestSplitLineIntoSentences(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "single sentence",
			line: "Graphs connect entities.",
			want: []string{"Graphs connect entities."},
		},
		{
			name: "multiple sentences",
			line: "First one. Second one! Third one?",
			want: []string{"First one.", "Second one!", "Third one?"},
		},
		{
			name: "numeric listing is not a boundary",
			line: "1. First item continues here.",
			want: []string{"1. First item continues here."},
		},
		{
			name: "closing quote stays attached",
			line: `He said "stop." Then left.`,
			want: []string{`He said "stop."`, "Then left."},
		},
		{
			name: "no terminal punctuation",
			line: "A heading without punctuation",
			want: []string{"A heading without punctuation"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitLineIntoSentences(tt.line)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("splitLineIntoSentences(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestSplitIntoSentencesJoinsWrappedLines(t *testing.T) {
	text := "This sentence wraps\nacross two lines.\n\nNext paragraph here."
	got := splitIntoSentences(text)
	want := []string{"This sentence wraps across two lines.", "Next paragraph here."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitIntoSentences() = %v, want %v", got, want)
	}
}

func TestTransformIntoUnits(t *testing.T) {
	text := "One two three. Four five six. Seven eight nine."

	units, err := transformIntoUnits(text, "doc", byWords, 8)
	if err != nil {
		t.Fatalf("transformIntoUnits() error: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d: %+v", len(units), units)
	}
	if units[0].Text != "One two three. Four five six." {
		t.Fatalf("units[0].Text = %q", units[0].Text)
	}
	if units[1].Text != "Seven eight nine." {
		t.Fatalf("units[1].Text = %q", units[1].Text)
	}
}

func TestTransformIntoUnitsStableIDs(t *testing.T) {
	text := "One two three. Four five six."

	first, err := transformIntoUnits(text, "doc", byWords, 4)
	if err != nil {
		t.Fatalf("transformIntoUnits() error: %v", err)
	}
	second, err := transformIntoUnits(text, "doc", byWords, 4)
	if err != nil {
		t.Fatalf("transformIntoUnits() error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-chunking an unchanged document must yield identical units\nfirst:  %+v\nsecond: %+v", first, second)
	}
	for i, u := range first {
		if u.DocID != "doc" || u.Index != i {
			t.Fatalf("unit %d has wrong provenance: %+v", i, u)
		}
	}
}

func TestTransformIntoUnitsEmptyText(t *testing.T) {
	units, err := transformIntoUnits("   \n\n  ", "doc", byWords, 10)
	if err != nil {
		t.Fatalf("transformIntoUnits() error: %v", err)
	}
	if len(units) != 0 {
		t.Fatalf("expected no units for blank text, got %d", len(units))
	}
}

func TestTransformIntoUnitsOversizedSentence(t *testing.T) {
	text := "One two three four five six seven. Small."

	units, err := transformIntoUnits(text, "doc", byWords, 3)
	if err != nil {
		t.Fatalf("transformIntoUnits() error: %v", err)
	}
	// A sentence above the budget still becomes its own unit.
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d: %+v", len(units), units)
	}
}
