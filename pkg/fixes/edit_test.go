package fixes_test

import (
	"testing"

	"github.com/proselab/lintd/pkg/fixes"
)

func TestApplyEdits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		edits   []fixes.TextEdit
		want    string
	}{
		{
			name:    "empty edits returns original",
			content: "hello world",
			edits:   nil,
			want:    "hello world",
		},
		{
			name:    "single replacement",
			content: "hello world",
			edits: []fixes.TextEdit{
				{Start: 0, End: 5, NewText: "hi"},
			},
			want: "hi world",
		},
		{
			name:    "insertion",
			content: "hello world",
			edits: []fixes.TextEdit{
				{Start: 5, End: 5, NewText: " big"},
			},
			want: "hello big world",
		},
		{
			name:    "deletion",
			content: "hello world",
			edits: []fixes.TextEdit{
				{Start: 5, End: 11},
			},
			want: "hello",
		},
		{
			name:    "multiple non-overlapping edits",
			content: "abcdef",
			edits: []fixes.TextEdit{
				{Start: 0, End: 2, NewText: "XX"},
				{Start: 4, End: 6, NewText: "ZZ"},
			},
			want: "XXcdZZ",
		},
		{
			name:    "adjacent edits",
			content: "abcdef",
			edits: []fixes.TextEdit{
				{Start: 0, End: 3, NewText: "1"},
				{Start: 3, End: 6, NewText: "2"},
			},
			want: "12",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := fixes.ApplyEdits([]byte(tt.content), tt.edits)
			if string(got) != tt.want {
				t.Errorf("ApplyEdits() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSortEdits(t *testing.T) {
	t.Parallel()

	edits := []fixes.TextEdit{
		{Start: 10, End: 12},
		{Start: 0, End: 8},
		{Start: 10, End: 11},
		{Start: 3, End: 5},
	}
	fixes.SortEdits(edits)

	for i := 1; i < len(edits); i++ {
		prev, curr := edits[i-1], edits[i]
		if curr.Start < prev.Start || (curr.Start == prev.Start && curr.End < prev.End) {
			t.Fatalf("edits not sorted at %d: %+v", i, edits)
		}
	}
}

func TestValidateEdits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		edits      []fixes.TextEdit
		contentLen int
		wantErr    bool
	}{
		{
			name:       "valid edits",
			edits:      []fixes.TextEdit{{Start: 0, End: 5}},
			contentLen: 10,
		},
		{
			name:       "negative start",
			edits:      []fixes.TextEdit{{Start: -1, End: 5}},
			contentLen: 10,
			wantErr:    true,
		},
		{
			name:       "end before start",
			edits:      []fixes.TextEdit{{Start: 5, End: 3}},
			contentLen: 10,
			wantErr:    true,
		},
		{
			name:       "end past content",
			edits:      []fixes.TextEdit{{Start: 0, End: 11}},
			contentLen: 10,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := fixes.ValidateEdits(tt.edits, tt.contentLen)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEdits() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b fixes.TextEdit
		want bool
	}{
		{name: "disjoint", a: fixes.TextEdit{Start: 0, End: 5}, b: fixes.TextEdit{Start: 6, End: 8}, want: false},
		{name: "adjacent", a: fixes.TextEdit{Start: 0, End: 5}, b: fixes.TextEdit{Start: 5, End: 8}, want: false},
		{name: "overlapping", a: fixes.TextEdit{Start: 0, End: 5}, b: fixes.TextEdit{Start: 4, End: 8}, want: true},
		{name: "contained", a: fixes.TextEdit{Start: 0, End: 10}, b: fixes.TextEdit{Start: 2, End: 4}, want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}
