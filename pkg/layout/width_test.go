package layout

import (
	"testing"

	"github.com/sheetshot/sheetshot/pkg/style"
)

func TestWidthDemand(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		class style.FamilyClass
		want  float64
	}{
		{
			name: "empty content",
			text: "",
			want: EmptyCellWidth,
		},
		{
			name: "short text floors at minimum",
			text: "Hi",
			want: MinCellWidth,
		},
		{
			name: "letters above the floor",
			text: "abcdefghijklm",
			want: 13*8 + CellPadding,
		},
		{
			name: "digits weigh like letters",
			text: "1234567890123",
			want: 13*8 + CellPadding,
		},
		{
			name: "cjk runs wide",
			text: "東京タワーから見た景色",
			want: 11*12 + CellPadding,
		},
		{
			name: "hangul under the floor",
			text: "안녕하세요",
			want: MinCellWidth,
		},
		{
			name: "spaces weigh less",
			text: "the quick brown fox jumps",
			want: 21*8 + 4*4 + CellPadding,
		},
		{
			name: "longest line wins",
			text: "hi\nthe quick brown fox jumps",
			want: 21*8 + 4*4 + CellPadding,
		},
		{
			name: "blank lines skipped",
			text: "\n \n",
			want: EmptyCellWidth,
		},
		{
			name: "carriage returns trimmed",
			text: "aaaaaaaaaaaaa\r\nb",
			want: 13*8 + CellPadding,
		},
		{
			name:  "monospace spaces weigh full",
			text:  "aaaaaaaaaa aaa",
			class: style.FamilyMonospace,
			want:  13*8 + 8 + CellPadding,
		},
		{
			name: "punctuation weighs light",
			text: "@@@@@@@@@@@@@@@@@",
			want: 17*6 + CellPadding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WidthDemand(tt.text, tt.class); got != tt.want {
				t.Errorf("WidthDemand(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestHeightDemand(t *testing.T) {
	tests := []struct {
		name string
		text string
		wrap bool
		want float64
	}{
		{
			name: "empty content",
			text: "",
			want: MinRowHeight,
		},
		{
			name: "single line",
			text: "hello",
			want: MinRowHeight,
		},
		{
			name: "newlines ignored without wrap",
			text: "a\nb\nc",
			want: MinRowHeight,
		},
		{
			name: "wrap counts lines",
			text: "a\nb\nc",
			wrap: true,
			want: 3*LineHeight + RowPadding,
		},
		{
			name: "wrapped single line stays floored",
			text: "hello",
			wrap: true,
			want: MinRowHeight,
		},
		{
			name: "wrapped empty stays floored",
			text: "",
			wrap: true,
			want: MinRowHeight,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HeightDemand(tt.text, tt.wrap); got != tt.want {
				t.Errorf("HeightDemand(%q, %v) = %v, want %v", tt.text, tt.wrap, got, tt.want)
			}
		})
	}
}

func TestIsWide(t *testing.T) {
	tests := []struct {
		name string
		r    rune
		want bool
	}{
		{name: "ascii letter", r: 'A', want: false},
		{name: "digit", r: '7', want: false},
		{name: "accented latin", r: 'é', want: false},
		{name: "cjk ideograph", r: '語', want: true},
		{name: "hiragana", r: 'か', want: true},
		{name: "hangul syllable", r: '한', want: true},
		{name: "fullwidth latin", r: 'Ａ', want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isWide(tt.r); got != tt.want {
				t.Errorf("isWide(%q) = %v, want %v", tt.r, got, tt.want)
			}
		})
	}
}
