package extractor

import "testing"

func TestCleanText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "strips control chars", in: "a\x00b\x07c", want: "abc"},
		{name: "collapses spaces and tabs", in: "a  \t b", want: "a b"},
		{name: "normalizes blank lines", in: "para one\n \t\npara two", want: "para one\n\npara two"},
		{name: "trims edges", in: "  body  \n", want: "body"},
		{name: "keeps single newlines", in: "line one\nline two", want: "line one\nline two"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanText(tc.in); got != tc.want {
				t.Fatalf("CleanText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
