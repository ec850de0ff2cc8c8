package extractor

import (
	"regexp"
	"strings"
)

var (
	controlCharsRE = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	spacesRE       = regexp.MustCompile(`[ \t]+`)
	blankLinesRE   = regexp.MustCompile(`\n\s*\n`)
)

// CleanText strips control characters and collapses runs of whitespace while
// preserving the blank-line paragraph boundaries the chunker splits on.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = controlCharsRE.ReplaceAllString(text, "")
	text = spacesRE.ReplaceAllString(text, " ")
	text = blankLinesRE.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
