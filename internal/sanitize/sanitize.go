// Package sanitize cleans configuration and client-supplied text before it
// leaves the process through MCP responses or the audit log. Scenario files
// are free-form YAML, so phase descriptions and tool parameters may carry
// control characters or markup that a client would render or interpret.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxTextLength is the maximum length of a sanitized description.
const MaxTextLength = 500

// MaxLineLength is the maximum length of a sanitized single-line value.
const MaxLineLength = 200

var (
	// reXMLTag matches XML/HTML tags including those with attributes and self-closing tags.
	// It also matches XML processing instructions like <?xml ...?>.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reMarkdownHeading matches markdown headings at the start of a line (# , ## , etc.).
	reMarkdownHeading = regexp.MustCompile(`(?m)^#{1,6}\s+`)

	// reTripleBacktick matches triple (or more) backtick sequences used in code fences.
	reTripleBacktick = regexp.MustCompile("```+")

	reExcessiveNewlines = regexp.MustCompile(`\n{3,}`)
	reWhitespaceRun     = regexp.MustCompile(`\s+`)
)

// Text sanitizes a multi-line description such as a rollout phase note.
//
// The pipeline runs in this order:
//  1. Strip null bytes and ASCII control characters (except \n, \t)
//  2. Strip XML/HTML tags
//  3. Replace markdown headings with list markers
//  4. Collapse triple backticks to a single backtick
//  5. Collapse excessive newlines (3+ -> 2)
//  6. Trim leading/trailing whitespace
//  7. Truncate to MaxTextLength
func Text(input string) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input, true)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reMarkdownHeading.ReplaceAllString(s, "- ")
	s = reTripleBacktick.ReplaceAllString(s, "`")
	s = reExcessiveNewlines.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)
	return truncate(s, MaxTextLength)
}

// Line sanitizes a value that must stay on one line, such as an audit log
// parameter or error message. Every control character is dropped and runs of
// whitespace collapse to a single space.
func Line(input string) string {
	if input == "" {
		return ""
	}

	s := reWhitespaceRun.ReplaceAllString(input, " ")
	s = stripControlChars(s, false)
	s = strings.TrimSpace(s)
	return truncate(s, MaxLineLength)
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// stripControlChars removes ASCII control characters (0x00-0x1F and DEL).
// Newline and tab survive when keepLayout is set.
func stripControlChars(s string, keepLayout bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			if keepLayout && (r == '\n' || r == '\t') {
				b.WriteRune(r)
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
