package docflip

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultPlaceholder stands in for a page that yielded no legible text.
const DefaultPlaceholder = "[page contains no legible text]"

var (
	reTrailingWhitespace = regexp.MustCompile(`[ \t\p{Zs}]+\n`)
	reMultipleNewlines   = regexp.MustCompile(`\n{3,}`)
	reCRLF               = regexp.MustCompile(`\r\n?`)
	reHyphenBreak        = regexp.MustCompile(`(\p{L})-\n(\p{Ll})`)
	reSoftHyphenBreak    = regexp.MustCompile(`\x{00AD}[ \t]*\n`)
)

// normalizePageText cleans the text a reader extracted from one page:
// - Ensure valid UTF-8
// - Normalize line endings (CRLF -> LF)
// - Strip control characters other than \n and \t (form feeds included)
// - Strip trailing whitespace from each line
// - Rejoin words split by a soft hyphen at a line end
// - Keep a hard hyphen at a line end but join the two lines
// - Collapse 3+ consecutive newlines to 2
// - Trim leading/trailing whitespace
func normalizePageText(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	s = reCRLF.ReplaceAllString(s, "\n")
	s = reSoftHyphenBreak.ReplaceAllString(s, "")

	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == '\u00ad' || r == '\ufeff' {
			return -1
		}
		return r
	}, s)

	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	s = reTrailingWhitespace.ReplaceAllString(s, "\n")
	s = reHyphenBreak.ReplaceAllString(s, "$1-$2")
	s = reMultipleNewlines.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// pageUnits maps extracted page texts to exactly one unit per page. Pages
// with no legible text become placeholder.
func pageUnits(pages []string, placeholder string) []string {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	units := make([]string, len(pages))
	for i, p := range pages {
		p = normalizePageText(p)
		if !hasLegibleText(p) {
			p = placeholder
		}
		units[i] = p
	}
	return units
}

// hasLegibleText reports whether s holds at least one letter, digit, symbol
// or punctuation mark.
func hasLegibleText(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return true
		}
	}
	return false
}
