package docflip

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	xunicode "golang.org/x/text/encoding/unicode"
)

// decodeText returns data as UTF-8. Valid UTF-8 is returned unchanged;
// anything else is run through charset detection and the most coherent
// decoding wins.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), "\ufeff")
	}

	results, err := chardet.NewTextDetector().DetectAll(data)
	if err != nil || len(results) == 0 {
		return strings.ToValidUTF8(string(data), "")
	}

	bestScore := -1 << 31
	best := ""
	for _, r := range results {
		enc := lookupEncoding(r.Charset)
		if enc == nil {
			continue
		}
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		text := string(decoded)
		if score := scoreDecodedText(text, r.Confidence); score > bestScore {
			bestScore = score
			best = text
		}
	}
	if best == "" {
		return strings.ToValidUTF8(string(data), "")
	}
	return best
}

// scoreDecodedText favors decodings that yield letters and penalizes
// replacement and control characters.
func scoreDecodedText(text string, confidence int) int {
	score := confidence
	for _, r := range text {
		switch {
		case r == utf8.RuneError:
			score -= 10
		case unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' && r != '\f':
			score -= 5
		case unicode.IsLetter(r):
			score++
		}
	}
	return score
}

// lookupEncoding maps a charset name reported by chardet to a decoder.
func lookupEncoding(charset string) encoding.Encoding {
	switch strings.ToLower(charset) {
	case "utf-16le":
		return xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM)
	case "utf-16be":
		return xunicode.UTF16(xunicode.BigEndian, xunicode.IgnoreBOM)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil
	}
	return enc
}
