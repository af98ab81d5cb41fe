package text

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// sentinelRe matches a masking sentinel emitted by Mask and consumed by
// Unmask: ⟪MSK{i}⟫.
var sentinelRe = regexp.MustCompile(`⟪MSK(\d+)⟫`)

func sentinel(i int) string {
	return fmt.Sprintf("⟪MSK%d⟫", i)
}

// MaskingRecord is the ordered list of original substrings captured during
// masking. Occurrence i of a sentinel in model output maps to Originals[i].
type MaskingRecord struct {
	Originals []string
}

// Mask replaces runs of digits, punctuation/symbols, and emoji (per the
// enabled Options) with positional sentinel tokens, leaving letters and
// surrounding whitespace untouched so Unmask can invert the transform
// exactly.
func Mask(s string, opts Options) (string, MaskingRecord) {
	if !opts.MaskDigits && !opts.MaskPunct && !opts.MaskEmoji {
		return s, MaskingRecord{}
	}

	runes := []rune(s)
	var out strings.Builder
	var originals []string

	i := 0
	for i < len(runes) {
		r := runes[i]
		if isMaskable(r, opts) {
			j := i
			for j < len(runes) && isMaskable(runes[j], opts) {
				j++
			}
			run := string(runes[i:j])
			out.WriteString(sentinel(len(originals)))
			originals = append(originals, run)
			i = j
			continue
		}
		out.WriteRune(r)
		i++
	}

	return out.String(), MaskingRecord{Originals: originals}
}

func isMaskable(r rune, opts Options) bool {
	switch {
	case opts.MaskDigits && unicode.IsDigit(r):
		return true
	case opts.MaskPunct && (unicode.IsPunct(r) || isASCIISymbol(r)):
		return true
	case opts.MaskEmoji && isEmoji(r):
		return true
	default:
		return false
	}
}

func isASCIISymbol(r rune) bool {
	return unicode.IsSymbol(r) && !isEmoji(r)
}

// isEmoji approximates emoji detection via the common Unicode emoji
// blocks; good enough to round-trip the symbols a translation request is
// likely to contain without pulling in a dedicated emoji-data dependency.
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // misc symbols/pictographs, emoticons, transport, supplemental
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x2190 && r <= 0x21FF: // arrows (used in some emoji sequences)
		return false
	case r == 0x2764 || r == 0x2B50 || r == 0x2705 || r == 0x274C:
		return true
	default:
		return false
	}
}

// Unmask substitutes each sentinel in s with its positional original.
// Unmatched sentinel indices are removed. A degenerate repetition of the
// same sentinel id (more occurrences than the record has originals for
// that id, i.e. more than one) collapses to the first occurrence, since
// the model is expected to emit each sentinel exactly once.
func Unmask(s string, rec MaskingRecord) string {
	if len(rec.Originals) == 0 && !sentinelRe.MatchString(s) {
		return s
	}

	seen := make(map[int]bool)
	return sentinelRe.ReplaceAllStringFunc(s, func(match string) string {
		sub := sentinelRe.FindStringSubmatch(match)
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx < 0 || idx >= len(rec.Originals) {
			return ""
		}
		if seen[idx] {
			return ""
		}
		seen[idx] = true
		return rec.Originals[idx]
	})
}
