package text

import "unicode/utf8"

// sentenceTerminators are rune terminators that end a sentence while being
// preserved in the split output. CJK full-width terminators are included
// so zh/ja targets segment correctly.
var sentenceTerminators = map[rune]bool{
	'.': true, '!': true, '?': true, '…': true,
	'。': true, '！': true, '？': true,
}

// SplitSentences splits s on sentence terminators, preserving the
// terminator with the sentence it ends. Any resulting sentence longer
// than MaxSentenceChars is further cut at the nearest whitespace inside
// the window (or hard-cut if no whitespace is found).
func SplitSentences(s string, opts Options) []string {
	var sentences []string
	runes := []rune(s)
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if sentenceTerminators[r] {
			// Swallow any immediately repeated terminators ("...", "?!").
			j := i + 1
			for j < len(runes) && sentenceTerminators[runes[j]] {
				j++
			}
			sentences = append(sentences, string(runes[start:j]))
			start = j
			i = j - 1
		}
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}

	if len(sentences) == 0 {
		sentences = []string{s}
	}

	var result []string
	for _, sent := range sentences {
		result = append(result, cutToWindow(sent, opts.MaxSentenceChars)...)
	}
	return result
}

// cutToWindow breaks sentence into pieces no longer than maxChars,
// preferring to break on whitespace near the boundary.
func cutToWindow(sentence string, maxChars int) []string {
	if maxChars <= 0 {
		return []string{sentence}
	}
	runes := []rune(sentence)
	if len(runes) <= maxChars {
		return []string{sentence}
	}

	var pieces []string
	for len(runes) > maxChars {
		cut := maxChars
		for cut > 0 && !isSpaceRune(runes[cut]) {
			cut--
		}
		if cut == 0 {
			cut = maxChars // hard cut, no whitespace in window
		}
		pieces = append(pieces, string(runes[:cut]))
		// Skip the whitespace we split on, if any.
		for cut < len(runes) && isSpaceRune(runes[cut]) {
			cut++
		}
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// Chunk is a packed translation unit: an ordered run of sentences whose
// combined length never exceeds the configured limit.
type Chunk struct {
	ParentIndex int
	Sentences   []string
	CharTotal   int
}

// PackChunks greedily packs sentences (in order) into chunks that never
// cross maxChars. A single sentence already larger than maxChars (which
// SplitSentences should have prevented) becomes its own chunk.
func PackChunks(parentIndex int, sentences []string, maxChars int) []Chunk {
	var chunks []Chunk
	var cur []string
	curLen := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, Chunk{ParentIndex: parentIndex, Sentences: cur, CharTotal: curLen})
		cur = nil
		curLen = 0
	}

	for _, sent := range sentences {
		n := utf8.RuneCountInString(sent)
		if curLen > 0 && curLen+n > maxChars {
			flush()
		}
		cur = append(cur, sent)
		curLen += n
	}
	flush()

	if len(chunks) == 0 {
		chunks = []Chunk{{ParentIndex: parentIndex}}
	}
	return chunks
}
