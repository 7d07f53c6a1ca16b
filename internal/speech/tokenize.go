package speech

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxChunkRunes is the longest text the translate_tts endpoint accepts per request
const MaxChunkRunes = 100

// sentenceEnd reports punctuation after which a chunk may be cut.
// U+0964 and U+0965 are the Devanagari danda and double danda.
func sentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ',', ';', ':', '\n', '।', '॥', '…':
		return true
	}
	return false
}

// Tokenize normalises text to NFC and splits it into chunks of at most
// MaxChunkRunes runes, preferring punctuation, then whitespace, as cut
// points. Blank chunks are dropped.
func Tokenize(text string) []string {
	text = norm.NFC.String(text)

	var chunks []string
	for _, sentence := range splitSentences(text) {
		for _, part := range splitWords(sentence, MaxChunkRunes) {
			if p := strings.TrimSpace(part); p != "" {
				chunks = append(chunks, p)
			}
		}
	}
	return chunks
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if sentenceEnd(r) {
			end := i + len(string(r))
			out = append(out, text[start:end])
			start = end
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// splitWords packs words greedily into pieces of at most limit runes; a
// single word longer than limit is cut at rune boundaries.
func splitWords(sentence string, limit int) []string {
	if len([]rune(strings.TrimSpace(sentence))) <= limit {
		return []string{sentence}
	}

	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}

	for _, word := range strings.FieldsFunc(sentence, unicode.IsSpace) {
		w := []rune(word)
		for len(w) > limit {
			flush()
			out = append(out, string(w[:limit]))
			w = w[limit:]
		}
		switch {
		case len(cur) == 0:
			cur = append(cur, w...)
		case len(cur)+1+len(w) <= limit:
			cur = append(cur, ' ')
			cur = append(cur, w...)
		default:
			flush()
			cur = append(cur, w...)
		}
	}
	flush()
	return out
}
