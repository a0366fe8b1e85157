// Package streaming holds the sentence splitter and the frame-by-frame
// output protocol that turns a generator Item into one or more output
// frames.
package streaming

import "unicode/utf8"

const minFragmentRunes = 6

type parenChunk struct {
	text    string
	isParen bool
}

// Split breaks text into speakable fragments:
//   - split on `. 。 ， ！ ？ ~ ,` and the ellipsis, punctuation stays
//     attached to the preceding fragment;
//   - a （…）/(…) run sticks to the immediately preceding fragment, or
//     to the next one if none exists yet;
//   - a fragment is only emitted once it reaches 6 characters, or it is
//     the last fragment — otherwise it is folded into the next one.
//
// Split is a pure function of its input text, so re-splitting the
// concatenation of an already-split list reproduces the same list.
func Split(text string) []string {
	chunks := splitParenChunks(text)

	var tokens []string
	pendingPrefix := ""
	for _, ch := range chunks {
		if ch.isParen {
			if len(tokens) > 0 {
				tokens[len(tokens)-1] += ch.text
			} else {
				pendingPrefix += ch.text
			}
			continue
		}
		frags := splitPlain(ch.text)
		for i, f := range frags {
			if i == 0 && pendingPrefix != "" {
				f = pendingPrefix + f
				pendingPrefix = ""
			}
			tokens = append(tokens, f)
		}
	}
	if pendingPrefix != "" {
		tokens = append(tokens, pendingPrefix)
	}

	return mergeShort(tokens)
}

func splitParenChunks(text string) []parenChunk {
	runes := []rune(text)
	var chunks []parenChunk
	var cur []rune

	i := 0
	for i < len(runes) {
		r := runes[i]
		if r == '（' || r == '(' {
			closeRune := '）'
			if r == '(' {
				closeRune = ')'
			}
			j := i + 1
			for j < len(runes) && runes[j] != closeRune {
				j++
			}
			if j < len(runes) {
				if len(cur) > 0 {
					chunks = append(chunks, parenChunk{text: string(cur)})
					cur = nil
				}
				chunks = append(chunks, parenChunk{text: string(runes[i : j+1]), isParen: true})
				i = j + 1
				continue
			}
		}
		cur = append(cur, r)
		i++
	}
	if len(cur) > 0 {
		chunks = append(chunks, parenChunk{text: string(cur)})
	}
	return chunks
}

func isDelimiter(r rune) bool {
	switch r {
	case '.', '。', '，', '！', '？', '~', ',', '…':
		return true
	default:
		return false
	}
}

// splitPlain splits on delimiter runes, keeping the punctuation (and
// any immediately-repeated copies of it, e.g. a "..." ellipsis)
// attached to the preceding fragment.
func splitPlain(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	var fragments []string
	var cur []rune

	i := 0
	for i < len(runes) {
		r := runes[i]
		cur = append(cur, r)
		if isDelimiter(r) {
			j := i + 1
			for j < len(runes) && runes[j] == r {
				cur = append(cur, runes[j])
				j++
			}
			fragments = append(fragments, string(cur))
			cur = nil
			i = j
			continue
		}
		i++
	}
	if len(cur) > 0 {
		fragments = append(fragments, string(cur))
	}
	return fragments
}

// mergeShort folds any fragment shorter than minFragmentRunes forward
// into the next one, except the last fragment which is always kept.
func mergeShort(tokens []string) []string {
	var out []string
	buffer := ""
	for i, t := range tokens {
		combined := buffer + t
		isLast := i == len(tokens)-1
		if utf8.RuneCountInString(combined) >= minFragmentRunes || isLast {
			out = append(out, combined)
			buffer = ""
		} else {
			buffer = combined
		}
	}
	if buffer != "" {
		out = append(out, buffer)
	}
	return out
}

// StripParens removes （…）/(…) runs from text, for use as TTS input;
// the unstripped text is retained separately as display text.
func StripParens(text string) string {
	chunks := splitParenChunks(text)
	var b []byte
	for _, ch := range chunks {
		if ch.isParen {
			continue
		}
		b = append(b, ch.text...)
	}
	return string(b)
}
