// Package textsplit breaks long generated text into message-sized parts.
//
// Telegram caps a single message at 4096 characters; we pack segments up to
// a configurable limit below that, preferring paragraph boundaries, then
// sentence boundaries, then word boundaries. Lengths are measured in runes
// to match how the transport counts message characters.
package textsplit

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrInvalidLimit is returned when Split is called with a non-positive limit.
var ErrInvalidLimit = errors.New("textsplit: limit must be positive")

// sentenceEnd matches a sentence terminator followed by whitespace. The
// capture group marks where the sentence itself ends.
var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

// Split breaks text into parts of at most limit runes each.
//
// Packing is greedy: paragraphs (separated by a blank line) are accumulated
// until the next one would overflow the limit. A paragraph that alone
// exceeds the limit is packed sentence by sentence, and a sentence that
// alone exceeds the limit is packed word by word. A single word longer than
// the limit is emitted verbatim as its own oversized part; words are never
// cut in the middle.
//
// Every emitted part is trimmed of surrounding whitespace. Text that
// already fits is returned as a single untouched part, so Split("") yields
// one empty part.
func Split(text string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}

	if utf8.RuneCountInString(text) <= limit {
		return []string{text}, nil
	}

	var parts []string
	var current string

	for _, paragraph := range strings.Split(text, "\n\n") {
		switch {
		case utf8.RuneCountInString(paragraph) > limit:
			if current != "" {
				parts = append(parts, strings.TrimSpace(current))
				current = ""
			}
			current = packSentences(paragraph, limit, &parts, current)
		case current != "" && utf8.RuneCountInString(current)+utf8.RuneCountInString(paragraph)+2 > limit:
			parts = append(parts, strings.TrimSpace(current))
			current = paragraph
		case current == "":
			current = paragraph
		default:
			current += "\n\n" + paragraph
		}
	}

	if strings.TrimSpace(current) != "" {
		parts = append(parts, strings.TrimSpace(current))
	}

	return parts, nil
}

// packSentences splits an oversized paragraph into sentences and packs them
// greedily, descending to word packing for sentences that are themselves too
// long. Returns the unflushed remainder.
func packSentences(paragraph string, limit int, parts *[]string, current string) string {
	for _, sentence := range splitSentences(paragraph) {
		switch {
		case utf8.RuneCountInString(sentence) > limit:
			current = packWords(sentence, limit, parts, current)
		case current != "" && utf8.RuneCountInString(current)+utf8.RuneCountInString(sentence)+1 > limit:
			*parts = append(*parts, strings.TrimSpace(current))
			current = sentence
		case current == "":
			current = sentence
		default:
			current += " " + sentence
		}
	}
	return current
}

// packWords packs an oversized sentence word by word. A word longer than the
// limit still goes out whole: an URL or a run of digits is more useful
// intact than truncated.
func packWords(sentence string, limit int, parts *[]string, current string) string {
	for _, word := range strings.Fields(sentence) {
		if current != "" && utf8.RuneCountInString(current)+utf8.RuneCountInString(word)+1 > limit {
			*parts = append(*parts, strings.TrimSpace(current))
			current = word
			continue
		}
		if current == "" {
			current = word
		} else {
			current += " " + word
		}
	}
	return current
}

// splitSentences cuts text after [.!?] runs followed by whitespace. The
// terminator stays with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringSubmatchIndex(text, -1) {
		sentences = append(sentences, text[last:loc[3]])
		last = loc[1]
	}
	if last < len(text) {
		sentences = append(sentences, text[last:])
	}
	return sentences
}

// Label formats the part counter suffix used in outgoing message headers,
// e.g. Label(2, 3) -> "(часть 2/3)".
func Label(index, total int) string {
	return fmt.Sprintf("(часть %d/%d)", index, total)
}
