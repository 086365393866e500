// Package langdetect picks a translation direction for a transcript.
//
// It is a two-way heuristic, not language identification: a transcript is
// either Cyrillic-heavy (Russian) or it is not, and that alone decides
// whether the bot offers a translation into English or into Russian.
package langdetect

// Lang is a coarse two-way language tag.
type Lang string

const (
	LangRU Lang = "ru"
	LangEN Lang = "en"
)

// cyrillicThreshold is the share of Cyrillic letters among all letters at
// which text counts as Russian. The boundary is inclusive.
const cyrillicThreshold = 0.30

// Detect classifies text by the ratio of Cyrillic letters to all Latin and
// Cyrillic letters. Text with no letters at all classifies as English.
// Deterministic, no external state.
func Detect(text string) Lang {
	var letters, cyrillic int

	for _, r := range text {
		switch {
		case r >= 'а' && r <= 'я', r >= 'А' && r <= 'Я', r == 'ё', r == 'Ё':
			cyrillic++
			letters++
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			letters++
		}
	}

	if letters == 0 {
		return LangEN
	}

	if float64(cyrillic)/float64(letters) >= cyrillicThreshold {
		return LangRU
	}
	return LangEN
}

// Opposite returns the translation target for a detected language.
func Opposite(l Lang) Lang {
	if l == LangRU {
		return LangEN
	}
	return LangRU
}

// Name returns the Russian display name of a language, used in button
// labels and message headers.
func Name(l Lang) string {
	if l == LangRU {
		return "русский"
	}
	return "английский"
}

// Valid reports whether s is a known language tag. Used when parsing
// callback tokens, which arrive from the outside world.
func Valid(s string) bool {
	return Lang(s) == LangRU || Lang(s) == LangEN
}
