// Package language classifies article text into a BCP 47 base language code.
// Detection is deterministic: script ranges decide non-Latin languages, and a
// stop-word dictionary scores Latin-script candidates. Text below the minimum
// length, or text no dictionary recognizes, gets the "und" sentinel.
package language

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Unknown is returned when the text is too short or ambiguous to classify.
const Unknown = "und"

// MinTextLength is the minimum number of letters required before detection
// is attempted. Shorter inputs return Unknown.
const MinTextLength = 20

// stopwords maps a language code to high-frequency function words. A Latin
// script text is assigned the language whose words it contains most of.
var stopwords = map[string][]string{
	"en": {"the", "and", "of", "to", "in", "that", "is", "was", "for", "with", "on", "as", "are", "said", "has", "have"},
	"de": {"der", "die", "das", "und", "ist", "von", "den", "nicht", "mit", "ein", "eine", "auf", "für", "sich", "wird"},
	"fr": {"le", "la", "les", "des", "est", "une", "dans", "que", "pour", "qui", "sur", "avec", "pas", "aux", "été"},
	"es": {"el", "la", "los", "las", "que", "una", "por", "con", "para", "del", "más", "como", "pero", "sus", "está"},
	"it": {"il", "la", "che", "di", "e", "un", "una", "per", "del", "della", "con", "sono", "più", "anche", "questo"},
	"pt": {"o", "a", "os", "as", "que", "uma", "com", "para", "não", "mais", "dos", "das", "como", "foi", "são"},
	"nl": {"de", "het", "een", "van", "en", "dat", "is", "op", "te", "zijn", "voor", "met", "niet", "aan", "naar"},
}

// Detect classifies text and returns a normalized base language code,
// or Unknown. Identical input always yields an identical result.
func Detect(text string) string {
	letters := 0
	counts := map[string]int{}
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if code := scriptLanguage(r); code != "" {
			counts[code]++
		}
	}
	if letters < MinTextLength {
		return Unknown
	}

	// Japanese text mixes kanji with kana; any meaningful kana presence
	// means the Han characters belong to Japanese, not Chinese.
	if counts["ja"] > 0 && counts["ja"]*10 >= counts["zh"] {
		counts["ja"] += counts["zh"]
		counts["zh"] = 0
	}

	// A non-Latin script covering a third of the letters decides outright.
	best, bestCount := "", 0
	for code, n := range counts {
		if n > bestCount {
			best, bestCount = code, n
		}
	}
	if best != "" && bestCount*3 >= letters {
		return normalize(best)
	}

	if code := detectLatin(text); code != "" {
		return normalize(code)
	}
	return Unknown
}

// detectLatin scores the text against each stop-word dictionary and returns
// the highest-scoring language, with ties broken by code for determinism.
func detectLatin(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(words) == 0 {
		return ""
	}

	present := make(map[string]bool, len(words))
	for _, w := range words {
		present[w] = true
	}

	best, bestScore := "", 0
	for code, list := range stopwords {
		score := 0
		for _, sw := range list {
			if present[sw] {
				score++
			}
		}
		if score > bestScore || (score == bestScore && score > 0 && code < best) {
			best, bestScore = code, score
		}
	}
	if bestScore < 2 {
		return ""
	}
	return best
}

func scriptLanguage(r rune) string {
	switch {
	case unicode.Is(unicode.Han, r):
		return "zh"
	case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
		return "ja"
	case unicode.Is(unicode.Hangul, r):
		return "ko"
	case unicode.Is(unicode.Cyrillic, r):
		return "ru"
	case unicode.Is(unicode.Arabic, r):
		return "ar"
	case unicode.Is(unicode.Hebrew, r):
		return "he"
	case unicode.Is(unicode.Thai, r):
		return "th"
	case unicode.Is(unicode.Devanagari, r):
		return "hi"
	case unicode.Is(unicode.Greek, r):
		return "el"
	}
	return ""
}

// normalize canonicalizes a code through the BCP 47 matcher, so config hints
// like "EN-us" and detector output share one representation.
func normalize(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return Unknown
	}
	base, _ := tag.Base()
	return base.String()
}

// Normalize canonicalizes an externally supplied language hint (for example
// a feed's language metadata). Empty or unparseable hints return Unknown.
func Normalize(hint string) string {
	if strings.TrimSpace(hint) == "" {
		return Unknown
	}
	return normalize(hint)
}
