// Package classifier maps comment text to a discrete category, tone and a
// handful of flags via ordered keyword rules. Classification is pure and
// total: unmatched text falls through to CategoryGeneral.
package classifier

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Category is the discrete comment class that drives prompt selection.
type Category string

const (
	CategoryCrisis    Category = "crisis"
	CategoryGreeting  Category = "saludo"
	CategoryAbundance Category = "abundancia"
	CategoryDistress  Category = "dolor"
	CategoryDoubt     Category = "duda_hostilidad"
	CategoryGratitude Category = "gratitud"
	CategoryGeneral   Category = "general"
)

// Tone hints the composer toward a register.
type Tone string

const (
	ToneNeutral       Tone = "neutral"
	ToneSkepticalSoft Tone = "skeptical-soft"
	ToneVulnerable    Tone = "vulnerable"
	TonePositive      Tone = "positive"
	ToneCrisis        Tone = "crisis"
)

// Result is the per-comment classification outcome. It is transient:
// computed, consumed by the composer, never persisted.
type Result struct {
	Category       Category
	Tone           Tone
	MentionsTitle  bool
	IsQuestion     bool
	NeedsSoftReply bool
	Figures        []string
}

const greetingMaxWords = 3

var crisisKeywords = []string{
	"no aguanto", "suicidio", "morir", "matarme", "acabar con todo", "quitarme la vida",
}

var abundanceKeywords = []string{
	"dinero", "trabajo", "empleo", "abundancia", "prosperidad", "riqueza",
	"económico", "negocio", "plata",
}

var abundanceTitleKeywords = []string{
	"abundancia", "prosperidad", "dinero", "riqueza",
}

var distressKeywords = []string{
	"dolor", "triste", "depresión", "ansiedad", "solo", "sola", "sufr", "angustia",
}

var doubtKeywords = []string{
	"mentira", "falso", "estafa", "no funciona", "fake",
}

var gratitudeKeywords = []string{
	"gracias", "bendiciones", "amén", "sí acepto", "recibo", "aleluya", "gloria a dios",
}

var negationTokens = []string{"no", "nunca", "jamás"}

var sarcasmMarkers = []string{"jaja", "jeje", "no creo", "estafa", "falso", "fake"}

// Figures recognized for optional inclusion in the generated text.
// Multi-word names are matched as substrings, single words as whole tokens
// (so "adiós" does not count as a mention of God).
var knownFigures = []string{
	"jesús", "jesucristo", "cristo", "dios", "virgen", "maría",
	"espíritu santo", "san judas", "arcángel miguel",
}

// rule is one entry of the ordered classification table. First match wins;
// later rules never overwrite an earlier assignment.
type rule struct {
	category Category
	tone     Tone
	match    func(text, title string) bool
}

var rules = []rule{
	{CategoryCrisis, ToneCrisis, func(text, _ string) bool {
		return containsAny(text, crisisKeywords)
	}},
	{CategoryGreeting, ToneNeutral, func(text, _ string) bool {
		return wordCount(text) <= greetingMaxWords
	}},
	{CategoryAbundance, ToneNeutral, func(text, title string) bool {
		return containsAny(text, abundanceKeywords) || containsAny(title, abundanceTitleKeywords)
	}},
	{CategoryDistress, ToneVulnerable, func(text, _ string) bool {
		return containsAny(text, distressKeywords)
	}},
	{CategoryDoubt, ToneSkepticalSoft, func(text, _ string) bool {
		return containsAny(text, doubtKeywords)
	}},
	{CategoryGratitude, TonePositive, func(text, _ string) bool {
		return containsAny(text, gratitudeKeywords)
	}},
}

// Classify evaluates the ordered rule table against the comment text and,
// where a rule considers it, the parent video title.
func Classify(text, videoTitle string) Result {
	lower := strings.ToLower(text)
	titleLower := strings.ToLower(videoTitle)

	res := Result{
		Category:      CategoryGeneral,
		Tone:          ToneNeutral,
		MentionsTitle: sharedTitleKeywords(lower, titleLower) > 0,
		IsQuestion:    strings.ContainsAny(text, "?¿"),
		Figures:       detectFigures(lower),
	}

	for _, r := range rules {
		if r.match(lower, titleLower) {
			res.Category = r.category
			res.Tone = r.tone
			break
		}
	}

	if res.Category != CategoryCrisis && needsSoftReply(lower, titleLower) {
		res.NeedsSoftReply = true
		res.Tone = ToneSkepticalSoft
	}

	return res
}

// Valid reports whether a comment is processable at all: 4-500 characters,
// no URLs, not a digits-only string.
func Valid(text string) bool {
	trimmed := strings.TrimSpace(text)
	if n := utf8.RuneCountInString(trimmed); n <= 3 || n > 500 {
		return false
	}
	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "http://") || strings.Contains(lower, "https://") || strings.Contains(lower, "www.") {
		return false
	}
	if digitsOnly(trimmed) {
		return false
	}
	return true
}

// needsSoftReply flags comments that negate the video's premise or read as
// sarcasm. The composer must answer these with a universal warm message
// regardless of category.
func needsSoftReply(text, title string) bool {
	for _, marker := range sarcasmMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	if !hasAnyToken(text, negationTokens) {
		return false
	}
	return sharedTitleKeywords(text, title) > 1
}

func detectFigures(text string) []string {
	tokens := tokenSet(text)
	var found []string
	for _, figure := range knownFigures {
		if strings.ContainsRune(figure, ' ') {
			if strings.Contains(text, figure) {
				found = append(found, figure)
			}
		} else if tokens[figure] {
			found = append(found, figure)
		}
	}
	return found
}

// sharedTitleKeywords counts distinct title words of four or more runes that
// also appear in the comment text.
func sharedTitleKeywords(text, title string) int {
	if title == "" {
		return 0
	}
	seen := make(map[string]bool)
	count := 0
	for _, word := range splitWords(title) {
		if len([]rune(word)) < 4 || seen[word] {
			continue
		}
		seen[word] = true
		if strings.Contains(text, word) {
			count++
		}
	}
	return count
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func hasAnyToken(s string, tokens []string) bool {
	set := tokenSet(s)
	for _, tok := range tokens {
		if set[tok] {
			return true
		}
	}
	return false
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range splitWords(s) {
		set[w] = true
	}
	return set
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func digitsOnly(s string) bool {
	seen := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		if !unicode.IsDigit(r) {
			return false
		}
		seen = true
	}
	return seen
}
