package causality

import (
	"regexp"
	"strings"

	"github.com/rewired-gh/causaloracle/internal/models"
)

var (
	leadingArticle = regexp.MustCompile(`(?i)^(?:the|a|an)\s+`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// CleanEntity normalises an extracted phrase: trims it, strips one leading article,
// collapses whitespace runs and truncates to 100 characters.
func CleanEntity(s string) string {
	s = strings.TrimSpace(s)
	s = leadingArticle.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return truncate(s, maxEntityLength)
}

// truncate cuts s to at most max runes and trims trailing space left by the cut.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}

// runePrefix returns the first n runes of s.
func runePrefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// tense keyword sets, checked in order; the first set that matches wins.
var tenses = []struct {
	tag models.Temporal
	re  *regexp.Regexp
}{
	{models.TemporalPast, regexp.MustCompile(`(?i)\b(?:was|were|had|occurred|happened|previous)\b`)},
	{models.TemporalPresent, regexp.MustCompile(`(?i)\b(?:is|are|current|now|ongoing)\b`)},
	{models.TemporalFuture, regexp.MustCompile(`(?i)\b(?:will|may|could|might|expected|forecast|predicted)\b`)},
}

// temporalContext is how much of the source text is inspected for tense.
const temporalContext = 200

// TemporalTag classifies the tense of a matched phrase using the phrase itself and
// the first 200 characters of the source text.
func TemporalTag(match, text string) models.Temporal {
	text = runePrefix(text, temporalContext)
	scope := match + " " + text
	for _, t := range tenses {
		if t.re.MatchString(scope) {
			return t.tag
		}
	}
	return models.TemporalUnknown
}
