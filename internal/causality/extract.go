// Package causality turns unstructured source text into a weighted causal graph
// around a prediction-market event and derives outcome probabilities from it.
//
// The pipeline is:
//
//	Extract      phrase patterns -> cause/effect relations per source
//	BuildGraph   event + sources + relations -> nodes and edges
//	FindPath     DFS from every factor node to the event node
//	ScorePath    product of edge strengths with 0.9^(hops-1) decay
//	Predict      chain signals -> per-chain probability -> Aggregate
//
// Everything in this package is pure computation over in-memory inputs. A graph
// is built fresh for every request and nothing is retained between calls.
package causality

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rewired-gh/causaloracle/internal/models"
)

const (
	// minTextLength is the shortest text worth scanning.
	minTextLength = 20
	// maxRelationsPerSource bounds the relations kept for one source.
	maxRelationsPerSource = 10
	// minEntityLength rejects cleaned phrases of this many characters or fewer.
	minEntityLength = 3
	// maxEntityLength truncates cleaned phrases.
	maxEntityLength = 100
	// effectScanWindow is how far past a cause phrase an effect is looked for.
	effectScanWindow = 200
	// defaultEffect names an effect that could not be found in the text.
	defaultEffect = "outcome"
)

// phrase matches a run of words inside one clause.
const phrase = `[\p{L}\p{N}_'’%$ -]{3,80}`

// pattern is one regular expression of a category. causeGroup and effectGroup are
// submatch indexes; effectGroup 0 means the pattern carries no explicit effect.
type pattern struct {
	re          *regexp.Regexp
	causeGroup  int
	effectGroup int
}

// category is a family of phrase patterns sharing a relation type and base confidence.
type category struct {
	kind       models.RelationType
	confidence float64
	patterns   []pattern
}

func infix(verbs string) *regexp.Regexp {
	// \b is ASCII-only in RE2, so a cause may also start after any non-letter.
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(` + phrase + `?)\s+(?:` + verbs + `)\s+(` + phrase + `)`)
}

func prefix(markers string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + markers + `)\s+(` + phrase + `)`)
}

// categories are scanned in this order; the order decides which duplicate survives.
var categories = []category{
	{
		kind:       models.RelationDirect,
		confidence: 0.8,
		patterns: []pattern{
			{re: prefix(`because(?:\s+of)?|due\s+to|caused\s+by|driven\s+by|as\s+a\s+result\s+of|owing\s+to`), causeGroup: 1},
			{re: infix(`causes|caused|cause|results\s+in|resulted\s+in|result\s+in|triggers|triggered|trigger|drives|drove|fuels|fueled|fuelled`), causeGroup: 1, effectGroup: 2},
		},
	},
	{
		kind:       models.RelationConditional,
		confidence: 0.7,
		patterns: []pattern{
			{re: regexp.MustCompile(`(?i)\bif\s+(` + phrase + `?)(?:,\s*|\s+then\s+)(` + phrase + `)`), causeGroup: 1, effectGroup: 2},
			{re: prefix(`unless|provided\s+that|assuming|in\s+the\s+event\s+that`), causeGroup: 1},
			{re: infix(`depends\s+on|depend\s+on|hinges\s+on|hinge\s+on|is\s+contingent\s+on`), causeGroup: 2, effectGroup: 1},
		},
	},
	{
		kind:       models.RelationTemporal,
		confidence: 0.75,
		patterns: []pattern{
			{re: infix(`leads\s+to|led\s+to|lead\s+to|leading\s+to|paves\s+the\s+way\s+for|paved\s+the\s+way\s+for|precedes|preceded|sets\s+the\s+stage\s+for|set\s+the\s+stage\s+for`), causeGroup: 1, effectGroup: 2},
			{re: regexp.MustCompile(`(?i)\b(?:after|following|in\s+the\s+wake\s+of)\s+(` + phrase + `?),\s*(` + phrase + `)`), causeGroup: 1, effectGroup: 2},
		},
	},
	{
		kind:       models.RelationCorrelation,
		confidence: 0.5,
		patterns: []pattern{
			{re: infix(`is\s+linked\s+to|are\s+linked\s+to|is\s+associated\s+with|are\s+associated\s+with|correlates\s+with|correlate\s+with|is\s+correlated\s+with|are\s+correlated\s+with|coincides\s+with|coincided\s+with|is\s+tied\s+to|are\s+tied\s+to`), causeGroup: 1, effectGroup: 2},
		},
	},
	{
		kind:       models.RelationNegative,
		confidence: 0.7,
		patterns: []pattern{
			{re: infix(`prevents|prevented|prevent|blocks|blocked|block|reduces|reduced|reduce|undermines|undermined|hinders|hindered|stops|stopped|weakens|weakened|hurts|hurt|dampens|dampened`), causeGroup: 1, effectGroup: 2},
			{re: prefix(`despite|in\s+spite\s+of|notwithstanding`), causeGroup: 1},
		},
	},
}

// outcomeHint finds an outcome-indicating sub-phrase in the text following a cause.
var outcomeHint = regexp.MustCompile(`(?i)\b((?:increase[sd]?|decrease[sd]?|rise|rises|rising|rose|fall|falls|fell|decline[sd]?|growth|drop|drops|dropped|gain|gains|loss|losses|surge[sd]?|collapse[sd]?|win|wins|victory|defeat|approval|rejection|success|failure|higher|lower)[\p{L}\p{N}_'’%$ -]{0,40})`)

// Extract scans text for cause/effect phrase patterns and returns at most ten
// relations, strongest first. Confidence is the category's base confidence scaled
// by the source's relevance. Text shorter than 20 characters yields nothing.
func Extract(text string, src models.Source) []models.CausalRelation {
	if utf8.RuneCountInString(text) < minTextLength {
		return nil
	}
	relevance := src.Relevance()

	var relations []models.CausalRelation
	for _, cat := range categories {
		for _, p := range cat.patterns {
			for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
				causeStart, causeEnd := loc[2*p.causeGroup], loc[2*p.causeGroup+1]
				if causeStart < 0 {
					continue
				}
				cause := CleanEntity(text[causeStart:causeEnd])

				var effect string
				if p.effectGroup > 0 && loc[2*p.effectGroup] >= 0 {
					effect = CleanEntity(text[loc[2*p.effectGroup]:loc[2*p.effectGroup+1]])
				} else {
					effect = inferEffect(text, causeEnd)
				}

				if entityLength(cause) <= minEntityLength || entityLength(effect) <= minEntityLength {
					continue
				}

				relations = append(relations, models.CausalRelation{
					Cause:       cause,
					Effect:      effect,
					Confidence:  models.Clamp(cat.confidence*relevance, 0, 1),
					Type:        cat.kind,
					Temporal:    TemporalTag(text[loc[0]:loc[1]], text),
					SourceTitle: src.Title,
				})
			}
		}
	}

	relations = Dedupe(relations)
	sort.SliceStable(relations, func(i, j int) bool {
		return relations[i].Confidence > relations[j].Confidence
	})
	if len(relations) > maxRelationsPerSource {
		relations = relations[:maxRelationsPerSource]
	}
	return relations
}

// inferEffect looks for an outcome-indicating phrase after the cause, falling back
// to the literal "outcome".
func inferEffect(text string, from int) string {
	if m := outcomeHint.FindStringSubmatch(runePrefix(text[from:], effectScanWindow)); m != nil {
		if effect := CleanEntity(m[1]); entityLength(effect) > minEntityLength {
			return effect
		}
	}
	return defaultEffect
}

func entityLength(s string) int {
	return utf8.RuneCountInString(s)
}

// Dedupe drops relations whose lower-cased (cause, effect) pair was already seen.
// The first occurrence wins.
func Dedupe(relations []models.CausalRelation) []models.CausalRelation {
	if len(relations) == 0 {
		return relations
	}
	seen := make(map[[2]string]bool, len(relations))
	out := make([]models.CausalRelation, 0, len(relations))
	for _, r := range relations {
		key := [2]string{strings.ToLower(r.Cause), strings.ToLower(r.Effect)}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
