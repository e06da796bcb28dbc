package news

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jonreiter/govader"

	"ForexPulse/internal/domain/models"
)

// Scorer returns a compound polarity score in [-1, 1].
type Scorer interface {
	Score(text string) float64
}

// VaderScorer scores text with the VADER lexicon.
type VaderScorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderScorer() *VaderScorer {
	return &VaderScorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *VaderScorer) Score(text string) float64 {
	return v.analyzer.PolarityScores(text).Compound
}

// Analyzer classifies a news item's text with fixed rule tables.
// Analyze is deterministic and total: every input yields one analysis.
type Analyzer struct {
	scorer Scorer
}

func NewAnalyzer(scorer Scorer) *Analyzer {
	if scorer == nil {
		scorer = NewVaderScorer()
	}
	return &Analyzer{scorer: scorer}
}

func (a *Analyzer) Analyze(title, summary string) models.NewsAnalysis {
	text := strings.TrimSpace(title + ". " + summary)
	lowered := strings.ToLower(text)

	score := a.scorer.Score(text)
	label := SentimentLabel(score)
	topics := DetectTopics(lowered)
	assets := MapAssets(lowered, topics)

	compressFrom := summary
	if compressFrom == "" {
		compressFrom = title
	}

	return models.NewsAnalysis{
		SummaryCompressed: CompressSummary(compressFrom),
		SentimentScore:    score,
		SentimentLabel:    label,
		ImpactLevel:       ImpactLevel(lowered, topics),
		ImpactedAssets:    assets,
		Topics:            topics,
		Rationale:         Rationale(assets, topics, label),
		IsFundamental:     hasAny(topics, fundamentalTopics),
	}
}

// DetectTopics counts keyword hits per topic in lowercased text. A text with
// no hits gets the macro topic with zero hits.
func DetectTopics(lowered string) map[string]int {
	topics := make(map[string]int)
	for _, rule := range topicRules {
		hits := 0
		for _, kw := range rule.Keywords {
			if strings.Contains(lowered, kw) {
				hits++
			}
		}
		if hits > 0 {
			topics[rule.Topic] = hits
		}
	}
	if len(topics) == 0 {
		topics[TopicMacro] = 0
	}
	return topics
}

// MapAssets unions alias matches with the assets of every present topic. The
// result is sorted and never empty.
func MapAssets(lowered string, topics map[string]int) []string {
	set := make(map[string]struct{})
	for _, a := range assetAliases {
		if strings.Contains(lowered, a.Needle) {
			set[a.Symbol] = struct{}{}
		}
	}
	for _, rule := range topicRules {
		if _, ok := topics[rule.Topic]; !ok {
			continue
		}
		for _, s := range rule.Assets {
			set[s] = struct{}{}
		}
	}
	if len(set) == 0 {
		return []string{DefaultAsset}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func ImpactLevel(lowered string, topics map[string]int) string {
	if containsAny(lowered, highImpactKeywords) {
		return models.ImpactHigh
	}
	if containsAny(lowered, mediumImpactKeywords) || hasAny(topics, mediumImpactTopics) {
		return models.ImpactMedium
	}
	return models.ImpactLow
}

func Rationale(assets []string, topics map[string]int, label string) string {
	for _, r := range rationaleRules {
		if _, ok := topics[r.Topic]; ok {
			return r.Text
		}
	}
	return fmt.Sprintf(genericRationale, strings.Join(assets, ", "), label)
}

// CompressSummary collapses whitespace and keeps the first two sentences when
// the text has more than two.
func CompressSummary(text string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if cleaned == "" {
		return ""
	}
	var sentences []string
	start := 0
	for i := 1; i < len(cleaned); i++ {
		if cleaned[i] == ' ' && isSentenceEnd(cleaned[i-1]) {
			sentences = append(sentences, cleaned[start:i])
			start = i + 1
		}
	}
	sentences = append(sentences, cleaned[start:])
	if len(sentences) > 2 {
		return sentences[0] + " " + sentences[1]
	}
	return cleaned
}

func isSentenceEnd(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func hasAny(topics map[string]int, names []string) bool {
	for _, n := range names {
		if _, ok := topics[n]; ok {
			return true
		}
	}
	return false
}
