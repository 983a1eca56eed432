package moderation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Compiled once at package init and safe for concurrent use.
var (
	// urlPrefixPattern matches the start of an http/https or www. link.
	urlPrefixPattern = regexp.MustCompile(`(?i)(https?://|www\.)`)

	// capsPattern matches a run of five or more upper-case ASCII letters.
	capsPattern = regexp.MustCompile(`[A-Z]{5,}`)
)

// structuralCheck pairs a detection function with the name used in reasons.
type structuralCheck struct {
	name  string
	match func(string) bool
}

// structuralChecks run against the raw text, in this order.
var structuralChecks = []structuralCheck{
	{name: "url", match: urlPrefixPattern.MatchString},
	{name: "caps", match: capsPattern.MatchString},
	{name: "char_flood", match: hasCharFlood},
}

// hasCharFlood returns true if text contains 5 or more consecutive identical
// characters. RE2 has no backreferences, so this is a linear scan.
func hasCharFlood(text string) bool {
	const threshold = 5

	count := 1
	prev := rune(-1)
	for _, r := range text {
		if r == prev {
			count++
			if count >= threshold {
				return true
			}
		} else {
			count = 1
			prev = r
		}
	}
	return false
}

// SpamRules configures the spam heuristic. Weights are additive and the
// total is capped at MaxScore.
type SpamRules struct {
	Keywords     []string `yaml:"spam_keywords"`
	HateKeywords []string `yaml:"hate_keywords"`

	KeywordWeight      int `yaml:"keyword_weight"`
	PatternWeight      int `yaml:"pattern_weight"`
	LinkFloodWeight    int `yaml:"link_flood_weight"`
	LinkFloodThreshold int `yaml:"link_flood_threshold"`
	HateWeight         int `yaml:"hate_weight"`
	ShortTextWeight    int `yaml:"short_text_weight"`
	ShortTextLength    int `yaml:"short_text_length"`
	SpamThreshold      int `yaml:"spam_threshold"`
	MaxScore           int `yaml:"max_score"`
}

// DefaultSpamRules returns the production scoring rules.
func DefaultSpamRules() SpamRules {
	return SpamRules{
		Keywords:           append([]string(nil), DefaultSpamKeywords...),
		HateKeywords:       append([]string(nil), DefaultHateKeywords...),
		KeywordWeight:      20,
		PatternWeight:      15,
		LinkFloodWeight:    30,
		LinkFloodThreshold: 3,
		HateWeight:         40,
		ShortTextWeight:    10,
		ShortTextLength:    10,
		SpamThreshold:      50,
		MaxScore:           100,
	}
}

// Scorer scores free text for spam and hate signals.
type Scorer struct {
	rules    SpamRules
	keywords []string
	hate     []string
}

// NewScorer builds a Scorer. Keywords are lower-cased and de-duplicated.
func NewScorer(rules SpamRules) *Scorer {
	return &Scorer{
		rules:    rules,
		keywords: lowerUnique(rules.Keywords),
		hate:     lowerUnique(rules.HateKeywords),
	}
}

func lowerUnique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Score evaluates every rule in order and returns the capped verdict. Each
// rule that fires adds one entry to Reasons.
func (s *Scorer) Score(text string) SpamVerdict {
	lower := strings.ToLower(text)
	score := 0
	var reasons []string

	for _, kw := range s.keywords {
		if strings.Contains(lower, kw) {
			score += s.rules.KeywordWeight
			reasons = append(reasons, fmt.Sprintf("spam keyword %q (+%d)", kw, s.rules.KeywordWeight))
		}
	}

	for _, sc := range structuralChecks {
		if sc.match(text) {
			score += s.rules.PatternWeight
			reasons = append(reasons, fmt.Sprintf("pattern %s (+%d)", sc.name, s.rules.PatternWeight))
		}
	}

	if links := countLinks(lower); links > s.rules.LinkFloodThreshold {
		score += s.rules.LinkFloodWeight
		reasons = append(reasons, fmt.Sprintf("%d links (+%d)", links, s.rules.LinkFloodWeight))
	}

	for _, kw := range s.hate {
		if strings.Contains(lower, kw) {
			score += s.rules.HateWeight
			reasons = append(reasons, fmt.Sprintf("hate keyword %q (+%d)", kw, s.rules.HateWeight))
		}
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(text)); n < s.rules.ShortTextLength {
		score += s.rules.ShortTextWeight
		reasons = append(reasons, fmt.Sprintf("short text %d chars (+%d)", n, s.rules.ShortTextWeight))
	}

	if score > s.rules.MaxScore {
		score = s.rules.MaxScore
	}

	return SpamVerdict{
		IsSpam:  score >= s.rules.SpamThreshold,
		Score:   score,
		Reasons: reasons,
	}
}

// HateScore is HateWeight per distinct hate keyword, capped at MaxScore.
func (s *Scorer) HateScore(text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, kw := range s.hate {
		if strings.Contains(lower, kw) {
			score += s.rules.HateWeight
		}
	}
	if score > s.rules.MaxScore {
		score = s.rules.MaxScore
	}
	return score
}

func countLinks(lower string) int {
	return strings.Count(lower, "http://") + strings.Count(lower, "https://")
}

// ActionThresholds are the cut-points used by Classify. Tiers are evaluated
// from most to least severe; the first tier reached wins.
type ActionThresholds struct {
	RemoveSpam int `yaml:"remove_spam"`
	RemoveHate int `yaml:"remove_hate"`
	HideSpam   int `yaml:"hide_spam"`
	HideHate   int `yaml:"hide_hate"`
	FlagSpam   int `yaml:"flag_spam"`
	FlagHate   int `yaml:"flag_hate"`
}

// DefaultActionThresholds returns the production cut-points.
func DefaultActionThresholds() ActionThresholds {
	return ActionThresholds{
		RemoveSpam: 70, RemoveHate: 80,
		HideSpam: 50, HideHate: 60,
		FlagSpam: 30, FlagHate: 40,
	}
}

// Classify maps a (spam, hate) score pair to a moderation action.
func (t ActionThresholds) Classify(spamScore, hateScore int) ModerationAction {
	switch {
	case spamScore >= t.RemoveSpam || hateScore >= t.RemoveHate:
		return ModerationAction{Action: ActionRemove, Reason: "Violates content policy"}
	case spamScore >= t.HideSpam || hateScore >= t.HideHate:
		return ModerationAction{Action: ActionHide, Reason: "Suspicious content"}
	case spamScore >= t.FlagSpam || hateScore >= t.FlagHate:
		return ModerationAction{Action: ActionFlag, Reason: "Needs manual review"}
	default:
		return ModerationAction{Action: ActionApprove, Reason: "Passed moderation"}
	}
}

var (
	defaultScorer     = NewScorer(DefaultSpamRules())
	defaultThresholds = DefaultActionThresholds()
)

// ScoreSpam scores text with the default rules.
func ScoreSpam(text string) SpamVerdict {
	return defaultScorer.Score(text)
}

// ClassifyAction classifies with the default thresholds.
func ClassifyAction(spamScore, hateScore int) ModerationAction {
	return defaultThresholds.Classify(spamScore, hateScore)
}

// Assessor runs the full async review: spam verdict, hate score and action.
type Assessor struct {
	scorer     *Scorer
	thresholds ActionThresholds
}

// NewAssessor builds an Assessor.
func NewAssessor(rules SpamRules, thresholds ActionThresholds) *Assessor {
	return &Assessor{scorer: NewScorer(rules), thresholds: thresholds}
}

// Assess scores text and classifies it.
func (a *Assessor) Assess(text string) Assessment {
	verdict := a.scorer.Score(text)
	hate := a.scorer.HateScore(text)
	return Assessment{
		Spam:      verdict,
		HateScore: hate,
		Action:    a.thresholds.Classify(verdict.Score, hate),
	}
}
