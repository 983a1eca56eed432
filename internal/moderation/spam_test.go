package moderation

import (
	"strings"
	"testing"
)

func TestScoreSpam_Rules(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		score   int
		isSpam  bool
		reasons int
	}{
		{"clean application", "Hello, I am interested in the developer position.", 0, false, 0},
		{"three keywords", "click here to buy now and get free money", 60, true, 3},
		{"caps run", "This is an URGENT opportunity for you", 15, false, 1},
		{"url prefix", "Apply at https://example.com today please", 15, false, 1},
		{"www prefix", "Apply at www.example.com today please", 15, false, 1},
		{"link flood", "see http://a.io http://b.io https://c.io http://d.io now", 45, false, 2},
		{"char flood", "Sooooo good opportunity here", 15, false, 1},
		{"hate keyword", "heil hitler everyone in this thread", 40, false, 1},
		{"short text", "hi", 10, false, 1},
		{"empty text", "", 10, false, 1},
		{"exactly ten chars", "0123456789", 0, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ScoreSpam(tt.input)
			if v.Score != tt.score {
				t.Errorf("ScoreSpam(%q).Score = %d, want %d (reasons=%v)", tt.input, v.Score, tt.score, v.Reasons)
			}
			if v.IsSpam != tt.isSpam {
				t.Errorf("ScoreSpam(%q).IsSpam = %v, want %v", tt.input, v.IsSpam, tt.isSpam)
			}
			if len(v.Reasons) != tt.reasons {
				t.Errorf("ScoreSpam(%q) reasons = %v, want %d entries", tt.input, v.Reasons, tt.reasons)
			}
		})
	}
}

func TestScoreSpam_Capped(t *testing.T) {
	v := ScoreSpam("CLICK HERE BUY NOW FREE MONEY ACT NOW 100% FREE RISK FREE")
	if v.Score != 100 {
		t.Errorf("Score = %d, want capped 100 (reasons=%v)", v.Score, v.Reasons)
	}
	if !v.IsSpam {
		t.Error("expected IsSpam")
	}
}

func TestScoreSpam_ReasonOrder(t *testing.T) {
	v := ScoreSpam("buy now at www.shop.example NOW!!!!!")
	if v.Score != 50 || !v.IsSpam {
		t.Fatalf("verdict = %+v, want score 50 and spam", v)
	}
	prefixes := []string{"spam keyword", "pattern url", "pattern char_flood"}
	if len(v.Reasons) != len(prefixes) {
		t.Fatalf("reasons = %v, want %d", v.Reasons, len(prefixes))
	}
	for i, p := range prefixes {
		if !strings.HasPrefix(v.Reasons[i], p) {
			t.Errorf("reasons[%d] = %q, want prefix %q", i, v.Reasons[i], p)
		}
	}
}

func TestScoreSpam_Monotonic(t *testing.T) {
	text := "Offre d'emploi pour développeur"
	prev := ScoreSpam(text).Score
	for _, kw := range DefaultSpamKeywords {
		text += " " + kw
		score := ScoreSpam(text).Score
		if score < prev {
			t.Fatalf("score decreased from %d to %d after adding %q", prev, score, kw)
		}
		if score > 100 {
			t.Fatalf("score %d exceeds cap", score)
		}
		prev = score
	}
	if prev != 100 {
		t.Errorf("final score = %d, want 100", prev)
	}
}

func TestScorer_CustomRules(t *testing.T) {
	rules := DefaultSpamRules()
	rules.Keywords = []string{"Urgent Hiring"}
	rules.HateKeywords = nil
	rules.KeywordWeight = 55

	v := NewScorer(rules).Score("urgent hiring for a backend role")
	if v.Score != 55 || !v.IsSpam {
		t.Errorf("verdict = %+v, want score 55 and spam", v)
	}
}

func TestClassifyAction_Boundaries(t *testing.T) {
	tests := []struct {
		spam, hate int
		want       Action
	}{
		{70, 0, ActionRemove},
		{69, 0, ActionHide},
		{50, 0, ActionHide},
		{49, 0, ActionFlag},
		{30, 0, ActionFlag},
		{29, 0, ActionApprove},
		{0, 80, ActionRemove},
		{0, 79, ActionHide},
		{0, 60, ActionHide},
		{0, 59, ActionFlag},
		{0, 40, ActionFlag},
		{0, 39, ActionApprove},
		{0, 0, ActionApprove},
		{100, 100, ActionRemove},
	}

	for _, tt := range tests {
		got := ClassifyAction(tt.spam, tt.hate)
		if got.Action != tt.want {
			t.Errorf("ClassifyAction(%d, %d) = %s, want %s", tt.spam, tt.hate, got.Action, tt.want)
		}
	}
}

func TestClassifyAction_Reasons(t *testing.T) {
	want := map[Action]string{
		ActionRemove:  "Violates content policy",
		ActionHide:    "Suspicious content",
		ActionFlag:    "Needs manual review",
		ActionApprove: "Passed moderation",
	}
	for _, pair := range [][2]int{{90, 0}, {55, 0}, {35, 0}, {0, 0}} {
		got := ClassifyAction(pair[0], pair[1])
		if got.Reason != want[got.Action] {
			t.Errorf("ClassifyAction(%d, %d).Reason = %q, want %q", pair[0], pair[1], got.Reason, want[got.Action])
		}
	}
}

func TestAssess(t *testing.T) {
	a := NewAssessor(DefaultSpamRules(), DefaultActionThresholds())

	got := a.Assess("heil hitler and sieg heil to all of you")
	if got.HateScore != 80 {
		t.Errorf("HateScore = %d, want 80", got.HateScore)
	}
	if got.Action.Action != ActionRemove {
		t.Errorf("Action = %s, want remove", got.Action.Action)
	}

	got = a.Assess("Nous recrutons un développeur Go confirmé à Nantes")
	if got.Action.Action != ActionApprove || got.HateScore != 0 {
		t.Errorf("clean assessment = %+v, want approve", got)
	}
}

func TestHasCharFlood(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"aaaa", false},
		{"aaaaa", true},
		{"wow!!!!!", true},
		{"heeeel no", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := hasCharFlood(tt.input); got != tt.want {
			t.Errorf("hasCharFlood(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
