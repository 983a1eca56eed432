package moderation

// Action is the moderation decision for a piece of content.
type Action string

const (
	ActionApprove Action = "approve"
	ActionFlag    Action = "flag"
	ActionHide    Action = "hide"
	ActionRemove  Action = "remove"
)

// ModerationAction pairs an Action with a human-readable reason.
type ModerationAction struct {
	Action Action `json:"action"`
	Reason string `json:"reason"`
}

// SpamVerdict is the outcome of ScoreSpam.
type SpamVerdict struct {
	IsSpam  bool     `json:"isSpam"`
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// Assessment combines the spam verdict, hate score and resulting action for
// one piece of content.
type Assessment struct {
	Spam      SpamVerdict      `json:"spam"`
	HateScore int              `json:"hateScore"`
	Action    ModerationAction `json:"action"`
}

// ModerationRequest is published to moderation.check by the API server
// when accepted content needs async spam review.
type ModerationRequest struct {
	RequestID string `json:"request_id"`
	ActorID   string `json:"actor_id"`
	ContentID string `json:"content_id"`
	Kind      string `json:"kind"` // post | comment | job
	Text      string `json:"text"`
	Ts        int64  `json:"ts"`
}

// ModerationResult is published back with the review outcome.
type ModerationResult struct {
	RequestID string   `json:"request_id"`
	ActorID   string   `json:"actor_id"`
	ContentID string   `json:"content_id"`
	Action    Action   `json:"action"`
	Reason    string   `json:"reason"`
	SpamScore int      `json:"spam_score"`
	HateScore int      `json:"hate_score"`
	Reasons   []string `json:"reasons"`
}
