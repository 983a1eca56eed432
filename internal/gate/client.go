package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/hireloop/moderation/internal/suspension"
)

// Dialog is the warning dialog contract consumed by the presentation layer.
type Dialog struct {
	TriggeredWords         []string `json:"triggeredWords"`
	WarningCount           int      `json:"warningCount"`
	WarningLimit           int      `json:"warningLimit"`
	IsTemporarilySuspended bool     `json:"isTemporarilySuspended"`
	RemainingTimeMs        int64    `json:"remainingTimeMs"`
}

// WarningLabel renders "X/3".
func (d Dialog) WarningLabel() string {
	return fmt.Sprintf("%d/%d", d.WarningCount, d.WarningLimit)
}

// RemainingLabel renders the suspension time left as "N minute(s)".
func (d Dialog) RemainingLabel() string {
	return suspension.FormatRemaining(time.Duration(d.RemainingTimeMs) * time.Millisecond)
}

// CanResubmit reports whether the "modify and resubmit" action is enabled.
func (d Dialog) CanResubmit() bool {
	return !d.IsTemporarilySuspended
}

// Client is the optimistic pre-submission gate. Its verdict is advisory:
// the server gate decides.
type Client struct {
	gate *Gate
	now  func() time.Time
}

// NewClient wraps g. now defaults to time.Now.
func NewClient(g *Gate, now func() time.Time) *Client {
	if now == nil {
		now = time.Now
	}
	return &Client{gate: g, now: now}
}

// PreSubmit checks a draft. When the draft is refused it returns the dialog
// to show; the draft itself stays editable.
func (c *Client) PreSubmit(ctx context.Context, actorID, text string) (bool, *Dialog) {
	v := c.gate.Check(ctx, actorID, text, c.now())
	if v.Allowed() {
		return true, nil
	}
	return false, DialogFor(v)
}

// DialogFor builds the dialog for a refused verdict.
func DialogFor(v Verdict) *Dialog {
	d := &Dialog{
		TriggeredWords:         v.TriggeredTerms,
		WarningCount:           v.Warnings,
		WarningLimit:           v.Threshold,
		IsTemporarilySuspended: v.Suspended(),
	}
	if d.TriggeredWords == nil {
		d.TriggeredWords = []string{}
	}
	if d.IsTemporarilySuspended && v.Remaining > 0 {
		d.RemainingTimeMs = v.Remaining.Milliseconds()
	}
	return d
}
