package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hireloop/moderation/internal/ledger"
	"github.com/hireloop/moderation/internal/moderation"
	"github.com/hireloop/moderation/internal/suspension"
)

// ErrInvalidPolicy is returned by Policy.Validate.
var ErrInvalidPolicy = errors.New("config: invalid policy")

// Policy is the tunable moderation policy. Fields omitted from the YAML
// file keep their defaults.
type Policy struct {
	BannedTerms           []string                    `yaml:"banned_terms"`
	MinReverseTokenLength int                         `yaml:"min_reverse_token_length"`
	ResetHorizon          time.Duration               `yaml:"reset_horizon"`
	Suspension            suspension.Policy           `yaml:"suspension"`
	Spam                  moderation.SpamRules        `yaml:"spam"`
	Actions               moderation.ActionThresholds `yaml:"actions"`
	EnforceSpam           bool                        `yaml:"enforce_spam"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{
		BannedTerms:           append([]string(nil), moderation.DefaultBannedTerms...),
		MinReverseTokenLength: moderation.DefaultMinReverseTokenLength,
		ResetHorizon:          ledger.DefaultResetHorizon,
		Suspension:            suspension.DefaultPolicy(),
		Spam:                  moderation.DefaultSpamRules(),
		Actions:               moderation.DefaultActionThresholds(),
	}
}

// LoadPolicy reads a YAML policy over the defaults. An empty path returns
// DefaultPolicy.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return p, fmt.Errorf("config: read policy: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("config: parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Validate rejects out-of-range numbers. An empty banned_terms list is valid
// and matches nothing.
func (p Policy) Validate() error {
	switch {
	case p.MinReverseTokenLength < 1:
		return fmt.Errorf("%w: min_reverse_token_length must be positive", ErrInvalidPolicy)
	case p.ResetHorizon <= 0:
		return fmt.Errorf("%w: reset_horizon must be positive", ErrInvalidPolicy)
	case p.Suspension.WarningThreshold < 1:
		return fmt.Errorf("%w: suspension.warning_threshold must be at least 1", ErrInvalidPolicy)
	case p.Suspension.Duration <= 0:
		return fmt.Errorf("%w: suspension.suspension_duration must be positive", ErrInvalidPolicy)
	case p.Spam.SpamThreshold <= 0 || p.Spam.MaxScore < p.Spam.SpamThreshold:
		return fmt.Errorf("%w: spam.spam_threshold must be in (0, max_score]", ErrInvalidPolicy)
	}
	return nil
}

// Matcher builds the banned-term matcher described by the policy.
func (p Policy) Matcher() *moderation.Matcher {
	return moderation.NewMatcher(p.BannedTerms, moderation.WithMinReverseTokenLength(p.MinReverseTokenLength))
}

// Scorer builds the spam scorer described by the policy.
func (p Policy) Scorer() *moderation.Scorer {
	return moderation.NewScorer(p.Spam)
}

// Assessor builds the async review assessor described by the policy.
func (p Policy) Assessor() *moderation.Assessor {
	return moderation.NewAssessor(p.Spam, p.Actions)
}

// LedgerTTL returns the Redis TTL for ledger entries: the configured value,
// raised when needed so an idle entry outlives both its newest violation's
// reset horizon and any suspension. adjusted reports whether it was raised.
func (p Policy) LedgerTTL(configured time.Duration) (ttl time.Duration, adjusted bool) {
	floor := p.ResetHorizon + p.Suspension.Duration
	if configured < floor {
		return floor, true
	}
	return configured, false
}
