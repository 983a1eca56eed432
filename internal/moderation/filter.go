// Package moderation provides content filtering and moderation capabilities.
// It screens user-generated text (job postings, comments, profile fields)
// for banned terms and spam signals before the content is published.
package moderation

import "strings"

// DefaultMinReverseTokenLength is the shortest token allowed to match a
// banned term by being contained in it. Single letters would otherwise match
// nearly every term.
const DefaultMinReverseTokenLength = 2

// Matcher detects banned terms in free text. It is immutable after
// construction and safe for concurrent use.
type Matcher struct {
	terms      []string
	minReverse int
}

// MatcherOption customises a Matcher.
type MatcherOption func(*Matcher)

// WithMinReverseTokenLength overrides DefaultMinReverseTokenLength. A value
// of 1 gives fully symmetric containment.
func WithMinReverseTokenLength(n int) MatcherOption {
	return func(m *Matcher) {
		if n > 0 {
			m.minReverse = n
		}
	}
}

// NewMatcher builds a Matcher over terms. Terms are normalized the same way
// input text is; empty and duplicate terms are dropped. The caller's slice is
// never modified.
func NewMatcher(terms []string, opts ...MatcherOption) *Matcher {
	m := &Matcher{minReverse: DefaultMinReverseTokenLength}
	for _, opt := range opts {
		opt(m)
	}

	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		n := strings.Join(strings.Fields(Normalize(t)), " ")
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		m.terms = append(m.terms, n)
	}
	return m
}

// NewDefaultMatcher builds a Matcher over DefaultBannedTerms.
func NewDefaultMatcher() *Matcher {
	return NewMatcher(DefaultBannedTerms)
}

// Terms returns a copy of the normalized term list.
func (m *Matcher) Terms() []string {
	out := make([]string, len(m.terms))
	copy(out, m.terms)
	return out
}

// Detect returns the distinct banned terms found in text, in order of first
// discovery. A term matches a token when the token contains the term, or when
// the term contains a token of at least the reverse-match length.
func (m *Matcher) Detect(text string) []string {
	tokens := Tokenize(text)
	if len(tokens) == 0 || len(m.terms) == 0 {
		return nil
	}

	var found []string
	for _, term := range m.terms {
		for _, tok := range tokens {
			if m.matches(term, tok) {
				found = append(found, term)
				break
			}
		}
	}
	return found
}

func (m *Matcher) matches(term, token string) bool {
	if strings.Contains(token, term) {
		return true
	}
	return len(token) >= m.minReverse && strings.Contains(term, token)
}

// Clean returns the values that contain no banned term, preserving order.
// Used for short list-shaped fields such as skill tags and interests.
func (m *Matcher) Clean(values []string) []string {
	clean := make([]string, 0, len(values))
	for _, v := range values {
		if len(m.Detect(v)) == 0 {
			clean = append(clean, v)
		}
	}
	return clean
}

// Detect is a convenience wrapper building a one-off Matcher over terms.
func Detect(text string, terms []string) []string {
	return NewMatcher(terms).Detect(text)
}
