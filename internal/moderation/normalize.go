package moderation

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ligatures are letters that canonical decomposition leaves intact.
var ligatures = strings.NewReplacer(
	"œ", "oe",
	"æ", "ae",
	"ß", "ss",
)

// foldPool hands out diacritic-folding chains. A transform.Chain keeps
// internal buffers, so each goroutine needs its own.
var foldPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		)
	},
}

// Normalize lower-cases text, folds accented Latin letters to their base
// letter and replaces every remaining character outside [a-z0-9] with a
// space. It never fails: Normalize("") == "".
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	s := ligatures.Replace(strings.ToLower(text))
	s = fold(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func fold(s string) string {
	t := foldPool.Get().(transform.Transformer)
	defer foldPool.Put(t)

	t.Reset()
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Tokenize normalizes text and splits it on runs of whitespace. Empty tokens
// are never returned.
func Tokenize(text string) []string {
	return strings.Fields(Normalize(text))
}
