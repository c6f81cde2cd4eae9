package moderation

import (
	"unicode"

	"subcast/domain"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Filter censors blocklisted words in outbound content before fanout.
// Matching is case-insensitive over a lowercased view of the text; the
// original casing and spacing of everything else is preserved.
type Filter struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// NewFilter builds the Aho-Corasick automaton from the blocklist.
// An empty blocklist yields a pass-through filter.
func NewFilter(words []string, replacement rune) (*Filter, error) {
	if len(words) == 0 {
		return &Filter{replacement: replacement}, nil
	}
	patterns := make([][]rune, len(words))
	for i, word := range words {
		patterns[i] = lowerRunes([]rune(word))
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Filter{matcher: m, replacement: replacement}, nil
}

// Apply returns a copy of the item with title and summary censored.
func (f *Filter) Apply(item domain.ContentItem) domain.ContentItem {
	item.Title = f.Censor(item.Title)
	item.Summary = f.Censor(item.Summary)
	return item
}

// Censor replaces every blocklisted span with the replacement rune.
func (f *Filter) Censor(text string) string {
	if f.matcher == nil || text == "" {
		return text
	}
	runes := []rune(text)
	spans := f.matcher.MultiPatternSearch(lowerRunes(runes), false)
	if len(spans) == 0 {
		return text
	}
	for _, span := range spans {
		for i := span.Pos; i < span.Pos+len(span.Word) && i < len(runes); i++ {
			runes[i] = f.replacement
		}
	}
	return string(runes)
}

func lowerRunes(in []rune) []rune {
	out := make([]rune, len(in))
	for i, r := range in {
		out[i] = unicode.ToLower(r)
	}
	return out
}
