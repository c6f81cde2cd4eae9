package domain

import (
	"strings"
	"time"
	"unicode"
)

type ChannelID string

// Channel is a named external content source being tracked.
// Identity is immutable once registered; only the cursor moves, and only
// forward, written by that channel's dispatcher alone.
type Channel struct {
	ID        ChannelID
	Name      string
	URL       string
	Cursor    int64 // sequence of the last fully dispatched item
	CreatedAt time.Time
}

// ChannelMetadata is what the feed provider knows about a source
// before it is registered.
type ChannelMetadata struct {
	Name string
	URL  string
}

// ChannelIDFromIdentifier derives a stable channel ID from a raw
// identifier (a slug like "tech-news" or a source URL). URL schemes and
// leading @ are stripped so "https://example.com/tech", "example.com/tech"
// and "@example.com/tech" collapse to the same ID.
func ChannelIDFromIdentifier(raw string) ChannelID {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "@")
	s = strings.Trim(s, "/")

	var b strings.Builder
	b.Grow(len(s))
	lastDash := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteRune('-')
			lastDash = true
		}
	}
	return ChannelID(strings.Trim(b.String(), "-"))
}

// LooksLikeURL reports whether a raw identifier should be resolved as a
// source URL rather than searched by name.
func LooksLikeURL(raw string) bool {
	s := strings.TrimSpace(strings.ToLower(raw))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") ||
		(strings.Contains(s, ".") && strings.Contains(s, "/"))
}
