package domain

import "time"

// ContentItem is one unit of channel content to fan out.
// Seq is the source-provided sequence (published time in nanoseconds);
// items of a channel are dispatched in strictly increasing Seq order.
type ContentItem struct {
	ChannelID ChannelID
	ID        string
	Seq       int64
	Title     string
	Link      string
	Summary   string
	Published time.Time
	Language  string // ISO 639-1 tag detected from title/summary, may be empty
}
