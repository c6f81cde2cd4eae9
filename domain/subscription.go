package domain

import "time"

// Subscription ties one subscriber to one channel.
// At most one active subscription exists per pair.
type Subscription struct {
	SubscriberID SubscriberID
	ChannelID    ChannelID
	CreatedAt    time.Time
}
