package domain

import "time"

type SubscriberID string

// Subscriber is an identity that can receive fanout deliveries.
// Created on the first successful subscribe and never deleted; only its
// subscription set shrinks back to empty.
type Subscriber struct {
	ID        SubscriberID
	Private   bool // private chat vs group context
	CreatedAt time.Time
}
