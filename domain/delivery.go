package domain

import "time"

// ItemStatus is the per-item dispatch state machine:
// Pending -> Delivering -> {Delivered, PartiallyDelivered, Failed}.
type ItemStatus int

const (
	StatusPending ItemStatus = iota
	StatusDelivering
	StatusDelivered
	StatusPartiallyDelivered
	StatusFailed
)

func (s ItemStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDelivering:
		return "delivering"
	case StatusDelivered:
		return "delivered"
	case StatusPartiallyDelivered:
		return "partially_delivered"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transitions are allowed.
func (s ItemStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusPartiallyDelivered || s == StatusFailed
}

// DeliveryRecord is durable proof of one delivery attempt outcome for one
// (item, subscriber) pair. At most one successful record ever exists per
// pair; re-dispatch after a crash consults it to skip completed work.
type DeliveryRecord struct {
	ChannelID    ChannelID
	ItemID       string
	SubscriberID SubscriberID
	Delivered    bool
	Attempts     int
	LastError    string
	At           time.Time
}

// StatusForOutcome folds per-subscriber results into the item's terminal
// status. An item with zero subscribers at snapshot time counts as
// delivered: there was nobody left to reach. An all-failed item is still
// PartiallyDelivered, not Failed: every outcome is durably on record, so
// the cursor may advance. Failed is reserved for dispatches that never got
// a subscriber snapshot and must be re-polled.
func StatusForOutcome(succeeded, failed int) ItemStatus {
	if succeeded+failed == 0 || failed == 0 {
		return StatusDelivered
	}
	return StatusPartiallyDelivered
}
