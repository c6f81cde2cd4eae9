package workers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"subcast/contract"
	"subcast/domain"
	"subcast/errors"
	"subcast/moderation"
	"subcast/repositories"
)

// Ensure *DispatcherWorker implements the contract.Worker interface at compile time.
var _ contract.Worker = (*DispatcherWorker)(nil)

// RetryPolicy bounds the per-subscriber retry loop on transient failures.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Multiplier  float64
	Cap         time.Duration
}

// DispatcherWorker fans one channel's items out to its subscribers.
// Items are processed one at a time to preserve cursor ordering; within an
// item, deliveries run in parallel across subscribers with a bounded
// degree. One subscriber's failure never blocks the others.
type DispatcherWorker struct {
	channelID     domain.ChannelID
	queue         <-chan domain.ContentItem
	subscriptions repositories.ISubscriptionRepository
	deliveries    repositories.IDeliveryRepository
	channels      repositories.IChannelRepository
	transport     contract.Transport
	filter        *moderation.Filter
	retry         RetryPolicy
	parallelism   int
	log           *slog.Logger

	// OnStatus, when set, observes the terminal status of every item.
	OnStatus func(item domain.ContentItem, status domain.ItemStatus)
}

func NewDispatcherWorker(channelID domain.ChannelID, queue <-chan domain.ContentItem,
	subscriptions repositories.ISubscriptionRepository, deliveries repositories.IDeliveryRepository,
	channels repositories.IChannelRepository, transport contract.Transport,
	filter *moderation.Filter, retry RetryPolicy, parallelism int, log *slog.Logger) *DispatcherWorker {
	if parallelism < 1 {
		parallelism = 1
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &DispatcherWorker{
		channelID:     channelID,
		queue:         queue,
		subscriptions: subscriptions,
		deliveries:    deliveries,
		channels:      channels,
		transport:     transport,
		filter:        filter,
		retry:         retry,
		parallelism:   parallelism,
		log:           log,
	}
}

func (w *DispatcherWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-w.queue:
			if !ok {
				w.log.Debug("Queue closed", "channel", w.channelID)
				return nil
			}
			// A fault on one item must never crash the loop.
			status := w.dispatch(ctx, item)
			if w.OnStatus != nil {
				w.OnStatus(item, status)
			}
		}
	}
}

// dispatch runs one item through the state machine:
// Pending -> Delivering -> {Delivered, PartiallyDelivered, Failed}.
// The subscriber set is snapshotted at dispatch time; subscribers added
// later are not retried for this item. The cursor only advances once the
// item reaches a terminal delivery status, so a Failed item (store access
// broken before any attempt) is picked up again by the next poll.
func (w *DispatcherWorker) dispatch(ctx context.Context, item domain.ContentItem) domain.ItemStatus {
	subs, err := w.subscriptions.ListSubscribers(item.ChannelID)
	if err != nil {
		w.log.Error("Subscriber snapshot failed", "channel", item.ChannelID, "item", item.ID, "error", err)
		return domain.StatusFailed
	}

	w.log.Debug("Delivering item", "channel", item.ChannelID, "item", item.ID, "subscribers", len(subs))
	if w.filter != nil {
		item = w.filter.Apply(item)
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		succeeded int
		failed    int
	)
	sem := make(chan struct{}, w.parallelism)
	for _, sub := range subs {
		wg.Add(1)
		go func(subscriber domain.SubscriberID) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			ok := w.deliverOne(ctx, subscriber, item)
			mu.Lock()
			if ok {
				succeeded++
			} else {
				failed++
			}
			mu.Unlock()
		}(sub.SubscriberID)
	}
	wg.Wait()

	status := domain.StatusForOutcome(succeeded, failed)
	if err := w.channels.AdvanceCursor(item.ChannelID, item.Seq); err != nil &&
		!stderrors.Is(err, errors.ErrCursorRegression) {
		w.log.Warn("Cursor advance failed", "channel", item.ChannelID, "item", item.ID, "error", err)
	}

	w.log.Info("Item dispatched",
		"channel", item.ChannelID,
		"item", item.ID,
		"status", status.String(),
		"succeeded", succeeded,
		"failed", failed)
	return status
}

// deliverOne pushes one item to one subscriber, retrying transient failures
// with jittered backoff up to the attempt cap. Every outcome lands in the
// delivery record so a re-dispatch (crash, restart) skips completed work.
func (w *DispatcherWorker) deliverOne(ctx context.Context, subscriber domain.SubscriberID, item domain.ContentItem) bool {
	delivered, err := w.deliveries.IsDelivered(item.ChannelID, item.ID, subscriber)
	if err != nil {
		w.log.Error("Delivery record lookup failed", "subscriber", subscriber, "item", item.ID, "error", err)
		return false
	}
	if delivered {
		return true
	}

	var lastErr error
	var delay time.Duration
	attempts := 0
	for attempt := 1; attempt <= w.retry.MaxAttempts; attempt++ {
		attempts = attempt
		err := w.transport.Deliver(ctx, subscriber, item)
		if err == nil {
			w.record(item, subscriber, true, attempts, nil)
			return true
		}
		lastErr = err

		if errors.IsPermanent(err) || ctx.Err() != nil || attempt == w.retry.MaxAttempts {
			break
		}

		delay = jitterBackoff(delay, w.retry.Base, w.retry.Multiplier, w.retry.Cap)
		select {
		case <-ctx.Done():
			w.record(item, subscriber, false, attempts, lastErr)
			return false
		case <-time.After(delay):
		}
	}

	w.record(item, subscriber, false, attempts, lastErr)
	return false
}

func (w *DispatcherWorker) record(item domain.ContentItem, subscriber domain.SubscriberID,
	delivered bool, attempts int, lastErr error) {
	record := domain.DeliveryRecord{
		ChannelID:    item.ChannelID,
		ItemID:       item.ID,
		SubscriberID: subscriber,
		Delivered:    delivered,
		Attempts:     attempts,
	}
	if lastErr != nil {
		record.LastError = lastErr.Error()
	}
	if err := w.deliveries.Record(record); err != nil {
		w.log.Error("Recording delivery outcome failed", "subscriber", subscriber, "item", item.ID, "error", err)
	}
}
