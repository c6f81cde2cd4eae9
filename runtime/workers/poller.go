package workers

import (
	"context"
	"log/slog"
	"time"

	"subcast/contract"
	"subcast/domain"
	"subcast/repositories"
)

// Ensure *PollerWorker implements the contract.Worker interface at compile time.
var _ contract.Worker = (*PollerWorker)(nil)

// PollerWorker is the long-lived feed poll loop of one channel. Each tick
// it reloads the channel (fresh cursor), asks the provider for newer items
// and pushes them onto the channel's work queue in sequence order.
//
// The queue send blocks when the dispatcher lags, which is the
// backpressure: a slow fanout slows ingestion instead of piling up items.
type PollerWorker struct {
	channelID domain.ChannelID
	channels  repositories.IChannelRepository
	provider  contract.FeedProvider
	queue     chan<- domain.ContentItem
	interval  time.Duration
	log       *slog.Logger

	// lastQueued guards against re-enqueueing items the dispatcher has
	// pulled but not yet cursored past. Only this worker touches it.
	lastQueued int64
}

func NewPollerWorker(channelID domain.ChannelID, channels repositories.IChannelRepository,
	provider contract.FeedProvider, queue chan<- domain.ContentItem,
	interval time.Duration, log *slog.Logger) *PollerWorker {
	return &PollerWorker{
		channelID: channelID,
		channels:  channels,
		provider:  provider,
		queue:     queue,
		interval:  interval,
		log:       log,
	}
}

func (w *PollerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// First poll immediately, then on the ticker.
	if err := w.poll(ctx); err != nil {
		w.log.Warn("Poll failed", "channel", w.channelID, "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.poll(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.log.Warn("Poll failed", "channel", w.channelID, "error", err)
			}
		}
	}
}

func (w *PollerWorker) poll(ctx context.Context) error {
	channel, err := w.channels.Get(w.channelID)
	if err != nil {
		return err
	}

	since := channel.Cursor
	if w.lastQueued > since {
		since = w.lastQueued
	}

	items, err := w.provider.PollNewItems(ctx, channel, since)
	if err != nil {
		return err
	}

	for _, item := range items {
		if item.Seq <= since {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case w.queue <- item:
			w.lastQueued = item.Seq
		}
	}
	return nil
}
