// Package runtime wires the per-channel polling and fanout loops under
// supervision. It orchestrates the system without containing business
// logic or domain rules.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"subcast/contract"
	"subcast/domain"
	"subcast/moderation"
	"subcast/repositories"
	"subcast/runtime/workers"
)

// Options tune the per-channel loops.
type Options struct {
	PollInterval      time.Duration
	ReconcileInterval time.Duration
	TelemetryInterval time.Duration
	QueueSize         int
	Parallelism       int
	Retry             workers.RetryPolicy
}

// Orchestrator owns one work queue, one poller and one dispatcher per
// registered channel. Channels registered while running are picked up by
// the reconcile loop; everything is torn down together on Stop, after the
// in-flight fanout drained.
type Orchestrator struct {
	mu            sync.Mutex
	log           *slog.Logger
	supervisor    *workers.Supervisor
	channels      repositories.IChannelRepository
	subscriptions repositories.ISubscriptionRepository
	deliveries    repositories.IDeliveryRepository
	provider      contract.FeedProvider
	transport     contract.Transport
	filter        *moderation.Filter
	opts          Options

	queues map[domain.ChannelID]chan domain.ContentItem
	ctx    context.Context
	cancel context.CancelFunc
}

func NewOrchestrator(log *slog.Logger, supervisor *workers.Supervisor,
	channels repositories.IChannelRepository, subscriptions repositories.ISubscriptionRepository,
	deliveries repositories.IDeliveryRepository, provider contract.FeedProvider,
	transport contract.Transport, filter *moderation.Filter, opts Options) *Orchestrator {
	return &Orchestrator{
		log:           log,
		supervisor:    supervisor,
		channels:      channels,
		subscriptions: subscriptions,
		deliveries:    deliveries,
		provider:      provider,
		transport:     transport,
		filter:        filter,
		opts:          opts,
		queues:        make(map[domain.ChannelID]chan domain.ContentItem),
	}
}

// Start spawns the loops for every channel already in the store, plus the
// reconcile and telemetry workers, and runs the supervisor in background.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.ctx, o.cancel = context.WithCancel(ctx)

	stored, err := o.channels.List()
	if err != nil {
		return err
	}

	o.supervisor.Add(
		&reconcileWorker{orchestrator: o, interval: o.opts.ReconcileInterval},
		workers.NewTelemetryWorker(o.log, o.opts.TelemetryInterval),
	)
	go o.supervisor.Run(o.ctx)

	for _, channel := range stored {
		o.EnsureChannel(channel)
	}
	o.log.Info("Orchestrator started", "channels", len(stored))
	return nil
}

// EnsureChannel idempotently spawns the poll/fanout pair for a channel.
// Safe to call from the reconcile loop and from tests.
func (o *Orchestrator) EnsureChannel(channel domain.Channel) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.queues[channel.ID]; ok {
		return
	}

	queue := make(chan domain.ContentItem, o.opts.QueueSize)
	o.queues[channel.ID] = queue

	poller := workers.NewPollerWorker(channel.ID, o.channels, o.provider, queue,
		o.opts.PollInterval, o.log)
	dispatcher := workers.NewDispatcherWorker(channel.ID, queue,
		o.subscriptions, o.deliveries, o.channels, o.transport, o.filter,
		o.opts.Retry, o.opts.Parallelism, o.log)

	o.supervisor.Start(o.ctx, poller)
	o.supervisor.Start(o.ctx, dispatcher)
	o.log.Info("Channel loops started", "channel", channel.ID)
}

// Stop cancels every loop and waits for the in-flight fanout to drain.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.supervisor.Wait()
	o.log.Info("Orchestrator stopped")
}

// reconcileWorker periodically scans the channel store and spawns loops
// for channels registered since boot (e.g. by a fresh subscribe).
type reconcileWorker struct {
	orchestrator *Orchestrator
	interval     time.Duration
}

func (w *reconcileWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stored, err := w.orchestrator.channels.List()
			if err != nil {
				w.orchestrator.log.Warn("Channel reconcile failed", "error", err)
				continue
			}
			for _, channel := range stored {
				w.orchestrator.EnsureChannel(channel)
			}
		}
	}
}
