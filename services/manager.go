//go:generate go run go.uber.org/mock/mockgen -source=manager.go -destination=../mocks/mock_manager.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"

	"subcast/domain"
	"subcast/errors"
	"subcast/repositories"

	"github.com/samber/lo"
)

type IManager interface {
	Subscribe(ctx context.Context, cmd domain.SubscribeCommand) (domain.Channel, error)
	Unsubscribe(ctx context.Context, cmd domain.UnsubscribeCommand) (domain.Channel, error)
	List(ctx context.Context, cmd domain.ListCommand) ([]domain.Channel, error)
}

// Manager enforces the business rules of subscribe/unsubscribe on top of
// the store and the registry. All failures are deterministic validation
// outcomes; nothing here retries.
type Manager struct {
	subscriptions repositories.ISubscriptionRepository
	channels      repositories.IChannelRepository
	registry      IRegistry
	allowGroups   bool
	log           *slog.Logger
}

func NewManager(subscriptions repositories.ISubscriptionRepository,
	channels repositories.IChannelRepository, registry IRegistry,
	allowGroups bool, log *slog.Logger) *Manager {
	return &Manager{
		subscriptions: subscriptions,
		channels:      channels,
		registry:      registry,
		allowGroups:   allowGroups,
		log:           log,
	}
}

// Subscribe validates the context, resolves the channel and records the
// subscription. On ErrAlreadySubscribed the resolved channel is still
// returned so the command layer can render a tailored reply.
func (m *Manager) Subscribe(ctx context.Context, cmd domain.SubscribeCommand) (domain.Channel, error) {
	if !cmd.Subscriber.Private && !m.allowGroups {
		return domain.Channel{}, errors.ErrUnsupportedContext
	}

	channel, err := m.registry.Resolve(ctx, cmd.Identifier)
	if err != nil {
		return domain.Channel{}, err
	}

	if _, err := m.subscriptions.Add(cmd.Subscriber, channel.ID); err != nil {
		return channel, err
	}

	m.log.Info("Subscribed", "subscriber", cmd.Subscriber.ID, "channel", channel.ID)
	return channel, nil
}

// Unsubscribe mirrors Subscribe, signaling ErrNotSubscribed when the pair
// does not exist.
func (m *Manager) Unsubscribe(ctx context.Context, cmd domain.UnsubscribeCommand) (domain.Channel, error) {
	if !cmd.Subscriber.Private && !m.allowGroups {
		return domain.Channel{}, errors.ErrUnsupportedContext
	}

	channel, err := m.registry.Resolve(ctx, cmd.Identifier)
	if err != nil {
		return domain.Channel{}, err
	}

	if err := m.subscriptions.Remove(cmd.Subscriber.ID, channel.ID); err != nil {
		return channel, err
	}

	m.log.Info("Unsubscribed", "subscriber", cmd.Subscriber.ID, "channel", channel.ID)
	return channel, nil
}

// List returns the channels the subscriber currently follows.
func (m *Manager) List(ctx context.Context, cmd domain.ListCommand) ([]domain.Channel, error) {
	subs, err := m.subscriptions.ListChannels(cmd.Subscriber.ID)
	if err != nil {
		return nil, err
	}

	channels := make([]domain.Channel, 0, len(subs))
	for _, id := range lo.Map(subs, func(s domain.Subscription, _ int) domain.ChannelID { return s.ChannelID }) {
		channel, err := m.channels.Get(id)
		if err != nil {
			return nil, fmt.Errorf("load channel %s: %w", id, err)
		}
		channels = append(channels, channel)
	}
	return channels, nil
}
