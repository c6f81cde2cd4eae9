//go:generate go run go.uber.org/mock/mockgen -source=registry.go -destination=../mocks/mock_registry.go -package=mocks
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"subcast/contract"
	"subcast/domain"
	"subcast/errors"
	"subcast/repositories"

	"github.com/blugelabs/bluge"
)

type IRegistry interface {
	Resolve(ctx context.Context, raw string) (domain.Channel, error)
}

// Registry resolves raw channel identifiers against the durable channel
// store, a full-text name index and, as a last resort, the feed provider.
// The first successful resolution registers the channel and indexes its
// display name so later lookups by name stay local.
type Registry struct {
	mu       sync.Mutex
	channels repositories.IChannelRepository
	provider contract.FeedProvider
	index    *bluge.Writer
	log      *slog.Logger
}

func NewRegistry(channels repositories.IChannelRepository, provider contract.FeedProvider,
	index *bluge.Writer, log *slog.Logger) *Registry {
	return &Registry{channels: channels, provider: provider, index: index, log: log}
}

// Resolve maps a raw identifier to a registered channel.
// Lookup order: exact ID in the store, then the name index for slugs that
// don't look like URLs, then the provider. Several index hits for one name
// fail with ErrAmbiguousChannel; a provider miss with ErrUnknownChannel.
func (r *Registry) Resolve(ctx context.Context, raw string) (domain.Channel, error) {
	id := domain.ChannelIDFromIdentifier(raw)
	if id == "" {
		return domain.Channel{}, errors.ErrUnknownChannel
	}

	if channel, err := r.channels.Get(id); err == nil {
		return channel, nil
	}

	if !domain.LooksLikeURL(raw) {
		channel, err := r.searchByName(ctx, raw)
		if err == nil || stderrors.Is(err, errors.ErrAmbiguousChannel) {
			return channel, err
		}
	}

	meta, err := r.provider.FetchMetadata(ctx, raw)
	if err != nil {
		return domain.Channel{}, err
	}
	return r.register(domain.Channel{ID: id, Name: meta.Name, URL: meta.URL})
}

// register persists and indexes a freshly resolved channel. The mutex keeps
// index updates serialized; the store itself resolves concurrent registration
// of the same ID in favor of the first writer.
func (r *Registry) register(channel domain.Channel) (domain.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.channels.Register(channel)
	if err != nil {
		return domain.Channel{}, fmt.Errorf("register channel %s: %w", channel.ID, err)
	}

	doc := bluge.NewDocument(string(stored.ID))
	doc.AddField(bluge.NewTextField("name", stored.Name).StoreValue())
	if err := r.index.Update(doc.ID(), doc); err != nil {
		// The channel is durable either way; the name index is best effort
		// and rebuilt from the store at boot.
		r.log.Warn("Failed to index channel name", "channel", stored.ID, "error", err)
	}
	return stored, nil
}

// Reindex rebuilds the name index from the channel store, called once at boot.
func (r *Registry) Reindex() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	channels, err := r.channels.List()
	if err != nil {
		return err
	}
	batch := bluge.NewBatch()
	for _, channel := range channels {
		doc := bluge.NewDocument(string(channel.ID))
		doc.AddField(bluge.NewTextField("name", channel.Name).StoreValue())
		batch.Update(doc.ID(), doc)
	}
	return r.index.Batch(batch)
}

func (r *Registry) searchByName(ctx context.Context, raw string) (domain.Channel, error) {
	reader, err := r.index.Reader()
	if err != nil {
		return domain.Channel{}, err
	}
	defer func() { _ = reader.Close() }()

	query := bluge.NewMatchQuery(raw).SetField("name")
	it, err := reader.Search(ctx, bluge.NewTopNSearch(2, query))
	if err != nil {
		return domain.Channel{}, err
	}

	var ids []string
	for {
		match, err := it.Next()
		if err != nil {
			return domain.Channel{}, err
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
			}
			return true
		})
		if err != nil {
			return domain.Channel{}, err
		}
	}

	switch len(ids) {
	case 0:
		return domain.Channel{}, errors.ErrUnknownChannel
	case 1:
		return r.channels.Get(domain.ChannelID(ids[0]))
	default:
		return domain.Channel{}, errors.ErrAmbiguousChannel
	}
}
