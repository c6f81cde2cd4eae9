package services

import (
	"context"
	"log/slog"
	"testing"

	"subcast/domain"
	"subcast/errors"
	"subcast/repositories"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	metadata map[string]domain.ChannelMetadata
	items    map[domain.ChannelID][]domain.ContentItem
	calls    int
}

func (p *fakeProvider) FetchMetadata(ctx context.Context, identifier string) (domain.ChannelMetadata, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChannelMetadata{}, err
	}
	p.calls++
	meta, ok := p.metadata[identifier]
	if !ok {
		return domain.ChannelMetadata{}, errors.ErrUnknownChannel
	}
	return meta, nil
}

func (p *fakeProvider) PollNewItems(_ context.Context, channel domain.Channel, sinceCursor int64) ([]domain.ContentItem, error) {
	var fresh []domain.ContentItem
	for _, item := range p.items[channel.ID] {
		if item.Seq > sinceCursor {
			fresh = append(fresh, item)
		}
	}
	return fresh, nil
}

func newTestRegistry(t *testing.T, provider *fakeProvider) (*Registry, repositories.ChannelRepository) {
	t.Helper()
	req := require.New(t)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)
	t.Cleanup(func() { _ = writer.Close() })

	channels := repositories.NewChannelRepository(db, slog.Default())
	return NewRegistry(channels, provider, writer, slog.Default()), channels
}

func Test_Resolve_Registers_On_First_Hit(t *testing.T) {
	req := require.New(t)
	provider := &fakeProvider{metadata: map[string]domain.ChannelMetadata{
		"tech-news": {Name: "Tech News", URL: "https://example.com/tech"},
	}}
	registry, channels := newTestRegistry(t, provider)

	channel, err := registry.Resolve(context.Background(), "tech-news")
	req.NoError(err)
	req.Equal("Tech News", channel.Name)
	req.Equal("https://example.com/tech", channel.URL)

	stored, err := channels.Get(channel.ID)
	req.NoError(err)
	req.Equal(channel.Name, stored.Name)

	// Second resolution is served from the store, not the provider.
	before := provider.calls
	_, err = registry.Resolve(context.Background(), "tech-news")
	req.NoError(err)
	req.Equal(before, provider.calls)
}

func Test_Resolve_Unknown_Identifier(t *testing.T) {
	req := require.New(t)
	registry, _ := newTestRegistry(t, &fakeProvider{})

	_, err := registry.Resolve(context.Background(), "nope")
	req.ErrorIs(err, errors.ErrUnknownChannel)
}

func Test_Resolve_By_Display_Name(t *testing.T) {
	req := require.New(t)
	provider := &fakeProvider{metadata: map[string]domain.ChannelMetadata{
		"tech-news": {Name: "Tech News", URL: "https://example.com/tech"},
	}}
	registry, _ := newTestRegistry(t, provider)

	_, err := registry.Resolve(context.Background(), "tech-news")
	req.NoError(err)

	// A search by display name finds the already registered channel.
	channel, err := registry.Resolve(context.Background(), "Tech")
	req.NoError(err)
	req.Equal(domain.ChannelID("tech-news"), channel.ID)
}

func Test_Resolve_Ambiguous_Name(t *testing.T) {
	req := require.New(t)
	provider := &fakeProvider{metadata: map[string]domain.ChannelMetadata{
		"tech-news":   {Name: "Tech News", URL: "https://example.com/tech"},
		"tech-weekly": {Name: "Tech Weekly", URL: "https://example.com/weekly"},
	}}
	registry, _ := newTestRegistry(t, provider)

	_, err := registry.Resolve(context.Background(), "tech-news")
	req.NoError(err)
	_, err = registry.Resolve(context.Background(), "tech-weekly")
	req.NoError(err)

	_, err = registry.Resolve(context.Background(), "Tech")
	req.ErrorIs(err, errors.ErrAmbiguousChannel)
}

func Test_Reindex_From_Store(t *testing.T) {
	req := require.New(t)
	provider := &fakeProvider{metadata: map[string]domain.ChannelMetadata{
		"tech-news": {Name: "Tech News", URL: "https://example.com/tech"},
	}}
	registry, channels := newTestRegistry(t, provider)

	_, err := channels.Register(domain.Channel{ID: "tech-news", Name: "Tech News"})
	req.NoError(err)
	req.NoError(registry.Reindex())

	channel, err := registry.Resolve(context.Background(), "News")
	req.NoError(err)
	req.Equal(domain.ChannelID("tech-news"), channel.ID)
}
