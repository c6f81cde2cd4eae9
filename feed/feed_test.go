package feed

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"subcast/domain"
	"subcast/errors"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/require"
)

func stubParser(t *testing.T, feed *gofeed.Feed, err error) {
	t.Helper()
	orig := ParserFunc
	ParserFunc = func(_ context.Context, _ string) (*gofeed.Feed, error) {
		return feed, err
	}
	t.Cleanup(func() { ParserFunc = orig })
}

func ts(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return &parsed
}

func Test_FetchMetadata(t *testing.T) {
	req := require.New(t)
	stubParser(t, &gofeed.Feed{Title: "Tech News"}, nil)

	provider := NewProvider(time.Second, 100, slog.Default())
	meta, err := provider.FetchMetadata(context.Background(), "example.com/tech")
	req.NoError(err)
	req.Equal("Tech News", meta.Name)
	req.Equal("https://example.com/tech", meta.URL)
}

func Test_FetchMetadata_Rejects_Slugs(t *testing.T) {
	req := require.New(t)
	provider := NewProvider(time.Second, 100, slog.Default())

	_, err := provider.FetchMetadata(context.Background(), "tech-news")
	req.ErrorIs(err, errors.ErrUnknownChannel)
}

func Test_FetchMetadata_Parse_Failure(t *testing.T) {
	req := require.New(t)
	stubParser(t, nil, fmt.Errorf("404 not found"))

	provider := NewProvider(time.Second, 100, slog.Default())
	_, err := provider.FetchMetadata(context.Background(), "https://example.com/missing")
	req.ErrorIs(err, errors.ErrUnknownChannel)
}

func Test_PollNewItems_Filters_And_Orders(t *testing.T) {
	req := require.New(t)
	older := ts(t, "2024-05-01T10:00:00Z")
	newer := ts(t, "2024-05-01T12:00:00Z")
	newest := ts(t, "2024-05-01T14:00:00Z")

	stubParser(t, &gofeed.Feed{Items: []*gofeed.Item{
		{GUID: "I3", Title: "newest", PublishedParsed: newest},
		{GUID: "I1", Title: "older", PublishedParsed: older},
		{GUID: "I2", Title: "newer", PublishedParsed: newer},
		{GUID: "undated", Title: "no timestamp"},
	}}, nil)

	provider := NewProvider(time.Second, 100, slog.Default())
	channel := domain.Channel{ID: "tech-news", URL: "https://example.com/tech"}

	items, err := provider.PollNewItems(context.Background(), channel, older.UnixNano())
	req.NoError(err)
	req.Len(items, 2)
	req.Equal("I2", items[0].ID)
	req.Equal("I3", items[1].ID)
	req.Less(items[0].Seq, items[1].Seq)
}

func Test_PollNewItems_Caps_Batch(t *testing.T) {
	req := require.New(t)
	base := ts(t, "2024-05-01T10:00:00Z")

	var raw []*gofeed.Item
	for i := 0; i < 10; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		raw = append(raw, &gofeed.Item{GUID: fmt.Sprintf("I%d", i), PublishedParsed: &at})
	}
	stubParser(t, &gofeed.Feed{Items: raw}, nil)

	provider := NewProvider(time.Second, 3, slog.Default())
	items, err := provider.PollNewItems(context.Background(),
		domain.Channel{ID: "tech-news", URL: "https://example.com/tech"}, 0)
	req.NoError(err)
	req.Len(items, 3)
	req.Equal("I0", items[0].ID)
}

func Test_Language_Detection(t *testing.T) {
	req := require.New(t)
	published := ts(t, "2024-05-01T10:00:00Z")
	stubParser(t, &gofeed.Feed{Items: []*gofeed.Item{{
		GUID:            "I1",
		Title:           "The quick brown fox jumps over the lazy dog near the river bank",
		PublishedParsed: published,
	}}}, nil)

	provider := NewProvider(time.Second, 100, slog.Default())
	items, err := provider.PollNewItems(context.Background(),
		domain.Channel{ID: "tech-news", URL: "https://example.com/tech"}, 0)
	req.NoError(err)
	req.Len(items, 1)
	req.Equal("en", items[0].Language)
}

func Test_Item_ID_Fallbacks(t *testing.T) {
	req := require.New(t)

	req.Equal("guid-1", itemID(&gofeed.Item{GUID: "guid-1", Link: "https://x"}))
	req.Equal("https://x", itemID(&gofeed.Item{Link: "https://x"}))
	req.NotEmpty(itemID(&gofeed.Item{}))
}
