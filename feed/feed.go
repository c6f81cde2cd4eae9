// Package feed implements the feed-provider interface on top of RSS/Atom
// sources.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"subcast/contract"
	"subcast/domain"
	"subcast/errors"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
)

var _ contract.FeedProvider = (*Provider)(nil)

const userAgent = "subcast/1.0"

// ParserFunc is exposed for testing.
// It allows mocking the feed parsing logic.
var ParserFunc = defaultParser

func defaultParser(ctx context.Context, url string) (*gofeed.Feed, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = userAgent
	return fp.ParseURLWithContext(url, ctx)
}

// Provider fetches channel metadata and polls items from RSS/Atom feeds.
type Provider struct {
	timeout    time.Duration
	maxPerPoll int
	log        *slog.Logger
}

func NewProvider(timeout time.Duration, maxPerPoll int, log *slog.Logger) *Provider {
	if maxPerPoll < 1 {
		maxPerPoll = 100
	}
	return &Provider{timeout: timeout, maxPerPoll: maxPerPoll, log: log}
}

// FetchMetadata validates that the identifier points to a live feed and
// returns its display metadata. Identifiers that cannot be turned into a
// URL, or URLs that don't parse as a feed, fail with ErrUnknownChannel.
func (p *Provider) FetchMetadata(ctx context.Context, identifier string) (domain.ChannelMetadata, error) {
	url, ok := feedURL(identifier)
	if !ok {
		return domain.ChannelMetadata{}, errors.ErrUnknownChannel
	}

	parsed, err := p.parse(ctx, url)
	if err != nil {
		p.log.Debug("Metadata fetch failed", "identifier", identifier, "error", err)
		return domain.ChannelMetadata{}, fmt.Errorf("%w: %s", errors.ErrUnknownChannel, identifier)
	}

	name := strings.TrimSpace(parsed.Title)
	if name == "" {
		name = url
	}
	return domain.ChannelMetadata{Name: name, URL: url}, nil
}

// PollNewItems returns the channel's items with sequence strictly greater
// than sinceCursor, ascending, at most maxPerPoll per call. The sequence is
// the published (or updated) time in nanoseconds; items without either are
// skipped since they cannot be ordered against the cursor.
func (p *Provider) PollNewItems(ctx context.Context, channel domain.Channel, sinceCursor int64) ([]domain.ContentItem, error) {
	parsed, err := p.parse(ctx, channel.URL)
	if err != nil {
		return nil, err
	}

	var items []domain.ContentItem
	for _, raw := range parsed.Items {
		published := itemTime(raw)
		if published.IsZero() {
			p.log.Debug("Skipping undated item", "channel", channel.ID, "title", raw.Title)
			continue
		}
		seq := published.UnixNano()
		if seq <= sinceCursor {
			continue
		}
		items = append(items, domain.ContentItem{
			ChannelID: channel.ID,
			ID:        itemID(raw),
			Seq:       seq,
			Title:     raw.Title,
			Link:      raw.Link,
			Summary:   raw.Description,
			Published: published.UTC(),
			Language:  detectLanguage(raw.Title + " " + raw.Description),
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Seq < items[j].Seq })
	if len(items) > p.maxPerPoll {
		items = items[:p.maxPerPoll]
	}
	return items, nil
}

func (p *Provider) parse(ctx context.Context, url string) (*gofeed.Feed, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return ParserFunc(ctx, url)
}

func feedURL(identifier string) (string, bool) {
	s := strings.TrimSpace(identifier)
	if s == "" || !domain.LooksLikeURL(s) {
		return "", false
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	return s, true
}

func itemID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	return uuid.NewString()
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

func detectLanguage(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	return info.Lang.Iso6391()
}
