// Package transport holds delivery adapters. Real chat protocol adapters
// live outside this module; LogTransport is what local runs wire in.
package transport

import (
	"context"
	"log/slog"

	"subcast/contract"
	"subcast/domain"
)

var _ contract.Transport = (*LogTransport)(nil)

// LogTransport "delivers" items by writing them to the structured log.
type LogTransport struct {
	log *slog.Logger
}

func NewLogTransport(log *slog.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (t *LogTransport) Deliver(_ context.Context, subscriber domain.SubscriberID, item domain.ContentItem) error {
	t.log.Info("Delivery",
		"subscriber", subscriber,
		"channel", item.ChannelID,
		"item", item.ID,
		"title", item.Title,
		"link", item.Link,
		"lang", item.Language)
	return nil
}
