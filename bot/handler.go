// Package bot is the thin glue between an inbound command surface and the
// subscription manager: it maps manager outcomes to user-facing reply text.
package bot

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"subcast/domain"
	"subcast/errors"
	"subcast/services"
)

type Handler struct {
	manager services.IManager
	log     *slog.Logger
}

func NewHandler(manager services.IManager, log *slog.Logger) *Handler {
	return &Handler{manager: manager, log: log}
}

// Handle routes one command and returns the reply text.
func (h *Handler) Handle(ctx context.Context, cmd domain.Command) string {
	switch c := cmd.(type) {
	case domain.SubscribeCommand:
		return h.subscribe(ctx, c)
	case domain.UnsubscribeCommand:
		return h.unsubscribe(ctx, c)
	case domain.ListCommand:
		return h.list(ctx, c)
	}
	return "Unknown command"
}

func (h *Handler) subscribe(ctx context.Context, cmd domain.SubscribeCommand) string {
	channel, err := h.manager.Subscribe(ctx, cmd)
	switch {
	case err == nil:
		return fmt.Sprintf("Successfully subscribed to %q (@%s)", channel.Name, channel.URL)
	case stderrors.Is(err, errors.ErrAlreadySubscribed):
		return fmt.Sprintf("You are already subscribed to %q (@%s)", channel.Name, channel.URL)
	default:
		return h.renderError(cmd.Identifier, err)
	}
}

func (h *Handler) unsubscribe(ctx context.Context, cmd domain.UnsubscribeCommand) string {
	channel, err := h.manager.Unsubscribe(ctx, cmd)
	switch {
	case err == nil:
		return fmt.Sprintf("Successfully unsubscribed from %q (@%s)", channel.Name, channel.URL)
	case stderrors.Is(err, errors.ErrNotSubscribed):
		return fmt.Sprintf("You are not subscribed to %q", cmd.Identifier)
	default:
		return h.renderError(cmd.Identifier, err)
	}
}

func (h *Handler) list(ctx context.Context, cmd domain.ListCommand) string {
	channels, err := h.manager.List(ctx, cmd)
	if err != nil {
		h.log.Error("List failed", "subscriber", cmd.Subscriber.ID, "error", err)
		return "Something went wrong, please try again later"
	}
	if len(channels) == 0 {
		return "You have no subscriptions yet"
	}

	var b strings.Builder
	b.WriteString("Your subscriptions:")
	for _, channel := range channels {
		b.WriteString(fmt.Sprintf("\n- %s (@%s)", channel.Name, channel.URL))
	}
	return b.String()
}

func (h *Handler) renderError(identifier string, err error) string {
	switch {
	case stderrors.Is(err, errors.ErrUnsupportedContext):
		return "Groups currently are not supported!"
	case stderrors.Is(err, errors.ErrUnknownChannel):
		return fmt.Sprintf("Unknown channel %q", identifier)
	case stderrors.Is(err, errors.ErrAmbiguousChannel):
		return fmt.Sprintf("Several channels match %q, please be more specific", identifier)
	case stderrors.Is(err, errors.ErrSubscriptionLimit):
		return "You have reached the subscription limit"
	default:
		h.log.Error("Command failed", "identifier", identifier, "error", err)
		return "Something went wrong, please try again later"
	}
}
