package bot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"subcast/contract"
	"subcast/domain"
)

var _ contract.Worker = (*ConsoleAdapter)(nil)

// ConsoleAdapter reads commands from a reader (stdin in the daemon) and
// prints replies. It exists for local runs and demos; real deployments
// plug a chat protocol adapter into the same Handler.
type ConsoleAdapter struct {
	handler *Handler
	in      io.Reader
	out     io.Writer
	log     *slog.Logger
}

func NewConsoleAdapter(handler *Handler, in io.Reader, out io.Writer, log *slog.Logger) *ConsoleAdapter {
	return &ConsoleAdapter{handler: handler, in: in, out: out, log: log}
}

// consoleSubscriber is the identity behind the local console, always
// private-capable.
var consoleSubscriber = domain.Subscriber{ID: "console", Private: true}

func (a *ConsoleAdapter) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(a.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				a.log.Debug("Console input closed")
				return nil
			}
			cmd, err := ParseLine(line, consoleSubscriber)
			if err != nil {
				fmt.Fprintln(a.out, err.Error())
				continue
			}
			if cmd == nil {
				continue
			}
			fmt.Fprintln(a.out, a.handler.Handle(ctx, cmd))
		}
	}
}

// ParseLine turns one console line into a command. Empty lines yield a nil
// command; unknown verbs an error with usage text.
func ParseLine(line string, from domain.Subscriber) (domain.Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}

	verb := strings.TrimPrefix(strings.ToLower(fields[0]), "/")
	switch verb {
	case "subscribe":
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: /subscribe <channel>")
		}
		return domain.SubscribeCommand{Subscriber: from, Identifier: strings.Join(fields[1:], " ")}, nil
	case "unsubscribe":
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: /unsubscribe <channel>")
		}
		return domain.UnsubscribeCommand{Subscriber: from, Identifier: strings.Join(fields[1:], " ")}, nil
	case "list":
		return domain.ListCommand{Subscriber: from}, nil
	default:
		return nil, fmt.Errorf("unknown command %q (try /subscribe, /unsubscribe, /list)", fields[0])
	}
}
