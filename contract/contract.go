//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"subcast/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// FeedProvider abstracts the external content sources. Resolution and
// polling both go through it; the engine never talks to a source directly.
type FeedProvider interface {
	// FetchMetadata validates that an identifier maps to an existing source
	// and returns its display metadata. Fails with errors.ErrUnknownChannel.
	FetchMetadata(ctx context.Context, identifier string) (domain.ChannelMetadata, error)
	// PollNewItems returns items with sequence strictly greater than
	// sinceCursor, ascending, finite per call and restartable from a cursor.
	PollNewItems(ctx context.Context, channel domain.Channel, sinceCursor int64) ([]domain.ContentItem, error)
}

// Transport pushes one item to one subscriber over the chat protocol.
// Failures are classified with errors.Transient / errors.Permanent so the
// dispatcher knows whether a retry makes sense.
type Transport interface {
	Deliver(ctx context.Context, subscriber domain.SubscriberID, item domain.ContentItem) error
}
