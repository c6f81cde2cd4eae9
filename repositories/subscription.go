//go:generate go run go.uber.org/mock/mockgen -source=subscription.go -destination=../mocks/mock_subscription_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"subcast/domain"
	"subcast/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

// conflictRetries bounds the optimistic-concurrency retry loop around a
// badger transaction. Conflicts only happen when two callers race on the
// same keys, so a handful of retries is plenty.
const conflictRetries = 10

type ISubscriptionRepository interface {
	Add(subscriber domain.Subscriber, channel domain.ChannelID) (domain.Subscription, error)
	Remove(subscriber domain.SubscriberID, channel domain.ChannelID) error
	ListSubscribers(channel domain.ChannelID) ([]domain.Subscription, error)
	ListChannels(subscriber domain.SubscriberID) ([]domain.Subscription, error)
}

type SubscriptionRepository struct {
	db               *badger.DB
	log              *slog.Logger
	maxPerSubscriber *int
}

func NewSubscriptionRepository(db *badger.DB, log *slog.Logger, maxPerSubscriber *int) SubscriptionRepository {
	return SubscriptionRepository{db: db, log: log, maxPerSubscriber: maxPerSubscriber}
}

// diskSubscription is the persisted shape of a (subscriber, channel) pair.
type diskSubscription struct {
	SubscriberID string `cbor:"1,keyasint"`
	ChannelID    string `cbor:"2,keyasint"`
	CreatedAt    int64  `cbor:"3,keyasint"`
}

// diskSubscriber is created on first subscribe and never deleted.
type diskSubscriber struct {
	ID        string `cbor:"1,keyasint"`
	Private   bool   `cbor:"2,keyasint"`
	CreatedAt int64  `cbor:"3,keyasint"`
}

// keySegment escapes ':' (and the escape character itself) inside one key
// segment. Subscriber and item IDs are opaque and may contain ':', which
// would otherwise collide with the segment separator and let prefix scans
// bleed across neighbours.
func keySegment[T ~string](segment T) string {
	s := strings.ReplaceAll(string(segment), "%", "%25")
	return strings.ReplaceAll(s, ":", "%3A")
}

func subKey(channel domain.ChannelID, subscriber domain.SubscriberID) []byte {
	return []byte(fmt.Sprintf("sub:%s:%s", keySegment(channel), keySegment(subscriber)))
}

func rsubKey(subscriber domain.SubscriberID, channel domain.ChannelID) []byte {
	return []byte(fmt.Sprintf("rsub:%s:%s", keySegment(subscriber), keySegment(channel)))
}

func subscriberKey(subscriber domain.SubscriberID) []byte {
	return []byte(fmt.Sprintf("subr:%s", keySegment(subscriber)))
}

// Add persists a subscription for the pair, writing the forward key, the
// reverse index and the subscriber record inside one transaction so the
// operation is all-or-nothing. A pair that already exists fails with
// ErrAlreadySubscribed and leaves the store untouched.
func (r SubscriptionRepository) Add(subscriber domain.Subscriber, channel domain.ChannelID) (domain.Subscription, error) {
	sub := domain.Subscription{
		SubscriberID: subscriber.ID,
		ChannelID:    channel,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := cbor.Marshal(diskSubscription{
		SubscriberID: string(sub.SubscriberID),
		ChannelID:    string(sub.ChannelID),
		CreatedAt:    sub.CreatedAt.UnixNano(),
	})
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = r.update(func(txn *badger.Txn) error {
		key := subKey(channel, subscriber.ID)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrAlreadySubscribed
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if r.maxPerSubscriber != nil {
			count, err := countPrefix(txn, []byte(fmt.Sprintf("rsub:%s:", keySegment(subscriber.ID))))
			if err != nil {
				return err
			}
			if count >= *r.maxPerSubscriber {
				return errors.ErrSubscriptionLimit
			}
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}
		if err := txn.Set(rsubKey(subscriber.ID, channel), data); err != nil {
			return err
		}
		return r.ensureSubscriber(txn, subscriber)
	})
	if err != nil {
		return domain.Subscription{}, err
	}
	return sub, nil
}

// Remove deletes both directions of the pair, failing with ErrNotSubscribed
// when no subscription exists.
func (r SubscriptionRepository) Remove(subscriber domain.SubscriberID, channel domain.ChannelID) error {
	return r.update(func(txn *badger.Txn) error {
		key := subKey(channel, subscriber)
		if _, err := txn.Get(key); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrNotSubscribed
			}
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(rsubKey(subscriber, channel))
	})
}

// ListSubscribers returns the current subscriptions of a channel via a
// prefix scan on the forward keys. Order follows subscriber ID.
func (r SubscriptionRepository) ListSubscribers(channel domain.ChannelID) ([]domain.Subscription, error) {
	return r.scan([]byte(fmt.Sprintf("sub:%s:", keySegment(channel))))
}

// ListChannels returns everything one subscriber follows via the reverse index.
func (r SubscriptionRepository) ListChannels(subscriber domain.SubscriberID) ([]domain.Subscription, error) {
	return r.scan([]byte(fmt.Sprintf("rsub:%s:", keySegment(subscriber))))
}

// GetSubscriber loads the subscriber record, if it was ever created.
func (r SubscriptionRepository) GetSubscriber(id domain.SubscriberID) (domain.Subscriber, error) {
	var disk diskSubscriber
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(subscriberKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &disk)
		})
	})
	if err != nil {
		return domain.Subscriber{}, err
	}
	return domain.Subscriber{
		ID:        domain.SubscriberID(disk.ID),
		Private:   disk.Private,
		CreatedAt: time.Unix(0, disk.CreatedAt).UTC(),
	}, nil
}

func (r SubscriptionRepository) ensureSubscriber(txn *badger.Txn, subscriber domain.Subscriber) error {
	key := subscriberKey(subscriber.ID)
	if _, err := txn.Get(key); err == nil {
		return nil
	} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	data, err := cbor.Marshal(diskSubscriber{
		ID:        string(subscriber.ID),
		Private:   subscriber.Private,
		CreatedAt: time.Now().UTC().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(key, data)
}

func (r SubscriptionRepository) scan(prefix []byte) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk diskSubscription
			err := it.Item().Value(func(val []byte) error {
				return cbor.Unmarshal(val, &disk)
			})
			if err != nil {
				return err
			}
			subs = append(subs, domain.Subscription{
				SubscriberID: domain.SubscriberID(disk.SubscriberID),
				ChannelID:    domain.ChannelID(disk.ChannelID),
				CreatedAt:    time.Unix(0, disk.CreatedAt).UTC(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// update retries the transaction on optimistic-concurrency conflicts so two
// racing callers on the same pair both observe a serialized outcome.
func (r SubscriptionRepository) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < conflictRetries; i++ {
		err = r.db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
		r.log.Debug("Transaction conflict, retrying", "attempt", i+1)
	}
	return err
}

func countPrefix(txn *badger.Txn, prefix []byte) (int, error) {
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	count := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		count++
	}
	return count, nil
}
