//go:generate go run go.uber.org/mock/mockgen -source=delivery.go -destination=../mocks/mock_delivery_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"subcast/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

type IDeliveryRepository interface {
	Record(record domain.DeliveryRecord) error
	IsDelivered(channel domain.ChannelID, itemID string, subscriber domain.SubscriberID) (bool, error)
	ListForItem(channel domain.ChannelID, itemID string) ([]domain.DeliveryRecord, error)
}

type DeliveryRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewDeliveryRepository(db *badger.DB, log *slog.Logger) DeliveryRepository {
	return DeliveryRepository{db: db, log: log}
}

type diskDelivery struct {
	ChannelID    string `cbor:"1,keyasint"`
	ItemID       string `cbor:"2,keyasint"`
	SubscriberID string `cbor:"3,keyasint"`
	Delivered    bool   `cbor:"4,keyasint"`
	Attempts     int    `cbor:"5,keyasint"`
	LastError    string `cbor:"6,keyasint"`
	At           int64  `cbor:"7,keyasint"`
}

func deliveryKey(channel domain.ChannelID, itemID string, subscriber domain.SubscriberID) []byte {
	return []byte(fmt.Sprintf("dlv:%s:%s:%s",
		keySegment(channel), keySegment(itemID), keySegment(subscriber)))
}

// Record writes the outcome of one delivery attempt. A recorded success is
// final: later writes for the same (item, subscriber) pair are dropped, so
// at most one successful delivery is ever on record and a crashed dispatch
// re-run cannot double-deliver.
func (r DeliveryRepository) Record(record domain.DeliveryRecord) error {
	if record.At.IsZero() {
		record.At = time.Now().UTC()
	}
	data, err := cbor.Marshal(diskDelivery{
		ChannelID:    string(record.ChannelID),
		ItemID:       record.ItemID,
		SubscriberID: string(record.SubscriberID),
		Delivered:    record.Delivered,
		Attempts:     record.Attempts,
		LastError:    record.LastError,
		At:           record.At.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	return r.update(func(txn *badger.Txn) error {
		key := deliveryKey(record.ChannelID, record.ItemID, record.SubscriberID)
		item, err := txn.Get(key)
		if err == nil {
			var existing diskDelivery
			if err := item.Value(func(val []byte) error {
				return cbor.Unmarshal(val, &existing)
			}); err != nil {
				return err
			}
			if existing.Delivered {
				return nil
			}
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
}

func (r DeliveryRepository) IsDelivered(channel domain.ChannelID, itemID string, subscriber domain.SubscriberID) (bool, error) {
	delivered := false
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(deliveryKey(channel, itemID, subscriber))
		if err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var disk diskDelivery
			if err := cbor.Unmarshal(val, &disk); err != nil {
				return err
			}
			delivered = disk.Delivered
			return nil
		})
	})
	return delivered, err
}

// ListForItem returns every recorded outcome for one item, mostly for the
// inspector tool and tests.
func (r DeliveryRepository) ListForItem(channel domain.ChannelID, itemID string) ([]domain.DeliveryRecord, error) {
	prefix := []byte(fmt.Sprintf("dlv:%s:%s:", keySegment(channel), keySegment(itemID)))
	var records []domain.DeliveryRecord
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk diskDelivery
			err := it.Item().Value(func(val []byte) error {
				return cbor.Unmarshal(val, &disk)
			})
			if err != nil {
				return err
			}
			records = append(records, domain.DeliveryRecord{
				ChannelID:    domain.ChannelID(disk.ChannelID),
				ItemID:       disk.ItemID,
				SubscriberID: domain.SubscriberID(disk.SubscriberID),
				Delivered:    disk.Delivered,
				Attempts:     disk.Attempts,
				LastError:    disk.LastError,
				At:           time.Unix(0, disk.At).UTC(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r DeliveryRepository) update(fn func(txn *badger.Txn) error) error {
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
