//go:generate go run go.uber.org/mock/mockgen -source=channel.go -destination=../mocks/mock_channel_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"subcast/domain"
	"subcast/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

type IChannelRepository interface {
	Register(channel domain.Channel) (domain.Channel, error)
	Get(id domain.ChannelID) (domain.Channel, error)
	List() ([]domain.Channel, error)
	AdvanceCursor(id domain.ChannelID, seq int64) error
}

type ChannelRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewChannelRepository(db *badger.DB, log *slog.Logger) ChannelRepository {
	return ChannelRepository{db: db, log: log}
}

type diskChannel struct {
	ID        string `cbor:"1,keyasint"`
	Name      string `cbor:"2,keyasint"`
	URL       string `cbor:"3,keyasint"`
	Cursor    int64  `cbor:"4,keyasint"`
	CreatedAt int64  `cbor:"5,keyasint"`
}

func channelKey(id domain.ChannelID) []byte {
	return []byte(fmt.Sprintf("chan:%s", keySegment(id)))
}

// Register persists a channel on first resolution. Identity is immutable:
// if the ID is already known the stored record wins and is returned as-is,
// cursor included.
func (r ChannelRepository) Register(channel domain.Channel) (domain.Channel, error) {
	if channel.CreatedAt.IsZero() {
		channel.CreatedAt = time.Now().UTC()
	}
	data, err := cbor.Marshal(fromChannel(channel))
	if err != nil {
		return domain.Channel{}, fmt.Errorf("marshal failed: %w", err)
	}

	stored := channel
	err = r.update(func(txn *badger.Txn) error {
		key := channelKey(channel.ID)
		item, err := txn.Get(key)
		if err == nil {
			return item.Value(func(val []byte) error {
				var disk diskChannel
				if err := cbor.Unmarshal(val, &disk); err != nil {
					return err
				}
				stored = toChannel(disk)
				return nil
			})
		}
		if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return domain.Channel{}, err
	}
	return stored, nil
}

func (r ChannelRepository) Get(id domain.ChannelID) (domain.Channel, error) {
	var disk diskChannel
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(channelKey(id))
		if err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrUnknownChannel
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &disk)
		})
	})
	if err != nil {
		return domain.Channel{}, err
	}
	return toChannel(disk), nil
}

// List returns every registered channel, used at boot to respawn the
// per-channel polling and fanout workers.
func (r ChannelRepository) List() ([]domain.Channel, error) {
	prefix := []byte("chan:")
	var channels []domain.Channel
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk diskChannel
			err := it.Item().Value(func(val []byte) error {
				return cbor.Unmarshal(val, &disk)
			})
			if err != nil {
				return err
			}
			channels = append(channels, toChannel(disk))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return channels, nil
}

// AdvanceCursor moves the channel cursor forward to seq. The cursor is
// single-writer (the channel's dispatcher) and monotonic: an attempt to move
// it backwards or in place fails with ErrCursorRegression, which callers
// treat as "already past this item".
func (r ChannelRepository) AdvanceCursor(id domain.ChannelID, seq int64) error {
	return r.update(func(txn *badger.Txn) error {
		key := channelKey(id)
		item, err := txn.Get(key)
		if err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrUnknownChannel
			}
			return err
		}
		var disk diskChannel
		if err := item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &disk)
		}); err != nil {
			return err
		}
		if seq <= disk.Cursor {
			return errors.ErrCursorRegression
		}
		disk.Cursor = seq
		data, err := cbor.Marshal(disk)
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		return txn.Set(key, data)
	})
}

func (r ChannelRepository) update(fn func(txn *badger.Txn) error) error {
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

func fromChannel(channel domain.Channel) diskChannel {
	return diskChannel{
		ID:        string(channel.ID),
		Name:      channel.Name,
		URL:       channel.URL,
		Cursor:    channel.Cursor,
		CreatedAt: channel.CreatedAt.UnixNano(),
	}
}

func toChannel(disk diskChannel) domain.Channel {
	return domain.Channel{
		ID:        domain.ChannelID(disk.ID),
		Name:      disk.Name,
		URL:       disk.URL,
		Cursor:    disk.Cursor,
		CreatedAt: time.Unix(0, disk.CreatedAt).UTC(),
	}
}
