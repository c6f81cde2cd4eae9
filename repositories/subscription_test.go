package repositories

import (
	"log/slog"
	"sync"
	"testing"

	"subcast/domain"
	"subcast/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Subscribe_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repo := NewSubscriptionRepository(db, slog.Default(), nil)
	alice := domain.Subscriber{ID: "U1", Private: true}

	_, err := repo.Add(alice, "tech-news")
	req.NoError(err)

	_, err = repo.Add(alice, "tech-news")
	req.ErrorIs(err, errors.ErrAlreadySubscribed)

	subs, err := repo.ListSubscribers("tech-news")
	req.NoError(err)
	req.Len(subs, 1)
	req.Equal(domain.SubscriberID("U1"), subs[0].SubscriberID)
}

func Test_Remove_Unknown_Pair(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repo := NewSubscriptionRepository(db, slog.Default(), nil)
	err := repo.Remove("U1", "tech-news")
	req.ErrorIs(err, errors.ErrNotSubscribed)
}

func Test_Remove_Cleans_Both_Directions(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repo := NewSubscriptionRepository(db, slog.Default(), nil)
	alice := domain.Subscriber{ID: "U1", Private: true}

	_, err := repo.Add(alice, "tech-news")
	req.NoError(err)
	_, err = repo.Add(alice, "cooking")
	req.NoError(err)

	req.NoError(repo.Remove("U1", "tech-news"))

	channels, err := repo.ListChannels("U1")
	req.NoError(err)
	req.Len(channels, 1)
	req.Equal(domain.ChannelID("cooking"), channels[0].ChannelID)

	subs, err := repo.ListSubscribers("tech-news")
	req.NoError(err)
	req.Empty(subs)

	// The subscriber record survives an empty subscription set.
	sub, err := repo.GetSubscriber("U1")
	req.NoError(err)
	req.True(sub.Private)
}

func Test_Subscription_Limit(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repo := NewSubscriptionRepository(db, slog.Default(), lo.ToPtr(2))
	alice := domain.Subscriber{ID: "U1", Private: true}

	_, err := repo.Add(alice, "a")
	req.NoError(err)
	_, err = repo.Add(alice, "b")
	req.NoError(err)
	_, err = repo.Add(alice, "c")
	req.ErrorIs(err, errors.ErrSubscriptionLimit)
}

func Test_Opaque_Subscriber_IDs_With_Colons(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repo := NewSubscriptionRepository(db, slog.Default(), nil)

	// Subscriber IDs come from the chat adapter and may contain ':'.
	// "chat:42" must not shadow "chat" in the reverse-index scans.
	_, err := repo.Add(domain.Subscriber{ID: "chat:42", Private: true}, "tech-news")
	req.NoError(err)
	_, err = repo.Add(domain.Subscriber{ID: "chat", Private: true}, "cooking")
	req.NoError(err)

	channels, err := repo.ListChannels("chat")
	req.NoError(err)
	req.Len(channels, 1)
	req.Equal(domain.ChannelID("cooking"), channels[0].ChannelID)

	channels, err = repo.ListChannels("chat:42")
	req.NoError(err)
	req.Len(channels, 1)
	req.Equal(domain.ChannelID("tech-news"), channels[0].ChannelID)

	subs, err := repo.ListSubscribers("tech-news")
	req.NoError(err)
	req.Len(subs, 1)
	req.Equal(domain.SubscriberID("chat:42"), subs[0].SubscriberID)
}

func Test_Concurrent_Add_Same_Pair(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repo := NewSubscriptionRepository(db, slog.Default(), nil)
	alice := domain.Subscriber{ID: "U1", Private: true}

	const callers = 8
	results := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = repo.Add(alice, "tech-news")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			req.ErrorIs(err, errors.ErrAlreadySubscribed)
		}
	}
	req.Equal(1, wins)

	subs, err := repo.ListSubscribers("tech-news")
	req.NoError(err)
	req.Len(subs, 1)
}
