package repositories

import (
	"log/slog"
	"sync"
	"testing"

	"subcast/domain"
	"subcast/errors"

	"github.com/stretchr/testify/require"
)

func Test_Register_Keeps_Existing_Identity(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repo := NewChannelRepository(db, slog.Default())
	first, err := repo.Register(domain.Channel{
		ID:   "tech-news",
		Name: "Tech News",
		URL:  "https://example.com/tech",
	})
	req.NoError(err)
	req.NoError(repo.AdvanceCursor("tech-news", 42))

	// Re-registering the same ID must not reset name or cursor.
	again, err := repo.Register(domain.Channel{
		ID:   "tech-news",
		Name: "Other Name",
		URL:  "https://elsewhere.example.com",
	})
	req.NoError(err)
	req.Equal(first.Name, again.Name)
	req.Equal(int64(42), again.Cursor)

	stored, err := repo.Get("tech-news")
	req.NoError(err)
	req.Equal("Tech News", stored.Name)
	req.Equal(int64(42), stored.Cursor)
}

func Test_Get_Unknown_Channel(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repo := NewChannelRepository(db, slog.Default())
	_, err := repo.Get("nope")
	req.ErrorIs(err, errors.ErrUnknownChannel)
}

func Test_Cursor_Never_Regresses(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repo := NewChannelRepository(db, slog.Default())
	_, err := repo.Register(domain.Channel{ID: "tech-news", Name: "Tech News"})
	req.NoError(err)

	req.NoError(repo.AdvanceCursor("tech-news", 10))
	req.ErrorIs(repo.AdvanceCursor("tech-news", 10), errors.ErrCursorRegression)
	req.ErrorIs(repo.AdvanceCursor("tech-news", 5), errors.ErrCursorRegression)
	req.NoError(repo.AdvanceCursor("tech-news", 11))

	stored, err := repo.Get("tech-news")
	req.NoError(err)
	req.Equal(int64(11), stored.Cursor)
}

func Test_Cursor_Monotonic_Under_Concurrent_Advances(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repo := NewChannelRepository(db, slog.Default())
	_, err := repo.Register(domain.Channel{ID: "tech-news", Name: "Tech News"})
	req.NoError(err)

	seqs := []int64{3, 1, 7, 5, 2, 9, 4}
	var wg sync.WaitGroup
	for _, seq := range seqs {
		wg.Add(1)
		go func(seq int64) {
			defer wg.Done()
			// Regressions are expected for the smaller sequences.
			_ = repo.AdvanceCursor("tech-news", seq)
		}(seq)
	}
	wg.Wait()

	stored, err := repo.Get("tech-news")
	req.NoError(err)
	req.Equal(int64(9), stored.Cursor)
}

func Test_List_Channels(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repo := NewChannelRepository(db, slog.Default())
	_, err := repo.Register(domain.Channel{ID: "a", Name: "A"})
	req.NoError(err)
	_, err = repo.Register(domain.Channel{ID: "b", Name: "B"})
	req.NoError(err)

	channels, err := repo.List()
	req.NoError(err)
	req.Len(channels, 2)
}
