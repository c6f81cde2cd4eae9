package moderation

import (
	"testing"

	"subcast/domain"

	"github.com/stretchr/testify/require"
)

func Test_Censor_Replaces_Blocked_Words(t *testing.T) {
	req := require.New(t)
	filter, err := NewFilter([]string{"casino", "spam"}, '*')
	req.NoError(err)

	req.Equal("Win big at the ******!", filter.Censor("Win big at the CASINO!"))
	req.Equal("no ****, promise", filter.Censor("no spam, promise"))
	req.Equal("clean headline", filter.Censor("clean headline"))
}

func Test_Empty_Blocklist_Passes_Through(t *testing.T) {
	req := require.New(t)
	filter, err := NewFilter(nil, '*')
	req.NoError(err)

	req.Equal("anything goes", filter.Censor("anything goes"))
}

func Test_Apply_Covers_Title_And_Summary(t *testing.T) {
	req := require.New(t)
	filter, err := NewFilter([]string{"secret"}, '#')
	req.NoError(err)

	item := filter.Apply(domain.ContentItem{
		Title:   "The secret plan",
		Summary: "A very Secret summary",
		Link:    "https://example.com/secret",
	})
	req.Equal("The ###### plan", item.Title)
	req.Equal("A very ###### summary", item.Summary)
	req.Equal("https://example.com/secret", item.Link)
}
