package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caredirectory/reviews/internal/domain"
)

func ids(reviews []*domain.Review) []string {
	out := make([]string, len(reviews))
	for i, r := range reviews {
		out[i] = r.ID
	}
	return out
}

// seedPipeline stores reviews r0001..r0006 with ascending createdAt.
func seedPipeline(t *testing.T) *Engine {
	t.Helper()
	e := newTestEngine()

	fixtures := []struct {
		overall  int
		verified bool
		votes    int
	}{
		{5, true, 1},  // r0001
		{3, false, 3}, // r0002
		{5, false, 0}, // r0003
		{1, true, 3},  // r0004
		{4, true, 0},  // r0005
		{5, true, 2},  // r0006
	}
	for _, s := range fixtures {
		c := candidate(s.overall)
		c.Verified = s.verified
		r := submit(t, e, c)
		for v := 0; v < s.votes; v++ {
			_, err := e.MarkHelpful(r.ID, string(rune('a'+v)))
			require.NoError(t, err)
		}
	}
	return e
}

func TestView_Recent(t *testing.T) {
	e := seedPipeline(t)
	assert.Equal(t,
		[]string{"r0006", "r0005", "r0004", "r0003", "r0002", "r0001"},
		ids(e.View(provider, domain.Filter{}, domain.SortRecent)))
}

func TestView_FilterRatingRecent(t *testing.T) {
	e := seedPipeline(t)
	five := 5

	got := e.View(provider, domain.Filter{Rating: &five}, domain.SortRecent)
	assert.Equal(t, []string{"r0006", "r0003", "r0001"}, ids(got))
	for _, r := range got {
		assert.Equal(t, 5, r.Overall())
	}
}

func TestView_FilterIntersection(t *testing.T) {
	e := seedPipeline(t)
	five, verified := 5, true

	got := e.View(provider, domain.Filter{Rating: &five, Verified: &verified}, domain.SortRecent)
	assert.Equal(t, []string{"r0006", "r0001"}, ids(got))

	notVerified := false
	got = e.View(provider, domain.Filter{Verified: &notVerified}, domain.SortRecent)
	assert.Equal(t, []string{"r0003", "r0002"}, ids(got))
}

func TestView_Highest(t *testing.T) {
	e := seedPipeline(t)
	got := e.View(provider, domain.Filter{}, domain.SortHighest)

	assert.Equal(t, []string{"r0006", "r0003", "r0001", "r0005", "r0002", "r0004"}, ids(got))
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Overall(), got[i].Overall())
	}
}

func TestView_Lowest(t *testing.T) {
	e := seedPipeline(t)
	assert.Equal(t,
		[]string{"r0004", "r0002", "r0005", "r0006", "r0003", "r0001"},
		ids(e.View(provider, domain.Filter{}, domain.SortLowest)))
}

func TestView_Helpful(t *testing.T) {
	e := seedPipeline(t)
	assert.Equal(t,
		[]string{"r0004", "r0002", "r0006", "r0001", "r0005", "r0003"},
		ids(e.View(provider, domain.Filter{}, domain.SortHelpful)))
}

func TestView_EqualTimestampsBreakOnID(t *testing.T) {
	e := New(WithClock(func() time.Time { return baseTime }))
	a := submit(t, e, candidate(4))
	b := submit(t, e, candidate(4))

	// UUIDv7 ids sort in creation order.
	require.Less(t, a.ID, b.ID)
	assert.Equal(t, []string{b.ID, a.ID}, ids(e.View(provider, domain.Filter{}, domain.SortRecent)))
}

func TestView_DoesNotMutate(t *testing.T) {
	e := seedPipeline(t)
	before := ids(e.List(provider))

	view := e.View(provider, domain.Filter{}, domain.SortLowest)
	view[0].HelpfulCount = 1000

	assert.Equal(t, before, ids(e.List(provider)))
	got, _ := e.Get(view[0].ID)
	assert.Equal(t, 3, got.HelpfulCount)
}

func TestView_UnknownSubject(t *testing.T) {
	got := newTestEngine().View("nobody", domain.Filter{}, domain.SortRecent)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
