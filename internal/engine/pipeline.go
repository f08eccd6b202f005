package engine

import (
	"cmp"
	"slices"
	"strings"

	"github.com/caredirectory/reviews/internal/domain"
)

// View returns copies of the subject's reviews that match filter, ordered by
// order. The filter and copy happen under one read lock, so the result
// reflects a single consistent state of the subject.
func (e *Engine) View(subjectID string, filter domain.Filter, order domain.SortOrder) []*domain.Review {
	s, ok := e.subject(subjectID)
	if !ok {
		return []*domain.Review{}
	}

	s.mu.RLock()
	out := make([]*domain.Review, 0, len(s.reviews))
	for _, r := range s.reviews {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()

	sortReviews(out, order)
	return out
}

// compareRecent orders newer reviews first, breaking createdAt ties by
// descending id.
func compareRecent(a, b *domain.Review) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}

func comparatorFor(order domain.SortOrder) func(a, b *domain.Review) int {
	switch order {
	case domain.SortHelpful:
		return func(a, b *domain.Review) int {
			return cmp.Or(cmp.Compare(b.HelpfulCount, a.HelpfulCount), compareRecent(a, b))
		}
	case domain.SortHighest:
		return func(a, b *domain.Review) int {
			return cmp.Or(cmp.Compare(b.Overall(), a.Overall()), compareRecent(a, b))
		}
	case domain.SortLowest:
		return func(a, b *domain.Review) int {
			return cmp.Or(cmp.Compare(a.Overall(), b.Overall()), compareRecent(a, b))
		}
	default:
		return compareRecent
	}
}

func sortReviews(reviews []*domain.Review, order domain.SortOrder) {
	slices.SortFunc(reviews, comparatorFor(order))
}
