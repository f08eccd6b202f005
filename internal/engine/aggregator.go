package engine

import (
	"github.com/caredirectory/reviews/internal/domain"
)

// tally is a running aggregate. Folding reviews in one at a time yields the
// same snapshot as Compute over the full set.
type tally struct {
	count        int64
	sums         map[domain.Criterion]int64
	distribution [domain.MaxRating + 1]int
}

func newTally() tally {
	return tally{sums: make(map[domain.Criterion]int64, len(domain.Criteria()))}
}

func (t *tally) add(r *domain.Review) {
	t.count++
	for _, c := range domain.Criteria() {
		t.sums[c] += int64(r.Ratings[c])
	}
	t.distribution[domain.DistributionBucket(float64(r.Overall()))]++
}

func (t *tally) snapshot(subjectID string) domain.AggregateSnapshot {
	s := domain.EmptySnapshot(subjectID)
	s.ReviewCount = int(t.count)
	for _, c := range domain.Criteria() {
		s.Averages[c] = domain.MeanOf(t.sums[c], t.count)
	}
	for b := domain.MinRating; b <= domain.MaxRating; b++ {
		s.Distribution[b] = t.distribution[b]
	}
	return s
}

// Compute derives the aggregate of reviews from scratch.
func Compute(subjectID string, reviews []*domain.Review) domain.AggregateSnapshot {
	t := newTally()
	for _, r := range reviews {
		t.add(r)
	}
	return t.snapshot(subjectID)
}

// Aggregate returns the current rating summary of a subject. Unknown
// subjects yield the empty snapshot.
func (e *Engine) Aggregate(subjectID string) domain.AggregateSnapshot {
	s, ok := e.subject(subjectID)
	if !ok {
		return domain.EmptySnapshot(subjectID)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tally.snapshot(subjectID)
}
