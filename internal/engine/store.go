package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/caredirectory/reviews/internal/domain"
)

// subject is one provider's review set and its running aggregate.
type subject struct {
	id string

	mu      sync.RWMutex
	reviews []*domain.Review
	byID    map[string]*domain.Review
	tally   tally
}

func newSubject(id string) *subject {
	return &subject{
		id:    id,
		byID:  make(map[string]*domain.Review),
		tally: newTally(),
	}
}

// add appends r and folds it into the running aggregate. s.mu must be held
// for writing unless s is not yet shared.
func (s *subject) add(r *domain.Review) {
	s.reviews = append(s.reviews, r)
	s.byID[r.ID] = r
	s.tally.add(r)
}

// Prepare validates a candidate and builds the review it would create,
// assigning its id and creation time. Engine state is not touched, so the
// result can be persisted before Insert makes it visible.
func (e *Engine) Prepare(c domain.Candidate) (*domain.Review, error) {
	if strings.TrimSpace(c.AuthorID) == "" {
		return nil, domain.ErrAuthRequired()
	}

	ratings, err := domain.ValidateCandidate(c)
	if err != nil {
		return nil, err
	}

	id, err := e.newID()
	if err != nil {
		return nil, fmt.Errorf("generate review id: %w", err)
	}

	photos := append([]string{}, c.PhotoRefs...)
	return &domain.Review{
		ID:            id,
		SubjectID:     c.SubjectID,
		AuthorID:      c.AuthorID,
		CreatedAt:     e.now(),
		Ratings:       ratings,
		Content:       c.Content,
		Pros:          domain.NormalizeList(c.Pros),
		Cons:          domain.NormalizeList(c.Cons),
		Tips:          strings.TrimSpace(c.Tips),
		PhotoRefs:     photos,
		Verified:      c.Verified,
		Anonymous:     c.Anonymous,
		HelpfulVoters: make(map[string]struct{}),
	}, nil
}

// Insert adds a prepared review to its subject and folds it into the
// aggregate. It returns a copy of the stored review.
func (e *Engine) Insert(r *domain.Review) (*domain.Review, error) {
	s := e.subjectOrCreate(r.SubjectID)
	stored := r.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[stored.ID]; exists {
		return nil, fmt.Errorf("insert review %s: duplicate id", stored.ID)
	}
	s.add(stored)

	e.mu.Lock()
	e.index[stored.ID] = s.id
	e.mu.Unlock()

	return stored.Clone(), nil
}

// Submit validates and stores a candidate in one step. A failed submission
// leaves the engine unchanged.
func (e *Engine) Submit(c domain.Candidate) (*domain.Review, error) {
	r, err := e.Prepare(c)
	if err != nil {
		return nil, err
	}
	return e.Insert(r)
}

// Load installs a subject's persisted reviews. The first load of a subject
// wins; later calls, or calls for a subject that already has state, return
// false and change nothing. Derived fields are recomputed from the vote and
// report sets so the stored invariants hold whatever the input says.
func (e *Engine) Load(subjectID string, reviews []*domain.Review) bool {
	s := newSubject(subjectID)
	for _, r := range reviews {
		if _, dup := s.byID[r.ID]; dup {
			continue
		}
		s.add(persisted(subjectID, r))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.subjects[subjectID]; exists {
		return false
	}
	e.subjects[subjectID] = s
	for _, r := range s.reviews {
		e.index[r.ID] = subjectID
	}
	return true
}

// Merge adds persisted reviews that the subject does not hold yet, such as
// ones written by another replica after the subject was loaded. Reviews the
// subject already holds keep their in-memory state. An unknown subject is
// created. It returns the number of reviews added.
func (e *Engine) Merge(subjectID string, reviews []*domain.Review) int {
	if len(reviews) == 0 {
		return 0
	}
	s := e.subjectOrCreate(subjectID)

	s.mu.Lock()
	defer s.mu.Unlock()

	var added []string
	for _, r := range reviews {
		if _, ok := s.byID[r.ID]; ok {
			continue
		}
		s.add(persisted(subjectID, r))
		added = append(added, r.ID)
	}
	if len(added) == 0 {
		return 0
	}

	e.mu.Lock()
	for _, id := range added {
		e.index[id] = s.id
	}
	e.mu.Unlock()
	return len(added)
}

// persisted copies a stored review and recomputes its derived fields from
// the vote and report sets.
func persisted(subjectID string, r *domain.Review) *domain.Review {
	c := r.Clone()
	c.SubjectID = subjectID
	c.HelpfulCount = len(c.HelpfulVoters)
	c.Reported = len(c.ReportReasons) > 0
	return c
}

// Get returns a copy of one review.
func (e *Engine) Get(reviewID string) (*domain.Review, error) {
	s, err := e.lookup(reviewID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[reviewID].Clone(), nil
}

// List returns copies of a subject's reviews in insertion order. Callers
// wanting a particular order use View.
func (e *Engine) List(subjectID string) []*domain.Review {
	s, ok := e.subject(subjectID)
	if !ok {
		return []*domain.Review{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Review, len(s.reviews))
	for i, r := range s.reviews {
		out[i] = r.Clone()
	}
	return out
}
