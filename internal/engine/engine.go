// Package engine holds the in-memory review state of each provider and the
// operations on it: submission, aggregation, helpful votes, moderation
// reports, provider responses and filtered views.
//
// Each provider's reviews are guarded by their own lock. Mutations on one
// provider are serialized; reads run concurrently and always observe a
// complete mutation or none of it. Callers never receive pointers into
// engine state, only copies.
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caredirectory/reviews/internal/domain"
)

// Engine is safe for concurrent use.
type Engine struct {
	// mu guards subjects and index. When both are needed, a subject's lock
	// is taken before mu.
	mu       sync.RWMutex
	subjects map[string]*subject
	index    map[string]string // review id -> subject id

	now   func() time.Time
	newID func() (string, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for createdAt and other stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides review id generation. Generated ids must sort in
// creation order for the recency tie-break to hold.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(e *Engine) { e.newID = gen }
}

// New creates an empty engine. Review ids default to UUIDv7, which are
// time-ordered and sort lexically in creation order.
func New(opts ...Option) *Engine {
	e := &Engine{
		subjects: make(map[string]*subject),
		index:    make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
		newID: func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Loaded reports whether the engine holds state for subjectID.
func (e *Engine) Loaded(subjectID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.subjects[subjectID]
	return ok
}

func (e *Engine) subject(subjectID string) (*subject, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.subjects[subjectID]
	return s, ok
}

func (e *Engine) subjectOrCreate(subjectID string) *subject {
	if s, ok := e.subject(subjectID); ok {
		return s
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.subjects[subjectID]; ok {
		return s
	}
	s := newSubject(subjectID)
	e.subjects[subjectID] = s
	return s
}

// lookup resolves the subject owning reviewID.
func (e *Engine) lookup(reviewID string) (*subject, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	subjectID, ok := e.index[reviewID]
	if !ok {
		return nil, domain.ErrReviewNotFound(reviewID)
	}
	return e.subjects[subjectID], nil
}

// SubjectOf returns the provider id owning reviewID.
func (e *Engine) SubjectOf(reviewID string) (string, error) {
	s, err := e.lookup(reviewID)
	if err != nil {
		return "", err
	}
	return s.id, nil
}
