package repository

import (
	"context"
	"time"

	"github.com/caredirectory/reviews/internal/domain"
)

// ReviewRepository is the durable journal behind the in-memory engine.
type ReviewRepository interface {
	// CreateReview inserts a prepared review.
	CreateReview(ctx context.Context, review *domain.Review) error

	// ListBySubject returns every review of a provider with its helpful
	// voters, reports and provider response filled in.
	ListBySubject(ctx context.Context, subjectID string) ([]*domain.Review, error)

	// SubjectIDForReview returns the provider a review belongs to.
	SubjectIDForReview(ctx context.Context, reviewID string) (string, error)

	// AddHelpfulVote records a helpful vote. It reports false when the user
	// had already voted.
	AddHelpfulVote(ctx context.Context, reviewID, userID string, at time.Time) (bool, error)

	// AddReport records a moderation report. It reports false when the user
	// had already reported the review.
	AddReport(ctx context.Context, reviewID string, report domain.Report) (bool, error)

	// SetProviderResponse stores the provider's reply. It fails with an
	// ALREADY_RESPONDED conflict when the review already has one.
	SetProviderResponse(ctx context.Context, reviewID string, response domain.ProviderResponse) error
}

// AggregateCache holds computed rating summaries keyed by provider.
type AggregateCache interface {
	// Get returns a cached snapshot, or a not found error on a miss.
	Get(ctx context.Context, subjectID string) (*domain.AggregateSnapshot, error)

	// Set stores a snapshot, replacing any previous one.
	Set(ctx context.Context, snapshot domain.AggregateSnapshot) error
}
