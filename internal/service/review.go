package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/caredirectory/reviews/internal/domain"
	"github.com/caredirectory/reviews/internal/engine"
	"github.com/caredirectory/reviews/internal/repository"
	apperrors "github.com/caredirectory/reviews/pkg/errors"
)

// EventPublisher emits review domain events. Implemented by event.Producer.
type EventPublisher interface {
	PublishReviewSubmitted(ctx context.Context, review *domain.Review, agg domain.AggregateSnapshot) error
	PublishHelpfulVoted(ctx context.Context, providerID, userID string, res domain.VoteResult) error
	PublishReported(ctx context.Context, providerID, userID string, reason domain.ReasonCode, res domain.ReportResult) error
	PublishResponded(ctx context.Context, review *domain.Review) error
}

// ReviewListResult is one provider's filtered, ordered reviews together with
// the provider's unfiltered rating summary.
type ReviewListResult struct {
	Reviews []*domain.Review
	Summary domain.AggregateSnapshot
}

// ReviewService coordinates the in-memory engine with the Postgres journal,
// the aggregate cache and the event stream. Every mutation is written to
// Postgres before the engine changes, so a failed write leaves both untouched.
type ReviewService struct {
	engine *engine.Engine
	repo   repository.ReviewRepository
	cache  repository.AggregateCache
	events EventPublisher
	logger *slog.Logger

	hydration singleflight.Group
	refreshes singleflight.Group
}

// NewReviewService creates a new review service. cache and events may be nil.
func NewReviewService(
	eng *engine.Engine,
	repo repository.ReviewRepository,
	cache repository.AggregateCache,
	events EventPublisher,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		engine: eng,
		repo:   repo,
		cache:  cache,
		events: events,
		logger: logger,
	}
}

// Submit validates and stores a new review, then refreshes the provider's
// cached aggregate.
func (s *ReviewService) Submit(ctx context.Context, c domain.Candidate) (*domain.Review, error) {
	if strings.TrimSpace(c.AuthorID) == "" {
		return nil, domain.ErrAuthRequired()
	}
	if strings.TrimSpace(c.SubjectID) == "" {
		return nil, apperrors.InvalidInput("provider id is required")
	}

	if err := s.ensureLoaded(ctx, c.SubjectID); err != nil {
		return nil, err
	}

	review, err := s.engine.Prepare(c)
	if err != nil {
		s.recordValidationFailure(err)
		return nil, err
	}

	// Install the provider before the write so a concurrent hydration cannot
	// load the new review ahead of Insert.
	s.engine.Load(c.SubjectID, nil)

	if err := s.repo.CreateReview(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	stored, err := s.engine.Insert(review)
	if err != nil {
		return nil, fmt.Errorf("insert review: %w", err)
	}
	reviewsSubmittedTotal.Inc()

	agg := s.engine.Aggregate(stored.SubjectID)
	s.storeAggregate(ctx, agg)

	if s.events != nil {
		if err := s.events.PublishReviewSubmitted(ctx, stored, agg); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish review.submitted event",
				slog.String("review_id", stored.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "review submitted",
		slog.String("review_id", stored.ID),
		slog.String("provider_id", stored.SubjectID),
		slog.String("user_id", stored.AuthorID),
		slog.Int("overall", stored.Overall()),
	)

	return stored, nil
}

// GetAggregate returns a provider's rating summary. For a provider not yet in
// memory the cached snapshot is served when present.
func (s *ReviewService) GetAggregate(ctx context.Context, subjectID string) (domain.AggregateSnapshot, error) {
	if s.engine.Loaded(subjectID) {
		return s.engine.Aggregate(subjectID), nil
	}

	if s.cache != nil {
		snap, err := s.cache.Get(ctx, subjectID)
		if err == nil {
			return *snap, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.ErrorContext(ctx, "failed to read cached aggregate",
				slog.String("provider_id", subjectID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.ensureLoaded(ctx, subjectID); err != nil {
		return domain.AggregateSnapshot{}, err
	}
	agg := s.engine.Aggregate(subjectID)
	if s.engine.Loaded(subjectID) {
		s.storeAggregate(ctx, agg)
	}
	return agg, nil
}

// ListReviews returns a provider's reviews matching filter in the requested
// order, along with the provider's full aggregate.
func (s *ReviewService) ListReviews(ctx context.Context, subjectID string, filter domain.Filter, order domain.SortOrder) (*ReviewListResult, error) {
	if err := s.ensureLoaded(ctx, subjectID); err != nil {
		return nil, err
	}

	return &ReviewListResult{
		Reviews: s.engine.View(subjectID, filter, order),
		Summary: s.engine.Aggregate(subjectID),
	}, nil
}

// GetReview returns a single review.
func (s *ReviewService) GetReview(ctx context.Context, reviewID string) (*domain.Review, error) {
	if _, err := s.resolve(ctx, reviewID); err != nil {
		return nil, err
	}
	return s.engine.Get(reviewID)
}

// MarkHelpful records a helpful vote from userID. Repeat votes succeed
// without changing the count.
func (s *ReviewService) MarkHelpful(ctx context.Context, reviewID, userID string) (domain.VoteResult, error) {
	if userID == "" {
		return domain.VoteResult{}, domain.ErrAuthRequired()
	}

	subjectID, err := s.resolve(ctx, reviewID)
	if err != nil {
		return domain.VoteResult{}, err
	}

	if _, err := s.repo.AddHelpfulVote(ctx, reviewID, userID, s.engine.Now()); err != nil {
		return domain.VoteResult{}, fmt.Errorf("add helpful vote: %w", err)
	}

	res, err := s.engine.MarkHelpful(reviewID, userID)
	if err != nil {
		return domain.VoteResult{}, err
	}
	reviewHelpfulVotesTotal.WithLabelValues(changedLabel(res.Changed)).Inc()

	if !res.Changed {
		s.logger.DebugContext(ctx, "repeat helpful vote ignored",
			slog.String("review_id", reviewID),
			slog.String("user_id", userID),
		)
		return res, nil
	}

	if s.events != nil {
		if err := s.events.PublishHelpfulVoted(ctx, subjectID, userID, res); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish review.helpful_voted event",
				slog.String("review_id", reviewID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "review marked helpful",
		slog.String("review_id", reviewID),
		slog.String("provider_id", subjectID),
		slog.String("user_id", userID),
		slog.Int("helpful_count", res.HelpfulCount),
	)

	return res, nil
}

// Report flags a review for moderation. Repeat reports from the same user
// succeed without adding a second entry.
func (s *ReviewService) Report(ctx context.Context, reviewID, userID string, reason domain.ReasonCode, details string) (domain.ReportResult, error) {
	if userID == "" {
		return domain.ReportResult{}, domain.ErrAuthRequired()
	}
	if err := domain.ValidateReport(reason, details); err != nil {
		s.recordValidationFailure(err)
		return domain.ReportResult{}, err
	}

	subjectID, err := s.resolve(ctx, reviewID)
	if err != nil {
		return domain.ReportResult{}, err
	}

	at := s.engine.Now()
	report := domain.Report{
		UserID:     userID,
		Reason:     reason,
		Details:    strings.TrimSpace(details),
		ReportedAt: at,
	}
	if _, err := s.repo.AddReport(ctx, reviewID, report); err != nil {
		return domain.ReportResult{}, fmt.Errorf("add report: %w", err)
	}

	res, err := s.engine.ReportAt(reviewID, userID, reason, details, at)
	if err != nil {
		return domain.ReportResult{}, err
	}
	reviewReportsTotal.WithLabelValues(string(reason), changedLabel(res.Changed)).Inc()

	if !res.Changed {
		s.logger.DebugContext(ctx, "repeat report ignored",
			slog.String("review_id", reviewID),
			slog.String("user_id", userID),
		)
		return res, nil
	}

	if s.events != nil {
		if err := s.events.PublishReported(ctx, subjectID, userID, reason, res); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish review.reported event",
				slog.String("review_id", reviewID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "review reported",
		slog.String("review_id", reviewID),
		slog.String("provider_id", subjectID),
		slog.String("user_id", userID),
		slog.String("reason", string(reason)),
		slog.Int("report_count", res.ReportCount),
	)

	return res, nil
}

// ListReported returns a provider's reported reviews for moderation.
func (s *ReviewService) ListReported(ctx context.Context, subjectID string) ([]*domain.Review, error) {
	if err := s.ensureLoaded(ctx, subjectID); err != nil {
		return nil, err
	}
	return s.engine.ListReported(subjectID), nil
}

// RespondAsProvider attaches the reviewed provider's single public reply.
func (s *ReviewService) RespondAsProvider(ctx context.Context, reviewID, providerID, text string) (*domain.Review, error) {
	if providerID == "" {
		return nil, domain.ErrAuthRequired()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.InvalidInput("response content is required")
	}

	subjectID, err := s.resolve(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	if err := s.engine.CheckRespond(reviewID, providerID); err != nil {
		return nil, err
	}

	at := s.engine.Now()
	resp := domain.ProviderResponse{Content: text, RespondedAt: at}
	if err := s.repo.SetProviderResponse(ctx, reviewID, resp); err != nil {
		return nil, fmt.Errorf("set provider response: %w", err)
	}

	review, err := s.engine.RespondAsProviderAt(reviewID, text, providerID, at)
	if err != nil {
		return nil, err
	}
	reviewProviderResponsesTotal.Inc()

	if s.events != nil {
		if err := s.events.PublishResponded(ctx, review); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish review.responded event",
				slog.String("review_id", reviewID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "provider responded to review",
		slog.String("review_id", reviewID),
		slog.String("provider_id", subjectID),
	)

	return review, nil
}

// ensureLoaded installs a provider's persisted reviews into the engine the
// first time the provider is touched. Concurrent callers share one load, which
// outlives any single caller's cancellation. A provider with no persisted
// reviews is not kept in memory.
func (s *ReviewService) ensureLoaded(ctx context.Context, subjectID string) error {
	if s.engine.Loaded(subjectID) {
		return nil
	}

	_, err, _ := s.hydration.Do(subjectID, func() (any, error) {
		if s.engine.Loaded(subjectID) {
			return nil, nil
		}

		start := time.Now()
		reviews, err := s.repo.ListBySubject(context.WithoutCancel(ctx), subjectID)
		if err != nil {
			return nil, fmt.Errorf("load reviews for provider %s: %w", subjectID, err)
		}
		if len(reviews) == 0 {
			return nil, nil
		}
		if s.engine.Load(subjectID, reviews) {
			reviewHydrationDuration.Observe(time.Since(start).Seconds())
			s.logger.DebugContext(ctx, "provider reviews loaded",
				slog.String("provider_id", subjectID),
				slog.Int("review_count", len(reviews)),
			)
		}
		return nil, nil
	})
	return err
}

// refresh merges reviews persisted since a loaded provider was hydrated,
// typically by another replica.
func (s *ReviewService) refresh(ctx context.Context, subjectID string) error {
	_, err, _ := s.refreshes.Do(subjectID, func() (any, error) {
		reviews, err := s.repo.ListBySubject(context.WithoutCancel(ctx), subjectID)
		if err != nil {
			return nil, fmt.Errorf("refresh reviews for provider %s: %w", subjectID, err)
		}
		if n := s.engine.Merge(subjectID, reviews); n > 0 {
			s.logger.InfoContext(ctx, "merged reviews persisted elsewhere",
				slog.String("provider_id", subjectID),
				slog.Int("merged", n),
			)
			s.storeAggregate(ctx, s.engine.Aggregate(subjectID))
		}
		return nil, nil
	})
	return err
}

// resolve returns the provider owning reviewID and makes sure the engine
// holds the review. It fails with not found before anything is persisted
// when the review cannot be installed.
func (s *ReviewService) resolve(ctx context.Context, reviewID string) (string, error) {
	if subjectID, err := s.engine.SubjectOf(reviewID); err == nil {
		return subjectID, nil
	}

	subjectID, err := s.repo.SubjectIDForReview(ctx, reviewID)
	if err != nil {
		return "", err
	}

	if s.engine.Loaded(subjectID) {
		err = s.refresh(ctx, subjectID)
	} else {
		err = s.ensureLoaded(ctx, subjectID)
	}
	if err != nil {
		return "", err
	}

	if _, err := s.engine.SubjectOf(reviewID); err != nil {
		return "", err
	}
	return subjectID, nil
}

func (s *ReviewService) storeAggregate(ctx context.Context, agg domain.AggregateSnapshot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, agg); err != nil {
		s.logger.ErrorContext(ctx, "failed to cache aggregate",
			slog.String("provider_id", agg.SubjectID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ReviewService) recordValidationFailure(err error) {
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		return
	}
	if code := apperrors.CodeOf(err); code != "" {
		reviewValidationFailuresTotal.WithLabelValues(code).Inc()
	}
}
