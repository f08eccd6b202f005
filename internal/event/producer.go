package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caredirectory/reviews/internal/domain"
	pkgkafka "github.com/caredirectory/reviews/pkg/kafka"
	"github.com/caredirectory/reviews/pkg/logger"
)

// Kafka topic constants for review domain events.
const (
	TopicReviewSubmitted    = "caredirectory.review.submitted"
	TopicReviewHelpfulVoted = "caredirectory.review.helpful_voted"
	TopicReviewReported     = "caredirectory.review.reported"
	TopicReviewResponded    = "caredirectory.review.responded"
)

// Aggregate type constant.
const AggregateTypeReview = "review"

// Source identifier for events originating from the review service.
const SourceReviewService = "review-service"

// ReviewSubmittedData is the payload for a review.submitted event. AuthorID
// is empty for anonymous reviews.
type ReviewSubmittedData struct {
	ID         string                   `json:"id"`
	ProviderID string                   `json:"provider_id"`
	AuthorID   string                   `json:"author_id,omitempty"`
	Ratings    domain.Ratings           `json:"ratings"`
	Verified   bool                     `json:"verified"`
	Anonymous  bool                     `json:"anonymous"`
	PhotoCount int                      `json:"photo_count"`
	CreatedAt  time.Time                `json:"created_at"`
	Aggregate  domain.AggregateSnapshot `json:"aggregate"`
}

// ReviewHelpfulVotedData is the payload for a review.helpful_voted event.
type ReviewHelpfulVotedData struct {
	ReviewID     string `json:"review_id"`
	ProviderID   string `json:"provider_id"`
	UserID       string `json:"user_id"`
	HelpfulCount int    `json:"helpful_count"`
}

// ReviewReportedData is the payload for a review.reported event.
type ReviewReportedData struct {
	ReviewID    string            `json:"review_id"`
	ProviderID  string            `json:"provider_id"`
	UserID      string            `json:"user_id"`
	Reason      domain.ReasonCode `json:"reason"`
	ReportCount int               `json:"report_count"`
}

// ReviewRespondedData is the payload for a review.responded event.
type ReviewRespondedData struct {
	ReviewID    string    `json:"review_id"`
	ProviderID  string    `json:"provider_id"`
	RespondedAt time.Time `json:"responded_at"`
}

type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes review domain events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the review service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishReviewSubmitted publishes a review.submitted event carrying the
// provider's refreshed aggregate.
func (p *Producer) PublishReviewSubmitted(ctx context.Context, review *domain.Review, agg domain.AggregateSnapshot) error {
	pub := review.Public()
	data := ReviewSubmittedData{
		ID:         pub.ID,
		ProviderID: pub.SubjectID,
		AuthorID:   pub.AuthorID,
		Ratings:    pub.Ratings,
		Verified:   pub.Verified,
		Anonymous:  pub.Anonymous,
		PhotoCount: len(pub.PhotoRefs),
		CreatedAt:  pub.CreatedAt,
		Aggregate:  agg,
	}
	return p.publish(ctx, TopicReviewSubmitted, review.ID, data)
}

// PublishHelpfulVoted publishes a review.helpful_voted event.
func (p *Producer) PublishHelpfulVoted(ctx context.Context, providerID, userID string, res domain.VoteResult) error {
	data := ReviewHelpfulVotedData{
		ReviewID:     res.ReviewID,
		ProviderID:   providerID,
		UserID:       userID,
		HelpfulCount: res.HelpfulCount,
	}
	return p.publish(ctx, TopicReviewHelpfulVoted, res.ReviewID, data)
}

// PublishReported publishes a review.reported event.
func (p *Producer) PublishReported(ctx context.Context, providerID, userID string, reason domain.ReasonCode, res domain.ReportResult) error {
	data := ReviewReportedData{
		ReviewID:    res.ReviewID,
		ProviderID:  providerID,
		UserID:      userID,
		Reason:      reason,
		ReportCount: res.ReportCount,
	}
	return p.publish(ctx, TopicReviewReported, res.ReviewID, data)
}

// PublishResponded publishes a review.responded event.
func (p *Producer) PublishResponded(ctx context.Context, review *domain.Review) error {
	data := ReviewRespondedData{
		ReviewID:   review.ID,
		ProviderID: review.SubjectID,
	}
	if review.ProviderResponse != nil {
		data.RespondedAt = review.ProviderResponse.RespondedAt
	}
	return p.publish(ctx, TopicReviewResponded, review.ID, data)
}

func (p *Producer) publish(ctx context.Context, topic, reviewID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, reviewID, AggregateTypeReview, SourceReviewService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published review event",
		slog.String("topic", topic),
		slog.String("review_id", reviewID),
	)
	return nil
}
