package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caredirectory/reviews/internal/domain"
	pkgkafka "github.com/caredirectory/reviews/pkg/kafka"
	"github.com/caredirectory/reviews/pkg/logger"
)

type published struct {
	topic string
	event *pkgkafka.Event
}

type recordingPublisher struct {
	sent []published
	err  error
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, event *pkgkafka.Event) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, published{topic: topic, event: event})
	return nil
}

func newTestProducer(pub publisher) *Producer {
	return &Producer{kafka: pub, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

var createdAt = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func anonymousReview() *domain.Review {
	return &domain.Review{
		ID:            "r1",
		SubjectID:     "prov-1",
		AuthorID:      "user-1",
		CreatedAt:     createdAt,
		Ratings:       domain.Ratings{domain.CriterionOverall: 5},
		PhotoRefs:     []string{"a.jpg", "b.jpg"},
		Anonymous:     true,
		HelpfulVoters: map[string]struct{}{},
	}
}

func TestPublishReviewSubmitted(t *testing.T) {
	rec := &recordingPublisher{}
	p := newTestProducer(rec)
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")

	agg := domain.EmptySnapshot("prov-1")
	agg.ReviewCount = 1
	require.NoError(t, p.PublishReviewSubmitted(ctx, anonymousReview(), agg))

	require.Len(t, rec.sent, 1)
	sent := rec.sent[0]
	assert.Equal(t, TopicReviewSubmitted, sent.topic)
	assert.Equal(t, TopicReviewSubmitted, sent.event.EventType)
	assert.Equal(t, "r1", sent.event.AggregateID)
	assert.Equal(t, AggregateTypeReview, sent.event.AggregateType)
	assert.Equal(t, SourceReviewService, sent.event.Source)
	assert.Equal(t, "corr-1", sent.event.CorrelationID)

	var data ReviewSubmittedData
	require.NoError(t, json.Unmarshal(sent.event.Data, &data))
	assert.Equal(t, "prov-1", data.ProviderID)
	assert.Empty(t, data.AuthorID, "anonymous author must not leave the service")
	assert.True(t, data.Anonymous)
	assert.Equal(t, 2, data.PhotoCount)
	assert.Equal(t, 1, data.Aggregate.ReviewCount)
	assert.Equal(t, createdAt, data.CreatedAt)
}

func TestPublishHelpfulVoted(t *testing.T) {
	rec := &recordingPublisher{}
	p := newTestProducer(rec)

	res := domain.VoteResult{ReviewID: "r1", HelpfulCount: 3, Changed: true}
	require.NoError(t, p.PublishHelpfulVoted(context.Background(), "prov-1", "user-2", res))

	require.Len(t, rec.sent, 1)
	assert.Equal(t, TopicReviewHelpfulVoted, rec.sent[0].topic)
	assert.Empty(t, rec.sent[0].event.CorrelationID)

	var data ReviewHelpfulVotedData
	require.NoError(t, json.Unmarshal(rec.sent[0].event.Data, &data))
	assert.Equal(t, ReviewHelpfulVotedData{ReviewID: "r1", ProviderID: "prov-1", UserID: "user-2", HelpfulCount: 3}, data)
}

func TestPublishReported(t *testing.T) {
	rec := &recordingPublisher{}
	p := newTestProducer(rec)

	res := domain.ReportResult{ReviewID: "r1", ReportCount: 2, Reported: true, Changed: true}
	require.NoError(t, p.PublishReported(context.Background(), "prov-1", "user-3", domain.ReasonFake, res))

	var data ReviewReportedData
	require.NoError(t, json.Unmarshal(rec.sent[0].event.Data, &data))
	assert.Equal(t, TopicReviewReported, rec.sent[0].topic)
	assert.Equal(t, domain.ReasonFake, data.Reason)
	assert.Equal(t, 2, data.ReportCount)
}

func TestPublishResponded(t *testing.T) {
	rec := &recordingPublisher{}
	p := newTestProducer(rec)

	rv := anonymousReview()
	rv.ProviderResponse = &domain.ProviderResponse{Content: "Thanks", RespondedAt: createdAt.Add(time.Hour)}
	require.NoError(t, p.PublishResponded(context.Background(), rv))

	var data ReviewRespondedData
	require.NoError(t, json.Unmarshal(rec.sent[0].event.Data, &data))
	assert.Equal(t, TopicReviewResponded, rec.sent[0].topic)
	assert.Equal(t, createdAt.Add(time.Hour), data.RespondedAt)
}

func TestPublish_Error(t *testing.T) {
	p := newTestProducer(&recordingPublisher{err: errors.New("broker down")})

	err := p.PublishHelpfulVoted(context.Background(), "prov-1", "user-2", domain.VoteResult{ReviewID: "r1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish caredirectory.review.helpful_voted event")
}
