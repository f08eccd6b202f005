package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/caredirectory/reviews/internal/domain"
	"github.com/caredirectory/reviews/internal/engine"
	apperrors "github.com/caredirectory/reviews/pkg/errors"
)

// --- Mock Review Repository ---

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) CreateReview(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepository) ListBySubject(ctx context.Context, subjectID string) ([]*domain.Review, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) SubjectIDForReview(ctx context.Context, reviewID string) (string, error) {
	args := m.Called(ctx, reviewID)
	return args.String(0), args.Error(1)
}

func (m *mockReviewRepository) AddHelpfulVote(ctx context.Context, reviewID, userID string, at time.Time) (bool, error) {
	args := m.Called(ctx, reviewID, userID, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockReviewRepository) AddReport(ctx context.Context, reviewID string, report domain.Report) (bool, error) {
	args := m.Called(ctx, reviewID, report)
	return args.Bool(0), args.Error(1)
}

func (m *mockReviewRepository) SetProviderResponse(ctx context.Context, reviewID string, response domain.ProviderResponse) error {
	args := m.Called(ctx, reviewID, response)
	return args.Error(0)
}

// --- Mock Aggregate Cache ---

type mockAggregateCache struct {
	mock.Mock
}

func (m *mockAggregateCache) Get(ctx context.Context, subjectID string) (*domain.AggregateSnapshot, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AggregateSnapshot), args.Error(1)
}

func (m *mockAggregateCache) Set(ctx context.Context, snapshot domain.AggregateSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

// --- Mock Event Publisher ---

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishReviewSubmitted(ctx context.Context, review *domain.Review, agg domain.AggregateSnapshot) error {
	args := m.Called(ctx, review, agg)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishHelpfulVoted(ctx context.Context, providerID, userID string, res domain.VoteResult) error {
	args := m.Called(ctx, providerID, userID, res)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishReported(ctx context.Context, providerID, userID string, reason domain.ReasonCode, res domain.ReportResult) error {
	args := m.Called(ctx, providerID, userID, reason, res)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishResponded(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

// --- Test Helpers ---

var baseTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEngine() *engine.Engine {
	var ticks, ids atomic.Int64
	return engine.New(
		engine.WithClock(func() time.Time {
			return baseTime.Add(time.Duration(ticks.Add(1)) * time.Minute)
		}),
		engine.WithIDGenerator(func() (string, error) {
			return fmt.Sprintf("r%04d", ids.Add(1)), nil
		}),
	)
}

type fixture struct {
	svc    *ReviewService
	eng    *engine.Engine
	repo   *mockReviewRepository
	cache  *mockAggregateCache
	events *mockEventPublisher
}

func newFixture() *fixture {
	f := &fixture{
		eng:    newTestEngine(),
		repo:   new(mockReviewRepository),
		cache:  new(mockAggregateCache),
		events: new(mockEventPublisher),
	}
	f.svc = NewReviewService(f.eng, f.repo, f.cache, f.events, newTestLogger())
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	t.Helper()
	f.repo.AssertExpectations(t)
	f.cache.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func validCandidate(provider, author string, overall int) domain.Candidate {
	return domain.Candidate{
		SubjectID: provider,
		AuthorID:  author,
		Ratings: map[string]int{
			"overall":           overall,
			"waitTime":          3,
			"staffFriendliness": 4,
			"communication":     4,
			"overallExperience": 4,
		},
		Content: strings.Repeat("Thorough, kind and on time. ", 3),
	}
}

// seed loads a provider with one existing review and returns that review.
func (f *fixture) seed(t *testing.T, provider string) *domain.Review {
	t.Helper()
	existing := &domain.Review{
		ID:            "seed-1",
		SubjectID:     provider,
		AuthorID:      "patient-0",
		CreatedAt:     baseTime,
		Ratings:       domain.Ratings{domain.CriterionOverall: 3, domain.CriterionWaitTime: 3, domain.CriterionStaffFriendliness: 3, domain.CriterionCommunication: 3, domain.CriterionOverallExperience: 3},
		Content:       strings.Repeat("a", 60),
		HelpfulVoters: map[string]struct{}{},
	}
	require.True(t, f.eng.Load(provider, []*domain.Review{existing}))
	return existing
}

// --- Submit ---

func TestSubmit_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.repo.On("ListBySubject", mock.Anything, "prov-1").Return([]*domain.Review{}, nil).Once()
	f.repo.On("CreateReview", ctx, mock.AnythingOfType("*domain.Review")).Return(nil)
	f.cache.On("Set", ctx, mock.MatchedBy(func(s domain.AggregateSnapshot) bool {
		return s.SubjectID == "prov-1" && s.ReviewCount == 1
	})).Return(nil)
	f.events.On("PublishReviewSubmitted", ctx, mock.AnythingOfType("*domain.Review"), mock.AnythingOfType("domain.AggregateSnapshot")).Return(nil)

	before := testutil.ToFloat64(reviewsSubmittedTotal)
	review, err := f.svc.Submit(ctx, validCandidate("prov-1", "patient-1", 5))

	require.NoError(t, err)
	assert.Equal(t, "r0001", review.ID)
	assert.Equal(t, "prov-1", review.SubjectID)
	assert.Equal(t, 5, review.Overall())
	assert.Equal(t, 1.0, testutil.ToFloat64(reviewsSubmittedTotal)-before)

	agg, err := f.svc.GetAggregate(ctx, "prov-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Average{Value: 5, Valid: true}, agg.Averages[domain.CriterionOverall])

	f.assertExpectations(t)
}

func TestSubmit_RequiresAuthor(t *testing.T) {
	f := newFixture()

	review, err := f.svc.Submit(context.Background(), validCandidate("prov-1", "", 5))

	assert.Nil(t, review)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Equal(t, domain.CodeAuthRequired, apperrors.CodeOf(err))
	f.assertExpectations(t)
}

func TestSubmit_ValidationErrorWritesNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, "prov-1")

	c := validCandidate("prov-1", "patient-1", 5)
	c.Content = "too short"

	before := testutil.ToFloat64(reviewValidationFailuresTotal.WithLabelValues(domain.CodeContentTooShort))
	review, err := f.svc.Submit(ctx, c)

	assert.Nil(t, review)
	assert.Equal(t, domain.CodeContentTooShort, apperrors.CodeOf(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(reviewValidationFailuresTotal.WithLabelValues(domain.CodeContentTooShort))-before)
	assert.Len(t, f.eng.List("prov-1"), 1)
	f.repo.AssertNotCalled(t, "CreateReview", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestSubmit_PersistFailureLeavesEngineUnchanged(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, "prov-1")

	f.repo.On("CreateReview", ctx, mock.AnythingOfType("*domain.Review")).Return(errors.New("db down"))

	review, err := f.svc.Submit(ctx, validCandidate("prov-1", "patient-1", 1))

	assert.Nil(t, review)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create review")
	assert.Len(t, f.eng.List("prov-1"), 1)
	assert.Equal(t, 1, f.eng.Aggregate("prov-1").ReviewCount)
	f.assertExpectations(t)
}

func TestSubmit_CacheAndEventFailuresDoNotFailRequest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, "prov-1")

	f.repo.On("CreateReview", ctx, mock.AnythingOfType("*domain.Review")).Return(nil)
	f.cache.On("Set", ctx, mock.AnythingOfType("domain.AggregateSnapshot")).Return(errors.New("redis down"))
	f.events.On("PublishReviewSubmitted", ctx, mock.Anything, mock.Anything).Return(errors.New("kafka down"))

	review, err := f.svc.Submit(ctx, validCandidate("prov-1", "patient-1", 4))

	require.NoError(t, err)
	assert.NotNil(t, review)
	assert.Equal(t, 2, f.eng.Aggregate("prov-1").ReviewCount)
	f.assertExpectations(t)
}

func TestSubmit_HydrationFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.repo.On("ListBySubject", mock.Anything, "prov-1").Return(nil, errors.New("timeout"))

	_, err := f.svc.Submit(ctx, validCandidate("prov-1", "patient-1", 4))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "load reviews for provider prov-1")
	assert.False(t, f.eng.Loaded("prov-1"))
	f.assertExpectations(t)
}

// --- GetAggregate / ListReviews ---

func TestGetAggregate_ServesCacheForUnloadedProvider(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cached := domain.EmptySnapshot("prov-9")
	cached.ReviewCount = 12
	f.cache.On("Get", ctx, "prov-9").Return(&cached, nil)

	agg, err := f.svc.GetAggregate(ctx, "prov-9")

	require.NoError(t, err)
	assert.Equal(t, 12, agg.ReviewCount)
	assert.False(t, f.eng.Loaded("prov-9"))
	f.assertExpectations(t)
}

func TestGetAggregate_CacheMissHydratesAndFills(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	stored := &domain.Review{ID: "a", CreatedAt: baseTime, Ratings: domain.Ratings{domain.CriterionOverall: 4}, HelpfulVoters: map[string]struct{}{}}
	f.cache.On("Get", ctx, "prov-9").Return(nil, apperrors.NotFound("aggregate", "prov-9"))
	f.repo.On("ListBySubject", mock.Anything, "prov-9").Return([]*domain.Review{stored}, nil).Once()
	f.cache.On("Set", ctx, mock.MatchedBy(func(s domain.AggregateSnapshot) bool {
		return s.SubjectID == "prov-9" && s.ReviewCount == 1
	})).Return(nil)

	agg, err := f.svc.GetAggregate(ctx, "prov-9")

	require.NoError(t, err)
	assert.Equal(t, 1, agg.ReviewCount)
	assert.True(t, f.eng.Loaded("prov-9"))
	f.assertExpectations(t)
}

func TestReads_UnknownProviderLeavesNothingResident(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.repo.On("ListBySubject", mock.Anything, mock.AnythingOfType("string")).Return([]*domain.Review{}, nil)
	f.cache.On("Get", ctx, mock.AnythingOfType("string")).Return(nil, apperrors.NotFound("aggregate", "x"))

	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("garbage-%d", i)

		res, err := f.svc.ListReviews(ctx, id, domain.Filter{}, domain.SortRecent)
		require.NoError(t, err)
		assert.Empty(t, res.Reviews)
		assert.Equal(t, domain.EmptySnapshot(id), res.Summary)

		agg, err := f.svc.GetAggregate(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.EmptySnapshot(id), agg)

		reported, err := f.svc.ListReported(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, reported)

		assert.False(t, f.eng.Loaded(id))
	}
	f.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
}

func TestListReviews_LoadSurvivesCallerCancellation(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stored := &domain.Review{ID: "a", CreatedAt: baseTime, Ratings: domain.Ratings{domain.CriterionOverall: 4}, HelpfulVoters: map[string]struct{}{}}
	f.repo.On("ListBySubject", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), "prov-1").
		Return([]*domain.Review{stored}, nil).Once()

	res, err := f.svc.ListReviews(ctx, "prov-1", domain.Filter{}, domain.SortRecent)

	require.NoError(t, err)
	require.Len(t, res.Reviews, 1)
	f.assertExpectations(t)
}

func TestGetAggregate_LoadedProviderSkipsCache(t *testing.T) {
	f := newFixture()
	f.seed(t, "prov-1")

	agg, err := f.svc.GetAggregate(context.Background(), "prov-1")

	require.NoError(t, err)
	assert.Equal(t, 1, agg.ReviewCount)
	f.cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestListReviews(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	five := 5
	loaded := []*domain.Review{
		{ID: "a", CreatedAt: baseTime, Ratings: domain.Ratings{domain.CriterionOverall: 5}, HelpfulVoters: map[string]struct{}{}},
		{ID: "b", CreatedAt: baseTime.Add(time.Hour), Ratings: domain.Ratings{domain.CriterionOverall: 2}, HelpfulVoters: map[string]struct{}{}},
		{ID: "c", CreatedAt: baseTime.Add(2 * time.Hour), Ratings: domain.Ratings{domain.CriterionOverall: 5}, HelpfulVoters: map[string]struct{}{}},
	}
	f.repo.On("ListBySubject", mock.Anything, "prov-1").Return(loaded, nil).Once()

	res, err := f.svc.ListReviews(ctx, "prov-1", domain.Filter{Rating: &five}, domain.SortRecent)
	require.NoError(t, err)
	require.Len(t, res.Reviews, 2)
	assert.Equal(t, "c", res.Reviews[0].ID)
	assert.Equal(t, "a", res.Reviews[1].ID)
	assert.Equal(t, 3, res.Summary.ReviewCount)

	// a second call is served from memory
	_, err = f.svc.ListReviews(ctx, "prov-1", domain.Filter{}, domain.SortLowest)
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestListReviews_ConcurrentFirstLoadHydratesOnce(t *testing.T) {
	f := newFixture()

	release := make(chan struct{})
	var calls atomic.Int32
	f.repo.On("ListBySubject", mock.Anything, "prov-1").
		Run(func(mock.Arguments) {
			calls.Add(1)
			<-release
		}).
		Return([]*domain.Review{{ID: "a", CreatedAt: baseTime, Ratings: domain.Ratings{domain.CriterionOverall: 4}, HelpfulVoters: map[string]struct{}{}}}, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ListReviews(context.Background(), "prov-1", domain.Filter{}, domain.SortRecent)
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	assert.True(t, f.eng.Loaded("prov-1"))
}

// --- GetReview ---

func TestGetReview_ResolvesThroughRepository(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	stored := &domain.Review{ID: "r-db", CreatedAt: baseTime, Ratings: domain.Ratings{domain.CriterionOverall: 4}, HelpfulVoters: map[string]struct{}{}}
	f.repo.On("SubjectIDForReview", ctx, "r-db").Return("prov-7", nil)
	f.repo.On("ListBySubject", mock.Anything, "prov-7").Return([]*domain.Review{stored}, nil)

	review, err := f.svc.GetReview(ctx, "r-db")
	require.NoError(t, err)
	assert.Equal(t, "prov-7", review.SubjectID)
	f.assertExpectations(t)
}

func TestGetReview_NotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.repo.On("SubjectIDForReview", ctx, "missing").Return("", domain.ErrReviewNotFound("missing"))

	_, err := f.svc.GetReview(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	f.assertExpectations(t)
}

// --- MarkHelpful ---

func TestMarkHelpful_FirstVoteThenRepeat(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seeded := f.seed(t, "prov-1")

	f.repo.On("AddHelpfulVote", ctx, seeded.ID, "voter-1", mock.AnythingOfType("time.Time")).Return(true, nil).Once()
	f.repo.On("AddHelpfulVote", ctx, seeded.ID, "voter-1", mock.AnythingOfType("time.Time")).Return(false, nil).Once()
	f.events.On("PublishHelpfulVoted", ctx, "prov-1", "voter-1", domain.VoteResult{ReviewID: seeded.ID, HelpfulCount: 1, Changed: true}).Return(nil).Once()

	res, err := f.svc.MarkHelpful(ctx, seeded.ID, "voter-1")
	require.NoError(t, err)
	assert.Equal(t, domain.VoteResult{ReviewID: seeded.ID, HelpfulCount: 1, Changed: true}, res)

	res, err = f.svc.MarkHelpful(ctx, seeded.ID, "voter-1")
	require.NoError(t, err)
	assert.Equal(t, domain.VoteResult{ReviewID: seeded.ID, HelpfulCount: 1, Changed: false}, res)

	f.assertExpectations(t)
}

func TestMarkHelpful_RequiresIdentity(t *testing.T) {
	f := newFixture()

	_, err := f.svc.MarkHelpful(context.Background(), "seed-1", "")
	assert.Equal(t, domain.CodeAuthRequired, apperrors.CodeOf(err))
	f.assertExpectations(t)
}

func TestMarkHelpful_PersistFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seeded := f.seed(t, "prov-1")

	f.repo.On("AddHelpfulVote", ctx, seeded.ID, "voter-1", mock.Anything).Return(false, errors.New("db down"))

	_, err := f.svc.MarkHelpful(ctx, seeded.ID, "voter-1")
	require.Error(t, err)

	got, err := f.eng.Get(seeded.ID)
	require.NoError(t, err)
	assert.Zero(t, got.HelpfulCount)
	f.assertExpectations(t)
}

func TestMarkHelpful_ReviewWrittenByAnotherReplica(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seeded := f.seed(t, "prov-1")

	remote := &domain.Review{
		ID:            "remote-1",
		AuthorID:      "patient-5",
		CreatedAt:     baseTime.Add(time.Hour),
		Ratings:       domain.Ratings{domain.CriterionOverall: 5, domain.CriterionWaitTime: 5, domain.CriterionStaffFriendliness: 5, domain.CriterionCommunication: 5, domain.CriterionOverallExperience: 5},
		HelpfulVoters: map[string]struct{}{},
	}
	f.repo.On("SubjectIDForReview", ctx, "remote-1").Return("prov-1", nil).Once()
	f.repo.On("ListBySubject", mock.Anything, "prov-1").Return([]*domain.Review{seeded, remote}, nil).Once()
	f.cache.On("Set", ctx, mock.MatchedBy(func(s domain.AggregateSnapshot) bool {
		return s.SubjectID == "prov-1" && s.ReviewCount == 2
	})).Return(nil).Once()
	f.repo.On("AddHelpfulVote", ctx, "remote-1", "voter-1", mock.Anything).Return(true, nil).Once()
	f.events.On("PublishHelpfulVoted", ctx, "prov-1", "voter-1", domain.VoteResult{ReviewID: "remote-1", HelpfulCount: 1, Changed: true}).Return(nil).Once()

	res, err := f.svc.MarkHelpful(ctx, "remote-1", "voter-1")

	require.NoError(t, err)
	assert.Equal(t, domain.VoteResult{ReviewID: "remote-1", HelpfulCount: 1, Changed: true}, res)
	assert.Equal(t, 2, f.eng.Aggregate("prov-1").ReviewCount)
	f.assertExpectations(t)
}

func TestMarkHelpful_UnresolvableReviewPersistsNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seeded := f.seed(t, "prov-1")

	f.repo.On("SubjectIDForReview", ctx, "gone-1").Return("prov-1", nil)
	f.repo.On("ListBySubject", mock.Anything, "prov-1").Return([]*domain.Review{seeded}, nil)

	_, err := f.svc.MarkHelpful(ctx, "gone-1", "voter-1")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	f.repo.AssertNotCalled(t, "AddHelpfulVote", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestReport_ReviewWrittenByAnotherReplica(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, "prov-1")

	remote := &domain.Review{ID: "remote-2", CreatedAt: baseTime.Add(time.Hour), Ratings: domain.Ratings{domain.CriterionOverall: 1}, HelpfulVoters: map[string]struct{}{}}
	f.repo.On("SubjectIDForReview", ctx, "remote-2").Return("prov-1", nil)
	f.repo.On("ListBySubject", mock.Anything, "prov-1").Return([]*domain.Review{remote}, nil).Once()
	f.cache.On("Set", ctx, mock.AnythingOfType("domain.AggregateSnapshot")).Return(nil)
	f.repo.On("AddReport", ctx, "remote-2", mock.AnythingOfType("domain.Report")).Return(true, nil)
	f.events.On("PublishReported", ctx, "prov-1", "user-3", domain.ReasonSpam, mock.AnythingOfType("domain.ReportResult")).Return(nil)

	res, err := f.svc.Report(ctx, "remote-2", "user-3", domain.ReasonSpam, "")

	require.NoError(t, err)
	assert.True(t, res.Reported)
	assert.Len(t, f.eng.ListReported("prov-1"), 1)
	f.assertExpectations(t)
}

// --- Report ---

func TestReport_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seeded := f.seed(t, "prov-1")

	f.repo.On("AddReport", ctx, seeded.ID, mock.MatchedBy(func(r domain.Report) bool {
		return r.UserID == "user-5" && r.Reason == domain.ReasonSpam && !r.ReportedAt.IsZero()
	})).Return(true, nil)
	f.events.On("PublishReported", ctx, "prov-1", "user-5", domain.ReasonSpam, mock.AnythingOfType("domain.ReportResult")).Return(nil)

	res, err := f.svc.Report(ctx, seeded.ID, "user-5", domain.ReasonSpam, "")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.Reported)
	assert.Equal(t, 1, res.ReportCount)

	reported, err := f.svc.ListReported(ctx, "prov-1")
	require.NoError(t, err)
	require.Len(t, reported, 1)
	assert.Equal(t, seeded.ID, reported[0].ID)

	f.assertExpectations(t)
}

func TestReport_OtherRequiresDetails(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Report(context.Background(), "seed-1", "user-5", domain.ReasonOther, "   ")
	assert.Equal(t, domain.CodeMissingReportDetails, apperrors.CodeOf(err))
	f.assertExpectations(t)
}

func TestReport_RepeatIsNoOp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seeded := f.seed(t, "prov-1")

	f.repo.On("AddReport", ctx, seeded.ID, mock.AnythingOfType("domain.Report")).Return(true, nil).Once()
	f.repo.On("AddReport", ctx, seeded.ID, mock.AnythingOfType("domain.Report")).Return(false, nil).Once()
	f.events.On("PublishReported", ctx, "prov-1", "user-5", domain.ReasonFake, mock.Anything).Return(nil).Once()

	_, err := f.svc.Report(ctx, seeded.ID, "user-5", domain.ReasonFake, "")
	require.NoError(t, err)
	res, err := f.svc.Report(ctx, seeded.ID, "user-5", domain.ReasonSpam, "")
	require.NoError(t, err)

	assert.False(t, res.Changed)
	assert.Equal(t, 1, res.ReportCount)
	f.assertExpectations(t)
}

// --- RespondAsProvider ---

func TestRespondAsProvider_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seeded := f.seed(t, "prov-1")

	f.repo.On("SetProviderResponse", ctx, seeded.ID, mock.MatchedBy(func(r domain.ProviderResponse) bool {
		return r.Content == "Thank you for the feedback"
	})).Return(nil)
	f.events.On("PublishResponded", ctx, mock.AnythingOfType("*domain.Review")).Return(nil)

	review, err := f.svc.RespondAsProvider(ctx, seeded.ID, "prov-1", "  Thank you for the feedback ")
	require.NoError(t, err)
	require.NotNil(t, review.ProviderResponse)
	assert.Equal(t, "Thank you for the feedback", review.ProviderResponse.Content)
	f.assertExpectations(t)
}

func TestRespondAsProvider_WrongProvider(t *testing.T) {
	f := newFixture()
	seeded := f.seed(t, "prov-1")

	_, err := f.svc.RespondAsProvider(context.Background(), seeded.ID, "prov-2", "hello")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, domain.CodeNotPermitted, apperrors.CodeOf(err))
	f.assertExpectations(t)
}

func TestRespondAsProvider_SecondAttemptRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seeded := f.seed(t, "prov-1")

	f.repo.On("SetProviderResponse", ctx, seeded.ID, mock.Anything).Return(nil).Once()
	f.events.On("PublishResponded", ctx, mock.Anything).Return(nil).Once()

	_, err := f.svc.RespondAsProvider(ctx, seeded.ID, "prov-1", "first")
	require.NoError(t, err)

	_, err = f.svc.RespondAsProvider(ctx, seeded.ID, "prov-1", "second")
	assert.Equal(t, domain.CodeAlreadyResponded, apperrors.CodeOf(err))

	got, _ := f.eng.Get(seeded.ID)
	assert.Equal(t, "first", got.ProviderResponse.Content)
	f.assertExpectations(t)
}

func TestRespondAsProvider_ConflictFromStore(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seeded := f.seed(t, "prov-1")

	f.repo.On("SetProviderResponse", ctx, seeded.ID, mock.Anything).Return(domain.ErrAlreadyResponded(seeded.ID))

	_, err := f.svc.RespondAsProvider(ctx, seeded.ID, "prov-1", "late reply")
	assert.Equal(t, domain.CodeAlreadyResponded, apperrors.CodeOf(err))

	got, _ := f.eng.Get(seeded.ID)
	assert.Nil(t, got.ProviderResponse)
	f.assertExpectations(t)
}

func TestRespondAsProvider_Validation(t *testing.T) {
	f := newFixture()

	_, err := f.svc.RespondAsProvider(context.Background(), "seed-1", "", "hi")
	assert.Equal(t, domain.CodeAuthRequired, apperrors.CodeOf(err))

	_, err = f.svc.RespondAsProvider(context.Background(), "seed-1", "prov-1", "  ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	f.assertExpectations(t)
}
