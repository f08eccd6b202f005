package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/caredirectory/reviews/internal/domain"
	"github.com/caredirectory/reviews/pkg/database"
	apperrors "github.com/caredirectory/reviews/pkg/errors"
)

// foreignKeyViolation is the SQLSTATE raised when a vote or report names a
// review that does not exist.
const foreignKeyViolation = "23503"

const insertReviewSQL = `
	INSERT INTO reviews (
		id, provider_id, author_id,
		rating_overall, rating_wait_time, rating_staff_friendliness,
		rating_communication, rating_overall_experience,
		content, pros, cons, tips, photo_refs, verified, anonymous, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

// listReviewsSQL reads a provider's reviews together with their votes and
// reports in one statement so the three sets come from the same snapshot.
const listReviewsSQL = `
	SELECT r.id, r.provider_id, r.author_id,
	       r.rating_overall, r.rating_wait_time, r.rating_staff_friendliness,
	       r.rating_communication, r.rating_overall_experience,
	       r.content, r.pros, r.cons, r.tips, r.photo_refs, r.verified, r.anonymous,
	       r.provider_response, r.responded_at, r.created_at,
	       COALESCE((SELECT array_agg(v.user_id ORDER BY v.voted_at, v.user_id)
	                 FROM review_helpful_votes v WHERE v.review_id = r.id), '{}') AS helpful_voters,
	       COALESCE((SELECT jsonb_agg(jsonb_build_object(
	                     'user_id', p.user_id, 'reason', p.reason,
	                     'details', p.details, 'reported_at', p.reported_at)
	                     ORDER BY p.reported_at, p.user_id)
	                 FROM review_reports p WHERE p.review_id = r.id), '[]'::jsonb) AS reports
	FROM reviews r
	WHERE r.provider_id = $1
	ORDER BY r.created_at, r.id`

const subjectForReviewSQL = `SELECT provider_id FROM reviews WHERE id = $1`

const insertVoteSQL = `
	INSERT INTO review_helpful_votes (review_id, user_id, voted_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (review_id, user_id) DO NOTHING`

const insertReportSQL = `
	INSERT INTO review_reports (review_id, user_id, reason, details, reported_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (review_id, user_id) DO NOTHING`

const setResponseSQL = `
	UPDATE reviews
	SET provider_response = $2, responded_at = $3
	WHERE id = $1 AND provider_response IS NULL`

const reviewExistsSQL = `SELECT EXISTS (SELECT 1 FROM reviews WHERE id = $1)`

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// CreateReview inserts a new review.
func (r *ReviewRepository) CreateReview(ctx context.Context, review *domain.Review) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateReview", insertReviewSQL)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, insertReviewSQL,
		review.ID,
		review.SubjectID,
		review.AuthorID,
		review.Ratings[domain.CriterionOverall],
		review.Ratings[domain.CriterionWaitTime],
		review.Ratings[domain.CriterionStaffFriendliness],
		review.Ratings[domain.CriterionCommunication],
		review.Ratings[domain.CriterionOverallExperience],
		review.Content,
		nonNil(review.Pros),
		nonNil(review.Cons),
		review.Tips,
		nonNil(review.PhotoRefs),
		review.Verified,
		review.Anonymous,
		review.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// ListBySubject returns every review of a provider, oldest first, with
// helpful voters, reports and any provider response attached.
func (r *ReviewRepository) ListBySubject(ctx context.Context, subjectID string) (_ []*domain.Review, err error) {
	ctx, end := database.TraceQuery(ctx, "ListReviewsBySubject", listReviewsSQL)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, listReviewsSQL, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*domain.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}

	return reviews, nil
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var (
		rv                                         domain.Review
		overall, wait, staff, communication, exper int
		response                                   *string
		respondedAt                                *time.Time
		voters                                     []string
		reports                                    []byte
	)

	if err := row.Scan(
		&rv.ID,
		&rv.SubjectID,
		&rv.AuthorID,
		&overall,
		&wait,
		&staff,
		&communication,
		&exper,
		&rv.Content,
		&rv.Pros,
		&rv.Cons,
		&rv.Tips,
		&rv.PhotoRefs,
		&rv.Verified,
		&rv.Anonymous,
		&response,
		&respondedAt,
		&rv.CreatedAt,
		&voters,
		&reports,
	); err != nil {
		return nil, fmt.Errorf("scan review row: %w", err)
	}

	rv.CreatedAt = rv.CreatedAt.UTC()
	rv.Ratings = domain.Ratings{
		domain.CriterionOverall:           overall,
		domain.CriterionWaitTime:          wait,
		domain.CriterionStaffFriendliness: staff,
		domain.CriterionCommunication:     communication,
		domain.CriterionOverallExperience: exper,
	}
	rv.Pros = nonNil(rv.Pros)
	rv.Cons = nonNil(rv.Cons)
	rv.PhotoRefs = nonNil(rv.PhotoRefs)

	rv.HelpfulVoters = make(map[string]struct{}, len(voters))
	for _, u := range voters {
		rv.HelpfulVoters[u] = struct{}{}
	}
	rv.HelpfulCount = len(rv.HelpfulVoters)

	if len(reports) > 0 {
		if err := json.Unmarshal(reports, &rv.ReportReasons); err != nil {
			return nil, fmt.Errorf("unmarshal reports for review %s: %w", rv.ID, err)
		}
	}
	if len(rv.ReportReasons) == 0 {
		rv.ReportReasons = nil
	}
	for i := range rv.ReportReasons {
		rv.ReportReasons[i].ReportedAt = rv.ReportReasons[i].ReportedAt.UTC()
	}
	rv.Reported = len(rv.ReportReasons) > 0

	if response != nil {
		pr := &domain.ProviderResponse{Content: *response}
		if respondedAt != nil {
			pr.RespondedAt = respondedAt.UTC()
		}
		rv.ProviderResponse = pr
	}

	return &rv, nil
}

// SubjectIDForReview returns the provider id a review belongs to.
func (r *ReviewRepository) SubjectIDForReview(ctx context.Context, reviewID string) (_ string, err error) {
	ctx, end := database.TraceQuery(ctx, "SubjectIDForReview", subjectForReviewSQL)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var subjectID string
	if err = r.pool.QueryRow(ctx, subjectForReviewSQL, reviewID).Scan(&subjectID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrReviewNotFound(reviewID)
		}
		return "", fmt.Errorf("get review provider: %w", err)
	}
	return subjectID, nil
}

// AddHelpfulVote inserts a vote, ignoring a repeat from the same user.
func (r *ReviewRepository) AddHelpfulVote(ctx context.Context, reviewID, userID string, at time.Time) (_ bool, err error) {
	ctx, end := database.TraceQuery(ctx, "AddHelpfulVote", insertVoteSQL)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, insertVoteSQL, reviewID, userID, at)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, domain.ErrReviewNotFound(reviewID)
		}
		return false, fmt.Errorf("insert helpful vote: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AddReport inserts a moderation report, ignoring a repeat from the same user.
func (r *ReviewRepository) AddReport(ctx context.Context, reviewID string, report domain.Report) (_ bool, err error) {
	ctx, end := database.TraceQuery(ctx, "AddReport", insertReportSQL)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, insertReportSQL,
		reviewID,
		report.UserID,
		string(report.Reason),
		report.Details,
		report.ReportedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, domain.ErrReviewNotFound(reviewID)
		}
		return false, fmt.Errorf("insert report: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetProviderResponse stores the first provider response to a review. The
// conditional update keeps the response single even across replicas.
func (r *ReviewRepository) SetProviderResponse(ctx context.Context, reviewID string, response domain.ProviderResponse) (err error) {
	ctx, end := database.TraceQuery(ctx, "SetProviderResponse", setResponseSQL)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, setResponseSQL, reviewID, response.Content, response.RespondedAt)
	if err != nil {
		return fmt.Errorf("set provider response: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err = r.pool.QueryRow(ctx, reviewExistsSQL, reviewID).Scan(&exists); err != nil {
		return fmt.Errorf("check review exists: %w", err)
	}
	if !exists {
		return domain.ErrReviewNotFound(reviewID)
	}
	return domain.ErrAlreadyResponded(reviewID)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
