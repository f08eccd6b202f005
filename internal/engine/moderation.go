package engine

import (
	"strings"
	"time"

	"github.com/caredirectory/reviews/internal/domain"
	apperrors "github.com/caredirectory/reviews/pkg/errors"
)

// Report flags a review for moderation. Each user can report a review once;
// a repeat report is a no-op reported with Changed false.
func (e *Engine) Report(reviewID, userID string, reason domain.ReasonCode, details string) (domain.ReportResult, error) {
	return e.ReportAt(reviewID, userID, reason, details, e.now())
}

// ReportAt is Report with an explicit report time.
func (e *Engine) ReportAt(reviewID, userID string, reason domain.ReasonCode, details string, at time.Time) (domain.ReportResult, error) {
	if userID == "" {
		return domain.ReportResult{}, domain.ErrAuthRequired()
	}
	if err := domain.ValidateReport(reason, details); err != nil {
		return domain.ReportResult{}, err
	}

	s, err := e.lookup(reviewID)
	if err != nil {
		return domain.ReportResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.byID[reviewID]
	res := domain.ReportResult{ReviewID: reviewID}
	if !r.HasReported(userID) {
		r.ReportReasons = append(r.ReportReasons, domain.Report{
			UserID:     userID,
			Reason:     reason,
			Details:    strings.TrimSpace(details),
			ReportedAt: at,
		})
		r.Reported = true
		res.Changed = true
	}
	res.ReportCount = len(r.ReportReasons)
	res.Reported = r.Reported
	return res, nil
}

// ListReported returns copies of a subject's reported reviews, most recent
// first, for human moderation. Nothing is removed automatically.
func (e *Engine) ListReported(subjectID string) []*domain.Review {
	s, ok := e.subject(subjectID)
	if !ok {
		return []*domain.Review{}
	}

	s.mu.RLock()
	out := make([]*domain.Review, 0)
	for _, r := range s.reviews {
		if r.Reported {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()

	sortReviews(out, domain.SortRecent)
	return out
}

// CheckRespond reports whether providerID may respond to reviewID right now,
// without changing anything.
func (e *Engine) CheckRespond(reviewID, providerID string) error {
	if providerID == "" {
		return domain.ErrAuthRequired()
	}

	s, err := e.lookup(reviewID)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return checkRespond(s.byID[reviewID], providerID)
}

func checkRespond(r *domain.Review, providerID string) error {
	if r.SubjectID != providerID {
		return domain.ErrNotPermitted("only the reviewed provider may respond")
	}
	if r.ProviderResponse != nil {
		return domain.ErrAlreadyResponded(r.ID)
	}
	return nil
}

// RespondAsProvider attaches the provider's reply to a review. A review takes
// at most one response; a second attempt fails and leaves the first intact.
func (e *Engine) RespondAsProvider(reviewID, text, providerID string) (*domain.Review, error) {
	return e.RespondAsProviderAt(reviewID, text, providerID, e.now())
}

// RespondAsProviderAt is RespondAsProvider with an explicit response time.
func (e *Engine) RespondAsProviderAt(reviewID, text, providerID string, at time.Time) (*domain.Review, error) {
	if providerID == "" {
		return nil, domain.ErrAuthRequired()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.InvalidInput("response content is required")
	}

	s, err := e.lookup(reviewID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.byID[reviewID]
	if err := checkRespond(r, providerID); err != nil {
		return nil, err
	}
	r.ProviderResponse = &domain.ProviderResponse{Content: text, RespondedAt: at}
	return r.Clone(), nil
}
