package engine

import (
	"github.com/caredirectory/reviews/internal/domain"
)

// MarkHelpful records userID's helpful vote on a review. A repeat vote from
// the same user is a no-op reported with Changed false, not an error.
func (e *Engine) MarkHelpful(reviewID, userID string) (domain.VoteResult, error) {
	if userID == "" {
		return domain.VoteResult{}, domain.ErrAuthRequired()
	}

	s, err := e.lookup(reviewID)
	if err != nil {
		return domain.VoteResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.byID[reviewID]
	res := domain.VoteResult{ReviewID: reviewID}
	if !r.HasVoted(userID) {
		r.HelpfulVoters[userID] = struct{}{}
		r.HelpfulCount = len(r.HelpfulVoters)
		res.Changed = true
	}
	res.HelpfulCount = r.HelpfulCount
	return res, nil
}
