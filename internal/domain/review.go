package domain

import (
	"time"
)

// Review is a patient's review of a provider. Identity fields and ratings are
// fixed at submission; only the helpful votes, reports and provider response
// change afterwards.
type Review struct {
	ID               string              `json:"id"`
	SubjectID        string              `json:"provider_id"`
	AuthorID         string              `json:"author_id,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	Ratings          Ratings             `json:"ratings"`
	Content          string              `json:"content"`
	Pros             []string            `json:"pros"`
	Cons             []string            `json:"cons"`
	Tips             string              `json:"tips,omitempty"`
	PhotoRefs        []string            `json:"photo_refs"`
	Verified         bool                `json:"verified"`
	Anonymous        bool                `json:"anonymous"`
	HelpfulCount     int                 `json:"helpful_count"`
	HelpfulVoters    map[string]struct{} `json:"-"`
	Reported         bool                `json:"reported"`
	ReportReasons    []Report            `json:"report_reasons,omitempty"`
	ProviderResponse *ProviderResponse   `json:"provider_response,omitempty"`
}

// Report is a single user's moderation flag on a review.
type Report struct {
	UserID     string     `json:"user_id"`
	Reason     ReasonCode `json:"reason"`
	Details    string     `json:"details,omitempty"`
	ReportedAt time.Time  `json:"reported_at"`
}

// ProviderResponse is the reviewed provider's one public reply.
type ProviderResponse struct {
	Content     string    `json:"content"`
	RespondedAt time.Time `json:"responded_at"`
}

// Overall returns the review's overall rating.
func (r *Review) Overall() int {
	return r.Ratings[CriterionOverall]
}

// HasVoted reports whether userID has already marked the review helpful.
func (r *Review) HasVoted(userID string) bool {
	_, ok := r.HelpfulVoters[userID]
	return ok
}

// HasReported reports whether userID has already reported the review.
func (r *Review) HasReported(userID string) bool {
	for _, rep := range r.ReportReasons {
		if rep.UserID == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of r that shares no mutable state with it.
func (r *Review) Clone() *Review {
	c := *r
	c.Ratings = r.Ratings.Clone()
	c.Pros = append([]string{}, r.Pros...)
	c.Cons = append([]string{}, r.Cons...)
	c.PhotoRefs = append([]string{}, r.PhotoRefs...)

	c.HelpfulVoters = make(map[string]struct{}, len(r.HelpfulVoters))
	for u := range r.HelpfulVoters {
		c.HelpfulVoters[u] = struct{}{}
	}

	if r.ReportReasons != nil {
		c.ReportReasons = append([]Report(nil), r.ReportReasons...)
	}
	if r.ProviderResponse != nil {
		resp := *r.ProviderResponse
		c.ProviderResponse = &resp
	}
	return &c
}

// Public returns a copy fit for public listings: anonymous authors are hidden
// and moderation details are dropped.
func (r *Review) Public() *Review {
	c := r.Clone()
	if c.Anonymous {
		c.AuthorID = ""
	}
	c.ReportReasons = nil
	return c
}

// Candidate is an unvalidated review submission. Ratings are keyed by raw
// wire names so unknown criteria can be rejected.
type Candidate struct {
	SubjectID string
	AuthorID  string
	Ratings   map[string]int
	Content   string
	Pros      []string
	Cons      []string
	Tips      string
	PhotoRefs []string
	Verified  bool
	Anonymous bool
}
