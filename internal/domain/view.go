package domain

import (
	"fmt"
	"strings"

	apperrors "github.com/caredirectory/reviews/pkg/errors"
)

// Filter narrows a view. A nil field places no constraint on that dimension.
type Filter struct {
	Rating   *int
	Verified *bool
}

// Matches reports whether r satisfies every set predicate.
func (f Filter) Matches(r *Review) bool {
	if f.Rating != nil && r.Overall() != *f.Rating {
		return false
	}
	if f.Verified != nil && r.Verified != *f.Verified {
		return false
	}
	return true
}

// SortOrder selects how a view is ordered.
type SortOrder string

const (
	SortRecent  SortOrder = "recent"
	SortHelpful SortOrder = "helpful"
	SortHighest SortOrder = "highest"
	SortLowest  SortOrder = "lowest"
)

// ParseSortOrder parses a sort name; empty means SortRecent.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return SortRecent, nil
	case SortRecent, SortHelpful, SortHighest, SortLowest:
		return o, nil
	default:
		return "", apperrors.InvalidInput(
			fmt.Sprintf("sort must be one of: %s, %s, %s, %s", SortRecent, SortHelpful, SortHighest, SortLowest))
	}
}

// VoteResult is the outcome of a helpful vote.
type VoteResult struct {
	ReviewID     string `json:"review_id"`
	HelpfulCount int    `json:"helpful_count"`
	Changed      bool   `json:"changed"`
}

// ReportResult is the outcome of a moderation report.
type ReportResult struct {
	ReviewID    string `json:"review_id"`
	ReportCount int    `json:"report_count"`
	Reported    bool   `json:"reported"`
	Changed     bool   `json:"changed"`
}
