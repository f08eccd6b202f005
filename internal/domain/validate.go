package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	apperrors "github.com/caredirectory/reviews/pkg/errors"
)

// Content and attachment limits.
const (
	MinContentLength = 50
	MaxContentLength = 1000
	MaxPhotoRefs     = 5
)

// ValidateCandidate checks a submission in a fixed order and returns the first
// failure: ratings, then content length, then photo count. On success it
// returns the parsed ratings.
func ValidateCandidate(c Candidate) (Ratings, error) {
	ratings, err := parseRatings(c.Ratings)
	if err != nil {
		return nil, err
	}

	switch n := utf8.RuneCountInString(c.Content); {
	case n < MinContentLength:
		return nil, apperrors.Validation(CodeContentTooShort, "content",
			fmt.Sprintf("content must be at least %d characters", MinContentLength))
	case n > MaxContentLength:
		return nil, apperrors.Validation(CodeContentTooLong, "content",
			fmt.Sprintf("content must be at most %d characters", MaxContentLength))
	}

	if len(c.PhotoRefs) > MaxPhotoRefs {
		return nil, apperrors.Validation(CodeTooManyPhotos, "photo_refs",
			fmt.Sprintf("at most %d photos may be attached", MaxPhotoRefs))
	}

	return ratings, nil
}

func parseRatings(raw map[string]int) (Ratings, error) {
	ratings := make(Ratings, len(Criteria()))
	for _, key := range slices.Sorted(maps.Keys(raw)) {
		v := raw[key]
		c, ok := ParseCriterion(key)
		if !ok {
			return nil, invalidRating("ratings."+key, fmt.Sprintf("unknown rating criterion %q", key))
		}
		if v < MinRating || v > MaxRating {
			return nil, invalidRating("ratings."+key,
				fmt.Sprintf("rating must be between %d and %d", MinRating, MaxRating))
		}
		ratings[c] = v
	}

	for _, c := range Criteria() {
		if _, ok := ratings[c]; !ok {
			return nil, invalidRating("ratings."+string(c), "rating is required")
		}
	}
	return ratings, nil
}

func invalidRating(field, message string) *apperrors.AppError {
	return apperrors.Validation(CodeMissingOrInvalidRating, field, message)
}

// ValidateReport checks a report's reason code, requiring details for "other".
func ValidateReport(reason ReasonCode, details string) error {
	if !reason.IsValid() {
		return apperrors.Validation(CodeInvalidReportReason, "reason",
			fmt.Sprintf("reason must be one of: %s", joinReasons()))
	}
	if reason == ReasonOther && strings.TrimSpace(details) == "" {
		return apperrors.Validation(CodeMissingReportDetails, "details",
			`details are required when reason is "other"`)
	}
	return nil
}

func joinReasons() string {
	codes := ReasonCodes()
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

// NormalizeList trims entries and drops blank ones. A nil or all-blank input
// yields an empty, non-nil slice.
func NormalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
