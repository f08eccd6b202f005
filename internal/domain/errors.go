package domain

import (
	"fmt"

	apperrors "github.com/caredirectory/reviews/pkg/errors"
)

// Error codes surfaced to clients.
const (
	CodeMissingOrInvalidRating = "MISSING_OR_INVALID_RATING"
	CodeContentTooShort        = "CONTENT_TOO_SHORT"
	CodeContentTooLong         = "CONTENT_TOO_LONG"
	CodeTooManyPhotos          = "TOO_MANY_PHOTOS"
	CodeMissingReportDetails   = "MISSING_REPORT_DETAILS"
	CodeInvalidReportReason    = "INVALID_REPORT_REASON"
	CodeAuthRequired           = "AUTH_REQUIRED"
	CodeNotPermitted           = "NOT_PERMITTED"
	CodeAlreadyResponded       = "ALREADY_RESPONDED"
	CodeNotFound               = "NOT_FOUND"
)

// ErrAuthRequired is returned when an operation needs a caller identity and none was supplied.
func ErrAuthRequired() *apperrors.AppError {
	return apperrors.Unauthorized(CodeAuthRequired, "please sign in")
}

// ErrNotPermitted is returned when the caller is identified but may not act.
func ErrNotPermitted(message string) *apperrors.AppError {
	return apperrors.Forbidden(CodeNotPermitted, message)
}

// ErrAlreadyResponded is returned on a second provider response to one review.
func ErrAlreadyResponded(reviewID string) *apperrors.AppError {
	return apperrors.Conflict(CodeAlreadyResponded,
		fmt.Sprintf("a response already exists for review %s", reviewID))
}

// ErrReviewNotFound is returned for unknown review ids.
func ErrReviewNotFound(reviewID string) *apperrors.AppError {
	return apperrors.NotFound("review", reviewID)
}
