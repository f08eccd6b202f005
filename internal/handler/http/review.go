package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/caredirectory/reviews/internal/domain"
	"github.com/caredirectory/reviews/internal/service"
	apperrors "github.com/caredirectory/reviews/pkg/errors"
	"github.com/caredirectory/reviews/pkg/httputil"
	"github.com/caredirectory/reviews/pkg/middleware"
	"github.com/caredirectory/reviews/pkg/pagination"
	"github.com/caredirectory/reviews/pkg/validator"
)

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// SubmitReviewRequest is the JSON request body for submitting a review.
// Ratings, content length and photo count are checked by the domain so that
// clients get the specific error codes.
type SubmitReviewRequest struct {
	Ratings   map[string]int `json:"ratings"`
	Content   string         `json:"content"`
	Pros      []string       `json:"pros" validate:"max=20,dive,max=200"`
	Cons      []string       `json:"cons" validate:"max=20,dive,max=200"`
	Tips      string         `json:"tips" validate:"max=1000"`
	PhotoRefs []string       `json:"photo_refs" validate:"dive,notblank,max=512"`
	Verified  bool           `json:"verified"`
	Anonymous bool           `json:"anonymous"`
}

// ReportReviewRequest is the JSON request body for reporting a review.
type ReportReviewRequest struct {
	Reason  string `json:"reason"`
	Details string `json:"details" validate:"max=1000"`
}

// RespondRequest is the JSON request body for a provider response.
type RespondRequest struct {
	Content string `json:"content" validate:"required,notblank,max=2000"`
}

// --- Response DTOs ---

// ReviewListResponse is the body of a provider review listing.
type ReviewListResponse struct {
	Reviews []*domain.Review         `json:"reviews"`
	Summary domain.AggregateSnapshot `json:"summary"`
}

// --- Handlers ---

// SubmitReview handles POST /api/v1/providers/{providerId}/reviews
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerId")

	var req SubmitReviewRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.service.Submit(r.Context(), domain.Candidate{
		SubjectID: providerID,
		AuthorID:  middleware.UserIDFromContext(r.Context()),
		Ratings:   req.Ratings,
		Content:   req.Content,
		Pros:      req.Pros,
		Cons:      req.Cons,
		Tips:      req.Tips,
		PhotoRefs: req.PhotoRefs,
		Verified:  req.Verified,
		Anonymous: req.Anonymous,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: review})
}

// ListReviews handles GET /api/v1/providers/{providerId}/reviews
// Query: rating (1-5), verified (bool), sort (recent|helpful|highest|lowest),
// page, per_page.
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerId")

	filter, order, err := parseViewQuery(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.service.ListReviews(r.Context(), providerID, filter, order)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	page, meta := pagination.Slice(result.Reviews, pagination.FromRequest(r))
	for i, rv := range page {
		page[i] = rv.Public()
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: ReviewListResponse{Reviews: page, Summary: result.Summary},
		Meta: meta,
	})
}

// GetSummary handles GET /api/v1/providers/{providerId}/reviews/summary
func (h *ReviewHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerId")

	agg, err := h.service.GetAggregate(r.Context(), providerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: agg})
}

// ListReported handles GET /api/v1/providers/{providerId}/reviews/reported
// Moderators see author ids and report reasons.
func (h *ReviewHandler) ListReported(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerId")

	reviews, err := h.service.ListReported(r.Context(), providerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	page, meta := pagination.Slice(reviews, pagination.FromRequest(r))
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: page, Meta: meta})
}

// GetReview handles GET /api/v1/reviews/{reviewId}
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}

	review, err := h.service.GetReview(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review.Public()})
}

// MarkHelpful handles POST /api/v1/reviews/{reviewId}/helpful
func (h *ReviewHandler) MarkHelpful(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}

	res, err := h.service.MarkHelpful(r.Context(), id.String(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: res})
}

// ReportReview handles POST /api/v1/reviews/{reviewId}/reports
func (h *ReviewHandler) ReportReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}

	var req ReportReviewRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := h.service.Report(r.Context(), id.String(), middleware.UserIDFromContext(r.Context()),
		domain.ReasonCode(req.Reason), req.Details)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: res})
}

// RespondToReview handles POST /api/v1/reviews/{reviewId}/response
// The caller's identity is the responding provider.
func (h *ReviewHandler) RespondToReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}

	providerID := middleware.UserIDFromContext(r.Context())
	if providerID == "" {
		httputil.WriteError(w, r, domain.ErrAuthRequired(), h.logger)
		return
	}

	var req RespondRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.service.RespondAsProvider(r.Context(), id.String(), providerID, req.Content)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review.Public()})
}

func parseViewQuery(r *http.Request) (domain.Filter, domain.SortOrder, error) {
	q := r.URL.Query()
	var filter domain.Filter

	if v := q.Get("rating"); v != "" {
		rating, err := strconv.Atoi(v)
		if err != nil || rating < domain.MinRating || rating > domain.MaxRating {
			return filter, "", apperrors.InvalidInput("rating must be an integer from 1 to 5")
		}
		filter.Rating = &rating
	}

	if v := q.Get("verified"); v != "" {
		verified, err := strconv.ParseBool(v)
		if err != nil {
			return filter, "", apperrors.InvalidInput("verified must be true or false")
		}
		filter.Verified = &verified
	}

	order, err := domain.ParseSortOrder(q.Get("sort"))
	if err != nil {
		return filter, "", err
	}
	return filter, order, nil
}
