package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/triptally/triptally/pkg/middleware"
	"github.com/triptally/triptally/pkg/response"
)

// Handler handles HTTP requests for settlement operations
type Handler struct {
	service *Service
}

// NewHandler creates a new settlement handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for settlement endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/trip/{tripId}", h.ListByTrip)
	r.Get("/trip/{tripId}/balances", h.GetTripBalances)
	r.Get("/trip/{tripId}/transfers", h.GetSuggestedTransfers)
	r.Get("/trip/{tripId}/categories", h.GetCategoryBreakdown)
	r.Get("/trip/{tripId}/summary", h.GetTripSummary)
	r.Get("/{id}", h.GetByID)
	r.Post("/{id}/pay", h.MarkAsPaid)
	r.Post("/{id}/confirm", h.Confirm)
	r.Post("/{id}/reject", h.Reject)

	return r
}

// Create handles POST /settlements
// @Summary      Create a settlement
// @Description  Start a payment to another trip member. The amount comes from the trip's suggested transfers.
// @Tags         settlements
// @Accept       json
// @Produce      json
// @Param        request body CreateSettlementRequest true "Settlement to create"
// @Success      201 {object} response.APIResponse{data=SettlementResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /settlements [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.TripID == "" || req.ReceiverID == "" {
		response.BadRequest(w, "Trip ID and receiver ID are required")
		return
	}

	settlement, err := h.service.CreateSettlement(r.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, ErrNoDebtToSettle) || errors.Is(err, ErrCannotSettleSelf) {
			response.BadRequest(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to create settlement")
		return
	}

	response.JSON(w, http.StatusCreated, settlement.ToResponse())
}

// GetByID handles GET /settlements/{id}
// @Summary      Get a settlement
// @Tags         settlements
// @Produce      json
// @Param        id path string true "Settlement ID"
// @Success      200 {object} response.APIResponse{data=SettlementResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /settlements/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	settlement, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSettlementNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to get settlement")
		return
	}

	response.JSON(w, http.StatusOK, settlement.ToResponse())
}

// ListByTrip handles GET /settlements/trip/{tripId}
// @Summary      List a trip's settlements
// @Tags         settlements
// @Produce      json
// @Param        tripId path string true "Trip ID"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]SettlementResponse}
// @Router       /settlements/trip/{tripId} [get]
func (h *Handler) ListByTrip(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	settlements, total, err := h.service.ListByTripID(r.Context(), tripID, page, perPage)
	if err != nil {
		response.InternalError(w, "Failed to list settlements")
		return
	}

	settlementResponses := make([]*SettlementResponse, len(settlements))
	for i, s := range settlements {
		settlementResponses[i] = s.ToResponse()
	}

	totalPages := (total + perPage - 1) / perPage
	meta := &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}

	response.JSONWithMeta(w, http.StatusOK, settlementResponses, meta)
}

// GetTripBalances handles GET /settlements/trip/{tripId}/balances
// @Summary      Get trip balances
// @Description  Each member's remaining net position after completed payments
// @Tags         settlements
// @Produce      json
// @Param        tripId path string true "Trip ID"
// @Success      200 {object} response.APIResponse{data=[]BalanceResponse}
// @Router       /settlements/trip/{tripId}/balances [get]
func (h *Handler) GetTripBalances(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")

	balances, err := h.service.GetTripBalances(r.Context(), tripID)
	if err != nil {
		response.InternalError(w, "Failed to get balances")
		return
	}

	response.JSON(w, http.StatusOK, balances)
}

// GetSuggestedTransfers handles GET /settlements/trip/{tripId}/transfers
// @Summary      Get suggested transfers
// @Description  The minimal set of payments that settles the trip
// @Tags         settlements
// @Produce      json
// @Param        tripId path string true "Trip ID"
// @Success      200 {object} response.APIResponse{data=[]TransferResponse}
// @Router       /settlements/trip/{tripId}/transfers [get]
func (h *Handler) GetSuggestedTransfers(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")

	transfers, err := h.service.GetSuggestedTransfers(r.Context(), tripID)
	if err != nil {
		response.InternalError(w, "Failed to get suggested transfers")
		return
	}

	response.JSON(w, http.StatusOK, transfers)
}

// GetCategoryBreakdown handles GET /settlements/trip/{tripId}/categories
// @Summary      Get category totals
// @Tags         settlements
// @Produce      json
// @Param        tripId path string true "Trip ID"
// @Success      200 {object} response.APIResponse{data=[]CategoryTotalResponse}
// @Router       /settlements/trip/{tripId}/categories [get]
func (h *Handler) GetCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")

	totals, err := h.service.GetCategoryBreakdown(r.Context(), tripID)
	if err != nil {
		response.InternalError(w, "Failed to get category totals")
		return
	}

	response.JSON(w, http.StatusOK, totals)
}

// GetTripSummary handles GET /settlements/trip/{tripId}/summary
// @Summary      Get a trip's settle-up summary
// @Tags         settlements
// @Produce      json
// @Param        tripId path string true "Trip ID"
// @Success      200 {object} response.APIResponse{data=TripSummaryResponse}
// @Router       /settlements/trip/{tripId}/summary [get]
func (h *Handler) GetTripSummary(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")

	summary, err := h.service.GetTripSummary(r.Context(), tripID)
	if err != nil {
		response.InternalError(w, "Failed to get trip summary")
		return
	}

	response.JSON(w, http.StatusOK, summary)
}

// MarkAsPaid handles POST /settlements/{id}/pay
// @Summary      Mark a settlement as paid
// @Tags         settlements
// @Produce      json
// @Param        id path string true "Settlement ID"
// @Success      200 {object} response.APIResponse{data=SettlementResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /settlements/{id}/pay [post]
func (h *Handler) MarkAsPaid(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.service.MarkAsPaid, "Failed to mark settlement as paid")
}

// Confirm handles POST /settlements/{id}/confirm
// @Summary      Confirm a settlement
// @Tags         settlements
// @Produce      json
// @Param        id path string true "Settlement ID"
// @Success      200 {object} response.APIResponse{data=SettlementResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /settlements/{id}/confirm [post]
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.service.Confirm, "Failed to confirm settlement")
}

// Reject handles POST /settlements/{id}/reject
// @Summary      Reject a settlement
// @Tags         settlements
// @Produce      json
// @Param        id path string true "Settlement ID"
// @Success      200 {object} response.APIResponse{data=SettlementResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /settlements/{id}/reject [post]
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.service.Reject, "Failed to reject settlement")
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, settlementID, userID string) (*Settlement, error), fallback string) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")

	settlement, err := op(r.Context(), id, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrSettlementNotFound):
			response.NotFound(w, err.Error())
		case errors.Is(err, ErrNotPayer), errors.Is(err, ErrNotReceiver):
			response.Forbidden(w, err.Error())
		case errors.Is(err, ErrInvalidStatusChange):
			response.Conflict(w, err.Error())
		default:
			response.InternalError(w, fallback)
		}
		return
	}

	response.JSON(w, http.StatusOK, settlement.ToResponse())
}
