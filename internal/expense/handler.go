package expense

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/triptally/triptally/internal/expense/split"
	"github.com/triptally/triptally/pkg/middleware"
	"github.com/triptally/triptally/pkg/response"
)

// Handler handles HTTP requests for expense operations
type Handler struct {
	service *Service
}

// NewHandler creates a new expense handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for expense endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/trip/{tripId}", h.ListByTrip)
	r.Get("/{id}", h.GetByID)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)

	r.Post("/splits/{splitId}/pay", h.MarkSplitAsPaid)
	r.Post("/splits/{splitId}/confirm", h.ConfirmSplitPayment)
	r.Post("/splits/{splitId}/dispute", h.DisputeSplit)

	return r
}

// Create handles POST /expenses
// @Summary      Create an expense
// @Description  Record a shared cost and split it between participants
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Param        request body CreateExpenseRequest true "Expense to create"
// @Success      201 {object} response.APIResponse{data=ExpenseResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /expenses [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if req.TripID == "" || req.Description == "" || req.SplitType == "" {
		response.BadRequest(w, "Trip ID, description and split type are required")
		return
	}

	result, err := h.service.CreateExpense(r.Context(), userID, &req)
	if err != nil {
		if isSplitValidationError(err) || errors.Is(err, ErrNegativeAmount) {
			response.BadRequest(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to create expense")
		return
	}

	response.JSON(w, http.StatusCreated, toExpenseResponse(result))
}

// GetByID handles GET /expenses/{id}
// @Summary      Get an expense
// @Tags         expenses
// @Produce      json
// @Param        id path string true "Expense ID"
// @Success      200 {object} response.APIResponse{data=ExpenseResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /expenses/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.service.GetExpenseByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrExpenseNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to get expense")
		return
	}

	response.JSON(w, http.StatusOK, toExpenseResponse(result))
}

// ListByTrip handles GET /expenses/trip/{tripId}
// @Summary      List a trip's expenses
// @Tags         expenses
// @Produce      json
// @Param        tripId path string true "Trip ID"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]ExpenseResponse}
// @Router       /expenses/trip/{tripId} [get]
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

	expenses, total, err := h.service.ListExpensesByTripID(r.Context(), tripID, page, perPage)
	if err != nil {
		response.InternalError(w, "Failed to list expenses")
		return
	}

	expenseResponses := make([]*ExpenseResponse, len(expenses))
	for i, e := range expenses {
		expenseResponses[i] = e.ToResponse()
	}

	totalPages := (total + perPage - 1) / perPage
	meta := &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}

	response.JSONWithMeta(w, http.StatusOK, expenseResponses, meta)
}

// Update handles PATCH /expenses/{id}
// @Summary      Update an expense
// @Description  Only the payer can update the description or category
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Param        id path string true "Expense ID"
// @Param        request body UpdateExpenseRequest true "Fields to update"
// @Success      200 {object} response.APIResponse{data=ExpenseResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /expenses/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")

	var req UpdateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	expense, err := h.service.UpdateExpense(r.Context(), id, userID, &req)
	if err != nil {
		if errors.Is(err, ErrExpenseNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		if errors.Is(err, ErrNotPayer) {
			response.Forbidden(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to update expense")
		return
	}

	response.JSON(w, http.StatusOK, expense.ToResponse())
}

// Delete handles DELETE /expenses/{id}
// @Summary      Delete an expense
// @Description  Only the payer can delete, and only while no split is paid or confirmed
// @Tags         expenses
// @Produce      json
// @Param        id path string true "Expense ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /expenses/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")

	if err := h.service.DeleteExpense(r.Context(), id, userID); err != nil {
		if errors.Is(err, ErrExpenseNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		if errors.Is(err, ErrNotPayer) {
			response.Forbidden(w, err.Error())
			return
		}
		if errors.Is(err, ErrCannotDeleteExpense) {
			response.Conflict(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to delete expense")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Expense deleted successfully"})
}

// MarkSplitAsPaid handles POST /expenses/splits/{splitId}/pay
// @Summary      Mark a split as paid
// @Description  The owing member records that they sent their share to the payer
// @Tags         splits
// @Produce      json
// @Param        splitId path string true "Split ID"
// @Success      200 {object} response.APIResponse{data=SplitResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /expenses/splits/{splitId}/pay [post]
func (h *Handler) MarkSplitAsPaid(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	splitID := chi.URLParam(r, "splitId")

	sp, err := h.service.MarkSplitAsPaid(r.Context(), splitID, userID)
	if err != nil {
		h.writeSplitError(w, err, "Failed to mark split as paid")
		return
	}

	response.JSON(w, http.StatusOK, sp.ToResponse())
}

// ConfirmSplitPayment handles POST /expenses/splits/{splitId}/confirm
// @Summary      Confirm a split payment
// @Description  The payer confirms they received the owing member's share
// @Tags         splits
// @Produce      json
// @Param        splitId path string true "Split ID"
// @Success      200 {object} response.APIResponse{data=SplitResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /expenses/splits/{splitId}/confirm [post]
func (h *Handler) ConfirmSplitPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	splitID := chi.URLParam(r, "splitId")

	sp, err := h.service.ConfirmSplitPayment(r.Context(), splitID, userID)
	if err != nil {
		h.writeSplitError(w, err, "Failed to confirm split payment")
		return
	}

	response.JSON(w, http.StatusOK, sp.ToResponse())
}

// DisputeSplit handles POST /expenses/splits/{splitId}/dispute
// @Summary      Dispute a split
// @Description  The owing member contests their calculated share
// @Tags         splits
// @Accept       json
// @Produce      json
// @Param        splitId path string true "Split ID"
// @Param        request body DisputeSplitRequest true "Dispute reason"
// @Success      200 {object} response.APIResponse{data=SplitResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /expenses/splits/{splitId}/dispute [post]
func (h *Handler) DisputeSplit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	splitID := chi.URLParam(r, "splitId")

	var req DisputeSplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.Reason == "" {
		response.BadRequest(w, "A dispute reason is required")
		return
	}

	sp, err := h.service.DisputeSplit(r.Context(), splitID, userID, req.Reason)
	if err != nil {
		h.writeSplitError(w, err, "Failed to dispute split")
		return
	}

	response.JSON(w, http.StatusOK, sp.ToResponse())
}

func (h *Handler) writeSplitError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrSplitNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNotDebtor), errors.Is(err, ErrNotPayer):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrSplitLocked), errors.Is(err, ErrInvalidStatusChange):
		response.Conflict(w, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}

func toExpenseResponse(ews *ExpenseWithSplits) *ExpenseResponse {
	resp := ews.Expense.ToResponse()
	resp.Splits = make([]*SplitResponse, len(ews.Splits))
	for i, sp := range ews.Splits {
		resp.Splits[i] = sp.ToResponse()
	}
	return resp
}

func isSplitValidationError(err error) bool {
	return errors.Is(err, split.ErrNoParticipants) ||
		errors.Is(err, split.ErrInvalidPercentages) ||
		errors.Is(err, split.ErrInvalidExactAmounts) ||
		errors.Is(err, split.ErrNegativeAmount) ||
		errors.Is(err, split.ErrMissingPercentage) ||
		errors.Is(err, split.ErrMissingExactAmount) ||
		errors.Is(err, split.ErrPercentageOutOfRange)
}
