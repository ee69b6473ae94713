package trip

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/triptally/triptally/pkg/middleware"
	"github.com/triptally/triptally/pkg/response"
)

// Handler handles HTTP requests for trip operations
type Handler struct {
	service *Service
}

// NewHandler creates a new trip handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for trip endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.ListMine)
	r.Get("/{id}", h.GetByID)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)

	// Membership
	r.Post("/{id}/members", h.AddMember)
	r.Get("/{id}/members", h.GetMembers)
	r.Post("/{id}/members/accept", h.AcceptInvitation)
	r.Patch("/{id}/members/{userId}", h.UpdateMember)
	r.Delete("/{id}/members/{userId}", h.RemoveMember)

	return r
}

// Create handles POST /trips
// @Summary      Create a new trip
// @Description  Create a trip; the creator becomes a joined admin
// @Tags         trips
// @Accept       json
// @Produce      json
// @Param        request body CreateTripRequest true "Trip creation request"
// @Success      201 {object} response.APIResponse{data=TripResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /trips [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if req.Name == "" || req.Destination == "" {
		response.BadRequest(w, "Name and destination are required")
		return
	}

	trip, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, ErrInvalidDateRange) {
			response.BadRequest(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to create trip")
		return
	}

	response.JSON(w, http.StatusCreated, trip.ToResponse())
}

// ListMine handles GET /trips
// @Summary      List my trips
// @Tags         trips
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]TripResponse}
// @Router       /trips [get]
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	trips, total, err := h.service.ListByUserID(r.Context(), userID, page, perPage)
	if err != nil {
		response.InternalError(w, "Failed to list trips")
		return
	}

	tripResponses := make([]*TripResponse, len(trips))
	for i, t := range trips {
		tripResponses[i] = t.ToResponse()
	}

	totalPages := (total + perPage - 1) / perPage
	meta := &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}

	response.JSONWithMeta(w, http.StatusOK, tripResponses, meta)
}

// GetByID handles GET /trips/{id}
// @Summary      Get trip by ID
// @Description  Get a trip with all its members
// @Tags         trips
// @Produce      json
// @Param        id path string true "Trip ID"
// @Success      200 {object} response.APIResponse{data=TripResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /trips/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	trip, members, err := h.service.GetByIDWithMembers(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrTripNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to get trip")
		return
	}

	tripResp := trip.ToResponse()
	tripResp.Members = make([]*MemberResponse, len(members))
	for i, m := range members {
		tripResp.Members[i] = m.ToResponse()
	}

	response.JSON(w, http.StatusOK, tripResp)
}

// Update handles PATCH /trips/{id}
// @Summary      Update a trip
// @Tags         trips
// @Accept       json
// @Produce      json
// @Param        id path string true "Trip ID"
// @Param        request body UpdateTripRequest true "Fields to update"
// @Success      200 {object} response.APIResponse{data=TripResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /trips/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	trip, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, ErrTripNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to update trip")
		return
	}

	response.JSON(w, http.StatusOK, trip.ToResponse())
}

// Delete handles DELETE /trips/{id}
// @Summary      Delete a trip
// @Description  Delete a trip; admin members only
// @Tags         trips
// @Produce      json
// @Param        id path string true "Trip ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /trips/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, ErrNotAuthorized) {
			response.Forbidden(w, err.Error())
			return
		}
		if errors.Is(err, ErrTripNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to delete trip")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Trip deleted successfully"})
}

// AddMember handles POST /trips/{id}/members
// @Summary      Invite a member
// @Tags         trips
// @Accept       json
// @Produce      json
// @Param        id path string true "Trip ID"
// @Param        request body AddMemberRequest true "Member to invite"
// @Success      201 {object} response.APIResponse{data=MemberResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /trips/{id}/members [post]
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if req.UserID == "" {
		response.BadRequest(w, "User ID is required")
		return
	}

	member, err := h.service.AddMember(r.Context(), tripID, &req)
	if err != nil {
		if errors.Is(err, ErrTripNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		if errors.Is(err, ErrMemberAlreadyExists) {
			response.Conflict(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to add member")
		return
	}

	response.JSON(w, http.StatusCreated, member.ToResponse())
}

// GetMembers handles GET /trips/{id}/members
// @Summary      List trip members
// @Tags         trips
// @Produce      json
// @Param        id path string true "Trip ID"
// @Success      200 {object} response.APIResponse{data=[]MemberResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /trips/{id}/members [get]
func (h *Handler) GetMembers(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")

	members, err := h.service.GetMembers(r.Context(), tripID)
	if err != nil {
		if errors.Is(err, ErrTripNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to get members")
		return
	}

	memberResponses := make([]*MemberResponse, len(members))
	for i, m := range members {
		memberResponses[i] = m.ToResponse()
	}

	response.JSON(w, http.StatusOK, memberResponses)
}

// AcceptInvitation handles POST /trips/{id}/members/accept
// @Summary      Accept a trip invitation
// @Tags         trips
// @Produce      json
// @Param        id path string true "Trip ID"
// @Success      200 {object} response.APIResponse{data=MemberResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /trips/{id}/members/accept [post]
func (h *Handler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")

	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	member, err := h.service.AcceptInvitation(r.Context(), tripID, userID)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to accept invitation")
		return
	}

	response.JSON(w, http.StatusOK, member.ToResponse())
}

// UpdateMember handles PATCH /trips/{id}/members/{userId}
// @Summary      Update a member's status or role
// @Tags         trips
// @Accept       json
// @Produce      json
// @Param        id path string true "Trip ID"
// @Param        userId path string true "User ID"
// @Param        request body UpdateMemberRequest true "Fields to update"
// @Success      200 {object} response.APIResponse{data=MemberResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /trips/{id}/members/{userId} [patch]
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userId")

	var req UpdateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	member, err := h.service.UpdateMember(r.Context(), tripID, userID, &req)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to update member")
		return
	}

	response.JSON(w, http.StatusOK, member.ToResponse())
}

// RemoveMember handles DELETE /trips/{id}/members/{userId}
// @Summary      Remove a member from a trip
// @Tags         trips
// @Produce      json
// @Param        id path string true "Trip ID"
// @Param        userId path string true "User ID"
// @Success      200 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /trips/{id}/members/{userId} [delete]
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userId")

	if err := h.service.RemoveMember(r.Context(), tripID, userID); err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to remove member")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Member removed successfully"})
}
