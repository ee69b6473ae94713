package trip

import "time"

// CreateTripRequest represents the request to create a new trip
type CreateTripRequest struct {
	Name        string     `json:"name" validate:"required,min=1,max=100"`
	Destination string     `json:"destination" validate:"required,min=1,max=100"`
	Description *string    `json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// UpdateTripRequest represents the request to update a trip
type UpdateTripRequest struct {
	Name        *string    `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Destination *string    `json:"destination,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string    `json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// AddMemberRequest represents the request to invite a member to a trip
type AddMemberRequest struct {
	UserID string     `json:"user_id" validate:"required"`
	Role   MemberRole `json:"role"`
}

// UpdateMemberRequest represents the request to update a member's status or role
type UpdateMemberRequest struct {
	Status *MemberStatus `json:"status,omitempty"`
	Role   *MemberRole   `json:"role,omitempty"`
}

// TripResponse represents the response for a trip
type TripResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Destination string            `json:"destination"`
	Description *string           `json:"description,omitempty"`
	StartDate   *string           `json:"start_date,omitempty"`
	EndDate     *string           `json:"end_date,omitempty"`
	CreatedAt   string            `json:"created_at"`
	Members     []*MemberResponse `json:"members,omitempty"`
}

// MemberResponse represents a member in a trip response
type MemberResponse struct {
	ID       string       `json:"id"`
	UserID   string       `json:"user_id"`
	Username string       `json:"username"`
	Email    string       `json:"email"`
	Status   MemberStatus `json:"status"`
	Role     MemberRole   `json:"role"`
	JoinedAt string       `json:"joined_at"`
}

// ToResponse converts a Trip model to a TripResponse DTO
func (t *Trip) ToResponse() *TripResponse {
	resp := &TripResponse{
		ID:          t.ID,
		Name:        t.Name,
		Destination: t.Destination,
		Description: t.Description,
		CreatedAt:   t.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if t.StartDate != nil {
		s := t.StartDate.Format("2006-01-02")
		resp.StartDate = &s
	}
	if t.EndDate != nil {
		s := t.EndDate.Format("2006-01-02")
		resp.EndDate = &s
	}
	return resp
}

// ToResponse converts a TripMember model to a MemberResponse DTO
func (m *TripMember) ToResponse() *MemberResponse {
	return &MemberResponse{
		ID:       m.ID,
		UserID:   m.UserID,
		Username: m.Username,
		Email:    m.Email,
		Status:   m.Status,
		Role:     m.Role,
		JoinedAt: m.JoinedAt.Format("2006-01-02T15:04:05Z"),
	}
}
