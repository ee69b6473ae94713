package trip

import "time"

// MemberStatus represents the status of a trip member
type MemberStatus string

const (
	MemberStatusInvited MemberStatus = "INVITED"
	MemberStatusJoined  MemberStatus = "JOINED"
)

// MemberRole represents the role of a trip member
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "ADMIN"
	MemberRoleMember MemberRole = "MEMBER"
)

// Trip represents a planned trip shared by a group of travelers
type Trip struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Destination string     `json:"destination"`
	Description *string    `json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TripMember represents a user's membership in a trip
type TripMember struct {
	ID       string       `json:"id"`
	TripID   string       `json:"trip_id"`
	UserID   string       `json:"user_id"`
	Status   MemberStatus `json:"status"`
	Role     MemberRole   `json:"role"`
	JoinedAt time.Time    `json:"joined_at"`

	// Populated from JOIN
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}
