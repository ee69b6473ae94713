package trip

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Repository handles trip and membership data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new trip repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new trip into the database
func (r *Repository) Create(ctx context.Context, req *CreateTripRequest) (*Trip, error) {
	query := `
		INSERT INTO trips (id, name, destination, description, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, name, destination, description, start_date, end_date, created_at
	`

	trip := &Trip{}
	err := r.db.QueryRowContext(ctx, query,
		uuid.NewString(),
		req.Name,
		req.Destination,
		req.Description,
		req.StartDate,
		req.EndDate,
	).Scan(
		&trip.ID,
		&trip.Name,
		&trip.Destination,
		&trip.Description,
		&trip.StartDate,
		&trip.EndDate,
		&trip.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trip: %w", err)
	}

	return trip, nil
}

// GetByID retrieves a trip by its ID
func (r *Repository) GetByID(ctx context.Context, id string) (*Trip, error) {
	query := `
		SELECT id, name, destination, description, start_date, end_date, created_at
		FROM trips
		WHERE id = $1
	`

	trip := &Trip{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&trip.ID,
		&trip.Name,
		&trip.Destination,
		&trip.Description,
		&trip.StartDate,
		&trip.EndDate,
		&trip.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	return trip, nil
}

// ListByUserID retrieves all trips a user belongs to
func (r *Repository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*Trip, int, error) {
	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM trips t
		JOIN trip_members m ON m.trip_id = t.id
		WHERE m.user_id = $1
	`
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count trips: %w", err)
	}

	query := `
		SELECT t.id, t.name, t.destination, t.description, t.start_date, t.end_date, t.created_at
		FROM trips t
		JOIN trip_members m ON m.trip_id = t.id
		WHERE m.user_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var trips []*Trip
	for rows.Next() {
		trip := &Trip{}
		if err := rows.Scan(
			&trip.ID,
			&trip.Name,
			&trip.Destination,
			&trip.Description,
			&trip.StartDate,
			&trip.EndDate,
			&trip.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, trip)
	}

	return trips, total, nil
}

// Update modifies an existing trip
func (r *Repository) Update(ctx context.Context, id string, req *UpdateTripRequest) (*Trip, error) {
	query := `
		UPDATE trips
		SET name = COALESCE($2, name),
		    destination = COALESCE($3, destination),
		    description = COALESCE($4, description),
		    start_date = COALESCE($5, start_date),
		    end_date = COALESCE($6, end_date)
		WHERE id = $1
		RETURNING id, name, destination, description, start_date, end_date, created_at
	`

	trip := &Trip{}
	err := r.db.QueryRowContext(ctx, query,
		id,
		req.Name,
		req.Destination,
		req.Description,
		req.StartDate,
		req.EndDate,
	).Scan(
		&trip.ID,
		&trip.Name,
		&trip.Destination,
		&trip.Description,
		&trip.StartDate,
		&trip.EndDate,
		&trip.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update trip: %w", err)
	}

	return trip, nil
}

// Delete removes a trip
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrTripNotFound
	}

	return nil
}

// AddMember inserts a trip membership with INVITED status
func (r *Repository) AddMember(ctx context.Context, tripID string, req *AddMemberRequest) (*TripMember, error) {
	role := req.Role
	if role == "" {
		role = MemberRoleMember
	}

	query := `
		INSERT INTO trip_members (id, trip_id, user_id, status, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, trip_id, user_id, status, role, joined_at
	`

	member := &TripMember{}
	err := r.db.QueryRowContext(ctx, query,
		uuid.NewString(),
		tripID,
		req.UserID,
		MemberStatusInvited,
		role,
	).Scan(
		&member.ID,
		&member.TripID,
		&member.UserID,
		&member.Status,
		&member.Role,
		&member.JoinedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	return member, nil
}

// GetMember retrieves a single membership
func (r *Repository) GetMember(ctx context.Context, tripID, userID string) (*TripMember, error) {
	query := `
		SELECT m.id, m.trip_id, m.user_id, m.status, m.role, m.joined_at, u.username, u.email
		FROM trip_members m
		JOIN users u ON m.user_id = u.id
		WHERE m.trip_id = $1 AND m.user_id = $2
	`

	member := &TripMember{}
	err := r.db.QueryRowContext(ctx, query, tripID, userID).Scan(
		&member.ID,
		&member.TripID,
		&member.UserID,
		&member.Status,
		&member.Role,
		&member.JoinedAt,
		&member.Username,
		&member.Email,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// GetMembers retrieves all members of a trip
func (r *Repository) GetMembers(ctx context.Context, tripID string) ([]*TripMember, error) {
	query := `
		SELECT m.id, m.trip_id, m.user_id, m.status, m.role, m.joined_at, u.username, u.email
		FROM trip_members m
		JOIN users u ON m.user_id = u.id
		WHERE m.trip_id = $1
		ORDER BY m.joined_at
	`

	rows, err := r.db.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	var members []*TripMember
	for rows.Next() {
		member := &TripMember{}
		if err := rows.Scan(
			&member.ID,
			&member.TripID,
			&member.UserID,
			&member.Status,
			&member.Role,
			&member.JoinedAt,
			&member.Username,
			&member.Email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	return members, nil
}

// GetMemberIDs retrieves the user IDs of all joined members of a trip
func (r *Repository) GetMemberIDs(ctx context.Context, tripID string) ([]string, error) {
	query := `
		SELECT user_id
		FROM trip_members
		WHERE trip_id = $1
		ORDER BY joined_at
	`

	rows, err := r.db.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// UpdateMember updates a member's status or role
func (r *Repository) UpdateMember(ctx context.Context, tripID, userID string, req *UpdateMemberRequest) (*TripMember, error) {
	query := `
		UPDATE trip_members
		SET status = COALESCE($3, status),
		    role = COALESCE($4, role)
		WHERE trip_id = $1 AND user_id = $2
		RETURNING id, trip_id, user_id, status, role, joined_at
	`

	member := &TripMember{}
	err := r.db.QueryRowContext(ctx, query, tripID, userID, req.Status, req.Role).Scan(
		&member.ID,
		&member.TripID,
		&member.UserID,
		&member.Status,
		&member.Role,
		&member.JoinedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update member: %w", err)
	}

	return member, nil
}

// RemoveMember removes a user from a trip
func (r *Repository) RemoveMember(ctx context.Context, tripID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM trip_members WHERE trip_id = $1 AND user_id = $2`, tripID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	return nil
}
