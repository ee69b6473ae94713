package trip

import (
	"context"
	"errors"
	"fmt"
)

// Common errors
var (
	ErrTripNotFound        = errors.New("trip not found")
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberAlreadyExists = errors.New("user is already a member of this trip")
	ErrNotAuthorized       = errors.New("not authorized to perform this action")
	ErrInvalidDateRange    = errors.New("end date cannot be before start date")
)

// Notifier delivers trip invitation notifications. May be nil.
type Notifier interface {
	Notify(ctx context.Context, userID, message string) error
}

// Service handles trip business logic
type Service struct {
	repo     *Repository
	notifier Notifier
}

// NewService creates a new trip service
func NewService(repo *Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// Create creates a new trip and adds the creator as a joined admin
func (s *Service) Create(ctx context.Context, creatorID string, req *CreateTripRequest) (*Trip, error) {
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, ErrInvalidDateRange
	}

	trip, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	// Add creator as admin
	_, err = s.repo.AddMember(ctx, trip.ID, &AddMemberRequest{
		UserID: creatorID,
		Role:   MemberRoleAdmin,
	})
	if err != nil {
		// TODO: Should rollback trip creation in a transaction
		return nil, err
	}

	// The creator joins immediately, no invitation step
	_, err = s.repo.UpdateMember(ctx, trip.ID, creatorID, &UpdateMemberRequest{
		Status: statusPtr(MemberStatusJoined),
	})
	if err != nil {
		return nil, err
	}

	return trip, nil
}

// GetByID retrieves a trip by its ID
func (s *Service) GetByID(ctx context.Context, id string) (*Trip, error) {
	trip, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}
	return trip, nil
}

// GetByIDWithMembers retrieves a trip with all its members
func (s *Service) GetByIDWithMembers(ctx context.Context, id string) (*Trip, []*TripMember, error) {
	trip, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	members, err := s.repo.GetMembers(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return trip, members, nil
}

// ListByUserID retrieves all trips for a user
func (s *Service) ListByUserID(ctx context.Context, userID string, page, perPage int) ([]*Trip, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByUserID(ctx, userID, perPage, offset)
}

// Update modifies an existing trip
func (s *Service) Update(ctx context.Context, id string, req *UpdateTripRequest) (*Trip, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrTripNotFound
	}

	return s.repo.Update(ctx, id, req)
}

// Delete removes a trip; only an admin member may do this
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	member, err := s.repo.GetMember(ctx, id, userID)
	if err != nil {
		return err
	}
	if member == nil || member.Role != MemberRoleAdmin {
		return ErrNotAuthorized
	}

	return s.repo.Delete(ctx, id)
}

// AddMember invites a user to a trip
func (s *Service) AddMember(ctx context.Context, tripID string, req *AddMemberRequest) (*TripMember, error) {
	trip, err := s.repo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}

	existing, err := s.repo.GetMember(ctx, tripID, req.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrMemberAlreadyExists
	}

	member, err := s.repo.AddMember(ctx, tripID, req)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		// Notification failures never fail the invitation
		_ = s.notifier.Notify(ctx, req.UserID, fmt.Sprintf("You have been invited to join the trip %q", trip.Name))
	}

	return member, nil
}

// GetMembers retrieves all members of a trip
func (s *Service) GetMembers(ctx context.Context, tripID string) ([]*TripMember, error) {
	trip, err := s.repo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}

	return s.repo.GetMembers(ctx, tripID)
}

// UpdateMember updates a member's status or role
func (s *Service) UpdateMember(ctx context.Context, tripID, userID string, req *UpdateMemberRequest) (*TripMember, error) {
	member, err := s.repo.UpdateMember(ctx, tripID, userID, req)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return member, nil
}

// RemoveMember removes a user from a trip
func (s *Service) RemoveMember(ctx context.Context, tripID, userID string) error {
	return s.repo.RemoveMember(ctx, tripID, userID)
}

// AcceptInvitation allows a user to accept their trip invitation
func (s *Service) AcceptInvitation(ctx context.Context, tripID, userID string) (*TripMember, error) {
	member, err := s.repo.GetMember(ctx, tripID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	if member.Status != MemberStatusInvited {
		return member, nil // Already joined
	}

	return s.repo.UpdateMember(ctx, tripID, userID, &UpdateMemberRequest{
		Status: statusPtr(MemberStatusJoined),
	})
}

// Helper function to get a pointer to a MemberStatus
func statusPtr(s MemberStatus) *MemberStatus {
	return &s
}
