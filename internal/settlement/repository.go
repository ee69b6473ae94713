package settlement

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository handles settlement data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new settlement repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new settlement into the database
func (r *Repository) Create(ctx context.Context, tripID, payerID, receiverID string, amount decimal.Decimal, currency string) (*Settlement, error) {
	query := `
		INSERT INTO settlements (id, trip_id, payer_id, receiver_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, trip_id, payer_id, receiver_id, amount, currency, status, created_at
	`

	settlement := &Settlement{}
	err := r.db.QueryRowContext(ctx, query, uuid.NewString(), tripID, payerID, receiverID, amount, currency, SettlementStatusPending).Scan(
		&settlement.ID,
		&settlement.TripID,
		&settlement.PayerID,
		&settlement.ReceiverID,
		&settlement.Amount,
		&settlement.Currency,
		&settlement.Status,
		&settlement.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create settlement: %w", err)
	}

	return settlement, nil
}

// GetByID retrieves a settlement by its ID
func (r *Repository) GetByID(ctx context.Context, id string) (*Settlement, error) {
	query := `
		SELECT s.id, s.trip_id, s.payer_id, s.receiver_id, s.amount, s.currency, s.status, s.created_at,
		       p.username as payer_username, recv.username as receiver_username
		FROM settlements s
		JOIN users p ON s.payer_id = p.id
		JOIN users recv ON s.receiver_id = recv.id
		WHERE s.id = $1
	`

	settlement := &Settlement{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&settlement.ID,
		&settlement.TripID,
		&settlement.PayerID,
		&settlement.ReceiverID,
		&settlement.Amount,
		&settlement.Currency,
		&settlement.Status,
		&settlement.CreatedAt,
		&settlement.PayerUsername,
		&settlement.ReceiverUsername,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}

	return settlement, nil
}

// ListByTripID retrieves all settlements within a trip
func (r *Repository) ListByTripID(ctx context.Context, tripID string, limit, offset int) ([]*Settlement, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM settlements WHERE trip_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, tripID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count settlements: %w", err)
	}

	query := `
		SELECT s.id, s.trip_id, s.payer_id, s.receiver_id, s.amount, s.currency, s.status, s.created_at,
		       p.username as payer_username, recv.username as receiver_username
		FROM settlements s
		JOIN users p ON s.payer_id = p.id
		JOIN users recv ON s.receiver_id = recv.id
		WHERE s.trip_id = $1
		ORDER BY s.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, tripID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*Settlement
	for rows.Next() {
		settlement := &Settlement{}
		if err := rows.Scan(
			&settlement.ID,
			&settlement.TripID,
			&settlement.PayerID,
			&settlement.ReceiverID,
			&settlement.Amount,
			&settlement.Currency,
			&settlement.Status,
			&settlement.CreatedAt,
			&settlement.PayerUsername,
			&settlement.ReceiverUsername,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}

	return settlements, total, nil
}

// ListConfirmedByTripID retrieves the trip's confirmed settlements, used to
// fold completed payments into the balance calculation
func (r *Repository) ListConfirmedByTripID(ctx context.Context, tripID string) ([]*Settlement, error) {
	query := `
		SELECT id, trip_id, payer_id, receiver_id, amount, currency, status, created_at
		FROM settlements
		WHERE trip_id = $1 AND status = $2
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, tripID, SettlementStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmed settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*Settlement
	for rows.Next() {
		settlement := &Settlement{}
		if err := rows.Scan(
			&settlement.ID,
			&settlement.TripID,
			&settlement.PayerID,
			&settlement.ReceiverID,
			&settlement.Amount,
			&settlement.Currency,
			&settlement.Status,
			&settlement.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}

	return settlements, nil
}

// UpdateStatus updates the status of a settlement
func (r *Repository) UpdateStatus(ctx context.Context, id string, status SettlementStatus) (*Settlement, error) {
	query := `
		UPDATE settlements
		SET status = $2
		WHERE id = $1
		RETURNING id, trip_id, payer_id, receiver_id, amount, currency, status, created_at
	`

	settlement := &Settlement{}
	err := r.db.QueryRowContext(ctx, query, id, status).Scan(
		&settlement.ID,
		&settlement.TripID,
		&settlement.PayerID,
		&settlement.ReceiverID,
		&settlement.Amount,
		&settlement.Currency,
		&settlement.Status,
		&settlement.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update settlement status: %w", err)
	}

	return settlement, nil
}
