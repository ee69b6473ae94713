package expense

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository handles expense and split data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new expense repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateExpense inserts a new expense into the database
func (r *Repository) CreateExpense(ctx context.Context, payerID string, req *CreateExpenseRequest) (*Expense, error) {
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	query := `
		INSERT INTO expenses (id, trip_id, payer_id, description, amount, currency, category, split_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, trip_id, payer_id, description, amount, currency, category, split_type, created_at
	`

	expense := &Expense{}
	var category sql.NullString
	err := r.db.QueryRowContext(ctx, query,
		uuid.NewString(),
		req.TripID,
		payerID,
		req.Description,
		req.Amount,
		currency,
		nullable(req.Category),
		req.SplitType,
	).Scan(
		&expense.ID,
		&expense.TripID,
		&expense.PayerID,
		&expense.Description,
		&expense.Amount,
		&expense.Currency,
		&category,
		&expense.SplitType,
		&expense.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}
	expense.Category = category.String

	return expense, nil
}

// CreateSplit inserts a new split into the database
func (r *Repository) CreateSplit(ctx context.Context, expenseID, userID string, share decimal.Decimal) (*Split, error) {
	query := `
		INSERT INTO splits (id, expense_id, user_id, share, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, expense_id, user_id, share, status, dispute_reason, settlement_id, updated_at
	`

	sp := &Split{}
	err := r.db.QueryRowContext(ctx, query, uuid.NewString(), expenseID, userID, share, SplitStatusPending).Scan(
		&sp.ID,
		&sp.ExpenseID,
		&sp.UserID,
		&sp.Share,
		&sp.Status,
		&sp.DisputeReason,
		&sp.SettlementID,
		&sp.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create split: %w", err)
	}

	return sp, nil
}

// GetExpenseByID retrieves an expense by its ID
func (r *Repository) GetExpenseByID(ctx context.Context, id string) (*Expense, error) {
	query := `
		SELECT e.id, e.trip_id, e.payer_id, e.description, e.amount, e.currency, e.category, e.split_type, e.created_at,
		       COALESCE(u.username, '')
		FROM expenses e
		LEFT JOIN users u ON e.payer_id = u.id
		WHERE e.id = $1
	`

	expense := &Expense{}
	var category sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&expense.ID,
		&expense.TripID,
		&expense.PayerID,
		&expense.Description,
		&expense.Amount,
		&expense.Currency,
		&category,
		&expense.SplitType,
		&expense.CreatedAt,
		&expense.PayerUsername,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	expense.Category = category.String

	return expense, nil
}

// GetSplitsByExpenseID retrieves all splits for an expense
func (r *Repository) GetSplitsByExpenseID(ctx context.Context, expenseID string) ([]*Split, error) {
	query := `
		SELECT s.id, s.expense_id, s.user_id, s.share, s.status, s.dispute_reason, s.settlement_id, s.updated_at,
		       COALESCE(u.username, '')
		FROM splits s
		LEFT JOIN users u ON s.user_id = u.id
		WHERE s.expense_id = $1
		ORDER BY s.id
	`

	rows, err := r.db.QueryContext(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	var splits []*Split
	for rows.Next() {
		sp := &Split{}
		if err := rows.Scan(
			&sp.ID,
			&sp.ExpenseID,
			&sp.UserID,
			&sp.Share,
			&sp.Status,
			&sp.DisputeReason,
			&sp.SettlementID,
			&sp.UpdatedAt,
			&sp.Username,
		); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, sp)
	}

	return splits, nil
}

// ListExpensesByTripID retrieves all expenses for a trip
func (r *Repository) ListExpensesByTripID(ctx context.Context, tripID string, limit, offset int) ([]*Expense, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM expenses WHERE trip_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, tripID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	query := `
		SELECT e.id, e.trip_id, e.payer_id, e.description, e.amount, e.currency, e.category, e.split_type, e.created_at,
		       COALESCE(u.username, '')
		FROM expenses e
		LEFT JOIN users u ON e.payer_id = u.id
		WHERE e.trip_id = $1
		ORDER BY e.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, tripID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*Expense
	for rows.Next() {
		expense := &Expense{}
		var category sql.NullString
		if err := rows.Scan(
			&expense.ID,
			&expense.TripID,
			&expense.PayerID,
			&expense.Description,
			&expense.Amount,
			&expense.Currency,
			&category,
			&expense.SplitType,
			&expense.CreatedAt,
			&expense.PayerUsername,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan expense: %w", err)
		}
		expense.Category = category.String
		expenses = append(expenses, expense)
	}

	return expenses, total, nil
}

// GetTripExpensesAndSplits retrieves the full expense/split snapshot for a
// trip, used by the settlement engine
func (r *Repository) GetTripExpensesAndSplits(ctx context.Context, tripID string) ([]*Expense, []*Split, error) {
	expenseQuery := `
		SELECT id, trip_id, payer_id, description, amount, currency, category, split_type, created_at
		FROM expenses
		WHERE trip_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, expenseQuery, tripID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trip expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*Expense
	for rows.Next() {
		expense := &Expense{}
		var category sql.NullString
		if err := rows.Scan(
			&expense.ID,
			&expense.TripID,
			&expense.PayerID,
			&expense.Description,
			&expense.Amount,
			&expense.Currency,
			&category,
			&expense.SplitType,
			&expense.CreatedAt,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expense.Category = category.String
		expenses = append(expenses, expense)
	}

	splitQuery := `
		SELECT s.id, s.expense_id, s.user_id, s.share, s.status, s.dispute_reason, s.settlement_id, s.updated_at
		FROM splits s
		JOIN expenses e ON s.expense_id = e.id
		WHERE e.trip_id = $1
		ORDER BY s.id
	`

	splitRows, err := r.db.QueryContext(ctx, splitQuery, tripID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trip splits: %w", err)
	}
	defer splitRows.Close()

	var splits []*Split
	for splitRows.Next() {
		sp := &Split{}
		if err := splitRows.Scan(
			&sp.ID,
			&sp.ExpenseID,
			&sp.UserID,
			&sp.Share,
			&sp.Status,
			&sp.DisputeReason,
			&sp.SettlementID,
			&sp.UpdatedAt,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, sp)
	}

	return expenses, splits, nil
}

// GetSplitByID retrieves a split by its ID
func (r *Repository) GetSplitByID(ctx context.Context, id string) (*Split, error) {
	query := `
		SELECT s.id, s.expense_id, s.user_id, s.share, s.status, s.dispute_reason, s.settlement_id, s.updated_at,
		       COALESCE(u.username, '')
		FROM splits s
		LEFT JOIN users u ON s.user_id = u.id
		WHERE s.id = $1
	`

	sp := &Split{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sp.ID,
		&sp.ExpenseID,
		&sp.UserID,
		&sp.Share,
		&sp.Status,
		&sp.DisputeReason,
		&sp.SettlementID,
		&sp.UpdatedAt,
		&sp.Username,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get split: %w", err)
	}

	return sp, nil
}

// UpdateExpense modifies an expense's description or category
func (r *Repository) UpdateExpense(ctx context.Context, id string, req *UpdateExpenseRequest) (*Expense, error) {
	query := `
		UPDATE expenses
		SET description = COALESCE($2, description),
		    category = COALESCE($3, category)
		WHERE id = $1
		RETURNING id, trip_id, payer_id, description, amount, currency, category, split_type, created_at
	`

	expense := &Expense{}
	var category sql.NullString
	err := r.db.QueryRowContext(ctx, query, id, req.Description, req.Category).Scan(
		&expense.ID,
		&expense.TripID,
		&expense.PayerID,
		&expense.Description,
		&expense.Amount,
		&expense.Currency,
		&category,
		&expense.SplitType,
		&expense.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update expense: %w", err)
	}
	expense.Category = category.String

	return expense, nil
}

// UpdateSplitStatus updates the status of a split
func (r *Repository) UpdateSplitStatus(ctx context.Context, id string, status SplitStatus, disputeReason *string) (*Split, error) {
	query := `
		UPDATE splits
		SET status = $2, dispute_reason = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, expense_id, user_id, share, status, dispute_reason, settlement_id, updated_at
	`

	sp := &Split{}
	err := r.db.QueryRowContext(ctx, query, id, status, disputeReason).Scan(
		&sp.ID,
		&sp.ExpenseID,
		&sp.UserID,
		&sp.Share,
		&sp.Status,
		&sp.DisputeReason,
		&sp.SettlementID,
		&sp.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update split status: %w", err)
	}

	return sp, nil
}

// LockSplitsToSettlement locks a trip's open splits between two users to a settlement
func (r *Repository) LockSplitsToSettlement(ctx context.Context, splitIDs []string, settlementID string) error {
	for _, splitID := range splitIDs {
		query := `UPDATE splits SET settlement_id = $2, updated_at = NOW() WHERE id = $1`
		if _, err := r.db.ExecContext(ctx, query, splitID, settlementID); err != nil {
			return fmt.Errorf("failed to lock split %s: %w", splitID, err)
		}
	}
	return nil
}

// UnlockSplitsFromSettlement removes the settlement lock from splits
func (r *Repository) UnlockSplitsFromSettlement(ctx context.Context, settlementID string) error {
	query := `UPDATE splits SET settlement_id = NULL, updated_at = NOW() WHERE settlement_id = $1`
	if _, err := r.db.ExecContext(ctx, query, settlementID); err != nil {
		return fmt.Errorf("failed to unlock splits: %w", err)
	}
	return nil
}

// ConfirmSplitsBySettlement marks all splits locked to a settlement as confirmed
func (r *Repository) ConfirmSplitsBySettlement(ctx context.Context, settlementID string) error {
	query := `UPDATE splits SET status = $2, updated_at = NOW() WHERE settlement_id = $1`
	if _, err := r.db.ExecContext(ctx, query, settlementID, SplitStatusConfirmed); err != nil {
		return fmt.Errorf("failed to confirm splits: %w", err)
	}
	return nil
}

// DeleteExpense deletes an expense and its splits
func (r *Repository) DeleteExpense(ctx context.Context, id string) error {
	// Delete splits first (foreign key constraint)
	if _, err := r.db.ExecContext(ctx, `DELETE FROM splits WHERE expense_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrExpenseNotFound
	}

	return nil
}

// nullable turns an empty string into a NULL parameter
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
