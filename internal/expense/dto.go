package expense

import "github.com/shopspring/decimal"

// CreateExpenseRequest represents the request to create an expense
type CreateExpenseRequest struct {
	TripID       string              `json:"trip_id" validate:"required"`
	Description  string              `json:"description" validate:"required,min=1,max=255"`
	Amount       decimal.Decimal     `json:"amount" validate:"required"`
	Currency     string              `json:"currency,omitempty"`
	Category     string              `json:"category,omitempty"`
	SplitType    string              `json:"split_type" validate:"required,oneof=EVEN PERCENTAGE EXACT"`
	Participants []*SplitParticipant `json:"participants" validate:"required,min=1"`
}

// UpdateExpenseRequest represents the request to update an expense
type UpdateExpenseRequest struct {
	Description *string `json:"description,omitempty" validate:"omitempty,min=1,max=255"`
	Category    *string `json:"category,omitempty"`
}

// DisputeSplitRequest represents the request to dispute a split
type DisputeSplitRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// ExpenseResponse represents the response for an expense
type ExpenseResponse struct {
	ID            string           `json:"id"`
	TripID        string           `json:"trip_id"`
	PayerID       *string          `json:"payer_id,omitempty"`
	PayerUsername string           `json:"payer_username,omitempty"`
	Description   string           `json:"description"`
	Amount        decimal.Decimal  `json:"amount"`
	Currency      string           `json:"currency"`
	Category      string           `json:"category,omitempty"`
	SplitType     string           `json:"split_type"`
	CreatedAt     string           `json:"created_at"`
	Splits        []*SplitResponse `json:"splits,omitempty"`
}

// SplitResponse represents the response for a split
type SplitResponse struct {
	ID            string          `json:"id"`
	ExpenseID     string          `json:"expense_id"`
	UserID        *string         `json:"user_id,omitempty"`
	Username      string          `json:"username,omitempty"`
	Share         decimal.Decimal `json:"share"`
	Status        SplitStatus     `json:"status"`
	DisputeReason *string         `json:"dispute_reason,omitempty"`
	SettlementID  *string         `json:"settlement_id,omitempty"`
	UpdatedAt     string          `json:"updated_at"`
}

// ToResponse converts an Expense model to an ExpenseResponse DTO
func (e *Expense) ToResponse() *ExpenseResponse {
	return &ExpenseResponse{
		ID:            e.ID,
		TripID:        e.TripID,
		PayerID:       e.PayerID,
		PayerUsername: e.PayerUsername,
		Description:   e.Description,
		Amount:        e.Amount,
		Currency:      e.Currency,
		Category:      e.Category,
		SplitType:     e.SplitType,
		CreatedAt:     e.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ToResponse converts a Split model to a SplitResponse DTO
func (s *Split) ToResponse() *SplitResponse {
	return &SplitResponse{
		ID:            s.ID,
		ExpenseID:     s.ExpenseID,
		UserID:        s.UserID,
		Username:      s.Username,
		Share:         s.Share,
		Status:        s.Status,
		DisputeReason: s.DisputeReason,
		SettlementID:  s.SettlementID,
		UpdatedAt:     s.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
