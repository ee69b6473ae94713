package expense

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/triptally/triptally/internal/expense/split"
)

// SplitStatus represents the status of a split
type SplitStatus string

const (
	SplitStatusPending   SplitStatus = "PENDING"
	SplitStatusPaid      SplitStatus = "PAID"
	SplitStatusConfirmed SplitStatus = "CONFIRMED"
	SplitStatusDisputed  SplitStatus = "DISPUTED"
)

// Expense represents a shared cost within a trip
type Expense struct {
	ID          string          `json:"id"`
	TripID      string          `json:"trip_id"`
	PayerID     *string         `json:"payer_id,omitempty"` // nil until a payer is assigned
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category,omitempty"`
	SplitType   string          `json:"split_type"` // EVEN, PERCENTAGE, EXACT
	CreatedAt   time.Time       `json:"created_at"`

	// Populated via JOIN
	PayerUsername string `json:"payer_username,omitempty"`
}

// Split represents one participant's share of an expense
type Split struct {
	ID            string          `json:"id"`
	ExpenseID     string          `json:"expense_id"`
	UserID        *string         `json:"user_id,omitempty"`
	Share         decimal.Decimal `json:"share"`
	Status        SplitStatus     `json:"status"`
	DisputeReason *string         `json:"dispute_reason,omitempty"`
	SettlementID  *string         `json:"settlement_id,omitempty"` // Optional: locked to settlement
	UpdatedAt     time.Time       `json:"updated_at"`

	// Populated via JOIN
	Username string `json:"username,omitempty"`
}

// ExpenseWithSplits combines an expense with its calculated splits
type ExpenseWithSplits struct {
	Expense *Expense
	Splits  []*Split
}

// SplitParticipant is used when creating an expense with splits
type SplitParticipant struct {
	UserID     string           `json:"user_id"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"` // For PERCENTAGE split
	Amount     *decimal.Decimal `json:"amount,omitempty"`     // For EXACT split
}

// ToSplitInput converts to the split package's input type
func (p *SplitParticipant) ToSplitInput() split.SplitInput {
	return split.SplitInput{
		UserID:     p.UserID,
		Percentage: p.Percentage,
		Amount:     p.Amount,
	}
}
