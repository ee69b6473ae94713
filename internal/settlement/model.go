package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementStatus represents the status of a settlement
type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "PENDING"
	SettlementStatusPaid      SettlementStatus = "PAID"
	SettlementStatusConfirmed SettlementStatus = "CONFIRMED"
	SettlementStatusRejected  SettlementStatus = "REJECTED"
)

// Settlement represents a payment between two trip members that clears
// part of the trip's outstanding balances
type Settlement struct {
	ID         string           `json:"id"`
	TripID     string           `json:"trip_id"`
	PayerID    string           `json:"payer_id"`    // Who sends the money
	ReceiverID string           `json:"receiver_id"` // Who receives the money
	Amount     decimal.Decimal  `json:"amount"`
	Currency   string           `json:"currency"`
	Status     SettlementStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`

	// Populated via JOIN
	PayerUsername    string `json:"payer_username,omitempty"`
	ReceiverUsername string `json:"receiver_username,omitempty"`
}
