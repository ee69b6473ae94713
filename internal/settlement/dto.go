package settlement

import "github.com/shopspring/decimal"

// CreateSettlementRequest represents the request to create a settlement.
// The initiator is always the payer; the amount comes from the trip's
// suggested transfer between the two members.
type CreateSettlementRequest struct {
	TripID     string `json:"trip_id" validate:"required"`
	ReceiverID string `json:"receiver_id" validate:"required"`
}

// SettlementResponse represents the response for a settlement
type SettlementResponse struct {
	ID               string           `json:"id"`
	TripID           string           `json:"trip_id"`
	PayerID          string           `json:"payer_id"`
	PayerUsername    string           `json:"payer_username,omitempty"`
	ReceiverID       string           `json:"receiver_id"`
	ReceiverUsername string           `json:"receiver_username,omitempty"`
	Amount           decimal.Decimal  `json:"amount"`
	Currency         string           `json:"currency"`
	Status           SettlementStatus `json:"status"`
	CreatedAt        string           `json:"created_at"`
}

// BalanceResponse represents one member's net position within a trip.
// Positive means the trip owes them, negative means they owe the trip.
type BalanceResponse struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

// TransferResponse represents one suggested payment that helps zero out
// the trip's balances
type TransferResponse struct {
	FromUserID string          `json:"from_user_id"`
	ToUserID   string          `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// CategoryTotalResponse represents total spending for one category
type CategoryTotalResponse struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// TripSummaryResponse bundles everything a trip's settle-up screen needs
type TripSummaryResponse struct {
	TripID     string                   `json:"trip_id"`
	Balances   []*BalanceResponse       `json:"balances"`
	Transfers  []*TransferResponse      `json:"suggested_transfers"`
	Categories []*CategoryTotalResponse `json:"category_totals"`
}

// ToResponse converts a Settlement model to a SettlementResponse DTO
func (s *Settlement) ToResponse() *SettlementResponse {
	return &SettlementResponse{
		ID:               s.ID,
		TripID:           s.TripID,
		PayerID:          s.PayerID,
		PayerUsername:    s.PayerUsername,
		ReceiverID:       s.ReceiverID,
		ReceiverUsername: s.ReceiverUsername,
		Amount:           s.Amount,
		Currency:         s.Currency,
		Status:           s.Status,
		CreatedAt:        s.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
