package split

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// SplitType defines the type of split strategy
type SplitType string

const (
	SplitTypeEven       SplitType = "EVEN"
	SplitTypePercentage SplitType = "PERCENTAGE"
	SplitTypeExact      SplitType = "EXACT"
)

// SplitInput represents a participant in a split with optional values
type SplitInput struct {
	UserID     string           `json:"user_id"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"` // For PERCENTAGE split
	Amount     *decimal.Decimal `json:"amount,omitempty"`     // For EXACT split
}

// SplitOutput represents the calculated share for a single participant
type SplitOutput struct {
	UserID string          `json:"user_id"`
	Share  decimal.Decimal `json:"share"`
}

// Strategy is the interface that all split strategies must implement
type Strategy interface {
	// Calculate computes the share for every participant, payer included
	Calculate(totalAmount decimal.Decimal, participants []SplitInput) ([]SplitOutput, error)

	// Type returns the type identifier for this strategy
	Type() SplitType

	// Validate checks if the inputs are valid for this strategy
	Validate(totalAmount decimal.Decimal, participants []SplitInput) error
}

// Factory creates split strategies based on the requested type
type Factory struct{}

// NewFactory creates a new strategy factory
func NewFactory() *Factory {
	return &Factory{}
}

// Create returns the appropriate strategy implementation based on the type
func (f *Factory) Create(splitType SplitType) (Strategy, error) {
	switch splitType {
	case SplitTypeEven:
		return &EvenStrategy{}, nil
	case SplitTypePercentage:
		return &PercentageStrategy{}, nil
	case SplitTypeExact:
		return &ExactStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown split type: %s", splitType)
	}
}

// CreateFromString creates a strategy from a string type (useful for API requests)
func (f *Factory) CreateFromString(splitType string) (Strategy, error) {
	return f.Create(SplitType(splitType))
}

var (
	ErrNoParticipants       = errors.New("at least one participant is required")
	ErrInvalidPercentages   = errors.New("percentages must sum to 100")
	ErrInvalidExactAmounts  = errors.New("exact amounts must sum to total amount")
	ErrNegativeAmount       = errors.New("amounts cannot be negative")
	ErrMissingPercentage    = errors.New("percentage value required for all participants")
	ErrMissingExactAmount   = errors.New("exact amount required for all participants")
	ErrPercentageOutOfRange = errors.New("percentage must be between 0 and 100")
)

var hundred = decimal.NewFromInt(100)
