package split

import "github.com/shopspring/decimal"

// ExactStrategy lets each participant owe a specific amount; the amounts
// must sum to the expense total
type ExactStrategy struct{}

// Type returns the split type identifier
func (s *ExactStrategy) Type() SplitType {
	return SplitTypeExact
}

// Validate checks if the inputs are valid for an exact split
func (s *ExactStrategy) Validate(totalAmount decimal.Decimal, participants []SplitInput) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}
	if totalAmount.IsNegative() {
		return ErrNegativeAmount
	}

	totalExact := decimal.Zero
	for _, p := range participants {
		if p.Amount == nil {
			return ErrMissingExactAmount
		}
		if p.Amount.IsNegative() {
			return ErrNegativeAmount
		}
		totalExact = totalExact.Add(*p.Amount)
	}

	if !totalExact.Equal(totalAmount) {
		return ErrInvalidExactAmounts
	}

	return nil
}

// Calculate returns the amounts specified for each participant
func (s *ExactStrategy) Calculate(totalAmount decimal.Decimal, participants []SplitInput) ([]SplitOutput, error) {
	if err := s.Validate(totalAmount, participants); err != nil {
		return nil, err
	}

	outputs := make([]SplitOutput, len(participants))
	for i, p := range participants {
		outputs[i] = SplitOutput{UserID: p.UserID, Share: p.Amount.Round(2)}
	}

	return outputs, nil
}
