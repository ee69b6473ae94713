package split

import "github.com/shopspring/decimal"

// PercentageStrategy divides the expense based on a percentage per
// participant; percentages must sum to 100
type PercentageStrategy struct{}

// Type returns the split type identifier
func (s *PercentageStrategy) Type() SplitType {
	return SplitTypePercentage
}

// Validate checks if the inputs are valid for a percentage split
func (s *PercentageStrategy) Validate(totalAmount decimal.Decimal, participants []SplitInput) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}
	if totalAmount.IsNegative() {
		return ErrNegativeAmount
	}

	totalPercentage := decimal.Zero
	for _, p := range participants {
		if p.Percentage == nil {
			return ErrMissingPercentage
		}
		if p.Percentage.IsNegative() || p.Percentage.GreaterThan(hundred) {
			return ErrPercentageOutOfRange
		}
		totalPercentage = totalPercentage.Add(*p.Percentage)
	}

	if !totalPercentage.Equal(hundred) {
		return ErrInvalidPercentages
	}

	return nil
}

// Calculate divides the total amount by each participant's percentage. The
// last participant absorbs the rounding difference so the shares always sum
// exactly to the total.
func (s *PercentageStrategy) Calculate(totalAmount decimal.Decimal, participants []SplitInput) ([]SplitOutput, error) {
	if err := s.Validate(totalAmount, participants); err != nil {
		return nil, err
	}

	outputs := make([]SplitOutput, len(participants))
	distributed := decimal.Zero
	for i, p := range participants {
		share := totalAmount.Mul(*p.Percentage).DivRound(hundred, 2)
		outputs[i] = SplitOutput{UserID: p.UserID, Share: share}
		distributed = distributed.Add(share)
	}

	difference := totalAmount.Sub(distributed)
	if !difference.IsZero() {
		last := len(outputs) - 1
		outputs[last].Share = outputs[last].Share.Add(difference).Round(2)
	}

	return outputs, nil
}
