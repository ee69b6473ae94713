package split

import "github.com/shopspring/decimal"

// EvenStrategy divides the expense equally among all participants
type EvenStrategy struct{}

// Type returns the split type identifier
func (s *EvenStrategy) Type() SplitType {
	return SplitTypeEven
}

// Validate checks if the inputs are valid for an even split
func (s *EvenStrategy) Validate(totalAmount decimal.Decimal, participants []SplitInput) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}
	if totalAmount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// Calculate divides the total amount evenly among all participants. Rounding
// leftovers land on the first participant so the shares always sum exactly to
// the total.
func (s *EvenStrategy) Calculate(totalAmount decimal.Decimal, participants []SplitInput) ([]SplitOutput, error) {
	if err := s.Validate(totalAmount, participants); err != nil {
		return nil, err
	}

	n := decimal.NewFromInt(int64(len(participants)))
	perPerson := totalAmount.DivRound(n, 2)

	outputs := make([]SplitOutput, len(participants))
	distributed := decimal.Zero
	for i, p := range participants {
		outputs[i] = SplitOutput{UserID: p.UserID, Share: perPerson}
		distributed = distributed.Add(perPerson)
	}

	remainder := totalAmount.Sub(distributed)
	if !remainder.IsZero() {
		outputs[0].Share = outputs[0].Share.Add(remainder).Round(2)
	}

	return outputs, nil
}
