package split

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func sumShares(outputs []SplitOutput) decimal.Decimal {
	total := decimal.Zero
	for _, o := range outputs {
		total = total.Add(o.Share)
	}
	return total
}

func TestFactory_Create(t *testing.T) {
	f := NewFactory()

	tests := []struct {
		splitType SplitType
		wantErr   bool
	}{
		{SplitTypeEven, false},
		{SplitTypePercentage, false},
		{SplitTypeExact, false},
		{SplitType("BOGUS"), true},
	}

	for _, tt := range tests {
		strategy, err := f.Create(tt.splitType)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.splitType, strategy.Type())
	}
}

func TestEvenStrategy_Calculate(t *testing.T) {
	s := &EvenStrategy{}

	outputs, err := s.Calculate(dec("300"), []SplitInput{
		{UserID: "A"}, {UserID: "B"}, {UserID: "C"},
	})
	require.NoError(t, err)

	require.Len(t, outputs, 3)
	for _, o := range outputs {
		assert.True(t, o.Share.Equal(dec("100")), "share for %s should be 100, got %s", o.UserID, o.Share)
	}
}

func TestEvenStrategy_RoundingRemainderToFirst(t *testing.T) {
	s := &EvenStrategy{}

	outputs, err := s.Calculate(dec("100"), []SplitInput{
		{UserID: "A"}, {UserID: "B"}, {UserID: "C"},
	})
	require.NoError(t, err)

	// 100/3 rounds to 33.33; the leftover cent goes to the first participant
	assert.True(t, outputs[0].Share.Equal(dec("33.34")))
	assert.True(t, outputs[1].Share.Equal(dec("33.33")))
	assert.True(t, outputs[2].Share.Equal(dec("33.33")))
	assert.True(t, sumShares(outputs).Equal(dec("100")))
}

func TestEvenStrategy_NoParticipants(t *testing.T) {
	s := &EvenStrategy{}
	_, err := s.Calculate(dec("10"), nil)
	assert.ErrorIs(t, err, ErrNoParticipants)
}

func TestEvenStrategy_NegativeAmount(t *testing.T) {
	s := &EvenStrategy{}
	_, err := s.Calculate(dec("-10"), []SplitInput{{UserID: "A"}})
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestExactStrategy_Calculate(t *testing.T) {
	s := &ExactStrategy{}

	outputs, err := s.Calculate(dec("75.50"), []SplitInput{
		{UserID: "A", Amount: decPtr("50.25")},
		{UserID: "B", Amount: decPtr("25.25")},
	})
	require.NoError(t, err)

	require.Len(t, outputs, 2)
	assert.True(t, outputs[0].Share.Equal(dec("50.25")))
	assert.True(t, outputs[1].Share.Equal(dec("25.25")))
}

func TestExactStrategy_RejectsMismatchedTotal(t *testing.T) {
	s := &ExactStrategy{}

	_, err := s.Calculate(dec("100"), []SplitInput{
		{UserID: "A", Amount: decPtr("50")},
		{UserID: "B", Amount: decPtr("49")},
	})
	assert.ErrorIs(t, err, ErrInvalidExactAmounts)
}

func TestExactStrategy_RejectsMissingAmount(t *testing.T) {
	s := &ExactStrategy{}

	_, err := s.Calculate(dec("100"), []SplitInput{
		{UserID: "A", Amount: decPtr("100")},
		{UserID: "B"},
	})
	assert.ErrorIs(t, err, ErrMissingExactAmount)
}

func TestPercentageStrategy_Calculate(t *testing.T) {
	s := &PercentageStrategy{}

	outputs, err := s.Calculate(dec("200"), []SplitInput{
		{UserID: "A", Percentage: decPtr("50")},
		{UserID: "B", Percentage: decPtr("30")},
		{UserID: "C", Percentage: decPtr("20")},
	})
	require.NoError(t, err)

	require.Len(t, outputs, 3)
	assert.True(t, outputs[0].Share.Equal(dec("100")))
	assert.True(t, outputs[1].Share.Equal(dec("60")))
	assert.True(t, outputs[2].Share.Equal(dec("40")))
}

func TestPercentageStrategy_RoundingRemainderToLast(t *testing.T) {
	s := &PercentageStrategy{}

	outputs, err := s.Calculate(dec("100"), []SplitInput{
		{UserID: "A", Percentage: decPtr("33.33")},
		{UserID: "B", Percentage: decPtr("33.33")},
		{UserID: "C", Percentage: decPtr("33.34")},
	})
	require.NoError(t, err)

	assert.True(t, sumShares(outputs).Equal(dec("100")),
		"shares must sum to the total, got %s", sumShares(outputs))
}

func TestPercentageStrategy_RejectsBadPercentages(t *testing.T) {
	s := &PercentageStrategy{}

	_, err := s.Calculate(dec("100"), []SplitInput{
		{UserID: "A", Percentage: decPtr("60")},
		{UserID: "B", Percentage: decPtr("60")},
	})
	assert.ErrorIs(t, err, ErrInvalidPercentages)

	_, err = s.Calculate(dec("100"), []SplitInput{
		{UserID: "A", Percentage: decPtr("120")},
	})
	assert.ErrorIs(t, err, ErrPercentageOutOfRange)

	_, err = s.Calculate(dec("100"), []SplitInput{
		{UserID: "A", Percentage: decPtr("100")},
		{UserID: "B"},
	})
	assert.ErrorIs(t, err, ErrMissingPercentage)
}
