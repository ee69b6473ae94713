package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertTransfer(t *testing.T, tr Transfer, from, to, amount string) {
	t.Helper()
	assert.Equal(t, from, tr.From)
	assert.Equal(t, to, tr.To)
	assert.True(t, tr.Amount.Equal(dec(amount)), "expected amount %s, got %s", amount, tr.Amount)
}

func TestCalculateBalances_SingleExpenseEvenSplit(t *testing.T) {
	expenses := []Expense{
		{ID: "e1", Amount: dec("300"), PaidBy: "A"},
	}
	splits := []Split{
		{ExpenseID: "e1", UserID: "A", Share: dec("100")},
		{ExpenseID: "e1", UserID: "B", Share: dec("100")},
		{ExpenseID: "e1", UserID: "C", Share: dec("100")},
	}

	balances, err := CalculateBalances(expenses, splits, []string{"A", "B", "C"})
	require.NoError(t, err)

	assert.True(t, balances["A"].Equal(dec("200")), "A should be owed 200, got %s", balances["A"])
	assert.True(t, balances["B"].Equal(dec("-100")), "B should owe 100, got %s", balances["B"])
	assert.True(t, balances["C"].Equal(dec("-100")), "C should owe 100, got %s", balances["C"])
}

func TestCalculateBalances_MultipleExpenses(t *testing.T) {
	expenses := []Expense{
		{ID: "e1", Amount: dec("120"), PaidBy: "A"},
		{ID: "e2", Amount: dec("40"), PaidBy: "B"},
	}
	splits := []Split{
		{ExpenseID: "e1", UserID: "A", Share: dec("30")},
		{ExpenseID: "e1", UserID: "B", Share: dec("30")},
		{ExpenseID: "e1", UserID: "C", Share: dec("30")},
		{ExpenseID: "e1", UserID: "D", Share: dec("30")},
		{ExpenseID: "e2", UserID: "B", Share: dec("20")},
		{ExpenseID: "e2", UserID: "C", Share: dec("20")},
	}

	balances, err := CalculateBalances(expenses, splits, []string{"A", "B", "C", "D"})
	require.NoError(t, err)

	assert.True(t, balances["A"].Equal(dec("90")))
	assert.True(t, balances["B"].Equal(dec("-10")))
	assert.True(t, balances["C"].Equal(dec("-50")))
	assert.True(t, balances["D"].Equal(dec("-30")))
}

func TestCalculateBalances_Conservation(t *testing.T) {
	// Whenever every expense's splits sum to its amount, balances must sum
	// to exactly zero.
	tests := []struct {
		name     string
		expenses []Expense
		splits   []Split
		members  []string
	}{
		{
			name: "even three way",
			expenses: []Expense{
				{ID: "e1", Amount: dec("300"), PaidBy: "A"},
			},
			splits: []Split{
				{ExpenseID: "e1", UserID: "A", Share: dec("100")},
				{ExpenseID: "e1", UserID: "B", Share: dec("100")},
				{ExpenseID: "e1", UserID: "C", Share: dec("100")},
			},
			members: []string{"A", "B", "C"},
		},
		{
			name: "uneven cents",
			expenses: []Expense{
				{ID: "e1", Amount: dec("100.01"), PaidBy: "A"},
				{ID: "e2", Amount: dec("0.03"), PaidBy: "B"},
			},
			splits: []Split{
				{ExpenseID: "e1", UserID: "A", Share: dec("33.34")},
				{ExpenseID: "e1", UserID: "B", Share: dec("33.34")},
				{ExpenseID: "e1", UserID: "C", Share: dec("33.33")},
				{ExpenseID: "e2", UserID: "A", Share: dec("0.01")},
				{ExpenseID: "e2", UserID: "B", Share: dec("0.01")},
				{ExpenseID: "e2", UserID: "C", Share: dec("0.01")},
			},
			members: []string{"A", "B", "C"},
		},
		{
			name: "payer outside member set",
			expenses: []Expense{
				{ID: "e1", Amount: dec("50"), PaidBy: "Z"},
			},
			splits: []Split{
				{ExpenseID: "e1", UserID: "A", Share: dec("25")},
				{ExpenseID: "e1", UserID: "Z", Share: dec("25")},
			},
			members: []string{"A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balances, err := CalculateBalances(tt.expenses, tt.splits, tt.members)
			require.NoError(t, err)

			sum := decimal.Zero
			for _, b := range balances {
				sum = sum.Add(b)
			}
			assert.True(t, sum.IsZero(), "balances should sum to zero, got %s", sum)
		})
	}
}

func TestCalculateBalances_SkipsIncompleteRecords(t *testing.T) {
	expenses := []Expense{
		{ID: "e1", Amount: dec("100")}, // no payer assigned yet
		{ID: "e2", Amount: dec("60"), PaidBy: "A"},
	}
	splits := []Split{
		{ExpenseID: "e1", UserID: "B", Share: dec("50")},
		{ExpenseID: "e2", UserID: "", Share: dec("30")},       // no user, ignored
		{ExpenseID: "missing", UserID: "B", Share: dec("99")}, // orphaned, ignored
		{ExpenseID: "e2", UserID: "B", Share: dec("30")},
	}

	balances, err := CalculateBalances(expenses, splits, []string{"A", "B"})
	require.NoError(t, err)

	// e1 still debits B even though nobody is credited yet
	assert.True(t, balances["A"].Equal(dec("60")))
	assert.True(t, balances["B"].Equal(dec("-80")))
}

func TestCalculateBalances_ZeroExpenses(t *testing.T) {
	balances, err := CalculateBalances(nil, nil, []string{"A", "B", "C"})
	require.NoError(t, err)

	require.Len(t, balances, 3)
	for id, b := range balances {
		assert.True(t, b.IsZero(), "participant %s should start at zero", id)
	}
	assert.Empty(t, CalculateSettlement(balances))
}

func TestCalculateBalances_RejectsNegativeAmounts(t *testing.T) {
	_, err := CalculateBalances(
		[]Expense{{ID: "e1", Amount: dec("-5"), PaidBy: "A"}},
		nil,
		[]string{"A"},
	)
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = CalculateBalances(
		[]Expense{{ID: "e1", Amount: dec("5"), PaidBy: "A"}},
		[]Split{{ExpenseID: "e1", UserID: "B", Share: dec("-5")}},
		[]string{"A", "B"},
	)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestCalculateBalances_Idempotent(t *testing.T) {
	expenses := []Expense{{ID: "e1", Amount: dec("75.50"), PaidBy: "A"}}
	splits := []Split{
		{ExpenseID: "e1", UserID: "A", Share: dec("37.75")},
		{ExpenseID: "e1", UserID: "B", Share: dec("37.75")},
	}

	first, err := CalculateBalances(expenses, splits, []string{"A", "B"})
	require.NoError(t, err)
	second, err := CalculateBalances(expenses, splits, []string{"A", "B"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, CalculateSettlement(first), CalculateSettlement(second))
}

func TestCalculateSettlement_SingleCreditor(t *testing.T) {
	balances := map[string]decimal.Decimal{
		"A": dec("200"),
		"B": dec("-100"),
		"C": dec("-100"),
	}

	transfers := CalculateSettlement(balances)

	require.Len(t, transfers, 2)
	// Equal debts tie-break by ID, so B pays before C
	assert.Equal(t, "B", transfers[0].From)
	assert.Equal(t, "A", transfers[0].To)
	assert.True(t, transfers[0].Amount.Equal(dec("100")))
	assert.Equal(t, "C", transfers[1].From)
	assert.Equal(t, "A", transfers[1].To)
	assert.True(t, transfers[1].Amount.Equal(dec("100")))
}

func TestCalculateSettlement_LargestCreditorFirst(t *testing.T) {
	balances := map[string]decimal.Decimal{
		"A": dec("90"),
		"B": dec("-10"),
		"C": dec("-50"),
		"D": dec("-30"),
	}

	transfers := CalculateSettlement(balances)

	require.Len(t, transfers, 3)
	// Most negative debtor pays the largest creditor first
	assertTransfer(t, transfers[0], "C", "A", "50")
	assertTransfer(t, transfers[1], "D", "A", "30")
	assertTransfer(t, transfers[2], "B", "A", "10")
}

func TestCalculateSettlement_SplitsAcrossCreditors(t *testing.T) {
	balances := map[string]decimal.Decimal{
		"A": dec("60"),
		"B": dec("40"),
		"C": dec("-70"),
		"D": dec("-30"),
	}

	transfers := CalculateSettlement(balances)

	require.Len(t, transfers, 3)
	assertTransfer(t, transfers[0], "C", "A", "60")
	assertTransfer(t, transfers[1], "C", "B", "10")
	assertTransfer(t, transfers[2], "D", "B", "30")
}

func TestCalculateSettlement_ZeroesBalances(t *testing.T) {
	tests := []struct {
		name     string
		balances map[string]decimal.Decimal
	}{
		{
			name: "two sided",
			balances: map[string]decimal.Decimal{
				"A": dec("123.45"), "B": dec("-23.45"), "C": dec("-100"),
			},
		},
		{
			name: "many small",
			balances: map[string]decimal.Decimal{
				"A": dec("10.01"), "B": dec("5.99"), "C": dec("-4"),
				"D": dec("-6"), "E": dec("-6"),
			},
		},
		{
			name: "drifted inputs",
			balances: map[string]decimal.Decimal{
				"A": dec("50.004"), "B": dec("-50.002"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transfers := CalculateSettlement(tt.balances)
			settled := ApplyTransfers(tt.balances, transfers)

			for id, b := range settled {
				assert.True(t, b.Abs().LessThanOrEqual(tolerance),
					"%s should be settled, remaining %s", id, b)
			}
		})
	}
}

func TestCalculateSettlement_NoSpuriousTransfers(t *testing.T) {
	balances := map[string]decimal.Decimal{
		"A": dec("25"),
		"B": dec("-25"),
		"C": dec("0"),
		"D": dec("0.005"), // within tolerance, already settled
	}

	transfers := CalculateSettlement(balances)

	for _, tr := range transfers {
		assert.True(t, tr.Amount.IsPositive(), "transfer amount must be positive")
		assert.NotContains(t, []string{"C", "D"}, tr.From)
		assert.NotContains(t, []string{"C", "D"}, tr.To)
	}
}

func TestCalculateSettlement_BoundedTransferCount(t *testing.T) {
	balances := map[string]decimal.Decimal{
		"A": dec("100"), "B": dec("50"), "C": dec("25"),
		"D": dec("-75"), "E": dec("-60"), "F": dec("-40"),
	}

	transfers := CalculateSettlement(balances)

	// k participants with nonzero balance need at most k-1 transfers
	assert.LessOrEqual(t, len(transfers), 5)
}

func TestCalculateSettlement_AllSettled(t *testing.T) {
	balances := map[string]decimal.Decimal{
		"A": dec("0"),
		"B": dec("0.008"),
		"C": dec("-0.008"),
	}
	assert.Empty(t, CalculateSettlement(balances))
}

func TestApplyTransfers_DoesNotMutateInput(t *testing.T) {
	balances := map[string]decimal.Decimal{"A": dec("10"), "B": dec("-10")}
	transfers := []Transfer{{From: "B", To: "A", Amount: dec("10")}}

	out := ApplyTransfers(balances, transfers)

	assert.True(t, balances["A"].Equal(dec("10")))
	assert.True(t, out["A"].IsZero())
	assert.True(t, out["B"].IsZero())
}

func TestCalculateCategoryTotals(t *testing.T) {
	expenses := []Expense{
		{ID: "e1", Amount: dec("100"), Category: "food"},
		{ID: "e2", Amount: dec("50"), Category: "food"},
		{ID: "e3", Amount: dec("200"), Category: "travel"},
	}

	totals := CalculateCategoryTotals(expenses)

	require.Len(t, totals, 2)
	assert.Equal(t, "food", totals[0].Category)
	assert.True(t, totals[0].Total.Equal(dec("150")))
	assert.Equal(t, "travel", totals[1].Category)
	assert.True(t, totals[1].Total.Equal(dec("200")))
}

func TestCalculateCategoryTotals_DefaultsToOther(t *testing.T) {
	expenses := []Expense{
		{ID: "e1", Amount: dec("10"), Category: "lodging"},
		{ID: "e2", Amount: dec("5")},
		{ID: "e3", Amount: dec("7.50")},
	}

	totals := CalculateCategoryTotals(expenses)

	require.Len(t, totals, 2)
	assert.Equal(t, "lodging", totals[0].Category)
	assert.Equal(t, "other", totals[1].Category)
	assert.True(t, totals[1].Total.Equal(dec("12.50")))
}

func TestCalculateCategoryTotals_Empty(t *testing.T) {
	assert.Empty(t, CalculateCategoryTotals(nil))
}
