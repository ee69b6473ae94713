// Package engine computes trip balances and settlement suggestions.
//
// Everything in this package is a pure function over plain records: no I/O,
// no state, safe to call on every recomputation. Monetary values are exact
// decimals; balances are accumulated without intermediate rounding and only
// rounded to two places at the edges.
package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrNegativeAmount = errors.New("monetary amounts cannot be negative")
)

// Tolerance below which a balance is treated as settled. Kept only for the
// settlement walk, where callers may supply balances that originated from
// imprecise external records; balances produced by CalculateBalances are
// exact.
var tolerance = decimal.New(9, -3) // 0.009, just under one cent

// Expense is one shared cost within a trip.
type Expense struct {
	ID       string
	Amount   decimal.Decimal
	PaidBy   string // empty means no payer credited yet
	Category string // empty falls into the "other" bucket
}

// Split is one participant's owed share of a specific expense.
type Split struct {
	ExpenseID string
	UserID    string // empty splits are ignored
	Share     decimal.Decimal
}

// Transfer is a single settling payment instruction.
type Transfer struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// CategoryTotal is the summed spend for one expense category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// CalculateBalances computes each participant's net position from a snapshot
// of expenses and splits. Positive means the participant is owed money,
// negative means they owe.
//
// Every ID in participantIDs is seeded with a zero balance so members with no
// expenses still appear in the result. Payers and split users outside that
// set are added defensively. Expenses without a payer and splits without a
// user are skipped: a record created before a payer is assigned is an
// expected transitional state, not an error, and one incomplete record must
// never blank the whole computation.
func CalculateBalances(expenses []Expense, splits []Split, participantIDs []string) (map[string]decimal.Decimal, error) {
	balances := make(map[string]decimal.Decimal, len(participantIDs))
	for _, id := range participantIDs {
		balances[id] = decimal.Zero
	}

	known := make(map[string]bool, len(expenses))
	for _, e := range expenses {
		if e.Amount.IsNegative() {
			return nil, fmt.Errorf("expense %s: %w", e.ID, ErrNegativeAmount)
		}
		known[e.ID] = true
		if e.PaidBy == "" {
			continue
		}
		balances[e.PaidBy] = balances[e.PaidBy].Add(e.Amount)
	}

	for _, s := range splits {
		if s.Share.IsNegative() {
			return nil, fmt.Errorf("split for expense %s: %w", s.ExpenseID, ErrNegativeAmount)
		}
		// Orphaned splits reference an expense outside this snapshot
		if !known[s.ExpenseID] || s.UserID == "" {
			continue
		}
		balances[s.UserID] = balances[s.UserID].Sub(s.Share)
	}

	for id, b := range balances {
		balances[id] = b.Round(2)
	}

	return balances, nil
}

// CalculateSettlement produces the greedy minimal-transfer settlement for a
// set of balances: creditors sorted largest first, debtors most negative
// first, then a two-pointer walk pairing the current largest of each side.
// Ties are broken by participant ID so the output is fully deterministic.
//
// For k participants with a balance outside tolerance the result has at most
// k-1 transfers, and applying them all zeroes every balance within tolerance.
func CalculateSettlement(balances map[string]decimal.Decimal) []Transfer {
	type position struct {
		id      string
		balance decimal.Decimal
	}

	var creditors, debtors []position
	for id, b := range balances {
		switch {
		case b.GreaterThan(tolerance):
			creditors = append(creditors, position{id, b})
		case b.LessThan(tolerance.Neg()):
			debtors = append(debtors, position{id, b})
		}
	}

	sort.Slice(creditors, func(i, j int) bool {
		if !creditors[i].balance.Equal(creditors[j].balance) {
			return creditors[i].balance.GreaterThan(creditors[j].balance)
		}
		return creditors[i].id < creditors[j].id
	})
	sort.Slice(debtors, func(i, j int) bool {
		if !debtors[i].balance.Equal(debtors[j].balance) {
			return debtors[i].balance.LessThan(debtors[j].balance)
		}
		return debtors[i].id < debtors[j].id
	})

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		owed := debtors[i].balance.Neg()
		credit := creditors[j].balance

		payment := decimal.Min(owed, credit).Round(2)
		if payment.IsPositive() {
			transfers = append(transfers, Transfer{
				From:   debtors[i].id,
				To:     creditors[j].id,
				Amount: payment,
			})
		}

		debtors[i].balance = debtors[i].balance.Add(payment).Round(2)
		creditors[j].balance = creditors[j].balance.Sub(payment).Round(2)

		if debtors[i].balance.GreaterThanOrEqual(tolerance.Neg()) {
			i++
		}
		if creditors[j].balance.LessThanOrEqual(tolerance) {
			j++
		}
	}

	return transfers
}

// ApplyTransfers returns a copy of balances with every transfer applied:
// the debtor's balance rises by the amount, the creditor's falls. Used to
// fold confirmed settlement payments into live balances, and by tests to
// verify that a settlement zeroes what it claims to zero.
func ApplyTransfers(balances map[string]decimal.Decimal, transfers []Transfer) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(balances))
	for id, b := range balances {
		out[id] = b
	}
	for _, t := range transfers {
		out[t.From] = out[t.From].Add(t.Amount)
		out[t.To] = out[t.To].Sub(t.Amount)
	}
	return out
}

// CalculateCategoryTotals sums expense amounts per category. Expenses with
// no category land in the "other" bucket. Output order is the insertion
// order of each category's first occurrence, which keeps chart colors stable
// across re-renders of an unchanged expense list.
func CalculateCategoryTotals(expenses []Expense) []CategoryTotal {
	totals := make(map[string]decimal.Decimal)
	var order []string

	for _, e := range expenses {
		category := e.Category
		if category == "" {
			category = "other"
		}
		if _, seen := totals[category]; !seen {
			order = append(order, category)
		}
		totals[category] = totals[category].Add(e.Amount)
	}

	out := make([]CategoryTotal, len(order))
	for i, category := range order {
		out[i] = CategoryTotal{Category: category, Total: totals[category].Round(2)}
	}
	return out
}
