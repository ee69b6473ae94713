package settlement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triptally/triptally/internal/expense"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func strPtr(s string) *string {
	return &s
}

type fakeRepo struct {
	byID      map[string]*Settlement
	nextID    int
	confirmed []*Settlement
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[string]*Settlement{}}
}

func (f *fakeRepo) Create(_ context.Context, tripID, payerID, receiverID string, amount decimal.Decimal, currency string) (*Settlement, error) {
	f.nextID++
	s := &Settlement{
		ID:         fmt.Sprintf("stl-%d", f.nextID),
		TripID:     tripID,
		PayerID:    payerID,
		ReceiverID: receiverID,
		Amount:     amount,
		Currency:   currency,
		Status:     SettlementStatusPending,
		CreatedAt:  time.Now(),
	}
	f.byID[s.ID] = s
	return s, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*Settlement, error) {
	return f.byID[id], nil
}

func (f *fakeRepo) ListByTripID(_ context.Context, tripID string, limit, offset int) ([]*Settlement, int, error) {
	var out []*Settlement
	for _, s := range f.byID {
		if s.TripID == tripID {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) ListConfirmedByTripID(_ context.Context, tripID string) ([]*Settlement, error) {
	var out []*Settlement
	for _, s := range f.confirmed {
		if s.TripID == tripID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id string, status SettlementStatus) (*Settlement, error) {
	s := f.byID[id]
	if s == nil {
		return nil, nil
	}
	s.Status = status
	if status == SettlementStatusConfirmed {
		f.confirmed = append(f.confirmed, s)
	}
	return s, nil
}

type fakeExpenses struct {
	expenses []*expense.Expense
	splits   []*expense.Split

	lockedSplits        map[string]string
	unlockedSettlements []string
	confirmedBy         []string
}

func (f *fakeExpenses) GetTripExpensesAndSplits(_ context.Context, tripID string) ([]*expense.Expense, []*expense.Split, error) {
	return f.expenses, f.splits, nil
}

func (f *fakeExpenses) LockSplitsToSettlement(_ context.Context, splitIDs []string, settlementID string) error {
	if f.lockedSplits == nil {
		f.lockedSplits = map[string]string{}
	}
	for _, id := range splitIDs {
		f.lockedSplits[id] = settlementID
	}
	return nil
}

func (f *fakeExpenses) UnlockSplitsFromSettlement(_ context.Context, settlementID string) error {
	f.unlockedSettlements = append(f.unlockedSettlements, settlementID)
	return nil
}

func (f *fakeExpenses) ConfirmSplitsBySettlement(_ context.Context, settlementID string) error {
	f.confirmedBy = append(f.confirmedBy, settlementID)
	return nil
}

type fakeMembers struct {
	ids []string
}

func (f *fakeMembers) GetMemberIDs(_ context.Context, tripID string) ([]string, error) {
	return f.ids, nil
}

type fakeNotifier struct {
	messages map[string][]string
}

func (f *fakeNotifier) Notify(_ context.Context, userID, message string) error {
	if f.messages == nil {
		f.messages = map[string][]string{}
	}
	f.messages[userID] = append(f.messages[userID], message)
	return nil
}

// newFixture builds a trip where A paid 300 for food, split evenly three
// ways. B and C each owe A 100.
func newFixture() (*Service, *fakeRepo, *fakeExpenses, *fakeNotifier) {
	repo := newFakeRepo()
	exp := &fakeExpenses{
		expenses: []*expense.Expense{
			{ID: "e1", TripID: "t1", PayerID: strPtr("A"), Amount: dec("300"), Currency: "USD", Category: "food"},
		},
		splits: []*expense.Split{
			{ID: "s1", ExpenseID: "e1", UserID: strPtr("A"), Share: dec("100"), Status: expense.SplitStatusPending},
			{ID: "s2", ExpenseID: "e1", UserID: strPtr("B"), Share: dec("100"), Status: expense.SplitStatusPending},
			{ID: "s3", ExpenseID: "e1", UserID: strPtr("C"), Share: dec("100"), Status: expense.SplitStatusPending},
		},
	}
	notifier := &fakeNotifier{}
	svc := NewService(repo, exp, &fakeMembers{ids: []string{"A", "B", "C"}}, notifier)
	return svc, repo, exp, notifier
}

func TestGetTripBalances(t *testing.T) {
	svc, _, _, _ := newFixture()

	balances, err := svc.GetTripBalances(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, balances, 3)

	assert.Equal(t, "A", balances[0].UserID)
	assert.True(t, balances[0].Balance.Equal(dec("200")))
	assert.Equal(t, "B", balances[1].UserID)
	assert.True(t, balances[1].Balance.Equal(dec("-100")))
	assert.Equal(t, "C", balances[2].UserID)
	assert.True(t, balances[2].Balance.Equal(dec("-100")))
}

func TestGetSuggestedTransfers(t *testing.T) {
	svc, _, _, _ := newFixture()

	transfers, err := svc.GetSuggestedTransfers(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, transfers, 2)

	assert.Equal(t, "B", transfers[0].FromUserID)
	assert.Equal(t, "A", transfers[0].ToUserID)
	assert.True(t, transfers[0].Amount.Equal(dec("100")))

	assert.Equal(t, "C", transfers[1].FromUserID)
	assert.Equal(t, "A", transfers[1].ToUserID)
	assert.True(t, transfers[1].Amount.Equal(dec("100")))
}

func TestConfirmedSettlementReducesBalances(t *testing.T) {
	svc, repo, _, _ := newFixture()

	repo.confirmed = append(repo.confirmed, &Settlement{
		ID: "done", TripID: "t1", PayerID: "B", ReceiverID: "A",
		Amount: dec("100"), Status: SettlementStatusConfirmed,
	})

	transfers, err := svc.GetSuggestedTransfers(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "C", transfers[0].FromUserID)
	assert.Equal(t, "A", transfers[0].ToUserID)
	assert.True(t, transfers[0].Amount.Equal(dec("100")))
}

func TestDirectlyConfirmedSplitReducesBalances(t *testing.T) {
	svc, _, exp, _ := newFixture()

	exp.splits[1].Status = expense.SplitStatusConfirmed

	balances, err := svc.GetTripBalances(context.Background(), "t1")
	require.NoError(t, err)

	byUser := map[string]decimal.Decimal{}
	for _, b := range balances {
		byUser[b.UserID] = b.Balance
	}
	assert.True(t, byUser["A"].Equal(dec("100")))
	assert.True(t, byUser["B"].Equal(dec("0")))
	assert.True(t, byUser["C"].Equal(dec("-100")))
}

func TestGetCategoryBreakdown(t *testing.T) {
	svc, _, exp, _ := newFixture()

	exp.expenses = append(exp.expenses,
		&expense.Expense{ID: "e2", TripID: "t1", PayerID: strPtr("B"), Amount: dec("50"), Category: "food"},
		&expense.Expense{ID: "e3", TripID: "t1", PayerID: strPtr("C"), Amount: dec("80")},
	)

	totals, err := svc.GetCategoryBreakdown(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, totals, 2)

	assert.Equal(t, "food", totals[0].Category)
	assert.True(t, totals[0].Total.Equal(dec("350")))
	assert.Equal(t, "other", totals[1].Category)
	assert.True(t, totals[1].Total.Equal(dec("80")))
}

func TestCreateSettlement(t *testing.T) {
	svc, _, exp, notifier := newFixture()

	settlement, err := svc.CreateSettlement(context.Background(), "B", &CreateSettlementRequest{
		TripID:     "t1",
		ReceiverID: "A",
	})
	require.NoError(t, err)

	assert.Equal(t, "B", settlement.PayerID)
	assert.Equal(t, "A", settlement.ReceiverID)
	assert.True(t, settlement.Amount.Equal(dec("100")))
	assert.Equal(t, "USD", settlement.Currency)
	assert.Equal(t, SettlementStatusPending, settlement.Status)

	// B's open split on A's expense gets locked to the new settlement
	assert.Equal(t, settlement.ID, exp.lockedSplits["s2"])
	assert.NotContains(t, exp.lockedSplits, "s1")
	assert.NotContains(t, exp.lockedSplits, "s3")

	assert.NotEmpty(t, notifier.messages["A"])
}

func TestCreateSettlement_SelfRejected(t *testing.T) {
	svc, _, _, _ := newFixture()

	_, err := svc.CreateSettlement(context.Background(), "B", &CreateSettlementRequest{
		TripID:     "t1",
		ReceiverID: "B",
	})
	assert.ErrorIs(t, err, ErrCannotSettleSelf)
}

func TestCreateSettlement_NoDebt(t *testing.T) {
	svc, _, _, _ := newFixture()

	// A is the creditor; A owes B nothing
	_, err := svc.CreateSettlement(context.Background(), "A", &CreateSettlementRequest{
		TripID:     "t1",
		ReceiverID: "B",
	})
	assert.ErrorIs(t, err, ErrNoDebtToSettle)
}

func TestSettlementLifecycle(t *testing.T) {
	svc, _, exp, notifier := newFixture()
	ctx := context.Background()

	settlement, err := svc.CreateSettlement(ctx, "B", &CreateSettlementRequest{TripID: "t1", ReceiverID: "A"})
	require.NoError(t, err)

	// Only the payer can mark as paid
	_, err = svc.MarkAsPaid(ctx, settlement.ID, "A")
	assert.ErrorIs(t, err, ErrNotPayer)

	paid, err := svc.MarkAsPaid(ctx, settlement.ID, "B")
	require.NoError(t, err)
	assert.Equal(t, SettlementStatusPaid, paid.Status)

	// Cannot pay twice
	_, err = svc.MarkAsPaid(ctx, settlement.ID, "B")
	assert.ErrorIs(t, err, ErrInvalidStatusChange)

	// Only the receiver can confirm
	_, err = svc.Confirm(ctx, settlement.ID, "B")
	assert.ErrorIs(t, err, ErrNotReceiver)

	confirmed, err := svc.Confirm(ctx, settlement.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, SettlementStatusConfirmed, confirmed.Status)
	assert.Contains(t, exp.confirmedBy, settlement.ID)

	// The confirmed payment now reduces the trip's remaining debt
	transfers, err := svc.GetSuggestedTransfers(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "C", transfers[0].FromUserID)

	assert.NotEmpty(t, notifier.messages["B"])
}

func TestSettlementReject(t *testing.T) {
	svc, _, exp, _ := newFixture()
	ctx := context.Background()

	settlement, err := svc.CreateSettlement(ctx, "C", &CreateSettlementRequest{TripID: "t1", ReceiverID: "A"})
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, settlement.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, SettlementStatusRejected, rejected.Status)
	assert.Contains(t, exp.unlockedSettlements, settlement.ID)

	// Rejected settlements never reduce balances
	transfers, err := svc.GetSuggestedTransfers(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, transfers, 2)
}

func TestGetTripSummary(t *testing.T) {
	svc, _, _, _ := newFixture()

	summary, err := svc.GetTripSummary(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, "t1", summary.TripID)
	assert.Len(t, summary.Balances, 3)
	assert.Len(t, summary.Transfers, 2)
	require.Len(t, summary.Categories, 1)
	assert.Equal(t, "food", summary.Categories[0].Category)
	assert.True(t, summary.Categories[0].Total.Equal(dec("300")))
}
