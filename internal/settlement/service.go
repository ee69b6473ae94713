package settlement

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/triptally/triptally/internal/expense"
	"github.com/triptally/triptally/internal/settlement/engine"
)

// Common errors
var (
	ErrSettlementNotFound  = errors.New("settlement not found")
	ErrNoDebtToSettle      = errors.New("no outstanding debt to settle with this member")
	ErrNotPayer            = errors.New("only the payer can mark as paid")
	ErrNotReceiver         = errors.New("only the receiver can confirm or reject")
	ErrInvalidStatusChange = errors.New("invalid status change")
	ErrCannotSettleSelf    = errors.New("cannot create settlement with yourself")
)

// Store persists settlement records
type Store interface {
	Create(ctx context.Context, tripID, payerID, receiverID string, amount decimal.Decimal, currency string) (*Settlement, error)
	GetByID(ctx context.Context, id string) (*Settlement, error)
	ListByTripID(ctx context.Context, tripID string, limit, offset int) ([]*Settlement, int, error)
	ListConfirmedByTripID(ctx context.Context, tripID string) ([]*Settlement, error)
	UpdateStatus(ctx context.Context, id string, status SettlementStatus) (*Settlement, error)
}

// ExpenseStore provides the expense and split data the engine consumes
type ExpenseStore interface {
	GetTripExpensesAndSplits(ctx context.Context, tripID string) ([]*expense.Expense, []*expense.Split, error)
	LockSplitsToSettlement(ctx context.Context, splitIDs []string, settlementID string) error
	UnlockSplitsFromSettlement(ctx context.Context, settlementID string) error
	ConfirmSplitsBySettlement(ctx context.Context, settlementID string) error
}

// MemberStore resolves a trip's member IDs
type MemberStore interface {
	GetMemberIDs(ctx context.Context, tripID string) ([]string, error)
}

// Notifier delivers settlement lifecycle notifications. May be nil.
type Notifier interface {
	Notify(ctx context.Context, userID, message string) error
}

// Service handles settlement business logic
type Service struct {
	repo     Store
	expenses ExpenseStore
	members  MemberStore
	notifier Notifier
}

// NewService creates a new settlement service
func NewService(repo Store, expenses ExpenseStore, members MemberStore, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		expenses: expenses,
		members:  members,
		notifier: notifier,
	}
}

// tripSnapshot holds everything needed to compute a trip's current balances
type tripSnapshot struct {
	expenses []*expense.Expense
	splits   []*expense.Split
	balances map[string]decimal.Decimal
}

// loadSnapshot computes the trip's remaining balances: raw expense balances
// with every completed payment (confirmed settlements and directly confirmed
// splits) folded back in as transfers.
func (s *Service) loadSnapshot(ctx context.Context, tripID string) (*tripSnapshot, error) {
	memberIDs, err := s.members.GetMemberIDs(ctx, tripID)
	if err != nil {
		return nil, err
	}

	expenses, splits, err := s.expenses.GetTripExpensesAndSplits(ctx, tripID)
	if err != nil {
		return nil, err
	}

	engineExpenses := make([]engine.Expense, len(expenses))
	payerByExpense := make(map[string]string, len(expenses))
	for i, e := range expenses {
		paidBy := ""
		if e.PayerID != nil {
			paidBy = *e.PayerID
		}
		engineExpenses[i] = engine.Expense{
			ID:       e.ID,
			Amount:   e.Amount,
			PaidBy:   paidBy,
			Category: e.Category,
		}
		payerByExpense[e.ID] = paidBy
	}

	engineSplits := make([]engine.Split, len(splits))
	for i, sp := range splits {
		userID := ""
		if sp.UserID != nil {
			userID = *sp.UserID
		}
		engineSplits[i] = engine.Split{
			ExpenseID: sp.ExpenseID,
			UserID:    userID,
			Share:     sp.Share,
		}
	}

	balances, err := engine.CalculateBalances(engineExpenses, engineSplits, memberIDs)
	if err != nil {
		return nil, err
	}

	confirmed, err := s.repo.ListConfirmedByTripID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	var transfers []engine.Transfer
	for _, st := range confirmed {
		transfers = append(transfers, engine.Transfer{
			From:   st.PayerID,
			To:     st.ReceiverID,
			Amount: st.Amount,
		})
	}

	// Splits confirmed directly, outside any settlement, are payments too
	for _, sp := range splits {
		if sp.Status != expense.SplitStatusConfirmed || sp.SettlementID != nil || sp.UserID == nil {
			continue
		}
		payer := payerByExpense[sp.ExpenseID]
		if payer == "" || payer == *sp.UserID {
			continue
		}
		transfers = append(transfers, engine.Transfer{
			From:   *sp.UserID,
			To:     payer,
			Amount: sp.Share,
		})
	}

	return &tripSnapshot{
		expenses: expenses,
		splits:   splits,
		balances: engine.ApplyTransfers(balances, transfers),
	}, nil
}

// GetTripBalances returns every member's remaining net position in a trip
func (s *Service) GetTripBalances(ctx context.Context, tripID string) ([]*BalanceResponse, error) {
	snap, err := s.loadSnapshot(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return balanceResponses(snap.balances), nil
}

// GetSuggestedTransfers returns the minimal payments that settle the trip
func (s *Service) GetSuggestedTransfers(ctx context.Context, tripID string) ([]*TransferResponse, error) {
	snap, err := s.loadSnapshot(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return transferResponses(engine.CalculateSettlement(snap.balances)), nil
}

// GetCategoryBreakdown returns per-category spending totals for a trip
func (s *Service) GetCategoryBreakdown(ctx context.Context, tripID string) ([]*CategoryTotalResponse, error) {
	expenses, _, err := s.expenses.GetTripExpensesAndSplits(ctx, tripID)
	if err != nil {
		return nil, err
	}

	engineExpenses := make([]engine.Expense, len(expenses))
	for i, e := range expenses {
		engineExpenses[i] = engine.Expense{ID: e.ID, Amount: e.Amount, Category: e.Category}
	}

	return categoryResponses(engine.CalculateCategoryTotals(engineExpenses)), nil
}

// GetTripSummary bundles balances, suggested transfers and category totals
func (s *Service) GetTripSummary(ctx context.Context, tripID string) (*TripSummaryResponse, error) {
	snap, err := s.loadSnapshot(ctx, tripID)
	if err != nil {
		return nil, err
	}

	engineExpenses := make([]engine.Expense, len(snap.expenses))
	for i, e := range snap.expenses {
		engineExpenses[i] = engine.Expense{ID: e.ID, Amount: e.Amount, Category: e.Category}
	}

	return &TripSummaryResponse{
		TripID:     tripID,
		Balances:   balanceResponses(snap.balances),
		Transfers:  transferResponses(engine.CalculateSettlement(snap.balances)),
		Categories: categoryResponses(engine.CalculateCategoryTotals(engineExpenses)),
	}, nil
}

// CreateSettlement creates a settlement from the initiator to a receiver.
// The amount is taken from the trip's suggested transfers, so a settlement
// can only be created where a real debt exists.
func (s *Service) CreateSettlement(ctx context.Context, initiatorID string, req *CreateSettlementRequest) (*Settlement, error) {
	if initiatorID == req.ReceiverID {
		return nil, ErrCannotSettleSelf
	}

	snap, err := s.loadSnapshot(ctx, req.TripID)
	if err != nil {
		return nil, err
	}

	var amount decimal.Decimal
	found := false
	for _, tr := range engine.CalculateSettlement(snap.balances) {
		if tr.From == initiatorID && tr.To == req.ReceiverID {
			amount = tr.Amount
			found = true
			break
		}
	}
	if !found {
		return nil, ErrNoDebtToSettle
	}

	currency := "USD"
	if len(snap.expenses) > 0 {
		currency = snap.expenses[0].Currency
	}

	settlement, err := s.repo.Create(ctx, req.TripID, initiatorID, req.ReceiverID, amount, currency)
	if err != nil {
		return nil, err
	}

	// Lock the initiator's open splits on expenses the receiver paid for
	var splitIDs []string
	for _, sp := range snap.splits {
		if sp.UserID == nil || *sp.UserID != initiatorID {
			continue
		}
		if sp.SettlementID != nil || sp.Status == expense.SplitStatusConfirmed {
			continue
		}
		if payer := expensePayer(snap.expenses, sp.ExpenseID); payer == req.ReceiverID {
			splitIDs = append(splitIDs, sp.ID)
		}
	}
	if len(splitIDs) > 0 {
		if err := s.expenses.LockSplitsToSettlement(ctx, splitIDs, settlement.ID); err != nil {
			// TODO: Should rollback settlement creation in a transaction
			return nil, err
		}
	}

	s.notify(ctx, req.ReceiverID, fmt.Sprintf("A settlement of %s %s was initiated with you", amount.StringFixed(2), currency))

	return settlement, nil
}

// GetByID retrieves a settlement by its ID
func (s *Service) GetByID(ctx context.Context, id string) (*Settlement, error) {
	settlement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, ErrSettlementNotFound
	}
	return settlement, nil
}

// ListByTripID retrieves all settlements within a trip
func (s *Service) ListByTripID(ctx context.Context, tripID string, page, perPage int) ([]*Settlement, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByTripID(ctx, tripID, perPage, offset)
}

// MarkAsPaid allows the payer to mark the settlement as paid
func (s *Service) MarkAsPaid(ctx context.Context, settlementID, userID string) (*Settlement, error) {
	settlement, err := s.repo.GetByID(ctx, settlementID)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, ErrSettlementNotFound
	}

	if settlement.PayerID != userID {
		return nil, ErrNotPayer
	}

	// Can only mark as paid from PENDING status
	if settlement.Status != SettlementStatusPending {
		return nil, ErrInvalidStatusChange
	}

	settlement, err = s.repo.UpdateStatus(ctx, settlementID, SettlementStatusPaid)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, settlement.ReceiverID, fmt.Sprintf("A settlement of %s %s was marked as paid", settlement.Amount.StringFixed(2), settlement.Currency))

	return settlement, nil
}

// Confirm allows the receiver to confirm they received the payment
func (s *Service) Confirm(ctx context.Context, settlementID, userID string) (*Settlement, error) {
	settlement, err := s.repo.GetByID(ctx, settlementID)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, ErrSettlementNotFound
	}

	if settlement.ReceiverID != userID {
		return nil, ErrNotReceiver
	}

	// Can only confirm from PAID status
	if settlement.Status != SettlementStatusPaid {
		return nil, ErrInvalidStatusChange
	}

	settlement, err = s.repo.UpdateStatus(ctx, settlementID, SettlementStatusConfirmed)
	if err != nil {
		return nil, err
	}

	// Mark all locked splits as confirmed
	if err := s.expenses.ConfirmSplitsBySettlement(ctx, settlementID); err != nil {
		return nil, err
	}

	s.notify(ctx, settlement.PayerID, fmt.Sprintf("Your settlement of %s %s was confirmed", settlement.Amount.StringFixed(2), settlement.Currency))

	return settlement, nil
}

// Reject allows the receiver to reject the settlement
func (s *Service) Reject(ctx context.Context, settlementID, userID string) (*Settlement, error) {
	settlement, err := s.repo.GetByID(ctx, settlementID)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, ErrSettlementNotFound
	}

	if settlement.ReceiverID != userID {
		return nil, ErrNotReceiver
	}

	// Can reject from PENDING or PAID status
	if settlement.Status != SettlementStatusPending && settlement.Status != SettlementStatusPaid {
		return nil, ErrInvalidStatusChange
	}

	settlement, err = s.repo.UpdateStatus(ctx, settlementID, SettlementStatusRejected)
	if err != nil {
		return nil, err
	}

	// Unlock all splits from this settlement
	if err := s.expenses.UnlockSplitsFromSettlement(ctx, settlementID); err != nil {
		return nil, err
	}

	s.notify(ctx, settlement.PayerID, fmt.Sprintf("Your settlement of %s %s was rejected", settlement.Amount.StringFixed(2), settlement.Currency))

	return settlement, nil
}

func (s *Service) notify(ctx context.Context, userID, message string) {
	if s.notifier == nil {
		return
	}
	// Notification failures never fail the settlement operation
	_ = s.notifier.Notify(ctx, userID, message)
}

func balanceResponses(balances map[string]decimal.Decimal) []*BalanceResponse {
	responses := make([]*BalanceResponse, 0, len(balances))
	for userID, balance := range balances {
		responses = append(responses, &BalanceResponse{UserID: userID, Balance: balance})
	}
	sort.Slice(responses, func(i, j int) bool {
		if !responses[i].Balance.Equal(responses[j].Balance) {
			return responses[i].Balance.GreaterThan(responses[j].Balance)
		}
		return responses[i].UserID < responses[j].UserID
	})
	return responses
}

func transferResponses(transfers []engine.Transfer) []*TransferResponse {
	responses := make([]*TransferResponse, len(transfers))
	for i, tr := range transfers {
		responses[i] = &TransferResponse{FromUserID: tr.From, ToUserID: tr.To, Amount: tr.Amount}
	}
	return responses
}

func categoryResponses(totals []engine.CategoryTotal) []*CategoryTotalResponse {
	responses := make([]*CategoryTotalResponse, len(totals))
	for i, ct := range totals {
		responses[i] = &CategoryTotalResponse{Category: ct.Category, Total: ct.Total}
	}
	return responses
}

func expensePayer(expenses []*expense.Expense, expenseID string) string {
	for _, e := range expenses {
		if e.ID == expenseID && e.PayerID != nil {
			return *e.PayerID
		}
	}
	return ""
}
