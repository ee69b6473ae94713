package expense

import (
	"context"
	"errors"
	"fmt"

	"github.com/triptally/triptally/internal/expense/split"
)

// Common errors
var (
	ErrExpenseNotFound     = errors.New("expense not found")
	ErrSplitNotFound       = errors.New("split not found")
	ErrSplitLocked         = errors.New("split is locked to a settlement")
	ErrNotDebtor           = errors.New("only the owing member can mark their share as paid")
	ErrNotPayer            = errors.New("only the payer can perform this action")
	ErrInvalidStatusChange = errors.New("invalid status change")
	ErrNegativeAmount      = errors.New("amount cannot be negative")
	ErrCannotDeleteExpense = errors.New("cannot delete expense with paid or confirmed splits")
)

// Notifier tells participants about new expenses they owe on. May be nil.
type Notifier interface {
	Notify(ctx context.Context, userID, message string) error
}

// Service handles expense business logic
type Service struct {
	repo         *Repository
	splitFactory *split.Factory
	notifier     Notifier
}

// NewService creates a new expense service with dependencies injected
func NewService(repo *Repository, splitFactory *split.Factory, notifier Notifier) *Service {
	return &Service{
		repo:         repo,
		splitFactory: splitFactory,
		notifier:     notifier,
	}
}

// CreateExpense creates a new expense and calculates every participant's
// share using the requested strategy. The payer's own share is recorded too;
// balance math credits the payer with the full amount and debits each
// participant by their share.
func (s *Service) CreateExpense(ctx context.Context, payerID string, req *CreateExpenseRequest) (*ExpenseWithSplits, error) {
	if req.Amount.IsNegative() {
		return nil, ErrNegativeAmount
	}

	strategy, err := s.splitFactory.CreateFromString(req.SplitType)
	if err != nil {
		return nil, err
	}

	inputs := make([]split.SplitInput, len(req.Participants))
	for i, p := range req.Participants {
		inputs[i] = p.ToSplitInput()
	}

	splitOutputs, err := strategy.Calculate(req.Amount, inputs)
	if err != nil {
		return nil, err
	}

	expense, err := s.repo.CreateExpense(ctx, payerID, req)
	if err != nil {
		return nil, err
	}

	splits := make([]*Split, len(splitOutputs))
	for i, output := range splitOutputs {
		sp, err := s.repo.CreateSplit(ctx, expense.ID, output.UserID, output.Share)
		if err != nil {
			// TODO: Should rollback expense creation in a transaction
			return nil, err
		}
		splits[i] = sp
	}

	if s.notifier != nil {
		for _, output := range splitOutputs {
			if output.UserID == payerID {
				continue
			}
			// Notification failures never fail expense creation
			_ = s.notifier.Notify(ctx, output.UserID,
				fmt.Sprintf("A new expense %q was added, your share is %s %s", req.Description, output.Share.StringFixed(2), expense.Currency))
		}
	}

	return &ExpenseWithSplits{
		Expense: expense,
		Splits:  splits,
	}, nil
}

// GetExpenseByID retrieves an expense with its splits
func (s *Service) GetExpenseByID(ctx context.Context, id string) (*ExpenseWithSplits, error) {
	expense, err := s.repo.GetExpenseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, ErrExpenseNotFound
	}

	splits, err := s.repo.GetSplitsByExpenseID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ExpenseWithSplits{
		Expense: expense,
		Splits:  splits,
	}, nil
}

// ListExpensesByTripID retrieves expenses for a trip
func (s *Service) ListExpensesByTripID(ctx context.Context, tripID string, page, perPage int) ([]*Expense, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListExpensesByTripID(ctx, tripID, perPage, offset)
}

// UpdateExpense modifies an expense's description or category
func (s *Service) UpdateExpense(ctx context.Context, id, userID string, req *UpdateExpenseRequest) (*Expense, error) {
	expense, err := s.repo.GetExpenseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, ErrExpenseNotFound
	}

	if expense.PayerID == nil || *expense.PayerID != userID {
		return nil, ErrNotPayer
	}

	return s.repo.UpdateExpense(ctx, id, req)
}

// MarkSplitAsPaid allows the owing member to mark their share as paid
func (s *Service) MarkSplitAsPaid(ctx context.Context, splitID, userID string) (*Split, error) {
	sp, err := s.repo.GetSplitByID(ctx, splitID)
	if err != nil {
		return nil, err
	}
	if sp == nil {
		return nil, ErrSplitNotFound
	}

	if sp.UserID == nil || *sp.UserID != userID {
		return nil, ErrNotDebtor
	}

	if sp.SettlementID != nil {
		return nil, ErrSplitLocked
	}

	// Can only mark as paid from PENDING status
	if sp.Status != SplitStatusPending {
		return nil, ErrInvalidStatusChange
	}

	return s.repo.UpdateSplitStatus(ctx, splitID, SplitStatusPaid, nil)
}

// ConfirmSplitPayment allows the payer to confirm they received the payment
func (s *Service) ConfirmSplitPayment(ctx context.Context, splitID, userID string) (*Split, error) {
	sp, err := s.repo.GetSplitByID(ctx, splitID)
	if err != nil {
		return nil, err
	}
	if sp == nil {
		return nil, ErrSplitNotFound
	}

	expense, err := s.repo.GetExpenseByID(ctx, sp.ExpenseID)
	if err != nil {
		return nil, err
	}
	if expense == nil || expense.PayerID == nil || *expense.PayerID != userID {
		return nil, ErrNotPayer
	}

	if sp.SettlementID != nil {
		return nil, ErrSplitLocked
	}

	// Can only confirm from PAID status
	if sp.Status != SplitStatusPaid {
		return nil, ErrInvalidStatusChange
	}

	return s.repo.UpdateSplitStatus(ctx, splitID, SplitStatusConfirmed, nil)
}

// DisputeSplit allows the owing member to dispute their share
func (s *Service) DisputeSplit(ctx context.Context, splitID, userID, reason string) (*Split, error) {
	sp, err := s.repo.GetSplitByID(ctx, splitID)
	if err != nil {
		return nil, err
	}
	if sp == nil {
		return nil, ErrSplitNotFound
	}

	if sp.UserID == nil || *sp.UserID != userID {
		return nil, ErrNotDebtor
	}

	// Can dispute from PENDING or PAID status
	if sp.Status != SplitStatusPending && sp.Status != SplitStatusPaid {
		return nil, ErrInvalidStatusChange
	}

	return s.repo.UpdateSplitStatus(ctx, splitID, SplitStatusDisputed, &reason)
}

// DeleteExpense deletes an expense if no splits are paid or confirmed
func (s *Service) DeleteExpense(ctx context.Context, id, userID string) error {
	expense, err := s.repo.GetExpenseByID(ctx, id)
	if err != nil {
		return err
	}
	if expense == nil {
		return ErrExpenseNotFound
	}

	if expense.PayerID == nil || *expense.PayerID != userID {
		return ErrNotPayer
	}

	splits, err := s.repo.GetSplitsByExpenseID(ctx, id)
	if err != nil {
		return err
	}
	for _, sp := range splits {
		if sp.Status == SplitStatusPaid || sp.Status == SplitStatusConfirmed {
			return ErrCannotDeleteExpense
		}
	}

	return s.repo.DeleteExpense(ctx, id)
}
