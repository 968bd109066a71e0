package circulation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Lifecycle applies return, cancel and renew transitions. Each transition is
// a conditional single-record write; no lock is taken.
type Lifecycle struct {
	ledgers Ledgers
	settings
}

func NewLifecycle(ledgers Ledgers, opts ...Option) *Lifecycle {
	return &Lifecycle{ledgers: ledgers, settings: applyOptions(opts)}
}

// Find looks the loan up in every ledger.
func (lc *Lifecycle) Find(ctx context.Context, loanID string) (*Loan, Ledger, error) {
	for _, ledger := range lc.ledgers {
		l, err := ledger.Get(ctx, loanID)
		if errors.Is(err, ErrLoanNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return l, ledger, nil
	}
	return nil, nil, ErrLoanNotFound
}

// Return closes an open loan. Returning it a second time fails with
// ErrAlreadyReturned and leaves the record untouched.
func (lc *Lifecycle) Return(ctx context.Context, loanID string, completion *Completion) (*Loan, error) {
	return lc.transition(ctx, loanID, "returned", func(now time.Time) (Change, error) {
		return Change{To: StatusReturned, At: now, Completion: completion}, nil
	})
}

// Cancel voids an open loan, e.g. a mistaken checkout. The copy is available
// again on the next availability read.
func (lc *Lifecycle) Cancel(ctx context.Context, loanID string) (*Loan, error) {
	return lc.transition(ctx, loanID, "cancelled", func(now time.Time) (Change, error) {
		return Change{To: StatusCancelled, At: now}, nil
	})
}

// Renew moves the due date of an open loan to newDueAt, which must lie after now.
func (lc *Lifecycle) Renew(ctx context.Context, loanID string, newDueAt time.Time) (*Loan, error) {
	return lc.transition(ctx, loanID, "renewed", func(now time.Time) (Change, error) {
		if !newDueAt.After(now) {
			return Change{}, ErrDueDateInPast
		}
		due := newDueAt.UTC()
		return Change{To: StatusOpen, At: now, DueAt: &due}, nil
	})
}

func (lc *Lifecycle) transition(ctx context.Context, loanID, verb string, build func(now time.Time) (Change, error)) (*Loan, error) {
	loan, ledger, err := lc.Find(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !loan.IsOpen() {
		return nil, notOpenError(loan, verb)
	}
	ch, err := build(lc.now().UTC())
	if err != nil {
		return nil, err
	}

	err = ledger.UpdateOpen(ctx, loanID, ch)
	if errors.Is(err, ErrNotOpen) {
		// lost a race against a concurrent transition
		cur, gerr := ledger.Get(ctx, loanID)
		if gerr != nil {
			return nil, gerr
		}
		return nil, notOpenError(cur, verb)
	}
	if err != nil {
		return nil, fmt.Errorf("update loan %s: %w", loanID, err)
	}

	updated, err := ledger.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	lc.logger.Info("loan "+verb, "loan_id", loanID, "title_id", updated.TitleID,
		"copy_code", updated.CopyCode, "category", string(updated.Category))
	return updated, nil
}

func notOpenError(l *Loan, verb string) error {
	if verb == "returned" && l.Status == StatusReturned {
		return ErrAlreadyReturned
	}
	return ErrInvalidTransition
}
