package circulation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	OutcomeSuccess     = "success"
	OutcomeNoCopy      = "no_available_copy"
	OutcomeRejected    = "rejected"
	OutcomeSystemError = "system_error"
)

// Request asks for one copy of a title. PreferredCode is optional.
type Request struct {
	TitleID       string
	BorrowerID    string
	Category      Category
	PreferredCode string
}

// Coordinator picks a free copy and opens the loan. Picking and writing run
// inside one critical section per title.
type Coordinator struct {
	resolver  *Resolver
	ledgers   Ledgers
	borrowers Borrowers
	locker    Locker
	loanDays  int
	settings
}

func NewCoordinator(resolver *Resolver, ledgers Ledgers, borrowers Borrowers, locker Locker, loanDays int, opts ...Option) *Coordinator {
	if loanDays <= 0 {
		loanDays = 14
	}
	return &Coordinator{
		resolver:  resolver,
		ledgers:   ledgers,
		borrowers: borrowers,
		locker:    locker,
		loanDays:  loanDays,
		settings:  applyOptions(opts),
	}
}

// LoanDuration is the configured loan period.
func (c *Coordinator) LoanDuration() time.Duration {
	return time.Duration(c.loanDays) * 24 * time.Hour
}

// Checkout opens a loan for one copy of req.TitleID.
func (c *Coordinator) Checkout(ctx context.Context, req Request) (*Loan, error) {
	loan, err := c.checkout(ctx, req)
	c.metrics.CheckoutOutcome(req.Category, outcomeOf(err))
	return loan, err
}

func (c *Coordinator) checkout(ctx context.Context, req Request) (*Loan, error) {
	ledger, err := c.ledgers.For(req.Category)
	if err != nil {
		return nil, err
	}
	ok, err := c.borrowers.BorrowerExists(ctx, req.Category, req.BorrowerID)
	if err != nil {
		return nil, fmt.Errorf("lookup borrower: %w", err)
	}
	if !ok {
		return nil, ErrBorrowerNotFound
	}

	unlock, err := c.locker.Lock(ctx, req.TitleID)
	if err != nil {
		return nil, fmt.Errorf("lock title %s: %w", req.TitleID, err)
	}
	defer unlock()

	// availability must be read under the lock, never reused from an earlier read
	avail, err := c.resolver.ComputeAvailable(ctx, req.TitleID)
	if err != nil {
		return nil, err
	}
	code, err := pickCode(avail, strings.TrimSpace(req.PreferredCode))
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	due := now.Add(c.LoanDuration())
	loan := &Loan{
		ID:         uuid.NewString(),
		TitleID:    req.TitleID,
		CopyCode:   code,
		BorrowerID: req.BorrowerID,
		Category:   req.Category,
		OpenedAt:   now,
		DueAt:      &due,
		Status:     StatusOpen,
	}
	if err := ledger.Create(ctx, loan); err != nil {
		return nil, fmt.Errorf("create loan: %w", err)
	}
	c.logger.Info("loan opened", "loan_id", loan.ID, "title_id", loan.TitleID,
		"copy_code", loan.CopyCode, "borrower_id", loan.BorrowerID, "category", string(loan.Category))
	return loan, nil
}

func pickCode(avail CodeSet, preferred string) (string, error) {
	if preferred != "" {
		if !avail.Contains(preferred) {
			return "", ErrNoAvailableCopy
		}
		return preferred, nil
	}
	code, ok := avail.First()
	if !ok {
		return "", ErrNoAvailableCopy
	}
	return code, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case CodeOf(err) == ErrNoAvailableCopy.Code:
		return OutcomeNoCopy
	case KindOf(err) != KindUnknown:
		return OutcomeRejected
	}
	return OutcomeSystemError
}

// Item is one title of a multi-title checkout.
type Item struct {
	TitleID       string `json:"titleId"`
	PreferredCode string `json:"preferredCode,omitempty"`
}

// ItemFailure is the error of one item of a batch.
type ItemFailure struct {
	Item Item
	Err  error
}

// BatchResult reports a multi-title checkout. Created loans stay open even
// when later items fail.
type BatchResult struct {
	Loans    []Loan
	Failures []ItemFailure
}

func (b BatchResult) Partial() bool  { return len(b.Loans) > 0 && len(b.Failures) > 0 }
func (b BatchResult) Complete() bool { return len(b.Failures) == 0 }

// CheckoutMany runs independent single-title checkouts in order. It stops
// early only when ctx is done; remaining items are reported as failures.
func (c *Coordinator) CheckoutMany(ctx context.Context, borrowerID string, cat Category, items []Item) BatchResult {
	var res BatchResult
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			res.Failures = append(res.Failures, ItemFailure{Item: it, Err: err})
			continue
		}
		loan, err := c.Checkout(ctx, Request{
			TitleID:       it.TitleID,
			BorrowerID:    borrowerID,
			Category:      cat,
			PreferredCode: it.PreferredCode,
		})
		if err != nil {
			res.Failures = append(res.Failures, ItemFailure{Item: it, Err: err})
			continue
		}
		res.Loans = append(res.Loans, *loan)
	}
	if res.Partial() {
		c.logger.Warn("multi-title checkout partially succeeded",
			"borrower_id", borrowerID, "created", len(res.Loans), "failed", len(res.Failures))
	}
	return res
}
