package circulation

import (
	"context"
	"time"
)

// Catalog reads titles and their copy manifests.
type Catalog interface {
	// GetTitle returns ErrTitleNotFound when the title does not exist.
	GetTitle(ctx context.Context, titleID string) (*Title, error)
}

// CatalogWriter applies explicit copy-manifest edits.
type CatalogWriter interface {
	Catalog
	AddCode(ctx context.Context, titleID, code string) error
	RemoveCode(ctx context.Context, titleID, code string) error
}

// LoanFilter narrows ListOpen. Empty fields match everything.
type LoanFilter struct {
	TitleID    string
	BorrowerID string
}

// Change is a single-record transition applied to an open loan.
// To=StatusOpen with DueAt set is a renewal.
type Change struct {
	To         Status
	At         time.Time
	DueAt      *time.Time
	Completion *Completion
}

// Ledger stores the loans of one borrower category. Implementations map their
// native records to the common Status tag before returning them.
type Ledger interface {
	Category() Category
	ListOpen(ctx context.Context, f LoanFilter) ([]Loan, error)
	// Get returns ErrLoanNotFound when the loan does not exist.
	Get(ctx context.Context, loanID string) (*Loan, error)
	Create(ctx context.Context, l *Loan) error
	// UpdateOpen applies ch only if the loan is still open, otherwise it
	// returns ErrNotOpen (or ErrLoanNotFound).
	UpdateOpen(ctx context.Context, loanID string, ch Change) error
}

// Borrowers answers registry membership for both categories.
type Borrowers interface {
	BorrowerExists(ctx context.Context, cat Category, borrowerID string) (bool, error)
}

// Locker provides mutual exclusion keyed by a string.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Metrics receives circulation outcomes. A nil Metrics is ignored.
type Metrics interface {
	CheckoutOutcome(cat Category, outcome string)
	IntegrityConflict(titleID string)
}

// Clock returns the current time.
type Clock func() time.Time

// Ledgers is the set of all loan ledgers, one per category.
type Ledgers []Ledger

// For returns the ledger of cat.
func (ls Ledgers) For(cat Category) (Ledger, error) {
	for _, l := range ls {
		if l.Category() == cat {
			return l, nil
		}
	}
	return nil, ErrUnknownCategory
}

type noMetrics struct{}

func (noMetrics) CheckoutOutcome(Category, string) {}
func (noMetrics) IntegrityConflict(string)         {}
