// Package memstore keeps catalog, ledgers and borrower registries in memory.
// It backs STORE_DRIVER=memory and the package tests.
package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"school_library/circulation"
)

var ErrDuplicateLoan = errors.New("loan id already exists")

// Catalog

type Catalog struct {
	mu     sync.RWMutex
	titles map[string]circulation.Title
}

func NewCatalog() *Catalog { return &Catalog{titles: make(map[string]circulation.Title)} }

// PutTitle inserts or replaces a title.
func (c *Catalog) PutTitle(t circulation.Title) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t.Codes = t.Codes.Clone()
	c.titles[t.ID] = t
}

func (c *Catalog) CreateTitle(_ context.Context, displayName string, codes []string) (*circulation.Title, error) {
	t := circulation.Title{ID: uuid.NewString(), DisplayName: strings.TrimSpace(displayName), Codes: circulation.NewCodeSet(codes...)}
	c.PutTitle(t)
	return &t, nil
}

func (c *Catalog) GetTitle(_ context.Context, titleID string) (*circulation.Title, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.titles[titleID]
	if !ok {
		return nil, circulation.ErrTitleNotFound
	}
	t.Codes = t.Codes.Clone()
	return &t, nil
}

func (c *Catalog) ListTitles(_ context.Context) ([]circulation.Title, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]circulation.Title, 0, len(c.titles))
	for _, t := range c.titles {
		t.Codes = t.Codes.Clone()
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (c *Catalog) AddCode(_ context.Context, titleID, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.titles[titleID]
	if !ok {
		return circulation.ErrTitleNotFound
	}
	if !t.Codes.Add(code) {
		return circulation.ErrCodeExists
	}
	return nil
}

func (c *Catalog) RemoveCode(_ context.Context, titleID, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.titles[titleID]
	if !ok {
		return circulation.ErrTitleNotFound
	}
	if !t.Codes.Remove(code) {
		return circulation.ErrUnknownCode
	}
	return nil
}

// Ledger

type Ledger struct {
	cat   circulation.Category
	mu    sync.RWMutex
	loans map[string]circulation.Loan
}

func NewLedger(cat circulation.Category) *Ledger {
	return &Ledger{cat: cat, loans: make(map[string]circulation.Loan)}
}

func (l *Ledger) Category() circulation.Category { return l.cat }

func (l *Ledger) Create(_ context.Context, loan *circulation.Loan) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.loans[loan.ID]; ok {
		return ErrDuplicateLoan
	}
	cp := *loan
	cp.Category = l.cat
	l.loans[loan.ID] = cp
	return nil
}

func (l *Ledger) Get(_ context.Context, loanID string) (*circulation.Loan, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	loan, ok := l.loans[loanID]
	if !ok {
		return nil, circulation.ErrLoanNotFound
	}
	return &loan, nil
}

func (l *Ledger) ListOpen(ctx context.Context, f circulation.LoanFilter) ([]circulation.Loan, error) {
	return l.List(ctx, f, circulation.StatusOpen)
}

// List returns loans matching f and status (empty status matches all),
// newest first.
func (l *Ledger) List(_ context.Context, f circulation.LoanFilter, status circulation.Status) ([]circulation.Loan, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []circulation.Loan
	for _, loan := range l.loans {
		if f.TitleID != "" && loan.TitleID != f.TitleID {
			continue
		}
		if f.BorrowerID != "" && loan.BorrowerID != f.BorrowerID {
			continue
		}
		if status != "" && loan.Status != status {
			continue
		}
		out = append(out, loan)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	return out, nil
}

func (l *Ledger) UpdateOpen(_ context.Context, loanID string, ch circulation.Change) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	loan, ok := l.loans[loanID]
	if !ok {
		return circulation.ErrLoanNotFound
	}
	if !loan.IsOpen() {
		return circulation.ErrNotOpen
	}
	at := ch.At
	switch ch.To {
	case circulation.StatusReturned:
		loan.Status = circulation.StatusReturned
		loan.ReturnedAt = &at
		loan.Completion = ch.Completion
	case circulation.StatusCancelled:
		loan.Status = circulation.StatusCancelled
	case circulation.StatusOpen:
		loan.DueAt = ch.DueAt
		loan.RenewedAt = &at
	}
	l.loans[loanID] = loan
	return nil
}

// PurgeReturned deletes returned loans closed before the cut-off.
func (l *Ledger) PurgeReturned(_ context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for id, loan := range l.loans {
		if loan.Status == circulation.StatusReturned && loan.ReturnedAt != nil && loan.ReturnedAt.Before(before) {
			delete(l.loans, id)
			n++
		}
	}
	return n, nil
}

// Registry

type Registry struct {
	mu      sync.RWMutex
	members map[circulation.Category]map[string]circulation.Borrower
}

func NewRegistry() *Registry {
	return &Registry{members: map[circulation.Category]map[string]circulation.Borrower{
		circulation.Student: {},
		circulation.Staff:   {},
	}}
}

// Put registers b under its own id.
func (r *Registry) Put(b circulation.Borrower) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[b.Category] == nil {
		r.members[b.Category] = map[string]circulation.Borrower{}
	}
	r.members[b.Category][b.ID] = b
}

func (r *Registry) CreateBorrower(_ context.Context, cat circulation.Category, name string) (*circulation.Borrower, error) {
	if cat != circulation.Student && cat != circulation.Staff {
		return nil, circulation.ErrUnknownCategory
	}
	b := circulation.Borrower{ID: uuid.NewString(), Name: strings.TrimSpace(name), Category: cat}
	r.Put(b)
	return &b, nil
}

func (r *Registry) BorrowerExists(_ context.Context, cat circulation.Category, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[cat][id]
	return ok, nil
}

func (r *Registry) ListBorrowers(_ context.Context, cat circulation.Category) ([]circulation.Borrower, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]circulation.Borrower, 0, len(r.members[cat]))
	for _, b := range r.members[cat] {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
