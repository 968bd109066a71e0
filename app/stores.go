package app

import (
	"context"
	"time"

	"school_library/circulation"
	"school_library/db"
	"school_library/memstore"

	"gorm.io/gorm"
)

// CatalogStore is the title/copy record store.
type CatalogStore interface {
	circulation.CatalogWriter
	CreateTitle(ctx context.Context, displayName string, codes []string) (*circulation.Title, error)
	ListTitles(ctx context.Context) ([]circulation.Title, error)
}

// LedgerStore is a loan ledger plus the history reads handlers need.
type LedgerStore interface {
	circulation.Ledger
	List(ctx context.Context, f circulation.LoanFilter, status circulation.Status) ([]circulation.Loan, error)
	PurgeReturned(ctx context.Context, before time.Time) (int64, error)
}

// BorrowerStore is the student and staff registry.
type BorrowerStore interface {
	circulation.Borrowers
	CreateBorrower(ctx context.Context, cat circulation.Category, name string) (*circulation.Borrower, error)
	ListBorrowers(ctx context.Context, cat circulation.Category) ([]circulation.Borrower, error)
}

type Stores struct {
	Catalog   CatalogStore
	Students  LedgerStore
	Staff     LedgerStore
	Borrowers BorrowerStore
}

// Ledgers lists every ledger; availability reads all of them.
func (s Stores) Ledgers() circulation.Ledgers {
	return circulation.Ledgers{s.Students, s.Staff}
}

// Ledger returns the history-capable ledger of cat.
func (s Stores) Ledger(cat circulation.Category) (LedgerStore, error) {
	switch cat {
	case circulation.Student:
		return s.Students, nil
	case circulation.Staff:
		return s.Staff, nil
	}
	return nil, circulation.ErrUnknownCategory
}

func PostgresStores(conn *gorm.DB) Stores {
	repo := db.NewRepo(conn)
	return Stores{Catalog: repo, Students: repo.Students(), Staff: repo.Staff(), Borrowers: repo}
}

func MemoryStores() Stores {
	return Stores{
		Catalog:   memstore.NewCatalog(),
		Students:  memstore.NewLedger(circulation.Student),
		Staff:     memstore.NewLedger(circulation.Staff),
		Borrowers: memstore.NewRegistry(),
	}
}
