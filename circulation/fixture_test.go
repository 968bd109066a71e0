package circulation_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"school_library/circulation"
	"school_library/locks"
	"school_library/memstore"
)

type fixture struct {
	catalog   *memstore.Catalog
	students  *memstore.Ledger
	staff     *memstore.Ledger
	borrowers *memstore.Registry
	clock     *fakeClock
	metrics   *countingMetrics

	resolver *circulation.Resolver
	checkout *circulation.Coordinator
	loans    *circulation.Lifecycle
	editor   *circulation.CatalogEditor
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingMetrics struct {
	mu        sync.Mutex
	outcomes  map[string]int
	conflicts int
}

func (m *countingMetrics) CheckoutOutcome(_ circulation.Category, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

func (m *countingMetrics) IntegrityConflict(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		catalog:   memstore.NewCatalog(),
		students:  memstore.NewLedger(circulation.Student),
		staff:     memstore.NewLedger(circulation.Staff),
		borrowers: memstore.NewRegistry(),
		clock:     &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		metrics:   &countingMetrics{outcomes: map[string]int{}},
	}
	opts := []circulation.Option{
		circulation.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		circulation.WithClock(f.clock.Now),
		circulation.WithMetrics(f.metrics),
	}
	ledgers := circulation.Ledgers{f.students, f.staff}
	locker := locks.NewKeyed()
	f.resolver = circulation.NewResolver(f.catalog, ledgers, opts...)
	f.checkout = circulation.NewCoordinator(f.resolver, ledgers, f.borrowers, locker, 14, opts...)
	f.loans = circulation.NewLifecycle(ledgers, opts...)
	f.editor = circulation.NewCatalogEditor(f.catalog, ledgers, locker, opts...)
	return f
}

func (f *fixture) title(id string, codes ...string) {
	f.catalog.PutTitle(circulation.Title{ID: id, DisplayName: "Title " + id, Codes: circulation.NewCodeSet(codes...)})
}

func (f *fixture) student(id string) {
	f.borrowers.Put(circulation.Borrower{ID: id, Name: "Student " + id, Category: circulation.Student})
}

func (f *fixture) staffMember(id string) {
	f.borrowers.Put(circulation.Borrower{ID: id, Name: "Staff " + id, Category: circulation.Staff})
}

// seed writes a loan straight into a ledger, bypassing the coordinator.
func (f *fixture) seed(t *testing.T, ledger *memstore.Ledger, id, titleID, code string, openedAt time.Time) {
	t.Helper()
	due := openedAt.Add(14 * 24 * time.Hour)
	require.NoError(t, ledger.Create(context.Background(), &circulation.Loan{
		ID:         id,
		TitleID:    titleID,
		CopyCode:   code,
		BorrowerID: "seeded",
		OpenedAt:   openedAt,
		DueAt:      &due,
		Status:     circulation.StatusOpen,
	}))
}
