package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"school_library/circulation"
	"school_library/locks"
	"school_library/models"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "library.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewRepo(conn)
}

func openLoan(titleID, code, borrowerID string, openedAt time.Time) *circulation.Loan {
	due := openedAt.Add(14 * 24 * time.Hour)
	return &circulation.Loan{
		ID:         uuid.NewString(),
		TitleID:    titleID,
		CopyCode:   code,
		BorrowerID: borrowerID,
		OpenedAt:   openedAt,
		DueAt:      &due,
		Status:     circulation.StatusOpen,
	}
}

// legacyStaffLoan inserts a row shaped like data written before staff loans
// had a status column.
func legacyStaffLoan(t *testing.T, r *Repo, titleID, code string, returnedAt *time.Time) string {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, r.DB.Create(&models.StaffLoan{
		ID:         id,
		TitleID:    titleID,
		CopyCode:   code,
		StaffID:    uuid.NewString(),
		OpenedAt:   time.Now().UTC().Add(-90 * 24 * time.Hour),
		ReturnedAt: returnedAt,
	}).Error)
	return id
}

func TestCatalogRepo(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	title, err := r.CreateTitle(ctx, "  Matilda ", []string{"M-2", "M-1", "M-1", ""})
	require.NoError(t, err)
	assert.Equal(t, "Matilda", title.DisplayName)

	got, err := r.GetTitle(ctx, title.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"M-1", "M-2"}, got.Codes.Sorted())

	require.NoError(t, r.AddCode(ctx, title.ID, "M-3"))
	assert.ErrorIs(t, r.AddCode(ctx, title.ID, "M-3"), circulation.ErrCodeExists)
	assert.ErrorIs(t, r.AddCode(ctx, uuid.NewString(), "X"), circulation.ErrTitleNotFound)
	require.NoError(t, r.RemoveCode(ctx, title.ID, "M-1"))
	assert.ErrorIs(t, r.RemoveCode(ctx, title.ID, "M-1"), circulation.ErrUnknownCode)

	got, err = r.GetTitle(ctx, title.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"M-2", "M-3"}, got.Codes.Sorted())

	_, err = r.GetTitle(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, circulation.ErrTitleNotFound)
	_, err = r.GetTitle(ctx, uuid.NewString())
	assert.ErrorIs(t, err, circulation.ErrTitleNotFound)

	_, err = r.CreateTitle(ctx, "Holes", nil)
	require.NoError(t, err)
	all, err := r.ListTitles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Holes", all[0].DisplayName)
	assert.Equal(t, 0, all[0].Codes.Len())
}

func TestBorrowerRegistry(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	s, err := r.CreateBorrower(ctx, circulation.Student, "Ada")
	require.NoError(t, err)
	m, err := r.CreateBorrower(ctx, circulation.Staff, "Grace")
	require.NoError(t, err)

	ok, err := r.BorrowerExists(ctx, circulation.Student, s.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.BorrowerExists(ctx, circulation.Staff, s.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = r.BorrowerExists(ctx, circulation.Staff, "bogus")
	require.NoError(t, err)
	assert.False(t, ok)

	staff, err := r.ListBorrowers(ctx, circulation.Staff)
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, m.ID, staff[0].ID)

	_, err = r.CreateBorrower(ctx, "visitor", "Nobody")
	assert.ErrorIs(t, err, circulation.ErrUnknownCategory)
}

func TestStudentLedgerConditionalWrites(t *testing.T) {
	r := newTestRepo(t)
	ledger := r.Students()
	ctx := context.Background()
	titleID := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Second)

	loan := openLoan(titleID, "A", uuid.NewString(), now)
	require.NoError(t, ledger.Create(ctx, loan))

	open, err := ledger.ListOpen(ctx, circulation.LoanFilter{TitleID: titleID})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "A", open[0].CopyCode)
	assert.Equal(t, circulation.Student, open[0].Category)

	ch := circulation.Change{To: circulation.StatusReturned, At: now, Completion: &circulation.Completion{Finished: true, Rating: 5}}
	require.NoError(t, ledger.UpdateOpen(ctx, loan.ID, ch))
	assert.ErrorIs(t, ledger.UpdateOpen(ctx, loan.ID, ch), circulation.ErrNotOpen)
	assert.ErrorIs(t, ledger.UpdateOpen(ctx, uuid.NewString(), ch), circulation.ErrLoanNotFound)

	got, err := ledger.Get(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.StatusReturned, got.Status)
	require.NotNil(t, got.Completion)
	assert.Equal(t, 5, got.Completion.Rating)

	open, err = ledger.ListOpen(ctx, circulation.LoanFilter{TitleID: titleID})
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestStudentLedgerAllowsOneOpenLoanPerCopy(t *testing.T) {
	r := newTestRepo(t)
	ledger := r.Students()
	ctx := context.Background()
	titleID := uuid.NewString()
	now := time.Now().UTC()

	first := openLoan(titleID, "A", uuid.NewString(), now)
	require.NoError(t, ledger.Create(ctx, first))
	assert.Error(t, ledger.Create(ctx, openLoan(titleID, "A", uuid.NewString(), now)))

	require.NoError(t, ledger.UpdateOpen(ctx, first.ID, circulation.Change{To: circulation.StatusCancelled, At: now}))
	assert.NoError(t, ledger.Create(ctx, openLoan(titleID, "A", uuid.NewString(), now)))
}

func TestStudentLedgerRenew(t *testing.T) {
	r := newTestRepo(t)
	ledger := r.Students()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	loan := openLoan(uuid.NewString(), "A", uuid.NewString(), now)
	require.NoError(t, ledger.Create(ctx, loan))
	newDue := now.Add(40 * 24 * time.Hour)

	require.NoError(t, ledger.UpdateOpen(ctx, loan.ID, circulation.Change{To: circulation.StatusOpen, At: now, DueAt: &newDue}))

	got, err := ledger.Get(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.StatusOpen, got.Status)
	assert.True(t, newDue.Equal(*got.DueAt))
	require.NotNil(t, got.RenewedAt)
}

func TestStaffLedgerTreatsMissingStatusAsOpen(t *testing.T) {
	r := newTestRepo(t)
	ledger := r.Staff()
	ctx := context.Background()
	titleID := uuid.NewString()
	returnedAt := time.Now().UTC().Add(-24 * time.Hour)

	openID := legacyStaffLoan(t, r, titleID, "A", nil)
	closedID := legacyStaffLoan(t, r, titleID, "B", &returnedAt)

	open, err := ledger.ListOpen(ctx, circulation.LoanFilter{TitleID: titleID})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, openID, open[0].ID)
	assert.Equal(t, circulation.StatusOpen, open[0].Status)
	assert.Nil(t, open[0].DueAt)

	closed, err := ledger.Get(ctx, closedID)
	require.NoError(t, err)
	assert.Equal(t, circulation.StatusReturned, closed.Status)
	assert.ErrorIs(t, ledger.UpdateOpen(ctx, closedID, circulation.Change{To: circulation.StatusCancelled, At: time.Now()}), circulation.ErrNotOpen)

	require.NoError(t, ledger.UpdateOpen(ctx, openID, circulation.Change{To: circulation.StatusReturned, At: time.Now().UTC()}))
	returned, err := ledger.List(ctx, circulation.LoanFilter{TitleID: titleID}, circulation.StatusReturned)
	require.NoError(t, err)
	assert.Len(t, returned, 2)
}

func TestPurgeReturned(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	titleID := uuid.NewString()
	old := now.Add(-400 * 24 * time.Hour)

	stale := openLoan(titleID, "A", uuid.NewString(), old)
	require.NoError(t, r.Students().Create(ctx, stale))
	require.NoError(t, r.Students().UpdateOpen(ctx, stale.ID, circulation.Change{To: circulation.StatusReturned, At: old}))
	recent := openLoan(titleID, "B", uuid.NewString(), now)
	require.NoError(t, r.Students().Create(ctx, recent))
	require.NoError(t, r.Students().UpdateOpen(ctx, recent.ID, circulation.Change{To: circulation.StatusReturned, At: now}))
	stillOpen := openLoan(titleID, "C", uuid.NewString(), old)
	require.NoError(t, r.Students().Create(ctx, stillOpen))
	legacyStaffLoan(t, r, titleID, "D", &old)

	cutoff := now.Add(-365 * 24 * time.Hour)
	n, err := r.Students().PurgeReturned(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = r.Staff().PurgeReturned(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = r.Students().Get(ctx, stale.ID)
	assert.ErrorIs(t, err, circulation.ErrLoanNotFound)
	_, err = r.Students().Get(ctx, stillOpen.ID)
	assert.NoError(t, err)
}

func TestCheckoutOverSQLRespectsLegacyStaffLoans(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	title, err := r.CreateTitle(ctx, "The Hobbit", []string{"H-1", "H-2"})
	require.NoError(t, err)
	student, err := r.CreateBorrower(ctx, circulation.Student, "Bilbo")
	require.NoError(t, err)
	legacyStaffLoan(t, r, title.ID, "H-1", nil)

	ledgers := circulation.Ledgers{r.Students(), r.Staff()}
	resolver := circulation.NewResolver(r, ledgers)
	coord := circulation.NewCoordinator(resolver, ledgers, r, locks.NewKeyed(), 14)
	req := circulation.Request{TitleID: title.ID, BorrowerID: student.ID, Category: circulation.Student}

	loan, err := coord.Checkout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "H-2", loan.CopyCode)

	_, err = coord.Checkout(ctx, req)
	assert.ErrorIs(t, err, circulation.ErrNoAvailableCopy)
}
