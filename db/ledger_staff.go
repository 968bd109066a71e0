package db

import (
	"context"
	"time"

	"school_library/circulation"
	"school_library/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// staff rows without a status are open until a return is recorded
const staffOpenCond = "returned_at IS NULL AND (status IS NULL OR status = 'open')"

// StaffLedger maps lib_staff_loans, including legacy rows with no status.
type StaffLedger struct{ db *gorm.DB }

func (l *StaffLedger) Category() circulation.Category { return circulation.Staff }

func staffStatus(m models.StaffLoan) circulation.Status {
	if m.Status != nil && *m.Status != "" {
		return circulation.Status(*m.Status)
	}
	if m.ReturnedAt != nil {
		return circulation.StatusReturned
	}
	return circulation.StatusOpen
}

func staffToLoan(m models.StaffLoan) circulation.Loan {
	out := circulation.Loan{
		ID:         m.ID,
		TitleID:    m.TitleID,
		CopyCode:   m.CopyCode,
		BorrowerID: m.StaffID,
		Category:   circulation.Staff,
		OpenedAt:   m.OpenedAt,
		DueAt:      m.DueAt,
		Status:     staffStatus(m),
		ReturnedAt: m.ReturnedAt,
		RenewedAt:  m.RenewedAt,
	}
	// a legacy row may carry a return timestamp next to a stale "open"
	if out.Status == circulation.StatusOpen && m.ReturnedAt != nil {
		out.Status = circulation.StatusReturned
	}
	if m.Finished || m.Rating != 0 || m.Comment != "" {
		out.Completion = &circulation.Completion{Finished: m.Finished, Rating: m.Rating, Comment: m.Comment}
	}
	return out
}

func (l *StaffLedger) Create(ctx context.Context, loan *circulation.Loan) error {
	open := string(circulation.StatusOpen)
	rec := models.StaffLoan{
		ID:       loan.ID,
		TitleID:  loan.TitleID,
		CopyCode: loan.CopyCode,
		StaffID:  loan.BorrowerID,
		OpenedAt: loan.OpenedAt,
		DueAt:    loan.DueAt,
		Status:   &open,
	}
	return l.db.WithContext(ctx).Create(&rec).Error
}

func (l *StaffLedger) Get(ctx context.Context, loanID string) (*circulation.Loan, error) {
	if _, err := uuid.Parse(loanID); err != nil {
		return nil, circulation.ErrLoanNotFound
	}
	var m models.StaffLoan
	if err := l.db.WithContext(ctx).First(&m, "id = ?", loanID).Error; err != nil {
		return nil, notFound(err, circulation.ErrLoanNotFound)
	}
	out := staffToLoan(m)
	return &out, nil
}

func (l *StaffLedger) ListOpen(ctx context.Context, f circulation.LoanFilter) ([]circulation.Loan, error) {
	return l.List(ctx, f, circulation.StatusOpen)
}

func (l *StaffLedger) List(ctx context.Context, f circulation.LoanFilter, status circulation.Status) ([]circulation.Loan, error) {
	q := l.db.WithContext(ctx).Model(&models.StaffLoan{}).Order("opened_at DESC")
	if f.TitleID != "" {
		q = q.Where("title_id = ?", f.TitleID)
	}
	if f.BorrowerID != "" {
		q = q.Where("staff_id = ?", f.BorrowerID)
	}
	switch status {
	case circulation.StatusOpen:
		q = q.Where(staffOpenCond)
	case circulation.StatusReturned:
		q = q.Where("status = 'returned' OR (returned_at IS NOT NULL AND (status IS NULL OR status = 'open'))")
	case circulation.StatusCancelled:
		q = q.Where("status = 'cancelled'")
	}
	var rows []models.StaffLoan
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]circulation.Loan, 0, len(rows))
	for _, m := range rows {
		out = append(out, staffToLoan(m))
	}
	return out, nil
}

func (l *StaffLedger) UpdateOpen(ctx context.Context, loanID string, ch circulation.Change) error {
	res := l.db.WithContext(ctx).Model(&models.StaffLoan{}).
		Where("id = ?", loanID).
		Where(staffOpenCond).
		Updates(changeColumns(ch))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := l.Get(ctx, loanID); err != nil {
			return err
		}
		return circulation.ErrNotOpen
	}
	return nil
}

func (l *StaffLedger) PurgeReturned(ctx context.Context, before time.Time) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("returned_at IS NOT NULL AND returned_at < ? AND (status IS NULL OR status <> 'cancelled')", before).
		Delete(&models.StaffLoan{})
	return res.RowsAffected, res.Error
}
