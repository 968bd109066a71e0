package db

import (
	"context"
	"time"

	"school_library/circulation"
	"school_library/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StudentLedger maps lib_student_loans, whose rows always carry a status.
type StudentLedger struct{ db *gorm.DB }

func (l *StudentLedger) Category() circulation.Category { return circulation.Student }

func studentToLoan(m models.StudentLoan) circulation.Loan {
	due := m.DueAt
	out := circulation.Loan{
		ID:         m.ID,
		TitleID:    m.TitleID,
		CopyCode:   m.CopyCode,
		BorrowerID: m.StudentID,
		Category:   circulation.Student,
		OpenedAt:   m.OpenedAt,
		DueAt:      &due,
		Status:     circulation.Status(m.Status),
		ReturnedAt: m.ReturnedAt,
		RenewedAt:  m.RenewedAt,
	}
	if m.Finished || m.Rating != 0 || m.Comment != "" {
		out.Completion = &circulation.Completion{Finished: m.Finished, Rating: m.Rating, Comment: m.Comment}
	}
	return out
}

func (l *StudentLedger) Create(ctx context.Context, loan *circulation.Loan) error {
	rec := models.StudentLoan{
		ID:        loan.ID,
		TitleID:   loan.TitleID,
		CopyCode:  loan.CopyCode,
		StudentID: loan.BorrowerID,
		OpenedAt:  loan.OpenedAt,
		Status:    string(circulation.StatusOpen),
	}
	if loan.DueAt != nil {
		rec.DueAt = *loan.DueAt
	}
	return l.db.WithContext(ctx).Create(&rec).Error
}

func (l *StudentLedger) Get(ctx context.Context, loanID string) (*circulation.Loan, error) {
	if _, err := uuid.Parse(loanID); err != nil {
		return nil, circulation.ErrLoanNotFound
	}
	var m models.StudentLoan
	if err := l.db.WithContext(ctx).First(&m, "id = ?", loanID).Error; err != nil {
		return nil, notFound(err, circulation.ErrLoanNotFound)
	}
	out := studentToLoan(m)
	return &out, nil
}

func (l *StudentLedger) ListOpen(ctx context.Context, f circulation.LoanFilter) ([]circulation.Loan, error) {
	return l.List(ctx, f, circulation.StatusOpen)
}

func (l *StudentLedger) List(ctx context.Context, f circulation.LoanFilter, status circulation.Status) ([]circulation.Loan, error) {
	q := l.db.WithContext(ctx).Model(&models.StudentLoan{}).Order("opened_at DESC")
	if f.TitleID != "" {
		q = q.Where("title_id = ?", f.TitleID)
	}
	if f.BorrowerID != "" {
		q = q.Where("student_id = ?", f.BorrowerID)
	}
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var rows []models.StudentLoan
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]circulation.Loan, 0, len(rows))
	for _, m := range rows {
		out = append(out, studentToLoan(m))
	}
	return out, nil
}

// UpdateOpen is a conditional write: it only touches a row still open.
func (l *StudentLedger) UpdateOpen(ctx context.Context, loanID string, ch circulation.Change) error {
	res := l.db.WithContext(ctx).Model(&models.StudentLoan{}).
		Where("id = ? AND status = ?", loanID, string(circulation.StatusOpen)).
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

func (l *StudentLedger) PurgeReturned(ctx context.Context, before time.Time) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("status = ? AND returned_at < ?", string(circulation.StatusReturned), before).
		Delete(&models.StudentLoan{})
	return res.RowsAffected, res.Error
}

func changeColumns(ch circulation.Change) map[string]any {
	cols := map[string]any{}
	switch ch.To {
	case circulation.StatusReturned:
		cols["status"] = string(circulation.StatusReturned)
		cols["returned_at"] = ch.At
		if c := ch.Completion; c != nil {
			cols["finished"] = c.Finished
			cols["rating"] = c.Rating
			cols["comment"] = c.Comment
		}
	case circulation.StatusCancelled:
		cols["status"] = string(circulation.StatusCancelled)
	case circulation.StatusOpen:
		cols["status"] = string(circulation.StatusOpen)
		cols["due_at"] = *ch.DueAt
		cols["renewed_at"] = ch.At
	}
	return cols
}
