package db

import (
	"context"
	"errors"
	"strings"

	"school_library/circulation"
	"school_library/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repo struct{ DB *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{DB: db} }

func (r *Repo) Students() *StudentLedger { return &StudentLedger{db: r.DB} }
func (r *Repo) Staff() *StaffLedger      { return &StaffLedger{db: r.DB} }

// Borrowers

func (r *Repo) CreateBorrower(ctx context.Context, cat circulation.Category, name string) (*circulation.Borrower, error) {
	b := &circulation.Borrower{ID: uuid.NewString(), Name: strings.TrimSpace(name), Category: cat}
	var rec any
	switch cat {
	case circulation.Student:
		rec = &models.Student{ID: b.ID, Name: b.Name}
	case circulation.Staff:
		rec = &models.StaffMember{ID: b.ID, Name: b.Name}
	default:
		return nil, circulation.ErrUnknownCategory
	}
	if err := r.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Repo) BorrowerExists(ctx context.Context, cat circulation.Category, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	var n int64
	q := r.DB.WithContext(ctx)
	switch cat {
	case circulation.Student:
		q = q.Model(&models.Student{})
	case circulation.Staff:
		q = q.Model(&models.StaffMember{})
	default:
		return false, circulation.ErrUnknownCategory
	}
	if err := q.Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repo) ListBorrowers(ctx context.Context, cat circulation.Category) ([]circulation.Borrower, error) {
	var out []circulation.Borrower
	switch cat {
	case circulation.Student:
		var rows []models.Student
		if err := r.DB.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, s := range rows {
			out = append(out, circulation.Borrower{ID: s.ID, Name: s.Name, Category: cat})
		}
	case circulation.Staff:
		var rows []models.StaffMember
		if err := r.DB.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, s := range rows {
			out = append(out, circulation.Borrower{ID: s.ID, Name: s.Name, Category: cat})
		}
	default:
		return nil, circulation.ErrUnknownCategory
	}
	return out, nil
}

func notFound(err error, domainErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainErr
	}
	return err
}
