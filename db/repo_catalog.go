package db

import (
	"context"
	"strings"

	"school_library/circulation"
	"school_library/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func toTitle(t models.Title) circulation.Title {
	codes := make([]string, 0, len(t.Copies))
	for _, c := range t.Copies {
		codes = append(codes, c.Code)
	}
	return circulation.Title{ID: t.ID, DisplayName: t.DisplayName, Codes: circulation.NewCodeSet(codes...)}
}

// CreateTitle inserts the title and its initial copies in one transaction.
func (r *Repo) CreateTitle(ctx context.Context, displayName string, codes []string) (*circulation.Title, error) {
	set := circulation.NewCodeSet(codes...)
	t := models.Title{ID: uuid.NewString(), DisplayName: strings.TrimSpace(displayName)}
	for _, c := range set.Sorted() {
		t.Copies = append(t.Copies, models.TitleCopy{TitleID: t.ID, Code: c})
	}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&t).Error
	})
	if err != nil {
		return nil, err
	}
	out := toTitle(t)
	return &out, nil
}

func (r *Repo) GetTitle(ctx context.Context, titleID string) (*circulation.Title, error) {
	if _, err := uuid.Parse(titleID); err != nil {
		return nil, circulation.ErrTitleNotFound
	}
	var t models.Title
	if err := r.DB.WithContext(ctx).Preload("Copies").First(&t, "id = ?", titleID).Error; err != nil {
		return nil, notFound(err, circulation.ErrTitleNotFound)
	}
	out := toTitle(t)
	return &out, nil
}

func (r *Repo) ListTitles(ctx context.Context) ([]circulation.Title, error) {
	var rows []models.Title
	if err := r.DB.WithContext(ctx).Preload("Copies").Order("display_name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]circulation.Title, 0, len(rows))
	for _, t := range rows {
		out = append(out, toTitle(t))
	}
	return out, nil
}

func (r *Repo) AddCode(ctx context.Context, titleID, code string) error {
	var n int64
	db := r.DB.WithContext(ctx)
	if err := db.Model(&models.Title{}).Where("id = ?", titleID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return circulation.ErrTitleNotFound
	}
	if err := db.Model(&models.TitleCopy{}).Where("title_id = ? AND code = ?", titleID, code).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return circulation.ErrCodeExists
	}
	return db.Create(&models.TitleCopy{TitleID: titleID, Code: code}).Error
}

func (r *Repo) RemoveCode(ctx context.Context, titleID, code string) error {
	res := r.DB.WithContext(ctx).
		Where("title_id = ? AND code = ?", titleID, code).
		Delete(&models.TitleCopy{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return circulation.ErrUnknownCode
	}
	return nil
}
