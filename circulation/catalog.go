package circulation

import (
	"context"
	"fmt"
	"strings"
)

// CatalogEditor changes a title's copy manifest. Edits take the same per-title
// lock as checkout so a copy cannot be removed while it is being lent.
type CatalogEditor struct {
	catalog CatalogWriter
	ledgers Ledgers
	locker  Locker
	settings
}

func NewCatalogEditor(catalog CatalogWriter, ledgers Ledgers, locker Locker, opts ...Option) *CatalogEditor {
	return &CatalogEditor{catalog: catalog, ledgers: ledgers, locker: locker, settings: applyOptions(opts)}
}

func (e *CatalogEditor) AddCode(ctx context.Context, titleID, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrEmptyCode
	}
	unlock, err := e.locker.Lock(ctx, titleID)
	if err != nil {
		return fmt.Errorf("lock title %s: %w", titleID, err)
	}
	defer unlock()

	title, err := e.catalog.GetTitle(ctx, titleID)
	if err != nil {
		return err
	}
	if title.Codes.Contains(code) {
		return ErrCodeExists
	}
	return e.catalog.AddCode(ctx, titleID, code)
}

// RemoveCode fails with ErrCodeInUse while an open loan in any ledger
// references the code.
func (e *CatalogEditor) RemoveCode(ctx context.Context, titleID, code string) error {
	code = strings.TrimSpace(code)
	unlock, err := e.locker.Lock(ctx, titleID)
	if err != nil {
		return fmt.Errorf("lock title %s: %w", titleID, err)
	}
	defer unlock()

	title, err := e.catalog.GetTitle(ctx, titleID)
	if err != nil {
		return err
	}
	if !title.Codes.Contains(code) {
		return ErrUnknownCode
	}
	for _, ledger := range e.ledgers {
		loans, err := ledger.ListOpen(ctx, LoanFilter{TitleID: titleID})
		if err != nil {
			return fmt.Errorf("list open %s loans: %w", ledger.Category(), err)
		}
		for _, l := range loans {
			if l.IsOpen() && l.CopyCode == code {
				return ErrCodeInUse
			}
		}
	}
	if err := e.catalog.RemoveCode(ctx, titleID, code); err != nil {
		return err
	}
	e.logger.Info("copy code removed", "title_id", titleID, "copy_code", code)
	return nil
}
