package circulation

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Conflict records more than one open loan on the same copy.
type Conflict struct {
	TitleID  string
	CopyCode string
	Loans    []Loan // oldest first
}

// Snapshot is the derived availability of one title at read time.
type Snapshot struct {
	TitleID   string
	Codes     CodeSet
	Available CodeSet
	Holders   map[string]Loan // code -> loan holding it
	Conflicts []Conflict
}

// Resolver derives availability from the catalog and every ledger.
// It keeps no cache: each call reads current ledger state.
type Resolver struct {
	catalog Catalog
	ledgers Ledgers
	settings
}

func NewResolver(catalog Catalog, ledgers Ledgers, opts ...Option) *Resolver {
	return &Resolver{catalog: catalog, ledgers: ledgers, settings: applyOptions(opts)}
}

// ComputeAvailable returns the codes of titleID not held by any open loan.
func (r *Resolver) ComputeAvailable(ctx context.Context, titleID string) (CodeSet, error) {
	s, err := r.Snapshot(ctx, titleID)
	if err != nil {
		return nil, err
	}
	return s.Available, nil
}

// Snapshot computes availability together with the current holders.
func (r *Resolver) Snapshot(ctx context.Context, titleID string) (Snapshot, error) {
	title, err := r.catalog.GetTitle(ctx, titleID)
	if err != nil {
		return Snapshot{}, err
	}
	codes := title.Codes
	if codes == nil {
		codes = CodeSet{}
	}

	byCode := make(map[string][]Loan)
	for _, ledger := range r.ledgers {
		loans, err := ledger.ListOpen(ctx, LoanFilter{TitleID: titleID})
		if err != nil {
			return Snapshot{}, fmt.Errorf("list open %s loans: %w", ledger.Category(), err)
		}
		for _, l := range loans {
			if !l.IsOpen() || l.TitleID != titleID {
				continue
			}
			byCode[l.CopyCode] = append(byCode[l.CopyCode], l)
		}
	}

	snap := Snapshot{
		TitleID: titleID,
		Codes:   codes,
		Holders: make(map[string]Loan, len(byCode)),
	}
	held := make(CodeSet, len(byCode))
	for code, loans := range byCode {
		held[code] = struct{}{}
		if len(loans) > 1 {
			sort.SliceStable(loans, func(i, j int) bool { return loans[i].OpenedAt.Before(loans[j].OpenedAt) })
			snap.Conflicts = append(snap.Conflicts, Conflict{TitleID: titleID, CopyCode: code, Loans: loans})
			r.logger.Warn("data integrity: several open loans on one copy",
				"title_id", titleID, "copy_code", code, "open_loans", len(loans), "excluded_loan_id", loans[0].ID)
			r.metrics.IntegrityConflict(titleID)
		}
		// the oldest duplicate is excluded; the newest open loan holds the copy
		snap.Holders[code] = loans[len(loans)-1]
	}
	sort.Slice(snap.Conflicts, func(i, j int) bool { return snap.Conflicts[i].CopyCode < snap.Conflicts[j].CopyCode })
	snap.Available = codes.Minus(held)
	return snap, nil
}

// Eligible returns the subset of titleIDs with at least one available copy,
// in input order. Unknown titles are skipped.
func (r *Resolver) Eligible(ctx context.Context, titleIDs []string) ([]string, error) {
	ok := make([]bool, len(titleIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, id := range titleIDs {
		g.Go(func() error {
			avail, err := r.ComputeAvailable(gctx, id)
			if KindOf(err) == KindNotFound {
				return nil
			}
			if err != nil {
				return err
			}
			ok[i] = avail.Len() > 0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(titleIDs))
	for i, id := range titleIDs {
		if ok[i] {
			out = append(out, id)
		}
	}
	return out, nil
}
