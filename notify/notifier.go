// Package notify derives the overdue-notification feed from open loans.
// Nothing is queued: every scan recomputes the feed from ledger state and a
// small per-user side-store holding read, deleted and first-seen metadata.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"school_library/circulation"
)

const (
	KindOverdue   = "overdue"
	overduePrefix = "overdue-"
	day           = 24 * time.Hour
)

// OverdueID is the stable notification id of a loan.
func OverdueID(loanID string) string { return overduePrefix + loanID }

// Notification is one feed entry.
type Notification struct {
	ID          string               `json:"id"`
	Kind        string               `json:"kind"`
	Title       string               `json:"title"`
	Message     string               `json:"message"`
	Read        bool                 `json:"read"`
	CreatedAt   time.Time            `json:"createdAt"`
	LoanID      string               `json:"loanId,omitempty"`
	TitleID     string               `json:"titleId,omitempty"`
	BorrowerID  string               `json:"borrowerId,omitempty"`
	Category    circulation.Category `json:"category,omitempty"`
	DueAt       *time.Time           `json:"dueAt,omitempty"`
	DaysOverdue int                  `json:"daysOverdue,omitempty"`
}

// Scope selects whose feed is computed. UserID owns the persisted metadata.
type Scope struct {
	UserID     string
	BorrowerID string                 // empty: every borrower
	Categories []circulation.Category // empty: every ledger
}

func (s Scope) includes(cat circulation.Category) bool {
	if len(s.Categories) == 0 {
		return true
	}
	for _, c := range s.Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// Source contributes notifications that are not derived from loans.
type Source interface {
	Notifications(ctx context.Context, scope Scope) ([]Notification, error)
}

type Notifier struct {
	ledgers      circulation.Ledgers
	catalog      circulation.Catalog
	meta         MetaStore
	sources      []Source
	now          circulation.Clock
	logger       circulation.Logger
	staffOverdue bool
}

type Option func(*Notifier)

func WithClock(c circulation.Clock) Option { return func(n *Notifier) { n.now = c } }

func WithLogger(l circulation.Logger) Option { return func(n *Notifier) { n.logger = l } }

// WithSources merges extra notification sources into every scan.
func WithSources(s ...Source) Option {
	return func(n *Notifier) { n.sources = append(n.sources, s...) }
}

// WithStaffOverdue toggles overdue notifications for staff loans. Staff
// records without a due date never produce one either way.
func WithStaffOverdue(on bool) Option { return func(n *Notifier) { n.staffOverdue = on } }

func New(ledgers circulation.Ledgers, catalog circulation.Catalog, meta MetaStore, opts ...Option) *Notifier {
	n := &Notifier{
		ledgers:      ledgers,
		catalog:      catalog,
		meta:         meta,
		now:          time.Now,
		logger:       slog.Default(),
		staffOverdue: true,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Scan recomputes the feed for scope, newest first. Safe to call at any rate:
// the only write is the first-seen backfill, which never overwrites.
func (n *Notifier) Scan(ctx context.Context, scope Scope) ([]Notification, error) {
	meta, err := n.meta.Load(ctx, scope.UserID)
	if err != nil {
		return nil, fmt.Errorf("load notification metadata: %w", err)
	}
	now := n.now().UTC()

	overdue, err := n.overdueLoans(ctx, scope, now)
	if err != nil {
		return nil, err
	}

	var missing []string
	kept := overdue[:0]
	for _, l := range overdue {
		id := OverdueID(l.ID)
		if meta.IsDeleted(id) {
			continue
		}
		kept = append(kept, l)
		if _, ok := meta.FirstSeen[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		stamped, err := n.meta.BackfillFirstSeen(ctx, scope.UserID, missing, now)
		if err != nil {
			return nil, fmt.Errorf("record first seen: %w", err)
		}
		for id, at := range stamped {
			meta.FirstSeen[id] = at
		}
	}

	names := make(map[string]string)
	feed := make([]Notification, 0, len(kept))
	for _, l := range kept {
		id := OverdueID(l.ID)
		name, err := n.titleName(ctx, names, l.TitleID)
		if err != nil {
			return nil, err
		}
		days := DaysOverdue(*l.DueAt, now)
		due := *l.DueAt
		feed = append(feed, Notification{
			ID:          id,
			Kind:        KindOverdue,
			Title:       "Overdue loan",
			Message:     fmt.Sprintf("%q (copy %s) is %d %s overdue", name, l.CopyCode, days, plural(days, "day")),
			Read:        meta.IsRead(id),
			CreatedAt:   meta.FirstSeen[id],
			LoanID:      l.ID,
			TitleID:     l.TitleID,
			BorrowerID:  l.BorrowerID,
			Category:    l.Category,
			DueAt:       &due,
			DaysOverdue: days,
		})
	}

	for _, src := range n.sources {
		extra, err := src.Notifications(ctx, scope)
		if err != nil {
			return nil, err
		}
		for _, x := range extra {
			if meta.IsDeleted(x.ID) {
				continue
			}
			x.Read = meta.IsRead(x.ID)
			feed = append(feed, x)
		}
	}

	SortNewestFirst(feed)
	return feed, nil
}

func (n *Notifier) overdueLoans(ctx context.Context, scope Scope, now time.Time) ([]circulation.Loan, error) {
	var out []circulation.Loan
	for _, ledger := range n.ledgers {
		cat := ledger.Category()
		if !scope.includes(cat) || (cat == circulation.Staff && !n.staffOverdue) {
			continue
		}
		loans, err := ledger.ListOpen(ctx, circulation.LoanFilter{BorrowerID: scope.BorrowerID})
		if err != nil {
			return nil, fmt.Errorf("list open %s loans: %w", cat, err)
		}
		for _, l := range loans {
			if l.OverdueAt(now) {
				out = append(out, l)
			}
		}
	}
	return out, nil
}

func (n *Notifier) titleName(ctx context.Context, cache map[string]string, titleID string) (string, error) {
	if name, ok := cache[titleID]; ok {
		return name, nil
	}
	name := titleID
	t, err := n.catalog.GetTitle(ctx, titleID)
	switch {
	case err == nil:
		if strings.TrimSpace(t.DisplayName) != "" {
			name = t.DisplayName
		}
	case circulation.KindOf(err) == circulation.KindNotFound:
	default:
		return "", err
	}
	cache[titleID] = name
	return name, nil
}

func (n *Notifier) MarkRead(ctx context.Context, userID, id string) error {
	return n.meta.MarkRead(ctx, userID, id)
}

func (n *Notifier) MarkUnread(ctx context.Context, userID, id string) error {
	return n.meta.MarkUnread(ctx, userID, id)
}

// Delete hides id from every later scan of userID.
func (n *Notifier) Delete(ctx context.Context, userID, id string) error {
	return n.meta.Delete(ctx, userID, id)
}

// Run scans the scopes every interval until ctx is done, so first-seen
// timestamps are recorded even when nobody opens the feed.
func (n *Notifier) Run(ctx context.Context, interval time.Duration, scopes func() []Scope) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		for _, s := range scopes() {
			if _, err := n.Scan(ctx, s); err != nil && ctx.Err() == nil {
				n.logger.Error("overdue scan failed", "user_id", s.UserID, "err", err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// DaysOverdue is the number of started days since due.
func DaysOverdue(due, now time.Time) int {
	d := now.Sub(due)
	if d <= 0 {
		return 0
	}
	days := int(d / day)
	if d%day != 0 {
		days++
	}
	return days
}

// SortNewestFirst orders by creation time descending, then by id.
func SortNewestFirst(feed []Notification) {
	sort.SliceStable(feed, func(i, j int) bool {
		if !feed[i].CreatedAt.Equal(feed[j].CreatedAt) {
			return feed[i].CreatedAt.After(feed[j].CreatedAt)
		}
		return feed[i].ID < feed[j].ID
	})
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
