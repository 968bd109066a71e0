package circulation

import (
	"fmt"
	"strings"
	"time"
)

// Category names the borrower registry a loan belongs to.
type Category string

const (
	Student Category = "student"
	Staff   Category = "staff"
)

// ParseCategory accepts "student" or "staff" in any case.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Student, Staff:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Status is the common loan tag every ledger maps its records to.
type Status string

const (
	StatusOpen      Status = "open"
	StatusReturned  Status = "returned"
	StatusCancelled Status = "cancelled"
)

// Title is a catalog entry and its manifest of physical copies.
type Title struct {
	ID          string
	DisplayName string
	Codes       CodeSet
}

// Completion is optional reading metadata recorded when a loan is returned.
type Completion struct {
	Finished bool   `json:"finished"`
	Rating   int    `json:"rating,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// Loan is the ledger-independent view of one loan record.
type Loan struct {
	ID         string      `json:"id"`
	TitleID    string      `json:"titleId"`
	CopyCode   string      `json:"copyCode"`
	BorrowerID string      `json:"borrowerId"`
	Category   Category    `json:"category"`
	OpenedAt   time.Time   `json:"openedAt"`
	DueAt      *time.Time  `json:"dueAt,omitempty"`
	Status     Status      `json:"status"`
	ReturnedAt *time.Time  `json:"returnedAt,omitempty"`
	RenewedAt  *time.Time  `json:"renewedAt,omitempty"`
	Completion *Completion `json:"completion,omitempty"`
}

func (l Loan) IsOpen() bool { return l.Status == StatusOpen }

// OverdueAt reports whether the loan is open and past due at now.
// Loans without a due date never become overdue.
func (l Loan) OverdueAt(now time.Time) bool {
	return l.IsOpen() && l.DueAt != nil && l.DueAt.Before(now)
}

// Borrower is a registered student or staff member.
type Borrower struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
}
