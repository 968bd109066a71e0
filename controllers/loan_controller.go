// controllers/loan_controller.go
package controllers

import (
	"net/http"
	"time"

	"school_library/app"
	"school_library/circulation"

	"github.com/gin-gonic/gin"
)

type LoanController struct{ *Srv }

func NewLoanController(s *Srv) *LoanController { return &LoanController{Srv: s} }

type checkoutInput struct {
	TitleID       string `json:"titleId" binding:"required"`
	BorrowerID    string `json:"borrowerId" binding:"required"`
	Category      string `json:"category" binding:"required"`
	PreferredCode string `json:"preferredCode"`
}

// withinLimit reports whether the borrower may take n more loans. The check
// reads outside the title lock, so the limit is advisory under races.
func (lc *LoanController) withinLimit(c *gin.Context, cat circulation.Category, borrowerID string, n int) bool {
	limit := lc.Cfg.MaxLoansPerBorrower
	if limit <= 0 {
		return true
	}
	ledger, err := lc.Stores.Ledger(cat)
	if err != nil {
		fail(c, err)
		return false
	}
	open, err := ledger.ListOpen(c.Request.Context(), circulation.LoanFilter{BorrowerID: borrowerID})
	if err != nil {
		fail(c, err)
		return false
	}
	if len(open)+n > limit {
		c.JSON(http.StatusConflict, app.H{"error": "loan limit reached", "code": "loan_limit_reached", "limit": limit})
		return false
	}
	return true
}

// Checkout opens a loan on one copy of a title.
func (lc *LoanController) Checkout(c *gin.Context) {
	var in checkoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	cat, err := circulation.ParseCategory(in.Category)
	if err != nil {
		fail(c, err)
		return
	}
	if !lc.withinLimit(c, cat, in.BorrowerID, 1) {
		return
	}
	loan, err := lc.Srv.Checkout.Checkout(c.Request.Context(), circulation.Request{
		TitleID:       in.TitleID,
		BorrowerID:    in.BorrowerID,
		Category:      cat,
		PreferredCode: in.PreferredCode,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, loan)
}

type batchFailure struct {
	TitleID string `json:"titleId"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// CheckoutMany checks out several titles for one borrower. Items are
// independent: 201 when all succeed, 207 on partial success, 409 when none do.
func (lc *LoanController) CheckoutMany(c *gin.Context) {
	var in struct {
		BorrowerID string             `json:"borrowerId" binding:"required"`
		Category   string             `json:"category" binding:"required"`
		Items      []circulation.Item `json:"items" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	cat, err := circulation.ParseCategory(in.Category)
	if err != nil {
		fail(c, err)
		return
	}
	if !lc.withinLimit(c, cat, in.BorrowerID, len(in.Items)) {
		return
	}
	res := lc.Srv.Checkout.CheckoutMany(c.Request.Context(), in.BorrowerID, cat, in.Items)

	failures := make([]batchFailure, 0, len(res.Failures))
	for _, f := range res.Failures {
		failures = append(failures, batchFailure{TitleID: f.Item.TitleID, Error: f.Err.Error(), Code: circulation.CodeOf(f.Err)})
	}
	loans := res.Loans
	if loans == nil {
		loans = []circulation.Loan{}
	}
	status := http.StatusCreated
	switch {
	case res.Partial():
		status = http.StatusMultiStatus
	case len(res.Loans) == 0:
		status = http.StatusConflict
	}
	c.JSON(status, app.H{"loans": loans, "failures": failures})
}

func (lc *LoanController) GetLoan(c *gin.Context) {
	loan, _, err := lc.Loans.Find(c.Request.Context(), c.Param("loanId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

// Return closes a loan, optionally recording completion metadata.
func (lc *LoanController) Return(c *gin.Context) {
	var in struct {
		Completion *circulation.Completion `json:"completion"`
	}
	if !bindOptionalJSON(c, &in) {
		return
	}

	loan, err := lc.Loans.Return(c.Request.Context(), c.Param("loanId"), in.Completion)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func (lc *LoanController) Cancel(c *gin.Context) {
	loan, err := lc.Loans.Cancel(c.Request.Context(), c.Param("loanId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

// Renew moves the due date. Without a body the loan is extended by one
// loan period from now.
func (lc *LoanController) Renew(c *gin.Context) {
	var in struct {
		DueAt *time.Time `json:"dueAt"`
	}
	if !bindOptionalJSON(c, &in) {
		return
	}
	due := time.Now().Add(lc.Srv.Checkout.LoanDuration())
	if in.DueAt != nil {
		due = *in.DueAt
	}
	loan, err := lc.Loans.Renew(c.Request.Context(), c.Param("loanId"), due)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

// ListLoans ?category=student|staff&status=open|returned|cancelled&borrowerId=&titleId=
func (lc *LoanController) ListLoans(c *gin.Context) {
	f := circulation.LoanFilter{TitleID: c.Query("titleId"), BorrowerID: c.Query("borrowerId")}
	status := circulation.Status(c.Query("status"))
	switch status {
	case "", circulation.StatusOpen, circulation.StatusReturned, circulation.StatusCancelled:
	default:
		badRequest(c, "unknown status")
		return
	}
	cats := []circulation.Category{circulation.Student, circulation.Staff}
	if q := c.Query("category"); q != "" {
		cat, err := circulation.ParseCategory(q)
		if err != nil {
			fail(c, err)
			return
		}
		cats = []circulation.Category{cat}
	}
	out := []circulation.Loan{}
	for _, cat := range cats {
		ledger, err := lc.Stores.Ledger(cat)
		if err != nil {
			fail(c, err)
			return
		}
		ls, err := ledger.List(c.Request.Context(), f, status)
		if err != nil {
			fail(c, err)
			return
		}
		out = append(out, ls...)
	}
	c.JSON(http.StatusOK, app.H{"items": out})
}

// PurgeReturned deletes returned loans older than ?before (RFC 3339, default
// one year ago) from every ledger.
func (lc *LoanController) PurgeReturned(c *gin.Context) {
	before := time.Now().AddDate(-1, 0, 0)
	if q := c.Query("before"); q != "" {
		t, err := time.Parse(time.RFC3339, q)
		if err != nil {
			badRequest(c, "before must be RFC 3339")
			return
		}
		before = t
	}
	var total int64
	for _, ledger := range []app.LedgerStore{lc.Stores.Students, lc.Stores.Staff} {
		n, err := ledger.PurgeReturned(c.Request.Context(), before)
		if err != nil {
			fail(c, err)
			return
		}
		total += n
	}
	c.JSON(http.StatusOK, app.H{"purged": total, "before": before})
}
