// controllers/catalog_controller.go
package controllers

import (
	"net/http"
	"sort"
	"time"

	"school_library/app"
	"school_library/circulation"

	"github.com/gin-gonic/gin"
)

type CatalogController struct{ *Srv }

func NewCatalogController(s *Srv) *CatalogController { return &CatalogController{Srv: s} }

type titleView struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Codes       []string `json:"codes"`
	Available   []string `json:"available,omitempty"`
}

type holderView struct {
	CopyCode   string               `json:"copyCode"`
	LoanID     string               `json:"loanId"`
	BorrowerID string               `json:"borrowerId"`
	Category   circulation.Category `json:"category"`
	DueAt      *time.Time           `json:"dueAt,omitempty"`
}

type conflictView struct {
	CopyCode string   `json:"copyCode"`
	LoanIDs  []string `json:"loanIds"`
}

func viewOf(t circulation.Title) titleView {
	return titleView{ID: t.ID, DisplayName: t.DisplayName, Codes: t.Codes.Sorted()}
}

// CreateTitle adds a title with its initial copy codes.
func (cc *CatalogController) CreateTitle(c *gin.Context) {
	var in struct {
		DisplayName string   `json:"displayName" binding:"required"`
		Codes       []string `json:"codes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	t, err := cc.Stores.Catalog.CreateTitle(c.Request.Context(), in.DisplayName, in.Codes)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(*t))
}

// ListTitles lists the catalog. ?eligible=true keeps only titles with at
// least one copy on the shelf.
func (cc *CatalogController) ListTitles(c *gin.Context) {
	ctx := c.Request.Context()
	titles, err := cc.Stores.Catalog.ListTitles(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	if c.Query("eligible") == "true" {
		ids := make([]string, 0, len(titles))
		for _, t := range titles {
			ids = append(ids, t.ID)
		}
		keep, err := cc.Resolver.Eligible(ctx, ids)
		if err != nil {
			fail(c, err)
			return
		}
		set := make(map[string]bool, len(keep))
		for _, id := range keep {
			set[id] = true
		}
		filtered := titles[:0]
		for _, t := range titles {
			if set[t.ID] {
				filtered = append(filtered, t)
			}
		}
		titles = filtered
	}
	out := make([]titleView, 0, len(titles))
	for _, t := range titles {
		out = append(out, viewOf(t))
	}
	c.JSON(http.StatusOK, app.H{"items": out})
}

// Availability returns the live availability snapshot of one title.
func (cc *CatalogController) Availability(c *gin.Context) {
	snap, err := cc.Resolver.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	holders := make([]holderView, 0, len(snap.Holders))
	for code, l := range snap.Holders {
		holders = append(holders, holderView{
			CopyCode: code, LoanID: l.ID, BorrowerID: l.BorrowerID, Category: l.Category, DueAt: l.DueAt,
		})
	}
	sort.Slice(holders, func(i, j int) bool { return holders[i].CopyCode < holders[j].CopyCode })
	conflicts := make([]conflictView, 0, len(snap.Conflicts))
	for _, cf := range snap.Conflicts {
		v := conflictView{CopyCode: cf.CopyCode}
		for _, l := range cf.Loans {
			v.LoanIDs = append(v.LoanIDs, l.ID)
		}
		conflicts = append(conflicts, v)
	}
	c.JSON(http.StatusOK, app.H{
		"titleId":   snap.TitleID,
		"codes":     snap.Codes.Sorted(),
		"available": snap.Available.Sorted(),
		"holders":   holders,
		"conflicts": conflicts,
	})
}

func (cc *CatalogController) AddCode(c *gin.Context) {
	var in struct {
		Code string `json:"code"`
	}
	if !bindOptionalJSON(c, &in) {
		return
	}
	if err := cc.Catalog.AddCode(c.Request.Context(), c.Param("id"), in.Code); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"ok": true})
}

func (cc *CatalogController) RemoveCode(c *gin.Context) {
	if err := cc.Catalog.RemoveCode(c.Request.Context(), c.Param("id"), c.Param("code")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
