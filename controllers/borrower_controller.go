// controllers/borrower_controller.go
package controllers

import (
	"net/http"

	"school_library/app"

	"github.com/gin-gonic/gin"
)

type BorrowerController struct{ *Srv }

func NewBorrowerController(s *Srv) *BorrowerController { return &BorrowerController{Srv: s} }

// POST /api/borrowers/:category
func (bc *BorrowerController) CreateBorrower(c *gin.Context) {
	cat, ok := categoryParam(c, "category")
	if !ok {
		return
	}
	var in struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	b, err := bc.Stores.Borrowers.CreateBorrower(c.Request.Context(), cat, in.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// GET /api/borrowers/:category
func (bc *BorrowerController) ListBorrowers(c *gin.Context) {
	cat, ok := categoryParam(c, "category")
	if !ok {
		return
	}
	bs, err := bc.Stores.Borrowers.ListBorrowers(c.Request.Context(), cat)
	if err != nil {
		fail(c, err)
		return
	}
	if bs == nil {
		c.JSON(http.StatusOK, app.H{"items": []any{}})
		return
	}
	c.JSON(http.StatusOK, app.H{"items": bs})
}
