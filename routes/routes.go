package routes

import (
	"net/http"

	"school_library/app"
	"school_library/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	s := controllers.GetSrv(a)
	loanCtl := controllers.NewLoanController(s)
	catalogCtl := controllers.NewCatalogController(s)
	borrowerCtl := controllers.NewBorrowerController(s)
	notifCtl := controllers.NewNotificationController(s)

	authMW := app.AuthRequired(s.AppSess, a.Config)
	adminMW := app.AdminOnly()

	r.GET("/healthz", func(c *app.Ctx) { c.JSON(http.StatusOK, app.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(a.Metrics.Handler()))

	// ------------------------------
	// session
	// ------------------------------
	if a.Config.StoreDriver == "memory" && a.Config.DevLogin {
		r.POST("/dev/login", s.DevLogin)
	}
	sess := r.Group("/api/session", authMW)
	{
		sess.GET("/whoami", s.WhoAmI)
		sess.POST("/logout", s.Logout)
	}

	// ------------------------------
	// catalog
	// ------------------------------
	titles := r.Group("/api/titles", authMW)
	{
		titles.GET("", catalogCtl.ListTitles) // ?eligible=true
		titles.GET("/:id/availability", catalogCtl.Availability)
	}
	titlesAdmin := r.Group("/api/titles", authMW, adminMW)
	{
		titlesAdmin.POST("", catalogCtl.CreateTitle)
		titlesAdmin.POST("/:id/codes", catalogCtl.AddCode)
		titlesAdmin.DELETE("/:id/codes/:code", catalogCtl.RemoveCode)
	}

	// ------------------------------
	// borrowers (admin)
	// ------------------------------
	borrowers := r.Group("/api/borrowers", authMW, adminMW)
	{
		borrowers.GET("/:category", borrowerCtl.ListBorrowers)
		borrowers.POST("/:category", borrowerCtl.CreateBorrower)
	}

	// ------------------------------
	// circulation (admin desk)
	// ------------------------------
	loans := r.Group("/api/loans", authMW, adminMW)
	{
		loans.GET("", loanCtl.ListLoans) // ?category=&status=&borrowerId=&titleId=
		loans.POST("", loanCtl.Checkout)
		loans.POST("/batch", loanCtl.CheckoutMany)
		loans.DELETE("/returned", loanCtl.PurgeReturned) // ?before=RFC3339
		loans.GET("/:loanId", loanCtl.GetLoan)
		loans.POST("/:loanId/return", loanCtl.Return)
		loans.POST("/:loanId/cancel", loanCtl.Cancel)
		loans.POST("/:loanId/renew", loanCtl.Renew)
	}

	// ------------------------------
	// notifications
	// ------------------------------
	notifs := r.Group("/api/notifications", authMW)
	{
		notifs.GET("", notifCtl.List)
		notifs.POST("/:id/read", notifCtl.MarkRead)
		notifs.POST("/:id/unread", notifCtl.MarkUnread)
		notifs.DELETE("/:id", notifCtl.Delete)
	}
}
