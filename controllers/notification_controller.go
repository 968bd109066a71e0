// controllers/notification_controller.go
package controllers

import (
	"net/http"

	"school_library/app"
	"school_library/notify"

	"github.com/gin-gonic/gin"
)

type NotificationController struct{ *Srv }

func NewNotificationController(s *Srv) *NotificationController {
	return &NotificationController{Srv: s}
}

// scopeOf: admins watch every borrower, everyone else only their own loans.
func scopeOf(c *gin.Context) (notify.Scope, bool) {
	uid, ok := userID(c)
	if !ok {
		return notify.Scope{}, false
	}
	s := notify.Scope{UserID: uid}
	if !isAdmin(c) {
		s.BorrowerID = uid
	}
	return s, true
}

func (nc *NotificationController) List(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	feed, err := nc.Notifier.Scan(c.Request.Context(), scope)
	if err != nil {
		fail(c, err)
		return
	}
	unread := 0
	for _, n := range feed {
		if !n.Read {
			unread++
		}
	}
	if feed == nil {
		feed = []notify.Notification{}
	}
	c.JSON(http.StatusOK, app.H{"items": feed, "unread": unread})
}

func (nc *NotificationController) update(c *gin.Context, op func(*gin.Context, string, string) error) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	if err := op(c, uid, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

func (nc *NotificationController) MarkRead(c *gin.Context) {
	nc.update(c, func(c *gin.Context, uid, id string) error {
		return nc.Notifier.MarkRead(c.Request.Context(), uid, id)
	})
}

func (nc *NotificationController) MarkUnread(c *gin.Context) {
	nc.update(c, func(c *gin.Context, uid, id string) error {
		return nc.Notifier.MarkUnread(c.Request.Context(), uid, id)
	})
}

func (nc *NotificationController) Delete(c *gin.Context) {
	nc.update(c, func(c *gin.Context, uid, id string) error {
		return nc.Notifier.Delete(c.Request.Context(), uid, id)
	})
}
