// controllers/srv.go
package controllers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"school_library/app"
	"school_library/circulation"
	"school_library/notify"
	"school_library/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Srv struct {
	Stores    app.Stores
	Resolver  *circulation.Resolver
	Checkout  *circulation.Coordinator
	Loans     *circulation.Lifecycle
	Catalog   *circulation.CatalogEditor
	Notifier  *notify.Notifier
	AppSess   *session.AppSessionStore
	WebOrigin string
	Cfg       app.Config
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		Stores:    a.Stores,
		Resolver:  a.Resolver,
		Checkout:  a.Checkout,
		Loans:     a.Loans,
		Catalog:   a.Catalog,
		Notifier:  a.Notifier,
		AppSess:   a.AppSessions(),
		WebOrigin: a.Config.WebOrigin,
		Cfg:       a.Config,
	}
}

// --- helpers ---

func userID(c *gin.Context) (string, bool) {
	v, ok := c.Get("userID")
	if !ok {
		return "", false
	}
	uid, _ := v.(string)
	return uid, uid != ""
}

func isAdmin(c *gin.Context) bool { return c.GetBool("isAdmin") }

// statusOf maps an error kind onto an HTTP status.
func statusOf(err error) int {
	switch circulation.KindOf(err) {
	case circulation.KindNotFound:
		return http.StatusNotFound
	case circulation.KindConflict, circulation.KindInUse:
		return http.StatusConflict
	case circulation.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case circulation.KindInvalid:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error": message, "code": machine code}. Internal
// errors are logged and hidden from the client.
func fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, app.H{"error": "internal error", "code": circulation.CodeOf(err)})
		return
	}
	c.JSON(status, app.H{"error": err.Error(), "code": circulation.CodeOf(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, app.H{"error": msg, "code": "bad_request"})
}

// bindOptionalJSON accepts an empty body. Any other decode failure is
// answered with 400 and reported as false.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	badRequest(c, err.Error())
	return false
}

func categoryParam(c *gin.Context, name string) (circulation.Category, bool) {
	cat, err := circulation.ParseCategory(c.Param(name))
	if err != nil {
		fail(c, err)
		return "", false
	}
	return cat, true
}

// setAppCookie writes the session cookie.
func (s *Srv) setAppCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	secure := strings.HasPrefix(s.WebOrigin, "https://")
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
		MaxAge:   int(maxAge / time.Second),
	})
}

// Logout drops the current session and clears the cookie.
func (s *Srv) Logout(c *gin.Context) {
	if ck, err := c.Request.Cookie(app.AppSessionCookie); err == nil && ck.Value != "" {
		_ = s.AppSess.Delete(c.Request.Context(), ck.Value)
	}
	s.setAppCookie(c.Writer, "", -time.Second)
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// WhoAmI reports the authenticated user.
func (s *Srv) WhoAmI(c *gin.Context) {
	uid, _ := userID(c)
	c.JSON(http.StatusOK, app.H{"userID": uid, "isAdmin": isAdmin(c)})
}

// DevLogin issues a session for a user id when the sign-in service is not
// deployed (STORE_DRIVER=memory and DEV_LOGIN=true). The session never
// carries a role; admins come from ADMIN_USERS.
func (s *Srv) DevLogin(c *gin.Context) {
	var in struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	id := uuid.NewString()
	if err := s.AppSess.Create(c.Request.Context(), id, in.UserID, ""); err != nil {
		fail(c, err)
		return
	}
	s.setAppCookie(c.Writer, id, s.Cfg.SessionTTL)
	c.JSON(http.StatusCreated, app.H{"session": id})
}
