package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school_library/app"
	"school_library/circulation"
	"school_library/locks"
	"school_library/memstore"
	"school_library/notify"
	"school_library/session"
)

type testServer struct {
	app    *app.App
	admin  string
	reader string
}

func newTestServer(t *testing.T, cfg app.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = time.Hour
	}
	cfg.StoreDriver = "memory"
	a := app.Assemble(cfg, app.MemoryStores(), rdb, notify.NewMemoryMetaStore(), locks.NewKeyed())
	t.Cleanup(a.Close)
	RegisterRoutes(a.Router, a)

	ctx := context.Background()
	require.NoError(t, a.AppSessions().Create(ctx, "admin-session", "librarian", session.RoleAdmin))
	require.NoError(t, a.AppSessions().Create(ctx, "reader-session", "reader", ""))
	return &testServer{app: a, admin: "admin-session", reader: "reader-session"}
}

func (s *testServer) do(t *testing.T, sessionID, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("Authorization", "Bearer "+sessionID)
	}
	w := httptest.NewRecorder()
	s.app.Router.ServeHTTP(w, req)
	out := map[string]any{}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (s *testServer) seedTitle(t *testing.T, codes ...string) string {
	t.Helper()
	w, body := s.do(t, s.admin, http.MethodPost, "/api/titles", app.H{"displayName": "Wonder", "codes": codes})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["id"].(string)
}

func (s *testServer) seedBorrower(t *testing.T, cat string) string {
	t.Helper()
	w, body := s.do(t, s.admin, http.MethodPost, "/api/borrowers/"+cat, app.H{"name": "Auggie"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["id"].(string)
}

func TestAuthAndAdminGuards(t *testing.T) {
	s := newTestServer(t, app.Config{})

	w, _ := s.do(t, "", http.MethodGet, "/api/titles", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = s.do(t, "unknown", http.MethodGet, "/api/titles", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = s.do(t, s.reader, http.MethodGet, "/api/titles", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, s.reader, http.MethodPost, "/api/titles", app.H{"displayName": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminUsersConfigGrantsAdmin(t *testing.T) {
	s := newTestServer(t, app.Config{AdminUsers: []string{"Reader"}})

	w, body := s.do(t, s.reader, http.MethodGet, "/api/session/whoami", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["isAdmin"])
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	s := newTestServer(t, app.Config{})
	titleID := s.seedTitle(t, "B", "A")
	studentID := s.seedBorrower(t, "student")
	checkout := app.H{"titleId": titleID, "borrowerId": studentID, "category": "student"}

	w, first := s.do(t, s.admin, http.MethodPost, "/api/loans", checkout)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "A", first["copyCode"])

	w, second := s.do(t, s.admin, http.MethodPost, "/api/loans", checkout)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "B", second["copyCode"])

	w, body := s.do(t, s.admin, http.MethodPost, "/api/loans", checkout)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "no_available_copy", body["code"])

	w, body = s.do(t, s.admin, http.MethodGet, "/api/titles/"+titleID+"/availability", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["available"])
	assert.Len(t, body["holders"], 2)

	loanID := first["id"].(string)
	w, _ = s.do(t, s.admin, http.MethodPost, "/api/loans/"+loanID+"/return", app.H{"completion": app.H{"finished": true}})
	assert.Equal(t, http.StatusOK, w.Code)
	w, body = s.do(t, s.admin, http.MethodPost, "/api/loans/"+loanID+"/return", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_returned", body["code"])

	w, body = s.do(t, s.admin, http.MethodPost, "/api/loans/"+loanID+"/cancel", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_transition", body["code"])

	w, body = s.do(t, s.admin, http.MethodGet, "/api/titles/"+titleID+"/availability", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"A"}, body["available"])
}

func TestCheckoutErrorMapping(t *testing.T) {
	s := newTestServer(t, app.Config{})
	titleID := s.seedTitle(t, "A")

	w, body := s.do(t, s.admin, http.MethodPost, "/api/loans", app.H{"titleId": titleID, "borrowerId": "ghost", "category": "student"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "borrower_not_found", body["code"])

	w, body = s.do(t, s.admin, http.MethodPost, "/api/loans", app.H{"titleId": titleID, "borrowerId": "ghost", "category": "visitor"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unknown_category", body["code"])

	w, _ = s.do(t, s.admin, http.MethodPost, "/api/loans", app.H{"titleId": titleID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = s.do(t, s.admin, http.MethodPost, "/api/loans/nope/renew", app.H{"dueAt": time.Now().Add(time.Hour)})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "loan_not_found", body["code"])
}

func TestRenewAndCancel(t *testing.T) {
	s := newTestServer(t, app.Config{})
	titleID := s.seedTitle(t, "A")
	staffID := s.seedBorrower(t, "staff")
	w, loan := s.do(t, s.admin, http.MethodPost, "/api/loans", app.H{"titleId": titleID, "borrowerId": staffID, "category": "staff"})
	require.Equal(t, http.StatusCreated, w.Code)
	loanID := loan["id"].(string)

	w, body := s.do(t, s.admin, http.MethodPost, "/api/loans/"+loanID+"/renew", app.H{"dueAt": time.Now().Add(-time.Hour)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "due_date_in_past", body["code"])

	w, body = s.do(t, s.admin, http.MethodPost, "/api/loans/"+loanID+"/renew", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, loan["dueAt"], body["dueAt"])

	w, _ = s.do(t, s.admin, http.MethodDelete, "/api/titles/"+titleID+"/codes/A", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, body = s.do(t, s.admin, http.MethodPost, "/api/loans/"+loanID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", body["status"])

	w, _ = s.do(t, s.admin, http.MethodDelete, "/api/titles/"+titleID+"/codes/A", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBatchCheckoutReportsPartialSuccess(t *testing.T) {
	s := newTestServer(t, app.Config{})
	free := s.seedTitle(t, "A")
	empty := s.seedTitle(t)
	studentID := s.seedBorrower(t, "student")

	w, body := s.do(t, s.admin, http.MethodPost, "/api/loans/batch", app.H{
		"borrowerId": studentID,
		"category":   "student",
		"items":      []app.H{{"titleId": free}, {"titleId": empty}},
	})

	assert.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Len(t, body["loans"], 1)
	failures := body["failures"].([]any)
	require.Len(t, failures, 1)
	assert.Equal(t, "no_available_copy", failures[0].(map[string]any)["code"])
}

func TestMaxLoansPerBorrower(t *testing.T) {
	s := newTestServer(t, app.Config{MaxLoansPerBorrower: 1})
	titleID := s.seedTitle(t, "A", "B")
	studentID := s.seedBorrower(t, "student")
	checkout := app.H{"titleId": titleID, "borrowerId": studentID, "category": "student"}

	w, _ := s.do(t, s.admin, http.MethodPost, "/api/loans", checkout)
	require.Equal(t, http.StatusCreated, w.Code)
	w, body := s.do(t, s.admin, http.MethodPost, "/api/loans", checkout)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "loan_limit_reached", body["code"])
}

func TestEligibleTitles(t *testing.T) {
	s := newTestServer(t, app.Config{})
	s.seedTitle(t, "A")
	s.seedTitle(t)

	w, body := s.do(t, s.reader, http.MethodGet, "/api/titles?eligible=true", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["items"], 1)
}

func TestNotificationFeedOverHTTP(t *testing.T) {
	s := newTestServer(t, app.Config{})
	ctx := context.Background()
	catalog := s.app.Stores.Catalog.(*memstore.Catalog)
	catalog.PutTitle(circulation.Title{ID: "T1", DisplayName: "Wonder", Codes: circulation.NewCodeSet("A", "B")})
	due := time.Now().Add(-5 * 24 * time.Hour)
	for _, l := range []struct{ id, code, borrower string }{{"L1", "A", "reader"}, {"L2", "B", "someone"}} {
		require.NoError(t, s.app.Stores.Students.Create(ctx, &circulation.Loan{
			ID: l.id, TitleID: "T1", CopyCode: l.code, BorrowerID: l.borrower,
			OpenedAt: due.Add(-14 * 24 * time.Hour), DueAt: &due, Status: circulation.StatusOpen,
		}))
	}

	w, body := s.do(t, s.reader, http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := body["items"].([]any)
	require.Len(t, items, 1, "readers only see their own loans")
	assert.Equal(t, "overdue-L1", items[0].(map[string]any)["id"])
	assert.Equal(t, float64(1), body["unread"])

	w, _ = s.do(t, s.reader, http.MethodPost, "/api/notifications/overdue-L1/read", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, body = s.do(t, s.reader, http.MethodGet, "/api/notifications", nil)
	assert.Equal(t, float64(0), body["unread"])

	_, body = s.do(t, s.admin, http.MethodGet, "/api/notifications", nil)
	assert.Len(t, body["items"], 2)

	w, _ = s.do(t, s.admin, http.MethodDelete, "/api/notifications/overdue-L2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, body = s.do(t, s.admin, http.MethodGet, "/api/notifications", nil)
	assert.Len(t, body["items"], 1)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, app.Config{})

	w, _ := s.do(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, "", http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestReturnRejectsMalformedCompletion(t *testing.T) {
	s := newTestServer(t, app.Config{})
	titleID := s.seedTitle(t, "A")
	studentID := s.seedBorrower(t, "student")
	w, loan := s.do(t, s.admin, http.MethodPost, "/api/loans", app.H{"titleId": titleID, "borrowerId": studentID, "category": "student"})
	require.Equal(t, http.StatusCreated, w.Code)
	loanID := loan["id"].(string)

	w, body := s.do(t, s.admin, http.MethodPost, "/api/loans/"+loanID+"/return",
		app.H{"completion": app.H{"finished": true, "rating": "five"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", body["code"])

	_, body = s.do(t, s.admin, http.MethodGet, "/api/loans/"+loanID, nil)
	assert.Equal(t, "open", body["status"], "a rejected body must not close the loan")

	w, body = s.do(t, s.admin, http.MethodPost, "/api/loans/"+loanID+"/return",
		app.H{"completion": app.H{"finished": true, "rating": 5}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "returned", body["status"])
	assert.Equal(t, float64(5), body["completion"].(map[string]any)["rating"])
}

func TestRenewRejectsUnparseableDueDate(t *testing.T) {
	s := newTestServer(t, app.Config{})
	titleID := s.seedTitle(t, "A")
	staffID := s.seedBorrower(t, "staff")
	w, loan := s.do(t, s.admin, http.MethodPost, "/api/loans", app.H{"titleId": titleID, "borrowerId": staffID, "category": "staff"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := s.do(t, s.admin, http.MethodPost, "/api/loans/"+loan["id"].(string)+"/renew", app.H{"dueAt": "2031-06-30"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", body["code"])
}

func TestDevLoginRequiresFlagAndIgnoresRole(t *testing.T) {
	s := newTestServer(t, app.Config{})
	w, _ := s.do(t, "", http.MethodPost, "/dev/login", app.H{"userId": "mallory"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	s = newTestServer(t, app.Config{DevLogin: true})
	w, body := s.do(t, "", http.MethodPost, "/dev/login", app.H{"userId": "mallory", "role": "admin"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, body = s.do(t, body["session"].(string), http.MethodGet, "/api/session/whoami", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mallory", body["userID"])
	assert.Equal(t, false, body["isAdmin"])
}
