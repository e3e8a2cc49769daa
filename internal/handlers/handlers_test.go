package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"smiles/internal/config"
	"smiles/internal/database"
	"smiles/internal/models"
	"smiles/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var unsafeDBName = regexp.MustCompile(`[^a-zA-Z0-9]`)

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	devLog *services.LogMailer
	cfg    *config.Config
}

func newTestServer(t *testing.T, adminPassword string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := unsafeDBName.ReplaceAllString(t.Name(), "_")
	db, err := database.Open(config.Database{
		Driver:     "sqlite",
		SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := &config.Config{
		Env:     config.EnvDevelopment,
		BaseURL: "http://smiles.test",
		Admin: config.Admin{
			Password:  adminPassword,
			JWTSecret: "test-secret",
			JWTExpiry: time.Hour,
		},
	}

	log := zap.NewNop()
	devLog := services.NewLogMailer(filepath.Join(t.TempDir(), "emails.log"), "noreply@smiles.test")
	email := services.NewEmailService(devLog, cfg.BaseURL, log)
	tokens := services.DefaultTokenSource()
	stats := services.NewStatsService(db, log)
	messages := services.NewMessageService(db, email, stats, tokens, log)

	h, err := New(cfg, Services{
		Senders:   services.NewSenderService(db, log),
		Signup:    services.NewSignupService(db, email, tokens, log),
		Messages:  messages,
		Stats:     stats,
		Admin:     services.NewAdminService(db, email, tokens, log),
		Pages:     services.NewPageService(db, email, tokens, log),
		QuickSend: services.NewQuickSendService(db, email, messages, tokens, log),
		DevLog:    devLog,
	}, log)
	require.NoError(t, err)

	router := gin.New()
	h.RegisterRoutes(router, func(c *gin.Context) { c.Next() })

	return &testServer{router: router, db: db, devLog: devLog, cfg: cfg}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, mutate ...func(*http.Request)) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func (s *testServer) signup(t *testing.T, name, email string) string {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/api/signup", gin.H{"name": name, "email": email, "avatar": "🌟"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["dashboard_url"].(string)
}

func (s *testServer) sender(t *testing.T, email string) models.Sender {
	t.Helper()
	var sender models.Sender
	require.NoError(t, s.db.Where("email = ?", email).First(&sender).Error)
	return sender
}

func (s *testServer) send(t *testing.T, dashboardURL, recipient string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	return s.do(t, http.MethodPost, "/api/dashboard/"+dashboardURL+"/send", gin.H{
		"recipient_name":  "Sam",
		"recipient_email": recipient,
		"message":         "Thanks for always helping out",
	})
}

func localhost(req *http.Request) {
	req.Host = "localhost:8080"
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")

	w, body := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestSignupReturnsDashboard(t *testing.T) {
	s := newTestServer(t, "")

	dashboardURL := s.signup(t, "Alex", "alex@acme.com")
	assert.Len(t, dashboardURL, 32)

	w, body := s.do(t, http.MethodGet, "/dashboard/"+dashboardURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "acme.com", body["company"])
	assert.Equal(t, float64(services.UnconfirmedMessageLimit), body["remaining_unconfirmed"])

	sender := body["sender"].(map[string]interface{})
	assert.Equal(t, "Alex", sender["name"])
	assert.NotContains(t, sender, "dashboard_url")
}

func TestSignupExistingSenderGetsLinkByEmailOnly(t *testing.T) {
	s := newTestServer(t, "")
	s.signup(t, "Alex", "alex@acme.com")

	w, body := s.do(t, http.MethodPost, "/api/signup", gin.H{"name": "Alex", "email": "ALEX@acme.com", "avatar": "🌟"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["is_existing"])
	assert.NotContains(t, body, "dashboard_url")
}

func TestSignupBindingErrorsUseJSONNames(t *testing.T) {
	s := newTestServer(t, "")

	w, body := s.do(t, http.MethodPost, "/api/signup", gin.H{"name": "Alex", "avatar": "🌟"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "email is required", body["error"])

	w, body = s.do(t, http.MethodPost, "/api/signup", gin.H{"name": "Alex", "email": "not-an-email", "avatar": "🌟"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email must be a valid email address", body["error"])
}

func TestConfirmEmailRendersHTML(t *testing.T) {
	s := newTestServer(t, "")
	s.signup(t, "Alex", "alex@acme.com")
	sender := s.sender(t, "alex@acme.com")

	w, _ := s.do(t, http.MethodGet, "/confirm/"+sender.ConfirmationToken(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Email confirmed!")

	w, _ = s.do(t, http.MethodGet, "/confirm/"+sender.ConfirmationToken(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Already confirmed")

	w, _ = s.do(t, http.MethodGet, "/confirm/deadbeef", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Link not valid")
}

func TestSendMessageStopsAtUnconfirmedLimit(t *testing.T) {
	s := newTestServer(t, "")
	dashboardURL := s.signup(t, "Alex", "alex@acme.com")

	for i := 0; i < services.UnconfirmedMessageLimit; i++ {
		w, body := s.send(t, dashboardURL, fmt.Sprintf("friend%d@example.com", i))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Len(t, body["message_url"], 8)
		assert.Equal(t, true, body["email_sent"])
	}

	w, body := s.send(t, dashboardURL, "friend9@example.com")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, services.RateLimitReason, body["error"])
}

func TestSendMessageUnknownDashboard(t *testing.T) {
	s := newTestServer(t, "")

	w, body := s.send(t, "doesnotexist", "friend@example.com")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Dashboard not found", body["error"])
}

func TestViewAndSmileMessage(t *testing.T) {
	s := newTestServer(t, "")
	dashboardURL := s.signup(t, "Alex", "alex@acme.com")
	_, sent := s.send(t, dashboardURL, "sam@example.com")
	messageURL := sent["message_url"].(string)

	w, body := s.do(t, http.MethodGet, "/s/"+messageURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alex", body["sender"].(map[string]interface{})["name"])
	assert.Equal(t, false, body["message"].(map[string]interface{})["smiled"])

	w, body = s.do(t, http.MethodPost, "/api/messages/"+messageURL+"/smile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["first_smile"])
	assert.Equal(t, float64(1), body["smile_count"])

	w, body = s.do(t, http.MethodPost, "/api/messages/"+messageURL+"/smile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["first_smile"])
	assert.Equal(t, float64(1), body["smile_count"])

	w, _ = s.do(t, http.MethodPost, "/api/messages/nope1234/smile", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteMessageChecksOwner(t *testing.T) {
	s := newTestServer(t, "")
	owner := s.signup(t, "Alex", "alex@acme.com")
	other := s.signup(t, "Jo", "jo@acme.com")
	_, sent := s.send(t, owner, "sam@example.com")
	path := fmt.Sprintf("/api/messages/%d", int(sent["message_id"].(float64)))

	w, _ := s.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodDelete, path+"?dashboard_url="+other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodDelete, path+"?dashboard_url="+owner, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/s/"+sent["message_url"].(string), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuickSendCreatesSender(t *testing.T) {
	s := newTestServer(t, "")

	w, body := s.do(t, http.MethodPost, "/api/messages/quick-send", gin.H{
		"sender_name":     "Sam",
		"sender_email":    "sam@example.com",
		"recipient_name":  "Alex",
		"recipient_email": "alex@acme.com",
		"message":         "Right back at you",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, false, body["existing_user"])
	assert.NotEmpty(t, body["dashboard_url"])
	assert.NotEmpty(t, body["message_url"])
}

func TestLookupMessages(t *testing.T) {
	s := newTestServer(t, "")
	dashboardURL := s.signup(t, "Alex", "alex@acme.com")
	s.send(t, dashboardURL, "sam@example.com")
	s.send(t, dashboardURL, "jo@example.com")
	sender := s.sender(t, "alex@acme.com")

	w, body := s.do(t, http.MethodPost, fmt.Sprintf("/api/sender/%d/lookup", sender.ID), gin.H{"email": "SAM@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])

	w, _ = s.do(t, http.MethodPost, "/api/sender/abc/lookup", gin.H{"email": "sam@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWaitlistRejectsDuplicates(t *testing.T) {
	s := newTestServer(t, "")

	w, _ := s.do(t, http.MethodPost, "/api/waitlist", gin.H{"email": "pat@acme.com"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w, body := s.do(t, http.MethodPost, "/api/waitlist", gin.H{"email": "pat@acme.com"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Email already on waitlist", body["error"])
}

func TestHappinessPageFlow(t *testing.T) {
	s := newTestServer(t, "")
	s.do(t, http.MethodPost, "/api/waitlist", gin.H{"email": "pat@acme.com"})

	w, _ := s.do(t, http.MethodPost, "/api/admin/allow-user", gin.H{"email": "pat@acme.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pat := s.sender(t, "pat@acme.com")
	creationURL := pat.CreationToken()

	w, body := s.do(t, http.MethodGet, "/create/"+creationURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["themes"], 8)

	w, body = s.do(t, http.MethodPost, "/api/create/"+creationURL, gin.H{
		"settings": gin.H{"slug": "bad slug!"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Slug can only contain letters, numbers, and hyphens", body["error"])

	w, body = s.do(t, http.MethodPost, "/api/create/"+creationURL, gin.H{
		"messages": []gin.H{{"recipient_email": "nope", "recipient_name": "Sam", "message": "You rock"}},
		"publish":  true,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "recipient_email must be a valid email address", body["error"])

	w, body = s.do(t, http.MethodPost, "/api/create/"+creationURL, gin.H{
		"settings": gin.H{"slug": "pat-smiles"},
		"messages": []gin.H{{"recipient_email": "sam@example.com", "recipient_name": "Sam", "message": "You rock"}},
		"publish":  true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "pat-smiles", body["slug"])
	assert.Equal(t, float64(1), body["invites_sent"])
	assert.Equal(t, "http://smiles.test/p/pat-smiles", body["page_url"])

	w, body = s.do(t, http.MethodGet, "/p/pat-smiles", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pat-smiles", body["page"].(map[string]interface{})["slug"])

	w, _ = s.do(t, http.MethodGet, "/p/nobody", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestThemes(t *testing.T) {
	s := newTestServer(t, "")

	w, body := s.do(t, http.MethodGet, "/api/themes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["themes"], 8)
}

func TestStatsEndpoints(t *testing.T) {
	s := newTestServer(t, "")
	dashboardURL := s.signup(t, "Alex", "alex@acme.com")
	_, sent := s.send(t, dashboardURL, "sam@example.com")
	s.do(t, http.MethodPost, "/api/messages/"+sent["message_url"].(string)+"/smile", nil)

	w, body := s.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["smile_count"])
	assert.Equal(t, float64(1), body["total_companies"])
	assert.Len(t, body["top_companies"], 1)

	w, body = s.do(t, http.MethodGet, "/api/stats/companies/ACME.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, "acme.com", stats["company"])
	assert.Equal(t, float64(1), stats["smile_count"])

	w, body = s.do(t, http.MethodGet, "/?company=acme.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body, "company_stats")
}

func TestAdminRequiresLogin(t *testing.T) {
	s := newTestServer(t, "hunter2")
	s.signup(t, "Alex", "alex@acme.com")

	w, _ := s.do(t, http.MethodGet, "/admin", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/admin/login", gin.H{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := s.do(t, http.MethodPost, "/api/admin/login", gin.H{"password": "hunter2"})
	require.Equal(t, http.StatusOK, w.Code)
	token := body["token"].(string)
	bearer := func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }

	w, body = s.do(t, http.MethodGet, "/admin", nil, bearer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])

	w, body = s.do(t, http.MethodPost, "/api/admin/send-reminder", gin.H{"email": "alex@acme.com"}, bearer)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Reminder email sent", body["message"])
}

func TestAdminLoginDisabledWithoutPassword(t *testing.T) {
	s := newTestServer(t, "")

	w, _ := s.do(t, http.MethodPost, "/api/admin/login", gin.H{"password": "anything"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminActionErrors(t *testing.T) {
	s := newTestServer(t, "")

	w, body := s.do(t, http.MethodPost, "/api/admin/launch-rockets", gin.H{"email": "alex@acme.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, body["error"], body["message"])

	w, body = s.do(t, http.MethodPost, "/api/admin/delete-user", gin.H{"email": "ghost@acme.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", body["message"])
}

func TestAdminResetInvalidatesDashboard(t *testing.T) {
	s := newTestServer(t, "")
	oldURL := s.signup(t, "Alex", "alex@acme.com")

	w, _ := s.do(t, http.MethodPost, "/api/admin/reset-creation", gin.H{"email": "alex@acme.com"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/dashboard/"+oldURL, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	alex := s.sender(t, "alex@acme.com")
	newURL := alex.DashboardToken()
	w, _ = s.do(t, http.MethodGet, "/dashboard/"+newURL, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDevEmailsOnlyFromLocalhost(t *testing.T) {
	s := newTestServer(t, "")
	s.signup(t, "Alex", "alex@acme.com")

	w, _ := s.do(t, http.MethodGet, "/dev/emails", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body := s.do(t, http.MethodGet, "/dev/emails", nil, localhost)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])
	emails := body["emails"].([]interface{})
	assert.Contains(t, emails[0], "To: alex@acme.com")

	w, _ = s.do(t, http.MethodPost, "/api/dev/clear-emails", nil, localhost)
	require.Equal(t, http.StatusOK, w.Code)

	_, body = s.do(t, http.MethodGet, "/dev/emails", nil, localhost)
	assert.Equal(t, float64(0), body["count"])
}

func TestDevEmailsHiddenInProduction(t *testing.T) {
	s := newTestServer(t, "")
	s.cfg.Env = config.EnvProduction

	router := gin.New()
	h := &Handler{cfg: s.cfg, svc: Services{DevLog: s.devLog}, log: zap.NewNop()}
	h.RegisterRoutes(router, func(c *gin.Context) { c.Next() })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dev/emails", nil)
	localhost(req)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
