package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/erikwilensky/codecheck/internal/app"
	"github.com/erikwilensky/codecheck/internal/config"
	"github.com/erikwilensky/codecheck/internal/database"
	"github.com/erikwilensky/codecheck/internal/middleware"
	"github.com/erikwilensky/codecheck/internal/router"
)

func newServer(t *testing.T) *fiber.App {
	t.Helper()
	cfg := config.Config{
		AppName:          "codecheck",
		AppEnv:           "test",
		DatabaseDriver:   "sqlite",
		DatabaseURL:      filepath.Join(t.TempDir(), "router.db"),
		EventsChannel:    "codecheck",
		HistoryTTL:       time.Minute,
		AIProvider:       "openai",
		AIProtocol:       "modern",
		AITimeout:        time.Second,
		AIMaxConcurrency: 1,
		AdminPassword:    "letmein",
		AdminTokenSecret: "router-test",
		AdminTokenTTL:    time.Hour,
		UploadMaxBytes:   1 << 20,
		RateLimitMax:     100,
		RateLimitWindow:  time.Minute,
	}

	logger := zerolog.New(io.Discard)
	container, err := app.Build(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(container.Close)
	require.NoError(t, database.Migrate(container.DB))

	server := fiber.New()
	middleware.Register(server, middleware.Config{Logger: &logger})
	router.Register(server, cfg, router.NewDependencies(container))
	return server
}

func do(t *testing.T, server *fiber.App, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := server.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(data, &body))
	}
	return resp.StatusCode, body
}

func TestHealthReportsProviderState(t *testing.T) {
	server := newServer(t)

	status, body := do(t, server, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]interface{})
	require.Equal(t, "ok", data["status"])
	require.Equal(t, "openai", data["ai_provider"])
	require.Equal(t, false, data["ai_configured"])
	require.Equal(t, false, data["webhook_verified"])
}

func TestAdminGate(t *testing.T) {
	server := newServer(t)

	status, _ := do(t, server, httptest.NewRequest(http.MethodGet, "/api/admin/students", nil))
	require.Equal(t, http.StatusUnauthorized, status)

	wrong := httptest.NewRequest(http.MethodGet, "/api/admin/students", nil)
	wrong.Header.Set(middleware.AdminPasswordHeader, "nope")
	status, _ = do(t, server, wrong)
	require.Equal(t, http.StatusUnauthorized, status)

	withSecret := httptest.NewRequest(http.MethodGet, "/api/admin/students", nil)
	withSecret.Header.Set(middleware.AdminPasswordHeader, "letmein")
	status, _ = do(t, server, withSecret)
	require.Equal(t, http.StatusOK, status)

	login := httptest.NewRequest(http.MethodPost, "/api/admin/session", bytes.NewBufferString(`{"password":"letmein"}`))
	login.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	status, body := do(t, server, login)
	require.Equal(t, http.StatusCreated, status)
	token := body["data"].(map[string]interface{})["token"].(string)
	require.NotEmpty(t, token)

	badLogin := httptest.NewRequest(http.MethodPost, "/api/admin/session", bytes.NewBufferString(`{"password":"guess"}`))
	badLogin.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	status, _ = do(t, server, badLogin)
	require.Equal(t, http.StatusUnauthorized, status)

	withToken := httptest.NewRequest(http.MethodGet, "/api/admin/activity", nil)
	withToken.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	status, body = do(t, server, withToken)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
}

func TestStudentUploadFlow(t *testing.T) {
	server := newServer(t)

	create := httptest.NewRequest(http.MethodPost, "/api/admin/students", bytes.NewBufferString(`{"student_id":"S100","name":"Ada","block":4,"is_approved":true}`))
	create.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	create.Header.Set(middleware.AdminPasswordHeader, "letmein")
	status, _ := do(t, server, create)
	require.Equal(t, http.StatusCreated, status)

	assignment := httptest.NewRequest(http.MethodPost, "/api/admin/assignments", bytes.NewBufferString(`{"name":"calculator"}`))
	assignment.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	assignment.Header.Set(middleware.AdminPasswordHeader, "letmein")
	status, _ = do(t, server, assignment)
	require.Equal(t, http.StatusCreated, status)

	status, body := do(t, server, httptest.NewRequest(http.MethodGet, "/api/assignments", nil))
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["data"], 1)

	form := "student_id=S100&assignment_name=calculator&code_paste=" + "print(1)"
	upload := httptest.NewRequest(http.MethodPost, "/api/upload/code", strings.NewReader(form))
	upload.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	status, body = do(t, server, upload)
	require.Equal(t, http.StatusCreated, status, body["message"])
	submission := body["data"].(map[string]interface{})
	require.Equal(t, "calculator", submission["assignment_name"])

	seed := httptest.NewRequest(http.MethodPost, "/api/admin/seed/students", bytes.NewBufferString(`{"prefix":"STU","count":2,"block":4}`))
	seed.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	seed.Header.Set(middleware.AdminPasswordHeader, "letmein")
	status, body = do(t, server, seed)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, float64(2), body["data"].(map[string]interface{})["created"])

	status, _ = do(t, server, httptest.NewRequest(http.MethodGet, "/api/submissions/999", nil))
	require.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, server, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, status)
}
