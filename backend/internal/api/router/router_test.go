package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"madrassa/backend/config"
	"madrassa/backend/internal/api/handler"
	"madrassa/backend/internal/job"
	"madrassa/backend/internal/model"
	"madrassa/backend/internal/repository"
	"madrassa/backend/internal/service"
	"madrassa/backend/internal/timetable"
	"madrassa/backend/pkg/jwt"
	"madrassa/backend/pkg/response"
)

// ── 测试辅助 ──

type memoryBlacklist struct {
	jtis map[string]bool
}

func (m *memoryBlacklist) BlacklistToken(_ context.Context, jti string, _ time.Duration) error {
	m.jtis[jti] = true
	return nil
}

func (m *memoryBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return m.jtis[jti], nil
}

type testApp struct {
	engine *gin.Engine
	jwt    *jwt.Manager
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8080, BodyLimit: 1 << 20},
		Auth: config.AuthConfig{
			JWTSecret:       "router-test-secret-0123456789",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
			Bootstrap:       config.BootstrapConfig{Username: "admin", Password: "admin123456"},
		},
		Timetable: config.TimetableConfig{Persistence: "memory", OccupancyPolicy: "reject", SeedDemo: true},
	}
	logger := zap.NewNop()
	jwtMgr := jwt.NewManager(&cfg.Auth)
	bl := &memoryBlacklist{jtis: make(map[string]bool)}

	svc, err := service.NewService(cfg, timetable.DefaultCatalog(), repository.NewMemoryRepository(), jwtMgr, bl, logger)
	if err != nil {
		t.Fatalf("NewService 失败: %v", err)
	}
	if err := svc.Timetable.Init(context.Background()); err != nil {
		t.Fatalf("Init 失败: %v", err)
	}
	if err := svc.Auth.EnsureBootstrapAdmin(context.Background()); err != nil {
		t.Fatalf("EnsureBootstrapAdmin 失败: %v", err)
	}

	audit, err := job.NewConflictAudit(svc.Timetable, "@every 1h", logger)
	if err != nil {
		t.Fatalf("NewConflictAudit 失败: %v", err)
	}

	engine := Setup(cfg, Deps{
		Handler:   handler.NewHandler(svc, audit, cfg.Timetable.Persistence),
		JWT:       jwtMgr,
		Blacklist: bl,
		Logger:    logger,
	})
	return &testApp{engine: engine, jwt: jwtMgr}
}

func (a *testApp) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func codeOf(w *httptest.ResponseRecorder) int {
	var resp response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.Code
}

func (a *testApp) login(t *testing.T) string {
	t.Helper()
	w := a.do(http.MethodPost, "/api/v1/auth/login", "", `{"username":"admin","password":"admin123456"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("登录失败: %d %s", w.Code, w.Body.String())
	}
	var env struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return env.Data.AccessToken
}

// ── 测试 ──

func TestRouter_Health(t *testing.T) {
	app := setupApp(t)
	w := app.do(http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("响应应包含 X-Request-ID")
	}
}

func TestRouter_RequiresAuth(t *testing.T) {
	app := setupApp(t)
	w := app.do(http.MethodGet, "/api/v1/timetable/slots", "", "")
	if w.Code != http.StatusUnauthorized || codeOf(w) != 10002 {
		t.Errorf("expected 401/10002, got %d/%d", w.Code, codeOf(w))
	}
}

func TestRouter_AdminFlow(t *testing.T) {
	app := setupApp(t)
	token := app.login(t)

	w := app.do(http.MethodGet, "/api/v1/timetable/view?class=5A", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("view: expected 200, got %d", w.Code)
	}

	body := `{"subject":"EPS","teacher":"Julien Roux","room":"Gymnase","class":"4B","day":1,"hour":"15:00"}`
	w = app.do(http.MethodPost, "/api/v1/timetable/slots", token, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d %s", w.Code, w.Body.String())
	}

	w = app.do(http.MethodGet, "/api/v1/timetable/audit", token, "")
	if w.Code != http.StatusOK {
		t.Errorf("audit: expected 200, got %d", w.Code)
	}
}

func TestRouter_ViewerCannotWrite(t *testing.T) {
	app := setupApp(t)
	token, err := app.jwt.GenerateAccessToken("viewer-1", "viewer", model.RoleViewer)
	if err != nil {
		t.Fatalf("GenerateAccessToken 失败: %v", err)
	}

	w := app.do(http.MethodGet, "/api/v1/timetable/conflicts", token, "")
	if w.Code != http.StatusOK {
		t.Errorf("viewer read: expected 200, got %d", w.Code)
	}

	body := `{"subject":"EPS","teacher":"Julien Roux","room":"Gymnase","class":"4B","day":1,"hour":"15:00"}`
	w = app.do(http.MethodPost, "/api/v1/timetable/slots", token, body)
	if w.Code != http.StatusForbidden || codeOf(w) != 10003 {
		t.Errorf("viewer write: expected 403/10003, got %d/%d", w.Code, codeOf(w))
	}
}

func TestRouter_LogoutRevokesToken(t *testing.T) {
	app := setupApp(t)
	token := app.login(t)

	if w := app.do(http.MethodPost, "/api/v1/auth/logout", token, ""); w.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", w.Code)
	}
	w := app.do(http.MethodGet, "/api/v1/auth/me", token, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("revoked token: expected 401, got %d", w.Code)
	}
}

func TestRouter_RefreshTokenRejectedAsAccess(t *testing.T) {
	app := setupApp(t)
	refresh, _ := app.jwt.GenerateRefreshToken("u1", "admin", model.RoleAdmin)

	w := app.do(http.MethodGet, "/api/v1/auth/me", refresh, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("refresh token as access: expected 401, got %d", w.Code)
	}
}
