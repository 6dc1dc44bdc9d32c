package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/itc-hub/sitecontrol/internal/auth"
	dbpkg "github.com/itc-hub/sitecontrol/internal/db"
	"github.com/itc-hub/sitecontrol/internal/models"
)

func TestStart_NilDB(t *testing.T) {
	err := Start(context.Background(), StartOpts{DB: nil})
	if err == nil {
		t.Fatal("expected error for nil db")
	}
	if !strings.Contains(err.Error(), "db is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db is required")
	}
}

func TestStart_NilAuth(t *testing.T) {
	conn, _ := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	err := Start(context.Background(), StartOpts{DB: conn})
	if err == nil {
		t.Fatal("expected error for nil auth service")
	}
	if !strings.Contains(err.Error(), "auth service is required") {
		t.Errorf("error = %q", err.Error())
	}
}

// testRouter builds the full route tree over an in-memory database.
func testRouter(t *testing.T) (*gin.Engine, *gorm.DB, *auth.Service) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := dbpkg.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc := auth.NewService(conn, "test-secret", time.Minute, time.Hour)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, deps{db: conn, auth: svc})
	return router, conn, svc
}

func seedUser(t *testing.T, conn *gorm.DB, role models.Role, password string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := models.User{
		ID:           uuid.New().String(),
		Email:        fmt.Sprintf("%s-%s@example.com", role, uuid.New().String()[:8]),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		DateJoined:   time.Now(),
	}
	if err := conn.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &u
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	router, _, _ := testRouter(t)

	w := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestLogin_RoundTrip(t *testing.T) {
	router, conn, _ := testRouter(t)
	u := seedUser(t, conn, models.RoleAdmin, "hunter2-hunter2")

	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    u.Email,
		"password": "hunter2-hunter2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		User         struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("tokens missing from login response")
	}
	if resp.User.Email != u.Email {
		t.Errorf("user.email = %q", resp.User.Email)
	}

	// The access token opens the authed surface.
	w = doJSON(t, router, http.MethodGet, "/api/v1/auth/me", resp.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: status = %d, body = %s", w.Code, w.Body.String())
	}

	// Refresh rotates the pair.
	w = doJSON(t, router, http.MethodPost, "/api/v1/auth/refresh", "", gin.H{
		"refresh_token": resp.RefreshToken,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	router, conn, _ := testRouter(t)
	u := seedUser(t, conn, models.RoleSSK, "correct-password")

	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    u.Email,
		"password": "wrong-password",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	router, _, _ := testRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "a@b.c"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAuthedRoutes_RejectAnonymous(t *testing.T) {
	router, _, _ := testRouter(t)

	for _, path := range []string{
		"/api/v1/auth/me",
		"/api/v1/objects",
		"/api/v1/prescriptions",
		"/api/v1/deliveries",
	} {
		w := doJSON(t, router, http.MethodGet, path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", path, w.Code)
		}
	}
}

func TestAuthedRoutes_RejectGarbageToken(t *testing.T) {
	router, _, _ := testRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/auth/me", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestObjectLifecycle_OverHTTP(t *testing.T) {
	router, conn, svc := testRouter(t)
	admin := seedUser(t, conn, models.RoleAdmin, "admin-password")
	foreman := seedUser(t, conn, models.RoleForeman, "foreman-password")

	pair, _, err := svc.Login(admin.Email, "admin-password", auth.LoginMeta{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	token := pair.AccessToken

	w := doJSON(t, router, http.MethodPost, "/api/v1/objects", token, gin.H{
		"name":    "Tower A",
		"address": "12 Quay St",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", w.Code, w.Body.String())
	}
	var created struct {
		ID     uint   `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != models.ObjectDraft {
		t.Errorf("status = %q, want draft", created.Status)
	}

	// Assigning a holder of the wrong role maps to 400.
	w = doJSON(t, router, http.MethodPatch, fmt.Sprintf("/api/v1/objects/%d/roles", created.ID), token, gin.H{
		"ssk_id": foreman.ID,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad assign: status = %d, body = %s", w.Code, w.Body.String())
	}

	// Unknown object maps to 404.
	w = doJSON(t, router, http.MethodGet, "/api/v1/objects/99999", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing object: status = %d", w.Code)
	}

	// Suspending a draft object maps to 409.
	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/objects/%d/suspend", created.ID), token, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("suspend draft: status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestForbidden_MapsTo403(t *testing.T) {
	router, conn, svc := testRouter(t)
	foreman := seedUser(t, conn, models.RoleForeman, "foreman-password")

	pair, _, err := svc.Login(foreman.Email, "foreman-password", auth.LoginMeta{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	w := doJSON(t, router, http.MethodPost, "/api/v1/objects", pair.AccessToken, gin.H{
		"name": "Tower B",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}
