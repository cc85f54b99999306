package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ion7/api/v1/middleware"
	"ion7/internal/auth"
	"ion7/internal/config"
	"ion7/internal/httpx"
	"ion7/internal/model"
)

type fakeMailer struct {
	sent    []string
	lastTok string
	err     error
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, to, token string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	f.lastTok = token
	return nil
}

func testDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&model.Account{}, &model.Domain{}, &model.PasswordResetToken{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:        "test-secret",
			ExpireMinutes: 60,
			Issuer:        "test",
		},
	}
}

func setupRouter(t *testing.T, db *gorm.DB, mailer ResetMailer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth.InitJWT("test-secret")

	h := NewHandler(db, testConfig(), mailer)
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/forgot-password", h.ForgotPassword)
	r.POST("/auth/reset-password", h.ResetPassword)
	r.GET("/me", middleware.AuthRequired(), h.Me)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, httpx.Response) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp httpx.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return w, resp
}

func TestRegisterLoginMe(t *testing.T) {
	db := testDB(t)
	r := setupRouter(t, db, &fakeMailer{})

	w, resp := doJSON(t, r, "POST", "/auth/register", gin.H{
		"name":     "Test User",
		"email":    "user@example.com",
		"password": "longenough",
	}, nil)
	if w.Code != http.StatusOK || resp.Code != httpx.CodeSuccess {
		t.Fatalf("Register failed: status=%d code=%d msg=%s", w.Code, resp.Code, resp.Message)
	}

	w, resp = doJSON(t, r, "POST", "/auth/login", gin.H{
		"email":    "user@example.com",
		"password": "longenough",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Login failed: status=%d msg=%s", w.Code, resp.Message)
	}

	data := resp.Data.(map[string]any)
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatal("Expected a token in login response")
	}
	accountID := int(data["account"].(map[string]any)["id"].(float64))

	domain := &model.Domain{Name: "mine.com", Status: model.DomainStatusActive, AccountID: accountID}
	if err := db.Create(domain).Error; err != nil {
		t.Fatalf("Failed to create domain: %v", err)
	}

	w, resp = doJSON(t, r, "GET", "/me", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Me failed: status=%d msg=%s", w.Code, resp.Message)
	}
	me := resp.Data.(map[string]any)
	if me["email"] != "user@example.com" {
		t.Errorf("Unexpected me response: %+v", me)
	}
	domains, _ := me["domains"].([]any)
	if len(domains) != 1 {
		t.Fatalf("Expected 1 domain in profile, got %+v", me["domains"])
	}
	first := domains[0].(map[string]any)
	if first["name"] != "mine.com" || first["status"] != "active" {
		t.Errorf("Unexpected domain summary: %+v", first)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	db := testDB(t)
	r := setupRouter(t, db, &fakeMailer{})

	doJSON(t, r, "POST", "/auth/register", gin.H{
		"name":     "Test User",
		"email":    "user@example.com",
		"password": "longenough",
	}, nil)

	w, resp := doJSON(t, r, "POST", "/auth/login", gin.H{
		"email":    "user@example.com",
		"password": "wrongpassword",
	}, nil)
	if w.Code != http.StatusUnauthorized || resp.Code != httpx.CodeUnauthorized {
		t.Errorf("Expected 401/%d, got %d/%d", httpx.CodeUnauthorized, w.Code, resp.Code)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	db := testDB(t)
	r := setupRouter(t, db, &fakeMailer{})

	body := gin.H{"name": "U", "email": "dup@example.com", "password": "longenough"}
	doJSON(t, r, "POST", "/auth/register", body, nil)
	w, resp := doJSON(t, r, "POST", "/auth/register", body, nil)
	if w.Code != http.StatusConflict || resp.Code != httpx.CodeAlreadyExists {
		t.Errorf("Expected 409/%d, got %d/%d", httpx.CodeAlreadyExists, w.Code, resp.Code)
	}
}

func TestForgotPassword_UnknownEmailLooksIdentical(t *testing.T) {
	db := testDB(t)
	mailer := &fakeMailer{}
	r := setupRouter(t, db, mailer)

	w, resp := doJSON(t, r, "POST", "/auth/forgot-password", gin.H{
		"email": "nobody@example.com",
	}, nil)
	if w.Code != http.StatusOK || resp.Code != httpx.CodeSuccess {
		t.Errorf("Unknown email must still answer success, got %d/%d", w.Code, resp.Code)
	}
	if len(mailer.sent) != 0 {
		t.Error("No email should be sent for unknown addresses")
	}
}

func TestForgotPassword_SendFailureLooksIdentical(t *testing.T) {
	db := testDB(t)
	mailer := &fakeMailer{err: fmt.Errorf("mail provider unavailable")}
	r := setupRouter(t, db, mailer)

	doJSON(t, r, "POST", "/auth/register", gin.H{
		"name": "U", "email": "user@example.com", "password": "longenough",
	}, nil)

	wUnknown, respUnknown := doJSON(t, r, "POST", "/auth/forgot-password", gin.H{
		"email": "nobody@example.com",
	}, nil)
	wKnown, respKnown := doJSON(t, r, "POST", "/auth/forgot-password", gin.H{
		"email": "user@example.com",
	}, nil)

	// A send failure is only reachable for existing accounts; the
	// response must stay indistinguishable from the unknown-email one
	if wKnown.Code != http.StatusOK || respKnown.Code != httpx.CodeSuccess {
		t.Errorf("Send failure must still answer success, got %d/%d", wKnown.Code, respKnown.Code)
	}
	if wKnown.Code != wUnknown.Code || respKnown.Message != respUnknown.Message {
		t.Errorf("Responses differ: known=%d %q unknown=%d %q",
			wKnown.Code, respKnown.Message, wUnknown.Code, respUnknown.Message)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	db := testDB(t)
	mailer := &fakeMailer{}
	r := setupRouter(t, db, mailer)

	doJSON(t, r, "POST", "/auth/register", gin.H{
		"name":     "U",
		"email":    "user@example.com",
		"password": "oldpassword",
	}, nil)

	w, _ := doJSON(t, r, "POST", "/auth/forgot-password", gin.H{
		"email": "user@example.com",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Forgot password failed: %d", w.Code)
	}
	if len(mailer.sent) != 1 || mailer.lastTok == "" {
		t.Fatalf("Expected one reset email with a token, got %+v", mailer)
	}

	w, resp := doJSON(t, r, "POST", "/auth/reset-password", gin.H{
		"token":    mailer.lastTok,
		"password": "newpassword",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Reset failed: %d %s", w.Code, resp.Message)
	}

	// Old password no longer works, new one does
	w, _ = doJSON(t, r, "POST", "/auth/login", gin.H{
		"email": "user@example.com", "password": "oldpassword",
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Old password must be rejected, got %d", w.Code)
	}
	w, _ = doJSON(t, r, "POST", "/auth/login", gin.H{
		"email": "user@example.com", "password": "newpassword",
	}, nil)
	if w.Code != http.StatusOK {
		t.Errorf("New password must work, got %d", w.Code)
	}

	// Token is single use
	w, _ = doJSON(t, r, "POST", "/auth/reset-password", gin.H{
		"token":    mailer.lastTok,
		"password": "anotherpassword",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Used token must be rejected, got %d", w.Code)
	}
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	db := testDB(t)
	r := setupRouter(t, db, &fakeMailer{})

	doJSON(t, r, "POST", "/auth/register", gin.H{
		"name": "U", "email": "user@example.com", "password": "oldpassword",
	}, nil)

	db.Create(&model.PasswordResetToken{
		Email:     "user@example.com",
		Token:     "expiredtoken",
		ExpiresAt: time.Now().Add(-time.Minute),
	})

	w, _ := doJSON(t, r, "POST", "/auth/reset-password", gin.H{
		"token":    "expiredtoken",
		"password": "newpassword",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expired token must be rejected, got %d", w.Code)
	}
}
