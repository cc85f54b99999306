package emails

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
	"ion7/internal/httpx"
	"ion7/internal/mailbox"
	"ion7/internal/model"
)

type fakeMailbox struct {
	created     []string
	deleted     []string
	createErr   error
	deleteErr   error
	storage     *mailbox.StorageUsage
	storageErr  error
	storageZUID string
}

func (f *fakeMailbox) CreateAccount(_ context.Context, address, password, displayName string) (*mailbox.MailAccount, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, address)
	return &mailbox.MailAccount{ZUID: "zuid-1", Address: address}, nil
}

func (f *fakeMailbox) DeleteAccount(_ context.Context, address string) error {
	f.deleted = append(f.deleted, address)
	return f.deleteErr
}

func (f *fakeMailbox) AccountStorage(_ context.Context, zohoAccountID string) (*mailbox.StorageUsage, error) {
	f.storageZUID = zohoAccountID
	return f.storage, f.storageErr
}

type fakeDNS struct {
	mxCalls []string
	mxErr   error
}

func (f *fakeDNS) EnsureZohoMX(_ context.Context, domainName string) error {
	if f.mxErr != nil {
		return f.mxErr
	}
	f.mxCalls = append(f.mxCalls, domainName)
	return nil
}

func testDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&model.Account{}, &model.Domain{}, &model.Email{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func setupRouter(t *testing.T, db *gorm.DB, mb *fakeMailbox, dns *fakeDNS) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth.InitJWT("test-secret")

	h := NewHandler(db, mb, dns)
	r := gin.New()
	g := r.Group("/domains", middleware.AuthRequired())
	g.GET("/:id/emails", h.List)
	g.POST("/:id/emails", h.Create)
	g.DELETE("/:id/emails/:emailId", h.Delete)
	g.GET("/:id/emails/:emailId/usage", h.Usage)
	return r
}

func createAccountWithDomain(t *testing.T, db *gorm.DB, plan string, status model.AccountStatus) (*model.Account, *model.Domain, string) {
	account := &model.Account{
		Name:   "Test User",
		Email:  fmt.Sprintf("u%d@example.com", time.Now().UnixNano()),
		Plan:   plan,
		Status: status,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	domain := &model.Domain{Name: "mysite.com", Status: model.DomainStatusActive, AccountID: account.ID}
	if err := db.Create(domain).Error; err != nil {
		t.Fatalf("Failed to create domain: %v", err)
	}
	token, err := auth.GenerateToken(account.ID, account.Email, time.Now().Add(time.Hour), "test")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return account, domain, token
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, httpx.Response) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp httpx.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return w, resp
}

func TestCreate_FirstMailboxConfiguresMX(t *testing.T) {
	db := testDB(t)
	mb := &fakeMailbox{}
	dns := &fakeDNS{}
	r := setupRouter(t, db, mb, dns)
	_, domain, token := createAccountWithDomain(t, db, "pro", model.AccountStatusActive)

	w, resp := doJSON(t, r, "POST", fmt.Sprintf("/domains/%d/emails", domain.ID), token, gin.H{
		"username": "info",
		"password": "longenough",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Create failed: %d %s", w.Code, resp.Message)
	}

	if len(dns.mxCalls) != 1 || dns.mxCalls[0] != "mysite.com" {
		t.Errorf("Expected MX setup for mysite.com, got %v", dns.mxCalls)
	}
	if len(mb.created) != 1 || mb.created[0] != "info@mysite.com" {
		t.Errorf("Expected provider mailbox info@mysite.com, got %v", mb.created)
	}

	// A second mailbox does not touch MX again
	doJSON(t, r, "POST", fmt.Sprintf("/domains/%d/emails", domain.ID), token, gin.H{
		"username": "sales",
		"password": "longenough",
	})
	if len(dns.mxCalls) != 1 {
		t.Errorf("MX setup must run only for the first mailbox, got %v", dns.mxCalls)
	}
}

func TestCreate_PlanQuotaEnforced(t *testing.T) {
	db := testDB(t)
	mb := &fakeMailbox{}
	r := setupRouter(t, db, mb, &fakeDNS{})
	_, domain, token := createAccountWithDomain(t, db, "basic", model.AccountStatusActive)

	// basic allows a single mailbox per domain
	w, _ := doJSON(t, r, "POST", fmt.Sprintf("/domains/%d/emails", domain.ID), token, gin.H{
		"username": "info", "password": "longenough",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("First mailbox should succeed: %d", w.Code)
	}

	w, resp := doJSON(t, r, "POST", fmt.Sprintf("/domains/%d/emails", domain.ID), token, gin.H{
		"username": "sales", "password": "longenough",
	})
	if w.Code != http.StatusConflict || resp.Code != httpx.CodeLimitExceeded {
		t.Fatalf("Expected 409/%d, got %d/%d", httpx.CodeLimitExceeded, w.Code, resp.Code)
	}
	detail := resp.Data.(map[string]any)
	if detail["error"] != "EMAIL_LIMIT_EXCEEDED" {
		t.Errorf("Expected structured quota error, got %+v", detail)
	}
	if len(mb.created) != 1 {
		t.Errorf("Provider must not be called past the quota, got %v", mb.created)
	}
}

func TestCreate_FrozenAccountBlocked(t *testing.T) {
	db := testDB(t)
	r := setupRouter(t, db, &fakeMailbox{}, &fakeDNS{})
	_, domain, token := createAccountWithDomain(t, db, "pro", model.AccountStatusFrozen)

	w, resp := doJSON(t, r, "POST", fmt.Sprintf("/domains/%d/emails", domain.ID), token, gin.H{
		"username": "info", "password": "longenough",
	})
	if w.Code != http.StatusForbidden || resp.Code != httpx.CodeFrozen {
		t.Errorf("Expected 403/%d, got %d/%d", httpx.CodeFrozen, w.Code, resp.Code)
	}
}

func TestDelete_ProviderFailureStillRemovesRow(t *testing.T) {
	db := testDB(t)
	mb := &fakeMailbox{deleteErr: fmt.Errorf("provider down")}
	r := setupRouter(t, db, mb, &fakeDNS{})
	_, domain, token := createAccountWithDomain(t, db, "pro", model.AccountStatusActive)

	email := &model.Email{Address: "info@mysite.com", ZohoAccountID: "zuid-1", DomainID: domain.ID}
	db.Create(email)

	w, _ := doJSON(t, r, "DELETE", fmt.Sprintf("/domains/%d/emails/%d", domain.ID, email.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Delete must succeed despite provider failure: %d", w.Code)
	}

	var count int64
	db.Model(&model.Email{}).Count(&count)
	if count != 0 {
		t.Errorf("Local row must be removed, got %d rows", count)
	}
}

func TestUsage_ReturnsProviderNumbers(t *testing.T) {
	db := testDB(t)
	mb := &fakeMailbox{storage: &mailbox.StorageUsage{UsedMB: 120, TotalMB: 5120}}
	r := setupRouter(t, db, mb, &fakeDNS{})
	_, domain, token := createAccountWithDomain(t, db, "pro", model.AccountStatusActive)

	email := &model.Email{Address: "info@mysite.com", ZohoAccountID: "zuid-9", DomainID: domain.ID}
	db.Create(email)

	w, resp := doJSON(t, r, "GET", fmt.Sprintf("/domains/%d/emails/%d/usage", domain.ID, email.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Usage failed: %d %s", w.Code, resp.Message)
	}
	if mb.storageZUID != "zuid-9" {
		t.Errorf("Expected provider lookup by zuid-9, got %q", mb.storageZUID)
	}
}
