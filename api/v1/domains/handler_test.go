package domains

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
	stripe "github.com/stripe/stripe-go/v76"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ion7/api/v1/middleware"
	"ion7/internal/auth"
	"ion7/internal/billing"
	"ion7/internal/httpx"
	"ion7/internal/lifecycle"
	"ion7/internal/model"
	"ion7/internal/registrar"
)

type fakeRegistrar struct {
	checks map[string]*registrar.DomainCheck
}

func (f *fakeRegistrar) CheckDomain(_ context.Context, name, extension string) (*registrar.DomainCheck, error) {
	check, ok := f.checks[name+"."+extension]
	if !ok {
		return nil, fmt.Errorf("no check configured for %s.%s", name, extension)
	}
	return check, nil
}

func (f *fakeRegistrar) CheckDomains(ctx context.Context, name string, extensions []string) ([]registrar.DomainCheck, error) {
	results := make([]registrar.DomainCheck, 0, len(extensions))
	for _, ext := range extensions {
		check, err := f.CheckDomain(ctx, name, ext)
		if err != nil {
			continue
		}
		results = append(results, *check)
	}
	return results, nil
}

func (f *fakeRegistrar) RegisterDomain(_ context.Context, name, extension string) (int64, error) {
	return 42, nil
}

func (f *fakeRegistrar) TransferDomain(_ context.Context, name, extension, authCode string) (int64, error) {
	return 43, nil
}

func (f *fakeRegistrar) RenewDomain(_ context.Context, registrarID int64) error {
	return nil
}

type fakeBilling struct{}

func (f *fakeBilling) CreateCustomer(_ context.Context, email string) (string, error) {
	return "cus_test", nil
}

func (f *fakeBilling) NewDomainCheckout(_ context.Context, p billing.DomainCheckoutParams) (*stripe.CheckoutSession, error) {
	return &stripe.CheckoutSession{URL: "https://checkout.example/session"}, nil
}

func testDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&model.Account{}, &model.Domain{}, &model.Site{}, &model.Email{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func setupRouter(t *testing.T, db *gorm.DB, reg *fakeRegistrar) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth.InitJWT("test-secret")

	svc := lifecycle.NewService(db, reg, &fakeBilling{}, "https://panel.example")
	h := NewHandler(db, svc, reg)

	r := gin.New()
	g := r.Group("/domains", middleware.AuthRequired())
	g.GET("", h.List)
	g.GET("/check", h.Check)
	g.POST("/register", h.Register)
	g.POST("/transfer", h.Transfer)
	g.GET("/:id", h.Get)
	g.GET("/:id/renew", h.RenewQuote)
	g.POST("/:id/renew", h.Renew)
	return r
}

func createAccount(t *testing.T, db *gorm.DB, plan string, status model.AccountStatus) (*model.Account, string) {
	account := &model.Account{
		Name:   "Test User",
		Email:  fmt.Sprintf("u%d@example.com", time.Now().UnixNano()),
		Plan:   plan,
		Status: status,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	token, err := auth.GenerateToken(account.ID, account.Email, time.Now().Add(time.Hour), "test")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return account, token
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
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp httpx.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return w, resp
}

func TestCheck_ReturnsLocalizedPricing(t *testing.T) {
	db := testDB(t)
	reg := &fakeRegistrar{checks: map[string]*registrar.DomainCheck{
		"example.com": {Domain: "example.com", Status: "free", PriceEUR: 10, HasPrice: true},
		"example.net": {Domain: "example.net", Status: "active", PriceEUR: 20, HasPrice: true},
	}}
	r := setupRouter(t, db, reg)
	_, token := createAccount(t, db, "pro", model.AccountStatusActive)

	w, resp := doJSON(t, r, "GET", "/domains/check?q=example&extensions=com,net", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Check failed: %d %s", w.Code, resp.Message)
	}

	data := resp.Data.(map[string]any)
	results := data["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	first := results[0].(map[string]any)
	if first["domain"] != "example.com" || first["available"] != true {
		t.Errorf("Unexpected first result: %+v", first)
	}
	// 10 EUR * 3.97 = 39.70 AED, inside the 50 AED credit
	if first["priceAed"].(float64) != 39.70 || first["coveredByCredit"] != true {
		t.Errorf("Unexpected pricing: %+v", first)
	}

	second := results[1].(map[string]any)
	if second["available"] != false {
		t.Errorf("Taken domain must not be available: %+v", second)
	}
	if second["chargeAmountAed"].(float64) != 29.40 {
		t.Errorf("Expected charge 29.40, got %v", second["chargeAmountAed"])
	}
}

func TestRegister_FrozenAccountBlocked(t *testing.T) {
	db := testDB(t)
	reg := &fakeRegistrar{checks: map[string]*registrar.DomainCheck{}}
	r := setupRouter(t, db, reg)
	_, token := createAccount(t, db, "pro", model.AccountStatusFrozen)

	w, resp := doJSON(t, r, "POST", "/domains/register", token, gin.H{
		"name": "example", "extension": "com",
	})
	if w.Code != http.StatusForbidden || resp.Code != httpx.CodeFrozen {
		t.Errorf("Expected 403/%d, got %d/%d", httpx.CodeFrozen, w.Code, resp.Code)
	}
}

func TestRegister_NoPlanBlocked(t *testing.T) {
	db := testDB(t)
	reg := &fakeRegistrar{checks: map[string]*registrar.DomainCheck{}}
	r := setupRouter(t, db, reg)
	_, token := createAccount(t, db, "", model.AccountStatusActive)

	w, resp := doJSON(t, r, "POST", "/domains/register", token, gin.H{
		"name": "example", "extension": "com",
	})
	if w.Code != http.StatusForbidden || resp.Code != httpx.CodeForbidden {
		t.Errorf("Expected 403/%d, got %d/%d", httpx.CodeForbidden, w.Code, resp.Code)
	}
}

func TestRegister_OwedAmountReturnsCheckoutURL(t *testing.T) {
	db := testDB(t)
	reg := &fakeRegistrar{checks: map[string]*registrar.DomainCheck{
		"pricey.com": {Domain: "pricey.com", Status: "free", PriceEUR: 20, HasPrice: true},
	}}
	r := setupRouter(t, db, reg)
	_, token := createAccount(t, db, "pro", model.AccountStatusActive)

	w, resp := doJSON(t, r, "POST", "/domains/register", token, gin.H{
		"name": "pricey", "extension": "com",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Register failed: %d %s", w.Code, resp.Message)
	}
	data := resp.Data.(map[string]any)
	if data["checkoutUrl"] != "https://checkout.example/session" {
		t.Errorf("Expected checkout URL, got %+v", data)
	}
	if data["registered"] != false {
		t.Error("Domain must not be registered before payment")
	}
}

func TestGet_OtherAccountsDomainForbidden(t *testing.T) {
	db := testDB(t)
	reg := &fakeRegistrar{checks: map[string]*registrar.DomainCheck{}}
	r := setupRouter(t, db, reg)

	owner, _ := createAccount(t, db, "pro", model.AccountStatusActive)
	_, intruderToken := createAccount(t, db, "pro", model.AccountStatusActive)

	domain := &model.Domain{Name: "owned.com", Status: model.DomainStatusActive, AccountID: owner.ID}
	db.Create(domain)

	w, resp := doJSON(t, r, "GET", fmt.Sprintf("/domains/%d", domain.ID), intruderToken, nil)
	if w.Code != http.StatusForbidden || resp.Code != httpx.CodeForbidden {
		t.Errorf("Expected 403/%d, got %d/%d", httpx.CodeForbidden, w.Code, resp.Code)
	}
}

func TestRenewQuote_ReturnsReQuotedPrice(t *testing.T) {
	db := testDB(t)
	reg := &fakeRegistrar{checks: map[string]*registrar.DomainCheck{
		"owned.com": {Domain: "owned.com", Status: "active", PriceEUR: 20, HasPrice: true},
	}}
	r := setupRouter(t, db, reg)
	account, token := createAccount(t, db, "pro", model.AccountStatusActive)

	registrarID := int64(7)
	domain := &model.Domain{Name: "owned.com", Status: model.DomainStatusActive, RegistrarID: &registrarID, AccountID: account.ID}
	db.Create(domain)

	w, resp := doJSON(t, r, "GET", fmt.Sprintf("/domains/%d/renew", domain.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Quote failed: %d %s", w.Code, resp.Message)
	}
	data := resp.Data.(map[string]any)
	if data["renewalPriceAed"].(float64) != 79.40 || data["chargeAmountAed"].(float64) != 29.40 {
		t.Errorf("Unexpected quote: %+v", data)
	}
	if data["isFree"] != false {
		t.Errorf("Quote must not be free: %+v", data)
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	db := testDB(t)
	r := setupRouter(t, db, &fakeRegistrar{})

	w, resp := doJSON(t, r, "GET", "/domains", "", nil)
	if w.Code != http.StatusUnauthorized || resp.Code != httpx.CodeUnauthorized {
		t.Errorf("Expected 401/%d, got %d/%d", httpx.CodeUnauthorized, w.Code, resp.Code)
	}
}
