package sweep

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ion7/internal/model"
	"ion7/internal/registrar"
)

func testDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&model.Account{}, &model.Domain{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

type fakeRegistrar struct {
	checks     map[string]*registrar.DomainCheck
	checkErr   error
	renewErr   error
	renewCalls []int64
	states     map[int64]*registrar.DomainState
}

func (f *fakeRegistrar) CheckDomain(_ context.Context, name, extension string) (*registrar.DomainCheck, error) {
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	check, ok := f.checks[name+"."+extension]
	if !ok {
		return nil, fmt.Errorf("no check configured for %s.%s", name, extension)
	}
	return check, nil
}

func (f *fakeRegistrar) RenewDomain(_ context.Context, registrarID int64) error {
	f.renewCalls = append(f.renewCalls, registrarID)
	return f.renewErr
}

func (f *fakeRegistrar) DomainStatus(_ context.Context, registrarID int64) (*registrar.DomainState, error) {
	state, ok := f.states[registrarID]
	if !ok {
		return nil, fmt.Errorf("no state configured for %d", registrarID)
	}
	return state, nil
}

func createAccount(t *testing.T, db *gorm.DB, plan string, status model.AccountStatus) *model.Account {
	account := &model.Account{
		Name:   "Test User",
		Email:  fmt.Sprintf("u%d@example.com", time.Now().UnixNano()),
		Plan:   plan,
		Status: status,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	return account
}

func createDomain(t *testing.T, db *gorm.DB, accountID int, name string, status model.DomainStatus, registrarID int64, expiresAt *time.Time) *model.Domain {
	domain := &model.Domain{
		Name:        name,
		Status:      status,
		RegistrarID: &registrarID,
		AccountID:   accountID,
		ExpiresAt:   expiresAt,
	}
	if err := db.Create(domain).Error; err != nil {
		t.Fatalf("Failed to create domain: %v", err)
	}
	return domain
}

func TestRenewalSweep_RenewsCoveredDomain(t *testing.T) {
	db := testDB(t)
	account := createAccount(t, db, "pro", model.AccountStatusActive)

	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	expiry := now.AddDate(0, 0, 10)
	domain := createDomain(t, db, account.ID, "cheap.com", model.DomainStatusActive, 101, &expiry)

	reg := &fakeRegistrar{checks: map[string]*registrar.DomainCheck{
		// 10 EUR renews to 39.70 AED, fully inside the 50 AED credit
		"cheap.com": {Domain: "cheap.com", Status: "active", PriceEUR: 10, HasPrice: true},
	}}

	s := NewRenewalSweep(db, reg, 30)
	s.now = func() time.Time { return now }

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(report.Renewed) != 1 || report.Renewed[0].Domain != "cheap.com" {
		t.Fatalf("Expected cheap.com renewed, got %+v", report.Renewed)
	}
	if len(reg.renewCalls) != 1 || reg.renewCalls[0] != 101 {
		t.Errorf("Expected renew call for registrar ID 101, got %v", reg.renewCalls)
	}

	var reloaded model.Domain
	db.First(&reloaded, domain.ID)
	want := expiry.AddDate(1, 0, 0)
	if reloaded.ExpiresAt == nil || !reloaded.ExpiresAt.Equal(want) {
		t.Errorf("Expected expiry %v, got %v", want, reloaded.ExpiresAt)
	}
}

func TestRenewalSweep_SkipsDomainThatOwesMoney(t *testing.T) {
	db := testDB(t)
	account := createAccount(t, db, "pro", model.AccountStatusActive)

	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	expiry := now.AddDate(0, 0, 5)
	domain := createDomain(t, db, account.ID, "pricey.com", model.DomainStatusActive, 102, &expiry)

	reg := &fakeRegistrar{checks: map[string]*registrar.DomainCheck{
		// 20 EUR renews to 79.40 AED, owing 29.40 after credit
		"pricey.com": {Domain: "pricey.com", Status: "active", PriceEUR: 20, HasPrice: true},
	}}

	s := NewRenewalSweep(db, reg, 30)
	s.now = func() time.Time { return now }

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(report.Skipped) != 1 {
		t.Fatalf("Expected 1 skipped domain, got %+v", report.Skipped)
	}
	if report.Skipped[0].ChargeAED != 29.40 {
		t.Errorf("Expected charge 29.40, got %v", report.Skipped[0].ChargeAED)
	}
	if len(reg.renewCalls) != 0 {
		t.Error("Sweep must never renew a domain that owes money")
	}

	var reloaded model.Domain
	db.First(&reloaded, domain.ID)
	if reloaded.ExpiresAt == nil || !reloaded.ExpiresAt.Equal(expiry) {
		t.Errorf("Expiry must be unchanged, got %v", reloaded.ExpiresAt)
	}
}

func TestRenewalSweep_IgnoresDomainsOutsideWindowAndUnsubscribed(t *testing.T) {
	db := testDB(t)
	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	subscribed := createAccount(t, db, "pro", model.AccountStatusActive)
	farExpiry := now.AddDate(0, 6, 0)
	createDomain(t, db, subscribed.ID, "far.com", model.DomainStatusActive, 103, &farExpiry)

	unsubscribed := createAccount(t, db, "", model.AccountStatusActive)
	soonExpiry := now.AddDate(0, 0, 3)
	createDomain(t, db, unsubscribed.ID, "noplan.com", model.DomainStatusActive, 104, &soonExpiry)

	frozen := createAccount(t, db, "pro", model.AccountStatusFrozen)
	createDomain(t, db, frozen.ID, "frozen.com", model.DomainStatusActive, 105, &soonExpiry)

	reg := &fakeRegistrar{checks: map[string]*registrar.DomainCheck{}}
	s := NewRenewalSweep(db, reg, 30)
	s.now = func() time.Time { return now }

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if report.Checked != 0 {
		t.Errorf("Expected no domains checked, got %d", report.Checked)
	}
}

func TestRenewalSweep_SkipsDomainWithoutQuotedPrice(t *testing.T) {
	db := testDB(t)
	account := createAccount(t, db, "pro", model.AccountStatusActive)

	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	expiry := now.AddDate(0, 0, 7)
	createDomain(t, db, account.ID, "unquoted.com", model.DomainStatusActive, 107, &expiry)

	reg := &fakeRegistrar{checks: map[string]*registrar.DomainCheck{
		"unquoted.com": {Domain: "unquoted.com", Status: "active", HasPrice: false},
	}}

	s := NewRenewalSweep(db, reg, 30)
	s.now = func() time.Time { return now }

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Domain != "unquoted.com" {
		t.Fatalf("Expected unquoted.com skipped, got %+v", report.Skipped)
	}
	if report.Skipped[0].Reason == "" {
		t.Error("Expected a skip reason for the missing price")
	}
	if len(report.Failed) != 0 {
		t.Errorf("A missing price is not a failure, got %+v", report.Failed)
	}
	if len(reg.renewCalls) != 0 {
		t.Error("No renewal expected without a quoted price")
	}
}

func TestRenewalSweep_RecordsFailures(t *testing.T) {
	db := testDB(t)
	account := createAccount(t, db, "pro", model.AccountStatusActive)

	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	expiry := now.AddDate(0, 0, 2)
	createDomain(t, db, account.ID, "broken.com", model.DomainStatusActive, 106, &expiry)

	reg := &fakeRegistrar{checkErr: fmt.Errorf("registrar unavailable")}
	s := NewRenewalSweep(db, reg, 30)
	s.now = func() time.Time { return now }

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(report.Failed) != 1 || report.Failed[0].Domain != "broken.com" {
		t.Errorf("Expected broken.com in failed list, got %+v", report.Failed)
	}
}

func TestTransferSweep_CompletesActiveTransfer(t *testing.T) {
	db := testDB(t)
	account := createAccount(t, db, "pro", model.AccountStatusActive)
	domain := createDomain(t, db, account.ID, "moved.com", model.DomainStatusPending, 201, nil)

	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	registrarExpiry := now.AddDate(1, 2, 0)
	reg := &fakeRegistrar{states: map[int64]*registrar.DomainState{
		201: {Status: registrar.StatusActive, ExpiresAt: &registrarExpiry},
	}}

	s := NewTransferSweep(db, reg)
	s.now = func() time.Time { return now }

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(report.Completed) != 1 || report.Completed[0] != "moved.com" {
		t.Fatalf("Expected moved.com completed, got %+v", report.Completed)
	}

	var reloaded model.Domain
	db.First(&reloaded, domain.ID)
	if reloaded.Status != model.DomainStatusActive {
		t.Errorf("Expected active status, got %s", reloaded.Status)
	}
	if reloaded.RegisteredAt == nil {
		t.Error("Expected registered_at to be set")
	}
	if reloaded.ExpiresAt == nil || !reloaded.ExpiresAt.Equal(registrarExpiry) {
		t.Errorf("Expected registrar expiry %v, got %v", registrarExpiry, reloaded.ExpiresAt)
	}
}

func TestTransferSweep_MarksFailedTransfer(t *testing.T) {
	db := testDB(t)
	account := createAccount(t, db, "pro", model.AccountStatusActive)
	domain := createDomain(t, db, account.ID, "stuck.com", model.DomainStatusPending, 202, nil)

	reg := &fakeRegistrar{states: map[int64]*registrar.DomainState{
		202: {Status: registrar.StatusFailed},
	}}

	s := NewTransferSweep(db, reg)
	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(report.Failed) != 1 {
		t.Fatalf("Expected 1 failed transfer, got %+v", report.Failed)
	}

	var reloaded model.Domain
	db.First(&reloaded, domain.ID)
	if reloaded.Status != model.DomainStatusFailed {
		t.Errorf("Expected failed status, got %s", reloaded.Status)
	}
}

func TestTransferSweep_LeavesInProgressPending(t *testing.T) {
	db := testDB(t)
	account := createAccount(t, db, "pro", model.AccountStatusActive)
	domain := createDomain(t, db, account.ID, "slow.com", model.DomainStatusPending, 203, nil)

	reg := &fakeRegistrar{states: map[int64]*registrar.DomainState{
		203: {Status: registrar.StatusRequested},
	}}

	s := NewTransferSweep(db, reg)
	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(report.StillPending) != 1 || report.StillPending[0] != "slow.com" {
		t.Fatalf("Expected slow.com still pending, got %+v", report.StillPending)
	}

	var reloaded model.Domain
	db.First(&reloaded, domain.ID)
	if reloaded.Status != model.DomainStatusPending {
		t.Errorf("Expected pending status, got %s", reloaded.Status)
	}
}
