package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"

	"ion7/internal/billing"
	"ion7/internal/model"
	"ion7/internal/plans"
	"ion7/internal/pricing"
	"ion7/internal/registrar"
)

// RegistrarGateway is the registrar surface the lifecycle controller needs
type RegistrarGateway interface {
	CheckDomain(ctx context.Context, name, extension string) (*registrar.DomainCheck, error)
	RegisterDomain(ctx context.Context, name, extension string) (int64, error)
	TransferDomain(ctx context.Context, name, extension, authCode string) (int64, error)
	RenewDomain(ctx context.Context, registrarID int64) error
}

// CheckoutGateway is the billing surface for one-time domain payments
type CheckoutGateway interface {
	CreateCustomer(ctx context.Context, email string) (string, error)
	NewDomainCheckout(ctx context.Context, p billing.DomainCheckoutParams) (*stripe.CheckoutSession, error)
}

// Service orchestrates domain registration, transfer, and renewal
type Service struct {
	db        *gorm.DB
	registrar RegistrarGateway
	billing   CheckoutGateway
	origin    string
	log       *logrus.Entry
	now       func() time.Time
}

// NewService creates a domain lifecycle service
func NewService(db *gorm.DB, reg RegistrarGateway, bill CheckoutGateway, origin string) *Service {
	return &Service{
		db:        db,
		registrar: reg,
		billing:   bill,
		origin:    origin,
		log:       logrus.WithField("component", "lifecycle"),
		now:       time.Now,
	}
}

// checkAccountGate verifies the account can start a paid domain action
func checkAccountGate(account *model.Account) error {
	if account.Frozen() {
		return ErrAccountFrozen
	}
	if !account.HasPlan() {
		return ErrNoPlan
	}
	return nil
}

func (s *Service) getAccount(accountID int) (*model.Account, error) {
	var account model.Account
	if err := s.db.First(&account, accountID).Error; err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return &account, nil
}

// getOwnedDomain loads a domain and enforces the ownership boundary
func (s *Service) getOwnedDomain(accountID, domainID int) (*model.Domain, error) {
	var domain model.Domain
	if err := s.db.First(&domain, domainID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load domain: %w", err)
	}
	if domain.AccountID != accountID {
		return nil, ErrForbidden
	}
	return &domain, nil
}

// ensureCustomer returns the account's billing customer ID, creating and
// persisting one if missing
func (s *Service) ensureCustomer(ctx context.Context, account *model.Account) (string, error) {
	if account.StripeCustomerID != "" {
		return account.StripeCustomerID, nil
	}

	customerID, err := s.billing.CreateCustomer(ctx, account.Email)
	if err != nil {
		return "", err
	}

	if err := s.db.Model(account).Update("stripe_customer_id", customerID).Error; err != nil {
		return "", fmt.Errorf("failed to persist customer ID: %w", err)
	}
	account.StripeCustomerID = customerID
	return customerID, nil
}

// extendExpiry returns the expiry one year past the later of now and the
// current expiry, so early renewals never lose paid time.
func (s *Service) extendExpiry(current *time.Time) time.Time {
	base := s.now()
	if current != nil && current.After(base) {
		base = *current
	}
	return base.AddDate(1, 0, 0)
}

func (s *Service) domainNameTaken(name string) (bool, error) {
	var count int64
	if err := s.db.Model(&model.Domain{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check domain: %w", err)
	}
	return count > 0, nil
}

// RegisterResult is the outcome of a registration request
type RegisterResult struct {
	Registered        bool          `json:"registered"`
	NeedsConfirmation bool          `json:"needsConfirmation"`
	CheckoutURL       string        `json:"checkoutUrl,omitempty"`
	Domain            *model.Domain `json:"domain,omitempty"`
	FullPriceAED      float64       `json:"fullPriceAed"`
	ChargeAED         float64       `json:"chargeAed"`
	CreditAED         float64       `json:"creditAed"`
}

// Register handles a registration request. The quoted price always comes
// from the registrar; client-side prices are ignored. Credit-covered
// registrations complete synchronously once confirmed; anything owed goes
// through a checkout session and is completed by the webhook reconciler.
func (s *Service) Register(ctx context.Context, accountID int, name, extension string, confirmed bool) (*RegisterResult, error) {
	account, err := s.getAccount(accountID)
	if err != nil {
		return nil, err
	}
	privileged := plans.Privileged(account.Plan)
	if !privileged {
		if err := checkAccountGate(account); err != nil {
			return nil, err
		}
	}

	fullName := name + "." + extension
	taken, err := s.domainNameTaken(fullName)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDomainExists
	}

	// Privileged accounts register without quoting or payment
	if privileged {
		domain, err := s.registerNow(ctx, accountID, name, extension)
		if err != nil {
			return nil, err
		}
		return &RegisterResult{Registered: true, Domain: domain, CreditAED: pricing.CreditAED}, nil
	}

	check, err := s.registrar.CheckDomain(ctx, name, extension)
	if err != nil {
		return nil, err
	}
	if check.Status != "free" {
		return nil, ErrDomainUnavailable
	}
	if !check.HasPrice {
		return nil, ErrPriceUnavailable
	}

	full := pricing.FullPriceAED(check.PriceEUR)
	owed := pricing.ChargeAED(check.PriceEUR)

	if owed <= 0 {
		if !confirmed {
			return &RegisterResult{
				NeedsConfirmation: true,
				FullPriceAED:      full,
				ChargeAED:         0,
				CreditAED:         pricing.CreditAED,
			}, nil
		}
		domain, err := s.registerNow(ctx, accountID, name, extension)
		if err != nil {
			return nil, err
		}
		return &RegisterResult{
			Registered:   true,
			Domain:       domain,
			FullPriceAED: full,
			CreditAED:    pricing.CreditAED,
		}, nil
	}

	customerID, err := s.ensureCustomer(ctx, account)
	if err != nil {
		return nil, err
	}

	session, err := s.billing.NewDomainCheckout(ctx, billing.DomainCheckoutParams{
		CustomerID:  customerID,
		AmountAED:   owed,
		Name:        "Domain Registration: " + fullName,
		Description: fmt.Sprintf("1 year registration for %s (%.2f AED credit applied)", fullName, pricing.CreditAED),
		Metadata: map[string]string{
			"type":             "registration",
			"domain_name":      name,
			"domain_extension": extension,
			"account_id":       fmt.Sprintf("%d", accountID),
		},
		SuccessURL: s.origin + "/dashboard/domains/registration-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.origin + "/dashboard/domains/search?q=" + url.QueryEscape(name),
	})
	if err != nil {
		return nil, err
	}

	return &RegisterResult{
		CheckoutURL:  session.URL,
		FullPriceAED: full,
		ChargeAED:    owed,
		CreditAED:    pricing.CreditAED,
	}, nil
}

// registerNow calls the registrar and writes the active Domain row. The
// row is written only after the registrar confirms the registration.
func (s *Service) registerNow(ctx context.Context, accountID int, name, extension string) (*model.Domain, error) {
	registrarID, err := s.registrar.RegisterDomain(ctx, name, extension)
	if err != nil {
		s.log.WithError(err).WithField("domain", name+"."+extension).Error("Domain registration failed")
		return nil, err
	}

	now := s.now()
	expires := now.AddDate(1, 0, 0)
	domain := &model.Domain{
		Name:         name + "." + extension,
		Status:       model.DomainStatusActive,
		RegistrarID:  &registrarID,
		RegisteredAt: &now,
		ExpiresAt:    &expires,
		AccountID:    accountID,
	}
	if err := s.db.Create(domain).Error; err != nil {
		return nil, fmt.Errorf("failed to create domain record: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"domain":       domain.Name,
		"registrar_id": registrarID,
		"account_id":   accountID,
	}).Info("Domain registered")
	return domain, nil
}

// TransferResult is the outcome of a transfer request
type TransferResult struct {
	Transferred  bool          `json:"transferred"`
	CheckoutURL  string        `json:"checkoutUrl,omitempty"`
	Domain       *model.Domain `json:"domain,omitempty"`
	FullPriceAED float64       `json:"fullPriceAed"`
	ChargeAED    float64       `json:"chargeAed"`
	CreditAED    float64       `json:"creditAed"`
}

// Transfer handles an inbound transfer request. The registrar must report
// the domain as taken; free names go through Register instead. A
// credit-covered transfer starts immediately and leaves the domain
// pending for the transfer sweep to complete.
func (s *Service) Transfer(ctx context.Context, accountID int, name, extension, authCode string) (*TransferResult, error) {
	account, err := s.getAccount(accountID)
	if err != nil {
		return nil, err
	}
	if err := checkAccountGate(account); err != nil {
		return nil, err
	}

	fullName := name + "." + extension
	taken, err := s.domainNameTaken(fullName)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDomainExists
	}

	check, err := s.registrar.CheckDomain(ctx, name, extension)
	if err != nil {
		return nil, err
	}
	if check.Status == "free" {
		return nil, ErrNotTransferable
	}
	if !check.HasPrice {
		return nil, ErrPriceUnavailable
	}

	full := pricing.FullPriceAED(check.PriceEUR)
	owed := pricing.ChargeAED(check.PriceEUR)

	if owed <= 0 {
		registrarID, err := s.registrar.TransferDomain(ctx, name, extension, authCode)
		if err != nil {
			s.log.WithError(err).WithField("domain", fullName).Error("Domain transfer failed")
			return nil, err
		}

		domain := &model.Domain{
			Name:        fullName,
			Status:      model.DomainStatusPending,
			RegistrarID: &registrarID,
			AccountID:   accountID,
		}
		if err := s.db.Create(domain).Error; err != nil {
			return nil, fmt.Errorf("failed to create domain record: %w", err)
		}

		s.log.WithFields(logrus.Fields{
			"domain":       fullName,
			"registrar_id": registrarID,
		}).Info("Domain transfer started")
		return &TransferResult{
			Transferred:  true,
			Domain:       domain,
			FullPriceAED: full,
			CreditAED:    pricing.CreditAED,
		}, nil
	}

	customerID, err := s.ensureCustomer(ctx, account)
	if err != nil {
		return nil, err
	}

	session, err := s.billing.NewDomainCheckout(ctx, billing.DomainCheckoutParams{
		CustomerID:  customerID,
		AmountAED:   owed,
		Name:        "Domain Transfer: " + fullName,
		Description: fmt.Sprintf("Transfer %s (includes 1 year renewal, %.2f AED credit applied)", fullName, pricing.CreditAED),
		Metadata: map[string]string{
			"type":             "transfer",
			"domain_name":      name,
			"domain_extension": extension,
			"auth_code":        authCode,
			"account_id":       fmt.Sprintf("%d", accountID),
		},
		SuccessURL: s.origin + "/dashboard/domains/transfer-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.origin + "/dashboard/domains/transfer",
	})
	if err != nil {
		return nil, err
	}

	return &TransferResult{
		CheckoutURL:  session.URL,
		FullPriceAED: full,
		ChargeAED:    owed,
		CreditAED:    pricing.CreditAED,
	}, nil
}

// RenewQuote is a price-only renewal check with no side effects
type RenewQuote struct {
	FullPriceAED float64 `json:"renewalPriceAed"`
	ChargeAED    float64 `json:"chargeAmountAed"`
	CreditAED    float64 `json:"creditAmount"`
	Free         bool    `json:"isFree"`
}

// Quote re-fetches the renewal price for an owned domain
func (s *Service) Quote(ctx context.Context, accountID, domainID int) (*RenewQuote, error) {
	domain, err := s.getOwnedDomain(accountID, domainID)
	if err != nil {
		return nil, err
	}

	name, extension := domain.SplitName()
	check, err := s.registrar.CheckDomain(ctx, name, extension)
	if err != nil {
		return nil, err
	}
	if !check.HasPrice {
		return nil, ErrPriceUnavailable
	}

	owed := pricing.ChargeAED(check.PriceEUR)
	return &RenewQuote{
		FullPriceAED: pricing.FullPriceAED(check.PriceEUR),
		ChargeAED:    owed,
		CreditAED:    pricing.CreditAED,
		Free:         owed <= 0,
	}, nil
}

// RenewResult is the outcome of a renewal request
type RenewResult struct {
	Renewed      bool       `json:"renewed"`
	Free         bool       `json:"free"`
	NeedsPayment bool       `json:"needsPayment"`
	NewExpiresAt *time.Time `json:"newExpiresAt,omitempty"`
	FullPriceAED float64    `json:"renewalPriceAed,omitempty"`
	ChargeAED    float64    `json:"chargeAmountAed,omitempty"`
	CreditAED    float64    `json:"creditAmount,omitempty"`
}

// Renew renews an owned domain. Privileged accounts renew immediately.
// Otherwise the price is re-quoted: credit-covered renewals complete
// synchronously, owed amounts return a needs-payment signal.
func (s *Service) Renew(ctx context.Context, accountID, domainID int) (*RenewResult, error) {
	domain, err := s.getOwnedDomain(accountID, domainID)
	if err != nil {
		return nil, err
	}
	account, err := s.getAccount(accountID)
	if err != nil {
		return nil, err
	}

	if plans.Privileged(account.Plan) {
		return s.renewNow(ctx, domain)
	}

	if err := checkAccountGate(account); err != nil {
		return nil, err
	}
	if domain.RegistrarID == nil {
		return nil, ErrRegistrarNotLinked
	}

	name, extension := domain.SplitName()
	check, err := s.registrar.CheckDomain(ctx, name, extension)
	if err != nil {
		return nil, err
	}
	if !check.HasPrice {
		return nil, ErrPriceUnavailable
	}

	full := pricing.FullPriceAED(check.PriceEUR)
	owed := pricing.ChargeAED(check.PriceEUR)

	if owed <= 0 {
		return s.renewNow(ctx, domain)
	}

	return &RenewResult{
		NeedsPayment: true,
		FullPriceAED: full,
		ChargeAED:    owed,
		CreditAED:    pricing.CreditAED,
	}, nil
}

// renewNow performs the registrar renewal and extends local expiry only
// after the registrar call succeeds
func (s *Service) renewNow(ctx context.Context, domain *model.Domain) (*RenewResult, error) {
	if domain.RegistrarID == nil {
		return nil, ErrRegistrarNotLinked
	}

	if err := s.registrar.RenewDomain(ctx, *domain.RegistrarID); err != nil {
		s.log.WithError(err).WithField("domain", domain.Name).Error("Domain renewal failed")
		return nil, err
	}

	newExpiry := s.extendExpiry(domain.ExpiresAt)
	updates := map[string]any{
		"expires_at": newExpiry,
		"status":     model.DomainStatusActive,
	}
	if err := s.db.Model(domain).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update domain expiry: %w", err)
	}
	domain.ExpiresAt = &newExpiry
	domain.Status = model.DomainStatusActive

	s.log.WithFields(logrus.Fields{
		"domain":     domain.Name,
		"expires_at": newExpiry,
	}).Info("Domain renewed")
	return &RenewResult{Renewed: true, Free: true, NewExpiresAt: &newExpiry}, nil
}

// RenewCheckout creates a checkout session for the owed renewal amount
func (s *Service) RenewCheckout(ctx context.Context, accountID, domainID int) (string, error) {
	domain, err := s.getOwnedDomain(accountID, domainID)
	if err != nil {
		return "", err
	}
	account, err := s.getAccount(accountID)
	if err != nil {
		return "", err
	}
	if err := checkAccountGate(account); err != nil {
		return "", err
	}
	if domain.RegistrarID == nil {
		return "", ErrRegistrarNotLinked
	}

	name, extension := domain.SplitName()
	check, err := s.registrar.CheckDomain(ctx, name, extension)
	if err != nil {
		return "", err
	}
	if !check.HasPrice {
		return "", ErrPriceUnavailable
	}

	owed := pricing.ChargeAED(check.PriceEUR)
	if owed <= 0 {
		return "", ErrFullyCovered
	}

	customerID, err := s.ensureCustomer(ctx, account)
	if err != nil {
		return "", err
	}

	session, err := s.billing.NewDomainCheckout(ctx, billing.DomainCheckoutParams{
		CustomerID:  customerID,
		AmountAED:   owed,
		Name:        "Domain Renewal: " + domain.Name,
		Description: fmt.Sprintf("1 year renewal for %s (%.2f AED credit applied)", domain.Name, pricing.CreditAED),
		Metadata: map[string]string{
			"type":       "renewal",
			"domain_id":  fmt.Sprintf("%d", domain.ID),
			"account_id": fmt.Sprintf("%d", accountID),
		},
		SuccessURL: fmt.Sprintf("%s/dashboard/domains/%d?renewed=1", s.origin, domain.ID),
		CancelURL:  fmt.Sprintf("%s/dashboard/domains/%d", s.origin, domain.ID),
	})
	if err != nil {
		return "", err
	}
	return session.URL, nil
}
