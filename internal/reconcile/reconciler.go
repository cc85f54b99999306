package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"

	"ion7/internal/model"
	"ion7/internal/plans"
)

// dedupTTL bounds how long processed event IDs are remembered
const dedupTTL = 72 * time.Hour

// RegistrarGateway is the registrar surface used during reconciliation
type RegistrarGateway interface {
	RegisterDomain(ctx context.Context, name, extension string) (int64, error)
	TransferDomain(ctx context.Context, name, extension, authCode string) (int64, error)
	RenewDomain(ctx context.Context, registrarID int64) error
}

// SubscriptionGateway resolves subscription state from the billing provider
type SubscriptionGateway interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

// CDNGateway disables distributions during subscription cleanup
type CDNGateway interface {
	DisableDistribution(ctx context.Context, distributionID string) error
}

// MailboxGateway deletes provider mailboxes during subscription cleanup
type MailboxGateway interface {
	DeleteAccount(ctx context.Context, address string) error
}

// Deduper remembers already-processed event IDs
type Deduper interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Reconciler applies the side effects of verified billing events. Events
// are delivered at least once; every handler checks local state before
// touching the registrar so replays are harmless.
type Reconciler struct {
	db        *gorm.DB
	registrar RegistrarGateway
	billing   SubscriptionGateway
	cdn       CDNGateway
	mailbox   MailboxGateway
	dedup     Deduper
	prices    *plans.PriceTable
	log       *logrus.Entry
	now       func() time.Time
}

// NewReconciler creates a webhook reconciler
func NewReconciler(db *gorm.DB, reg RegistrarGateway, bill SubscriptionGateway, cdn CDNGateway, mb MailboxGateway, dedup Deduper, prices *plans.PriceTable) *Reconciler {
	return &Reconciler{
		db:        db,
		registrar: reg,
		billing:   bill,
		cdn:       cdn,
		mailbox:   mb,
		dedup:     dedup,
		prices:    prices,
		log:       logrus.WithField("component", "reconcile"),
		now:       time.Now,
	}
}

// HandleEvent dispatches one verified billing event. Unknown event types
// are acknowledged without side effects. A returned error signals the
// billing provider to redeliver.
func (r *Reconciler) HandleEvent(ctx context.Context, event stripe.Event) error {
	if r.dedup != nil {
		first, err := r.dedup.MarkOnce(ctx, "stripe:event:"+event.ID, dedupTTL)
		if err != nil {
			// Dedup is advisory; handlers check local state anyway
			r.log.WithError(err).Warn("Event dedup check failed")
		} else if !first {
			r.log.WithField("event_id", event.ID).Info("Skipping already-processed event")
			return nil
		}
	}

	r.log.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	}).Info("Handling billing event")

	switch string(event.Type) {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("failed to parse checkout session: %w", err)
		}
		if session.Mode == stripe.CheckoutSessionModePayment {
			return r.handlePaymentCompleted(ctx, &session)
		}
		return r.handleSubscriptionCheckout(ctx, &session)

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to parse subscription: %w", err)
		}
		return r.handleSubscriptionUpdated(ctx, &sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to parse subscription: %w", err)
		}
		return r.handleSubscriptionDeleted(ctx, &sub)

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("failed to parse invoice: %w", err)
		}
		return r.setAccountStatusByCustomer(customerID(invoice.Customer), model.AccountStatusFrozen)

	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("failed to parse invoice: %w", err)
		}
		return r.setAccountStatusByCustomer(customerID(invoice.Customer), model.AccountStatusActive)
	}

	return nil
}

// handlePaymentCompleted routes a one-time payment by its metadata type
func (r *Reconciler) handlePaymentCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	md := session.Metadata
	switch md["type"] {
	case "transfer":
		return r.completeTransfer(ctx, md)
	case "renewal":
		return r.completeRenewal(ctx, session.ID, md)
	default:
		// Registration checkouts carry type=registration; older sessions
		// carried only the domain fields
		return r.completeRegistration(ctx, md)
	}
}

// completeRegistration registers a paid domain. A pre-existing row with
// the same name means a replay already completed it; that is success.
func (r *Reconciler) completeRegistration(ctx context.Context, md map[string]string) error {
	name, extension := md["domain_name"], md["domain_extension"]
	accountID, err := strconv.Atoi(md["account_id"])
	if name == "" || extension == "" || err != nil {
		r.log.WithField("metadata", md).Warn("Registration payment missing metadata, ignoring")
		return nil
	}

	fullName := name + "." + extension
	exists, err := r.domainExists(fullName)
	if err != nil {
		return err
	}
	if exists {
		r.log.WithField("domain", fullName).Info("Domain row already exists, treating replay as success")
		return nil
	}

	registrarID, err := r.registrar.RegisterDomain(ctx, name, extension)
	if err != nil {
		return fmt.Errorf("registrar registration failed for %s: %w", fullName, err)
	}

	now := r.now()
	expires := now.AddDate(1, 0, 0)
	domain := &model.Domain{
		Name:         fullName,
		Status:       model.DomainStatusActive,
		RegistrarID:  &registrarID,
		RegisteredAt: &now,
		ExpiresAt:    &expires,
		AccountID:    accountID,
	}
	if err := r.db.Create(domain).Error; err != nil {
		return fmt.Errorf("failed to create domain record: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"domain":       fullName,
		"registrar_id": registrarID,
	}).Info("Paid registration completed")
	return nil
}

// completeTransfer starts the paid transfer and records a pending row
// for the transfer sweep to finish
func (r *Reconciler) completeTransfer(ctx context.Context, md map[string]string) error {
	name, extension, authCode := md["domain_name"], md["domain_extension"], md["auth_code"]
	accountID, err := strconv.Atoi(md["account_id"])
	if name == "" || extension == "" || authCode == "" || err != nil {
		r.log.WithField("domain", name).Warn("Transfer payment missing metadata, ignoring")
		return nil
	}

	fullName := name + "." + extension
	exists, err := r.domainExists(fullName)
	if err != nil {
		return err
	}
	if exists {
		r.log.WithField("domain", fullName).Info("Domain row already exists, treating replay as success")
		return nil
	}

	registrarID, err := r.registrar.TransferDomain(ctx, name, extension, authCode)
	if err != nil {
		return fmt.Errorf("registrar transfer failed for %s: %w", fullName, err)
	}

	domain := &model.Domain{
		Name:        fullName,
		Status:      model.DomainStatusPending,
		RegistrarID: &registrarID,
		AccountID:   accountID,
	}
	if err := r.db.Create(domain).Error; err != nil {
		return fmt.Errorf("failed to create domain record: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"domain":       fullName,
		"registrar_id": registrarID,
	}).Info("Paid transfer started")
	return nil
}

// completeRenewal renews the paid domain and extends its local expiry.
// The checkout session ID is recorded on the row; a redelivered event
// for an already-applied session must not buy a second year.
func (r *Reconciler) completeRenewal(ctx context.Context, sessionID string, md map[string]string) error {
	domainID, err := strconv.Atoi(md["domain_id"])
	if err != nil {
		r.log.WithField("metadata", md).Warn("Renewal payment missing domain id, ignoring")
		return nil
	}

	var domain model.Domain
	if err := r.db.First(&domain, domainID).Error; err != nil {
		return fmt.Errorf("failed to load domain %d: %w", domainID, err)
	}
	if domain.RegistrarID == nil {
		return fmt.Errorf("domain %s has no registrar reference", domain.Name)
	}
	if sessionID != "" && domain.RenewalSessionID == sessionID {
		r.log.WithField("domain", domain.Name).Info("Renewal session already applied, treating replay as success")
		return nil
	}

	if err := r.registrar.RenewDomain(ctx, *domain.RegistrarID); err != nil {
		return fmt.Errorf("registrar renewal failed for %s: %w", domain.Name, err)
	}

	base := r.now()
	if domain.ExpiresAt != nil && domain.ExpiresAt.After(base) {
		base = *domain.ExpiresAt
	}
	newExpiry := base.AddDate(1, 0, 0)

	res := r.db.Model(&model.Domain{}).
		Where("id = ? AND renewal_session_id = ?", domain.ID, domain.RenewalSessionID).
		Updates(map[string]any{
			"expires_at":         newExpiry,
			"status":             model.DomainStatusActive,
			"renewal_session_id": sessionID,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update domain expiry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		r.log.WithField("domain", domain.Name).Info("Renewal recorded concurrently, nothing to apply")
		return nil
	}

	r.log.WithFields(logrus.Fields{
		"domain":     domain.Name,
		"expires_at": newExpiry,
	}).Info("Paid renewal completed")
	return nil
}

func (r *Reconciler) domainExists(name string) (bool, error) {
	var count int64
	if err := r.db.Model(&model.Domain{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check domain: %w", err)
	}
	return count > 0, nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
