package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"

	"ion7/internal/model"
)

// handleSubscriptionCheckout applies a completed subscription checkout:
// the plan is resolved from the subscription's price, never from
// client-supplied data.
func (r *Reconciler) handleSubscriptionCheckout(ctx context.Context, session *stripe.CheckoutSession) error {
	custID := customerID(session.Customer)
	var subID string
	if session.Subscription != nil {
		subID = session.Subscription.ID
	}
	if custID == "" || subID == "" {
		r.log.Warn("Subscription checkout missing customer or subscription, ignoring")
		return nil
	}

	sub, err := r.billing.GetSubscription(ctx, subID)
	if err != nil {
		return fmt.Errorf("failed to fetch subscription %s: %w", subID, err)
	}

	plan, interval, ok := r.resolvePlan(sub)
	if !ok {
		r.log.WithField("subscription", subID).Warn("Subscription price resolves to no known plan, ignoring")
		return nil
	}

	account, err := r.accountByCustomer(custID)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	if err := r.db.Model(account).Updates(map[string]any{
		"plan":                   plan,
		"billing_interval":       interval,
		"stripe_subscription_id": sub.ID,
	}).Error; err != nil {
		return fmt.Errorf("failed to update account plan: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"account_id": account.ID,
		"plan":       plan,
		"interval":   interval,
	}).Info("Account plan activated")
	return nil
}

// handleSubscriptionUpdated keeps the local plan in sync and freezes the
// account while the subscription is past due
func (r *Reconciler) handleSubscriptionUpdated(_ context.Context, sub *stripe.Subscription) error {
	custID := customerID(sub.Customer)
	if custID == "" {
		return nil
	}

	plan, interval, ok := r.resolvePlan(sub)
	if !ok {
		r.log.WithField("subscription", sub.ID).Warn("Subscription price resolves to no known plan, ignoring")
		return nil
	}

	status := model.AccountStatusActive
	if sub.Status == stripe.SubscriptionStatusPastDue {
		status = model.AccountStatusFrozen
	}

	account, err := r.accountByCustomer(custID)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	if err := r.db.Model(account).Updates(map[string]any{
		"plan":             plan,
		"billing_interval": interval,
		"status":           status,
	}).Error; err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"account_id": account.ID,
		"plan":       plan,
		"status":     status,
	}).Info("Account subscription updated")
	return nil
}

// CleanupItem records the outcome of deprovisioning one domain
type CleanupItem struct {
	Domain           string
	CDNDisabled      bool
	MailboxesDeleted int
	MailboxesFailed  int
	Err              string
}

// handleSubscriptionDeleted deprovisions every domain of the account and
// clears the plan. Cleanup is best-effort per domain: one domain's
// failure never aborts the rest, and the plan is cleared regardless.
func (r *Reconciler) handleSubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	custID := customerID(sub.Customer)
	if custID == "" {
		return nil
	}

	account, err := r.accountByCustomer(custID)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	var domains []model.Domain
	if err := r.db.Where("account_id = ?", account.ID).Find(&domains).Error; err != nil {
		return fmt.Errorf("failed to list account domains: %w", err)
	}

	items := make([]CleanupItem, 0, len(domains))
	for i := range domains {
		items = append(items, r.cleanupDomain(ctx, &domains[i]))
	}

	for _, item := range items {
		entry := r.log.WithFields(logrus.Fields{
			"domain":            item.Domain,
			"cdn_disabled":      item.CDNDisabled,
			"mailboxes_deleted": item.MailboxesDeleted,
			"mailboxes_failed":  item.MailboxesFailed,
		})
		if item.Err != "" {
			entry.WithField("error", item.Err).Warn("Domain cleanup partially failed")
		} else {
			entry.Info("Domain cleaned up")
		}
	}

	if err := r.db.Model(account).Updates(map[string]any{
		"plan":                   "",
		"stripe_subscription_id": "",
	}).Error; err != nil {
		return fmt.Errorf("failed to clear account plan: %w", err)
	}

	r.log.WithField("account_id", account.ID).Info("Subscription cancelled, plan cleared")
	return nil
}

// cleanupDomain disables the CDN distribution and deletes mailboxes for
// one domain. Provider failures are recorded, local mailbox rows are
// removed regardless.
func (r *Reconciler) cleanupDomain(ctx context.Context, domain *model.Domain) CleanupItem {
	item := CleanupItem{Domain: domain.Name}

	if domain.CloudFrontDistID != "" {
		if err := r.cdn.DisableDistribution(ctx, domain.CloudFrontDistID); err != nil {
			item.Err = err.Error()
		} else {
			item.CDNDisabled = true
		}
	}

	var emails []model.Email
	if err := r.db.Where("domain_id = ?", domain.ID).Find(&emails).Error; err != nil {
		item.Err = err.Error()
		return item
	}

	for _, email := range emails {
		if err := r.mailbox.DeleteAccount(ctx, email.Address); err != nil {
			item.MailboxesFailed++
			r.log.WithError(err).WithField("address", email.Address).Warn("Provider mailbox deletion failed")
		} else {
			item.MailboxesDeleted++
		}
	}

	// Local rows go even when the provider call failed
	if len(emails) > 0 {
		if err := r.db.Where("domain_id = ?", domain.ID).Delete(&model.Email{}).Error; err != nil {
			item.Err = err.Error()
		}
	}

	return item
}

// resolvePlan maps the subscription's first price to a configured plan
func (r *Reconciler) resolvePlan(sub *stripe.Subscription) (plan, interval string, ok bool) {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return "", "", false
	}
	price := sub.Items.Data[0].Price

	plan, interval, ok = r.prices.Resolve(price.ID)
	if !ok {
		return "", "", false
	}

	// Prefer the interval reported by the billing provider when present
	if price.Recurring != nil {
		if price.Recurring.Interval == stripe.PriceRecurringIntervalYear {
			interval = model.IntervalYearly
		} else {
			interval = model.IntervalMonthly
		}
	}
	return plan, interval, true
}

// accountByCustomer loads the account for a billing customer reference.
// A missing account is logged and skipped; retrying cannot fix it.
func (r *Reconciler) accountByCustomer(custID string) (*model.Account, error) {
	var account model.Account
	err := r.db.Where("stripe_customer_id = ?", custID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.log.WithField("customer", custID).Warn("No account for billing customer, ignoring event")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return &account, nil
}

// setAccountStatusByCustomer flips the frozen flag from invoice events
func (r *Reconciler) setAccountStatusByCustomer(custID string, status model.AccountStatus) error {
	if custID == "" {
		return nil
	}

	account, err := r.accountByCustomer(custID)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	if err := r.db.Model(account).Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"account_id": account.ID,
		"status":     status,
	}).Info("Account status updated from invoice event")
	return nil
}
