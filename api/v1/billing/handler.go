package billing

import (
	"context"
	"strconv"

	"ion7/api/v1/middleware"
	"ion7/internal/httpx"
	"ion7/internal/model"
	"ion7/internal/planguard"
	"ion7/internal/plans"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"
)

// BillingGateway is the payment provider surface used by the handler
type BillingGateway interface {
	CreateCustomer(ctx context.Context, email string) (string, error)
	NewSubscriptionCheckout(ctx context.Context, customerID, priceID, successURL, cancelURL string, metadata map[string]string) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
	UpdateSubscriptionPrice(ctx context.Context, subscriptionID, priceID string) (*stripe.Subscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*stripe.Subscription, error)
	PreviewPlanChange(ctx context.Context, customerID, subscriptionID, priceID string) (*stripe.Invoice, error)
	NewPortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error)
}

// PlanGuard validates plan changes against current usage
type PlanGuard interface {
	CheckPlanChange(accountID int, newPlan string) ([]planguard.Violation, error)
}

// CheckoutRequest represents subscription checkout request
type CheckoutRequest struct {
	Plan     string `json:"plan" binding:"required"`
	Interval string `json:"interval" binding:"required"`
}

// UpdateRequest represents plan change request
type UpdateRequest struct {
	Plan     string `json:"plan" binding:"required"`
	Interval string `json:"interval" binding:"required"`
}

// CancelRequest represents cancel-at-period-end toggle request
type CancelRequest struct {
	Cancel bool `json:"cancel"`
}

// Handler handles billing API
type Handler struct {
	db      *gorm.DB
	billing BillingGateway
	guard   PlanGuard
	prices  *plans.PriceTable
	origin  string
	log     *logrus.Entry
}

// NewHandler creates a new billing handler
func NewHandler(db *gorm.DB, bill BillingGateway, guard PlanGuard, prices *plans.PriceTable, origin string) *Handler {
	return &Handler{
		db:      db,
		billing: bill,
		guard:   guard,
		prices:  prices,
		origin:  origin,
		log:     logrus.WithField("component", "billing-api"),
	}
}

// Checkout handles POST /api/v1/billing/checkout
func (h *Handler) Checkout(c *gin.Context) {
	account, ok := h.account(c)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	priceID, ok := h.resolvePrice(c, req.Plan, req.Interval)
	if !ok {
		return
	}
	if account.StripeSubscriptionID != "" {
		httpx.FailErr(c, httpx.ErrStateConflict("account already has a subscription, change the plan instead"))
		return
	}

	customerID, ok := h.ensureCustomer(c, account)
	if !ok {
		return
	}

	session, err := h.billing.NewSubscriptionCheckout(c.Request.Context(), customerID, priceID,
		h.origin+"/dashboard/billing/success?session_id={CHECKOUT_SESSION_ID}",
		h.origin+"/dashboard/billing",
		map[string]string{"account_id": strconv.Itoa(account.ID)})
	if err != nil {
		httpx.FailErr(c, httpx.ErrExternalError("failed to create checkout session", err))
		return
	}

	httpx.OK(c, gin.H{"checkoutUrl": session.URL})
}

// Verify handles GET /api/v1/billing/verify. The success page polls it
// after checkout; the plan itself is activated by the webhook.
func (h *Handler) Verify(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		httpx.FailErr(c, httpx.ErrParamMissing("parameter 'session_id' is required"))
		return
	}

	session, err := h.billing.GetCheckoutSession(c.Request.Context(), sessionID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrExternalError("failed to fetch checkout session", err))
		return
	}

	httpx.OK(c, gin.H{
		"status":        session.Status,
		"paymentStatus": session.PaymentStatus,
		"paid":          session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	})
}

// Portal handles POST /api/v1/billing/portal
func (h *Handler) Portal(c *gin.Context) {
	account, ok := h.account(c)
	if !ok {
		return
	}
	if account.StripeCustomerID == "" {
		httpx.FailErr(c, httpx.ErrStateConflict("account has no billing history yet"))
		return
	}

	session, err := h.billing.NewPortalSession(c.Request.Context(), account.StripeCustomerID,
		h.origin+"/dashboard/billing")
	if err != nil {
		httpx.FailErr(c, httpx.ErrExternalError("failed to create portal session", err))
		return
	}
	httpx.OK(c, gin.H{"portalUrl": session.URL})
}

// Preview handles GET /api/v1/billing/preview. It returns the prorated
// amount the plan change would invoice, without changing anything.
func (h *Handler) Preview(c *gin.Context) {
	account, ok := h.account(c)
	if !ok {
		return
	}
	if account.StripeSubscriptionID == "" {
		httpx.FailErr(c, httpx.ErrStateConflict("account has no subscription to change"))
		return
	}

	priceID, ok := h.resolvePrice(c, c.Query("plan"), c.Query("interval"))
	if !ok {
		return
	}

	invoice, err := h.billing.PreviewPlanChange(c.Request.Context(), account.StripeCustomerID,
		account.StripeSubscriptionID, priceID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrExternalError("failed to preview plan change", err))
		return
	}

	httpx.OK(c, gin.H{
		"amountDue": invoice.AmountDue,
		"currency":  invoice.Currency,
	})
}

// Update handles POST /api/v1/billing/update. Downgrades are rejected
// while any domain holds more mailboxes than the target plan allows.
func (h *Handler) Update(c *gin.Context) {
	account, ok := h.account(c)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	priceID, ok := h.resolvePrice(c, req.Plan, req.Interval)
	if !ok {
		return
	}
	if account.StripeSubscriptionID == "" {
		httpx.FailErr(c, httpx.ErrStateConflict("account has no subscription to change"))
		return
	}

	violations, err := h.guard.CheckPlanChange(account.ID, req.Plan)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to check plan usage", err))
		return
	}
	if len(violations) > 0 {
		httpx.FailErr(c, httpx.ErrLimitExceeded("current mailbox usage exceeds the new plan's limits").WithData(gin.H{
			"error":      "EMAIL_LIMIT_EXCEEDED",
			"violations": violations,
		}))
		return
	}

	if _, err := h.billing.UpdateSubscriptionPrice(c.Request.Context(),
		account.StripeSubscriptionID, priceID); err != nil {
		httpx.FailErr(c, httpx.ErrExternalError("failed to update subscription", err))
		return
	}

	// The webhook confirms this, but the panel reflects it right away
	if err := h.db.Model(account).Updates(map[string]any{
		"plan":             req.Plan,
		"billing_interval": req.Interval,
	}).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to update account", err))
		return
	}

	h.log.WithFields(logrus.Fields{
		"account_id": account.ID,
		"plan":       req.Plan,
		"interval":   req.Interval,
	}).Info("Plan changed")
	httpx.OK(c, gin.H{"plan": req.Plan, "interval": req.Interval})
}

// Cancel handles POST /api/v1/billing/cancel. The subscription keeps
// running until the period ends; the webhook clears the plan then.
func (h *Handler) Cancel(c *gin.Context) {
	account, ok := h.account(c)
	if !ok {
		return
	}
	if account.StripeSubscriptionID == "" {
		httpx.FailErr(c, httpx.ErrStateConflict("account has no subscription to cancel"))
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	sub, err := h.billing.SetCancelAtPeriodEnd(c.Request.Context(), account.StripeSubscriptionID, req.Cancel)
	if err != nil {
		httpx.FailErr(c, httpx.ErrExternalError("failed to update subscription", err))
		return
	}

	httpx.OK(c, gin.H{
		"cancelAtPeriodEnd": sub.CancelAtPeriodEnd,
	})
}

func (h *Handler) account(c *gin.Context) (*model.Account, bool) {
	var account model.Account
	if err := h.db.First(&account, middleware.UID(c)).Error; err != nil {
		httpx.FailErr(c, httpx.ErrNotFound("account not found"))
		return nil, false
	}
	return &account, true
}

func (h *Handler) resolvePrice(c *gin.Context, plan, interval string) (string, bool) {
	if _, ok := plans.Get(plan); !ok {
		httpx.FailErr(c, httpx.ErrParamInvalid("unknown plan"))
		return "", false
	}
	if !plans.ValidInterval(interval) {
		httpx.FailErr(c, httpx.ErrParamInvalid("unknown billing interval"))
		return "", false
	}
	priceID, ok := h.prices.PriceID(plan, interval)
	if !ok {
		httpx.FailErr(c, httpx.ErrInternalError("no price configured for plan", nil))
		return "", false
	}
	return priceID, true
}

func (h *Handler) ensureCustomer(c *gin.Context, account *model.Account) (string, bool) {
	if account.StripeCustomerID != "" {
		return account.StripeCustomerID, true
	}

	customerID, err := h.billing.CreateCustomer(c.Request.Context(), account.Email)
	if err != nil {
		httpx.FailErr(c, httpx.ErrExternalError("failed to create billing customer", err))
		return "", false
	}
	if err := h.db.Model(account).Update("stripe_customer_id", customerID).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to persist customer ID", err))
		return "", false
	}
	account.StripeCustomerID = customerID
	return customerID, true
}
