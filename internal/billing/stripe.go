package billing

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"ion7/internal/pricing"
)

// Service wraps the Stripe API for checkouts, subscriptions, and webhooks
type Service struct {
	api           *client.API
	webhookSecret string
}

// New creates a billing service with its own Stripe client
func New(secretKey, webhookSecret string) *Service {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Service{
		api:           api,
		webhookSecret: webhookSecret,
	}
}

// VerifyWebhook validates the Stripe signature header and returns the event
func (s *Service) VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, s.webhookSecret)
}

// CreateCustomer creates a Stripe customer for an account email
func (s *Service) CreateCustomer(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
	}
	customer, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}
	return customer.ID, nil
}

// DomainCheckoutParams describes a one-time domain payment
type DomainCheckoutParams struct {
	CustomerID  string
	AmountAED   float64
	Name        string
	Description string
	Metadata    map[string]string
	SuccessURL  string
	CancelURL   string
}

// NewDomainCheckout creates a one-time payment checkout session priced in
// AED. The metadata drives webhook-side fulfillment.
func (s *Service) NewDomainCheckout(ctx context.Context, p DomainCheckoutParams) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(p.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("aed"),
					UnitAmount: stripe.Int64(pricing.MinorUnits(p.AmountAED)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(p.Name),
						Description: stripe.String(p.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return session, nil
}

// NewSubscriptionCheckout creates a subscription checkout session for a
// configured plan price
func (s *Service) NewSubscriptionCheckout(ctx context.Context, customerID, priceID, successURL, cancelURL string, metadata map[string]string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return session, nil
}

// GetCheckoutSession fetches a checkout session by ID
func (s *Service) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	}
	return s.api.CheckoutSessions.Get(sessionID, params)
}

// GetSubscription fetches a subscription by ID
func (s *Service) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	}
	return s.api.Subscriptions.Get(subscriptionID, params)
}

// UpdateSubscriptionPrice swaps the subscription's single item to a new
// price, invoicing the proration immediately
func (s *Service) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, priceID string) (*stripe.Subscription, error) {
	sub, err := s.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	if len(sub.Items.Data) == 0 {
		return nil, fmt.Errorf("subscription %s has no items", subscriptionID)
	}

	params := &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(sub.Items.Data[0].ID),
				Price: stripe.String(priceID),
			},
		},
		ProrationBehavior: stripe.String("always_invoice"),
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	return s.api.Subscriptions.Update(subscriptionID, params)
}

// SetCancelAtPeriodEnd schedules or unschedules cancellation at period end
func (s *Service) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Params:            stripe.Params{Context: ctx},
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}
	return s.api.Subscriptions.Update(subscriptionID, params)
}

// PreviewPlanChange returns the upcoming invoice if the subscription
// switched to a new price, without changing anything
func (s *Service) PreviewPlanChange(ctx context.Context, customerID, subscriptionID, priceID string) (*stripe.Invoice, error) {
	sub, err := s.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	if len(sub.Items.Data) == 0 {
		return nil, fmt.Errorf("subscription %s has no items", subscriptionID)
	}

	params := &stripe.InvoiceUpcomingParams{
		Params:       stripe.Params{Context: ctx},
		Customer:     stripe.String(customerID),
		Subscription: stripe.String(subscriptionID),
		SubscriptionItems: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(sub.Items.Data[0].ID),
				Price: stripe.String(priceID),
			},
		},
	}
	return s.api.Invoices.Upcoming(params)
}

// NewPortalSession creates a Stripe billing portal session
func (s *Service) NewPortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	return s.api.BillingPortalSessions.New(params)
}
