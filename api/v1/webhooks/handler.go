package webhooks

import (
	"context"
	"io"
	"net/http"

	"ion7/internal/httpx"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v76"
)

// maxPayloadBytes bounds the webhook body size
const maxPayloadBytes = 1 << 16

// Verifier checks the event signature against the endpoint secret
type Verifier interface {
	VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error)
}

// Reconciler applies verified billing events
type Reconciler interface {
	HandleEvent(ctx context.Context, event stripe.Event) error
}

// Handler handles the billing webhook endpoint
type Handler struct {
	verifier   Verifier
	reconciler Reconciler
	log        *logrus.Entry
}

// NewHandler creates a new webhook handler
func NewHandler(verifier Verifier, reconciler Reconciler) *Handler {
	return &Handler{
		verifier:   verifier,
		reconciler: reconciler,
		log:        logrus.WithField("component", "webhook-api"),
	}
}

// Stripe handles POST /api/v1/webhooks/stripe. A 2xx acknowledges the
// event; any other status makes the provider redeliver it later.
func (h *Handler) Stripe(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("failed to read request body"))
		return
	}

	sig := c.GetHeader("Stripe-Signature")
	if sig == "" {
		httpx.FailErr(c, httpx.ErrParamMissing("missing Stripe-Signature header"))
		return
	}

	event, err := h.verifier.VerifyWebhook(payload, sig)
	if err != nil {
		h.log.WithError(err).Warn("Webhook signature verification failed")
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid webhook signature"))
		return
	}

	if err := h.reconciler.HandleEvent(c.Request.Context(), event); err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Error("Event handling failed, provider will retry")
		httpx.Fail(c, http.StatusInternalServerError, httpx.CodeInternalError, "event handling failed")
		return
	}

	httpx.OK(c, gin.H{"received": true})
}
