package cron

import (
	"context"

	"ion7/internal/httpx"
	"ion7/internal/sweep"

	"github.com/gin-gonic/gin"
)

// RenewalRunner runs one renewal sweep pass
type RenewalRunner interface {
	Run(ctx context.Context) (*sweep.RenewalReport, error)
}

// TransferRunner runs one transfer sweep pass
type TransferRunner interface {
	Run(ctx context.Context) (*sweep.TransferReport, error)
}

// Handler exposes the sweeps to an external scheduler
type Handler struct {
	renewals  RenewalRunner
	transfers TransferRunner
}

// NewHandler creates a new cron handler
func NewHandler(renewals RenewalRunner, transfers TransferRunner) *Handler {
	return &Handler{renewals: renewals, transfers: transfers}
}

// RenewDomains handles POST /api/v1/cron/renew-domains
func (h *Handler) RenewDomains(c *gin.Context) {
	report, err := h.renewals.Run(c.Request.Context())
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("renewal sweep failed", err))
		return
	}
	httpx.OK(c, report)
}

// SyncTransfers handles POST /api/v1/cron/sync-transfers
func (h *Handler) SyncTransfers(c *gin.Context) {
	report, err := h.transfers.Run(c.Request.Context())
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("transfer sweep failed", err))
		return
	}
	httpx.OK(c, report)
}
