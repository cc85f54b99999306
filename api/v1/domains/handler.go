package domains

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"ion7/api/v1/middleware"
	"ion7/internal/httpx"
	"ion7/internal/lifecycle"
	"ion7/internal/model"
	"ion7/internal/pricing"
	"ion7/internal/registrar"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// defaultExtensions is searched when the client does not name any
var defaultExtensions = []string{"com", "net", "org", "io", "co", "ae"}

// Checker is the availability-search surface of the registrar
type Checker interface {
	CheckDomains(ctx context.Context, name string, extensions []string) ([]registrar.DomainCheck, error)
}

// RegisterRequest represents domain registration request
type RegisterRequest struct {
	Name      string `json:"name" binding:"required"`
	Extension string `json:"extension" binding:"required"`
	Confirm   bool   `json:"confirm"`
}

// TransferRequest represents domain transfer request
type TransferRequest struct {
	Name      string `json:"name" binding:"required"`
	Extension string `json:"extension" binding:"required"`
	AuthCode  string `json:"authCode" binding:"required"`
}

// CheckItem is one availability result with localized pricing
type CheckItem struct {
	Domain          string  `json:"domain"`
	Available       bool    `json:"available"`
	FullPriceAED    float64 `json:"priceAed"`
	ChargeAED       float64 `json:"chargeAmountAed"`
	CoveredByCredit bool    `json:"coveredByCredit"`
}

// Handler handles domains API
type Handler struct {
	db        *gorm.DB
	lifecycle *lifecycle.Service
	checker   Checker
}

// NewHandler creates a new domains handler
func NewHandler(db *gorm.DB, svc *lifecycle.Service, checker Checker) *Handler {
	return &Handler{db: db, lifecycle: svc, checker: checker}
}

// failLifecycle maps lifecycle errors onto the response envelope
func failLifecycle(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrAccountFrozen):
		httpx.FailErr(c, httpx.ErrFrozen())
	case errors.Is(err, lifecycle.ErrNoPlan):
		httpx.FailErr(c, httpx.ErrForbidden("an active subscription is required"))
	case errors.Is(err, lifecycle.ErrForbidden):
		httpx.FailErr(c, httpx.ErrForbidden(""))
	case errors.Is(err, lifecycle.ErrNotFound):
		httpx.FailErr(c, httpx.ErrNotFound("domain not found"))
	case errors.Is(err, lifecycle.ErrDomainExists):
		httpx.FailErr(c, httpx.ErrAlreadyExists("domain already exists in the panel"))
	case errors.Is(err, lifecycle.ErrDomainUnavailable):
		httpx.FailErr(c, httpx.ErrStateConflict("domain is not available for registration"))
	case errors.Is(err, lifecycle.ErrNotTransferable):
		httpx.FailErr(c, httpx.ErrStateConflict("domain is not registered anywhere, register it instead"))
	case errors.Is(err, lifecycle.ErrPriceUnavailable):
		httpx.FailErr(c, httpx.ErrExternalError("registrar did not return a price", err))
	case errors.Is(err, lifecycle.ErrRegistrarNotLinked):
		httpx.FailErr(c, httpx.ErrStateConflict("domain has no registrar reference yet"))
	case errors.Is(err, lifecycle.ErrFullyCovered):
		httpx.FailErr(c, httpx.ErrStateConflict("renewal is fully covered by credit, no payment needed"))
	default:
		httpx.FailErr(c, httpx.ErrExternalError("registrar request failed", err))
	}
}

// Check handles GET /api/v1/domains/check
func (h *Handler) Check(c *gin.Context) {
	name := strings.TrimSpace(strings.ToLower(c.Query("q")))
	if name == "" {
		httpx.FailErr(c, httpx.ErrParamMissing("parameter 'q' is required"))
		return
	}
	// A fully qualified query pins the search to its own extension
	if i := strings.Index(name, "."); i > 0 {
		ext := name[i+1:]
		name = name[:i]
		results, err := h.check(c, name, []string{ext})
		if err != nil {
			httpx.FailErr(c, httpx.ErrExternalError("availability check failed", err))
			return
		}
		httpx.OK(c, gin.H{"results": results})
		return
	}

	extensions := defaultExtensions
	if raw := c.Query("extensions"); raw != "" {
		extensions = strings.Split(raw, ",")
	}

	results, err := h.check(c, name, extensions)
	if err != nil {
		httpx.FailErr(c, httpx.ErrExternalError("availability check failed", err))
		return
	}
	httpx.OK(c, gin.H{"results": results})
}

func (h *Handler) check(c *gin.Context, name string, extensions []string) ([]CheckItem, error) {
	checks, err := h.checker.CheckDomains(c.Request.Context(), name, extensions)
	if err != nil {
		return nil, err
	}

	items := make([]CheckItem, 0, len(checks))
	for _, check := range checks {
		item := CheckItem{
			Domain:    check.Domain,
			Available: check.Status == "free",
		}
		if check.HasPrice {
			item.FullPriceAED = pricing.FullPriceAED(check.PriceEUR)
			item.ChargeAED = pricing.ChargeAED(check.PriceEUR)
			item.CoveredByCredit = item.ChargeAED <= 0
		}
		items = append(items, item)
	}
	return items, nil
}

// List handles GET /api/v1/domains
func (h *Handler) List(c *gin.Context) {
	var domains []model.Domain
	if err := h.db.Where("account_id = ?", middleware.UID(c)).
		Order("created_at DESC").Find(&domains).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to list domains", err))
		return
	}
	httpx.OK(c, gin.H{"items": domains, "total": len(domains)})
}

// Get handles GET /api/v1/domains/:id
func (h *Handler) Get(c *gin.Context) {
	domain, ok := h.ownedDomain(c)
	if !ok {
		return
	}
	if err := h.db.Preload("Site").Preload("Emails").First(domain, domain.ID).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to load domain", err))
		return
	}
	httpx.OK(c, domain)
}

// Register handles POST /api/v1/domains/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	result, err := h.lifecycle.Register(c.Request.Context(), middleware.UID(c),
		strings.ToLower(req.Name), strings.ToLower(req.Extension), req.Confirm)
	if err != nil {
		failLifecycle(c, err)
		return
	}
	httpx.OK(c, result)
}

// Transfer handles POST /api/v1/domains/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	result, err := h.lifecycle.Transfer(c.Request.Context(), middleware.UID(c),
		strings.ToLower(req.Name), strings.ToLower(req.Extension), req.AuthCode)
	if err != nil {
		failLifecycle(c, err)
		return
	}
	httpx.OK(c, result)
}

// RenewQuote handles GET /api/v1/domains/:id/renew
func (h *Handler) RenewQuote(c *gin.Context) {
	id, ok := domainID(c)
	if !ok {
		return
	}
	quote, err := h.lifecycle.Quote(c.Request.Context(), middleware.UID(c), id)
	if err != nil {
		failLifecycle(c, err)
		return
	}
	httpx.OK(c, quote)
}

// Renew handles POST /api/v1/domains/:id/renew
func (h *Handler) Renew(c *gin.Context) {
	id, ok := domainID(c)
	if !ok {
		return
	}
	result, err := h.lifecycle.Renew(c.Request.Context(), middleware.UID(c), id)
	if err != nil {
		failLifecycle(c, err)
		return
	}
	httpx.OK(c, result)
}

// RenewCheckout handles POST /api/v1/domains/:id/renew/checkout
func (h *Handler) RenewCheckout(c *gin.Context) {
	id, ok := domainID(c)
	if !ok {
		return
	}
	checkoutURL, err := h.lifecycle.RenewCheckout(c.Request.Context(), middleware.UID(c), id)
	if err != nil {
		failLifecycle(c, err)
		return
	}
	httpx.OK(c, gin.H{"checkoutUrl": checkoutURL})
}

func domainID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid domain id"))
		return 0, false
	}
	return id, true
}

// ownedDomain loads the path domain and enforces ownership
func (h *Handler) ownedDomain(c *gin.Context) (*model.Domain, bool) {
	id, ok := domainID(c)
	if !ok {
		return nil, false
	}

	var domain model.Domain
	if err := h.db.First(&domain, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("domain not found"))
		} else {
			httpx.FailErr(c, httpx.ErrDatabaseError("failed to load domain", err))
		}
		return nil, false
	}
	if domain.AccountID != middleware.UID(c) {
		httpx.FailErr(c, httpx.ErrForbidden(""))
		return nil, false
	}
	return &domain, true
}
