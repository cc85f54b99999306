package emails

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"ion7/api/v1/middleware"
	"ion7/internal/httpx"
	"ion7/internal/mailbox"
	"ion7/internal/model"
	"ion7/internal/plans"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MailboxGateway is the mail provider surface used by the handler
type MailboxGateway interface {
	CreateAccount(ctx context.Context, address, password, displayName string) (*mailbox.MailAccount, error)
	DeleteAccount(ctx context.Context, address string) error
	AccountStorage(ctx context.Context, zohoAccountID string) (*mailbox.StorageUsage, error)
}

// DNSGateway points the domain's MX records at the mail provider
type DNSGateway interface {
	EnsureZohoMX(ctx context.Context, domainName string) error
}

// CreateRequest represents mailbox creation request
type CreateRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName"`
}

// Handler handles mailbox API
type Handler struct {
	db      *gorm.DB
	mailbox MailboxGateway
	dns     DNSGateway
	log     *logrus.Entry
}

// NewHandler creates a new emails handler
func NewHandler(db *gorm.DB, mb MailboxGateway, dns DNSGateway) *Handler {
	return &Handler{
		db:      db,
		mailbox: mb,
		dns:     dns,
		log:     logrus.WithField("component", "emails-api"),
	}
}

// List handles GET /api/v1/domains/:id/emails
func (h *Handler) List(c *gin.Context) {
	domain, account, ok := h.ownedDomain(c)
	if !ok {
		return
	}

	var emails []model.Email
	if err := h.db.Where("domain_id = ?", domain.ID).Find(&emails).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to list mailboxes", err))
		return
	}

	httpx.OK(c, gin.H{
		"items": emails,
		"total": len(emails),
		"limit": mailboxLimit(account),
	})
}

// Create handles POST /api/v1/domains/:id/emails
func (h *Handler) Create(c *gin.Context) {
	domain, account, ok := h.ownedDomain(c)
	if !ok {
		return
	}
	if account.Frozen() {
		httpx.FailErr(c, httpx.ErrFrozen())
		return
	}
	if domain.Status != model.DomainStatusActive {
		httpx.FailErr(c, httpx.ErrStateConflict("domain is not active yet"))
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || strings.ContainsAny(username, "@ ") {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid mailbox name"))
		return
	}

	var count int64
	if err := h.db.Model(&model.Email{}).Where("domain_id = ?", domain.ID).Count(&count).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count mailboxes", err))
		return
	}
	limit := mailboxLimit(account)
	if int(count) >= limit {
		httpx.FailErr(c, httpx.ErrLimitExceeded("mailbox limit reached for this plan").WithData(gin.H{
			"error":   "EMAIL_LIMIT_EXCEEDED",
			"limit":   limit,
			"current": count,
		}))
		return
	}

	address := username + "@" + domain.Name

	var existing int64
	if err := h.db.Model(&model.Email{}).Where("address = ?", address).Count(&existing).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to check mailbox", err))
		return
	}
	if existing > 0 {
		httpx.FailErr(c, httpx.ErrAlreadyExists("mailbox already exists"))
		return
	}

	// The first mailbox on a domain gets the MX records pointed over
	if count == 0 {
		if err := h.dns.EnsureZohoMX(c.Request.Context(), domain.Name); err != nil {
			httpx.FailErr(c, httpx.ErrExternalError("failed to configure MX records", err))
			return
		}
	}

	created, err := h.mailbox.CreateAccount(c.Request.Context(), address, req.Password, req.DisplayName)
	if err != nil {
		httpx.FailErr(c, httpx.ErrExternalError("failed to create mailbox", err))
		return
	}

	email := &model.Email{
		Address:       address,
		ZohoAccountID: created.ZUID,
		DomainID:      domain.ID,
	}
	if err := h.db.Create(email).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to store mailbox", err))
		return
	}

	h.log.WithFields(logrus.Fields{
		"address": address,
		"domain":  domain.Name,
	}).Info("Mailbox created")
	httpx.OK(c, email)
}

// Delete handles DELETE /api/v1/domains/:id/emails/:emailId.
// The provider deletion is best-effort; the local row always goes.
func (h *Handler) Delete(c *gin.Context) {
	domain, _, ok := h.ownedDomain(c)
	if !ok {
		return
	}
	email, ok := h.ownedEmail(c, domain)
	if !ok {
		return
	}

	if err := h.mailbox.DeleteAccount(c.Request.Context(), email.Address); err != nil {
		h.log.WithError(err).WithField("address", email.Address).Warn("Provider mailbox deletion failed")
	}

	if err := h.db.Delete(email).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to delete mailbox", err))
		return
	}
	httpx.OKMsg(c, "mailbox deleted", nil)
}

// Usage handles GET /api/v1/domains/:id/emails/:emailId/usage
func (h *Handler) Usage(c *gin.Context) {
	domain, _, ok := h.ownedDomain(c)
	if !ok {
		return
	}
	email, ok := h.ownedEmail(c, domain)
	if !ok {
		return
	}
	if email.ZohoAccountID == "" {
		httpx.FailErr(c, httpx.ErrStateConflict("mailbox has no provider reference"))
		return
	}

	usage, err := h.mailbox.AccountStorage(c.Request.Context(), email.ZohoAccountID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrExternalError("failed to fetch mailbox usage", err))
		return
	}
	httpx.OK(c, usage)
}

func mailboxLimit(account *model.Account) int {
	limit := plans.EmailQuota(account.Plan)
	if limit > plans.MaxEmailsPerDomain {
		limit = plans.MaxEmailsPerDomain
	}
	return limit
}

func (h *Handler) ownedDomain(c *gin.Context) (*model.Domain, *model.Account, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid domain id"))
		return nil, nil, false
	}

	var domain model.Domain
	if err := h.db.First(&domain, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("domain not found"))
		} else {
			httpx.FailErr(c, httpx.ErrDatabaseError("failed to load domain", err))
		}
		return nil, nil, false
	}

	uid := middleware.UID(c)
	if domain.AccountID != uid {
		httpx.FailErr(c, httpx.ErrForbidden(""))
		return nil, nil, false
	}

	var account model.Account
	if err := h.db.First(&account, uid).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to load account", err))
		return nil, nil, false
	}
	return &domain, &account, true
}

func (h *Handler) ownedEmail(c *gin.Context, domain *model.Domain) (*model.Email, bool) {
	id, err := strconv.Atoi(c.Param("emailId"))
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid mailbox id"))
		return nil, false
	}

	var email model.Email
	if err := h.db.Where("id = ? AND domain_id = ?", id, domain.ID).First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("mailbox not found"))
		} else {
			httpx.FailErr(c, httpx.ErrDatabaseError("failed to load mailbox", err))
		}
		return nil, false
	}
	return &email, true
}
