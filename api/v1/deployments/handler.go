package deployments

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"ion7/api/v1/middleware"
	"ion7/internal/blocks"
	"ion7/internal/deploy"
	"ion7/internal/httpx"
	"ion7/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CDNGateway is the hosting surface used by the handler
type CDNGateway interface {
	UploadSite(ctx context.Context, domainName, html string) error
	EnsureDistribution(ctx context.Context, domainName, existingDistID, existingCertARN string) (*deploy.DistributionInfo, error)
	Invalidate(ctx context.Context, distributionID string) error
}

// DNSGateway points the www record at the distribution
type DNSGateway interface {
	SetWWWCname(ctx context.Context, domainName, target string) error
}

// Handler handles site deployment API
type Handler struct {
	db  *gorm.DB
	cdn CDNGateway
	dns DNSGateway
	log *logrus.Entry
}

// NewHandler creates a new deployments handler
func NewHandler(db *gorm.DB, cdn CDNGateway, dns DNSGateway) *Handler {
	return &Handler{
		db:  db,
		cdn: cdn,
		dns: dns,
		log: logrus.WithField("component", "deploy-api"),
	}
}

// Deploy handles POST /api/v1/domains/:id/deploy. It renders the site,
// uploads it, makes sure the distribution and www record exist, and
// invalidates the CDN cache so the new version is served.
func (h *Handler) Deploy(c *gin.Context) {
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

	var site model.Site
	if err := h.db.Where("domain_id = ?", domain.ID).First(&site).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrStateConflict("create a site before deploying"))
		} else {
			httpx.FailErr(c, httpx.ErrDatabaseError("failed to load site", err))
		}
		return
	}

	var content blocks.SiteContent
	if err := json.Unmarshal(site.Content, &content); err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("stored site content is unreadable", err))
		return
	}

	html := deploy.GenerateSiteHTML(&content, domain.Name)
	ctx := c.Request.Context()

	if err := h.cdn.UploadSite(ctx, domain.Name, html); err != nil {
		httpx.FailErr(c, httpx.ErrExternalError("failed to upload site", err))
		return
	}

	info, err := h.cdn.EnsureDistribution(ctx, domain.Name, domain.CloudFrontDistID, "")
	if err != nil {
		httpx.FailErr(c, httpx.ErrExternalError("failed to provision distribution", err))
		return
	}

	if err := h.dns.SetWWWCname(ctx, domain.Name, info.Domain); err != nil {
		httpx.FailErr(c, httpx.ErrExternalError("failed to update DNS", err))
		return
	}

	// Redeploys need the old copy flushed from edge caches
	if domain.CloudFrontDistID != "" {
		if err := h.cdn.Invalidate(ctx, domain.CloudFrontDistID); err != nil {
			h.log.WithError(err).WithField("domain", domain.Name).Warn("Cache invalidation failed")
		}
	}

	now := time.Now()
	if err := h.db.Model(domain).Updates(map[string]any{
		"cloud_front_dist_id": info.ID,
		"cloud_front_domain":  info.Domain,
		"deployed_at":         now,
	}).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to record deployment", err))
		return
	}

	h.log.WithFields(logrus.Fields{
		"domain":       domain.Name,
		"distribution": info.ID,
	}).Info("Site deployed")
	httpx.OK(c, gin.H{
		"url":              "https://www." + domain.Name,
		"distributionId":   info.ID,
		"cloudFrontDomain": info.Domain,
		"deployedAt":       now,
	})
}

// Status handles GET /api/v1/domains/:id/deploy
func (h *Handler) Status(c *gin.Context) {
	domain, _, ok := h.ownedDomain(c)
	if !ok {
		return
	}

	resp := gin.H{
		"deployed":         domain.DeployedAt != nil,
		"deployedAt":       domain.DeployedAt,
		"cloudFrontDomain": domain.CloudFrontDomain,
	}
	if domain.DeployedAt != nil {
		resp["url"] = "https://www." + domain.Name
	}
	httpx.OK(c, resp)
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
