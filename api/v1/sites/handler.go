package sites

import (
	"encoding/json"
	"errors"
	"strconv"

	"ion7/api/v1/middleware"
	"ion7/internal/blocks"
	"ion7/internal/httpx"
	"ion7/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateRequest represents site creation request
type CreateRequest struct {
	Template string `json:"template" binding:"required"`
}

// UpdateRequest represents site content replacement request
type UpdateRequest struct {
	Content blocks.SiteContent `json:"content" binding:"required"`
}

// Handler handles sites API
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new sites handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// Get handles GET /api/v1/domains/:id/site
func (h *Handler) Get(c *gin.Context) {
	domain, ok := h.ownedDomain(c)
	if !ok {
		return
	}

	var site model.Site
	if err := h.db.Where("domain_id = ?", domain.ID).First(&site).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("no site created for this domain yet"))
		} else {
			httpx.FailErr(c, httpx.ErrDatabaseError("failed to load site", err))
		}
		return
	}
	httpx.OK(c, site)
}

// Create handles POST /api/v1/domains/:id/site. The site starts from a
// named preset and is edited from there.
func (h *Handler) Create(c *gin.Context) {
	domain, ok := h.ownedDomain(c)
	if !ok {
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	content, found := blocks.Preset(req.Template)
	if !found {
		httpx.FailErr(c, httpx.ErrParamInvalid("unknown template"))
		return
	}

	var count int64
	if err := h.db.Model(&model.Site{}).Where("domain_id = ?", domain.ID).Count(&count).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to check site", err))
		return
	}
	if count > 0 {
		httpx.FailErr(c, httpx.ErrAlreadyExists("domain already has a site"))
		return
	}

	raw, err := json.Marshal(content)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to encode site content", err))
		return
	}

	site := &model.Site{
		DomainID: domain.ID,
		Template: req.Template,
		Content:  datatypes.JSON(raw),
	}
	if err := h.db.Create(site).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to create site", err))
		return
	}
	httpx.OK(c, site)
}

// Update handles PUT /api/v1/domains/:id/site. The stored content is
// replaced wholesale; partial edits are resolved client-side.
func (h *Handler) Update(c *gin.Context) {
	domain, ok := h.ownedDomain(c)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	if err := blocks.Validate(&req.Content); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	var site model.Site
	if err := h.db.Where("domain_id = ?", domain.ID).First(&site).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("no site created for this domain yet"))
		} else {
			httpx.FailErr(c, httpx.ErrDatabaseError("failed to load site", err))
		}
		return
	}

	raw, err := json.Marshal(req.Content)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to encode site content", err))
		return
	}

	if err := h.db.Model(&site).Update("content", datatypes.JSON(raw)).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to save site", err))
		return
	}
	site.Content = datatypes.JSON(raw)
	httpx.OK(c, site)
}

func (h *Handler) ownedDomain(c *gin.Context) (*model.Domain, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid domain id"))
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
