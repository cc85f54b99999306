package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"ion7/internal/auth"
	"ion7/internal/config"
	"ion7/internal/httpx"
	"ion7/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// resetTokenTTL bounds how long a password reset link stays valid
const resetTokenTTL = time.Hour

// ResetMailer sends the password reset email
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, to, token string) error
}

// RegisterRequest represents signup request body
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents login response data
type LoginResponse struct {
	Token    string      `json:"token"`
	ExpireAt string      `json:"expireAt"`
	Account  AccountInfo `json:"account"`
}

// AccountInfo represents account information in responses
type AccountInfo struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Plan            string `json:"plan"`
	BillingInterval string `json:"billingInterval"`
	Status          string `json:"status"`
}

// DomainSummary is the abbreviated domain view in profile responses
type DomainSummary struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// MeResponse represents the profile response
type MeResponse struct {
	AccountInfo
	Domains []DomainSummary `json:"domains"`
}

// ForgotPasswordRequest represents forgot password request body
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest represents reset password request body
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// Handler handles auth API
type Handler struct {
	db     *gorm.DB
	cfg    *config.Config
	mailer ResetMailer
	log    *logrus.Entry
}

// NewHandler creates a new auth handler
func NewHandler(db *gorm.DB, cfg *config.Config, mailer ResetMailer) *Handler {
	return &Handler{
		db:     db,
		cfg:    cfg,
		mailer: mailer,
		log:    logrus.WithField("component", "auth-api"),
	}
}

func accountInfo(a *model.Account) AccountInfo {
	return AccountInfo{
		ID:              a.ID,
		Name:            a.Name,
		Email:           a.Email,
		Plan:            a.Plan,
		BillingInterval: a.BillingInterval,
		Status:          string(a.Status),
	}
}

// Register handles POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	var count int64
	if err := h.db.Model(&model.Account{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("database error", err))
		return
	}
	if count > 0 {
		httpx.FailErr(c, httpx.ErrAlreadyExists("an account with this email already exists"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to hash password", err))
		return
	}

	account := &model.Account{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Status:       model.AccountStatusActive,
	}
	if err := h.db.Create(account).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to create account", err))
		return
	}

	token, expireAt, err := h.issueToken(account)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to generate token", err))
		return
	}

	httpx.OK(c, LoginResponse{
		Token:    token,
		ExpireAt: expireAt.Format(time.RFC3339),
		Account:  accountInfo(account),
	})
}

// Login handles POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	var account model.Account
	if err := h.db.Where("email = ?", req.Email).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Unknown email or wrong password - return same error for security
			httpx.FailErr(c, httpx.ErrUnauthorized("invalid credentials"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("database error", err))
		return
	}

	if err := auth.ComparePassword(account.PasswordHash, req.Password); err != nil {
		httpx.FailErr(c, httpx.ErrUnauthorized("invalid credentials"))
		return
	}

	token, expireAt, err := h.issueToken(&account)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to generate token", err))
		return
	}

	httpx.OK(c, LoginResponse{
		Token:    token,
		ExpireAt: expireAt.Format(time.RFC3339),
		Account:  accountInfo(&account),
	})
}

// Me handles GET /api/v1/me
func (h *Handler) Me(c *gin.Context) {
	uid, _ := c.Get("uid")
	id, _ := uid.(int)

	var account model.Account
	if err := h.db.First(&account, id).Error; err != nil {
		httpx.FailErr(c, httpx.ErrNotFound("account not found"))
		return
	}

	var domains []model.Domain
	if err := h.db.Where("account_id = ?", id).Order("id").Find(&domains).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to load domains", err))
		return
	}
	summaries := make([]DomainSummary, 0, len(domains))
	for i := range domains {
		summaries = append(summaries, DomainSummary{
			ID:        domains[i].ID,
			Name:      domains[i].Name,
			Status:    string(domains[i].Status),
			ExpiresAt: domains[i].ExpiresAt,
		})
	}

	httpx.OK(c, MeResponse{
		AccountInfo: accountInfo(&account),
		Domains:     summaries,
	})
}

// ForgotPassword handles POST /api/v1/auth/forgot-password.
// It always answers success so the endpoint cannot be used to probe
// which emails are registered.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	var account model.Account
	err := h.db.Where("email = ?", req.Email).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		httpx.OKMsg(c, "if the email exists, a reset link has been sent", nil)
		return
	}
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("database error", err))
		return
	}

	token, err := newResetToken()
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to generate token", err))
		return
	}

	// A new token invalidates all previous ones for the same email
	if err := h.db.Where("email = ?", account.Email).Delete(&model.PasswordResetToken{}).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to clear old tokens", err))
		return
	}
	record := &model.PasswordResetToken{
		Email:     account.Email,
		Token:     token,
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}
	if err := h.db.Create(record).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to store reset token", err))
		return
	}

	if h.mailer != nil {
		if err := h.mailer.SendPasswordReset(c.Request.Context(), account.Email, token); err != nil {
			// A send error is reachable only for existing accounts, so it
			// must not change the response
			h.log.WithError(err).WithField("email", account.Email).Error("Failed to send reset email")
		}
	}

	httpx.OKMsg(c, "if the email exists, a reset link has been sent", nil)
}

// ResetPassword handles POST /api/v1/auth/reset-password
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	var record model.PasswordResetToken
	if err := h.db.Where("token = ?", req.Token).First(&record).Error; err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid or expired reset token"))
		return
	}
	if time.Now().After(record.ExpiresAt) {
		// Expired tokens are removed on sight
		h.db.Delete(&record)
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid or expired reset token"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to hash password", err))
		return
	}

	if err := h.db.Model(&model.Account{}).Where("email = ?", record.Email).
		Update("password_hash", hash).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to update password", err))
		return
	}

	// Single use
	if err := h.db.Where("email = ?", record.Email).Delete(&model.PasswordResetToken{}).Error; err != nil {
		h.log.WithError(err).Warn("Failed to delete used reset token")
	}

	httpx.OKMsg(c, "password updated", nil)
}

func (h *Handler) issueToken(account *model.Account) (string, time.Time, error) {
	expireAt := time.Now().Add(time.Duration(h.cfg.JWT.ExpireMinutes) * time.Minute)
	token, err := auth.GenerateToken(account.ID, account.Email, expireAt, h.cfg.JWT.Issuer)
	return token, expireAt, err
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
