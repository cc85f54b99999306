package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ion7/internal/model"
	"ion7/internal/pricing"
	"ion7/internal/registrar"
)

// RegistrarGateway is the registrar surface used by the sweeps
type RegistrarGateway interface {
	CheckDomain(ctx context.Context, name, extension string) (*registrar.DomainCheck, error)
	RenewDomain(ctx context.Context, registrarID int64) error
	DomainStatus(ctx context.Context, registrarID int64) (*registrar.DomainState, error)
}

// RenewedItem is one domain the sweep renewed on credit
type RenewedItem struct {
	Domain    string    `json:"domain"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SkippedItem is one expiring domain the sweep left untouched: either
// its renewal costs money (the sweep never charges; the owner pays
// through checkout) or the registrar quoted no price.
type SkippedItem struct {
	Domain    string  `json:"domain"`
	ChargeAED float64 `json:"chargeAmountAed,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// FailedItem is one domain the sweep could not process
type FailedItem struct {
	Domain string `json:"domain"`
	Error  string `json:"error"`
}

// RenewalReport summarizes one renewal sweep run
type RenewalReport struct {
	Checked int           `json:"checked"`
	Renewed []RenewedItem `json:"renewed"`
	Skipped []SkippedItem `json:"skipped"`
	Failed  []FailedItem  `json:"failed"`
}

// RenewalSweep renews expiring domains whose renewal price is fully
// covered by the per-domain credit. Domains that would owe money are
// reported and left untouched.
type RenewalSweep struct {
	db         *gorm.DB
	registrar  RegistrarGateway
	windowDays int
	log        *logrus.Entry
	now        func() time.Time
}

// NewRenewalSweep creates a renewal sweep with the given expiry window
func NewRenewalSweep(db *gorm.DB, reg RegistrarGateway, windowDays int) *RenewalSweep {
	return &RenewalSweep{
		db:         db,
		registrar:  reg,
		windowDays: windowDays,
		log:        logrus.WithField("component", "renewal-sweep"),
		now:        time.Now,
	}
}

// Run performs one sweep over all domains expiring inside the window
func (s *RenewalSweep) Run(ctx context.Context) (*RenewalReport, error) {
	now := s.now()
	cutoff := now.AddDate(0, 0, s.windowDays)

	var domains []model.Domain
	err := s.db.
		Joins("JOIN accounts ON accounts.id = domains.account_id").
		Where("domains.status = ?", model.DomainStatusActive).
		Where("domains.registrar_id IS NOT NULL").
		Where("domains.expires_at IS NOT NULL AND domains.expires_at <= ?", cutoff).
		Where("accounts.plan <> ''").
		Where("accounts.status = ?", model.AccountStatusActive).
		Find(&domains).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring domains: %w", err)
	}

	report := &RenewalReport{
		Checked: len(domains),
		Renewed: []RenewedItem{},
		Skipped: []SkippedItem{},
		Failed:  []FailedItem{},
	}

	for i := range domains {
		s.sweepDomain(ctx, &domains[i], report)
	}

	s.log.WithFields(logrus.Fields{
		"checked": report.Checked,
		"renewed": len(report.Renewed),
		"skipped": len(report.Skipped),
		"failed":  len(report.Failed),
	}).Info("Renewal sweep finished")
	return report, nil
}

func (s *RenewalSweep) sweepDomain(ctx context.Context, domain *model.Domain, report *RenewalReport) {
	name, extension := domain.SplitName()

	check, err := s.registrar.CheckDomain(ctx, name, extension)
	if err != nil {
		report.Failed = append(report.Failed, FailedItem{Domain: domain.Name, Error: err.Error()})
		return
	}
	if !check.HasPrice {
		report.Skipped = append(report.Skipped, SkippedItem{Domain: domain.Name, Reason: "no renewal price available"})
		return
	}

	charge := pricing.ChargeAED(check.PriceEUR)
	if charge > 0 {
		// Paid renewals go through checkout initiated by the owner
		report.Skipped = append(report.Skipped, SkippedItem{Domain: domain.Name, ChargeAED: charge})
		return
	}

	if err := s.registrar.RenewDomain(ctx, *domain.RegistrarID); err != nil {
		report.Failed = append(report.Failed, FailedItem{Domain: domain.Name, Error: err.Error()})
		return
	}

	base := s.now()
	if domain.ExpiresAt != nil && domain.ExpiresAt.After(base) {
		base = *domain.ExpiresAt
	}
	newExpiry := base.AddDate(1, 0, 0)

	if err := s.db.Model(domain).Update("expires_at", newExpiry).Error; err != nil {
		report.Failed = append(report.Failed, FailedItem{Domain: domain.Name, Error: err.Error()})
		return
	}

	s.log.WithFields(logrus.Fields{
		"domain":     domain.Name,
		"expires_at": newExpiry,
	}).Info("Domain renewed on credit")
	report.Renewed = append(report.Renewed, RenewedItem{Domain: domain.Name, ExpiresAt: newExpiry})
}
