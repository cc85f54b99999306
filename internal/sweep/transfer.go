package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ion7/internal/model"
	"ion7/internal/registrar"
)

// TransferReport summarizes one transfer sweep run
type TransferReport struct {
	Checked      int          `json:"checked"`
	Completed    []string     `json:"completed"`
	Failed       []FailedItem `json:"failed"`
	StillPending []string     `json:"stillPending"`
}

// TransferSweep polls the registrar for pending transfers and flips
// them to their final local state once the registrar settles.
type TransferSweep struct {
	db        *gorm.DB
	registrar RegistrarGateway
	log       *logrus.Entry
	now       func() time.Time
}

// NewTransferSweep creates a transfer sweep
func NewTransferSweep(db *gorm.DB, reg RegistrarGateway) *TransferSweep {
	return &TransferSweep{
		db:        db,
		registrar: reg,
		log:       logrus.WithField("component", "transfer-sweep"),
		now:       time.Now,
	}
}

// Run checks every pending transfer against the registrar
func (s *TransferSweep) Run(ctx context.Context) (*TransferReport, error) {
	var domains []model.Domain
	err := s.db.
		Where("status = ?", model.DomainStatusPending).
		Where("registrar_id IS NOT NULL").
		Find(&domains).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transfers: %w", err)
	}

	report := &TransferReport{
		Checked:      len(domains),
		Completed:    []string{},
		Failed:       []FailedItem{},
		StillPending: []string{},
	}

	for i := range domains {
		s.sweepTransfer(ctx, &domains[i], report)
	}

	s.log.WithFields(logrus.Fields{
		"checked":       report.Checked,
		"completed":     len(report.Completed),
		"failed":        len(report.Failed),
		"still_pending": len(report.StillPending),
	}).Info("Transfer sweep finished")
	return report, nil
}

func (s *TransferSweep) sweepTransfer(ctx context.Context, domain *model.Domain, report *TransferReport) {
	state, err := s.registrar.DomainStatus(ctx, *domain.RegistrarID)
	if err != nil {
		report.Failed = append(report.Failed, FailedItem{Domain: domain.Name, Error: err.Error()})
		return
	}

	switch state.Status {
	case registrar.StatusActive:
		now := s.now()
		expiry := now.AddDate(1, 0, 0)
		if state.ExpiresAt != nil {
			expiry = *state.ExpiresAt
		}

		// Guard on the pending status so a concurrent sweep run cannot
		// apply the transition twice
		res := s.db.Model(&model.Domain{}).
			Where("id = ? AND status = ?", domain.ID, model.DomainStatusPending).
			Updates(map[string]any{
				"status":        model.DomainStatusActive,
				"registered_at": now,
				"expires_at":    expiry,
			})
		if res.Error != nil {
			report.Failed = append(report.Failed, FailedItem{Domain: domain.Name, Error: res.Error.Error()})
			return
		}
		if res.RowsAffected == 0 {
			report.StillPending = append(report.StillPending, domain.Name)
			return
		}

		s.log.WithField("domain", domain.Name).Info("Transfer completed")
		report.Completed = append(report.Completed, domain.Name)

	case registrar.StatusFailed, registrar.StatusDeleted:
		if err := s.db.Model(domain).Update("status", model.DomainStatusFailed).Error; err != nil {
			report.Failed = append(report.Failed, FailedItem{Domain: domain.Name, Error: err.Error()})
			return
		}
		s.log.WithFields(logrus.Fields{
			"domain": domain.Name,
			"status": state.Status,
		}).Warn("Transfer failed at registrar")
		report.Failed = append(report.Failed, FailedItem{Domain: domain.Name, Error: "registrar status " + state.Status})

	default:
		report.StillPending = append(report.StillPending, domain.Name)
	}
}
