package planguard

import (
	"fmt"

	"gorm.io/gorm"

	"ion7/internal/model"
	"ion7/internal/plans"
)

// Violation is one domain whose current mailbox usage exceeds the
// quota of the plan being switched to
type Violation struct {
	Domain string `json:"domain"`
	Emails int    `json:"emails"`
	Limit  int    `json:"limit"`
}

// Guard validates plan changes against current resource usage
type Guard struct {
	db *gorm.DB
}

// NewGuard creates a plan change guard
func NewGuard(db *gorm.DB) *Guard {
	return &Guard{db: db}
}

// CheckPlanChange returns the violations that make newPlan unacceptable
// for the account's current usage. An empty slice means the change is
// allowed. The caller decides what to do with violations; the guard
// never mutates anything.
func (g *Guard) CheckPlanChange(accountID int, newPlan string) ([]Violation, error) {
	limit := plans.EmailQuota(newPlan)

	var domains []model.Domain
	if err := g.db.Where("account_id = ?", accountID).Find(&domains).Error; err != nil {
		return nil, fmt.Errorf("failed to list account domains: %w", err)
	}

	violations := []Violation{}
	for _, domain := range domains {
		var count int64
		if err := g.db.Model(&model.Email{}).Where("domain_id = ?", domain.ID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to count mailboxes for %s: %w", domain.Name, err)
		}
		if int(count) > limit {
			violations = append(violations, Violation{
				Domain: domain.Name,
				Emails: int(count),
				Limit:  limit,
			})
		}
	}
	return violations, nil
}
