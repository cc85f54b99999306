package model

// AccountStatus represents the billing standing of an account
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusFrozen AccountStatus = "frozen"
)

// Billing intervals accepted by the subscription endpoints
const (
	IntervalMonthly = "monthly"
	IntervalYearly  = "yearly"
)

// Account is a customer of the panel. Plan is empty until the first
// successful subscription checkout; it is cleared again when the
// subscription is deleted. Status flips to frozen on payment failure.
type Account struct {
	BaseModel
	Name                 string        `gorm:"type:varchar(120);not null" json:"name"`
	Email                string        `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash         string        `gorm:"type:varchar(100);not null" json:"-"`
	Plan                 string        `gorm:"type:varchar(20);index" json:"plan"`
	BillingInterval      string        `gorm:"type:varchar(10);default:'monthly'" json:"billingInterval"`
	Status               AccountStatus `gorm:"type:varchar(10);default:'active'" json:"status"`
	StripeCustomerID     string        `gorm:"type:varchar(64);index" json:"-"`
	StripeSubscriptionID string        `gorm:"type:varchar(64)" json:"-"`
	Domains              []Domain      `json:"domains,omitempty"`
}

// TableName specifies the table name for Account model
func (Account) TableName() string {
	return "accounts"
}

// HasPlan reports whether the account has an active plan.
func (a *Account) HasPlan() bool {
	return a.Plan != ""
}

// Frozen reports whether the account is blocked by a failed payment.
func (a *Account) Frozen() bool {
	return a.Status == AccountStatusFrozen
}
