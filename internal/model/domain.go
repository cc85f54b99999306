package model

import (
	"strings"
	"time"
)

// DomainStatus represents the lifecycle state of a domain
type DomainStatus string

const (
	DomainStatusPending     DomainStatus = "pending"
	DomainStatusActive      DomainStatus = "active"
	DomainStatusFailed      DomainStatus = "failed"
	DomainStatusExpired     DomainStatus = "expired"
	DomainStatusTransferred DomainStatus = "transferred"
)

// Domain is a registered or in-transfer domain name owned by one account.
// RegistrarID is set only after the registrar confirms creation/transfer;
// until then the status stays pending and expiry may be unknown.
type Domain struct {
	BaseModel
	Name             string       `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Status           DomainStatus `gorm:"type:varchar(15);default:'pending'" json:"status"`
	RegistrarID      *int64       `gorm:"index" json:"-"`
	RegisteredAt     *time.Time   `json:"registeredAt"`
	ExpiresAt        *time.Time   `json:"expiresAt"`
	AccountID        int          `gorm:"index;not null" json:"-"`
	RenewalSessionID string       `gorm:"type:varchar(255);default:''" json:"-"`
	CloudFrontDistID string       `gorm:"type:varchar(64)" json:"-"`
	CloudFrontDomain string       `gorm:"type:varchar(255)" json:"-"`
	DeployedAt       *time.Time   `json:"deployedAt"`
	Site             *Site        `json:"site,omitempty"`
	Emails           []Email      `json:"emails,omitempty"`
}

// TableName specifies the table name for Domain model
func (Domain) TableName() string {
	return "domains"
}

// SplitName splits the fully-qualified name at the last dot into
// the registrar's (name, extension) pair, e.g. "mysite.co.uk" →
// ("mysite.co", "uk").
func (d *Domain) SplitName() (name, extension string) {
	i := strings.LastIndex(d.Name, ".")
	if i < 0 {
		return d.Name, ""
	}
	return d.Name[:i], d.Name[i+1:]
}
