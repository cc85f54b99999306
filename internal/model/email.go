package model

// Email is a provisioned mailbox on a domain. ZohoAccountID references
// the mailbox at the provider; deletion there is best-effort and the
// local row is removed regardless.
type Email struct {
	BaseModel
	Address       string `gorm:"type:varchar(255);uniqueIndex;not null" json:"address"`
	ZohoAccountID string `gorm:"type:varchar(64)" json:"-"`
	DomainID      int    `gorm:"index;not null" json:"-"`
}

// TableName specifies the table name for Email model
func (Email) TableName() string {
	return "emails"
}
