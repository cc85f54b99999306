package model

import (
	"gorm.io/datatypes"
)

// Site is the block-based website attached to a domain. Content holds
// the theme and the ordered block list as JSON; it is replaced
// wholesale on every save.
type Site struct {
	BaseModel
	DomainID int            `gorm:"uniqueIndex;not null" json:"-"`
	Template string         `gorm:"type:varchar(30);not null" json:"template"`
	Content  datatypes.JSON `json:"content"`
}

// TableName specifies the table name for Site model
func (Site) TableName() string {
	return "sites"
}
