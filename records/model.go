package records

import (
	"time"
)

// Status is the generation state of a contract.
type Status string

const (
	StatusPending   Status = "pending"
	StatusGenerated Status = "generated"
	StatusFailed    Status = "failed"
)

// Contract is the record of the latest generated document of one entity.
type Contract struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	EntityID      string     `json:"entityId" gorm:"size:128;uniqueIndex;not null"`
	TemplateKey   string     `json:"templateKey" gorm:"size:255"`
	DocumentKey   string     `json:"documentKey" gorm:"size:512"`
	DocumentURL   string     `json:"documentUrl" gorm:"type:text"`
	Status        Status     `json:"status" gorm:"size:20;default:'pending';index"`
	GeneratedAt   *time.Time `json:"generatedAt,omitempty"`
	FailureReason string     `json:"failureReason,omitempty" gorm:"type:text"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// TableName returns the table name.
func (Contract) TableName() string {
	return "contracts"
}
