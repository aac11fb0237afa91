// Package domain defines prompt test scenarios owned by an organization.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Scenario is a prompt template with variables and the output expected
// when the template is run.
type Scenario struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID      `gorm:"column:org_id;not null;index" json:"org_id"`
	Name           string            `gorm:"column:name;type:text;not null" json:"name"`
	Description    string            `gorm:"column:description;type:text" json:"description"`
	Prompt         string            `gorm:"column:prompt;type:text;not null" json:"prompt"`
	Variables      datatypes.JSONMap `gorm:"column:variables;type:jsonb" json:"variables"`
	ExpectedOutput string            `gorm:"column:expected_output;type:text" json:"expected_output"`
	CreatedBy      snowflake.ID      `gorm:"column:created_by;not null" json:"created_by"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Scenario) TableName() string { return "scenarios" }
