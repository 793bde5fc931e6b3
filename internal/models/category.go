package models

import (
	"database/sql"
	"time"
)

// Category is a node in the moderation category tree. A null parent marks a
// top-level category; the parent relation is acyclic.
type Category struct {
	ID        int64         `gorm:"primaryKey;autoIncrement;column:id"`
	ParentID  sql.NullInt64 `gorm:"column:parent_id;index"`
	Name      string        `gorm:"type:varchar(64);not null;column:name"`
	CreatedAt time.Time     `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Category
func (Category) TableName() string {
	return "forum_categories"
}
