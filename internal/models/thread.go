package models

import "time"

// Thread is a single conversation. It belongs to exactly one category; the
// association is immutable once created.
type Thread struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	CategoryID int64     `gorm:"not null;column:category_id;index"`
	AuthorID   int64     `gorm:"not null;column:author_id"`
	Title      string    `gorm:"type:varchar(255);not null;column:title"`
	CreatedAt  time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Thread
func (Thread) TableName() string {
	return "forum_threads"
}
