package models

import "time"

// User is a forum account. Admin grants every moderation action globally;
// moderator scope is carried by Assignments.
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Name      string    `gorm:"type:varchar(64);not null;uniqueIndex:forum_users_ux1;column:name"`
	Admin     bool      `gorm:"not null;default:false;column:admin"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`

	// Relationships
	Assignments []ModeratorAssignment `gorm:"foreignKey:UserID;references:ID"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "forum_users"
}

// ModeratorAssignment grants a user moderation scope over a category and all
// of its descendants.
type ModeratorAssignment struct {
	UserID     int64     `gorm:"primaryKey;column:user_id"`
	CategoryID int64     `gorm:"primaryKey;column:category_id"`
	CreatedAt  time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for ModeratorAssignment
func (ModeratorAssignment) TableName() string {
	return "forum_moderator_assignments"
}
