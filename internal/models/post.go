package models

import (
	"database/sql"
	"time"
)

// Post is a root post or a nested reply. Parent linkage is by id only; the
// nested view is materialized per read by the tree builder, never stored as
// a live object graph.
type Post struct {
	ID        int64         `gorm:"primaryKey;autoIncrement;column:id"`
	ThreadID  int64         `gorm:"not null;column:thread_id;index"`
	ParentID  sql.NullInt64 `gorm:"column:parent_id;index"`
	AuthorID  sql.NullInt64 `gorm:"column:author_id"`
	Content   string        `gorm:"type:text;not null;column:content"`
	Depth     int16         `gorm:"type:smallint;not null;default:0;column:depth"`
	CreatedAt time.Time     `gorm:"not null;column:created_at"`
	DeletedAt sql.NullTime  `gorm:"column:deleted_at"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "forum_posts"
}

// IsDeleted reports whether the post is soft-deleted. The row and its
// children stay in the tree; only the content is suppressed by the renderer.
func (p *Post) IsDeleted() bool {
	return p.DeletedAt.Valid
}

// IsRoot reports whether the post is a thread root (no parent).
func (p *Post) IsRoot() bool {
	return !p.ParentID.Valid
}
