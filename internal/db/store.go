package db

import (
	"context"

	"github.com/threadmill/threadmill/internal/models"
)

// Store bundles the entity repositories behind the persistence surface the
// forum service consumes
type Store struct {
	categories *CategoryRepository
	threads    *ThreadRepository
	posts      *PostRepository
	users      *UserRepository
}

// NewStore creates a new store over a repository
func NewStore(repo *Repository) *Store {
	return &Store{
		categories: NewCategoryRepository(repo),
		threads:    NewThreadRepository(repo),
		posts:      NewPostRepository(repo),
		users:      NewUserRepository(repo),
	}
}

// ThreadByID retrieves a thread by ID
func (s *Store) ThreadByID(ctx context.Context, id int64) (*models.Thread, error) {
	return s.threads.GetByID(ctx, id)
}

// ThreadsByCategory lists threads in a category, newest first
func (s *Store) ThreadsByCategory(ctx context.Context, categoryID int64, limit int) ([]models.Thread, error) {
	return s.threads.ListByCategory(ctx, categoryID, limit)
}

// PostByID retrieves a post by ID
func (s *Store) PostByID(ctx context.Context, id int64) (*models.Post, error) {
	return s.posts.GetByID(ctx, id)
}

// RootPosts retrieves a thread's root posts ordered by creation time
func (s *Store) RootPosts(ctx context.Context, threadID int64, limit int) ([]models.Post, error) {
	return s.posts.ListRoots(ctx, threadID, limit)
}

// RepliesByParentIDs retrieves replies for a set of parents in one query
func (s *Store) RepliesByParentIDs(ctx context.Context, parentIDs []int64) ([]models.Post, error) {
	return s.posts.ListByParentIDs(ctx, parentIDs)
}

// CategoryByID retrieves a category by ID
func (s *Store) CategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	return s.categories.GetByID(ctx, id)
}

// SelfAndDescendantIDs expands a category into itself plus all descendants
func (s *Store) SelfAndDescendantIDs(ctx context.Context, categoryID int64) ([]int64, error) {
	return s.categories.SelfAndDescendantIDs(ctx, categoryID)
}

// CreatePost creates a new post
func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	return s.posts.Create(ctx, post)
}

// SavePost updates a post
func (s *Store) SavePost(ctx context.Context, post *models.Post) error {
	return s.posts.Save(ctx, post)
}

// UserByID retrieves a user with moderator assignments preloaded
func (s *Store) UserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}
