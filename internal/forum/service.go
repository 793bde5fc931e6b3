package forum

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/threadmill/threadmill/internal/models"
	"github.com/threadmill/threadmill/pkg/config"
	"github.com/threadmill/threadmill/pkg/telemetry"
)

// Store is the persistence surface the forum service needs
type Store interface {
	ThreadByID(ctx context.Context, id int64) (*models.Thread, error)
	ThreadsByCategory(ctx context.Context, categoryID int64, limit int) ([]models.Thread, error)
	PostByID(ctx context.Context, id int64) (*models.Post, error)
	RootPosts(ctx context.Context, threadID int64, limit int) ([]models.Post, error)
	RepliesByParentIDs(ctx context.Context, parentIDs []int64) ([]models.Post, error)
	CategoryByID(ctx context.Context, id int64) (*models.Category, error)
	SelfAndDescendantIDs(ctx context.Context, categoryID int64) ([]int64, error)
	CreatePost(ctx context.Context, post *models.Post) error
	SavePost(ctx context.Context, post *models.Post) error
}

// TreeCache caches built (unannotated) reply trees per thread. A nil
// TreeCache disables caching.
type TreeCache interface {
	GetThread(ctx context.Context, threadID int64) ([]byte, bool)
	SetThread(ctx context.Context, threadID int64, payload []byte)
	InvalidateThread(ctx context.Context, threadID int64)
}

// ThreadView is a thread with its fully expanded, action-annotated reply
// tree for one viewer
type ThreadView struct {
	Thread models.Thread
	Posts  []*Node
}

// Service orchestrates thread reads and post mutations. Each call is
// request-scoped; the tree is rebuilt fresh on every read so there is no
// shared mutable tree state.
type Service struct {
	store    Store
	resolver *Resolver
	trees    *TreeBuilder
	cache    TreeCache
	logger   *zap.Logger
	maxDepth int
	pageSize int
}

// storeThreads adapts Store to the ThreadResolver interface, translating
// missing rows into LookupError so authorization fails closed
type storeThreads struct {
	store Store
}

// CategoryOfThread resolves a thread's category ID
func (s storeThreads) CategoryOfThread(ctx context.Context, threadID int64) (int64, error) {
	thread, err := s.store.ThreadByID(ctx, threadID)
	if err != nil {
		return 0, &LookupError{Kind: "thread", ID: threadID, Err: err}
	}
	if thread == nil {
		return 0, &LookupError{Kind: "thread", ID: threadID}
	}
	return thread.CategoryID, nil
}

// storeCategories adapts Store to the CategoryExpander interface
type storeCategories struct {
	store Store
}

// SelfAndDescendantIDs expands a category into itself plus all descendants
func (s storeCategories) SelfAndDescendantIDs(ctx context.Context, categoryID int64) ([]int64, error) {
	return s.store.SelfAndDescendantIDs(ctx, categoryID)
}

// NewService creates a new forum service
func NewService(store Store, treeCache TreeCache, cfg *config.ForumConfig, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		resolver: NewResolver(storeCategories{store: store}, storeThreads{store: store}),
		trees:    NewTreeBuilder(store),
		cache:    treeCache,
		logger:   logger,
		maxDepth: cfg.MaxReplyDepth,
		pageSize: cfg.ThreadPageSize,
	}
}

// Resolver exposes the authorization resolver for callers that need raw
// permission checks
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// LoadThread loads a thread and its reply tree, annotated with the viewer's
// permitted actions. The unannotated tree is cached per thread; actions are
// always recomputed for the current viewer.
func (s *Service) LoadThread(ctx context.Context, viewer *models.User, threadID int64) (*ThreadView, error) {
	ctx, span := telemetry.StartSpan(ctx, "forum.load_thread")
	defer span.End()

	thread, err := s.store.ThreadByID(ctx, threadID)
	if err != nil {
		return nil, &RetrievalError{Op: "thread", Err: err}
	}
	if thread == nil {
		return nil, ErrNotFound
	}

	nodes, err := s.loadTree(ctx, threadID)
	if err != nil {
		return nil, err
	}

	// Moderation scope is per thread category, so resolve it once and reuse
	// the decision for every node.
	canModerate, err := s.resolver.CanModerateCategory(ctx, viewer, thread.CategoryID)
	if err != nil {
		var lookupErr *LookupError
		if !errors.As(err, &lookupErr) {
			return nil, err
		}
		canModerate = false
	}
	for _, root := range nodes {
		root.Walk(func(n *Node) {
			n.Actions = ActionsFor(viewer, &n.Post, canModerate)
		})
	}

	return &ThreadView{Thread: *thread, Posts: nodes}, nil
}

// loadTree returns the thread's unannotated reply tree, from cache when
// possible
func (s *Service) loadTree(ctx context.Context, threadID int64) ([]*Node, error) {
	if s.cache != nil {
		if payload, ok := s.cache.GetThread(ctx, threadID); ok {
			var nodes []*Node
			if err := json.Unmarshal(payload, &nodes); err == nil {
				return nodes, nil
			}
			// Corrupt entry; drop it and rebuild from storage.
			s.cache.InvalidateThread(ctx, threadID)
		}
	}

	roots, err := s.store.RootPosts(ctx, threadID, s.pageSize)
	if err != nil {
		return nil, &RetrievalError{Op: "root posts", Err: err}
	}

	nodes, err := s.trees.Build(ctx, roots, s.maxDepth)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(nodes); err == nil {
			s.cache.SetThread(ctx, threadID, payload)
		}
	}

	return nodes, nil
}

// ListThreads lists the threads of a category, newest first
func (s *Service) ListThreads(ctx context.Context, categoryID int64, limit int) ([]models.Thread, error) {
	ctx, span := telemetry.StartSpan(ctx, "forum.list_threads")
	defer span.End()

	category, err := s.store.CategoryByID(ctx, categoryID)
	if err != nil {
		return nil, &RetrievalError{Op: "category", Err: err}
	}
	if category == nil {
		return nil, ErrNotFound
	}

	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}
	return s.store.ThreadsByCategory(ctx, categoryID, limit)
}

// CategorySubtree returns a category plus the IDs of its whole subtree
func (s *Service) CategorySubtree(ctx context.Context, categoryID int64) (*models.Category, []int64, error) {
	category, err := s.store.CategoryByID(ctx, categoryID)
	if err != nil {
		return nil, nil, &RetrievalError{Op: "category", Err: err}
	}
	if category == nil {
		return nil, nil, ErrNotFound
	}

	ids, err := s.store.SelfAndDescendantIDs(ctx, categoryID)
	if err != nil {
		return nil, nil, &RetrievalError{Op: "category expansion", Err: err}
	}
	return category, ids, nil
}

// CreateRootPost creates a new root post in a thread
func (s *Service) CreateRootPost(ctx context.Context, author *models.User, threadID int64, content string) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "forum.create_root_post")
	defer span.End()

	if author == nil {
		return nil, ErrForbidden
	}

	thread, err := s.store.ThreadByID(ctx, threadID)
	if err != nil {
		return nil, &RetrievalError{Op: "thread", Err: err}
	}
	if thread == nil {
		return nil, ErrNotFound
	}

	post := &models.Post{
		ThreadID:  threadID,
		AuthorID:  nullableID(author.ID),
		Content:   content,
		Depth:     0,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, err
	}

	s.invalidate(ctx, threadID)
	s.logger.Debug("Created root post",
		zap.Int64("thread_id", threadID),
		zap.Int64("post_id", post.ID))
	return post, nil
}

// CreateReply creates a reply under a parent post. Replies that would exceed
// the depth ceiling are rejected before any persistence attempt.
func (s *Service) CreateReply(ctx context.Context, author *models.User, parentID int64, content string) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "forum.create_reply")
	defer span.End()

	if author == nil {
		return nil, ErrForbidden
	}

	parent, err := s.store.PostByID(ctx, parentID)
	if err != nil {
		return nil, &RetrievalError{Op: "parent post", Err: err}
	}
	if parent == nil {
		return nil, ErrNotFound
	}
	if parent.IsDeleted() {
		return nil, ErrPostDeleted
	}

	depth := int(parent.Depth) + 1
	if depth > s.maxDepth {
		return nil, &DepthExceededError{ParentID: parentID, Depth: depth, Max: s.maxDepth}
	}

	post := &models.Post{
		ThreadID:  parent.ThreadID,
		ParentID:  nullableID(parent.ID),
		AuthorID:  nullableID(author.ID),
		Content:   content,
		Depth:     int16(depth),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, err
	}

	s.invalidate(ctx, parent.ThreadID)
	s.logger.Debug("Created reply",
		zap.Int64("parent_id", parentID),
		zap.Int64("post_id", post.ID),
		zap.Int("depth", depth))
	return post, nil
}

// UpdatePost replaces a post's content on behalf of an authorized actor
func (s *Service) UpdatePost(ctx context.Context, actor *models.User, postID int64, content string) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "forum.update_post")
	defer span.End()

	post, err := s.store.PostByID(ctx, postID)
	if err != nil {
		return nil, &RetrievalError{Op: "post", Err: err}
	}
	if post == nil {
		return nil, ErrNotFound
	}
	if post.IsDeleted() {
		return nil, ErrPostDeleted
	}

	if err := s.authorize(ctx, actor, post, s.resolver.CanModify); err != nil {
		return nil, err
	}

	post.Content = content
	if err := s.store.SavePost(ctx, post); err != nil {
		return nil, err
	}

	s.invalidate(ctx, post.ThreadID)
	return post, nil
}

// DeletePost soft-deletes a post. The node and its replies stay in the
// tree; only the content is suppressed at render time.
func (s *Service) DeletePost(ctx context.Context, actor *models.User, postID int64) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "forum.delete_post")
	defer span.End()

	post, err := s.store.PostByID(ctx, postID)
	if err != nil {
		return nil, &RetrievalError{Op: "post", Err: err}
	}
	if post == nil {
		return nil, ErrNotFound
	}
	if post.IsDeleted() {
		return nil, ErrPostDeleted
	}

	if err := s.authorize(ctx, actor, post, s.resolver.CanDelete); err != nil {
		return nil, err
	}

	post.DeletedAt.Time = time.Now().UTC()
	post.DeletedAt.Valid = true
	if err := s.store.SavePost(ctx, post); err != nil {
		return nil, err
	}

	s.invalidate(ctx, post.ThreadID)
	s.logger.Info("Deleted post",
		zap.Int64("post_id", postID),
		zap.Int64("actor_id", actor.ID))
	return post, nil
}

// RestorePost clears a post's soft-delete marker
func (s *Service) RestorePost(ctx context.Context, actor *models.User, postID int64) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "forum.restore_post")
	defer span.End()

	post, err := s.store.PostByID(ctx, postID)
	if err != nil {
		return nil, &RetrievalError{Op: "post", Err: err}
	}
	if post == nil {
		return nil, ErrNotFound
	}
	if !post.IsDeleted() {
		return nil, ErrNotDeleted
	}

	if err := s.authorize(ctx, actor, post, s.resolver.CanRestore); err != nil {
		return nil, err
	}

	post.DeletedAt.Valid = false
	post.DeletedAt.Time = time.Time{}
	if err := s.store.SavePost(ctx, post); err != nil {
		return nil, err
	}

	s.invalidate(ctx, post.ThreadID)
	s.logger.Info("Restored post",
		zap.Int64("post_id", postID),
		zap.Int64("actor_id", actor.ID))
	return post, nil
}

// authorize runs one permission check and fails closed: lookup failures
// become denials, every other resolver error propagates
func (s *Service) authorize(ctx context.Context, actor *models.User, post *models.Post, check func(context.Context, *models.User, *models.Post) (bool, error)) error {
	allowed, err := check(ctx, actor, post)
	if err != nil {
		var lookupErr *LookupError
		if errors.As(err, &lookupErr) {
			s.logger.Warn("Authorization lookup failed, denying",
				zap.Int64("post_id", post.ID),
				zap.Error(err))
			return ErrForbidden
		}
		return err
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, threadID int64) {
	if s.cache != nil {
		s.cache.InvalidateThread(ctx, threadID)
	}
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: true}
}
