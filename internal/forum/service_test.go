package forum

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/threadmill/threadmill/internal/models"
	"github.com/threadmill/threadmill/pkg/config"
)

// fakeStore is an in-memory Store with query counters
type fakeStore struct {
	categories map[int64]models.Category
	threads    map[int64]models.Thread
	posts      map[int64]models.Post
	nextPostID int64

	replyFetches int
	rootFetches  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		categories: make(map[int64]models.Category),
		threads:    make(map[int64]models.Thread),
		posts:      make(map[int64]models.Post),
		nextPostID: 1,
	}
}

func (f *fakeStore) addCategory(id, parentID int64) {
	category := models.Category{ID: id, Name: "category"}
	if parentID != 0 {
		category.ParentID = sql.NullInt64{Int64: parentID, Valid: true}
	}
	f.categories[id] = category
}

func (f *fakeStore) addThread(id, categoryID int64) {
	f.threads[id] = models.Thread{ID: id, CategoryID: categoryID, Title: "thread"}
}

func (f *fakeStore) addPost(threadID, parentID, authorID int64, depth int16) int64 {
	id := f.nextPostID
	f.nextPostID++
	post := models.Post{
		ID:        id,
		ThreadID:  threadID,
		Depth:     depth,
		Content:   "content",
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute),
	}
	if parentID != 0 {
		post.ParentID = sql.NullInt64{Int64: parentID, Valid: true}
	}
	if authorID != 0 {
		post.AuthorID = sql.NullInt64{Int64: authorID, Valid: true}
	}
	f.posts[id] = post
	return id
}

func (f *fakeStore) ThreadByID(ctx context.Context, id int64) (*models.Thread, error) {
	if thread, ok := f.threads[id]; ok {
		return &thread, nil
	}
	return nil, nil
}

func (f *fakeStore) ThreadsByCategory(ctx context.Context, categoryID int64, limit int) ([]models.Thread, error) {
	var threads []models.Thread
	for _, thread := range f.threads {
		if thread.CategoryID == categoryID {
			threads = append(threads, thread)
		}
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].ID < threads[j].ID })
	if len(threads) > limit {
		threads = threads[:limit]
	}
	return threads, nil
}

func (f *fakeStore) PostByID(ctx context.Context, id int64) (*models.Post, error) {
	if post, ok := f.posts[id]; ok {
		return &post, nil
	}
	return nil, nil
}

func (f *fakeStore) RootPosts(ctx context.Context, threadID int64, limit int) ([]models.Post, error) {
	f.rootFetches++
	var roots []models.Post
	for _, post := range f.posts {
		if post.ThreadID == threadID && !post.ParentID.Valid {
			roots = append(roots, post)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].CreatedAt.Before(roots[j].CreatedAt) })
	if len(roots) > limit {
		roots = roots[:limit]
	}
	return roots, nil
}

func (f *fakeStore) RepliesByParentIDs(ctx context.Context, parentIDs []int64) ([]models.Post, error) {
	f.replyFetches++
	wanted := make(map[int64]bool, len(parentIDs))
	for _, id := range parentIDs {
		wanted[id] = true
	}
	var replies []models.Post
	for _, post := range f.posts {
		if post.ParentID.Valid && wanted[post.ParentID.Int64] {
			replies = append(replies, post)
		}
	}
	sort.Slice(replies, func(i, j int) bool { return replies[i].CreatedAt.Before(replies[j].CreatedAt) })
	return replies, nil
}

func (f *fakeStore) CategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	if category, ok := f.categories[id]; ok {
		return &category, nil
	}
	return nil, nil
}

func (f *fakeStore) SelfAndDescendantIDs(ctx context.Context, categoryID int64) ([]int64, error) {
	ids := []int64{categoryID}
	frontier := []int64{categoryID}
	for len(frontier) > 0 {
		var next []int64
		for _, category := range f.categories {
			if category.ParentID.Valid {
				for _, parentID := range frontier {
					if category.ParentID.Int64 == parentID {
						ids = append(ids, category.ID)
						next = append(next, category.ID)
					}
				}
			}
		}
		frontier = next
	}
	return ids, nil
}

func (f *fakeStore) CreatePost(ctx context.Context, post *models.Post) error {
	post.ID = f.nextPostID
	f.nextPostID++
	f.posts[post.ID] = *post
	return nil
}

func (f *fakeStore) SavePost(ctx context.Context, post *models.Post) error {
	f.posts[post.ID] = *post
	return nil
}

// fakeTreeCache records cache traffic
type fakeTreeCache struct {
	entries     map[int64][]byte
	sets        int
	hits        int
	invalidated int
}

func newFakeTreeCache() *fakeTreeCache {
	return &fakeTreeCache{entries: make(map[int64][]byte)}
}

func (c *fakeTreeCache) GetThread(ctx context.Context, threadID int64) ([]byte, bool) {
	payload, ok := c.entries[threadID]
	if ok {
		c.hits++
	}
	return payload, ok
}

func (c *fakeTreeCache) SetThread(ctx context.Context, threadID int64, payload []byte) {
	c.sets++
	c.entries[threadID] = payload
}

func (c *fakeTreeCache) InvalidateThread(ctx context.Context, threadID int64) {
	c.invalidated++
	delete(c.entries, threadID)
}

func newTestService(store *fakeStore, treeCache TreeCache) *Service {
	cfg := &config.ForumConfig{MaxReplyDepth: MaxReplyDepth, ThreadPageSize: 50}
	return NewService(store, treeCache, cfg, zap.NewNop())
}

// Category 1 with child 2; thread 100 in category 2; users: 7 author,
// 8 admin, 9 moderator of category 1, 11 unrelated.
func seedStore() *fakeStore {
	store := newFakeStore()
	store.addCategory(1, 0)
	store.addCategory(2, 1)
	store.addCategory(9, 0)
	store.addThread(100, 2)
	return store
}

var (
	testAuthor    = &models.User{ID: 7, Name: "author"}
	testAdmin     = &models.User{ID: 8, Name: "admin", Admin: true}
	testUnrelated = &models.User{ID: 11, Name: "bystander"}
)

func testModerator() *models.User {
	return &models.User{ID: 9, Name: "mod", Assignments: []models.ModeratorAssignment{
		{UserID: 9, CategoryID: 1},
	}}
}

func TestLoadThread_ChainScenario(t *testing.T) {
	store := seedStore()
	p0 := store.addPost(100, 0, 7, 0)
	p1 := store.addPost(100, p0, 7, 1)
	p2 := store.addPost(100, p1, 7, 2)
	p3 := store.addPost(100, p2, 7, 3)

	svc := newTestService(store, nil)
	view, err := svc.LoadThread(context.Background(), testAuthor, 100)
	if err != nil {
		t.Fatalf("LoadThread failed: %v", err)
	}

	if store.replyFetches != 3 {
		t.Errorf("Expected 3 reply fetches, got %d", store.replyFetches)
	}

	node := view.Posts[0]
	for _, want := range []int64{p1, p2, p3} {
		if len(node.Replies) != 1 {
			t.Fatalf("Expected chain to continue below post %d", node.Post.ID)
		}
		node = node.Replies[0]
		if node.Post.ID != want {
			t.Errorf("Expected post %d, got %d", want, node.Post.ID)
		}
	}
	if len(node.Replies) != 0 {
		t.Errorf("Deepest post should have no replies")
	}

	// The author may edit and delete every post in the chain.
	view.Posts[0].Walk(func(n *Node) {
		if !n.Actions.CanModify || !n.Actions.CanDelete || n.Actions.CanRestore {
			t.Errorf("Unexpected actions on post %d: %+v", n.Post.ID, n.Actions)
		}
	})
}

func TestLoadThread_AnonymousViewer(t *testing.T) {
	store := seedStore()
	p0 := store.addPost(100, 0, 7, 0)
	store.addPost(100, p0, 7, 1)

	svc := newTestService(store, nil)
	view, err := svc.LoadThread(context.Background(), nil, 100)
	if err != nil {
		t.Fatalf("LoadThread failed: %v", err)
	}

	view.Posts[0].Walk(func(n *Node) {
		want := Actions{CanView: true}
		if n.Actions != want {
			t.Errorf("Anonymous viewer actions on post %d = %+v, want %+v", n.Post.ID, n.Actions, want)
		}
	})
}

func TestLoadThread_ModeratorOverAncestorCategory(t *testing.T) {
	store := seedStore()
	store.addPost(100, 0, 7, 0)

	svc := newTestService(store, nil)

	// The moderator is assigned to category 1; the thread lives in its
	// descendant category 2.
	canModerate, err := svc.Resolver().CanModerateCategory(context.Background(), testModerator(), 2)
	if err != nil {
		t.Fatalf("CanModerateCategory failed: %v", err)
	}
	if !canModerate {
		t.Fatal("Moderator of ancestor category should moderate descendant")
	}

	view, err := svc.LoadThread(context.Background(), testModerator(), 100)
	if err != nil {
		t.Fatalf("LoadThread failed: %v", err)
	}
	if !view.Posts[0].Actions.CanModify {
		t.Error("Moderator should be able to modify a post they did not author")
	}
}

func TestLoadThread_UnknownThread(t *testing.T) {
	svc := newTestService(seedStore(), nil)
	if _, err := svc.LoadThread(context.Background(), nil, 404); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLoadThread_CacheRoundTrip(t *testing.T) {
	store := seedStore()
	p0 := store.addPost(100, 0, 7, 0)
	store.addPost(100, p0, 7, 1)

	treeCache := newFakeTreeCache()
	svc := newTestService(store, treeCache)

	if _, err := svc.LoadThread(context.Background(), testAuthor, 100); err != nil {
		t.Fatalf("LoadThread failed: %v", err)
	}
	if treeCache.sets != 1 {
		t.Errorf("Expected tree to be cached once, got %d sets", treeCache.sets)
	}

	rootFetches, replyFetches := store.rootFetches, store.replyFetches
	view, err := svc.LoadThread(context.Background(), testUnrelated, 100)
	if err != nil {
		t.Fatalf("Cached LoadThread failed: %v", err)
	}
	if store.rootFetches != rootFetches || store.replyFetches != replyFetches {
		t.Error("Cached load should not hit storage for the tree")
	}
	if treeCache.hits != 1 {
		t.Errorf("Expected one cache hit, got %d", treeCache.hits)
	}

	// The cached tree is unannotated; actions reflect the new viewer.
	if view.Posts[0].Actions.CanModify {
		t.Error("Bystander must not inherit the previous viewer's actions")
	}
}

func TestCreateReply_DepthGuard(t *testing.T) {
	store := seedStore()
	p0 := store.addPost(100, 0, 7, 0)
	p1 := store.addPost(100, p0, 7, 1)
	p2 := store.addPost(100, p1, 7, 2)
	p3 := store.addPost(100, p2, 7, 3)

	svc := newTestService(store, nil)

	// Depth 3 is still allowed to exist; replying to it would reach 4.
	before := len(store.posts)
	_, err := svc.CreateReply(context.Background(), testAuthor, p3, "too deep")

	var depthErr *DepthExceededError
	if !errors.As(err, &depthErr) {
		t.Fatalf("Expected DepthExceededError, got %v", err)
	}
	if depthErr.Depth != 4 || depthErr.Max != MaxReplyDepth {
		t.Errorf("Unexpected error detail: %+v", depthErr)
	}
	if len(store.posts) != before {
		t.Error("Rejected reply must not be persisted")
	}
}

func TestCreateReply(t *testing.T) {
	store := seedStore()
	p0 := store.addPost(100, 0, 7, 0)

	svc := newTestService(store, nil)
	reply, err := svc.CreateReply(context.Background(), testUnrelated, p0, "a reply")
	if err != nil {
		t.Fatalf("CreateReply failed: %v", err)
	}

	if reply.Depth != 1 {
		t.Errorf("Expected depth 1, got %d", reply.Depth)
	}
	if reply.ThreadID != 100 {
		t.Errorf("Reply must inherit the parent's thread, got %d", reply.ThreadID)
	}
	if !reply.ParentID.Valid || reply.ParentID.Int64 != p0 {
		t.Errorf("Reply parent = %+v, want %d", reply.ParentID, p0)
	}
}

func TestCreateReply_Guards(t *testing.T) {
	store := seedStore()
	p0 := store.addPost(100, 0, 7, 0)
	deleted := store.addPost(100, 0, 7, 1)
	post := store.posts[deleted]
	post.DeletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	store.posts[deleted] = post

	svc := newTestService(store, nil)

	if _, err := svc.CreateReply(context.Background(), nil, p0, "anon"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Anonymous reply should be forbidden, got %v", err)
	}
	if _, err := svc.CreateReply(context.Background(), testAuthor, 404, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Reply to missing post should be not found, got %v", err)
	}
	if _, err := svc.CreateReply(context.Background(), testAuthor, deleted, "ghost"); !errors.Is(err, ErrPostDeleted) {
		t.Errorf("Reply to deleted post should be rejected, got %v", err)
	}
}

func TestUpdatePost(t *testing.T) {
	store := seedStore()
	p0 := store.addPost(100, 0, 7, 0)

	svc := newTestService(store, nil)

	if _, err := svc.UpdatePost(context.Background(), testUnrelated, p0, "hijack"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Unrelated user update should be forbidden, got %v", err)
	}

	updated, err := svc.UpdatePost(context.Background(), testAuthor, p0, "edited")
	if err != nil {
		t.Fatalf("UpdatePost failed: %v", err)
	}
	if updated.Content != "edited" {
		t.Errorf("Expected updated content, got %q", updated.Content)
	}
}

func TestDeleteRestoreRoundTrip(t *testing.T) {
	store := seedStore()
	p0 := store.addPost(100, 0, 7, 0)
	p1 := store.addPost(100, p0, 11, 1)
	store.addPost(100, p1, 7, 2)

	svc := newTestService(store, nil)
	moderator := testModerator()

	deleted, err := svc.DeletePost(context.Background(), moderator, p0)
	if err != nil {
		t.Fatalf("DeletePost failed: %v", err)
	}
	if !deleted.IsDeleted() {
		t.Fatal("Post should be marked deleted")
	}

	// While deleted, edits and repeat deletes are rejected outright.
	if _, err := svc.UpdatePost(context.Background(), testAdmin, p0, "x"); !errors.Is(err, ErrPostDeleted) {
		t.Errorf("Update of deleted post should be rejected, got %v", err)
	}
	if _, err := svc.DeletePost(context.Background(), testAdmin, p0); !errors.Is(err, ErrPostDeleted) {
		t.Errorf("Delete of deleted post should be rejected, got %v", err)
	}

	restored, err := svc.RestorePost(context.Background(), moderator, p0)
	if err != nil {
		t.Fatalf("RestorePost failed: %v", err)
	}
	if restored.IsDeleted() {
		t.Fatal("Restored post should not be deleted")
	}

	// The subtree under the restored post is unchanged.
	view, err := svc.LoadThread(context.Background(), moderator, 100)
	if err != nil {
		t.Fatalf("LoadThread failed: %v", err)
	}
	if len(view.Posts) != 1 || len(view.Posts[0].Replies) != 1 || len(view.Posts[0].Replies[0].Replies) != 1 {
		t.Error("Replies must stay attached across delete and restore")
	}
}

func TestRestorePost_Unauthorized(t *testing.T) {
	store := seedStore()
	p0 := store.addPost(100, 0, 7, 0)

	svc := newTestService(store, nil)
	if _, err := svc.DeletePost(context.Background(), testAdmin, p0); err != nil {
		t.Fatalf("DeletePost failed: %v", err)
	}

	// Non-author, non-moderator, non-admin actor: rejected, no mutation.
	if _, err := svc.RestorePost(context.Background(), testUnrelated, p0); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
	post, _ := store.PostByID(context.Background(), p0)
	if !post.IsDeleted() {
		t.Error("Unauthorized restore must not clear the delete marker")
	}

	if _, err := svc.RestorePost(context.Background(), nil, p0); !errors.Is(err, ErrForbidden) {
		t.Errorf("Anonymous restore should be forbidden, got %v", err)
	}
}

func TestRestorePost_NotDeleted(t *testing.T) {
	store := seedStore()
	p0 := store.addPost(100, 0, 7, 0)

	svc := newTestService(store, nil)
	if _, err := svc.RestorePost(context.Background(), testAdmin, p0); !errors.Is(err, ErrNotDeleted) {
		t.Errorf("Expected ErrNotDeleted, got %v", err)
	}
}

func TestMutationsInvalidateCache(t *testing.T) {
	store := seedStore()
	p0 := store.addPost(100, 0, 7, 0)

	treeCache := newFakeTreeCache()
	svc := newTestService(store, treeCache)

	if _, err := svc.LoadThread(context.Background(), testAuthor, 100); err != nil {
		t.Fatalf("LoadThread failed: %v", err)
	}
	if _, err := svc.CreateReply(context.Background(), testAuthor, p0, "reply"); err != nil {
		t.Fatalf("CreateReply failed: %v", err)
	}

	if treeCache.invalidated != 1 {
		t.Errorf("Expected 1 invalidation after reply, got %d", treeCache.invalidated)
	}
	if _, ok := treeCache.entries[100]; ok {
		t.Error("Thread tree should be evicted after a mutation")
	}
}
