package discussion

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/threadmill/threadmill/internal/db"
	"github.com/threadmill/threadmill/internal/forum"
	"github.com/threadmill/threadmill/internal/models"
)

// ThreadAPI provides thread and category read methods
type ThreadAPI struct {
	svc   *forum.Service
	store *db.Store
}

// NewThreadAPI creates a new thread API
func NewThreadAPI(svc *forum.Service, store *db.Store) *ThreadAPI {
	return &ThreadAPI{svc: svc, store: store}
}

// GetThread handles forum.get_thread
func (t *ThreadAPI) GetThread(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p map[string]interface{}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid parameters format")
	}

	threadID, ok := intParam(p, "thread_id")
	if !ok {
		return nil, fmt.Errorf("missing required parameter: thread_id")
	}

	viewer, err := t.viewerFromParams(ctx, p)
	if err != nil {
		return nil, err
	}

	view, err := t.svc.LoadThread(ctx.Request.Context(), viewer, threadID)
	if err != nil {
		return nil, err
	}

	posts := make([]interface{}, 0, len(view.Posts))
	for _, node := range view.Posts {
		posts = append(posts, buildPostObject(node))
	}

	return map[string]interface{}{
		"id":          view.Thread.ID,
		"category_id": view.Thread.CategoryID,
		"title":       view.Thread.Title,
		"created":     view.Thread.CreatedAt.Format(time.RFC3339),
		"posts":       posts,
	}, nil
}

// ListThreads handles forum.list_threads
func (t *ThreadAPI) ListThreads(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p map[string]interface{}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid parameters format")
	}

	categoryID, ok := intParam(p, "category_id")
	if !ok {
		return nil, fmt.Errorf("missing required parameter: category_id")
	}
	limit := 0
	if l, ok := intParam(p, "limit"); ok {
		limit = int(l)
	}

	threads, err := t.svc.ListThreads(ctx.Request.Context(), categoryID, limit)
	if err != nil {
		return nil, err
	}

	result := make([]interface{}, 0, len(threads))
	for _, thread := range threads {
		result = append(result, map[string]interface{}{
			"id":          thread.ID,
			"category_id": thread.CategoryID,
			"author_id":   thread.AuthorID,
			"title":       thread.Title,
			"created":     thread.CreatedAt.Format(time.RFC3339),
		})
	}

	return result, nil
}

// GetCategory handles forum.get_category
func (t *ThreadAPI) GetCategory(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p map[string]interface{}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid parameters format")
	}

	categoryID, ok := intParam(p, "category_id")
	if !ok {
		return nil, fmt.Errorf("missing required parameter: category_id")
	}

	category, subtree, err := t.svc.CategorySubtree(ctx.Request.Context(), categoryID)
	if err != nil {
		return nil, err
	}

	obj := map[string]interface{}{
		"id":          category.ID,
		"name":        category.Name,
		"subtree_ids": subtree,
	}
	if category.ParentID.Valid {
		obj["parent_id"] = category.ParentID.Int64
	}
	return obj, nil
}

// viewerFromParams loads the optional viewer. A missing viewer_id means an
// unauthenticated request; an unknown one is an error rather than a silent
// anonymous downgrade.
func (t *ThreadAPI) viewerFromParams(ctx *gin.Context, p map[string]interface{}) (*models.User, error) {
	viewerID, ok := intParam(p, "viewer_id")
	if !ok {
		return nil, nil
	}
	viewer, err := t.store.UserByID(ctx.Request.Context(), viewerID)
	if err != nil {
		return nil, err
	}
	if viewer == nil {
		return nil, fmt.Errorf("unknown viewer: %d", viewerID)
	}
	return viewer, nil
}

// buildPostObject serializes one tree node, suppressing the content of
// soft-deleted posts
func buildPostObject(node *forum.Node) map[string]interface{} {
	post := &node.Post

	content := post.Content
	if post.IsDeleted() {
		content = ""
	}

	replies := make([]interface{}, 0, len(node.Replies))
	for _, child := range node.Replies {
		replies = append(replies, buildPostObject(child))
	}

	obj := map[string]interface{}{
		"id":      post.ID,
		"content": content,
		"depth":   post.Depth,
		"created": post.CreatedAt.Format(time.RFC3339),
		"deleted": post.IsDeleted(),
		"actions": map[string]interface{}{
			"can_view":    node.Actions.CanView,
			"can_modify":  node.Actions.CanModify,
			"can_delete":  node.Actions.CanDelete,
			"can_restore": node.Actions.CanRestore,
		},
		"replies": replies,
	}
	if post.AuthorID.Valid {
		obj["author_id"] = post.AuthorID.Int64
	}

	return obj
}

// intParam reads a JSON number parameter as int64
func intParam(p map[string]interface{}, key string) (int64, bool) {
	v, ok := p[key].(float64)
	if !ok {
		return 0, false
	}
	return int64(v), true
}
