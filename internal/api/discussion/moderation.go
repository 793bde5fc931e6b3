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

// ModerationAPI provides post mutation methods: create, edit, soft-delete
// and restore
type ModerationAPI struct {
	svc   *forum.Service
	store *db.Store
}

// NewModerationAPI creates a new moderation API
func NewModerationAPI(svc *forum.Service, store *db.Store) *ModerationAPI {
	return &ModerationAPI{svc: svc, store: store}
}

// CreatePost handles forum.create_post
func (m *ModerationAPI) CreatePost(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	p, actor, err := m.mutationParams(ctx, params)
	if err != nil {
		return nil, err
	}

	threadID, ok := intParam(p, "thread_id")
	if !ok {
		return nil, fmt.Errorf("missing required parameter: thread_id")
	}
	content, _ := p["content"].(string)
	if content == "" {
		return nil, fmt.Errorf("missing required parameter: content")
	}

	post, err := m.svc.CreateRootPost(ctx.Request.Context(), actor, threadID, content)
	if err != nil {
		return nil, err
	}
	return mutationResult(post), nil
}

// CreateReply handles forum.create_reply
func (m *ModerationAPI) CreateReply(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	p, actor, err := m.mutationParams(ctx, params)
	if err != nil {
		return nil, err
	}

	parentID, ok := intParam(p, "parent_id")
	if !ok {
		return nil, fmt.Errorf("missing required parameter: parent_id")
	}
	content, _ := p["content"].(string)
	if content == "" {
		return nil, fmt.Errorf("missing required parameter: content")
	}

	post, err := m.svc.CreateReply(ctx.Request.Context(), actor, parentID, content)
	if err != nil {
		return nil, err
	}
	return mutationResult(post), nil
}

// UpdatePost handles forum.update_post
func (m *ModerationAPI) UpdatePost(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	p, actor, err := m.mutationParams(ctx, params)
	if err != nil {
		return nil, err
	}

	postID, ok := intParam(p, "post_id")
	if !ok {
		return nil, fmt.Errorf("missing required parameter: post_id")
	}
	content, _ := p["content"].(string)
	if content == "" {
		return nil, fmt.Errorf("missing required parameter: content")
	}

	post, err := m.svc.UpdatePost(ctx.Request.Context(), actor, postID, content)
	if err != nil {
		return nil, err
	}
	return mutationResult(post), nil
}

// DeletePost handles forum.delete_post
func (m *ModerationAPI) DeletePost(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	p, actor, err := m.mutationParams(ctx, params)
	if err != nil {
		return nil, err
	}

	postID, ok := intParam(p, "post_id")
	if !ok {
		return nil, fmt.Errorf("missing required parameter: post_id")
	}

	post, err := m.svc.DeletePost(ctx.Request.Context(), actor, postID)
	if err != nil {
		return nil, err
	}
	return mutationResult(post), nil
}

// RestorePost handles forum.restore_post
func (m *ModerationAPI) RestorePost(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	p, actor, err := m.mutationParams(ctx, params)
	if err != nil {
		return nil, err
	}

	postID, ok := intParam(p, "post_id")
	if !ok {
		return nil, fmt.Errorf("missing required parameter: post_id")
	}

	post, err := m.svc.RestorePost(ctx.Request.Context(), actor, postID)
	if err != nil {
		return nil, err
	}
	return mutationResult(post), nil
}

// mutationParams parses the shared parameter envelope and loads the acting
// user. Mutations always require an actor.
func (m *ModerationAPI) mutationParams(ctx *gin.Context, params json.RawMessage) (map[string]interface{}, *models.User, error) {
	var p map[string]interface{}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, nil, fmt.Errorf("invalid parameters format")
	}

	actorID, ok := intParam(p, "actor_id")
	if !ok {
		return nil, nil, forum.ErrForbidden
	}
	actor, err := m.store.UserByID(ctx.Request.Context(), actorID)
	if err != nil {
		return nil, nil, err
	}
	if actor == nil {
		return nil, nil, forum.ErrForbidden
	}

	return p, actor, nil
}

func mutationResult(post *models.Post) map[string]interface{} {
	obj := map[string]interface{}{
		"id":        post.ID,
		"thread_id": post.ThreadID,
		"depth":     post.Depth,
		"created":   post.CreatedAt.Format(time.RFC3339),
		"deleted":   post.IsDeleted(),
	}
	if post.ParentID.Valid {
		obj["parent_id"] = post.ParentID.Int64
	}
	if post.AuthorID.Valid {
		obj["author_id"] = post.AuthorID.Int64
	}
	return obj
}
