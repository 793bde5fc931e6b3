package forum

import (
	"context"

	"github.com/threadmill/threadmill/internal/models"
)

// CategoryExpander expands a category into itself plus all descendants
type CategoryExpander interface {
	SelfAndDescendantIDs(ctx context.Context, categoryID int64) ([]int64, error)
}

// ThreadResolver resolves the category a thread belongs to. Implementations
// return a LookupError when the thread or its category cannot be resolved.
type ThreadResolver interface {
	CategoryOfThread(ctx context.Context, threadID int64) (int64, error)
}

// Actions is the permitted action set for one viewer on one post
type Actions struct {
	CanView    bool `json:"can_view"`
	CanModify  bool `json:"can_modify"`
	CanDelete  bool `json:"can_delete"`
	CanRestore bool `json:"can_restore"`
}

// Resolver decides what a user may do to a post. It combines authorship, the
// global admin flag, and moderator assignments expanded over category
// descendants. A nil user denies everything except viewing.
type Resolver struct {
	categories CategoryExpander
	threads    ThreadResolver
}

// NewResolver creates a new authorization resolver
func NewResolver(categories CategoryExpander, threads ThreadResolver) *Resolver {
	return &Resolver{categories: categories, threads: threads}
}

// CanModerateCategory reports whether the user moderates the given category,
// directly or through an assignment on any ancestor category
func (r *Resolver) CanModerateCategory(ctx context.Context, user *models.User, categoryID int64) (bool, error) {
	if user == nil {
		return false, nil
	}
	if user.Admin {
		return true, nil
	}
	if len(user.Assignments) == 0 {
		return false, nil
	}

	for _, assignment := range user.Assignments {
		ids, err := r.categories.SelfAndDescendantIDs(ctx, assignment.CategoryID)
		if err != nil {
			return false, &RetrievalError{Op: "category expansion", Err: err}
		}
		for _, id := range ids {
			if id == categoryID {
				return true, nil
			}
		}
	}

	return false, nil
}

// CanModify reports whether the user may edit the post: author, admin, or
// moderator over the post's thread category
func (r *Resolver) CanModify(ctx context.Context, user *models.User, post *models.Post) (bool, error) {
	return r.canAct(ctx, user, post)
}

// CanDelete reports whether the user may soft-delete the post. Same rule as
// CanModify.
func (r *Resolver) CanDelete(ctx context.Context, user *models.User, post *models.Post) (bool, error) {
	return r.canAct(ctx, user, post)
}

// CanRestore reports whether the user may restore a soft-deleted post. Same
// rule as CanModify.
func (r *Resolver) CanRestore(ctx context.Context, user *models.User, post *models.Post) (bool, error) {
	return r.canAct(ctx, user, post)
}

func (r *Resolver) canAct(ctx context.Context, user *models.User, post *models.Post) (bool, error) {
	if user == nil {
		return false, nil
	}
	if user.Admin {
		return true, nil
	}
	if post.AuthorID.Valid && user.ID == post.AuthorID.Int64 {
		return true, nil
	}

	categoryID, err := r.threads.CategoryOfThread(ctx, post.ThreadID)
	if err != nil {
		return false, err
	}

	return r.CanModerateCategory(ctx, user, categoryID)
}

// ResolveActions computes the full action set for a (user, post) pair. On a
// deleted post only restore remains available; modify and delete are gated
// off regardless of authorization.
func (r *Resolver) ResolveActions(ctx context.Context, user *models.User, post *models.Post) (Actions, error) {
	allowed, err := r.canAct(ctx, user, post)
	if err != nil {
		// Fail closed: the post stays viewable, everything else is denied.
		return Actions{CanView: true}, err
	}
	return ActionsFor(user, post, allowed), nil
}

// ActionsFor applies the deleted-state gating to an already-made
// authorization decision. Used by callers that resolve moderation once per
// thread instead of once per post.
func ActionsFor(user *models.User, post *models.Post, canModerate bool) Actions {
	allowed := canModerate
	if user == nil {
		allowed = false
	} else if !allowed {
		if user.Admin {
			allowed = true
		} else if post.AuthorID.Valid && user.ID == post.AuthorID.Int64 {
			allowed = true
		}
	}

	if post.IsDeleted() {
		return Actions{CanView: true, CanRestore: allowed}
	}
	return Actions{CanView: true, CanModify: allowed, CanDelete: allowed}
}
