package forum

import (
	"context"
	"fmt"

	"github.com/threadmill/threadmill/internal/models"
)

// MaxReplyDepth is the deepest permitted reply level. Roots sit at depth 0,
// so a thread holds at most four levels of posts.
const MaxReplyDepth = 3

// ReplyFetcher retrieves the replies of a set of posts in one call, ordered
// by creation time ascending
type ReplyFetcher interface {
	RepliesByParentIDs(ctx context.Context, parentIDs []int64) ([]models.Post, error)
}

// Node is one post in a materialized reply tree. Replies is ordered by
// creation time; the parent linkage stays id-only so the tree carries no
// back-pointers.
type Node struct {
	Post    models.Post `json:"post"`
	Actions Actions     `json:"actions"`
	Replies []*Node     `json:"replies"`
}

// Walk visits the node and every descendant in depth-first order
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, child := range n.Replies {
		child.Walk(fn)
	}
}

// TreeBuilder expands flat root posts into nested reply trees. Fetches are
// batched per tree level, so a build issues at most maxDepth queries no
// matter how wide the tree is.
type TreeBuilder struct {
	fetcher ReplyFetcher
}

// NewTreeBuilder creates a new tree builder
func NewTreeBuilder(fetcher ReplyFetcher) *TreeBuilder {
	return &TreeBuilder{fetcher: fetcher}
}

// Build attaches replies to the given root posts level by level, descending
// no further than maxDepth. Nodes at the deepest level keep an empty Replies
// slice even when deeper rows exist; those rows are never fetched. A failed
// level fetch aborts the build with no partial tree.
func (b *TreeBuilder) Build(ctx context.Context, roots []models.Post, maxDepth int) ([]*Node, error) {
	nodes := make([]*Node, 0, len(roots))
	for i := range roots {
		nodes = append(nodes, &Node{Post: roots[i], Replies: []*Node{}})
	}

	frontier := nodes
	for level := 0; level < maxDepth && len(frontier) > 0; level++ {
		ids := make([]int64, 0, len(frontier))
		byID := make(map[int64]*Node, len(frontier))
		for _, n := range frontier {
			ids = append(ids, n.Post.ID)
			byID[n.Post.ID] = n
		}

		replies, err := b.fetcher.RepliesByParentIDs(ctx, ids)
		if err != nil {
			return nil, &RetrievalError{Op: fmt.Sprintf("replies at level %d", level+1), Err: err}
		}

		// Replies arrive ordered by creation time, so appending in fetch
		// order keeps every parent's Replies slice ordered.
		next := make([]*Node, 0, len(replies))
		for i := range replies {
			if !replies[i].ParentID.Valid {
				continue
			}
			parent, ok := byID[replies[i].ParentID.Int64]
			if !ok {
				continue
			}
			child := &Node{Post: replies[i], Replies: []*Node{}}
			parent.Replies = append(parent.Replies, child)
			next = append(next, child)
		}

		frontier = next
	}

	return nodes, nil
}
