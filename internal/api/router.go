package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/threadmill/threadmill/internal/api/discussion"
	"github.com/threadmill/threadmill/internal/cache"
	"github.com/threadmill/threadmill/internal/db"
	"github.com/threadmill/threadmill/internal/forum"
	"github.com/threadmill/threadmill/pkg/config"
	"github.com/threadmill/threadmill/pkg/logging"
)

// Router sets up API routes
type Router struct {
	handler *JSONRPCHandler
	db      *db.DB
	cache   *cache.Cache
	logger  *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(database *db.DB, redisCache *cache.Cache, cfg *config.Config) *Router {
	handler := NewJSONRPCHandler()
	router := &Router{
		handler: handler,
		db:      database,
		cache:   redisCache,
		logger:  logging.GetLogger().With(zap.String("component", "api-router")),
	}

	// Register all API methods
	router.registerMethods(cfg)

	return router
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	// JSON-RPC endpoint
	engine.POST("/", r.handler.Handle)
}

// registerMethods registers all API methods
func (r *Router) registerMethods(cfg *config.Config) {
	repo := db.NewRepository(r.db.DB)
	store := db.NewStore(repo)

	trees := cache.NewTreeStore(r.cache, cfg.Forum.TreeCacheTTL)
	svc := forum.NewService(store, trees, &cfg.Forum,
		logging.GetLogger().With(zap.String("component", "forum")))

	threads := discussion.NewThreadAPI(svc, store)
	moderation := discussion.NewModerationAPI(svc, store)

	// Read methods
	r.handler.RegisterMethod("forum.get_thread", threads.GetThread)
	r.handler.RegisterMethod("forum.list_threads", threads.ListThreads)
	r.handler.RegisterMethod("forum.get_category", threads.GetCategory)

	// Mutation methods
	r.handler.RegisterMethod("forum.create_post", moderation.CreatePost)
	r.handler.RegisterMethod("forum.create_reply", moderation.CreateReply)
	r.handler.RegisterMethod("forum.update_post", moderation.UpdatePost)
	r.handler.RegisterMethod("forum.delete_post", moderation.DeletePost)
	r.handler.RegisterMethod("forum.restore_post", moderation.RestorePost)
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "OK",
		"service": "threadmill-api",
	})
}
