package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"craftboost/api/internal/config"
	"craftboost/api/internal/middleware"
	"craftboost/api/internal/models"
	"craftboost/api/internal/repository"
	"craftboost/api/internal/service"
)

// PipelineRunner triggers the AI pipeline for a post.
type PipelineRunner interface {
	Run(ctx context.Context, postID string) (models.Post, error)
}

// PostStore is the post persistence surface the handlers use.
type PostStore interface {
	GetByID(ctx context.Context, id string) (models.Post, error)
	Update(ctx context.Context, id string, update repository.PostUpdate) (models.Post, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page, pageSize int, statusFilter *models.PostStatus) ([]models.Post, int, error)
}

// ObjectRemover cleans up stored image payloads when a post is deleted.
type ObjectRemover interface {
	RemoveImage(ctx context.Context, bucket, key string) error
	KeyFromURL(rawURL, bucket string) (string, bool)
	BucketOriginals() string
	BucketProcessed() string
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	db       *pgxpool.Pool
	cache    *redis.Client
	posts    PostStore
	objects  ObjectRemover
	users    *repository.UserRepository
	auth     *service.AuthService
	uploads  *service.UploadService
	pipeline PipelineRunner
}

func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	db *pgxpool.Pool,
	cache *redis.Client,
	posts PostStore,
	objects ObjectRemover,
	users *repository.UserRepository,
	auth *service.AuthService,
	uploads *service.UploadService,
	pipeline PipelineRunner,
) HandlerSet {
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		db:       db,
		cache:    cache,
		posts:    posts,
		objects:  objects,
		users:    users,
		auth:     auth,
		uploads:  uploads,
		pipeline: pipeline,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", h.RegisterUser)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.Logout)

	protected := v1.Group("")
	protected.Use(middleware.Auth(h.cfg, h.auth, h.users))

	protected.GET("/auth/me", h.Me)

	protected.POST("/posts", h.UploadPost)
	protected.GET("/posts", h.ListPosts)
	protected.GET("/posts/statuses", h.PostStatuses)
	protected.GET("/posts/:id", h.GetPost)
	protected.PATCH("/posts/:id", h.UpdatePost)
	protected.DELETE("/posts/:id", h.DeletePost)

	protected.POST("/process", h.ProcessPost)
}
