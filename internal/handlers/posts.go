package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"craftboost/api/internal/ai"
	"craftboost/api/internal/middleware"
	"craftboost/api/internal/models"
	"craftboost/api/internal/pipeline"
	"craftboost/api/internal/repository"
	"craftboost/api/internal/service"
)

const (
	defaultPageSize = 12
	maxPageSize     = 48
)

func (h HandlerSet) UploadPost(c *gin.Context) {
	userVal, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	user, ok := userVal.(models.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_user"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		return
	}
	defer file.Close()

	post, err := h.uploads.Upload(c.Request.Context(), service.UploadInput{
		User:   user,
		File:   file,
		Header: header,
	})
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("upload failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"post": serializePost(post)})
}

type processRequest struct {
	PostID string `json:"postId"`
}

// ProcessPost triggers the AI pipeline and blocks until the post
// reaches a terminal state. Stage-fatal failures come back as 502 with
// the persisted error message; the failure itself lives on the post.
func (h HandlerSet) ProcessPost(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PostID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required field: postId"})
		return
	}

	post, err := h.pipeline.Run(c.Request.Context(), req.PostID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPostNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Post " + req.PostID + " not found"})
		case errors.Is(err, pipeline.ErrRunActive):
			c.JSON(http.StatusConflict, gin.H{"error": "processing already in progress"})
		default:
			h.log.Error().Err(err).Str("post_id", req.PostID).Msg("pipeline run errored")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	if post.Status == models.PostStatusFailed {
		message := "processing failed"
		if post.ErrorMessage != nil {
			message = *post.ErrorMessage
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": message})
		return
	}

	c.JSON(http.StatusOK, serializePost(post))
}

func (h HandlerSet) GetPost(c *gin.Context) {
	post, err := h.posts.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
			return
		}
		h.log.Error().Err(err).Msg("get post failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, serializePost(post))
}

func (h HandlerSet) ListPosts(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var statusFilter *models.PostStatus
	if raw := c.Query("status"); raw != "" {
		status := models.PostStatus(raw)
		if !models.ValidPostStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
		statusFilter = &status
	}

	posts, total, err := h.posts.List(c.Request.Context(), page, pageSize, statusFilter)
	if err != nil {
		h.log.Error().Err(err).Msg("list posts failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":      serializePosts(posts),
		"total":      total,
		"page":       page,
		"totalPages": int(math.Ceil(float64(total) / float64(pageSize))),
	})
}

type updatePostRequest struct {
	ProductTitle *string  `json:"productTitle"`
	Captions     []string `json:"captions"`
	Hashtags     []string `json:"hashtags"`
}

// UpdatePost edits marketing copy outside an active pipeline run.
func (h HandlerSet) UpdatePost(c *gin.Context) {
	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Captions != nil && len(req.Captions) != 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "captions must contain exactly 3 entries"})
		return
	}

	id := c.Param("id")
	post, err := h.posts.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if post.Status == models.PostStatusProcessing {
		c.JSON(http.StatusConflict, gin.H{"error": "post is being processed"})
		return
	}

	update := repository.PostUpdate{
		ProductTitle: req.ProductTitle,
		Captions:     req.Captions,
	}
	if req.Hashtags != nil {
		update.Hashtags = ai.NormalizeHashtags(req.Hashtags)
	}

	updated, err := h.posts.Update(c.Request.Context(), id, update)
	if err != nil {
		h.log.Error().Err(err).Str("post_id", id).Msg("update post failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, serializePost(updated))
}

// DeletePost removes the record and, best effort, its stored images.
func (h HandlerSet) DeletePost(c *gin.Context) {
	id := c.Param("id")

	post, err := h.posts.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if err := h.posts.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
			return
		}
		h.log.Error().Err(err).Str("post_id", id).Msg("delete post failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	h.removeObjects(c, post)

	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

func (h HandlerSet) removeObjects(c *gin.Context, post models.Post) {
	urls := []struct {
		url    string
		bucket string
	}{
		{post.OriginalImage, h.objects.BucketOriginals()},
	}
	if post.ProcessedImage != nil {
		urls = append(urls, struct {
			url    string
			bucket string
		}{*post.ProcessedImage, h.objects.BucketProcessed()})
	}

	for _, ref := range urls {
		key, ok := h.objects.KeyFromURL(ref.url, ref.bucket)
		if !ok {
			continue
		}
		if err := h.objects.RemoveImage(c.Request.Context(), ref.bucket, key); err != nil {
			h.log.Warn().Err(err).Str("post_id", post.ID).Str("key", key).Msg("remove stored image failed")
		}
	}
}

// PostStatuses serves the badge lookup table the dashboard renders.
func (h HandlerSet) PostStatuses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"statuses": models.StatusBadges})
}
