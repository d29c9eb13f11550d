package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftboost/api/internal/config"
	"craftboost/api/internal/models"
	"craftboost/api/internal/pipeline"
	"craftboost/api/internal/repository"
)

type fakeRunner struct {
	post  models.Post
	err   error
	calls int
}

func (f *fakeRunner) Run(_ context.Context, _ string) (models.Post, error) {
	f.calls++
	return f.post, f.err
}

type fakePostStore struct {
	posts   map[string]models.Post
	listed  []models.Post
	total   int
	updates int
	deletes int
}

func (f *fakePostStore) GetByID(_ context.Context, id string) (models.Post, error) {
	post, ok := f.posts[id]
	if !ok {
		return models.Post{}, repository.ErrPostNotFound
	}
	return post, nil
}

func (f *fakePostStore) Update(_ context.Context, id string, update repository.PostUpdate) (models.Post, error) {
	post, ok := f.posts[id]
	if !ok {
		return models.Post{}, repository.ErrPostNotFound
	}
	f.updates++
	if update.ProductTitle != nil {
		post.ProductTitle = update.ProductTitle
	}
	if update.Captions != nil {
		post.Captions = update.Captions
	}
	if update.Hashtags != nil {
		post.Hashtags = update.Hashtags
	}
	f.posts[id] = post
	return post, nil
}

func (f *fakePostStore) Delete(_ context.Context, id string) error {
	if _, ok := f.posts[id]; !ok {
		return repository.ErrPostNotFound
	}
	f.deletes++
	delete(f.posts, id)
	return nil
}

func (f *fakePostStore) List(_ context.Context, _, _ int, _ *models.PostStatus) ([]models.Post, int, error) {
	return f.listed, f.total, nil
}

type fakeObjects struct {
	removed []string
}

func (f *fakeObjects) RemoveImage(_ context.Context, bucket, key string) error {
	f.removed = append(f.removed, bucket+"/"+key)
	return nil
}

func (f *fakeObjects) KeyFromURL(rawURL, bucket string) (string, bool) {
	prefix := "http://objects.test/" + bucket + "/"
	if len(rawURL) <= len(prefix) || rawURL[:len(prefix)] != prefix {
		return "", false
	}
	return rawURL[len(prefix):], true
}

func (f *fakeObjects) BucketOriginals() string { return "originals" }
func (f *fakeObjects) BucketProcessed() string { return "processed" }

type testEnv struct {
	router  *gin.Engine
	runner  *fakeRunner
	posts   *fakePostStore
	objects *fakeObjects
}

func newTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		runner:  &fakeRunner{},
		posts:   &fakePostStore{posts: map[string]models.Post{}},
		objects: &fakeObjects{},
	}

	h := HandlerSet{
		log:      zerolog.Nop(),
		cfg:      &config.AppConfig{Environment: "test"},
		posts:    env.posts,
		objects:  env.objects,
		pipeline: env.runner,
	}

	router := gin.New()
	router.POST("/process", h.ProcessPost)
	router.GET("/posts", h.ListPosts)
	router.GET("/posts/statuses", h.PostStatuses)
	router.GET("/posts/:id", h.GetPost)
	router.PATCH("/posts/:id", h.UpdatePost)
	router.DELETE("/posts/:id", h.DeletePost)

	env.router = router
	return env
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func completedPost(id string) models.Post {
	processed := "http://objects.test/processed/" + id + ".png"
	title := "Oak Rainbow Stacker"
	return models.Post{
		ID:             id,
		UserID:         "user-1",
		OriginalImage:  "http://objects.test/originals/2026/08/01/" + id + ".jpeg",
		ProcessedImage: &processed,
		ProductTitle:   &title,
		Captions:       []string{"one", "two", "three"},
		Hashtags:       []string{"handmade", "artisan"},
		Status:         models.PostStatusCompleted,
		CreatedAt:      time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2026, 8, 1, 10, 5, 0, 0, time.UTC),
	}
}

func TestProcessPostRequiresPostID(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodPost, "/process", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "postId")
	assert.Equal(t, 0, env.runner.calls)
}

func TestProcessPostUnknownIDIsClientFault(t *testing.T) {
	env := newTestEnv()
	env.runner.err = repository.ErrPostNotFound

	w := env.do(http.MethodPost, "/process", map[string]string{"postId": "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, env.posts.updates, "no store mutation for unknown post")
}

func TestProcessPostActiveRunConflicts(t *testing.T) {
	env := newTestEnv()
	env.runner.err = pipeline.ErrRunActive

	w := env.do(http.MethodPost, "/process", map[string]string{"postId": "p1"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestProcessPostStageFailureIsServerFault(t *testing.T) {
	env := newTestEnv()
	msg := "background removal failed: Photoroom API error (500): segmentation error"
	failed := completedPost("p1")
	failed.Status = models.PostStatusFailed
	failed.ProcessedImage = nil
	failed.ErrorMessage = &msg
	env.runner.post = failed

	w := env.do(http.MethodPost, "/process", map[string]string{"postId": "p1"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "background removal failed")
}

func TestProcessPostSuccessReturnsSerializedPost(t *testing.T) {
	env := newTestEnv()
	env.runner.post = completedPost("p1")

	first := env.do(http.MethodPost, "/process", map[string]string{"postId": "p1"})
	require.Equal(t, http.StatusOK, first.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &body))
	assert.Equal(t, "p1", body["id"])
	assert.Equal(t, "completed", body["status"])
	assert.Nil(t, body["errorMessage"])
	assert.Equal(t, "2026-08-01T10:00:00Z", body["createdAt"])
	assert.Len(t, body["captions"], 3)

	// Triggering again returns the identical serialization.
	second := env.do(http.MethodPost, "/process", map[string]string{"postId": "p1"})
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestGetPostNotFound(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodGet, "/posts/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPostsPagination(t *testing.T) {
	env := newTestEnv()
	env.posts.listed = []models.Post{completedPost("p1"), completedPost("p2")}
	env.posts.total = 25

	w := env.do(http.MethodGet, "/posts?page=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Posts      []json.RawMessage `json:"posts"`
		Total      int               `json:"total"`
		Page       int               `json:"page"`
		TotalPages int               `json:"totalPages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 25, body.Total)
	assert.Equal(t, 1, body.Page)
	assert.Equal(t, 3, body.TotalPages, "ceil(25/12)")
}

func TestListPostsRejectsBadStatusFilter(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodGet, "/posts?status=exploded", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdatePostRejectedWhileProcessing(t *testing.T) {
	env := newTestEnv()
	post := completedPost("p1")
	post.Status = models.PostStatusProcessing
	env.posts.posts["p1"] = post

	w := env.do(http.MethodPatch, "/posts/p1", map[string]any{"productTitle": "New Title"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 0, env.posts.updates)
}

func TestUpdatePostRequiresThreeCaptions(t *testing.T) {
	env := newTestEnv()
	env.posts.posts["p1"] = completedPost("p1")

	w := env.do(http.MethodPatch, "/posts/p1", map[string]any{"captions": []string{"only one"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdatePostNormalizesHashtags(t *testing.T) {
	env := newTestEnv()
	env.posts.posts["p1"] = completedPost("p1")

	w := env.do(http.MethodPatch, "/posts/p1", map[string]any{"hashtags": []string{"#Handmade", "GIFT"}})
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.ElementsMatch(t, []any{"handmade", "gift"}, body["hashtags"])
}

func TestDeletePostRemovesStoredObjects(t *testing.T) {
	env := newTestEnv()
	env.posts.posts["p1"] = completedPost("p1")

	w := env.do(http.MethodDelete, "/posts/p1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.posts.deletes)
	assert.Contains(t, env.objects.removed, "originals/2026/08/01/p1.jpeg")
	assert.Contains(t, env.objects.removed, "processed/p1.png")

	// Deleting again reports not found; deletion is idempotent by id.
	w = env.do(http.MethodDelete, "/posts/p1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostStatusesCoversAllBadges(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodGet, "/posts/statuses", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Statuses map[string]models.StatusBadge `json:"statuses"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Statuses, 4)
	for _, s := range []string{"pending", "processing", "completed", "failed"} {
		assert.Contains(t, body.Statuses, s)
	}
}
