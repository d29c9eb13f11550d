package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"craftboost/api/internal/ai"
	"craftboost/api/internal/models"
	"craftboost/api/internal/repository"
)

// ErrRunActive is returned when a trigger arrives while another run
// already holds the post's run lock.
var ErrRunActive = errors.New("pipeline run already active for this post")

// PostStore is the slice of the post repository the orchestrator needs.
type PostStore interface {
	GetByID(ctx context.Context, id string) (models.Post, error)
	BeginRun(ctx context.Context, id string) (models.Post, error)
	Update(ctx context.Context, id string, update repository.PostUpdate) (models.Post, error)
}

// ImageStore moves image payloads in and out of object storage.
type ImageStore interface {
	GetImage(ctx context.Context, bucket, key string) ([]byte, string, error)
	PutImage(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
	BucketOriginals() string
	BucketProcessed() string
	KeyFromURL(rawURL, bucket string) (string, bool)
}

type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, image []byte, mimeType string) ([]byte, error)
}

type CopyGenerator interface {
	GenerateCopy(ctx context.Context, image []byte, mimeType string) (ai.Copy, error)
}

type SceneGenerator interface {
	GenerateScene(ctx context.Context, image []byte, prompt string) ([]byte, error)
}

// RunLocker serializes runs per post id.
type RunLocker interface {
	Acquire(ctx context.Context, postID string) (bool, error)
	Release(ctx context.Context, postID string) error
}

// Orchestrator drives one post through the three AI stages, persisting
// a checkpoint after every successful stage. Background removal and
// copy generation are fatal on failure; scene generation degrades to
// the background-removed image.
type Orchestrator struct {
	posts       PostStore
	images      ImageStore
	remover     BackgroundRemover
	copywriter  CopyGenerator
	scenes      SceneGenerator
	locks       RunLocker
	scenePrompt string
	log         zerolog.Logger
}

func NewOrchestrator(
	posts PostStore,
	images ImageStore,
	remover BackgroundRemover,
	copywriter CopyGenerator,
	scenes SceneGenerator,
	locks RunLocker,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		posts:       posts,
		images:      images,
		remover:     remover,
		copywriter:  copywriter,
		scenes:      scenes,
		locks:       locks,
		scenePrompt: ai.ScenePrompt,
		log:         log,
	}
}

// Run executes the full pipeline for postID and returns the post in
// its terminal state. Stage failures are resolved into the persisted
// post (status failed plus errorMessage) rather than returned as
// errors; only precondition and infrastructure faults come back as an
// error (repository.ErrPostNotFound, ErrRunActive, store errors).
func (o *Orchestrator) Run(ctx context.Context, postID string) (models.Post, error) {
	post, err := o.posts.GetByID(ctx, postID)
	if err != nil {
		return models.Post{}, err
	}

	// Re-triggering a completed post is a no-op.
	if post.Status == models.PostStatusCompleted {
		return post, nil
	}

	// Once a run starts it proceeds to a terminal state even if the
	// triggering request goes away; there is no mid-run cancellation.
	runCtx := context.WithoutCancel(ctx)

	acquired, err := o.locks.Acquire(runCtx, postID)
	if err != nil {
		return models.Post{}, err
	}
	if !acquired {
		return post, ErrRunActive
	}
	defer func() {
		if err := o.locks.Release(runCtx, postID); err != nil {
			o.log.Error().Err(err).Str("post_id", postID).Msg("release run lock failed")
		}
	}()

	// Persist the processing transition before any external call.
	post, err = o.posts.BeginRun(runCtx, postID)
	if err != nil {
		return models.Post{}, err
	}

	logger := o.log.With().Str("post_id", postID).Logger()
	logger.Info().Msg("pipeline run started")

	originalKey, ok := o.images.KeyFromURL(post.OriginalImage, o.images.BucketOriginals())
	if !ok {
		return models.Post{}, fmt.Errorf("original image url %q does not reference bucket %s", post.OriginalImage, o.images.BucketOriginals())
	}
	original, mimeType, err := o.images.GetImage(runCtx, o.images.BucketOriginals(), originalKey)
	if err != nil {
		return models.Post{}, err
	}

	// Stage 1: background removal. Fatal.
	cutout, err := o.remover.RemoveBackground(runCtx, original, mimeType)
	if err != nil {
		logger.Error().Err(err).Msg("background removal failed")
		return o.failRun(runCtx, postID, "background removal", err)
	}
	cutoutURL, err := o.images.PutImage(runCtx, o.images.BucketProcessed(), postID+"-cutout.png", cutout, "image/png")
	if err != nil {
		return models.Post{}, err
	}
	logger.Debug().Msg("background removed")

	// Stage 2: marketing copy, generated from the original image, not
	// the cutout. Fatal.
	marketingCopy, err := o.copywriter.GenerateCopy(runCtx, original, mimeType)
	if err != nil {
		logger.Error().Err(err).Msg("copy generation failed")
		return o.failRun(runCtx, postID, "copy generation", err)
	}
	post, err = o.posts.Update(runCtx, postID, repository.PostUpdate{
		ProductTitle: &marketingCopy.ProductTitle,
		Captions:     marketingCopy.Captions,
		Hashtags:     marketingCopy.Hashtags,
	})
	if err != nil {
		return models.Post{}, err
	}
	logger.Debug().Str("title", marketingCopy.ProductTitle).Msg("copy generated")

	// Stage 3: scene generation around the cutout. Cosmetic, so a
	// failure degrades to the cutout instead of failing the run.
	processedURL := cutoutURL
	scene, err := o.scenes.GenerateScene(runCtx, cutout, o.scenePrompt)
	if err != nil {
		logger.Warn().Err(err).Msg("scene generation failed, falling back to background-removed image")
	} else {
		processedURL, err = o.images.PutImage(runCtx, o.images.BucketProcessed(), postID+".png", scene, "image/png")
		if err != nil {
			return models.Post{}, err
		}
	}
	post, err = o.posts.Update(runCtx, postID, repository.PostUpdate{
		ProcessedImage: &processedURL,
	})
	if err != nil {
		return models.Post{}, err
	}

	status := models.PostStatusCompleted
	post, err = o.posts.Update(runCtx, postID, repository.PostUpdate{
		Status:            &status,
		ClearErrorMessage: true,
	})
	if err != nil {
		return models.Post{}, err
	}

	logger.Info().Msg("pipeline run completed")
	return post, nil
}

// failRun records a stage-fatal failure on the post. The failure is
// reflected in the returned post, not in the error value.
func (o *Orchestrator) failRun(ctx context.Context, postID, stageName string, stageErr error) (models.Post, error) {
	status := models.PostStatusFailed
	message := fmt.Sprintf("%s failed: %s", stageName, stageErr.Error())

	post, err := o.posts.Update(ctx, postID, repository.PostUpdate{
		Status:       &status,
		ErrorMessage: &message,
	})
	if err != nil {
		return models.Post{}, fmt.Errorf("persist stage failure: %w", err)
	}
	return post, nil
}
