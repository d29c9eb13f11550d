package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"time"

	"github.com/rs/zerolog"

	"craftboost/api/internal/ids"
	"craftboost/api/internal/media/sniffer"
	"craftboost/api/internal/models"
	"craftboost/api/internal/repository"
	"craftboost/api/internal/storage"
)

const maxUploadBytes = 12 << 20 // generous for phone photos

var (
	ErrEmptyFile    = errors.New("empty file")
	ErrFileTooLarge = errors.New("file exceeds upload limit")
)

type UploadInput struct {
	User   models.User
	File   multipart.File
	Header *multipart.FileHeader
}

// UploadService takes a raw product photo, stores the payload, and
// creates the pending post the pipeline will later pick up.
type UploadService struct {
	posts *repository.PostRepository
	store *storage.ObjectStore
	log   zerolog.Logger
}

func NewUploadService(posts *repository.PostRepository, store *storage.ObjectStore, log zerolog.Logger) *UploadService {
	return &UploadService{
		posts: posts,
		store: store,
		log:   log,
	}
}

func (s *UploadService) Upload(ctx context.Context, input UploadInput) (models.Post, error) {
	if input.File == nil || input.Header == nil {
		return models.Post{}, errors.New("invalid file payload")
	}
	if input.Header.Size > maxUploadBytes {
		return models.Post{}, ErrFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(input.File, maxUploadBytes+1))
	if err != nil {
		return models.Post{}, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return models.Post{}, ErrEmptyFile
	}
	if len(data) > maxUploadBytes {
		return models.Post{}, ErrFileTooLarge
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	result, err := sniffer.DetectHead(head)
	if err != nil {
		return models.Post{}, err
	}

	if declared := sniffer.DeclaredMimeType(input.Header.Header); declared != "" && declared != result.MIME {
		return models.Post{}, fmt.Errorf("content type mismatch: declared %s, actual %s", declared, result.MIME)
	}

	postID := ids.New()
	objectKey := buildObjectKey(postID, string(result.Type))

	url, err := s.store.PutImage(ctx, s.store.BucketOriginals(), objectKey, data, result.MIME)
	if err != nil {
		return models.Post{}, fmt.Errorf("store original: %w", err)
	}

	now := time.Now().UTC()
	post := models.Post{
		ID:            postID,
		UserID:        input.User.ID,
		OriginalImage: url,
		Captions:      []string{},
		Hashtags:      []string{},
		Status:        models.PostStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return models.Post{}, fmt.Errorf("save post: %w", err)
	}

	s.log.Info().
		Str("post_id", post.ID).
		Str("user_id", input.User.ID).
		Int("size_bytes", len(data)).
		Str("format", string(result.Type)).
		Msg("product photo uploaded")

	return post, nil
}

func buildObjectKey(postID, ext string) string {
	datePrefix := time.Now().UTC().Format("2006/01/02")
	return path.Join(datePrefix, fmt.Sprintf("%s.%s", postID, ext))
}
