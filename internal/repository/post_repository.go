package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"craftboost/api/internal/models"
)

var ErrPostNotFound = errors.New("post not found")

const postColumns = `id, user_id, original_image, processed_image, product_title,
	       captions, hashtags, status, error_message, created_at, updated_at`

type PostRepository struct {
	pool *pgxpool.Pool
}

func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

// PostUpdate is a partial merge: nil fields are left untouched.
// ClearErrorMessage distinguishes "set to NULL" from "unchanged".
type PostUpdate struct {
	ProcessedImage    *string
	ProductTitle      *string
	Captions          []string
	Hashtags          []string
	Status            *models.PostStatus
	ErrorMessage      *string
	ClearErrorMessage bool
}

func (r *PostRepository) Create(ctx context.Context, post models.Post) error {
	const query = `
		INSERT INTO posts (
			id, user_id, original_image, processed_image, product_title,
			captions, hashtags, status, error_message, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		post.ID,
		post.UserID,
		post.OriginalImage,
		post.ProcessedImage,
		post.ProductTitle,
		post.Captions,
		post.Hashtags,
		post.Status,
		post.ErrorMessage,
	)
	return err
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, ErrPostNotFound
		}
		return models.Post{}, err
	}
	return post, nil
}

// Update applies a partial merge and always refreshes updated_at.
func (r *PostRepository) Update(ctx context.Context, id string, update PostUpdate) (models.Post, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.ProcessedImage != nil {
		add("processed_image", *update.ProcessedImage)
	}
	if update.ProductTitle != nil {
		add("product_title", *update.ProductTitle)
	}
	if update.Captions != nil {
		add("captions", update.Captions)
	}
	if update.Hashtags != nil {
		add("hashtags", update.Hashtags)
	}
	if update.Status != nil {
		add("status", *update.Status)
	}
	if update.ClearErrorMessage {
		sets = append(sets, "error_message = NULL")
	} else if update.ErrorMessage != nil {
		add("error_message", *update.ErrorMessage)
	}

	query := fmt.Sprintf(
		`UPDATE posts SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(sets, ", "), postColumns,
	)

	post, err := scanPost(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, ErrPostNotFound
		}
		return models.Post{}, err
	}
	return post, nil
}

// BeginRun transitions the post to processing unless it is already
// completed. The conditional write, together with the redis run lock,
// prevents two concurrent runs from both claiming the same post.
func (r *PostRepository) BeginRun(ctx context.Context, id string) (models.Post, error) {
	query := `
		UPDATE posts
		SET status = 'processing', error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND status <> 'completed'
		RETURNING ` + postColumns

	post, err := scanPost(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, ErrPostNotFound
		}
		return models.Post{}, err
	}
	return post, nil
}

func (r *PostRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

// List returns a page of posts, newest first, optionally filtered by
// status, plus the total count matching the filter.
func (r *PostRepository) List(ctx context.Context, page, pageSize int, statusFilter *models.PostStatus) ([]models.Post, int, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	where := ""
	countArgs := []any{}
	listArgs := []any{pageSize, offset}
	if statusFilter != nil {
		where = " WHERE status = $1"
		countArgs = append(countArgs, *statusFilter)
		listArgs = []any{*statusFilter, pageSize, offset}
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	query := `SELECT ` + postColumns + ` FROM posts` + where + ` ORDER BY created_at DESC`
	if statusFilter != nil {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}

	rows, err := r.pool.Query(ctx, query, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, post)
	}
	return posts, total, rows.Err()
}

// FailStaleProcessing marks posts stuck in processing longer than
// threshold as failed. Covers runs killed mid-pipeline by a crash.
func (r *PostRepository) FailStaleProcessing(ctx context.Context, threshold time.Duration, message string) (int64, error) {
	const query = `
		UPDATE posts
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE status = 'processing' AND updated_at < NOW() - make_interval(secs => $1)
	`
	cmd, err := r.pool.Exec(ctx, query, threshold.Seconds(), message)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanPost(row pgx.Row) (models.Post, error) {
	var post models.Post
	err := row.Scan(
		&post.ID,
		&post.UserID,
		&post.OriginalImage,
		&post.ProcessedImage,
		&post.ProductTitle,
		&post.Captions,
		&post.Hashtags,
		&post.Status,
		&post.ErrorMessage,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	return post, err
}
