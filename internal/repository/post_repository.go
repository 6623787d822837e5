package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/skillforge/skillforge-api/internal/models"
)

// PostRepository handles persistence for announcements.
type PostRepository struct {
	db *sqlx.DB
}

// NewPostRepository constructs the repository.
func NewPostRepository(db *sqlx.DB) *PostRepository {
	return &PostRepository{db: db}
}

// List returns posts matching the provided filter. An audience filter also
// matches posts addressed to everyone (NULL audience).
func (r *PostRepository) List(ctx context.Context, filter models.PostFilter) ([]models.PostDetail, int, error) {
	base := "FROM posts p JOIN users u ON u.id = p.author_id"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Audience != nil {
		where = append(where, fmt.Sprintf("(p.audience IS NULL OR p.audience = $%d)", len(args)+1))
		args = append(args, *filter.Audience)
	}
	if filter.AuthorID != "" {
		where = append(where, fmt.Sprintf("p.author_id = $%d", len(args)+1))
		args = append(args, filter.AuthorID)
	}
	if filter.Pinned != nil {
		where = append(where, fmt.Sprintf("p.pinned = $%d", len(args)+1))
		args = append(args, *filter.Pinned)
	}
	whereClause := strings.Join(where, " AND ")

	sortColumn := sortColumnOrDefault(filter.SortBy, map[string]string{
		"title":      "p.title",
		"created_at": "p.created_at",
	}, "created_at")
	order := sortOrderOrDefault(filter.SortOrder)
	limit, offset := pageToLimitOffset(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT p.id, p.title, p.body, p.audience, p.author_id, p.pinned, p.created_at, p.updated_at,
        u.full_name AS author_name
        %s WHERE %s
        ORDER BY p.pinned DESC, %s %s
        LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, limit, offset)

	var rows []models.PostDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}
	return rows, total, nil
}

// FindByID returns one post.
func (r *PostRepository) FindByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	query := "SELECT id, title, body, audience, author_id, pinned, created_at, updated_at FROM posts WHERE id = $1"
	if err := r.db.GetContext(ctx, &post, query, id); err != nil {
		return nil, err
	}
	return &post, nil
}

// Create inserts a new post.
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	now := time.Now().UTC()
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	post.CreatedAt = now
	post.UpdatedAt = now
	query := `INSERT INTO posts (id, title, body, audience, author_id, pinned, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		post.ID, post.Title, post.Body, post.Audience, post.AuthorID, post.Pinned, post.CreatedAt, post.UpdatedAt); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// Update persists mutable post fields.
func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	post.UpdatedAt = time.Now().UTC()
	query := "UPDATE posts SET title = $2, body = $3, audience = $4, pinned = $5, updated_at = $6 WHERE id = $1"
	res, err := r.db.ExecContext(ctx, query,
		post.ID, post.Title, post.Body, post.Audience, post.Pinned, post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return requireRowsAffected(res, "post")
}

// Delete removes a post.
func (r *PostRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM posts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return requireRowsAffected(res, "post")
}
