package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillforge/skillforge-api/internal/models"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
)

type postRepository interface {
	List(ctx context.Context, filter models.PostFilter) ([]models.PostDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) error
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id string) error
}

// CreatePostRequest publishes an announcement. An empty audience targets
// everyone.
type CreatePostRequest struct {
	Title    string           `json:"title" validate:"required,max=200"`
	Body     string           `json:"body" validate:"required"`
	Audience *models.UserRole `json:"audience" validate:"omitempty,oneof=ADMIN CLO TRAINER RECEPTION STUDENT"`
	Pinned   bool             `json:"pinned"`
}

// UpdatePostRequest edits an announcement.
type UpdatePostRequest struct {
	Title    string           `json:"title" validate:"required,max=200"`
	Body     string           `json:"body" validate:"required"`
	Audience *models.UserRole `json:"audience" validate:"omitempty,oneof=ADMIN CLO TRAINER RECEPTION STUDENT"`
	Pinned   *bool            `json:"pinned"`
}

// PostService manages announcements.
type PostService struct {
	repo      postRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPostService creates an instance of PostService.
func NewPostService(repo postRepository, validate *validator.Validate, logger *zap.Logger) *PostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PostService{repo: repo, validator: validate, logger: logger}
}

// Feed returns announcements visible to a role: untargeted posts plus
// those targeted at the role, pinned first.
func (s *PostService) Feed(ctx context.Context, role models.UserRole, page, pageSize int) ([]models.PostDetail, *models.Pagination, error) {
	filter := models.PostFilter{Audience: &role, Page: page, PageSize: pageSize}
	return s.List(ctx, filter)
}

// List returns announcements matching the filter.
func (s *PostService) List(ctx context.Context, filter models.PostFilter) ([]models.PostDetail, *models.Pagination, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	posts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list posts")
	}
	return posts, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one post.
func (s *PostService) Get(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "post not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load post")
	}
	return post, nil
}

// Create publishes an announcement.
func (s *PostService) Create(ctx context.Context, req CreatePostRequest, authorID string) (*models.Post, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create post payload")
	}
	post := &models.Post{
		ID:       uuid.NewString(),
		Title:    req.Title,
		Body:     req.Body,
		Audience: req.Audience,
		AuthorID: authorID,
		Pinned:   req.Pinned,
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create post")
	}
	return post, nil
}

// Update edits an announcement. Only the author or an admin may edit;
// ownership is checked by the handler via the returned post.
func (s *PostService) Update(ctx context.Context, id string, req UpdatePostRequest) (*models.Post, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update post payload")
	}
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	post.Title = req.Title
	post.Body = req.Body
	post.Audience = req.Audience
	if req.Pinned != nil {
		post.Pinned = *req.Pinned
	}
	if err := s.repo.Update(ctx, post); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "post not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update post")
	}
	return post, nil
}

// Delete removes an announcement.
func (s *PostService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "post not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete post")
	}
	return nil
}
