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

type groupRepository interface {
	List(ctx context.Context, filter models.GroupFilter) ([]models.GroupDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Group, error)
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
	Members(ctx context.Context, groupID string) ([]models.GroupMember, error)
	AddMember(ctx context.Context, groupID, studentID string) error
	RemoveMember(ctx context.Context, groupID, studentID string) error
	IsMember(ctx context.Context, groupID, studentID string) (bool, error)
}

type groupCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type groupUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateGroupRequest payload for creating a group.
type CreateGroupRequest struct {
	Name      string  `json:"name" validate:"required"`
	CourseID  string  `json:"course_id" validate:"required,uuid"`
	TrainerID string  `json:"trainer_id" validate:"required,uuid"`
	Schedule  *string `json:"schedule"`
}

// UpdateGroupRequest payload for updating a group.
type UpdateGroupRequest struct {
	Name      string  `json:"name" validate:"required"`
	TrainerID string  `json:"trainer_id" validate:"required,uuid"`
	Schedule  *string `json:"schedule"`
	Active    *bool   `json:"active"`
}

// GroupService manages cohorts and their rosters.
type GroupService struct {
	repo      groupRepository
	courses   groupCourseRepository
	users     groupUserRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService creates an instance of GroupService.
func NewGroupService(repo groupRepository, courses groupCourseRepository, users groupUserRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GroupService{repo: repo, courses: courses, users: users, cache: cache, validator: validate, logger: logger}
}

// List returns groups with course/trainer names.
func (s *GroupService) List(ctx context.Context, filter models.GroupFilter) ([]models.GroupDetail, *models.Pagination, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	groups, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a group by ID.
func (s *GroupService) Get(ctx context.Context, id string) (*models.Group, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

// Create opens a new group under an active course, led by a trainer.
func (s *GroupService) Create(ctx context.Context, req CreateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create group payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course is inactive")
	}
	if err := s.requireTrainer(ctx, req.TrainerID); err != nil {
		return nil, err
	}

	group := &models.Group{
		ID:        uuid.NewString(),
		Name:      req.Name,
		CourseID:  req.CourseID,
		TrainerID: req.TrainerID,
		Schedule:  req.Schedule,
		Active:    true,
	}
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}
	return group, nil
}

// Update modifies a group, including trainer reassignment.
func (s *GroupService) Update(ctx context.Context, id string, req UpdateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update group payload")
	}
	group, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if group.TrainerID != req.TrainerID {
		if err := s.requireTrainer(ctx, req.TrainerID); err != nil {
			return nil, err
		}
	}
	group.Name = req.Name
	group.TrainerID = req.TrainerID
	group.Schedule = req.Schedule
	if req.Active != nil {
		group.Active = *req.Active
	}
	if err := s.repo.Update(ctx, group); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update group")
	}
	s.invalidateStats(ctx, id)
	return group, nil
}

// Members lists the roster of a group.
func (s *GroupService) Members(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	if _, err := s.Get(ctx, groupID); err != nil {
		return nil, err
	}
	members, err := s.repo.Members(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list group members")
	}
	return members, nil
}

// AddMember puts a student on the roster.
func (s *GroupService) AddMember(ctx context.Context, groupID, studentID string) error {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if !group.Active {
		return appErrors.Clone(appErrors.ErrConflict, "group is inactive")
	}

	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrConflict, "user is not a student")
	}

	already, err := s.repo.IsMember(ctx, groupID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}
	if already {
		return appErrors.Clone(appErrors.ErrConflict, "student is already a member of this group")
	}

	if err := s.repo.AddMember(ctx, groupID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add group member")
	}
	s.invalidateStats(ctx, groupID)
	return nil
}

// RemoveMember takes a student off the roster. Past attendance rows remain.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, studentID string) error {
	if err := s.repo.RemoveMember(ctx, groupID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "membership not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove group member")
	}
	s.invalidateStats(ctx, groupID)
	return nil
}

func (s *GroupService) requireTrainer(ctx context.Context, trainerID string) error {
	trainer, err := s.users.FindByID(ctx, trainerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "trainer not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trainer")
	}
	if trainer.Role != models.RoleTrainer || !trainer.Active {
		return appErrors.Clone(appErrors.ErrConflict, "user is not an active trainer")
	}
	return nil
}

func (s *GroupService) invalidateStats(ctx context.Context, groupID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateGroup(ctx, groupID); err != nil {
		s.logger.Warn("failed to invalidate group stats cache", zap.String("group_id", groupID), zap.Error(err))
	}
}
