package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/skillforge/skillforge-api/internal/models"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
)

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error)
	BulkUpsert(ctx context.Context, records []models.Attendance, atomic bool) ([]models.AttendanceBulkConflict, error)
	SessionSheet(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
	StudentSummary(ctx context.Context, studentID, groupID string) (*models.AttendanceSummary, error)
}

type attendanceSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

type attendanceGroupRepository interface {
	IsMember(ctx context.Context, groupID, studentID string) (bool, error)
}

// AttendanceService records and reads attendance. Writes are gated on the
// session status: once a session is completed or cancelled the sheet is
// frozen.
type AttendanceService struct {
	repo      attendanceRepository
	sessions  attendanceSessionRepository
	groups    attendanceGroupRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, sessions attendanceSessionRepository, groups attendanceGroupRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{repo: repo, sessions: sessions, groups: groups, cache: cache, validator: validate, logger: logger}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToLower(fl.Field().String())).Valid()
	})
	svc.validator.RegisterValidation("bulk_mode", func(fl validator.FieldLevel) bool {
		mode := models.BulkOperationMode(fl.Field().String())
		return mode == models.BulkModeAtomic || mode == models.BulkModePartialOnError
	})
	return svc
}

// AttendanceListRequest filters attendance listings.
type AttendanceListRequest struct {
	SessionID string  `json:"session_id"`
	StudentID string  `json:"student_id"`
	GroupID   string  `json:"group_id"`
	Status    *string `json:"status" validate:"omitempty,attendance_status"`
	Page      int     `json:"page"`
	PageSize  int     `json:"page_size"`
	SortBy    string  `json:"sort_by"`
	SortOrder string  `json:"sort_order"`
}

// MarkAttendanceRequest records one student's attendance for a session.
type MarkAttendanceRequest struct {
	SessionID string  `json:"session_id" validate:"required"`
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"required,attendance_status"`
	Notes     *string `json:"notes" validate:"omitempty,max=500"`
}

// BulkAttendanceItem is one row of a bulk sheet submission.
type BulkAttendanceItem struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"required,attendance_status"`
	Notes     *string `json:"notes" validate:"omitempty,max=500"`
}

// BulkMarkAttendanceRequest submits a whole sheet for one session.
type BulkMarkAttendanceRequest struct {
	SessionID string               `json:"session_id" validate:"required"`
	Mode      string               `json:"mode" validate:"required,bulk_mode"`
	Items     []BulkAttendanceItem `json:"items" validate:"required,min=1,dive"`
}

// BulkAttendanceResult summarises bulk execution.
type BulkAttendanceResult struct {
	Processed int                             `json:"processed"`
	Success   int                             `json:"success"`
	Conflicts []models.AttendanceBulkConflict `json:"conflicts,omitempty"`
}

// List returns paginated attendance records.
func (s *AttendanceService) List(ctx context.Context, req AttendanceListRequest) ([]models.AttendanceRecord, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	var status *models.AttendanceStatus
	if req.Status != nil {
		st := models.AttendanceStatus(strings.ToLower(*req.Status))
		status = &st
	}
	page, size := normalizePage(req.Page, req.PageSize)
	filter := models.AttendanceFilter{
		SessionID: req.SessionID,
		StudentID: req.StudentID,
		GroupID:   req.GroupID,
		Status:    status,
		Page:      page,
		PageSize:  size,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return rows, pagination, nil
}

// Mark records one attendance row. Re-marking the same student overwrites
// the earlier row; last write wins.
func (s *AttendanceService) Mark(ctx context.Context, markerID string, req MarkAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	session, err := s.loadOpenSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, session.GroupID, req.StudentID); err != nil {
		return nil, err
	}

	record := &models.Attendance{
		SessionID: req.SessionID,
		StudentID: req.StudentID,
		Status:    models.AttendanceStatus(strings.ToLower(req.Status)),
		Notes:     req.Notes,
		MarkedBy:  markerID,
	}
	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}
	s.invalidateStats(ctx, session.GroupID)
	return stored, nil
}

// BulkMark records a whole sheet in one transaction. Every row is checked
// against the session group's roster, like Mark. Atomic mode rejects the
// batch on the first bad row; partial mode commits the good rows and
// reports the rest as conflicts.
func (s *AttendanceService) BulkMark(ctx context.Context, markerID string, req BulkMarkAttendanceRequest) (*BulkAttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	session, err := s.loadOpenSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	mode := models.BulkOperationMode(req.Mode)
	atomic := mode == models.BulkModeAtomic
	seen := map[string]struct{}{}
	records := make([]models.Attendance, 0, len(req.Items))
	var conflicts []models.AttendanceBulkConflict
	for _, item := range req.Items {
		if _, ok := seen[item.StudentID]; ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, "duplicate student in payload")
		}
		seen[item.StudentID] = struct{}{}

		member, err := s.groups.IsMember(ctx, session.GroupID, item.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check group membership")
		}
		if !member {
			if atomic {
				return nil, appErrors.Clone(appErrors.ErrConflict, "student is not a member of the session's group")
			}
			conflicts = append(conflicts, models.AttendanceBulkConflict{
				SessionID: req.SessionID,
				StudentID: item.StudentID,
				Reason:    "not a group member",
			})
			continue
		}

		records = append(records, models.Attendance{
			SessionID: req.SessionID,
			StudentID: item.StudentID,
			Status:    models.AttendanceStatus(strings.ToLower(item.Status)),
			Notes:     item.Notes,
			MarkedBy:  markerID,
		})
	}

	if len(records) > 0 {
		repoConflicts, err := s.repo.BulkUpsert(ctx, records, atomic)
		if err != nil {
			if atomic {
				return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "bulk attendance rejected")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk attendance failed")
		}
		conflicts = append(conflicts, repoConflicts...)
	}

	s.invalidateStats(ctx, session.GroupID)
	result := &BulkAttendanceResult{Processed: len(req.Items), Success: len(req.Items) - len(conflicts)}
	if len(conflicts) > 0 {
		result.Conflicts = conflicts
	}
	return result, nil
}

// SessionSheet returns the recorded sheet for a session.
func (s *AttendanceService) SessionSheet(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	rows, err := s.repo.SessionSheet(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance sheet")
	}
	return rows, nil
}

// StudentSummary aggregates one student's attendance across non-cancelled
// sessions, optionally scoped to a group.
func (s *AttendanceService) StudentSummary(ctx context.Context, studentID, groupID string) (*models.AttendanceSummary, error) {
	summary, err := s.repo.StudentSummary(ctx, studentID, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	return summary, nil
}

func (s *AttendanceService) loadOpenSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if !session.Status.AttendanceOpen() {
		return nil, appErrors.Clone(appErrors.ErrSessionFinalized, "attendance is closed for this session")
	}
	return session, nil
}

func (s *AttendanceService) requireMember(ctx context.Context, groupID, studentID string) error {
	member, err := s.groups.IsMember(ctx, groupID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check group membership")
	}
	if !member {
		return appErrors.Clone(appErrors.ErrConflict, "student is not a member of the session's group")
	}
	return nil
}

func (s *AttendanceService) invalidateStats(ctx context.Context, groupID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateGroup(ctx, groupID); err != nil {
		s.logger.Warn("failed to invalidate group stats cache", zap.String("group_id", groupID), zap.Error(err))
	}
}
