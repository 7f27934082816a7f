package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/enrollment-backend/internal/data/repos"
	types "github.com/yungbote/enrollment-backend/internal/domain"
	"github.com/yungbote/enrollment-backend/internal/modules/enrollment/lifecycle"
	"github.com/yungbote/enrollment-backend/internal/observability"
	"github.com/yungbote/enrollment-backend/internal/platform/dbctx"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
	"github.com/yungbote/enrollment-backend/internal/realtime/bus"
)

type WatchResult struct {
	Module              *types.EnrolledModule `json:"module"`
	WatchedCount        int64                 `json:"watched_count"`
	TotalCount          int64                 `json:"total_count"`
	EnrollmentCompleted bool                  `json:"enrollment_completed"`
}

type ModuleService interface {
	Watch(ctx context.Context, moduleID uuid.UUID) (*WatchResult, error)
	List(ctx context.Context, enrollmentID uuid.UUID) ([]*types.EnrolledModule, error)
}

type moduleService struct {
	db          *gorm.DB
	log         *logger.Logger
	enrollments repos.EnrollmentRepo
	modules     repos.EnrolledModuleRepo
	events      events
	expiry      expiry
	clock       func() time.Time
}

func NewModuleService(
	db *gorm.DB,
	log *logger.Logger,
	enrollments repos.EnrollmentRepo,
	modules repos.EnrolledModuleRepo,
	eventBus bus.Bus,
) ModuleService {
	serviceLog := log.With("service", "ModuleService")
	ev := events{bus: eventBus, log: serviceLog}
	return &moduleService{
		db:          db,
		log:         serviceLog,
		enrollments: enrollments,
		modules:     modules,
		events:      ev,
		expiry:      expiry{enrollments: enrollments, events: ev, log: serviceLog},
		clock:       time.Now,
	}
}

// Watch marks a module watched. When the last module of the course is watched the
// enrollment is completed; repeated watches change nothing.
func (s *moduleService) Watch(ctx context.Context, moduleID uuid.UUID) (res *WatchResult, err error) {
	const op = "ModuleService.Watch"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("module_id", moduleID.String()))
	defer func() { observability.EndSpan(span, err) }()

	rd, err := actor(ctx, op)
	if err != nil {
		return nil, err
	}
	if moduleID == uuid.Nil {
		return nil, types.InvalidInput(op, "module id is required")
	}
	dbc := dbctx.Context{Ctx: ctx}
	m, err := s.modules.GetByID(dbc, moduleID)
	if err != nil {
		return nil, fmt.Errorf("load module: %w", err)
	}
	if m == nil {
		return nil, types.NotFound(op, "module %s not found", moduleID)
	}
	if m.StudentID != rd.UserID {
		return nil, types.Unauthorized(op, "only the enrolled student can watch this module")
	}

	e, err := s.enrollments.GetByID(dbc, m.EnrollmentID)
	if err != nil {
		return nil, fmt.Errorf("load enrollment: %w", err)
	}
	if e == nil {
		return nil, types.NotFound(op, "enrollment %s not found", m.EnrollmentID)
	}
	now := s.clock().UTC()
	s.expiry.observe(ctx, e, now)
	if !lifecycle.CanAccess(e, now) {
		return nil, types.Unauthorized(op, "enrollment is %s; modules are not accessible", lifecycle.EffectiveStatus(e, now))
	}

	res = &WatchResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := s.modules.MarkWatched(inner, moduleID, now); err != nil {
			return fmt.Errorf("mark watched: %w", err)
		}
		total, watched, err := s.modules.CountByStudentCourse(inner, m.StudentID, m.CourseID)
		if err != nil {
			return fmt.Errorf("count modules: %w", err)
		}
		res.TotalCount, res.WatchedCount = total, watched
		if err := s.enrollments.UpdateFields(inner, e.ID, map[string]interface{}{"last_accessed": now}); err != nil {
			return fmt.Errorf("touch enrollment: %w", err)
		}
		if total == 0 || watched < total {
			return nil
		}
		ok, err := s.enrollments.MarkCompleted(inner, e.ID, now)
		if err != nil {
			return fmt.Errorf("complete enrollment: %w", err)
		}
		res.EnrollmentCompleted = ok
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Module, err = s.modules.GetByID(dbc, moduleID)
	if err != nil {
		return nil, fmt.Errorf("reload module: %w", err)
	}
	if res.EnrollmentCompleted {
		e.Status = types.StatusCompleted
		e.IsCompleted = true
		e.CompletedOn = &now
		s.log.Info("Enrollment completed by watching all modules",
			"enrollment_id", e.ID,
			"modules", res.TotalCount,
		)
		s.events.publish(ctx, types.EventEnrollmentCompleted, e, now)
	}
	return res, nil
}

func (s *moduleService) List(ctx context.Context, enrollmentID uuid.UUID) ([]*types.EnrolledModule, error) {
	const op = "ModuleService.List"
	e, err := s.enrollments.GetByID(dbctx.Context{Ctx: ctx}, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("load enrollment: %w", err)
	}
	if e == nil {
		return nil, types.NotFound(op, "enrollment %s not found", enrollmentID)
	}
	if _, err := authorizeOwner(ctx, op, e.StudentID); err != nil {
		return nil, err
	}
	out, err := s.modules.ListByEnrollment(dbctx.Context{Ctx: ctx}, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	return out, nil
}
