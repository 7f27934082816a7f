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
	"github.com/yungbote/enrollment-backend/internal/modules/enrollment/progress"
	"github.com/yungbote/enrollment-backend/internal/observability"
	"github.com/yungbote/enrollment-backend/internal/platform/ctxutil"
	"github.com/yungbote/enrollment-backend/internal/platform/dbctx"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
	"github.com/yungbote/enrollment-backend/internal/realtime/bus"
)

type LessonEventInput struct {
	StudentID uuid.UUID
	CourseID  uuid.UUID
	LessonID  uuid.UUID
	Status    types.LessonStatus
	TimeSpent int64
}

type QuizAttemptInput struct {
	StudentID    uuid.UUID
	CourseID     uuid.UUID
	QuizID       uuid.UUID
	Score        float64
	PassingScore float64
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

type AssignmentSubmissionInput struct {
	StudentID    uuid.UUID
	CourseID     uuid.UUID
	AssignmentID uuid.UUID
	Content      string
	Score        *float64
}

type GradeAssignmentInput struct {
	StudentID        uuid.UUID
	CourseID         uuid.UUID
	AssignmentID     uuid.UUID
	SubmissionNumber int
	Score            float64
	Feedback         string
}

type ProgressResult struct {
	Progress            *types.Progress `json:"progress"`
	EnrollmentCompleted bool            `json:"enrollment_completed"`
}

type ProgressService interface {
	Get(ctx context.Context, studentID, courseID uuid.UUID) (*types.Progress, error)
	RecordLesson(ctx context.Context, in LessonEventInput) (*ProgressResult, error)
	RecordQuizAttempt(ctx context.Context, in QuizAttemptInput) (*ProgressResult, error)
	RecordAssignmentSubmission(ctx context.Context, in AssignmentSubmissionInput) (*ProgressResult, error)
	GradeAssignment(ctx context.Context, in GradeAssignmentInput) (*ProgressResult, error)
}

type progressService struct {
	db          *gorm.DB
	log         *logger.Logger
	enrollments repos.EnrollmentRepo
	progress    repos.ProgressRepo
	events      events
	expiry      expiry
	clock       func() time.Time
}

func NewProgressService(
	db *gorm.DB,
	log *logger.Logger,
	enrollments repos.EnrollmentRepo,
	progressRepo repos.ProgressRepo,
	eventBus bus.Bus,
) ProgressService {
	serviceLog := log.With("service", "ProgressService")
	ev := events{bus: eventBus, log: serviceLog}
	return &progressService{
		db:          db,
		log:         serviceLog,
		enrollments: enrollments,
		progress:    progressRepo,
		events:      ev,
		expiry:      expiry{enrollments: enrollments, events: ev, log: serviceLog},
		clock:       time.Now,
	}
}

func (s *progressService) Get(ctx context.Context, studentID, courseID uuid.UUID) (*types.Progress, error) {
	const op = "ProgressService.Get"
	rd, err := actor(ctx, op)
	if err != nil {
		return nil, err
	}
	if !rd.CanActFor(studentID) && rd.Role != ctxutil.RoleInstructor {
		return nil, types.Unauthorized(op, "actor may not read this student's progress")
	}
	p, err := s.progress.GetByStudentCourse(dbctx.Context{Ctx: ctx}, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	if p == nil {
		return nil, types.NotFound(op, "no progress for student %s in course %s", studentID, courseID)
	}
	return p, nil
}

func (s *progressService) RecordLesson(ctx context.Context, in LessonEventInput) (*ProgressResult, error) {
	const op = "ProgressService.RecordLesson"
	if _, err := authorizeOwner(ctx, op, in.StudentID); err != nil {
		return nil, err
	}
	return s.apply(ctx, op, in.StudentID, in.CourseID, func(p *types.Progress, now time.Time) error {
		return progress.ApplyLessonEvent(p, in.LessonID, in.Status, in.TimeSpent, now)
	})
}

func (s *progressService) RecordQuizAttempt(ctx context.Context, in QuizAttemptInput) (*ProgressResult, error) {
	const op = "ProgressService.RecordQuizAttempt"
	if _, err := authorizeOwner(ctx, op, in.StudentID); err != nil {
		return nil, err
	}
	return s.apply(ctx, op, in.StudentID, in.CourseID, func(p *types.Progress, now time.Time) error {
		attempt := types.QuizAttempt{
			Score:        in.Score,
			PassingScore: in.PassingScore,
			StartedAt:    now,
			CompletedAt:  in.CompletedAt,
		}
		if in.StartedAt != nil {
			attempt.StartedAt = in.StartedAt.UTC()
		}
		if attempt.CompletedAt == nil {
			attempt.CompletedAt = &now
		}
		return progress.ApplyQuizAttempt(p, in.QuizID, attempt)
	})
}

func (s *progressService) RecordAssignmentSubmission(ctx context.Context, in AssignmentSubmissionInput) (*ProgressResult, error) {
	const op = "ProgressService.RecordAssignmentSubmission"
	if _, err := authorizeOwner(ctx, op, in.StudentID); err != nil {
		return nil, err
	}
	if in.Score != nil {
		if _, err := authorizeStaff(ctx, op); err != nil {
			return nil, err
		}
	}
	return s.apply(ctx, op, in.StudentID, in.CourseID, func(p *types.Progress, now time.Time) error {
		return progress.ApplyAssignmentSubmission(p, in.AssignmentID, types.AssignmentSubmission{
			Content:     in.Content,
			SubmittedAt: now,
			Score:       in.Score,
		})
	})
}

func (s *progressService) GradeAssignment(ctx context.Context, in GradeAssignmentInput) (*ProgressResult, error) {
	const op = "ProgressService.GradeAssignment"
	if _, err := authorizeStaff(ctx, op); err != nil {
		return nil, err
	}
	return s.apply(ctx, op, in.StudentID, in.CourseID, func(p *types.Progress, now time.Time) error {
		if p.ID == uuid.Nil {
			return types.NotFound(op, "no progress for student %s in course %s", in.StudentID, in.CourseID)
		}
		return progress.GradeAssignment(p, in.AssignmentID, in.SubmissionNumber, in.Score, in.Feedback, now)
	})
}

// apply runs mutate against the (student, course) progress row inside one transaction,
// mirrors the overall percentage onto the enrollment and completes the enrollment once its
// criteria hold.
func (s *progressService) apply(
	ctx context.Context,
	op string,
	studentID, courseID uuid.UUID,
	mutate func(p *types.Progress, now time.Time) error,
) (res *ProgressResult, err error) {
	ctx, span := observability.StartSpan(ctx, op, attribute.String("course_id", courseID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if studentID == uuid.Nil || courseID == uuid.Nil {
		return nil, types.InvalidInput(op, "student_id and course_id are required")
	}
	e, err := s.enrollments.GetByStudentCourse(dbctx.Context{Ctx: ctx}, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("load enrollment: %w", err)
	}
	if e == nil {
		return nil, types.NotFound(op, "no enrollment for student %s in course %s", studentID, courseID)
	}
	now := s.clock().UTC()
	s.expiry.observe(ctx, e, now)
	if !lifecycle.CanAccess(e, now) {
		return nil, types.Unauthorized(op, "enrollment is %s; progress cannot be recorded", lifecycle.EffectiveStatus(e, now))
	}

	res = &ProgressResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		p, err := s.progress.EnsureForUpdate(inner, studentID, courseID, e.ID, now)
		if err != nil {
			return fmt.Errorf("load progress: %w", err)
		}
		if err := mutate(p, now); err != nil {
			return err
		}
		progress.Recompute(p)
		p.LastAccessed = now
		if err := s.progress.Save(inner, p); err != nil {
			return fmt.Errorf("save progress: %w", err)
		}
		if err := s.enrollments.UpdateFields(inner, e.ID, map[string]interface{}{
			"progress":      p.OverallProgress,
			"last_accessed": now,
		}); err != nil {
			return fmt.Errorf("mirror progress: %w", err)
		}
		res.Progress = p

		if e.IsCompleted || !lifecycle.CriteriaSatisfied(e.CompletionCriteria, p) {
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

	e.Progress = res.Progress.OverallProgress
	if res.EnrollmentCompleted {
		e.Status = types.StatusCompleted
		e.IsCompleted = true
		e.CompletedOn = &now
		s.log.Info("Enrollment completed by progress criteria",
			"enrollment_id", e.ID,
			"overall_progress", res.Progress.OverallProgress,
		)
		s.events.publish(ctx, types.EventEnrollmentCompleted, e, now)
	}
	return res, nil
}
