package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/enrollment-backend/internal/data/repos"
	types "github.com/yungbote/enrollment-backend/internal/domain"
	"github.com/yungbote/enrollment-backend/internal/modules/enrollment/amortization"
	"github.com/yungbote/enrollment-backend/internal/modules/enrollment/lifecycle"
	"github.com/yungbote/enrollment-backend/internal/modules/enrollment/policy"
	"github.com/yungbote/enrollment-backend/internal/observability"
	"github.com/yungbote/enrollment-backend/internal/platform/dbctx"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
	"github.com/yungbote/enrollment-backend/internal/realtime/bus"
)

// PaymentConfirmation is the already verified result of the payment gateway.
type PaymentConfirmation struct {
	PaymentID string
	OrderID   string
	Signature string
	Method    string
	Amount    decimal.Decimal
	Currency  string
	PaidAt    *time.Time
}

type EmiRequest struct {
	NumberOfInstallments int
	InterestRate         *float64
	DownPayment          decimal.Decimal
	ProcessingFee        decimal.Decimal
	GracePeriodDays      *int
	StartDate            *time.Time
}

// CriteriaInput overrides individual completion criteria. Nil fields keep the base value:
// the policy defaults on create, the stored criteria on update.
type CriteriaInput struct {
	RequiredProgress    *int
	RequiredAssignments *bool
	RequiredQuizzes     *bool
}

func (c *CriteriaInput) over(base types.CompletionCriteria) types.CompletionCriteria {
	if c == nil {
		return base
	}
	if c.RequiredProgress != nil {
		base.RequiredProgress = *c.RequiredProgress
	}
	if c.RequiredAssignments != nil {
		base.RequiredAssignments = *c.RequiredAssignments
	}
	if c.RequiredQuizzes != nil {
		base.RequiredQuizzes = *c.RequiredQuizzes
	}
	return base
}

type CreateEnrollmentInput struct {
	StudentID          uuid.UUID
	CourseID           uuid.UUID
	EnrollmentType     types.EnrollmentType
	IsSelfPaced        bool
	ExpiryDate         *time.Time
	LearningPath       types.LearningPath
	CompletionCriteria *CriteriaInput
	PaymentStatus      types.PaymentStatus
	Payment            *PaymentConfirmation
	Emi                *EmiRequest
	Metadata           map[string]interface{}
}

type CreateEnrollmentResult struct {
	Enrollment   *types.Enrollment        `json:"enrollment"`
	Modules      []*types.EnrolledModule `json:"modules"`
	ModulesError string                  `json:"modules_error,omitempty"`
}

// UpdateEnrollmentInput carries optional changes. StudentID and CourseID are accepted only
// so that attempts to re-point an enrollment can be rejected explicitly.
type UpdateEnrollmentInput struct {
	StudentID          *uuid.UUID
	CourseID           *uuid.UUID
	Status             *types.EnrollmentStatus
	PaymentStatus      *types.PaymentStatus
	IsSelfPaced        *bool
	ExpiryDate         *time.Time
	IsCompleted        *bool
	LearningPath       *types.LearningPath
	CompletionCriteria *CriteriaInput
	Metadata           map[string]interface{}
}

type ListFilter struct {
	Status         types.EnrollmentStatus
	IncludeExpired bool
}

type ListInput struct {
	StudentID      *uuid.UUID
	Status         types.EnrollmentStatus
	PaymentStatus  types.PaymentStatus
	EnrollmentType types.EnrollmentType
	IncludeExpired bool
	Page           int
	Limit          int
}

type EnrollmentPage struct {
	Items []*EnrollmentView `json:"items"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
	Pages int               `json:"pages"`
}

// EnrollmentView is an enrollment with its read-time derived state.
type EnrollmentView struct {
	*types.Enrollment
	EffectiveStatus types.EnrollmentStatus `json:"effective_status"`
	CanAccess       bool                   `json:"can_access"`
	Statistics      *repos.CourseStats     `json:"statistics,omitempty"`
}

type EmiView struct {
	Schedule    *types.EmiSchedule `json:"schedule"`
	Outstanding decimal.Decimal    `json:"outstanding"`
	NextDue     *types.Installment `json:"next_due,omitempty"`
}

type EnrollmentService interface {
	Create(ctx context.Context, in CreateEnrollmentInput) (*CreateEnrollmentResult, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateEnrollmentInput) (*EnrollmentView, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*EnrollmentView, error)
	List(ctx context.Context, in ListInput) (*EnrollmentPage, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID, f ListFilter) ([]*EnrollmentView, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID, f ListFilter) ([]*EnrollmentView, error)
	CountsByStudent(ctx context.Context, studentID uuid.UUID) (map[types.EnrollmentStatus]int64, error)
	MarkCompleted(ctx context.Context, studentID, courseID uuid.UUID) (*EnrollmentView, error)
	GetEmi(ctx context.Context, id uuid.UUID) (*EmiView, error)
	RecordInstallment(ctx context.Context, id uuid.UUID, number int, status types.InstallmentStatus) (*EmiView, error)
}

type enrollmentService struct {
	db          *gorm.DB
	log         *logger.Logger
	users       repos.UserRepo
	courses     repos.CourseRepo
	enrollments repos.EnrollmentRepo
	modules     repos.EnrolledModuleRepo
	progress    repos.ProgressRepo
	policy      policy.Policy
	events      events
	expiry      expiry
	clock       func() time.Time
}

func NewEnrollmentService(
	db *gorm.DB,
	log *logger.Logger,
	users repos.UserRepo,
	courses repos.CourseRepo,
	enrollments repos.EnrollmentRepo,
	modules repos.EnrolledModuleRepo,
	progress repos.ProgressRepo,
	pol policy.Policy,
	eventBus bus.Bus,
) EnrollmentService {
	serviceLog := log.With("service", "EnrollmentService")
	ev := events{bus: eventBus, log: serviceLog}
	return &enrollmentService{
		db:          db,
		log:         serviceLog,
		users:       users,
		courses:     courses,
		enrollments: enrollments,
		modules:     modules,
		progress:    progress,
		policy:      pol,
		events:      ev,
		expiry:      expiry{enrollments: enrollments, events: ev, log: serviceLog},
		clock:       time.Now,
	}
}

func (s *enrollmentService) now() time.Time { return s.clock().UTC() }

func (s *enrollmentService) Create(ctx context.Context, in CreateEnrollmentInput) (res *CreateEnrollmentResult, err error) {
	const op = "EnrollmentService.Create"
	ctx, span := observability.StartSpan(ctx, op,
		attribute.String("course_id", in.CourseID.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	if in.StudentID == uuid.Nil || in.CourseID == uuid.Nil {
		return nil, types.InvalidInput(op, "student_id and course_id are required")
	}
	if _, err := authorizeOwner(ctx, op, in.StudentID); err != nil {
		return nil, err
	}
	if err := s.normalizeCreate(op, &in); err != nil {
		return nil, err
	}

	dbc := dbctx.Context{Ctx: ctx}
	exists, err := s.users.Exists(dbc, in.StudentID)
	if err != nil {
		return nil, fmt.Errorf("lookup student: %w", err)
	}
	if !exists {
		return nil, types.NotFound(op, "student %s not found", in.StudentID)
	}
	course, err := s.courses.GetByID(dbc, in.CourseID)
	if err != nil {
		return nil, fmt.Errorf("lookup course: %w", err)
	}
	if course == nil {
		return nil, types.NotFound(op, "course %s not found", in.CourseID)
	}

	// Fast path only; the unique index decides under races.
	dup, err := s.enrollments.Exists(dbc, in.StudentID, in.CourseID)
	if err != nil {
		return nil, fmt.Errorf("check existing enrollment: %w", err)
	}
	if dup {
		return nil, types.Duplicate(op, "student %s is already enrolled in course %s", in.StudentID, in.CourseID)
	}

	now := s.now()
	e := &types.Enrollment{
		StudentID:          in.StudentID,
		CourseID:           in.CourseID,
		EnrollmentType:     in.EnrollmentType,
		BatchSize:          batchSize(in.EnrollmentType, course),
		PaymentStatus:      in.PaymentStatus,
		Status:             types.StatusActive,
		IsSelfPaced:        in.IsSelfPaced,
		ExpiryDate:         lifecycle.DefaultExpiry(in.IsSelfPaced, in.ExpiryDate, now, s.policy.ValidityMonths),
		EnrollmentDate:     now,
		PaymentDetails:     s.paymentDetails(in.Payment),
		PaymentType:        types.PaymentTypeFull,
		LearningPath:       in.LearningPath,
		CompletionCriteria: in.CompletionCriteria.over(s.policy.CompletionCriteria),
		Metadata:           datatypes.JSONMap(in.Metadata),
		LastAccessed:       &now,
	}

	if in.Emi != nil {
		schedule, err := s.buildSchedule(op, in.Emi, e.PaymentDetails.Amount, now)
		if err != nil {
			return nil, err
		}
		e.EmiDetails = &schedule
		e.PaymentType = types.PaymentTypeEMI
	}
	if err := lifecycle.ValidateExpiry(e); err != nil {
		return nil, err
	}

	if err := s.enrollments.Create(dbc, e); err != nil {
		if errors.Is(err, repos.ErrDuplicateEnrollment) {
			return nil, types.NewError(types.CodeDuplicateEnrollment, op, "student is already enrolled in this course", err)
		}
		return nil, fmt.Errorf("create enrollment: %w", err)
	}
	s.log.Info("Enrollment created",
		"enrollment_id", e.ID,
		"student_id", e.StudentID,
		"course_id", e.CourseID,
		"payment_type", e.PaymentType,
	)

	res = &CreateEnrollmentResult{Enrollment: e, Modules: []*types.EnrolledModule{}}
	modules := buildModules(e, course)
	if len(modules) > 0 {
		created, mErr := s.modules.CreateBatch(dbc, modules)
		if mErr != nil {
			s.log.Error("Module materialization failed; enrollment kept",
				"enrollment_id", e.ID,
				"module_count", len(modules),
				"error", mErr,
			)
			res.ModulesError = mErr.Error()
		} else {
			res.Modules = created
		}
	}

	s.events.publish(ctx, types.EventEnrollmentCreated, e, now)
	return res, nil
}

func (s *enrollmentService) normalizeCreate(op string, in *CreateEnrollmentInput) error {
	if in.EnrollmentType == "" {
		in.EnrollmentType = types.EnrollmentIndividual
	}
	if !in.EnrollmentType.Valid() {
		return types.InvalidInput(op, "invalid enrollment_type %q", in.EnrollmentType)
	}
	if in.LearningPath == "" {
		in.LearningPath = s.policy.DefaultLearningPath
	}
	if !in.LearningPath.Valid() {
		return types.InvalidInput(op, "invalid learning_path %q", in.LearningPath)
	}
	if in.PaymentStatus == "" {
		in.PaymentStatus = types.PaymentPending
		if in.Payment != nil && strings.TrimSpace(in.Payment.PaymentID) != "" {
			in.PaymentStatus = types.PaymentCompleted
		}
	}
	if !in.PaymentStatus.Valid() {
		return types.InvalidInput(op, "invalid payment_status %q", in.PaymentStatus)
	}
	if rp := in.CompletionCriteria.over(s.policy.CompletionCriteria).RequiredProgress; rp < 0 || rp > 100 {
		return types.InvalidInput(op, "required_progress must be within 0..100")
	}
	if in.Payment != nil && in.Payment.Amount.IsNegative() {
		return types.InvalidInput(op, "payment amount must not be negative")
	}
	if in.IsSelfPaced {
		in.ExpiryDate = nil
	} else if in.ExpiryDate != nil && !in.ExpiryDate.After(s.now()) {
		return types.InvalidInput(op, "expiry_date must be in the future")
	}
	return nil
}

func batchSize(t types.EnrollmentType, course *types.Course) int {
	if t != types.EnrollmentBatch {
		return 1
	}
	if course == nil || course.MinBatchSize < 1 {
		return 1
	}
	return course.MinBatchSize
}

func (s *enrollmentService) paymentDetails(p *PaymentConfirmation) types.PaymentDetails {
	details := types.PaymentDetails{Amount: decimal.Zero, Currency: s.policy.DefaultCurrency}
	if p == nil {
		return details
	}
	details.Amount = p.Amount
	if c := strings.ToUpper(strings.TrimSpace(p.Currency)); c != "" {
		details.Currency = c
	}
	details.Method = strings.TrimSpace(p.Method)
	details.PaymentID = strings.TrimSpace(p.PaymentID)
	details.OrderID = strings.TrimSpace(p.OrderID)
	details.Signature = strings.TrimSpace(p.Signature)
	if p.PaidAt != nil {
		at := p.PaidAt.UTC()
		details.PaidAt = &at
	} else if details.PaymentID != "" {
		at := s.now()
		details.PaidAt = &at
	}
	return details
}

func (s *enrollmentService) buildSchedule(op string, req *EmiRequest, total decimal.Decimal, now time.Time) (types.EmiSchedule, error) {
	if !total.IsPositive() {
		return types.EmiSchedule{}, types.InvalidInput(op, "EMI requires a positive payment amount")
	}
	cfg := amortization.Config{
		TotalAmount:          total,
		DownPayment:          req.DownPayment,
		ProcessingFee:        req.ProcessingFee,
		NumberOfInstallments: req.NumberOfInstallments,
		InterestRate:         s.policy.DefaultInterestRate,
		StartDate:            now,
		GracePeriodDays:      s.policy.GracePeriodDays,
	}
	if req.InterestRate != nil {
		cfg.InterestRate = *req.InterestRate
	}
	if req.GracePeriodDays != nil {
		cfg.GracePeriodDays = *req.GracePeriodDays
	}
	if req.StartDate != nil {
		cfg.StartDate = req.StartDate.UTC()
	}
	return amortization.ComputeSchedule(cfg)
}

func buildModules(e *types.Enrollment, course *types.Course) []*types.EnrolledModule {
	out := make([]*types.EnrolledModule, 0, len(course.VideoContentURLs))
	for i, url := range course.VideoContentURLs {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		out = append(out, &types.EnrolledModule{
			StudentID:    e.StudentID,
			CourseID:     e.CourseID,
			EnrollmentID: e.ID,
			Position:     i,
			VideoURL:     url,
		})
	}
	return out
}

func (s *enrollmentService) Update(ctx context.Context, id uuid.UUID, in UpdateEnrollmentInput) (view *EnrollmentView, err error) {
	const op = "EnrollmentService.Update"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("enrollment_id", id.String()))
	defer func() { observability.EndSpan(span, err) }()

	current, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeOwner(ctx, op, current.StudentID); err != nil {
		return nil, err
	}
	now := s.now()
	s.expiry.observe(ctx, current, now)

	var completed bool
	var updated *types.Enrollment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		e, err := s.enrollments.GetByIDForUpdate(inner, id)
		if err != nil {
			return fmt.Errorf("load enrollment: %w", err)
		}
		if e == nil {
			return types.NotFound(op, "enrollment %s not found", id)
		}

		updates, complete, err := planUpdate(op, e, in, now)
		if err != nil {
			return err
		}
		if err := s.enrollments.UpdateFields(inner, id, updates); err != nil {
			return fmt.Errorf("update enrollment: %w", err)
		}
		if complete {
			ok, err := s.enrollments.MarkCompleted(inner, id, now)
			if err != nil {
				return fmt.Errorf("complete enrollment: %w", err)
			}
			if !ok {
				return types.AlreadyCompleted(op, "enrollment %s is already completed", id)
			}
			completed = true
		}
		updated, err = s.enrollments.GetByID(inner, id)
		if err != nil {
			return fmt.Errorf("reload enrollment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if completed {
		s.log.Info("Enrollment completed by update", "enrollment_id", id)
		s.events.publish(ctx, types.EventEnrollmentCompleted, updated, now)
	}
	return s.view(updated, now), nil
}

// planUpdate validates in against e and returns the column changes plus whether the
// enrollment must be completed. e is modified to reflect the planned state.
func planUpdate(op string, e *types.Enrollment, in UpdateEnrollmentInput, now time.Time) (map[string]interface{}, bool, error) {
	if in.StudentID != nil && *in.StudentID != e.StudentID {
		return nil, false, types.InvalidInput(op, "student_id cannot be changed; create a new enrollment instead")
	}
	if in.CourseID != nil && *in.CourseID != e.CourseID {
		return nil, false, types.InvalidInput(op, "course_id cannot be changed; create a new enrollment instead")
	}

	updates := map[string]interface{}{}
	complete := false

	if in.IsCompleted != nil {
		switch {
		case *in.IsCompleted && e.IsCompleted:
			return nil, false, types.AlreadyCompleted(op, "enrollment %s is already completed", e.ID)
		case *in.IsCompleted:
			complete = true
		case e.IsCompleted:
			return nil, false, types.InvalidInput(op, "a completed enrollment cannot be reopened")
		}
	}

	if in.Status != nil && *in.Status != e.Status {
		target := *in.Status
		if target == types.StatusCompleted {
			complete = true
		} else {
			if complete {
				return nil, false, types.InvalidInput(op, "is_completed conflicts with status %s", target)
			}
			if err := lifecycle.Transition(e, target, now); err != nil {
				return nil, false, err
			}
			updates["status"] = e.Status
		}
	}
	if complete {
		probe := *e
		if err := lifecycle.Complete(&probe, now); err != nil {
			return nil, false, err
		}
	}

	if in.PaymentStatus != nil {
		if !in.PaymentStatus.Valid() {
			return nil, false, types.InvalidInput(op, "invalid payment_status %q", *in.PaymentStatus)
		}
		updates["payment_status"] = *in.PaymentStatus
	}
	if in.LearningPath != nil {
		if !in.LearningPath.Valid() {
			return nil, false, types.InvalidInput(op, "invalid learning_path %q", *in.LearningPath)
		}
		updates["learning_path"] = *in.LearningPath
	}
	if in.CompletionCriteria != nil {
		c := in.CompletionCriteria.over(e.CompletionCriteria)
		if c.RequiredProgress < 0 || c.RequiredProgress > 100 {
			return nil, false, types.InvalidInput(op, "required_progress must be within 0..100")
		}
		updates["criteria_required_progress"] = c.RequiredProgress
		updates["criteria_required_assignments"] = c.RequiredAssignments
		updates["criteria_required_quizzes"] = c.RequiredQuizzes
		e.CompletionCriteria = c
	}

	if in.IsSelfPaced != nil {
		e.IsSelfPaced = *in.IsSelfPaced
		updates["is_self_paced"] = e.IsSelfPaced
	}
	if in.ExpiryDate != nil {
		at := in.ExpiryDate.UTC()
		e.ExpiryDate = &at
	}
	if e.IsSelfPaced {
		if e.ExpiryDate != nil {
			updates["expiry_date"] = nil
		}
		e.ExpiryDate = nil
	} else if in.ExpiryDate != nil {
		updates["expiry_date"] = *e.ExpiryDate
	}
	if err := lifecycle.ValidateExpiry(e); err != nil {
		return nil, false, err
	}

	if in.Metadata != nil {
		merged := datatypes.JSONMap{}
		for k, v := range e.Metadata {
			merged[k] = v
		}
		for k, v := range in.Metadata {
			merged[k] = v
		}
		updates["metadata"] = merged
	}
	return updates, complete, nil
}

func (s *enrollmentService) Delete(ctx context.Context, id uuid.UUID) (err error) {
	const op = "EnrollmentService.Delete"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("enrollment_id", id.String()))
	defer func() { observability.EndSpan(span, err) }()

	e, err := s.load(ctx, op, id)
	if err != nil {
		return err
	}
	if _, err := authorizeOwner(ctx, op, e.StudentID); err != nil {
		return err
	}

	var removedModules, removedProgress int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		var err error
		if removedModules, err = s.modules.DeleteByEnrollment(inner, id); err != nil {
			return fmt.Errorf("delete modules: %w", err)
		}
		if removedProgress, err = s.progress.DeleteByEnrollment(inner, id); err != nil {
			return fmt.Errorf("delete progress: %w", err)
		}
		n, err := s.enrollments.Delete(inner, id)
		if err != nil {
			return fmt.Errorf("delete enrollment: %w", err)
		}
		if n == 0 {
			return types.NotFound(op, "enrollment %s not found", id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("Enrollment deleted",
		"enrollment_id", id,
		"modules_removed", removedModules,
		"progress_removed", removedProgress,
	)
	return nil
}

func (s *enrollmentService) Get(ctx context.Context, id uuid.UUID) (*EnrollmentView, error) {
	const op = "EnrollmentService.Get"
	e, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeOwner(ctx, op, e.StudentID); err != nil {
		return nil, err
	}
	now := s.now()
	s.expiry.observe(ctx, e, now)

	view := s.view(e, now)
	stats, err := s.enrollments.CourseStats(dbctx.Context{Ctx: ctx}, e.CourseID, now)
	if err != nil {
		s.log.Warn("Course statistics unavailable", "course_id", e.CourseID, "error", err)
	} else {
		view.Statistics = &stats
	}
	return view, nil
}

func (s *enrollmentService) List(ctx context.Context, in ListInput) (*EnrollmentPage, error) {
	const op = "EnrollmentService.List"
	rd, err := actor(ctx, op)
	if err != nil {
		return nil, err
	}
	if !rd.IsAdmin() {
		if in.StudentID != nil && *in.StudentID != rd.UserID {
			return nil, types.Unauthorized(op, "actor may not list other students' enrollments")
		}
		own := rd.UserID
		in.StudentID = &own
	}
	if err := validateFilterStatus(op, in.Status); err != nil {
		return nil, err
	}
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit < 1 {
		in.Limit = 10
	}
	if in.Limit > 100 {
		in.Limit = 100
	}

	now := s.now()
	rows, total, err := s.enrollments.List(dbctx.Context{Ctx: ctx}, repos.EnrollmentFilter{
		StudentID:      in.StudentID,
		Status:         in.Status,
		PaymentStatus:  in.PaymentStatus,
		EnrollmentType: in.EnrollmentType,
		IncludeExpired: in.IncludeExpired,
		Now:            now,
		Offset:         (in.Page - 1) * in.Limit,
		Limit:          in.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	pages := int((total + int64(in.Limit) - 1) / int64(in.Limit))
	return &EnrollmentPage{
		Items: s.views(ctx, rows, now),
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
		Pages: pages,
	}, nil
}

func (s *enrollmentService) ListByStudent(ctx context.Context, studentID uuid.UUID, f ListFilter) ([]*EnrollmentView, error) {
	const op = "EnrollmentService.ListByStudent"
	if studentID == uuid.Nil {
		return nil, types.InvalidInput(op, "student_id is required")
	}
	if _, err := authorizeOwner(ctx, op, studentID); err != nil {
		return nil, err
	}
	if err := validateFilterStatus(op, f.Status); err != nil {
		return nil, err
	}
	now := s.now()
	rows, _, err := s.enrollments.List(dbctx.Context{Ctx: ctx}, repos.EnrollmentFilter{
		StudentID:      &studentID,
		Status:         f.Status,
		IncludeExpired: f.IncludeExpired,
		Now:            now,
	})
	if err != nil {
		return nil, fmt.Errorf("list enrollments by student: %w", err)
	}
	return s.views(ctx, rows, now), nil
}

func (s *enrollmentService) ListByCourse(ctx context.Context, courseID uuid.UUID, f ListFilter) ([]*EnrollmentView, error) {
	const op = "EnrollmentService.ListByCourse"
	if courseID == uuid.Nil {
		return nil, types.InvalidInput(op, "course_id is required")
	}
	if _, err := authorizeStaff(ctx, op); err != nil {
		return nil, err
	}
	if err := validateFilterStatus(op, f.Status); err != nil {
		return nil, err
	}
	now := s.now()
	rows, _, err := s.enrollments.List(dbctx.Context{Ctx: ctx}, repos.EnrollmentFilter{
		CourseID:       &courseID,
		Status:         f.Status,
		IncludeExpired: f.IncludeExpired,
		Now:            now,
	})
	if err != nil {
		return nil, fmt.Errorf("list enrollments by course: %w", err)
	}
	return s.views(ctx, rows, now), nil
}

func (s *enrollmentService) CountsByStudent(ctx context.Context, studentID uuid.UUID) (map[types.EnrollmentStatus]int64, error) {
	const op = "EnrollmentService.CountsByStudent"
	if _, err := authorizeOwner(ctx, op, studentID); err != nil {
		return nil, err
	}
	counts, err := s.enrollments.CountByStatus(dbctx.Context{Ctx: ctx}, studentID, s.now())
	if err != nil {
		return nil, fmt.Errorf("count enrollments: %w", err)
	}
	return counts, nil
}

func (s *enrollmentService) MarkCompleted(ctx context.Context, studentID, courseID uuid.UUID) (view *EnrollmentView, err error) {
	const op = "EnrollmentService.MarkCompleted"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("course_id", courseID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if studentID == uuid.Nil || courseID == uuid.Nil {
		return nil, types.InvalidInput(op, "student_id and course_id are required")
	}
	if _, err := authorizeOwner(ctx, op, studentID); err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	e, err := s.enrollments.GetByStudentCourse(dbc, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("load enrollment: %w", err)
	}
	if e == nil {
		return nil, types.NotFound(op, "no enrollment for student %s in course %s", studentID, courseID)
	}
	now := s.now()
	s.expiry.observe(ctx, e, now)

	if err := lifecycle.Complete(e, now); err != nil {
		return nil, err
	}
	ok, err := s.enrollments.MarkCompleted(dbc, e.ID, now)
	if err != nil {
		return nil, fmt.Errorf("complete enrollment: %w", err)
	}
	if !ok {
		return nil, types.AlreadyCompleted(op, "enrollment %s is already completed", e.ID)
	}
	s.log.Info("Enrollment marked completed", "enrollment_id", e.ID, "student_id", studentID)
	s.events.publish(ctx, types.EventEnrollmentCompleted, e, now)
	return s.view(e, now), nil
}

func (s *enrollmentService) GetEmi(ctx context.Context, id uuid.UUID) (*EmiView, error) {
	const op = "EnrollmentService.GetEmi"
	e, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeOwner(ctx, op, e.StudentID); err != nil {
		return nil, err
	}
	if e.EmiDetails == nil {
		return nil, types.NotFound(op, "enrollment %s has no EMI schedule", id)
	}
	reconciled := amortization.Reconcile(*e.EmiDetails, s.now(), s.policy.MaxMissedPayments)
	if reconciled.Status != e.EmiDetails.Status || reconciled.MissedPayments != e.EmiDetails.MissedPayments {
		if err := s.enrollments.UpdateEmi(dbctx.Context{Ctx: ctx}, id, &reconciled); err != nil {
			s.log.Warn("Persisting EMI reconciliation failed", "enrollment_id", id, "error", err)
		} else if reconciled.Status == types.EmiDefaulted {
			s.log.Warn("EMI schedule defaulted", "enrollment_id", id, "missed_payments", reconciled.MissedPayments)
		}
	}
	return emiView(&reconciled), nil
}

func (s *enrollmentService) RecordInstallment(ctx context.Context, id uuid.UUID, number int, status types.InstallmentStatus) (*EmiView, error) {
	const op = "EnrollmentService.RecordInstallment"
	if _, err := authorizeAdmin(ctx, op); err != nil {
		return nil, err
	}
	now := s.now()
	var schedule types.EmiSchedule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		e, err := s.enrollments.GetByIDForUpdate(inner, id)
		if err != nil {
			return fmt.Errorf("load enrollment: %w", err)
		}
		if e == nil {
			return types.NotFound(op, "enrollment %s not found", id)
		}
		if e.EmiDetails == nil {
			return types.InvalidInput(op, "enrollment %s has no EMI schedule", id)
		}
		schedule, err = amortization.ApplyPayment(*e.EmiDetails, number, status, now, s.policy.MaxMissedPayments)
		if err != nil {
			return err
		}
		if err := s.enrollments.UpdateEmi(inner, id, &schedule); err != nil {
			return fmt.Errorf("save EMI schedule: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Installment recorded",
		"enrollment_id", id,
		"installment", number,
		"status", status,
		"schedule_status", schedule.Status,
	)
	return emiView(&schedule), nil
}

func emiView(s *types.EmiSchedule) *EmiView {
	return &EmiView{
		Schedule:    s,
		Outstanding: amortization.Outstanding(*s),
		NextDue:     amortization.NextDue(*s),
	}
}

func (s *enrollmentService) load(ctx context.Context, op string, id uuid.UUID) (*types.Enrollment, error) {
	if id == uuid.Nil {
		return nil, types.InvalidInput(op, "enrollment id is required")
	}
	e, err := s.enrollments.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, fmt.Errorf("load enrollment: %w", err)
	}
	if e == nil {
		return nil, types.NotFound(op, "enrollment %s not found", id)
	}
	return e, nil
}

func (s *enrollmentService) view(e *types.Enrollment, now time.Time) *EnrollmentView {
	return &EnrollmentView{
		Enrollment:      e,
		EffectiveStatus: lifecycle.EffectiveStatus(e, now),
		CanAccess:       lifecycle.CanAccess(e, now),
	}
}

func (s *enrollmentService) views(ctx context.Context, rows []*types.Enrollment, now time.Time) []*EnrollmentView {
	out := make([]*EnrollmentView, 0, len(rows))
	for _, e := range rows {
		s.expiry.observe(ctx, e, now)
		out = append(out, s.view(e, now))
	}
	return out
}

func validateFilterStatus(op string, st types.EnrollmentStatus) error {
	if st != "" && !st.Valid() {
		return types.InvalidInput(op, "invalid status filter %q", st)
	}
	return nil
}
