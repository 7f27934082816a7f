package enrollment

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/enrollment-backend/internal/domain"
	"github.com/yungbote/enrollment-backend/internal/platform/dbctx"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

// Filter selects enrollments by effective status. Now is the instant used to decide
// whether a stored active row has lapsed.
type Filter struct {
	StudentID      *uuid.UUID
	CourseID       *uuid.UUID
	Status         types.EnrollmentStatus
	PaymentStatus  types.PaymentStatus
	EnrollmentType types.EnrollmentType
	IncludeExpired bool
	Now            time.Time
	Offset         int
	Limit          int
}

type CourseStats struct {
	TotalEnrollments     int64   `json:"total_enrollments"`
	ActiveEnrollments    int64   `json:"active_enrollments"`
	CompletedEnrollments int64   `json:"completed_enrollments"`
	AverageProgress      float64 `json:"average_progress"`
}

type EnrollmentRepo interface {
	Create(dbc dbctx.Context, e *types.Enrollment) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Enrollment, error)
	GetByIDForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.Enrollment, error)
	GetByStudentCourse(dbc dbctx.Context, studentID, courseID uuid.UUID) (*types.Enrollment, error)
	Exists(dbc dbctx.Context, studentID, courseID uuid.UUID) (bool, error)
	List(dbc dbctx.Context, f Filter) ([]*types.Enrollment, int64, error)
	CountByStatus(dbc dbctx.Context, studentID uuid.UUID, now time.Time) (map[types.EnrollmentStatus]int64, error)
	CourseStats(dbc dbctx.Context, courseID uuid.UUID, now time.Time) (CourseStats, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateEmi(dbc dbctx.Context, id uuid.UUID, schedule *types.EmiSchedule) error
	MarkCompleted(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkExpired(dbc dbctx.Context, id uuid.UUID) (bool, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (int64, error)
}

type enrollmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return &enrollmentRepo{
		db:  db,
		log: baseLog.With("repo", "EnrollmentRepo"),
	}
}

// ErrDuplicate is returned by Create when the (student, course) pair already exists.
var ErrDuplicate = errors.New("enrollment already exists for student and course")

func (r *enrollmentRepo) Create(dbc dbctx.Context, e *types.Enrollment) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *enrollmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Enrollment, error) {
	return r.getByID(dbc, id, false)
}

func (r *enrollmentRepo) GetByIDForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.Enrollment, error) {
	return r.getByID(dbc, id, true)
}

func (r *enrollmentRepo) getByID(dbc dbctx.Context, id uuid.UUID, forUpdate bool) (*types.Enrollment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	q := transaction.WithContext(dbc.Ctx)
	if forUpdate {
		q = lockForUpdate(q)
	}
	var out types.Enrollment
	err := q.Where("id = ?", id).Limit(1).Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *enrollmentRepo) GetByStudentCourse(dbc dbctx.Context, studentID, courseID uuid.UUID) (*types.Enrollment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == uuid.Nil || courseID == uuid.Nil {
		return nil, nil
	}
	var out types.Enrollment
	err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *enrollmentRepo) Exists(dbc dbctx.Context, studentID, courseID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Enrollment{}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *enrollmentRepo) List(dbc dbctx.Context, f Filter) ([]*types.Enrollment, int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if f.Now.IsZero() {
		f.Now = time.Now()
	}
	f.Now = f.Now.UTC()

	base := applyFilter(transaction.WithContext(dbc.Ctx).Model(&types.Enrollment{}), f)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := base.Session(&gorm.Session{}).Order("enrollment_date DESC").Order("id ASC")
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	out := []*types.Enrollment{}
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CountByStatus reports effective status counts for one student.
func (r *enrollmentRepo) CountByStatus(dbc dbctx.Context, studentID uuid.UUID, now time.Time) (map[types.EnrollmentStatus]int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []struct {
		Status string
		Count  int64
	}
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Enrollment{}).
		Select("status, COUNT(*) AS count").
		Where("student_id = ?", studentID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	var stale int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Enrollment{}).
		Where("student_id = ?", studentID).
		Where(lapsedSQL, types.StatusActive, false, now.UTC()).
		Count(&stale).Error; err != nil {
		return nil, err
	}

	out := map[types.EnrollmentStatus]int64{
		types.StatusActive:    0,
		types.StatusCompleted: 0,
		types.StatusExpired:   0,
		types.StatusCancelled: 0,
		types.StatusSuspended: 0,
	}
	for _, row := range rows {
		out[types.EnrollmentStatus(row.Status)] += row.Count
	}
	out[types.StatusActive] -= stale
	out[types.StatusExpired] += stale
	return out, nil
}

func (r *enrollmentRepo) CourseStats(dbc dbctx.Context, courseID uuid.UUID, now time.Time) (CourseStats, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var stats CourseStats
	var agg struct {
		Total     int64
		Completed int64
		Average   float64
	}
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Enrollment{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN is_completed THEN 1 ELSE 0 END), 0) AS completed, COALESCE(AVG(progress), 0) AS average").
		Where("course_id = ?", courseID).
		Scan(&agg).Error; err != nil {
		return stats, err
	}
	stats.TotalEnrollments = agg.Total
	stats.CompletedEnrollments = agg.Completed
	stats.AverageProgress = agg.Average

	if err := applyFilter(transaction.WithContext(dbc.Ctx).Model(&types.Enrollment{}), Filter{
		CourseID: &courseID,
		Status:   types.StatusActive,
		Now:      now.UTC(),
	}).Count(&stats.ActiveEnrollments).Error; err != nil {
		return stats, err
	}
	return stats, nil
}

func (r *enrollmentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Enrollment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateEmi rewrites the EMI document. A struct update is used so the JSON serializer applies.
func (r *enrollmentRepo) UpdateEmi(dbc dbctx.Context, id uuid.UUID, schedule *types.EmiSchedule) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Enrollment{}).
		Where("id = ?", id).
		Select("emi_details", "updated_at").
		Updates(&types.Enrollment{EmiDetails: schedule, UpdatedAt: time.Now().UTC()}).Error
}

// MarkCompleted flips an active, not yet completed row. The boolean reports whether this
// call performed the transition.
func (r *enrollmentRepo) MarkCompleted(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Enrollment{}).
		Where("id = ? AND is_completed = ? AND status = ?", id, false, types.StatusActive).
		Updates(map[string]interface{}{
			"status":       types.StatusCompleted,
			"is_completed": true,
			"completed_on": at.UTC(),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkExpired persists a lazily observed expiry. Only a still-active row is touched.
func (r *enrollmentRepo) MarkExpired(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Enrollment{}).
		Where("id = ? AND status = ?", id, types.StatusActive).
		Updates(map[string]interface{}{
			"status":     types.StatusExpired,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *enrollmentRepo) Delete(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Delete(&types.Enrollment{})
	return res.RowsAffected, res.Error
}

const lapsedSQL = "status = ? AND is_self_paced = ? AND expiry_date IS NOT NULL AND expiry_date < ?"

func applyFilter(q *gorm.DB, f Filter) *gorm.DB {
	if f.StudentID != nil {
		q = q.Where("student_id = ?", *f.StudentID)
	}
	if f.CourseID != nil {
		q = q.Where("course_id = ?", *f.CourseID)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}
	if f.EnrollmentType != "" {
		q = q.Where("enrollment_type = ?", f.EnrollmentType)
	}

	switch f.Status {
	case "":
		if !f.IncludeExpired {
			q = q.Where("status <> ?", types.StatusExpired).
				Where("NOT ("+lapsedSQL+")", types.StatusActive, false, f.Now)
		}
	case types.StatusExpired:
		q = q.Where("((status = ?) OR ("+lapsedSQL+"))", types.StatusExpired, types.StatusActive, false, f.Now)
	case types.StatusActive:
		q = q.Where("status = ?", types.StatusActive).
			Where("NOT ("+lapsedSQL+")", types.StatusActive, false, f.Now)
	default:
		q = q.Where("status = ?", f.Status)
	}
	return q
}

func lockForUpdate(q *gorm.DB) *gorm.DB {
	if q.Dialector != nil && q.Dialector.Name() == "postgres" {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
