package enrollment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/enrollment-backend/internal/domain"
	"github.com/yungbote/enrollment-backend/internal/platform/dbctx"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

type ProgressRepo interface {
	GetByStudentCourse(dbc dbctx.Context, studentID, courseID uuid.UUID) (*types.Progress, error)
	GetByStudentCourseForUpdate(dbc dbctx.Context, studentID, courseID uuid.UUID) (*types.Progress, error)
	EnsureForUpdate(dbc dbctx.Context, studentID, courseID, enrollmentID uuid.UUID, now time.Time) (*types.Progress, error)
	Save(dbc dbctx.Context, p *types.Progress) error
	DeleteByEnrollment(dbc dbctx.Context, enrollmentID uuid.UUID) (int64, error)
}

type progressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
	return &progressRepo{
		db:  db,
		log: baseLog.With("repo", "ProgressRepo"),
	}
}

func (r *progressRepo) GetByStudentCourse(dbc dbctx.Context, studentID, courseID uuid.UUID) (*types.Progress, error) {
	return r.get(dbc, studentID, courseID, false)
}

func (r *progressRepo) GetByStudentCourseForUpdate(dbc dbctx.Context, studentID, courseID uuid.UUID) (*types.Progress, error) {
	return r.get(dbc, studentID, courseID, true)
}

func (r *progressRepo) get(dbc dbctx.Context, studentID, courseID uuid.UUID, forUpdate bool) (*types.Progress, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx)
	if forUpdate {
		q = lockForUpdate(q)
	}
	var out types.Progress
	if err := q.
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

// EnsureForUpdate returns the locked (student, course) row, inserting an empty one first
// when none exists. A concurrent insert of the same pair is absorbed by the unique index
// and the row that won is returned instead.
func (r *progressRepo) EnsureForUpdate(dbc dbctx.Context, studentID, courseID, enrollmentID uuid.UUID, now time.Time) (*types.Progress, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	seed := &types.Progress{
		StudentID:    studentID,
		CourseID:     courseID,
		EnrollmentID: enrollmentID,
		LastAccessed: now,
	}
	if err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(seed).Error; err != nil {
		return nil, err
	}
	p, err := r.get(dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}, studentID, courseID, true)
	if err != nil {
		return nil, err
	}
	if p == nil {
		r.log.Warn("Progress row missing after upsert", "student_id", studentID, "course_id", courseID)
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

// Save inserts a new progress row or rewrites an existing one in full.
func (r *progressRepo) Save(dbc dbctx.Context, p *types.Progress) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if p.LastAccessed.IsZero() {
		p.LastAccessed = time.Now().UTC()
	}
	if p.ID == uuid.Nil {
		return transaction.WithContext(dbc.Ctx).Create(p).Error
	}
	return transaction.WithContext(dbc.Ctx).Save(p).Error
}

func (r *progressRepo) DeleteByEnrollment(dbc dbctx.Context, enrollmentID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("enrollment_id = ?", enrollmentID).
		Delete(&types.Progress{})
	return res.RowsAffected, res.Error
}
