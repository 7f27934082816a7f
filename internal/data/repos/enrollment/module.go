package enrollment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/enrollment-backend/internal/domain"
	"github.com/yungbote/enrollment-backend/internal/platform/dbctx"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

type EnrolledModuleRepo interface {
	CreateBatch(dbc dbctx.Context, modules []*types.EnrolledModule) ([]*types.EnrolledModule, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.EnrolledModule, error)
	ListByEnrollment(dbc dbctx.Context, enrollmentID uuid.UUID) ([]*types.EnrolledModule, error)
	MarkWatched(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error)
	CountByStudentCourse(dbc dbctx.Context, studentID, courseID uuid.UUID) (total int64, watched int64, err error)
	DeleteByEnrollment(dbc dbctx.Context, enrollmentID uuid.UUID) (int64, error)
}

type enrolledModuleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnrolledModuleRepo(db *gorm.DB, baseLog *logger.Logger) EnrolledModuleRepo {
	return &enrolledModuleRepo{
		db:  db,
		log: baseLog.With("repo", "EnrolledModuleRepo"),
	}
}

// CreateBatch inserts all modules in a single statement.
func (r *enrolledModuleRepo) CreateBatch(dbc dbctx.Context, modules []*types.EnrolledModule) ([]*types.EnrolledModule, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(modules) == 0 {
		return []*types.EnrolledModule{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

func (r *enrolledModuleRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.EnrolledModule, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.EnrolledModule
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *enrolledModuleRepo) ListByEnrollment(dbc dbctx.Context, enrollmentID uuid.UUID) ([]*types.EnrolledModule, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := []*types.EnrolledModule{}
	if enrollmentID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("enrollment_id = ?", enrollmentID).
		Order("position ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkWatched reports whether this call flipped the module to watched.
func (r *enrolledModuleRepo) MarkWatched(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.EnrolledModule{}).
		Where("id = ? AND is_watched = ?", id, false).
		Updates(map[string]interface{}{
			"is_watched": true,
			"watched_at": at.UTC(),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *enrolledModuleRepo) CountByStudentCourse(dbc dbctx.Context, studentID, courseID uuid.UUID) (int64, int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var agg struct {
		Total   int64
		Watched int64
	}
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.EnrolledModule{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN is_watched THEN 1 ELSE 0 END), 0) AS watched").
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Scan(&agg).Error; err != nil {
		return 0, 0, err
	}
	return agg.Total, agg.Watched, nil
}

func (r *enrolledModuleRepo) DeleteByEnrollment(dbc dbctx.Context, enrollmentID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("enrollment_id = ?", enrollmentID).
		Delete(&types.EnrolledModule{})
	return res.RowsAffected, res.Error
}
