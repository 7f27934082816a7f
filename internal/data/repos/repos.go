package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/enrollment-backend/internal/data/repos/catalog"
	"github.com/yungbote/enrollment-backend/internal/data/repos/enrollment"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

type UserRepo = catalog.UserRepo
type CourseRepo = catalog.CourseRepo

type EnrollmentRepo = enrollment.EnrollmentRepo
type EnrolledModuleRepo = enrollment.EnrolledModuleRepo
type ProgressRepo = enrollment.ProgressRepo

type EnrollmentFilter = enrollment.Filter
type CourseStats = enrollment.CourseStats

var ErrDuplicateEnrollment = enrollment.ErrDuplicate

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return catalog.NewUserRepo(db, baseLog)
}
func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return catalog.NewCourseRepo(db, baseLog)
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return enrollment.NewEnrollmentRepo(db, baseLog)
}
func NewEnrolledModuleRepo(db *gorm.DB, baseLog *logger.Logger) EnrolledModuleRepo {
	return enrollment.NewEnrolledModuleRepo(db, baseLog)
}
func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
	return enrollment.NewProgressRepo(db, baseLog)
}
