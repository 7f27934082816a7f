package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/enrollment-backend/internal/modules/enrollment/policy"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
	"github.com/yungbote/enrollment-backend/internal/realtime/bus"
	"github.com/yungbote/enrollment-backend/internal/services"
)

type Services struct {
	Enrollment services.EnrollmentService
	Module     services.ModuleService
	Progress   services.ProgressService
}

func wireServices(db *gorm.DB, log *logger.Logger, r Repos, pol policy.Policy, eventBus bus.Bus) Services {
	log.Info("Wiring services...")
	return Services{
		Enrollment: services.NewEnrollmentService(
			db, log,
			r.User, r.Course, r.Enrollment, r.EnrolledModule, r.Progress,
			pol, eventBus,
		),
		Module:   services.NewModuleService(db, log, r.Enrollment, r.EnrolledModule, eventBus),
		Progress: services.NewProgressService(db, log, r.Enrollment, r.Progress, eventBus),
	}
}
