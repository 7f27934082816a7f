package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/enrollment-backend/internal/http"
	httpH "github.com/yungbote/enrollment-backend/internal/http/handlers"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Enrollment *httpH.EnrollmentHandler
	Module     *httpH.ModuleHandler
	Progress   *httpH.ProgressHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(db),
		Enrollment: httpH.NewEnrollmentHandler(log, s.Enrollment),
		Module:     httpH.NewModuleHandler(log, s.Module),
		Progress:   httpH.NewProgressHandler(log, s.Progress),
	}
}

func wireServer(log *logger.Logger, cfg Config, h Handlers, mw Middleware) *http.Server {
	return http.NewServer(":"+cfg.Port, http.RouterConfig{
		Log:               log,
		ServiceName:       cfg.ServiceName,
		CORSOrigins:       cfg.CORSOrigins,
		AuthMiddleware:    mw.Auth,
		HealthHandler:     h.Health,
		EnrollmentHandler: h.Enrollment,
		ModuleHandler:     h.Module,
		ProgressHandler:   h.Progress,
	})
}
