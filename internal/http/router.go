package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/enrollment-backend/internal/http/handlers"
	httpMW "github.com/yungbote/enrollment-backend/internal/http/middleware"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	EnrollmentHandler *httpH.EnrollmentHandler
	ModuleHandler     *httpH.ModuleHandler
	ProgressHandler   *httpH.ProgressHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.TraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	protected := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Enrollments
	if h := cfg.EnrollmentHandler; h != nil {
		protected.POST("/enrollments", h.Create)
		protected.GET("/enrollments", h.List)
		protected.POST("/enrollments/complete", h.MarkCompleted)
		protected.GET("/enrollments/:id", h.Get)
		protected.PATCH("/enrollments/:id", h.Update)
		protected.DELETE("/enrollments/:id", h.Delete)
		protected.GET("/enrollments/:id/emi", h.GetEmi)
		protected.POST("/enrollments/:id/emi/installments/:number", h.RecordInstallment)
		protected.GET("/students/:id/enrollments", h.ListByStudent)
		protected.GET("/students/:id/enrollment-counts", h.CountsByStudent)
		protected.GET("/courses/:id/enrollments", h.ListByCourse)
	}

	// Modules
	if h := cfg.ModuleHandler; h != nil {
		protected.GET("/enrollments/:id/modules", h.ListForEnrollment)
		protected.POST("/modules/:id/watch", h.Watch)
	}

	// Progress
	if h := cfg.ProgressHandler; h != nil {
		protected.GET("/students/:id/courses/:courseId/progress", h.Get)
		protected.POST("/progress/lessons", h.RecordLesson)
		protected.POST("/progress/quizzes", h.RecordQuizAttempt)
		protected.POST("/progress/assignments", h.RecordAssignmentSubmission)
		protected.POST("/progress/assignments/grade", h.GradeAssignment)
	}

	return r
}
