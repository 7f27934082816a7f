package bus

import (
	"context"

	"github.com/yungbote/enrollment-backend/internal/domain"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

type logBus struct {
	log *logger.Logger
}

// NewLogBus records events in the service log only. Used when no broker is configured.
func NewLogBus(log *logger.Logger) Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &logBus{log: log.With("service", "LogEventBus")}
}

func (b *logBus) Publish(ctx context.Context, ev domain.EnrollmentEvent) error {
	b.log.Info("Enrollment event",
		"type", ev.Type,
		"enrollment_id", ev.EnrollmentID,
		"student_id", ev.StudentID,
		"course_id", ev.CourseID,
		"status", ev.Status,
	)
	return nil
}

func (b *logBus) Close() error { return nil }
