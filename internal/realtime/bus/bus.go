package bus

import (
	"context"

	"github.com/yungbote/enrollment-backend/internal/domain"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

// Bus publishes enrollment lifecycle events to downstream consumers.
type Bus interface {
	Publish(ctx context.Context, ev domain.EnrollmentEvent) error
	Close() error
}

// New returns the Redis bus when REDIS_ADDR is configured, else the log-only bus.
func New(cfg Config, log *logger.Logger) (Bus, error) {
	if cfg.Addr == "" {
		return NewLogBus(log), nil
	}
	return NewRedisBus(cfg, log)
}
