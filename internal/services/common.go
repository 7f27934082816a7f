package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/enrollment-backend/internal/data/repos"
	types "github.com/yungbote/enrollment-backend/internal/domain"
	"github.com/yungbote/enrollment-backend/internal/modules/enrollment/lifecycle"
	"github.com/yungbote/enrollment-backend/internal/platform/ctxutil"
	"github.com/yungbote/enrollment-backend/internal/platform/dbctx"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
	"github.com/yungbote/enrollment-backend/internal/realtime/bus"
)

// actor returns the authenticated caller or an unauthorized error.
func actor(ctx context.Context, op string) (*ctxutil.RequestData, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, types.Unauthorized(op, "request is not authenticated")
	}
	return rd, nil
}

// authorizeOwner allows the record owner and admins.
func authorizeOwner(ctx context.Context, op string, ownerID uuid.UUID) (*ctxutil.RequestData, error) {
	rd, err := actor(ctx, op)
	if err != nil {
		return nil, err
	}
	if !rd.CanActFor(ownerID) {
		return nil, types.Unauthorized(op, "actor may not act for this student")
	}
	return rd, nil
}

// authorizeStaff allows instructors and admins.
func authorizeStaff(ctx context.Context, op string) (*ctxutil.RequestData, error) {
	rd, err := actor(ctx, op)
	if err != nil {
		return nil, err
	}
	if rd.Role != ctxutil.RoleAdmin && rd.Role != ctxutil.RoleInstructor {
		return nil, types.Unauthorized(op, "staff role required")
	}
	return rd, nil
}

func authorizeAdmin(ctx context.Context, op string) (*ctxutil.RequestData, error) {
	rd, err := actor(ctx, op)
	if err != nil {
		return nil, err
	}
	if !rd.IsAdmin() {
		return nil, types.Unauthorized(op, "admin role required")
	}
	return rd, nil
}

// events publishes lifecycle events. Failures are logged and never surface to callers.
type events struct {
	bus bus.Bus
	log *logger.Logger
}

func (ev events) publish(ctx context.Context, t types.EventType, e *types.Enrollment, at time.Time) {
	if ev.bus == nil || e == nil {
		return
	}
	if err := ev.bus.Publish(ctx, types.NewEnrollmentEvent(t, e, at)); err != nil {
		ev.log.Warn("Event publish failed", "event", t, "enrollment_id", e.ID, "error", err)
	}
}

// expiry persists a lazily observed expiry once and announces it.
type expiry struct {
	enrollments repos.EnrollmentRepo
	events      events
	log         *logger.Logger
}

// observe updates e in place when its stored active status has lapsed. Store errors are
// logged; the caller still sees the effective status.
func (x expiry) observe(ctx context.Context, e *types.Enrollment, now time.Time) {
	if e == nil || !lifecycle.NeedsExpiry(e, now) {
		return
	}
	changed, err := x.enrollments.MarkExpired(dbctx.Context{Ctx: ctx}, e.ID)
	if err != nil {
		x.log.Warn("Persisting lazy expiry failed", "enrollment_id", e.ID, "error", err)
		e.Status = types.StatusExpired
		return
	}
	e.Status = types.StatusExpired
	if changed {
		x.events.publish(ctx, types.EventEnrollmentExpired, e, now)
	}
}
