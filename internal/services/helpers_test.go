package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/enrollment-backend/internal/data/repos"
	"github.com/yungbote/enrollment-backend/internal/data/repos/testutil"
	types "github.com/yungbote/enrollment-backend/internal/domain"
	"github.com/yungbote/enrollment-backend/internal/modules/enrollment/policy"
	"github.com/yungbote/enrollment-backend/internal/platform/ctxutil"
)

type recordingBus struct {
	mu     sync.Mutex
	events []types.EnrollmentEvent
	err    error
}

func (b *recordingBus) Publish(_ context.Context, ev types.EnrollmentEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) count(t types.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, ev := range b.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type fixture struct {
	db          *gorm.DB
	bus         *recordingBus
	users       repos.UserRepo
	courses     repos.CourseRepo
	enrollments repos.EnrollmentRepo
	modules     repos.EnrolledModuleRepo
	progress    repos.ProgressRepo
	enrollment  *enrollmentService
	module      *moduleService
	progressSvc *progressService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	f := &fixture{
		db:          db,
		bus:         &recordingBus{},
		users:       repos.NewUserRepo(db, log),
		courses:     repos.NewCourseRepo(db, log),
		enrollments: repos.NewEnrollmentRepo(db, log),
		modules:     repos.NewEnrolledModuleRepo(db, log),
		progress:    repos.NewProgressRepo(db, log),
	}
	f.enrollment = NewEnrollmentService(db, log, f.users, f.courses, f.enrollments, f.modules, f.progress, policy.Fallback(), f.bus).(*enrollmentService)
	f.module = NewModuleService(db, log, f.enrollments, f.modules, f.bus).(*moduleService)
	f.progressSvc = NewProgressService(db, log, f.enrollments, f.progress, f.bus).(*progressService)
	return f
}

func (f *fixture) setClock(now time.Time) {
	clock := func() time.Time { return now }
	f.enrollment.clock = clock
	f.module.clock = clock
	f.progressSvc.clock = clock
}

func asUser(id uuid.UUID, role string) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: id, Role: role})
}

func asStudent(id uuid.UUID) context.Context { return asUser(id, ctxutil.RoleStudent) }

func asAdmin() context.Context { return asUser(uuid.New(), ctxutil.RoleAdmin) }

func wantCode(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := types.CodeOf(err); got != code {
		t.Fatalf("error code: want=%s got=%s (%v)", code, got, err)
	}
}
