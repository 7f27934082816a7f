package enrollment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/enrollment-backend/internal/data/repos/testutil"
	types "github.com/yungbote/enrollment-backend/internal/domain"
	"github.com/yungbote/enrollment-backend/internal/platform/dbctx"
)

func TestEnrollmentRepoCreateAndDuplicate(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewEnrollmentRepo(db, testutil.Logger(t))

	student := testutil.SeedUser(t, ctx, tx, "student")
	course := testutil.SeedCourse(t, ctx, tx, 2, 2)

	e := testutil.SeedEnrollment(t, ctx, tx, student.ID, course.ID, nil)
	if e.ID == uuid.Nil {
		t.Fatalf("expected id to be assigned on create")
	}

	got, err := repo.GetByID(dbc, e.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}
	if got.CompletionCriteria.RequiredProgress != 100 || got.PaymentDetails.Currency != "INR" {
		t.Fatalf("embedded fields not round-tripped: %+v", got)
	}

	exists, err := repo.Exists(dbc, student.ID, course.ID)
	if err != nil || !exists {
		t.Fatalf("Exists: err=%v exists=%v", err, exists)
	}

	if missing, err := repo.GetByID(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetByID missing: err=%v got=%v", err, missing)
	}

	// A failed insert aborts a Postgres transaction, so this stays last.
	dup := *e
	dup.ID = uuid.Nil
	if err := repo.Create(dbc, &dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Create duplicate: want ErrDuplicate got %v", err)
	}
}

func TestEnrollmentRepoEffectiveStatusFilters(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewEnrollmentRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	student := testutil.SeedUser(t, ctx, tx, "student")

	active := testutil.SeedEnrollment(t, ctx, tx, student.ID, testutil.SeedCourse(t, ctx, tx, 1, 1).ID, nil)
	lapsed := testutil.SeedEnrollment(t, ctx, tx, student.ID, testutil.SeedCourse(t, ctx, tx, 1, 1).ID, func(e *types.Enrollment) {
		e.ExpiryDate = testutil.PtrTime(now.Add(-time.Hour))
	})
	selfPaced := testutil.SeedEnrollment(t, ctx, tx, student.ID, testutil.SeedCourse(t, ctx, tx, 1, 1).ID, func(e *types.Enrollment) {
		e.IsSelfPaced = true
		e.ExpiryDate = nil
	})
	testutil.SeedEnrollment(t, ctx, tx, student.ID, testutil.SeedCourse(t, ctx, tx, 1, 1).ID, func(e *types.Enrollment) {
		e.Status = types.StatusCompleted
		e.IsCompleted = true
	})

	rows, total, err := repo.List(dbc, Filter{StudentID: &student.ID, Now: now})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(rows) != 3 {
		t.Fatalf("default list excludes lapsed: want=3 got total=%d len=%d", total, len(rows))
	}
	for _, r := range rows {
		if r.ID == lapsed.ID {
			t.Fatalf("lapsed enrollment must be hidden without include_expired")
		}
	}

	_, total, err = repo.List(dbc, Filter{StudentID: &student.ID, IncludeExpired: true, Now: now})
	if err != nil || total != 4 {
		t.Fatalf("include expired: err=%v total=%d", err, total)
	}

	rows, _, err = repo.List(dbc, Filter{StudentID: &student.ID, Status: types.StatusActive, Now: now})
	if err != nil || len(rows) != 2 {
		t.Fatalf("active filter: err=%v len=%d", err, len(rows))
	}
	seen := map[uuid.UUID]bool{}
	for _, r := range rows {
		seen[r.ID] = true
	}
	if !seen[active.ID] || !seen[selfPaced.ID] {
		t.Fatalf("active filter: missing expected rows")
	}

	rows, _, err = repo.List(dbc, Filter{StudentID: &student.ID, Status: types.StatusExpired, Now: now})
	if err != nil || len(rows) != 1 || rows[0].ID != lapsed.ID {
		t.Fatalf("expired filter: err=%v rows=%d", err, len(rows))
	}

	rows, total, err = repo.List(dbc, Filter{StudentID: &student.ID, IncludeExpired: true, Now: now, Limit: 2, Offset: 2})
	if err != nil || total != 4 || len(rows) != 2 {
		t.Fatalf("pagination: err=%v total=%d len=%d", err, total, len(rows))
	}

	counts, err := repo.CountByStatus(dbc, student.ID, now)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[types.StatusActive] != 2 || counts[types.StatusExpired] != 1 || counts[types.StatusCompleted] != 1 {
		t.Fatalf("counts: got %+v", counts)
	}
}

func TestEnrollmentRepoConditionalUpdates(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewEnrollmentRepo(db, testutil.Logger(t))

	student := testutil.SeedUser(t, ctx, tx, "student")
	course := testutil.SeedCourse(t, ctx, tx, 1, 1)
	e := testutil.SeedEnrollment(t, ctx, tx, student.ID, course.ID, nil)

	now := time.Now().UTC()
	ok, err := repo.MarkCompleted(dbc, e.ID, now)
	if err != nil || !ok {
		t.Fatalf("first MarkCompleted: err=%v ok=%v", err, ok)
	}
	ok, err = repo.MarkCompleted(dbc, e.ID, now)
	if err != nil || ok {
		t.Fatalf("second MarkCompleted must be a no-op: err=%v ok=%v", err, ok)
	}
	got, _ := repo.GetByID(dbc, e.ID)
	if got.Status != types.StatusCompleted || !got.IsCompleted || got.CompletedOn == nil {
		t.Fatalf("completion not persisted: %+v", got)
	}
	if ok, _ := repo.MarkExpired(dbc, e.ID); ok {
		t.Fatalf("completed enrollment must not expire")
	}

	other := testutil.SeedEnrollment(t, ctx, tx, student.ID, testutil.SeedCourse(t, ctx, tx, 1, 1).ID, nil)
	if ok, err := repo.MarkExpired(dbc, other.ID); err != nil || !ok {
		t.Fatalf("MarkExpired: err=%v ok=%v", err, ok)
	}
	if ok, _ := repo.MarkExpired(dbc, other.ID); ok {
		t.Fatalf("MarkExpired must fire once")
	}

	if err := repo.UpdateFields(dbc, other.ID, map[string]interface{}{"progress": 40}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, _ = repo.GetByID(dbc, other.ID)
	if got.Progress != 40 {
		t.Fatalf("progress: want=40 got=%d", got.Progress)
	}

	stats, err := repo.CourseStats(dbc, course.ID, now)
	if err != nil {
		t.Fatalf("CourseStats: %v", err)
	}
	if stats.TotalEnrollments != 1 || stats.CompletedEnrollments != 1 || stats.ActiveEnrollments != 0 {
		t.Fatalf("stats: got %+v", stats)
	}

	n, err := repo.Delete(dbc, other.ID)
	if err != nil || n != 1 {
		t.Fatalf("Delete: err=%v n=%d", err, n)
	}
}

func TestEnrollmentRepoUpdateEmi(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewEnrollmentRepo(db, testutil.Logger(t))

	student := testutil.SeedUser(t, ctx, tx, "student")
	course := testutil.SeedCourse(t, ctx, tx, 1, 1)
	e := testutil.SeedEnrollment(t, ctx, tx, student.ID, course.ID, func(e *types.Enrollment) {
		e.PaymentType = types.PaymentTypeEMI
		e.EmiDetails = &types.EmiSchedule{
			NumberOfInstallments: 1,
			Installments: []types.Installment{
				{InstallmentNumber: 1, Status: types.InstallmentPending},
			},
			Status: types.EmiActive,
		}
	})

	schedule := *e.EmiDetails
	schedule.Installments = []types.Installment{{InstallmentNumber: 1, Status: types.InstallmentPaid}}
	schedule.Status = types.EmiCompleted
	if err := repo.UpdateEmi(dbc, e.ID, &schedule); err != nil {
		t.Fatalf("UpdateEmi: %v", err)
	}
	got, err := repo.GetByID(dbc, e.ID)
	if err != nil || got == nil || got.EmiDetails == nil {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}
	if got.EmiDetails.Status != types.EmiCompleted || got.EmiDetails.Installments[0].Status != types.InstallmentPaid {
		t.Fatalf("emi not persisted: %+v", got.EmiDetails)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"gorm translated", gorm.ErrDuplicatedKey, true},
		{"postgres unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"postgres fk", &pgconn.PgError{Code: "23503"}, false},
		{"sqlite message", errors.New("UNIQUE constraint failed: enrollments.student_id"), true},
		{"other", errors.New("connection reset"), false},
	}
	for _, tc := range cases {
		if got := isUniqueViolation(tc.err); got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
	}
}
