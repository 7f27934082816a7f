package enrollment

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/enrollment-backend/internal/data/repos/testutil"
	types "github.com/yungbote/enrollment-backend/internal/domain"
	"github.com/yungbote/enrollment-backend/internal/platform/dbctx"
)

func TestEnrolledModuleRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewEnrolledModuleRepo(db, testutil.Logger(t))

	student := testutil.SeedUser(t, ctx, tx, "student")
	course := testutil.SeedCourse(t, ctx, tx, 3, 1)
	e := testutil.SeedEnrollment(t, ctx, tx, student.ID, course.ID, nil)

	modules := make([]*types.EnrolledModule, 0, len(course.VideoContentURLs))
	for i, url := range course.VideoContentURLs {
		modules = append(modules, &types.EnrolledModule{
			StudentID:    student.ID,
			CourseID:     course.ID,
			EnrollmentID: e.ID,
			Position:     i,
			VideoURL:     url,
		})
	}
	created, err := repo.CreateBatch(dbc, modules)
	if err != nil || len(created) != 3 {
		t.Fatalf("CreateBatch: err=%v len=%d", err, len(created))
	}

	list, err := repo.ListByEnrollment(dbc, e.ID)
	if err != nil || len(list) != 3 || list[0].VideoURL != course.VideoContentURLs[0] {
		t.Fatalf("ListByEnrollment: err=%v len=%d", err, len(list))
	}

	now := time.Now().UTC()
	if ok, err := repo.MarkWatched(dbc, list[0].ID, now); err != nil || !ok {
		t.Fatalf("MarkWatched: err=%v ok=%v", err, ok)
	}
	if ok, _ := repo.MarkWatched(dbc, list[0].ID, now); ok {
		t.Fatalf("redundant MarkWatched must report no change")
	}
	total, watched, err := repo.CountByStudentCourse(dbc, student.ID, course.ID)
	if err != nil || total != 3 || watched != 1 {
		t.Fatalf("CountByStudentCourse: err=%v total=%d watched=%d", err, total, watched)
	}

	got, err := repo.GetByID(dbc, list[0].ID)
	if err != nil || got == nil || !got.IsWatched || got.WatchedAt == nil {
		t.Fatalf("GetByID: err=%v got=%+v", err, got)
	}

	n, err := repo.DeleteByEnrollment(dbc, e.ID)
	if err != nil || n != 3 {
		t.Fatalf("DeleteByEnrollment: err=%v n=%d", err, n)
	}
}
