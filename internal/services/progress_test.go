package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/enrollment-backend/internal/data/repos"
	"github.com/yungbote/enrollment-backend/internal/data/repos/testutil"
	types "github.com/yungbote/enrollment-backend/internal/domain"
	"github.com/yungbote/enrollment-backend/internal/platform/ctxutil"
	"github.com/yungbote/enrollment-backend/internal/platform/dbctx"
)

func TestProgressCompletesEnrollmentByCriteria(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testutil.SeedUser(t, ctx, f.db, ctxutil.RoleStudent)
	course := testutil.SeedCourse(t, ctx, f.db, 0, 2)
	e := testutil.SeedEnrollment(t, ctx, f.db, student.ID, course.ID, nil)
	sctx := asStudent(student.ID)

	res, err := f.progressSvc.RecordLesson(sctx, LessonEventInput{
		StudentID: student.ID,
		CourseID:  course.ID,
		LessonID:  uuid.New(),
		Status:    types.LessonCompleted,
		TimeSpent: 600,
	})
	if err != nil {
		t.Fatalf("RecordLesson: %v", err)
	}
	if res.Progress.OverallProgress != 50 || res.EnrollmentCompleted {
		t.Fatalf("after lesson: overall=%d completed=%v", res.Progress.OverallProgress, res.EnrollmentCompleted)
	}

	res, err = f.progressSvc.RecordQuizAttempt(sctx, QuizAttemptInput{
		StudentID:    student.ID,
		CourseID:     course.ID,
		QuizID:       uuid.New(),
		Score:        80,
		PassingScore: 60,
	})
	if err != nil {
		t.Fatalf("RecordQuizAttempt: %v", err)
	}
	if res.Progress.OverallProgress != 80 {
		t.Fatalf("after quiz: want=80 got=%d", res.Progress.OverallProgress)
	}

	assignment := uuid.New()
	score := 90.0
	_, err = f.progressSvc.RecordAssignmentSubmission(sctx, AssignmentSubmissionInput{
		StudentID:    student.ID,
		CourseID:     course.ID,
		AssignmentID: assignment,
		Content:      "answer",
		Score:        &score,
	})
	wantCode(t, err, types.CodeUnauthorized)

	res, err = f.progressSvc.RecordAssignmentSubmission(sctx, AssignmentSubmissionInput{
		StudentID:    student.ID,
		CourseID:     course.ID,
		AssignmentID: assignment,
		Content:      "answer",
	})
	if err != nil {
		t.Fatalf("RecordAssignmentSubmission: %v", err)
	}
	if res.Progress.OverallProgress != 80 || res.EnrollmentCompleted {
		t.Fatalf("after submission: overall=%d completed=%v", res.Progress.OverallProgress, res.EnrollmentCompleted)
	}

	grade := GradeAssignmentInput{
		StudentID:        student.ID,
		CourseID:         course.ID,
		AssignmentID:     assignment,
		SubmissionNumber: 1,
		Score:            75,
		Feedback:         "good",
	}
	_, err = f.progressSvc.GradeAssignment(sctx, grade)
	wantCode(t, err, types.CodeUnauthorized)

	res, err = f.progressSvc.GradeAssignment(asUser(uuid.New(), ctxutil.RoleInstructor), grade)
	if err != nil {
		t.Fatalf("GradeAssignment: %v", err)
	}
	if res.Progress.OverallProgress != 100 || !res.EnrollmentCompleted {
		t.Fatalf("after grade: overall=%d completed=%v", res.Progress.OverallProgress, res.EnrollmentCompleted)
	}
	if got := f.bus.count(types.EventEnrollmentCompleted); got != 1 {
		t.Fatalf("completed events: want=1 got=%d", got)
	}

	stored, err := f.enrollments.GetByID(dbctx.Context{Ctx: ctx}, e.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Progress != 100 || !stored.IsCompleted {
		t.Fatalf("stored: progress=%d completed=%v", stored.Progress, stored.IsCompleted)
	}

	p, err := f.progressSvc.Get(sctx, student.ID, course.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Meta.TotalTimeSpent != 600 || p.Meta.CompletedAssignments != 1 {
		t.Fatalf("meta: got %+v", p.Meta)
	}
	_, err = f.progressSvc.Get(asStudent(uuid.New()), student.ID, course.ID)
	wantCode(t, err, types.CodeUnauthorized)
}

func TestProgressRejectsInaccessibleEnrollment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testutil.SeedUser(t, ctx, f.db, ctxutil.RoleStudent)
	course := testutil.SeedCourse(t, ctx, f.db, 0, 2)
	testutil.SeedEnrollment(t, ctx, f.db, student.ID, course.ID, func(e *types.Enrollment) {
		e.Status = types.StatusSuspended
	})
	sctx := asStudent(student.ID)

	_, err := f.progressSvc.RecordLesson(sctx, LessonEventInput{
		StudentID: student.ID,
		CourseID:  course.ID,
		LessonID:  uuid.New(),
		Status:    types.LessonCompleted,
	})
	wantCode(t, err, types.CodeUnauthorized)

	_, err = f.progressSvc.RecordLesson(sctx, LessonEventInput{
		StudentID: student.ID,
		CourseID:  uuid.New(),
		LessonID:  uuid.New(),
		Status:    types.LessonCompleted,
	})
	wantCode(t, err, types.CodeNotFound)

	_, err = f.progressSvc.Get(sctx, student.ID, course.ID)
	wantCode(t, err, types.CodeNotFound)
}

func TestProgressInvalidEventLeavesNoRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testutil.SeedUser(t, ctx, f.db, ctxutil.RoleStudent)
	course := testutil.SeedCourse(t, ctx, f.db, 0, 2)
	testutil.SeedEnrollment(t, ctx, f.db, student.ID, course.ID, nil)

	_, err := f.progressSvc.RecordLesson(asStudent(student.ID), LessonEventInput{
		StudentID: student.ID,
		CourseID:  course.ID,
		LessonID:  uuid.New(),
		Status:    "skipped",
	})
	wantCode(t, err, types.CodeInvalidInput)

	p, err := f.progress.GetByStudentCourse(dbctx.Context{Ctx: ctx}, student.ID, course.ID)
	if err != nil || p != nil {
		t.Fatalf("progress row: want none got=%v err=%v", p, err)
	}
}

func TestProgressRelaxedCriteriaIgnoreFailedQuiz(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testutil.SeedUser(t, ctx, f.db, ctxutil.RoleStudent)
	course := testutil.SeedCourse(t, ctx, f.db, 0, 2)
	e := testutil.SeedEnrollment(t, ctx, f.db, student.ID, course.ID, func(e *types.Enrollment) {
		e.CompletionCriteria = types.CompletionCriteria{RequiredProgress: 50}
	})
	sctx := asStudent(student.ID)

	res, err := f.progressSvc.RecordQuizAttempt(sctx, QuizAttemptInput{
		StudentID:    student.ID,
		CourseID:     course.ID,
		QuizID:       uuid.New(),
		Score:        40,
		PassingScore: 60,
	})
	if err != nil {
		t.Fatalf("RecordQuizAttempt: %v", err)
	}
	if res.EnrollmentCompleted {
		t.Fatalf("failed quiz alone must not complete: overall=%d", res.Progress.OverallProgress)
	}

	res, err = f.progressSvc.RecordLesson(sctx, LessonEventInput{
		StudentID: student.ID,
		CourseID:  course.ID,
		LessonID:  uuid.New(),
		Status:    types.LessonCompleted,
	})
	if err != nil {
		t.Fatalf("RecordLesson: %v", err)
	}
	if res.Progress.OverallProgress != 50 || !res.EnrollmentCompleted {
		t.Fatalf("after lesson: overall=%d completed=%v", res.Progress.OverallProgress, res.EnrollmentCompleted)
	}
	if res.Progress.Meta.CompletedQuizzes != 0 {
		t.Fatalf("quiz should still be failed: %+v", res.Progress.Meta)
	}

	stored, err := f.enrollments.GetByID(dbctx.Context{Ctx: ctx}, e.ID)
	if err != nil || stored == nil || !stored.IsCompleted {
		t.Fatalf("enrollment not completed: err=%v row=%+v", err, stored)
	}
	if got := f.bus.count(types.EventEnrollmentCompleted); got != 1 {
		t.Fatalf("completed events: want=1 got=%d", got)
	}
}

// racingProgressRepo inserts the (student, course) row from another writer right before
// the service claims it.
type racingProgressRepo struct {
	repos.ProgressRepo
	lessonID uuid.UUID
	raced    bool
}

func (r *racingProgressRepo) EnsureForUpdate(dbc dbctx.Context, studentID, courseID, enrollmentID uuid.UUID, now time.Time) (*types.Progress, error) {
	if !r.raced {
		r.raced = true
		other := &types.Progress{
			StudentID:    studentID,
			CourseID:     courseID,
			EnrollmentID: enrollmentID,
			LessonProgress: []types.LessonEntry{
				{LessonID: r.lessonID, Status: types.LessonCompleted, LastAccessed: now},
			},
			LastAccessed: now,
		}
		if err := dbc.Tx.WithContext(dbc.Ctx).Create(other).Error; err != nil {
			return nil, err
		}
	}
	return r.ProgressRepo.EnsureForUpdate(dbc, studentID, courseID, enrollmentID, now)
}

func TestProgressFirstEventSurvivesConcurrentInsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testutil.SeedUser(t, ctx, f.db, ctxutil.RoleStudent)
	course := testutil.SeedCourse(t, ctx, f.db, 0, 2)
	testutil.SeedEnrollment(t, ctx, f.db, student.ID, course.ID, nil)

	racing := &racingProgressRepo{ProgressRepo: f.progress, lessonID: uuid.New()}
	svc := NewProgressService(f.db, testutil.Logger(t), f.enrollments, racing, f.bus).(*progressService)

	res, err := svc.RecordLesson(asStudent(student.ID), LessonEventInput{
		StudentID: student.ID,
		CourseID:  course.ID,
		LessonID:  uuid.New(),
		Status:    types.LessonInProgress,
		TimeSpent: 30,
	})
	if err != nil {
		t.Fatalf("RecordLesson: %v", err)
	}
	if !racing.raced {
		t.Fatalf("expected the competing insert to run")
	}
	if got := len(res.Progress.LessonProgress); got != 2 {
		t.Fatalf("lessons: want=2 got=%d", got)
	}
	if res.Progress.OverallProgress != 25 {
		t.Fatalf("overall: want=25 got=%d", res.Progress.OverallProgress)
	}

	var rows int64
	if err := f.db.Model(&types.Progress{}).
		Where("student_id = ? AND course_id = ?", student.ID, course.ID).
		Count(&rows).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Fatalf("progress rows: want=1 got=%d", rows)
	}
}
