package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/enrollment-backend/internal/data/repos"
	"github.com/yungbote/enrollment-backend/internal/data/repos/testutil"
	httpH "github.com/yungbote/enrollment-backend/internal/http/handlers"
	httpMW "github.com/yungbote/enrollment-backend/internal/http/middleware"
	"github.com/yungbote/enrollment-backend/internal/http/validation"
	"github.com/yungbote/enrollment-backend/internal/modules/enrollment/policy"
	"github.com/yungbote/enrollment-backend/internal/platform/ctxutil"
	"github.com/yungbote/enrollment-backend/internal/realtime/bus"
	"github.com/yungbote/enrollment-backend/internal/services"
)

const routerSecret = "router-test-secret"

type apiClient struct {
	t      *testing.T
	router *gin.Engine
}

func (a apiClient) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Header().Get("Content-Type") != "" && rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			a.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec, out
}

func token(t *testing.T, id uuid.UUID, role string) string {
	t.Helper()
	tok, err := httpMW.SignToken(routerSecret, id, role, time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	return tok
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func newTestRouter(t *testing.T) (apiClient, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if err := validation.Register(); err != nil {
		t.Fatalf("validation.Register: %v", err)
	}
	db := testutil.DB(t)
	log := testutil.Logger(t)

	users := repos.NewUserRepo(db, log)
	courses := repos.NewCourseRepo(db, log)
	enrollments := repos.NewEnrollmentRepo(db, log)
	modules := repos.NewEnrolledModuleRepo(db, log)
	progress := repos.NewProgressRepo(db, log)
	events := bus.NewLogBus(log)

	router := NewRouter(RouterConfig{
		Log:            log,
		AuthMiddleware: httpMW.NewAuthMiddleware(log, routerSecret),
		EnrollmentHandler: httpH.NewEnrollmentHandler(log,
			services.NewEnrollmentService(db, log, users, courses, enrollments, modules, progress, policy.Fallback(), events)),
		ModuleHandler: httpH.NewModuleHandler(log,
			services.NewModuleService(db, log, enrollments, modules, events)),
		ProgressHandler: httpH.NewProgressHandler(log,
			services.NewProgressService(db, log, enrollments, progress, events)),
		HealthHandler: httpH.NewHealthHandler(db),
	})
	return apiClient{t: t, router: router}, db
}

func TestEnrollmentAPI(t *testing.T) {
	api, db := newTestRouter(t)
	ctx := context.Background()
	student := testutil.SeedUser(t, ctx, db, ctxutil.RoleStudent)
	course := testutil.SeedCourse(t, ctx, db, 2, 2)
	tok := token(t, student.ID, ctxutil.RoleStudent)
	stranger := token(t, uuid.New(), ctxutil.RoleStudent)

	rec, _ := api.do(nethttp.MethodGet, "/healthcheck", "", nil)
	if rec.Code != nethttp.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: %d %q", rec.Code, rec.Body.String())
	}

	createBody := map[string]any{
		"course_id": course.ID.String(),
		"payment_details": map[string]any{
			"payment_id": "pay_1",
			"amount":     1000,
			"currency":   "INR",
		},
	}
	rec, _ = api.do(nethttp.MethodPost, "/api/enrollments", "", createBody)
	if rec.Code != nethttp.StatusUnauthorized {
		t.Fatalf("create without token: want=401 got=%d", rec.Code)
	}

	rec, body := api.do(nethttp.MethodPost, "/api/enrollments", tok, map[string]any{
		"course_id":       course.ID.String(),
		"enrollment_type": "group",
	})
	if rec.Code != nethttp.StatusBadRequest || errorCode(body) != "invalid_input" {
		t.Fatalf("invalid type: %d %v", rec.Code, body)
	}

	rec, body = api.do(nethttp.MethodPost, "/api/enrollments", tok, createBody)
	if rec.Code != nethttp.StatusCreated {
		t.Fatalf("create: want=201 got=%d body=%s", rec.Code, rec.Body.String())
	}
	enrollment := body["enrollment"].(map[string]any)
	enrollmentID := enrollment["id"].(string)
	if enrollment["payment_status"] != "completed" {
		t.Fatalf("payment_status: got %v", enrollment["payment_status"])
	}
	mods := body["modules"].([]any)
	if len(mods) != 2 {
		t.Fatalf("modules: want=2 got=%d", len(mods))
	}

	rec, body = api.do(nethttp.MethodPost, "/api/enrollments", tok, createBody)
	if rec.Code != nethttp.StatusConflict || errorCode(body) != "duplicate_enrollment" {
		t.Fatalf("duplicate: %d %v", rec.Code, body)
	}

	rec, body = api.do(nethttp.MethodGet, "/api/enrollments/"+enrollmentID, tok, nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}
	view := body["enrollment"].(map[string]any)
	if view["can_access"] != true || view["effective_status"] != "active" {
		t.Fatalf("get view: %v", view)
	}
	rec, _ = api.do(nethttp.MethodGet, "/api/enrollments/not-a-uuid", tok, nil)
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("bad id: want=400 got=%d", rec.Code)
	}
	rec, body = api.do(nethttp.MethodGet, "/api/enrollments/"+enrollmentID, stranger, nil)
	if rec.Code != nethttp.StatusForbidden || errorCode(body) != "unauthorized" {
		t.Fatalf("stranger get: %d %v", rec.Code, body)
	}
	rec, _ = api.do(nethttp.MethodGet, "/api/enrollments/"+uuid.NewString(), tok, nil)
	if rec.Code != nethttp.StatusNotFound {
		t.Fatalf("missing: want=404 got=%d", rec.Code)
	}

	rec, body = api.do(nethttp.MethodPatch, "/api/enrollments/"+enrollmentID, tok, map[string]any{
		"course_id": uuid.NewString(),
	})
	if rec.Code != nethttp.StatusBadRequest || errorCode(body) != "invalid_input" {
		t.Fatalf("re-point course: %d %v", rec.Code, body)
	}

	for i, m := range mods {
		id := m.(map[string]any)["id"].(string)
		rec, body = api.do(nethttp.MethodPost, "/api/modules/"+id+"/watch", tok, nil)
		if rec.Code != nethttp.StatusOK {
			t.Fatalf("watch %d: %d %s", i, rec.Code, rec.Body.String())
		}
		if want := i == len(mods)-1; body["enrollment_completed"] != want {
			t.Fatalf("watch %d: enrollment_completed want=%v got=%v", i, want, body["enrollment_completed"])
		}
	}

	rec, body = api.do(nethttp.MethodPost, "/api/enrollments/complete", tok, map[string]any{
		"course_id": course.ID.String(),
	})
	if rec.Code != nethttp.StatusConflict || errorCode(body) != "already_completed" {
		t.Fatalf("complete again: %d %v", rec.Code, body)
	}

	rec, body = api.do(nethttp.MethodGet, "/api/students/"+student.ID.String()+"/enrollments?status=completed", tok, nil)
	if rec.Code != nethttp.StatusOK || len(body["enrollments"].([]any)) != 1 {
		t.Fatalf("by student: %d %s", rec.Code, rec.Body.String())
	}
	rec, _ = api.do(nethttp.MethodGet, "/api/students/"+student.ID.String()+"/enrollments?status=paused", tok, nil)
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("bad status filter: want=400 got=%d", rec.Code)
	}
	rec, _ = api.do(nethttp.MethodGet, "/api/courses/"+course.ID.String()+"/enrollments", tok, nil)
	if rec.Code != nethttp.StatusForbidden {
		t.Fatalf("student listing course: want=403 got=%d", rec.Code)
	}

	rec, _ = api.do(nethttp.MethodDelete, "/api/enrollments/"+enrollmentID, stranger, nil)
	if rec.Code != nethttp.StatusForbidden {
		t.Fatalf("stranger delete: want=403 got=%d", rec.Code)
	}
	rec, _ = api.do(nethttp.MethodDelete, "/api/enrollments/"+enrollmentID, tok, nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("delete: want=200 got=%d", rec.Code)
	}
	rec, body = api.do(nethttp.MethodGet, "/api/enrollments/"+enrollmentID+"/modules", tok, nil)
	if rec.Code != nethttp.StatusNotFound {
		t.Fatalf("modules after delete: %d %v", rec.Code, body)
	}
}

func TestProgressAndEmiAPI(t *testing.T) {
	api, db := newTestRouter(t)
	ctx := context.Background()
	student := testutil.SeedUser(t, ctx, db, ctxutil.RoleStudent)
	course := testutil.SeedCourse(t, ctx, db, 0, 2)
	tok := token(t, student.ID, ctxutil.RoleStudent)
	admin := token(t, uuid.New(), ctxutil.RoleAdmin)

	rec, body := api.do(nethttp.MethodPost, "/api/enrollments", tok, map[string]any{
		"course_id":       course.ID.String(),
		"payment_details": map[string]any{"payment_id": "pay_2", "amount": 1200},
		"emi":             map[string]any{"number_of_installments": 3},
	})
	if rec.Code != nethttp.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	enrollmentID := body["enrollment"].(map[string]any)["id"].(string)

	rec, body = api.do(nethttp.MethodGet, "/api/enrollments/"+enrollmentID+"/emi", tok, nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("emi: %d %s", rec.Code, rec.Body.String())
	}
	emi := body["emi"].(map[string]any)
	if fmt.Sprint(emi["outstanding"]) != "1200" {
		t.Fatalf("outstanding: got %v", emi["outstanding"])
	}

	path := "/api/enrollments/" + enrollmentID + "/emi/installments/1"
	rec, _ = api.do(nethttp.MethodPost, path, tok, map[string]any{"status": "paid"})
	if rec.Code != nethttp.StatusForbidden {
		t.Fatalf("student records installment: want=403 got=%d", rec.Code)
	}
	rec, _ = api.do(nethttp.MethodPost, path, admin, map[string]any{"status": "bounced"})
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("bad installment status: want=400 got=%d", rec.Code)
	}
	rec, body = api.do(nethttp.MethodPost, path, admin, map[string]any{"status": "paid"})
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("record installment: %d %s", rec.Code, rec.Body.String())
	}
	if got := fmt.Sprint(body["emi"].(map[string]any)["outstanding"]); got != "800" {
		t.Fatalf("outstanding after payment: got %v", got)
	}

	rec, body = api.do(nethttp.MethodPost, "/api/progress/lessons", tok, map[string]any{
		"course_id":  course.ID.String(),
		"lesson_id":  uuid.NewString(),
		"status":     "completed",
		"time_spent": 120,
	})
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("lesson: %d %s", rec.Code, rec.Body.String())
	}
	p := body["progress"].(map[string]any)
	if p["overall_progress"] != float64(50) {
		t.Fatalf("overall_progress: got %v", p["overall_progress"])
	}

	rec, _ = api.do(nethttp.MethodPost, "/api/progress/lessons", tok, map[string]any{
		"course_id": course.ID.String(),
		"lesson_id": uuid.NewString(),
		"status":    "skipped",
	})
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("bad lesson status: want=400 got=%d", rec.Code)
	}

	rec, body = api.do(nethttp.MethodGet, "/api/students/"+student.ID.String()+"/courses/"+course.ID.String()+"/progress", tok, nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("get progress: %d %s", rec.Code, rec.Body.String())
	}

	rec, body = api.do(nethttp.MethodGet, "/api/students/"+student.ID.String()+"/enrollment-counts", tok, nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("counts: %d %s", rec.Code, rec.Body.String())
	}
	counts := body["counts"].(map[string]any)
	if counts["active"] != float64(1) {
		t.Fatalf("counts: got %v", counts)
	}
}

func TestCompletionCriteriaPartialBody(t *testing.T) {
	api, db := newTestRouter(t)
	ctx := context.Background()
	student := testutil.SeedUser(t, ctx, db, ctxutil.RoleStudent)
	course := testutil.SeedCourse(t, ctx, db, 0, 2)
	tok := token(t, student.ID, ctxutil.RoleStudent)

	rec, body := api.do(nethttp.MethodPost, "/api/enrollments", tok, map[string]any{
		"course_id":           course.ID.String(),
		"completion_criteria": map[string]any{"required_progress": 120},
	})
	if rec.Code != nethttp.StatusBadRequest || errorCode(body) != "invalid_input" {
		t.Fatalf("out of range: %d %v", rec.Code, body)
	}

	rec, body = api.do(nethttp.MethodPost, "/api/enrollments", tok, map[string]any{
		"course_id":           course.ID.String(),
		"completion_criteria": map[string]any{"required_progress": 80},
	})
	if rec.Code != nethttp.StatusCreated {
		t.Fatalf("create: want=201 got=%d body=%s", rec.Code, rec.Body.String())
	}
	enrollment := body["enrollment"].(map[string]any)
	criteria := enrollment["completion_criteria"].(map[string]any)
	if fmt.Sprint(criteria["required_progress"]) != "80" ||
		criteria["required_assignments"] != true ||
		criteria["required_quizzes"] != true {
		t.Fatalf("create criteria: %v", criteria)
	}

	id := enrollment["id"].(string)
	rec, body = api.do(nethttp.MethodPatch, "/api/enrollments/"+id, tok, map[string]any{
		"completion_criteria": map[string]any{"required_quizzes": false},
	})
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}
	criteria = body["enrollment"].(map[string]any)["completion_criteria"].(map[string]any)
	if fmt.Sprint(criteria["required_progress"]) != "80" ||
		criteria["required_assignments"] != true ||
		criteria["required_quizzes"] != false {
		t.Fatalf("update criteria: %v", criteria)
	}
}
