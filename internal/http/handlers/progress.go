package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/enrollment-backend/internal/domain"
	"github.com/yungbote/enrollment-backend/internal/http/response"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
	"github.com/yungbote/enrollment-backend/internal/services"
)

type ProgressHandler struct {
	log *logger.Logger
	svc services.ProgressService
}

func NewProgressHandler(log *logger.Logger, svc services.ProgressService) *ProgressHandler {
	return &ProgressHandler{log: log.With("handler", "ProgressHandler"), svc: svc}
}

// GET /api/students/:id/courses/:courseId/progress
func (h *ProgressHandler) Get(c *gin.Context) {
	studentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "courseId")
	if !ok {
		return
	}
	p, err := h.svc.Get(c.Request.Context(), studentID, courseID)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"progress": p})
}

// subject names the (student, course) pair an event applies to; student defaults to the caller.
type subject struct {
	StudentID string `json:"student_id" binding:"omitempty,uuid"`
	CourseID  string `json:"course_id" binding:"required,uuid"`
}

func (s subject) resolve(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	studentID, ok := optionalUUID(c, s.StudentID)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return studentID, uuid.MustParse(s.CourseID), true
}

type lessonEventRequest struct {
	subject
	LessonID  string `json:"lesson_id" binding:"required,uuid"`
	Status    string `json:"status" binding:"required,lesson_status"`
	TimeSpent int64  `json:"time_spent" binding:"min=0"`
}

// POST /api/progress/lessons
func (h *ProgressHandler) RecordLesson(c *gin.Context) {
	var req lessonEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(c, err)
		return
	}
	studentID, courseID, ok := req.resolve(c)
	if !ok {
		return
	}
	res, err := h.svc.RecordLesson(c.Request.Context(), services.LessonEventInput{
		StudentID: studentID,
		CourseID:  courseID,
		LessonID:  uuid.MustParse(req.LessonID),
		Status:    domain.LessonStatus(req.Status),
		TimeSpent: req.TimeSpent,
	})
	h.respond(c, res, err)
}

type quizAttemptRequest struct {
	subject
	QuizID       string     `json:"quiz_id" binding:"required,uuid"`
	Score        float64    `json:"score" binding:"min=0"`
	PassingScore float64    `json:"passing_score" binding:"min=0"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// POST /api/progress/quizzes
func (h *ProgressHandler) RecordQuizAttempt(c *gin.Context) {
	var req quizAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(c, err)
		return
	}
	studentID, courseID, ok := req.resolve(c)
	if !ok {
		return
	}
	res, err := h.svc.RecordQuizAttempt(c.Request.Context(), services.QuizAttemptInput{
		StudentID:    studentID,
		CourseID:     courseID,
		QuizID:       uuid.MustParse(req.QuizID),
		Score:        req.Score,
		PassingScore: req.PassingScore,
		StartedAt:    req.StartedAt,
		CompletedAt:  req.CompletedAt,
	})
	h.respond(c, res, err)
}

type assignmentSubmissionRequest struct {
	subject
	AssignmentID string   `json:"assignment_id" binding:"required,uuid"`
	Content      string   `json:"content"`
	Score        *float64 `json:"score" binding:"omitempty,min=0"`
}

// POST /api/progress/assignments
func (h *ProgressHandler) RecordAssignmentSubmission(c *gin.Context) {
	var req assignmentSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(c, err)
		return
	}
	studentID, courseID, ok := req.resolve(c)
	if !ok {
		return
	}
	res, err := h.svc.RecordAssignmentSubmission(c.Request.Context(), services.AssignmentSubmissionInput{
		StudentID:    studentID,
		CourseID:     courseID,
		AssignmentID: uuid.MustParse(req.AssignmentID),
		Content:      req.Content,
		Score:        req.Score,
	})
	h.respond(c, res, err)
}

type gradeRequest struct {
	StudentID        string  `json:"student_id" binding:"required,uuid"`
	CourseID         string  `json:"course_id" binding:"required,uuid"`
	AssignmentID     string  `json:"assignment_id" binding:"required,uuid"`
	SubmissionNumber int     `json:"submission_number" binding:"required,min=1"`
	Score            float64 `json:"score" binding:"min=0"`
	Feedback         string  `json:"feedback"`
}

// POST /api/progress/assignments/grade
func (h *ProgressHandler) GradeAssignment(c *gin.Context) {
	var req gradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(c, err)
		return
	}
	res, err := h.svc.GradeAssignment(c.Request.Context(), services.GradeAssignmentInput{
		StudentID:        uuid.MustParse(req.StudentID),
		CourseID:         uuid.MustParse(req.CourseID),
		AssignmentID:     uuid.MustParse(req.AssignmentID),
		SubmissionNumber: req.SubmissionNumber,
		Score:            req.Score,
		Feedback:         req.Feedback,
	})
	h.respond(c, res, err)
}

func (h *ProgressHandler) respond(c *gin.Context, res *services.ProgressResult, err error) {
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, res)
}
