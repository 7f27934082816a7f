package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LessonStatus string

const (
	LessonNotStarted LessonStatus = "not_started"
	LessonInProgress LessonStatus = "in_progress"
	LessonCompleted  LessonStatus = "completed"
)

func (s LessonStatus) Valid() bool {
	return s == LessonNotStarted || s == LessonInProgress || s == LessonCompleted
}

type QuizStatus string

const (
	QuizNotStarted QuizStatus = "not_started"
	QuizInProgress QuizStatus = "in_progress"
	QuizCompleted  QuizStatus = "completed"
	QuizFailed     QuizStatus = "failed"
)

type AssignmentStatus string

const (
	AssignmentNotStarted AssignmentStatus = "not_started"
	AssignmentSubmitted  AssignmentStatus = "submitted"
	AssignmentGraded     AssignmentStatus = "graded"
	AssignmentReturned   AssignmentStatus = "returned"
)

type LessonEntry struct {
	LessonID     uuid.UUID    `json:"lesson_id"`
	Status       LessonStatus `json:"status"`
	TimeSpent    int64        `json:"time_spent"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	LastAccessed time.Time    `json:"last_accessed"`
}

type QuizAttempt struct {
	AttemptNumber int        `json:"attempt_number"`
	Score         float64    `json:"score"`
	PassingScore  float64    `json:"passing_score"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

type QuizEntry struct {
	QuizID    uuid.UUID     `json:"quiz_id"`
	Attempts  []QuizAttempt `json:"attempts"`
	BestScore float64       `json:"best_score"`
	Status    QuizStatus    `json:"status"`
}

type AssignmentSubmission struct {
	SubmissionNumber int        `json:"submission_number"`
	Content          string     `json:"content"`
	SubmittedAt      time.Time  `json:"submitted_at"`
	Score            *float64   `json:"score,omitempty"`
	Feedback         string     `json:"feedback,omitempty"`
	GradedAt         *time.Time `json:"graded_at,omitempty"`
}

type AssignmentEntry struct {
	AssignmentID uuid.UUID              `json:"assignment_id"`
	Submissions  []AssignmentSubmission `json:"submissions"`
	BestScore    float64                `json:"best_score"`
	Status       AssignmentStatus       `json:"status"`
}

// ProgressMeta is derived by the progress aggregator and never accepted from input.
type ProgressMeta struct {
	TotalTimeSpent         int64   `json:"total_time_spent"`
	AverageQuizScore       float64 `json:"average_quiz_score"`
	AverageAssignmentScore float64 `json:"average_assignment_score"`
	CompletedLessons       int     `json:"completed_lessons"`
	CompletedQuizzes       int     `json:"completed_quizzes"`
	CompletedAssignments   int     `json:"completed_assignments"`
}

type Progress struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_course_progress_student_course,priority:1" json:"student_id"`
	CourseID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_course_progress_student_course,priority:2" json:"course_id"`
	EnrollmentID uuid.UUID `gorm:"type:uuid;not null;index" json:"enrollment_id"`

	LessonProgress     []LessonEntry     `gorm:"column:lesson_progress;type:json;serializer:json" json:"lesson_progress"`
	QuizProgress       []QuizEntry       `gorm:"column:quiz_progress;type:json;serializer:json" json:"quiz_progress"`
	AssignmentProgress []AssignmentEntry `gorm:"column:assignment_progress;type:json;serializer:json" json:"assignment_progress"`

	OverallProgress int          `gorm:"column:overall_progress;not null;default:0" json:"overall_progress"`
	Meta            ProgressMeta `gorm:"column:meta;type:json;serializer:json" json:"meta"`
	LastAccessed    time.Time    `gorm:"column:last_accessed;not null" json:"last_accessed"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Progress) TableName() string { return "course_progress" }

func (p *Progress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
