package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventEnrollmentCreated   EventType = "enrollment.created"
	EventEnrollmentCompleted EventType = "enrollment.completed"
	EventEnrollmentExpired   EventType = "enrollment.expired"
)

// EnrollmentEvent is the payload published for lifecycle transitions.
type EnrollmentEvent struct {
	Type         EventType        `json:"type"`
	EnrollmentID uuid.UUID        `json:"enrollment_id"`
	StudentID    uuid.UUID        `json:"student_id"`
	CourseID     uuid.UUID        `json:"course_id"`
	Status       EnrollmentStatus `json:"status"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

func NewEnrollmentEvent(t EventType, e *Enrollment, at time.Time) EnrollmentEvent {
	ev := EnrollmentEvent{Type: t, OccurredAt: at.UTC()}
	if e != nil {
		ev.EnrollmentID = e.ID
		ev.StudentID = e.StudentID
		ev.CourseID = e.CourseID
		ev.Status = e.Status
	}
	return ev
}
