package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnrolledModule is one watchable course video materialized for a student's enrollment.
type EnrolledModule struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_enrolled_module_student_course,priority:1" json:"student_id"`
	CourseID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_enrolled_module_student_course,priority:2" json:"course_id"`
	EnrollmentID uuid.UUID  `gorm:"type:uuid;not null;index" json:"enrollment_id"`
	Position     int        `gorm:"column:position;not null;default:0" json:"position"`
	VideoURL     string     `gorm:"column:video_url;not null" json:"video_url"`
	IsWatched    bool       `gorm:"column:is_watched;not null;default:false" json:"is_watched"`
	WatchedAt    *time.Time `gorm:"column:watched_at" json:"watched_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}

func (EnrolledModule) TableName() string { return "enrolled_module" }

func (m *EnrolledModule) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
