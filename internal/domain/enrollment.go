package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentDetails is the captured payment confirmation, stored inline on the enrollment row.
type PaymentDetails struct {
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null;default:0" json:"amount"`
	Currency  string          `gorm:"column:currency;not null;default:'INR'" json:"currency"`
	Method    string          `gorm:"column:method" json:"payment_method,omitempty"`
	PaymentID string          `gorm:"column:payment_id;index" json:"payment_id,omitempty"`
	OrderID   string          `gorm:"column:order_id" json:"order_id,omitempty"`
	Signature string          `gorm:"column:signature" json:"-"`
	PaidAt    *time.Time      `gorm:"column:paid_at" json:"paid_at,omitempty"`
}

type CompletionCriteria struct {
	RequiredProgress    int  `gorm:"column:required_progress;not null" json:"required_progress"`
	RequiredAssignments bool `gorm:"column:required_assignments;not null" json:"required_assignments"`
	RequiredQuizzes     bool `gorm:"column:required_quizzes;not null" json:"required_quizzes"`
}

type Enrollment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_student_course,priority:1" json:"student_id"`
	CourseID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_student_course,priority:2;index" json:"course_id"`

	EnrollmentType EnrollmentType   `gorm:"column:enrollment_type;not null;default:'individual'" json:"enrollment_type"`
	BatchSize      int              `gorm:"column:batch_size;not null;default:1" json:"batch_size"`
	PaymentStatus  PaymentStatus    `gorm:"column:payment_status;not null;default:'pending';index" json:"payment_status"`
	Status         EnrollmentStatus `gorm:"column:status;not null;default:'active';index" json:"status"`

	IsSelfPaced    bool       `gorm:"column:is_self_paced;not null;default:false" json:"is_self_paced"`
	ExpiryDate     *time.Time `gorm:"column:expiry_date" json:"expiry_date,omitempty"`
	EnrollmentDate time.Time  `gorm:"column:enrollment_date;not null" json:"enrollment_date"`
	IsCompleted    bool       `gorm:"column:is_completed;not null;default:false" json:"is_completed"`
	CompletedOn    *time.Time `gorm:"column:completed_on" json:"completed_on,omitempty"`
	Progress       int        `gorm:"column:progress;not null;default:0" json:"progress"`

	PaymentDetails PaymentDetails `gorm:"embedded;embeddedPrefix:payment_" json:"payment_details"`
	PaymentType    PaymentType    `gorm:"column:payment_type;not null;default:'full'" json:"payment_type"`
	EmiDetails     *EmiSchedule   `gorm:"column:emi_details;type:json;serializer:json" json:"emi_details,omitempty"`

	LearningPath       LearningPath       `gorm:"column:learning_path;not null;default:'sequential'" json:"learning_path"`
	CompletionCriteria CompletionCriteria `gorm:"embedded;embeddedPrefix:criteria_" json:"completion_criteria"`

	// device_info, ip_address, enrollment_source
	Metadata     datatypes.JSONMap `gorm:"column:metadata;type:json" json:"metadata,omitempty"`
	LastAccessed *time.Time        `gorm:"column:last_accessed" json:"last_accessed,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Enrollment) TableName() string { return "enrollment" }

func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// DefaultCompletionCriteria is used when an enrollment is created without explicit criteria.
func DefaultCompletionCriteria() CompletionCriteria {
	return CompletionCriteria{RequiredProgress: 100, RequiredAssignments: true, RequiredQuizzes: true}
}
