// Package domain holds the persisted enrollment records and the error taxonomy shared by
// the enrollment engines, services and the HTTP boundary.
package domain

type EnrollmentType string

const (
	EnrollmentIndividual EnrollmentType = "individual"
	EnrollmentBatch      EnrollmentType = "batch"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type EnrollmentStatus string

const (
	StatusActive    EnrollmentStatus = "active"
	StatusCompleted EnrollmentStatus = "completed"
	StatusExpired   EnrollmentStatus = "expired"
	StatusCancelled EnrollmentStatus = "cancelled"
	StatusSuspended EnrollmentStatus = "suspended"
)

type PaymentType string

const (
	PaymentTypeFull PaymentType = "full"
	PaymentTypeEMI  PaymentType = "emi"
)

type LearningPath string

const (
	LearningPathSequential LearningPath = "sequential"
	LearningPathFlexible   LearningPath = "flexible"
)

func (t EnrollmentType) Valid() bool {
	return t == EnrollmentIndividual || t == EnrollmentBatch
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

func (s EnrollmentStatus) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusExpired, StatusCancelled, StatusSuspended:
		return true
	}
	return false
}

func (p LearningPath) Valid() bool {
	return p == LearningPathSequential || p == LearningPathFlexible
}
