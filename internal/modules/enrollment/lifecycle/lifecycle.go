// Package lifecycle is the enrollment state machine: allowed status transitions, lazy
// expiry, access control and completion rules.
package lifecycle

import (
	"time"

	"github.com/yungbote/enrollment-backend/internal/domain"
	"github.com/yungbote/enrollment-backend/internal/modules/enrollment/progress"
)

var transitions = map[domain.EnrollmentStatus][]domain.EnrollmentStatus{
	domain.StatusActive: {
		domain.StatusCompleted,
		domain.StatusExpired,
		domain.StatusCancelled,
		domain.StatusSuspended,
	},
	domain.StatusSuspended: {
		domain.StatusActive,
		domain.StatusCancelled,
	},
}

func CanTransition(from, to domain.EnrollmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminal(s domain.EnrollmentStatus) bool {
	return s == domain.StatusCompleted || s == domain.StatusExpired || s == domain.StatusCancelled
}

// Transition moves e to the requested status. Completion is routed through Complete so
// the completion fields are always set together.
func Transition(e *domain.Enrollment, to domain.EnrollmentStatus, now time.Time) error {
	const op = "lifecycle.Transition"
	if !to.Valid() {
		return domain.InvalidInput(op, "unknown status %q", to)
	}
	if to == domain.StatusCompleted {
		return Complete(e, now)
	}
	from := EffectiveStatus(e, now)
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return domain.InvalidInput(op, "cannot move enrollment from %s to %s", from, to)
	}
	e.Status = to
	return nil
}

// IsExpired reports whether a non-self-paced active enrollment is past its expiry date, or
// has already been stored as expired.
func IsExpired(e *domain.Enrollment, now time.Time) bool {
	if e == nil {
		return false
	}
	if e.Status == domain.StatusExpired {
		return true
	}
	return e.Status == domain.StatusActive &&
		!e.IsSelfPaced &&
		e.ExpiryDate != nil &&
		now.After(*e.ExpiryDate)
}

// NeedsExpiry reports whether the stored status is stale: active in storage but expired by date.
func NeedsExpiry(e *domain.Enrollment, now time.Time) bool {
	return e != nil && e.Status == domain.StatusActive && IsExpired(e, now)
}

// EffectiveStatus never trusts a stored active status past the expiry date.
func EffectiveStatus(e *domain.Enrollment, now time.Time) domain.EnrollmentStatus {
	if IsExpired(e, now) {
		return domain.StatusExpired
	}
	return e.Status
}

func CanAccess(e *domain.Enrollment, now time.Time) bool {
	if e == nil {
		return false
	}
	switch EffectiveStatus(e, now) {
	case domain.StatusActive, domain.StatusCompleted:
		return true
	}
	return false
}

// CriteriaSatisfied checks a progress record against the enrollment's completion criteria.
func CriteriaSatisfied(c domain.CompletionCriteria, p *domain.Progress) bool {
	if p == nil {
		return false
	}
	if p.OverallProgress < c.RequiredProgress {
		return false
	}
	if c.RequiredAssignments && !progress.AllAssignmentsGraded(p) {
		return false
	}
	if c.RequiredQuizzes && !progress.AllQuizzesPassed(p) {
		return false
	}
	return true
}

// Complete marks e completed at now.
func Complete(e *domain.Enrollment, now time.Time) error {
	const op = "lifecycle.Complete"
	if e.IsCompleted || e.Status == domain.StatusCompleted {
		return domain.AlreadyCompleted(op, "enrollment %s is already completed", e.ID)
	}
	from := EffectiveStatus(e, now)
	if !CanTransition(from, domain.StatusCompleted) {
		return domain.InvalidInput(op, "cannot complete enrollment in status %s", from)
	}
	at := now.UTC()
	e.Status = domain.StatusCompleted
	e.IsCompleted = true
	e.CompletedOn = &at
	return nil
}

// DefaultExpiry is the expiry date for a new enrollment. Self-paced enrollments never expire.
func DefaultExpiry(selfPaced bool, explicit *time.Time, now time.Time, validityMonths int) *time.Time {
	if selfPaced {
		return nil
	}
	if explicit != nil {
		at := explicit.UTC()
		return &at
	}
	at := now.AddDate(0, validityMonths, 0).UTC()
	return &at
}

// ValidateExpiry enforces that non-self-paced enrollments carry an expiry date.
func ValidateExpiry(e *domain.Enrollment) error {
	if !e.IsSelfPaced && e.ExpiryDate == nil {
		return domain.InvalidInput("lifecycle.ValidateExpiry", "expiry date is required unless the enrollment is self-paced")
	}
	return nil
}
