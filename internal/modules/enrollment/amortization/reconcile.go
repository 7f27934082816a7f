package amortization

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/yungbote/enrollment-backend/internal/domain"
)

// Reconcile marks pending installments overdue once their grace period has lapsed and
// re-derives MissedPayments and the schedule status. It returns a copy; s is not modified.
// A maxMissed of zero or less disables the defaulted state.
func Reconcile(s domain.EmiSchedule, now time.Time, maxMissed int) domain.EmiSchedule {
	out := s
	out.Installments = append([]domain.Installment(nil), s.Installments...)

	missed := 0
	settled := 0
	for i := range out.Installments {
		inst := &out.Installments[i]
		if inst.Status == domain.InstallmentPending && now.After(inst.DueDate.AddDate(0, 0, s.GracePeriodDays)) {
			inst.Status = domain.InstallmentOverdue
		}
		switch {
		case inst.Status == domain.InstallmentOverdue:
			missed++
		case inst.Status.Settled():
			settled++
		}
	}
	out.MissedPayments = missed

	switch {
	case len(out.Installments) > 0 && settled == len(out.Installments):
		out.Status = domain.EmiCompleted
	case maxMissed > 0 && missed >= maxMissed:
		out.Status = domain.EmiDefaulted
	default:
		out.Status = domain.EmiActive
	}
	return out
}

// ApplyPayment records installment number as paid or waived at the given time, then
// reconciles the schedule. Re-applying the same status keeps the first PaidAt.
func ApplyPayment(s domain.EmiSchedule, number int, status domain.InstallmentStatus, at time.Time, maxMissed int) (domain.EmiSchedule, error) {
	const op = "amortization.ApplyPayment"
	if status != domain.InstallmentPaid && status != domain.InstallmentWaived {
		return s, domain.InvalidInput(op, "installment status must be paid or waived, got %q", status)
	}
	idx := -1
	for i := range s.Installments {
		if s.Installments[i].InstallmentNumber == number {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s, domain.NotFound(op, "installment %d not found", number)
	}

	out := s
	out.Installments = append([]domain.Installment(nil), s.Installments...)
	inst := &out.Installments[idx]
	if inst.Status != status {
		inst.Status = status
		inst.PaidAt = nil
		if status == domain.InstallmentPaid {
			paidAt := at.UTC()
			inst.PaidAt = &paidAt
		}
	}
	return Reconcile(out, at, maxMissed), nil
}

// Outstanding sums the amounts of installments that are neither paid nor waived.
func Outstanding(s domain.EmiSchedule) decimal.Decimal {
	total := decimal.Zero
	for _, inst := range s.Installments {
		if !inst.Status.Settled() {
			total = total.Add(inst.Amount)
		}
	}
	return total
}

// NextDue returns the earliest unsettled installment, or nil when all are settled.
func NextDue(s domain.EmiSchedule) *domain.Installment {
	var next *domain.Installment
	for i := range s.Installments {
		inst := s.Installments[i]
		if inst.Status.Settled() {
			continue
		}
		if next == nil || inst.DueDate.Before(next.DueDate) {
			cp := inst
			next = &cp
		}
	}
	return next
}
