package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"
	InstallmentOverdue InstallmentStatus = "overdue"
	InstallmentWaived  InstallmentStatus = "waived"
)

func (s InstallmentStatus) Valid() bool {
	switch s {
	case InstallmentPending, InstallmentPaid, InstallmentOverdue, InstallmentWaived:
		return true
	}
	return false
}

// Settled reports whether the installment no longer needs payment.
func (s InstallmentStatus) Settled() bool {
	return s == InstallmentPaid || s == InstallmentWaived
}

type EmiStatus string

const (
	EmiActive    EmiStatus = "active"
	EmiCompleted EmiStatus = "completed"
	EmiDefaulted EmiStatus = "defaulted"
)

type Installment struct {
	InstallmentNumber int               `json:"installment_number"`
	Amount            decimal.Decimal   `json:"amount"`
	DueDate           time.Time         `json:"due_date"`
	Status            InstallmentStatus `json:"status"`
	PaidAt            *time.Time        `json:"paid_at,omitempty"`
}

// EmiSchedule is persisted as a JSON document on the owning enrollment.
type EmiSchedule struct {
	TotalAmount          decimal.Decimal `json:"total_amount"`
	DownPayment          decimal.Decimal `json:"down_payment"`
	ProcessingFee        decimal.Decimal `json:"processing_fee"`
	NumberOfInstallments int             `json:"number_of_installments"`
	StartDate            time.Time       `json:"start_date"`
	InterestRate         float64         `json:"interest_rate"`
	GracePeriodDays      int             `json:"grace_period_days"`
	Installments         []Installment   `json:"installments"`
	Status               EmiStatus       `json:"status"`
	MissedPayments       int             `json:"missed_payments"`
}
