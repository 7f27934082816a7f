// Package amortization computes EMI installment schedules and tracks payments against them.
package amortization

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yungbote/enrollment-backend/internal/domain"
)

type Config struct {
	TotalAmount          decimal.Decimal
	DownPayment          decimal.Decimal
	ProcessingFee        decimal.Decimal
	NumberOfInstallments int
	// InterestRate is the annual rate in percent.
	InterestRate    float64
	StartDate       time.Time
	GracePeriodDays int
}

func (c Config) validate() error {
	const op = "amortization.ComputeSchedule"
	switch {
	case c.NumberOfInstallments < 1:
		return domain.InvalidInput(op, "number of installments must be at least 1")
	case c.TotalAmount.IsNegative():
		return domain.InvalidInput(op, "total amount must not be negative")
	case c.DownPayment.IsNegative():
		return domain.InvalidInput(op, "down payment must not be negative")
	case c.ProcessingFee.IsNegative():
		return domain.InvalidInput(op, "processing fee must not be negative")
	case c.InterestRate < 0 || math.IsNaN(c.InterestRate) || math.IsInf(c.InterestRate, 0):
		return domain.InvalidInput(op, "interest rate must be a non-negative number")
	case c.GracePeriodDays < 0:
		return domain.InvalidInput(op, "grace period must not be negative")
	case c.DownPayment.GreaterThan(c.TotalAmount):
		return domain.InvalidInput(op, "down payment exceeds total amount")
	}
	return nil
}

// ComputeSchedule builds the installment plan for cfg.
//
// Each installment carries the same amount rounded to two places; the rounded sum may
// differ from the principal by at most half a cent per installment and the difference is
// not redistributed.
func ComputeSchedule(cfg Config) (domain.EmiSchedule, error) {
	if err := cfg.validate(); err != nil {
		return domain.EmiSchedule{}, err
	}
	n := cfg.NumberOfInstallments
	principal := cfg.TotalAmount.Sub(cfg.DownPayment).InexactFloat64()
	amount := decimal.NewFromFloat(MonthlyAmount(principal, cfg.InterestRate, n)).Round(2)

	installments := make([]domain.Installment, n)
	for i := 0; i < n; i++ {
		installments[i] = domain.Installment{
			InstallmentNumber: i + 1,
			Amount:            amount,
			DueDate:           cfg.StartDate.AddDate(0, i+1, 0),
			Status:            domain.InstallmentPending,
		}
	}

	return domain.EmiSchedule{
		TotalAmount:          cfg.TotalAmount,
		DownPayment:          cfg.DownPayment,
		ProcessingFee:        cfg.ProcessingFee,
		NumberOfInstallments: n,
		StartDate:            cfg.StartDate,
		InterestRate:         cfg.InterestRate,
		GracePeriodDays:      cfg.GracePeriodDays,
		Installments:         installments,
		Status:               domain.EmiActive,
		MissedPayments:       0,
	}, nil
}

// MonthlyAmount is the unrounded level payment for principal over n months at an
// annual percentage rate.
func MonthlyAmount(principal, annualRate float64, n int) float64 {
	if n < 1 {
		return 0
	}
	r := annualRate / 100 / 12
	if r == 0 {
		return principal / float64(n)
	}
	growth := math.Pow(1+r, float64(n))
	return principal * r * growth / (growth - 1)
}
