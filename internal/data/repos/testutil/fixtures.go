package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	types "github.com/yungbote/enrollment-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, role string) *types.User {
	tb.Helper()
	id := uuid.New()
	u := &types.User{
		ID:       id,
		FullName: "Test User",
		Email:    fmt.Sprintf("%s@example.com", id.String()[:8]),
		Role:     role,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, videos int, minBatch int) *types.Course {
	tb.Helper()
	urls := make([]string, 0, videos)
	for i := 0; i < videos; i++ {
		urls = append(urls, fmt.Sprintf("https://cdn.example.com/videos/%d.mp4", i+1))
	}
	c := &types.Course{
		ID:               uuid.New(),
		Title:            "course",
		VideoContentURLs: urls,
		MinBatchSize:     minBatch,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

// SeedEnrollment inserts an active individual enrollment; mutate adjusts it before insert.
func SeedEnrollment(tb testing.TB, ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID, mutate func(e *types.Enrollment)) *types.Enrollment {
	tb.Helper()
	now := time.Now().UTC()
	expiry := now.AddDate(1, 0, 0)
	e := &types.Enrollment{
		StudentID:          studentID,
		CourseID:           courseID,
		EnrollmentType:     types.EnrollmentIndividual,
		BatchSize:          1,
		PaymentStatus:      types.PaymentCompleted,
		Status:             types.StatusActive,
		ExpiryDate:         &expiry,
		EnrollmentDate:     now,
		PaymentType:        types.PaymentTypeFull,
		LearningPath:       types.LearningPathSequential,
		CompletionCriteria: types.DefaultCompletionCriteria(),
		PaymentDetails: types.PaymentDetails{
			Amount:   decimal.NewFromInt(1000),
			Currency: "INR",
		},
	}
	if mutate != nil {
		mutate(e)
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed enrollment: %v", err)
	}
	return e
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }

func PtrInt(v int) *int { return &v }

func PtrBool(v bool) *bool { return &v }
