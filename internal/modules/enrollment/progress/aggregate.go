// Package progress maintains the weighted course progress rollup for a student.
package progress

import (
	"math"

	"github.com/yungbote/enrollment-backend/internal/domain"
)

const (
	LessonWeight     = 50.0
	QuizWeight       = 30.0
	AssignmentWeight = 20.0
)

// Recompute re-derives OverallProgress and Meta from the lesson, quiz and assignment
// entries. It only reads the sub-lists, so calling it repeatedly yields the same result.
func Recompute(p *domain.Progress) {
	if p == nil {
		return
	}
	var meta domain.ProgressMeta

	for _, l := range p.LessonProgress {
		meta.TotalTimeSpent += l.TimeSpent
		if l.Status == domain.LessonCompleted {
			meta.CompletedLessons++
		}
	}

	quizScores := 0.0
	for _, q := range p.QuizProgress {
		quizScores += q.BestScore
		if q.Status == domain.QuizCompleted {
			meta.CompletedQuizzes++
		}
	}
	if n := len(p.QuizProgress); n > 0 {
		meta.AverageQuizScore = quizScores / float64(n)
	}

	assignmentScores := 0.0
	for _, a := range p.AssignmentProgress {
		assignmentScores += a.BestScore
		if a.Status == domain.AssignmentGraded {
			meta.CompletedAssignments++
		}
	}
	if n := len(p.AssignmentProgress); n > 0 {
		meta.AverageAssignmentScore = assignmentScores / float64(n)
	}

	overall := ratio(meta.CompletedLessons, len(p.LessonProgress))*LessonWeight +
		ratio(meta.CompletedQuizzes, len(p.QuizProgress))*QuizWeight +
		ratio(meta.CompletedAssignments, len(p.AssignmentProgress))*AssignmentWeight

	p.OverallProgress = clamp(int(math.Round(overall)))
	p.Meta = meta
}

func ratio(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// AllQuizzesPassed reports whether every tracked quiz is completed. No quizzes counts as passed.
func AllQuizzesPassed(p *domain.Progress) bool {
	if p == nil {
		return true
	}
	for _, q := range p.QuizProgress {
		if q.Status != domain.QuizCompleted {
			return false
		}
	}
	return true
}

// AllAssignmentsGraded reports whether every tracked assignment is graded.
func AllAssignmentsGraded(p *domain.Progress) bool {
	if p == nil {
		return true
	}
	for _, a := range p.AssignmentProgress {
		if a.Status != domain.AssignmentGraded {
			return false
		}
	}
	return true
}
