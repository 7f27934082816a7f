package progress

import (
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/enrollment-backend/internal/domain"
)

// ApplyLessonEvent creates or updates the lesson entry. Time spent accumulates across
// events and a completed status stamps CompletedAt once.
func ApplyLessonEvent(p *domain.Progress, lessonID uuid.UUID, status domain.LessonStatus, timeSpent int64, now time.Time) error {
	const op = "progress.ApplyLessonEvent"
	if lessonID == uuid.Nil {
		return domain.InvalidInput(op, "lesson id is required")
	}
	if !status.Valid() {
		return domain.InvalidInput(op, "invalid lesson status %q", status)
	}
	if timeSpent < 0 {
		return domain.InvalidInput(op, "time spent must not be negative")
	}
	now = now.UTC()

	idx := -1
	for i := range p.LessonProgress {
		if p.LessonProgress[i].LessonID == lessonID {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.LessonProgress = append(p.LessonProgress, domain.LessonEntry{LessonID: lessonID})
		idx = len(p.LessonProgress) - 1
	}
	entry := &p.LessonProgress[idx]
	entry.Status = status
	entry.TimeSpent += timeSpent
	entry.LastAccessed = now
	if status == domain.LessonCompleted && entry.CompletedAt == nil {
		entry.CompletedAt = &now
	}

	p.LastAccessed = now
	Recompute(p)
	return nil
}

// ApplyQuizAttempt appends an attempt with the next attempt number. A quiz that has been
// passed once stays completed.
func ApplyQuizAttempt(p *domain.Progress, quizID uuid.UUID, attempt domain.QuizAttempt) error {
	const op = "progress.ApplyQuizAttempt"
	if quizID == uuid.Nil {
		return domain.InvalidInput(op, "quiz id is required")
	}
	if attempt.Score < 0 || attempt.PassingScore < 0 {
		return domain.InvalidInput(op, "scores must not be negative")
	}

	idx := -1
	for i := range p.QuizProgress {
		if p.QuizProgress[i].QuizID == quizID {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.QuizProgress = append(p.QuizProgress, domain.QuizEntry{QuizID: quizID, Status: domain.QuizNotStarted})
		idx = len(p.QuizProgress) - 1
	}
	entry := &p.QuizProgress[idx]

	attempt.AttemptNumber = len(entry.Attempts) + 1
	entry.Attempts = append(entry.Attempts, attempt)
	if len(entry.Attempts) == 1 || attempt.Score > entry.BestScore {
		entry.BestScore = attempt.Score
	}
	if attempt.Score >= attempt.PassingScore {
		entry.Status = domain.QuizCompleted
	} else if entry.Status != domain.QuizCompleted {
		entry.Status = domain.QuizFailed
	}

	if attempt.CompletedAt != nil {
		p.LastAccessed = attempt.CompletedAt.UTC()
	} else if !attempt.StartedAt.IsZero() {
		p.LastAccessed = attempt.StartedAt.UTC()
	}
	Recompute(p)
	return nil
}

// ApplyAssignmentSubmission appends a submission. A scored submission grades the entry;
// an unscored one marks it submitted unless it was already graded.
func ApplyAssignmentSubmission(p *domain.Progress, assignmentID uuid.UUID, sub domain.AssignmentSubmission) error {
	const op = "progress.ApplyAssignmentSubmission"
	if assignmentID == uuid.Nil {
		return domain.InvalidInput(op, "assignment id is required")
	}
	if sub.Score != nil && *sub.Score < 0 {
		return domain.InvalidInput(op, "score must not be negative")
	}

	idx := -1
	for i := range p.AssignmentProgress {
		if p.AssignmentProgress[i].AssignmentID == assignmentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.AssignmentProgress = append(p.AssignmentProgress, domain.AssignmentEntry{AssignmentID: assignmentID, Status: domain.AssignmentNotStarted})
		idx = len(p.AssignmentProgress) - 1
	}
	entry := &p.AssignmentProgress[idx]

	sub.SubmissionNumber = len(entry.Submissions) + 1
	if sub.Score != nil && sub.GradedAt == nil {
		gradedAt := sub.SubmittedAt
		sub.GradedAt = &gradedAt
	}
	entry.Submissions = append(entry.Submissions, sub)
	if sub.Score != nil {
		if *sub.Score > entry.BestScore {
			entry.BestScore = *sub.Score
		}
		entry.Status = domain.AssignmentGraded
	} else if entry.Status != domain.AssignmentGraded {
		entry.Status = domain.AssignmentSubmitted
	}

	if !sub.SubmittedAt.IsZero() {
		p.LastAccessed = sub.SubmittedAt.UTC()
	}
	Recompute(p)
	return nil
}

// GradeAssignment scores an existing submission.
func GradeAssignment(p *domain.Progress, assignmentID uuid.UUID, submissionNumber int, score float64, feedback string, now time.Time) error {
	const op = "progress.GradeAssignment"
	if score < 0 {
		return domain.InvalidInput(op, "score must not be negative")
	}
	var entry *domain.AssignmentEntry
	for i := range p.AssignmentProgress {
		if p.AssignmentProgress[i].AssignmentID == assignmentID {
			entry = &p.AssignmentProgress[i]
			break
		}
	}
	if entry == nil {
		return domain.NotFound(op, "assignment %s has no submissions", assignmentID)
	}
	var sub *domain.AssignmentSubmission
	for i := range entry.Submissions {
		if entry.Submissions[i].SubmissionNumber == submissionNumber {
			sub = &entry.Submissions[i]
			break
		}
	}
	if sub == nil {
		return domain.NotFound(op, "submission %d not found", submissionNumber)
	}

	now = now.UTC()
	s := score
	sub.Score = &s
	sub.Feedback = feedback
	sub.GradedAt = &now
	if score > entry.BestScore {
		entry.BestScore = score
	}
	entry.Status = domain.AssignmentGraded

	p.LastAccessed = now
	Recompute(p)
	return nil
}
