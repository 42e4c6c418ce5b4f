package service

import (
	"time"

	"github.com/noah-isme/lms-api/internal/models"
)

const day = 24 * time.Hour

// DeriveAssignmentStatus computes a student's view of an assignment from the
// assignment, their submission (nil when none) and the current time. A
// PENDING row without a grade counts as no submission.
func DeriveAssignmentStatus(a models.Assignment, sub *models.Submission, now time.Time) models.AssignmentProgress {
	if sub != nil && sub.Status == models.SubmissionPending && sub.Grade == nil {
		sub = nil
	}

	progress := models.AssignmentProgress{DaysRemaining: daysRemaining(a.DueDate, now)}
	switch {
	case sub != nil && (sub.Status == models.SubmissionGraded || sub.Grade != nil):
		progress.Status = models.AssignmentStatusCompleted
	case sub != nil:
		progress.Status = models.AssignmentStatusSubmitted
	case now.After(a.DueDate):
		progress.Status = models.AssignmentStatusOverdue
	default:
		progress.Status = models.AssignmentStatusPending
	}

	if sub != nil && sub.SubmittedAt != nil {
		progress.IsLate = sub.SubmittedAt.After(a.DueDate)
	}
	return progress
}

// IsLateSubmission reports whether submittedAt falls after due.
func IsLateSubmission(due time.Time, submittedAt *time.Time) bool {
	return submittedAt != nil && submittedAt.After(due)
}

func daysRemaining(due, now time.Time) int {
	left := due.Sub(now)
	if left <= 0 {
		return 0
	}
	days := int(left / day)
	if left%day != 0 {
		days++
	}
	return days
}
