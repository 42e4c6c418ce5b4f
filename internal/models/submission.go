package models

import "time"

// SubmissionStatus is the stored state of a submission row.
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "PENDING"
	SubmissionSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionGraded    SubmissionStatus = "GRADED"
)

// Submission is the single row a student holds per assignment.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	AssignmentID string           `db:"assignment_id" json:"assignment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	Content      string           `db:"content" json:"content"`
	FileURL      *string          `db:"file_url" json:"file_url,omitempty"`
	Status       SubmissionStatus `db:"status" json:"status"`
	Grade        *float64         `db:"grade" json:"grade,omitempty"`
	Feedback     *string          `db:"feedback" json:"feedback,omitempty"`
	SubmittedAt  *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	GradedAt     *time.Time       `db:"graded_at" json:"graded_at,omitempty"`
	GradedBy     *string          `db:"graded_by" json:"graded_by,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// SubmissionDetail joins the assignment and student a submission belongs to.
type SubmissionDetail struct {
	Submission
	AssignmentTitle string    `db:"assignment_title" json:"assignment_title"`
	ClassID         string    `db:"class_id" json:"class_id"`
	TeacherID       string    `db:"teacher_id" json:"teacher_id"`
	Points          int       `db:"points" json:"points"`
	DueDate         time.Time `db:"due_date" json:"due_date"`
	StudentName     string    `db:"student_name" json:"student_name"`
	IsLate          bool      `db:"-" json:"is_late"`
}

// SubmissionFilter scopes a submission listing.
type SubmissionFilter struct {
	AssignmentID string
	StudentID    string
	ClassID      string
	TeacherID    string
	Status       SubmissionStatus
	Page         int
	PageSize     int
}
