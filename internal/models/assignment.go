package models

import "time"

// AssignmentType classifies assignments.
type AssignmentType string

const (
	AssignmentEssay     AssignmentType = "essay"
	AssignmentExercise  AssignmentType = "exercise"
	AssignmentQuiz      AssignmentType = "quiz"
	AssignmentRecording AssignmentType = "recording"
	AssignmentOther     AssignmentType = "other"
)

// Assignment is work set by a class teacher.
type Assignment struct {
	ID             string         `db:"id" json:"id"`
	ClassID        string         `db:"class_id" json:"class_id"`
	TeacherID      string         `db:"teacher_id" json:"teacher_id"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	DueDate        time.Time      `db:"due_date" json:"due_date"`
	Points         int            `db:"points" json:"points"`
	AssignmentType AssignmentType `db:"assignment_type" json:"assignment_type"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// AssignmentStatus is the display status derived for a student.
type AssignmentStatus string

const (
	AssignmentStatusPending   AssignmentStatus = "pending"
	AssignmentStatusSubmitted AssignmentStatus = "submitted"
	AssignmentStatusCompleted AssignmentStatus = "completed"
	AssignmentStatusOverdue   AssignmentStatus = "overdue"
)

// AssignmentProgress is a student's view of an assignment.
type AssignmentProgress struct {
	Status        AssignmentStatus `json:"status"`
	IsLate        bool             `json:"is_late"`
	DaysRemaining int              `json:"days_remaining"`
}

// AssignmentDetail enriches Assignment with class info, files and, for
// students, derived progress.
type AssignmentDetail struct {
	Assignment
	ClassName       string              `db:"class_name" json:"class_name"`
	SubmissionCount int                 `db:"submission_count" json:"submission_count"`
	Progress        *AssignmentProgress `db:"-" json:"progress,omitempty"`
	Files           []AssignmentFile    `db:"-" json:"files,omitempty"`
}

// AssignmentFilter defines filter criteria for listing assignments.
type AssignmentFilter struct {
	ClassID   string
	TeacherID string
	StudentID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// AssignmentFile is an attachment stored in the file store.
type AssignmentFile struct {
	ID           string    `db:"id" json:"id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	FileName     string    `db:"file_name" json:"file_name"`
	StorageKey   string    `db:"storage_key" json:"-"`
	MimeType     string    `db:"mime_type" json:"mime_type"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	UploadedBy   string    `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	DownloadURL  string    `db:"-" json:"download_url,omitempty"`
}
