package models

import "time"

// Enrollment links one student to one class.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	ClassID    string    `db:"class_id" json:"class_id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentDetail enriches Enrollment with student info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string  `db:"student_name" json:"student_name"`
	StudentEmail string  `db:"student_email" json:"student_email"`
	AvatarURL    *string `db:"avatar_url" json:"avatar_url,omitempty"`
}

// EnrollmentRequestStatus is the state of a student initiated request.
type EnrollmentRequestStatus string

const (
	EnrollmentRequestPending  EnrollmentRequestStatus = "pending"
	EnrollmentRequestApproved EnrollmentRequestStatus = "approved"
	EnrollmentRequestRejected EnrollmentRequestStatus = "rejected"
)

// EnrollmentRequest is a student's petition to join a class.
type EnrollmentRequest struct {
	ID              string                  `db:"id" json:"id"`
	ClassID         string                  `db:"class_id" json:"class_id"`
	StudentID       string                  `db:"student_id" json:"student_id"`
	Status          EnrollmentRequestStatus `db:"status" json:"status"`
	Message         string                  `db:"message" json:"message"`
	RejectionReason *string                 `db:"rejection_reason" json:"rejection_reason,omitempty"`
	DecidedBy       *string                 `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt       *time.Time              `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt       time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time               `db:"updated_at" json:"updated_at"`
}

// EnrollmentRequestDetail joins class and student names.
type EnrollmentRequestDetail struct {
	EnrollmentRequest
	ClassName    string `db:"class_name" json:"class_name"`
	TeacherID    string `db:"teacher_id" json:"teacher_id"`
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
}

// EnrollmentRequestFilter scopes a request listing.
type EnrollmentRequestFilter struct {
	ClassID   string
	StudentID string
	TeacherID string
	Status    EnrollmentRequestStatus
	Page      int
	PageSize  int
}
