package dto

import (
	"time"

	"github.com/noah-isme/lms-api/internal/models"
)

// DashboardResponse is the per-role summary returned by GET /dashboard.
// Exactly one of the role sections is populated.
type DashboardResponse struct {
	Role        models.UserRole   `json:"role"`
	GeneratedAt time.Time         `json:"generated_at"`
	Admin       *AdminDashboard   `json:"admin,omitempty"`
	Teacher     *TeacherDashboard `json:"teacher,omitempty"`
	Student     *StudentDashboard `json:"student,omitempty"`
}

// AdminDashboard captures platform wide counts.
type AdminDashboard struct {
	UsersByRole     map[models.UserRole]int `json:"users_by_role"`
	Classes         int                     `json:"classes"`
	Assignments     int                     `json:"assignments"`
	PendingRequests int                     `json:"pending_requests"`
	System          models.SystemMetrics    `json:"system"`
}

// TeacherDashboard summarises a teacher's workload.
type TeacherDashboard struct {
	Classes             int              `json:"classes"`
	PendingRequests     int              `json:"pending_requests"`
	UngradedSubmissions int              `json:"ungraded_submissions"`
	UpcomingMeetings    []models.Meeting `json:"upcoming_meetings"`
}

// StudentDashboard summarises a student's classes and progress.
type StudentDashboard struct {
	EnrolledClasses  int                 `json:"enrolled_classes"`
	Assignments      AssignmentBuckets   `json:"assignments"`
	UpcomingMeetings []models.Meeting    `json:"upcoming_meetings"`
	DueSoon          []DueSoonAssignment `json:"due_soon"`
}

// AssignmentBuckets counts assignments by derived status.
type AssignmentBuckets struct {
	Pending   int `json:"pending"`
	Submitted int `json:"submitted"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
}

// DueSoonAssignment is an open assignment with its remaining days.
type DueSoonAssignment struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	ClassName     string    `json:"class_name"`
	DueDate       time.Time `json:"due_date"`
	DaysRemaining int       `json:"days_remaining"`
}
