package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/lms-api/internal/schedule"
)

// Class is a course taught by exactly one teacher.
type Class struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description"`
	TeacherID   string         `db:"teacher_id" json:"teacher_id"`
	Schedule    string         `db:"schedule" json:"schedule"`
	StartDate   time.Time      `db:"start_date" json:"start_date"`
	EndDate     time.Time      `db:"end_date" json:"end_date"`
	MaxStudents *int           `db:"max_students" json:"max_students,omitempty"`
	Tags        pq.StringArray `db:"tags" json:"tags"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// ClassDetail enriches Class with teacher and roster information.
type ClassDetail struct {
	Class
	TeacherName    string             `db:"teacher_name" json:"teacher_name"`
	EnrolledCount  int                `db:"enrolled_count" json:"enrolled_count"`
	ParsedSchedule *schedule.Schedule `db:"-" json:"parsed_schedule,omitempty"`
}

// HasCapacity reports whether another student fits.
func (c *ClassDetail) HasCapacity() bool {
	return c.MaxStudents == nil || c.EnrolledCount < *c.MaxStudents
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	TeacherID string
	StudentID string
	Search    string
	Tag       string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
