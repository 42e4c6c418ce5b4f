package models

import (
	"time"

	"github.com/lib/pq"
)

// Meeting is either a stored meeting or, when Synthetic, an occurrence derived
// from a class schedule whose ID is "<classId>:<unix seconds>".
type Meeting struct {
	ID             string         `db:"id" json:"id"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	HostID         string         `db:"host_id" json:"host_id"`
	ClassID        *string        `db:"class_id" json:"class_id,omitempty"`
	ParticipantIDs pq.StringArray `db:"participant_ids" json:"participant_ids"`
	StartTime      time.Time      `db:"start_time" json:"start_time"`
	EndTime        time.Time      `db:"end_time" json:"end_time"`
	MeetingURL     *string        `db:"meeting_url" json:"meeting_url,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	Synthetic      bool           `db:"-" json:"synthetic"`
}

// MeetingFilter selects stored meetings for a user in a window.
type MeetingFilter struct {
	UserID string
	From   time.Time
	To     time.Time
}
