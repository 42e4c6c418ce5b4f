package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

const meetingColumns = `id, title, description, host_id, class_id, participant_ids, start_time, end_time, meeting_url, created_at`

// MeetingRepository persists standalone meetings.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository constructs the repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// ListForUser returns meetings the user hosts or attends that overlap the window.
func (r *MeetingRepository) ListForUser(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings
WHERE (host_id = $1 OR $1 = ANY(participant_ids)) AND end_time > $2 AND start_time < $3
ORDER BY start_time`
	var items []models.Meeting
	if err := r.db.SelectContext(ctx, &items, query, filter.UserID, filter.From, filter.To); err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return items, nil
}

// FindByID returns a stored meeting.
func (r *MeetingRepository) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	var m models.Meeting
	if err := r.db.GetContext(ctx, &m, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find meeting: %w", err)
	}
	return &m, nil
}

// Create inserts a meeting.
func (r *MeetingRepository) Create(ctx context.Context, m *models.Meeting) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.ParticipantIDs == nil {
		m.ParticipantIDs = []string{}
	}
	m.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO meetings (id, title, description, host_id, class_id, participant_ids, start_time, end_time, meeting_url, created_at)
VALUES (:id, :title, :description, :host_id, :class_id, :participant_ids, :start_time, :end_time, :meeting_url, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	return nil
}

// Delete removes a meeting.
func (r *MeetingRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM meetings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	return nil
}
