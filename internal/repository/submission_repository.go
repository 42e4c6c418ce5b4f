package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

const submissionColumns = `s.id, s.assignment_id, s.student_id, s.content, s.file_url, s.status, s.grade, s.feedback, s.submitted_at, s.graded_at, s.graded_by, s.created_at, s.updated_at`

const submissionDetailSelect = `SELECT ` + submissionColumns + `,
a.title AS assignment_title, a.class_id, c.teacher_id, a.points, a.due_date, u.name AS student_name
FROM submissions s
JOIN assignments a ON a.id = s.assignment_id
JOIN classes c ON c.id = a.class_id
JOIN users u ON u.id = s.student_id`

// SubmissionRepository persists submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Upsert stores the student's submission for an assignment. A second call for
// the same (assignment_id, student_id) overwrites content, file and time,
// resets the status to SUBMITTED and clears any previous grading.
func (r *SubmissionRepository) Upsert(ctx context.Context, sub *models.Submission) error {
	now := time.Now().UTC()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt == nil {
		sub.SubmittedAt = &now
	}
	sub.Status = models.SubmissionSubmitted
	sub.CreatedAt = now
	sub.UpdatedAt = now

	const query = `INSERT INTO submissions (id, assignment_id, student_id, content, file_url, status, submitted_at, created_at, updated_at)
VALUES (:id, :assignment_id, :student_id, :content, :file_url, :status, :submitted_at, :created_at, :updated_at)
ON CONFLICT (assignment_id, student_id) DO UPDATE SET
content = EXCLUDED.content, file_url = EXCLUDED.file_url, status = EXCLUDED.status, submitted_at = EXCLUDED.submitted_at,
grade = NULL, feedback = NULL, graded_at = NULL, graded_by = NULL, updated_at = EXCLUDED.updated_at
RETURNING id, created_at`

	rows, err := r.db.NamedQueryContext(ctx, query, sub)
	if err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&sub.ID, &sub.CreatedAt); err != nil {
			return fmt.Errorf("scan upserted submission: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("upsert submission rows: %w", err)
	}
	sub.Grade = nil
	sub.Feedback = nil
	sub.GradedAt = nil
	sub.GradedBy = nil
	return nil
}

// Grade stores the grade and feedback, marking the submission GRADED.
func (r *SubmissionRepository) Grade(ctx context.Context, id string, grade float64, feedback *string, gradedBy string, gradedAt time.Time) error {
	const query = `UPDATE submissions SET grade = $2, feedback = $3, status = 'GRADED', graded_at = $4, graded_by = $5, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, grade, feedback, gradedAt, gradedBy)
	if err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID returns a submission with its assignment context.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	var sub models.SubmissionDetail
	if err := r.db.GetContext(ctx, &sub, submissionDetailSelect+` WHERE s.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &sub, nil
}

// FindByAssignmentAndStudent returns the student's submission for an assignment.
func (r *SubmissionRepository) FindByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*models.SubmissionDetail, error) {
	var sub models.SubmissionDetail
	query := submissionDetailSelect + ` WHERE s.assignment_id = $1 AND s.student_id = $2`
	if err := r.db.GetContext(ctx, &sub, query, assignmentID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student submission: %w", err)
	}
	return &sub, nil
}

// List returns submissions matching the filter, most recent first.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error) {
	where := ` WHERE 1=1`
	var conditions []string
	var args []interface{}
	if filter.AssignmentID != "" {
		conditions = append(conditions, fmt.Sprintf("s.assignment_id = $%d", len(args)+1))
		args = append(args, filter.AssignmentID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("s.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("a.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	var items []models.SubmissionDetail
	query := fmt.Sprintf("%s%s ORDER BY s.submitted_at DESC NULLS LAST LIMIT %d OFFSET %d", submissionDetailSelect, where, limit, offset)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM submissions s JOIN assignments a ON a.id = s.assignment_id JOIN classes c ON c.id = a.class_id` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}
	return items, total, nil
}

// ListByStudent returns every submission of a student keyed by assignment.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentID string) (map[string]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions s WHERE s.student_id = $1`
	var items []models.Submission
	if err := r.db.SelectContext(ctx, &items, query, studentID); err != nil {
		return nil, fmt.Errorf("list student submissions: %w", err)
	}
	out := make(map[string]models.Submission, len(items))
	for _, s := range items {
		out[s.AssignmentID] = s
	}
	return out, nil
}

// ListByClass returns every submission to the assignments of a class.
func (r *SubmissionRepository) ListByClass(ctx context.Context, classID string) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions s JOIN assignments a ON a.id = s.assignment_id WHERE a.class_id = $1`
	var items []models.Submission
	if err := r.db.SelectContext(ctx, &items, query, classID); err != nil {
		return nil, fmt.Errorf("list class submissions: %w", err)
	}
	return items, nil
}

// CountUngraded returns submitted but ungraded work in the teacher's classes.
func (r *SubmissionRepository) CountUngraded(ctx context.Context, teacherID string) (int, error) {
	const query = `SELECT COUNT(*) FROM submissions s JOIN assignments a ON a.id = s.assignment_id JOIN classes c ON c.id = a.class_id
WHERE c.teacher_id = $1 AND s.status = 'SUBMITTED'`
	var total int
	if err := r.db.GetContext(ctx, &total, query, teacherID); err != nil {
		return 0, fmt.Errorf("count ungraded submissions: %w", err)
	}
	return total, nil
}
