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

const assignmentDetailSelect = `SELECT a.id, a.class_id, a.teacher_id, a.title, a.description, a.due_date, a.points, a.assignment_type, a.created_at, a.updated_at,
c.name AS class_name,
(SELECT COUNT(*) FROM submissions s WHERE s.assignment_id = a.id AND s.status <> 'PENDING') AS submission_count`

// AssignmentRepository persists assignments and their attachments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// List returns assignments filtered by class, teacher or enrolled student.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	baseQuery := `FROM assignments a JOIN classes c ON c.id = a.class_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("a.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM enrollments e WHERE e.class_id = a.class_id AND e.student_id = $%d)", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(a.title) LIKE $%d", len(args)+1))
		args = append(args, likePattern(filter.Search))
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	order := sortClause(filter.SortBy, filter.SortOrder, map[string]string{
		"due_date":   "a.due_date",
		"title":      "a.title",
		"created_at": "a.created_at",
	}, "a.due_date")
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	var items []models.AssignmentDetail
	query := fmt.Sprintf("%s %s ORDER BY %s LIMIT %d OFFSET %d", assignmentDetailSelect, baseQuery, order, limit, offset)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}
	return items, total, nil
}

// ListByClass returns every assignment of a class ordered by due date.
func (r *AssignmentRepository) ListByClass(ctx context.Context, classID string) ([]models.Assignment, error) {
	const query = `SELECT id, class_id, teacher_id, title, description, due_date, points, assignment_type, created_at, updated_at
FROM assignments WHERE class_id = $1 ORDER BY due_date, title`
	var items []models.Assignment
	if err := r.db.SelectContext(ctx, &items, query, classID); err != nil {
		return nil, fmt.Errorf("list class assignments: %w", err)
	}
	return items, nil
}

// FindByID returns an assignment with its class name.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	var item models.AssignmentDetail
	query := assignmentDetailSelect + ` FROM assignments a JOIN classes c ON c.id = a.class_id WHERE a.id = $1`
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &item, nil
}

// Create inserts an assignment.
func (r *AssignmentRepository) Create(ctx context.Context, a *models.Assignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	const query = `INSERT INTO assignments (id, class_id, teacher_id, title, description, due_date, points, assignment_type, created_at, updated_at)
VALUES (:id, :class_id, :teacher_id, :title, :description, :due_date, :points, :assignment_type, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Update modifies an assignment.
func (r *AssignmentRepository) Update(ctx context.Context, a *models.Assignment) error {
	a.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignments SET title = :title, description = :description, due_date = :due_date, points = :points,
assignment_type = :assignment_type, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment; submissions and file rows cascade.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// Count returns the number of assignments.
func (r *AssignmentRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM assignments`); err != nil {
		return 0, fmt.Errorf("count assignments: %w", err)
	}
	return total, nil
}

// CreateFile records an uploaded attachment.
func (r *AssignmentRepository) CreateFile(ctx context.Context, f *models.AssignmentFile) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assignment_files (id, assignment_id, file_name, storage_key, mime_type, size_bytes, uploaded_by, created_at)
VALUES (:id, :assignment_id, :file_name, :storage_key, :mime_type, :size_bytes, :uploaded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, f); err != nil {
		return fmt.Errorf("create assignment file: %w", err)
	}
	return nil
}

// FindFile returns an attachment by ID.
func (r *AssignmentRepository) FindFile(ctx context.Context, id string) (*models.AssignmentFile, error) {
	const query = `SELECT id, assignment_id, file_name, storage_key, mime_type, size_bytes, uploaded_by, created_at FROM assignment_files WHERE id = $1`
	var f models.AssignmentFile
	if err := r.db.GetContext(ctx, &f, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment file: %w", err)
	}
	return &f, nil
}

// ListFiles returns the attachments of an assignment.
func (r *AssignmentRepository) ListFiles(ctx context.Context, assignmentID string) ([]models.AssignmentFile, error) {
	const query = `SELECT id, assignment_id, file_name, storage_key, mime_type, size_bytes, uploaded_by, created_at
FROM assignment_files WHERE assignment_id = $1 ORDER BY created_at`
	var files []models.AssignmentFile
	if err := r.db.SelectContext(ctx, &files, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list assignment files: %w", err)
	}
	return files, nil
}
