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

const classDetailSelect = `SELECT c.id, c.name, c.description, c.teacher_id, c.schedule, c.start_date, c.end_date, c.max_students, c.tags, c.created_at, c.updated_at,
u.name AS teacher_name,
(SELECT COUNT(*) FROM enrollments e WHERE e.class_id = c.id) AS enrolled_count`

// ClassRepository handles persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes with teacher names, scoped by teacher or enrolled student.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	baseQuery := `FROM classes c JOIN users u ON u.id = c.teacher_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM enrollments en WHERE en.class_id = c.id AND en.student_id = $%d)", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.name) LIKE $%d OR LOWER(c.description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, likePattern(filter.Search))
	}
	if filter.Tag != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(c.tags)", len(args)+1))
		args = append(args, filter.Tag)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	order := sortClause(filter.SortBy, filter.SortOrder, map[string]string{
		"name":       "c.name",
		"start_date": "c.start_date",
		"created_at": "c.created_at",
	}, "c.created_at")
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s %s ORDER BY %s LIMIT %d OFFSET %d", classDetailSelect, baseQuery, order, limit, offset)
	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// ListForMember returns every class the user teaches or is enrolled in.
func (r *ClassRepository) ListForMember(ctx context.Context, userID string) ([]models.Class, error) {
	const query = `SELECT c.id, c.name, c.description, c.teacher_id, c.schedule, c.start_date, c.end_date, c.max_students, c.tags, c.created_at, c.updated_at
FROM classes c
WHERE c.teacher_id = $1 OR EXISTS (SELECT 1 FROM enrollments e WHERE e.class_id = c.id AND e.student_id = $1)
ORDER BY c.start_date`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, userID); err != nil {
		return nil, fmt.Errorf("list member classes: %w", err)
	}
	return classes, nil
}

// FindByID returns a class with teacher name and enrolment count.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	query := classDetailSelect + ` FROM classes c JOIN users u ON u.id = c.teacher_id WHERE c.id = $1`
	var class models.ClassDetail
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find class: %w", err)
	}
	return &class, nil
}

// IsMember reports whether the user teaches or is enrolled in the class.
func (r *ClassRepository) IsMember(ctx context.Context, classID, userID string) (bool, error) {
	const query = `SELECT EXISTS (
SELECT 1 FROM classes c WHERE c.id = $1 AND c.teacher_id = $2
UNION ALL
SELECT 1 FROM enrollments e WHERE e.class_id = $1 AND e.student_id = $2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, classID, userID); err != nil {
		return false, fmt.Errorf("check class membership: %w", err)
	}
	return ok, nil
}

// Count returns the number of classes, optionally for one teacher.
func (r *ClassRepository) Count(ctx context.Context, teacherID string) (int, error) {
	query := `SELECT COUNT(*) FROM classes`
	var args []interface{}
	if teacherID != "" {
		query += ` WHERE teacher_id = $1`
		args = append(args, teacherID)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count classes: %w", err)
	}
	return total, nil
}

// Create inserts a class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	if class.Tags == nil {
		class.Tags = []string{}
	}
	const query = `INSERT INTO classes (id, name, description, teacher_id, schedule, start_date, end_date, max_students, tags, created_at, updated_at)
VALUES (:id, :name, :description, :teacher_id, :schedule, :start_date, :end_date, :max_students, :tags, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies a class.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	if class.Tags == nil {
		class.Tags = []string{}
	}
	const query = `UPDATE classes SET name = :name, description = :description, teacher_id = :teacher_id, schedule = :schedule,
start_date = :start_date, end_date = :end_date, max_students = :max_students, tags = :tags, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class; enrolments, requests and assignments cascade.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}
