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

// EnrollmentRepository handles persistence for class rosters.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs a new repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListByClass returns the roster of a class ordered by student name.
func (r *EnrollmentRepository) ListByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.class_id, e.student_id, e.enrolled_at, u.name AS student_name, u.email AS student_email, u.avatar_url
FROM enrollments e JOIN users u ON u.id = e.student_id
WHERE e.class_id = $1 ORDER BY u.name`
	var roster []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &roster, query, classID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return roster, nil
}

// Exists reports whether the student is enrolled in the class.
func (r *EnrollmentRepository) Exists(ctx context.Context, classID, studentID string) (bool, error) {
	var ok bool
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE class_id = $1 AND student_id = $2)`
	if err := r.db.GetContext(ctx, &ok, query, classID, studentID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return ok, nil
}

// Enroll adds a student to a class, enforcing max_students under a row lock
// on the class.
func (r *EnrollmentRepository) Enroll(ctx context.Context, enrollment *models.Enrollment) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertEnrollment(ctx, tx, enrollment); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// Delete removes a student from a class.
func (r *EnrollmentRepository) Delete(ctx context.Context, classID, studentID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE class_id = $1 AND student_id = $2`, classID, studentID)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// insertEnrollment locks the class row, checks capacity and inserts the
// enrollment inside tx.
func insertEnrollment(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	var capacity struct {
		MaxStudents *int `db:"max_students"`
		Enrolled    int  `db:"enrolled"`
	}
	const lockQuery = `SELECT max_students, (SELECT COUNT(*) FROM enrollments WHERE class_id = $1) AS enrolled FROM classes WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &capacity, lockQuery, enrollment.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock class: %w", err)
	}
	if capacity.MaxStudents != nil && capacity.Enrolled >= *capacity.MaxStudents {
		return ErrClassFull
	}

	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const insertQuery = `INSERT INTO enrollments (id, class_id, student_id, enrolled_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, insertQuery, enrollment.ID, enrollment.ClassID, enrollment.StudentID, enrollment.EnrolledAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}
