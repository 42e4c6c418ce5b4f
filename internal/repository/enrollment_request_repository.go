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

const enrollmentRequestSelect = `SELECT r.id, r.class_id, r.student_id, r.status, r.message, r.rejection_reason, r.decided_by, r.decided_at, r.created_at, r.updated_at,
c.name AS class_name, c.teacher_id, u.name AS student_name, u.email AS student_email
FROM enrollment_requests r
JOIN classes c ON c.id = r.class_id
JOIN users u ON u.id = r.student_id`

// EnrollmentRequestRepository persists enrollment requests.
type EnrollmentRequestRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRequestRepository constructs the repository.
func NewEnrollmentRequestRepository(db *sqlx.DB) *EnrollmentRequestRepository {
	return &EnrollmentRequestRepository{db: db}
}

// FindByID returns a request joined with class and student names.
func (r *EnrollmentRequestRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentRequestDetail, error) {
	var req models.EnrollmentRequestDetail
	if err := r.db.GetContext(ctx, &req, enrollmentRequestSelect+` WHERE r.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment request: %w", err)
	}
	return &req, nil
}

// HasOpen reports whether a pending or approved request exists for the pair.
func (r *EnrollmentRequestRepository) HasOpen(ctx context.Context, classID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollment_requests WHERE class_id = $1 AND student_id = $2 AND status IN ('pending', 'approved'))`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, classID, studentID); err != nil {
		return false, fmt.Errorf("check open enrollment request: %w", err)
	}
	return ok, nil
}

// List returns requests matching the filter, newest first.
func (r *EnrollmentRequestRepository) List(ctx context.Context, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequestDetail, int, error) {
	where := ` WHERE 1=1`
	var conditions []string
	var args []interface{}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("r.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("r.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	var requests []models.EnrollmentRequestDetail
	query := fmt.Sprintf("%s%s ORDER BY r.created_at DESC LIMIT %d OFFSET %d", enrollmentRequestSelect, where, limit, offset)
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollment requests: %w", err)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM enrollment_requests r JOIN classes c ON c.id = r.class_id` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollment requests: %w", err)
	}
	return requests, total, nil
}

// Create stores a pending request. The partial unique index turns a racing
// duplicate into ErrDuplicate.
func (r *EnrollmentRequestRepository) Create(ctx context.Context, req *models.EnrollmentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.Status = models.EnrollmentRequestPending
	req.CreatedAt = now
	req.UpdatedAt = now
	const query = `INSERT INTO enrollment_requests (id, class_id, student_id, status, message, created_at, updated_at)
VALUES (:id, :class_id, :student_id, :status, :message, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create enrollment request: %w", err)
	}
	return nil
}

// Approve marks a pending request approved and enrolls the student in one
// transaction. ErrStateChanged means the request was no longer pending.
func (r *EnrollmentRequestRepository) Approve(ctx context.Context, req *models.EnrollmentRequest, decidedBy string, decidedAt time.Time) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approve transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = decide(ctx, tx, req.ID, models.EnrollmentRequestApproved, nil, decidedBy, decidedAt); err != nil {
		return err
	}
	enrollment := &models.Enrollment{ClassID: req.ClassID, StudentID: req.StudentID, EnrolledAt: decidedAt}
	if err = insertEnrollment(ctx, tx, enrollment); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit approve: %w", err)
	}
	return nil
}

// Reject marks a pending request rejected with a reason.
func (r *EnrollmentRequestRepository) Reject(ctx context.Context, id, reason, decidedBy string, decidedAt time.Time) error {
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	return decide(ctx, r.db, id, models.EnrollmentRequestRejected, reasonPtr, decidedBy, decidedAt)
}

func decide(ctx context.Context, exec sqlx.ExecerContext, id string, status models.EnrollmentRequestStatus, reason *string, decidedBy string, decidedAt time.Time) error {
	const query = `UPDATE enrollment_requests SET status = $2, rejection_reason = $3, decided_by = $4, decided_at = $5, updated_at = $5
WHERE id = $1 AND status = 'pending'`
	res, err := exec.ExecContext(ctx, query, id, status, reason, decidedBy, decidedAt)
	if err != nil {
		return fmt.Errorf("update enrollment request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update enrollment request rows: %w", err)
	}
	if n == 0 {
		return ErrStateChanged
	}
	return nil
}
