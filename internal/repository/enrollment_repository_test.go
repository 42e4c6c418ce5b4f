package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
)

const lockClassPattern = "SELECT max_students, (SELECT COUNT(*) FROM enrollments WHERE class_id = $1) AS enrolled FROM classes WHERE id = $1 FOR UPDATE"

func TestEnrollmentRepositoryEnroll(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockClassPattern)).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"max_students", "enrolled"}).AddRow(30, 29))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments (id, class_id, student_id, enrolled_at) VALUES ($1, $2, $3, $4)")).
		WithArgs(sqlmock.AnyArg(), "c1", "s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	enrollment := &models.Enrollment{ClassID: "c1", StudentID: "s1"}
	require.NoError(t, repo.Enroll(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollFull(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockClassPattern)).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"max_students", "enrolled"}).AddRow(2, 2))
	mock.ExpectRollback()

	err := repo.Enroll(context.Background(), &models.Enrollment{ClassID: "c1", StudentID: "s1"})
	assert.ErrorIs(t, err, ErrClassFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockClassPattern)).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"max_students", "enrolled"}).AddRow(nil, 5))
	mock.ExpectExec("INSERT INTO enrollments").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Enroll(context.Background(), &models.Enrollment{ClassID: "c1", StudentID: "s1"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE class_id = $1 AND student_id = $2")).
		WithArgs("c1", "s1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "c1", "s1"), sql.ErrNoRows)
}

func TestEnrollmentRepositoryListByClass(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	mock.ExpectQuery("FROM enrollments e JOIN users u").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_id", "student_id", "enrolled_at", "student_name", "student_email", "avatar_url"}).
			AddRow("e1", "c1", "s1", now, "Ana", "ana@example.com", nil))

	roster, err := repo.ListByClass(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "Ana", roster[0].StudentName)
}
