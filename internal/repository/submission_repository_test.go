package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
)

func TestSubmissionRepositoryUpsertUsesNaturalKey(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	created := time.Date(2024, 1, 11, 8, 0, 0, 0, time.UTC)
	first := time.Date(2024, 1, 11, 8, 0, 0, 0, time.UTC)
	second := time.Date(2024, 1, 12, 9, 30, 0, 0, time.UTC)
	upsert := regexp.QuoteMeta("ON CONFLICT (assignment_id, student_id) DO UPDATE SET") + ".*" + regexp.QuoteMeta("grade = NULL, feedback = NULL, graded_at = NULL, graded_by = NULL")

	mock.ExpectQuery(upsert).
		WithArgs(sqlmock.AnyArg(), "a1", "s1", "draft", nil, models.SubmissionSubmitted, first, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("sub-1", created))
	mock.ExpectQuery(upsert).
		WithArgs(sqlmock.AnyArg(), "a1", "s1", "final", nil, models.SubmissionSubmitted, second, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("sub-1", created))

	a := &models.Submission{AssignmentID: "a1", StudentID: "s1", Content: "draft", SubmittedAt: &first}
	require.NoError(t, repo.Upsert(context.Background(), a))
	b := &models.Submission{AssignmentID: "a1", StudentID: "s1", Content: "final", SubmittedAt: &second}
	require.NoError(t, repo.Upsert(context.Background(), b))

	assert.Equal(t, "sub-1", a.ID)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, created, b.CreatedAt)
	assert.Equal(t, models.SubmissionSubmitted, b.Status)
	assert.Nil(t, b.Grade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryGrade(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	gradedAt := time.Now().UTC()
	feedback := "well argued"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET grade = $2, feedback = $3, status = 'GRADED', graded_at = $4, graded_by = $5, updated_at = $4 WHERE id = $1")).
		WithArgs("sub-1", 85.0, &feedback, gradedAt, "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE submissions").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Grade(context.Background(), "sub-1", 85, &feedback, "t1", gradedAt))
	assert.ErrorIs(t, repo.Grade(context.Background(), "missing", 1, nil, "t1", gradedAt), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	now := time.Now()
	cols := []string{"id", "assignment_id", "student_id", "content", "file_url", "status", "grade", "feedback", "submitted_at", "graded_at", "graded_by", "created_at", "updated_at"}
	mock.ExpectQuery("FROM submissions s WHERE s.student_id = \\$1").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("sub-1", "a1", "s1", "text", nil, "GRADED", "85.00", nil, now, now, "t1", now, now).
			AddRow("sub-2", "a2", "s1", "text", nil, "SUBMITTED", nil, nil, now, nil, nil, now, now))

	subs, err := repo.ListByStudent(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.NotNil(t, subs["a1"].Grade)
	assert.InDelta(t, 85.0, *subs["a1"].Grade, 0.001)
	assert.Nil(t, subs["a2"].Grade)
}
