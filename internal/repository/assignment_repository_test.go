package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
)

var assignmentDetailCols = []string{"id", "class_id", "teacher_id", "title", "description", "due_date", "points", "assignment_type", "created_at", "updated_at", "class_name", "submission_count"}

func TestAssignmentRepositoryListForStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)
	due := time.Date(2024, 1, 10, 23, 59, 0, 0, time.UTC)

	rows := sqlmock.NewRows(assignmentDetailCols).
		AddRow("a1", "c1", "t1", "Scales", "", due, 100, "exercise", due, due, "Piano", 3)
	mock.ExpectQuery(`EXISTS \(SELECT 1 FROM enrollments e WHERE e.class_id = a.class_id AND e.student_id = \$1\) ORDER BY a.due_date ASC LIMIT 20 OFFSET 0`).
		WithArgs("s1").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM assignments a`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.AssignmentFilter{StudentID: "s1", SortBy: "due_date", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Piano", items[0].ClassName)
	assert.Equal(t, 3, items[0].SubmissionCount)
	assert.Equal(t, models.AssignmentExercise, items[0].AssignmentType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(`WHERE a.id = \$1`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCreateFile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("INSERT INTO assignment_files").
		WithArgs(sqlmock.AnyArg(), "a1", "sheet.pdf", "assignments/a1/key.pdf", "application/pdf", int64(2048), "t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	file := &models.AssignmentFile{AssignmentID: "a1", FileName: "sheet.pdf", StorageKey: "assignments/a1/key.pdf", MimeType: "application/pdf", SizeBytes: 2048, UploadedBy: "t1"}
	require.NoError(t, repo.CreateFile(context.Background(), file))
	assert.NotEmpty(t, file.ID)
	assert.False(t, file.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
