package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
)

var classDetailCols = []string{"id", "name", "description", "teacher_id", "schedule", "start_date", "end_date", "max_students", "tags", "created_at", "updated_at", "teacher_name", "enrolled_count"}

func TestClassRepositoryListForStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Now()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(classDetailCols).
		AddRow("c1", "Algebra", "", "t1", "Mondays, 6:00 PM - 8:00 PM", start, start.AddDate(0, 3, 0), 30, "{math,evening}", now, now, "Jo", 12)
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes c JOIN users u ON u.id = c.teacher_id WHERE 1=1 AND EXISTS (SELECT 1 FROM enrollments en WHERE en.class_id = c.id AND en.student_id = $1) AND $2 = ANY(c.tags) ORDER BY c.created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("s1", "math").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM classes c JOIN users u")).
		WithArgs("s1", "math").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	classes, total, err := repo.List(context.Background(), models.ClassFilter{StudentID: "s1", Tag: "math"})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"math", "evening"}, []string(classes[0].Tags))
	assert.Equal(t, 30, *classes[0].MaxStudents)
	assert.True(t, classes[0].HasCapacity())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryCreateDefaultsTags(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec("INSERT INTO classes").WillReturnResult(sqlmock.NewResult(1, 1))

	class := &models.Class{Name: "Biology", TeacherID: "t1"}
	require.NoError(t, repo.Create(context.Background(), class))
	assert.NotEmpty(t, class.ID)
	assert.NotNil(t, class.Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryIsMember(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery("SELECT EXISTS").WithArgs("c1", "s1").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.IsMember(context.Background(), "c1", "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClassRepositoryCountForTeacher(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM classes WHERE teacher_id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.Count(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
