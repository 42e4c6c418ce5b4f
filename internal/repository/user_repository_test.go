package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userCols = []string{"id", "name", "email", "role", "avatar_url", "created_at", "updated_at"}

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userCols).AddRow("u1", "Ana", "ana@example.com", string(models.RoleStudent), nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email, role, avatar_url, created_at, updated_at FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("Ana@Example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "Ana@Example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Nil(t, user.AvatarURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT .* FROM users WHERE id = \\$1").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUserRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	role := models.RoleTeacher
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email, role, avatar_url, created_at, updated_at FROM users WHERE 1=1 AND role = $1 AND (LOWER(email) LIKE $2 OR LOWER(name) LIKE $2) ORDER BY name ASC LIMIT 20 OFFSET 20")).
		WithArgs(role, "%smith%").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("t1", "Jo Smith", "jo@example.com", "TEACHER", nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1 AND role = $1")).
		WithArgs(role, "%smith%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))

	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role, Search: " Smith ", Page: 2, PageSize: 500, SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 21, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.User{ID: "u1", Name: "Ana", Email: "ana@example.com", Role: models.RoleStudent})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepositoryCountByRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT role, COUNT(*) AS count FROM users GROUP BY role")).
		WillReturnRows(sqlmock.NewRows([]string{"role", "count"}).AddRow("STUDENT", 30).AddRow("TEACHER", 4))

	counts, err := repo.CountByRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30, counts[models.RoleStudent])
	assert.Equal(t, 0, counts[models.RoleAdmin])
}
