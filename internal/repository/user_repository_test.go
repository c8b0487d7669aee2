package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leave-decision-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userRowColumns = []string{"id", "email", "password_hash", "full_name", "active", "last_login", "created_at", "updated_at"}

func TestFindByEmailLoadsRoles(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userRowColumns).AddRow("1", "user@sch.gr", "hash", "User", true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("user@sch.gr").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT user_id, role FROM user_roles WHERE user_id IN").
		WithArgs("1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "role"}).
			AddRow("1", string(models.RoleEmployee)).
			AddRow("1", string(models.RoleLeaveOfficer)))

	user, err := repo.FindByEmail(context.Background(), "user@sch.gr")
	require.NoError(t, err)
	assert.Equal(t, "user@sch.gr", user.Email)
	assert.Equal(t, []models.UserRole{models.RoleEmployee, models.RoleLeaveOfficer}, user.Roles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE id = ").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", UserID: "u1", Token: "token", ExpiresAt: time.Now(), CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersByRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	role := models.RoleLeaveOfficer
	listRows := sqlmock.NewRows(userRowColumns).AddRow("1", "a@sch.gr", "hash", "A", true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE 1=1 AND EXISTS (SELECT 1 FROM user_roles ur WHERE ur.user_id = users.id AND ur.role = $1) ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(role).
		WillReturnRows(listRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1 AND EXISTS")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("FROM user_roles").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "role"}).AddRow("1", string(role)))

	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, []models.UserRole{role}, users[0].Roles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithEmployee(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO user_roles").WithArgs(sqlmock.AnyArg(), models.RoleEmployee).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO employees").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user := &models.User{Email: "new@sch.gr", FullName: "New User", Active: true, Roles: []models.UserRole{models.RoleEmployee}}
	employee := &models.Employee{Name: "New", Surname: "User", Gender: models.GenderFemale}
	require.NoError(t, repo.CreateWithEmployee(context.Background(), user, employee))
	require.NotEmpty(t, user.ID)
	require.NotNil(t, employee.UserID)
	assert.Equal(t, user.ID, *employee.UserID)
	assert.Equal(t, 24, employee.RegularLeaveDays)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRolesRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM user_roles").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO user_roles").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.ReplaceRoles(context.Background(), "u1", []models.UserRole{models.RoleAdministrator})
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}
