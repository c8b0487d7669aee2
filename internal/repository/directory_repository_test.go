package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leave-decision-api/internal/models"
)

func TestAppointHeadGrantsAndRevokes(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDirectoryRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT head_employee_id FROM departments WHERE id = $1 FOR UPDATE")).
		WithArgs("dep-1").
		WillReturnRows(sqlmock.NewRows([]string{"head_employee_id"}).AddRow("emp-old"))
	mock.ExpectExec("UPDATE departments SET head_employee_id").WithArgs("dep-1", "emp-new").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_roles").WithArgs("emp-new", models.RoleDepartmentHead).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM departments WHERE head_employee_id = $1")).
		WithArgs("emp-old").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("DELETE FROM user_roles").WithArgs("emp-old", models.RoleDepartmentHead).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	newHead := "emp-new"
	previous, err := repo.AppointHead(context.Background(), "dep-1", &newHead)
	require.NoError(t, err)
	require.NotNil(t, previous)
	assert.Equal(t, "emp-old", *previous)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointHeadKeepsRoleWhileHeadingOtherDepartments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDirectoryRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("dep-1").
		WillReturnRows(sqlmock.NewRows([]string{"head_employee_id"}).AddRow("emp-old"))
	mock.ExpectExec("UPDATE departments SET head_employee_id").WithArgs("dep-1", nil).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT").WithArgs("emp-old").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	_, err := repo.AppointHead(context.Background(), "dep-1", nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointHeadUnknownDepartment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDirectoryRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("missing").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	head := "emp-1"
	_, err := repo.AppointHead(context.Background(), "missing", &head)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureServiceGetOrCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDirectoryRepository(db)

	mock.ExpectQuery("SELECT id FROM services WHERE name").WithArgs("Directorate").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("svc-1"))
	mock.ExpectQuery("SELECT id FROM services WHERE name").WithArgs("New Service").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO services").WithArgs(sqlmock.AnyArg(), "New Service").WillReturnResult(sqlmock.NewResult(1, 1))

	id, created, err := repo.EnsureService(context.Background(), "Directorate")
	require.NoError(t, err)
	assert.Equal(t, "svc-1", id)
	assert.False(t, created)

	id, created, err = repo.EnsureService(context.Background(), "New Service")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}
