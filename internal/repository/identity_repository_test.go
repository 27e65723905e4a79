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

	"github.com/noah-isme/uni-course-api/internal/models"
)

func newIdentityRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func identityColumns() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "code", "email", "first_name", "last_name", "created_at", "updated_at"})
}

func TestIdentityRepositoryFindByCode(t *testing.T) {
	db, mock, cleanup := newIdentityRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code, email, first_name, last_name, created_at, updated_at FROM students WHERE code = $1 LIMIT 1")).
		WithArgs("S100").
		WillReturnRows(identityColumns().AddRow("id-1", "S100", "ana@example.edu", "Ana", "Silva", now, now))

	identity, err := repo.FindByCode(context.Background(), "S100")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.edu", identity.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepositoryFindByCodeNotFound(t *testing.T) {
	db, mock, cleanup := newIdentityRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	mock.ExpectQuery("SELECT id, code, email").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByCode(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newIdentityRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code, email, first_name, last_name, created_at, updated_at FROM students WHERE email = $1 LIMIT 1")).
		WithArgs("ana@example.edu").
		WillReturnRows(identityColumns().AddRow("id-1", "S100", "ana@example.edu", "Ana", "Silva", now, now))

	identity, err := repo.FindByEmail(context.Background(), "ana@example.edu")
	require.NoError(t, err)
	assert.Equal(t, "S100", identity.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepositoryUpsertByEmailInserts(t *testing.T) {
	db, mock, cleanup := newIdentityRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM students WHERE email = $1 LIMIT 1")).
		WithArgs("new@example.edu").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), "S500", "new@example.edu", "New", "Student", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	identity := &models.Identity{Code: "S500", Email: "new@example.edu", FirstName: "New", LastName: "Student"}
	err := repo.UpsertByEmail(context.Background(), nil, identity)
	require.NoError(t, err)
	assert.NotEmpty(t, identity.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepositoryUpsertByEmailUpdates(t *testing.T) {
	db, mock, cleanup := newIdentityRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM students WHERE email = $1 LIMIT 1")).
		WithArgs("ana@example.edu").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("id-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET code = $2, first_name = $3, last_name = $4, updated_at = $5 WHERE id = $1")).
		WithArgs("id-1", "S100", "Ana", "Souza", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	identity := &models.Identity{Code: "S100", Email: "ana@example.edu", FirstName: "Ana", LastName: "Souza"}
	err := repo.UpsertByEmail(context.Background(), nil, identity)
	require.NoError(t, err)
	assert.Equal(t, "id-1", identity.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
