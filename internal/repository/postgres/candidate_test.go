// internal/repository/postgres/candidate_test.go
package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruitsync/internal/common/errors"
	"recruitsync/internal/models"
)

var candidateTestColumns = []string{"id", "number", "name", "email", "status", "status_comment", "contact_external_id"}

// ==========================================
// CANDIDATE REPOSITORY TESTS
// ==========================================

func TestCandidateRepository_FindByNumber(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM candidates WHERE number = \$1`).
		WithArgs("C-100").
		WillReturnRows(sqlmock.NewRows(candidateTestColumns).
			AddRow("cand-1", "C-100", "Ada Lovelace", "ada@example.org", "active", nil, nil))

	repo := NewCandidateRepository(db)
	c, err := repo.FindByNumber(context.Background(), "C-100")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, models.CandidateStatusActive, c.Status)
	assert.Empty(t, c.ContactExternalID)
}

func TestCandidateRepository_FindByNumber_MissIsNilNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM candidates WHERE number = \$1`).
		WithArgs("C-999").
		WillReturnRows(sqlmock.NewRows(candidateTestColumns))

	repo := NewCandidateRepository(db)
	c, err := repo.FindByNumber(context.Background(), "C-999")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestCandidateRepository_UpdateStatusPersistsAuditComment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE candidates SET status = \$1, status_comment = \$2 WHERE id = \$3`).
		WithArgs("employed", `Reached stage "Employed" on job "Backend Engineer"`, "cand-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewCandidateRepository(db)
	require.NoError(t, repo.UpdateStatus(context.Background(), "cand-1", models.CandidateStatusEmployed,
		`Reached stage "Employed" on job "Backend Engineer"`))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRepository_UpdateStatus_NoRowMatched(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE candidates SET status = \$1, status_comment = \$2 WHERE id = \$3`).
		WithArgs("employed", "gone", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewCandidateRepository(db)
	updateErr := repo.UpdateStatus(context.Background(), "ghost", models.CandidateStatusEmployed, "gone")
	require.Error(t, updateErr)
	assert.True(t, errors.HasCode(updateErr, errors.ErrCodeInvalidRequest))
}

func TestCandidateRepository_UpdateContactExternalID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE candidates SET contact_external_id = \$1 WHERE id = \$2`).
		WithArgs("0031x00000AbCdEfAA", "cand-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewCandidateRepository(db)
	require.NoError(t, repo.UpdateContactExternalID(context.Background(), "cand-1", "0031x00000AbCdEfAA"))
}

// ==========================================
// COUNTRY REPOSITORY TESTS
// ==========================================

func TestCountryRepository_FindByName(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, name FROM countries WHERE LOWER\(name\) = LOWER\(\$1\)`).
		WithArgs("Germany").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("country-de", "Germany"))

	repo := NewCountryRepository(db)
	country, err := repo.FindByName(context.Background(), "Germany")
	require.NoError(t, err)
	require.NotNil(t, country)
	assert.Equal(t, "country-de", country.ID)
}

func TestCountryRepository_FindByName_IgnoresCase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Remote records carry arbitrary casing; "JORDAN" must still resolve
	// against a local "Jordan" row because both sides are lowered in SQL.
	mock.ExpectQuery(`SELECT id, name FROM countries WHERE LOWER\(name\) = LOWER\(\$1\)`).
		WithArgs("JORDAN").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("country-jo", "Jordan"))

	repo := NewCountryRepository(db)
	country, err := repo.FindByName(context.Background(), "JORDAN")
	require.NoError(t, err)
	require.NotNil(t, country)
	assert.Equal(t, "country-jo", country.ID)
	assert.Equal(t, "Jordan", country.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountryRepository_FindByName_MissIsNilNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, name FROM countries WHERE LOWER\(name\) = LOWER\(\$1\)`).
		WithArgs("Atlantis").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	repo := NewCountryRepository(db)
	country, err := repo.FindByName(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Nil(t, country)
}
