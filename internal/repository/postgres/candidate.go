// internal/repository/postgres/candidate.go
package postgres

import (
	"context"
	"database/sql"

	"recruitsync/internal/common/errors"
	"recruitsync/internal/models"
)

const candidateColumns = `id, number, name, email, status, status_comment, contact_external_id`

// CandidateRepository reads and transitions candidates. Candidate creation
// belongs to the recruitment subsystem; the sync engine only links contacts
// and moves statuses.
type CandidateRepository struct {
	db *sql.DB
}

func NewCandidateRepository(db *sql.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

func (r *CandidateRepository) FindByID(ctx context.Context, id string) (*models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *CandidateRepository) FindByNumber(ctx context.Context, number string) (*models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE number = $1`
	return r.findOne(ctx, query, number)
}

func (r *CandidateRepository) findOne(ctx context.Context, query string, arg interface{}) (*models.Candidate, error) {
	var c models.Candidate
	var status string
	var statusComment, contactID sql.NullString

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&c.ID, &c.Number, &c.Name, &c.Email, &status, &statusComment, &contactID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	c.Status = models.CandidateStatus(status)
	c.StatusComment = statusComment.String
	c.ContactExternalID = contactID.String
	return &c, nil
}

func (r *CandidateRepository) UpdateContactExternalID(ctx context.Context, id, contactExternalID string) error {
	query := `UPDATE candidates SET contact_external_id = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, contactExternalID, id)
	if err != nil {
		return errors.NewDatabaseError(err)
	}
	return requireOneRow(result)
}

func (r *CandidateRepository) UpdateStatus(ctx context.Context, id string, status models.CandidateStatus, comment string) error {
	query := `UPDATE candidates SET status = $1, status_comment = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, string(status), comment, id)
	if err != nil {
		return errors.NewDatabaseError(err)
	}
	return requireOneRow(result)
}

func requireOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError(err)
	}
	if affected == 0 {
		return errors.NewInvalidRequestError("no candidate row matched the update")
	}
	return nil
}
