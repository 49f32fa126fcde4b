// internal/repository/postgres/jobopp.go
package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"recruitsync/internal/common/errors"
	"recruitsync/internal/models"
)

const jobOppColumns = `id, external_id, name, account_id, account_name, stage, closed, won,
	next_step, next_step_due, country_id, published, published_at,
	remote_created_at, remote_updated_at, synced_at,
	submission_list_id, exclusion_list_id, suggested_list_id`

// JobOppRepository persists the job opportunity cache.
type JobOppRepository struct {
	db *sql.DB
}

func NewJobOppRepository(db *sql.DB) *JobOppRepository {
	return &JobOppRepository{db: db}
}

func (r *JobOppRepository) FindByExternalID(ctx context.Context, externalID string) (*models.JobOpportunity, error) {
	query := `SELECT ` + jobOppColumns + ` FROM job_opportunities WHERE external_id = $1`
	row := r.db.QueryRowContext(ctx, query, externalID)
	job, err := scanJobOpp(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return job, nil
}

func (r *JobOppRepository) Save(ctx context.Context, job *models.JobOpportunity) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}

	query := `
		INSERT INTO job_opportunities (` + jobOppColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (external_id) DO UPDATE SET
			name = EXCLUDED.name,
			account_id = EXCLUDED.account_id,
			account_name = EXCLUDED.account_name,
			stage = EXCLUDED.stage,
			closed = EXCLUDED.closed,
			won = EXCLUDED.won,
			next_step = EXCLUDED.next_step,
			next_step_due = EXCLUDED.next_step_due,
			country_id = EXCLUDED.country_id,
			published = EXCLUDED.published,
			published_at = EXCLUDED.published_at,
			remote_created_at = EXCLUDED.remote_created_at,
			remote_updated_at = EXCLUDED.remote_updated_at,
			synced_at = EXCLUDED.synced_at,
			submission_list_id = EXCLUDED.submission_list_id,
			exclusion_list_id = EXCLUDED.exclusion_list_id,
			suggested_list_id = EXCLUDED.suggested_list_id`

	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.ExternalID, job.Name, job.AccountID, job.AccountName,
		string(job.Stage), job.Closed, job.Won,
		nullString(job.NextStep), job.NextStepDue, job.CountryID,
		job.Published, job.PublishedAt,
		job.RemoteCreatedAt, job.RemoteUpdatedAt, job.SyncedAt,
		nullString(job.SubmissionListID), nullString(job.ExclusionListID), nullString(job.SuggestedListID),
	)
	if err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}

func (r *JobOppRepository) ListOpen(ctx context.Context) ([]*models.JobOpportunity, error) {
	query := `SELECT ` + jobOppColumns + ` FROM job_opportunities WHERE stage NOT IN ($1, $2) ORDER BY synced_at`
	rows, err := r.db.QueryContext(ctx, query, string(models.JobStageFilled), string(models.JobStageClosed))
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	defer rows.Close()

	var jobs []*models.JobOpportunity
	for rows.Next() {
		job, err := scanJobOpp(rows)
		if err != nil {
			return nil, errors.NewDatabaseError(err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJobOpp(row rowScanner) (*models.JobOpportunity, error) {
	var job models.JobOpportunity
	var stage string
	var nextStep, submissionList, exclusionList, suggestedList sql.NullString

	err := row.Scan(
		&job.ID, &job.ExternalID, &job.Name, &job.AccountID, &job.AccountName,
		&stage, &job.Closed, &job.Won,
		&nextStep, &job.NextStepDue, &job.CountryID,
		&job.Published, &job.PublishedAt,
		&job.RemoteCreatedAt, &job.RemoteUpdatedAt, &job.SyncedAt,
		&submissionList, &exclusionList, &suggestedList,
	)
	if err != nil {
		return nil, err
	}

	job.Stage = models.JobStage(stage)
	job.NextStep = nextStep.String
	job.SubmissionListID = submissionList.String
	job.ExclusionListID = exclusionList.String
	job.SuggestedListID = suggestedList.String
	return &job, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
