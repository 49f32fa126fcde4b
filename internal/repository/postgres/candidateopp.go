// internal/repository/postgres/candidateopp.go
package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"recruitsync/internal/common/errors"
	"recruitsync/internal/models"
)

const candidateOppColumns = `id, external_id, job_opportunity_id, candidate_id, stage, closed, won,
	next_step, next_step_due, employer_feedback, closing_comments, created_at, updated_at`

// CandidateOppRepository persists candidate opportunities. The unique index
// on (candidate_id, job_opportunity_id) enforces one row per pair.
type CandidateOppRepository struct {
	db *sql.DB
}

func NewCandidateOppRepository(db *sql.DB) *CandidateOppRepository {
	return &CandidateOppRepository{db: db}
}

func (r *CandidateOppRepository) FindByCandidateAndJob(ctx context.Context, candidateID, jobOpportunityID string) (*models.CandidateOpportunity, error) {
	query := `SELECT ` + candidateOppColumns + ` FROM candidate_opportunities WHERE candidate_id = $1 AND job_opportunity_id = $2`
	row := r.db.QueryRowContext(ctx, query, candidateID, jobOpportunityID)
	opp, err := scanCandidateOpp(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return opp, nil
}

func (r *CandidateOppRepository) ListByJob(ctx context.Context, jobOpportunityID string) ([]*models.CandidateOpportunity, error) {
	query := `SELECT ` + candidateOppColumns + ` FROM candidate_opportunities WHERE job_opportunity_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, jobOpportunityID)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	defer rows.Close()

	var opps []*models.CandidateOpportunity
	for rows.Next() {
		opp, err := scanCandidateOpp(rows)
		if err != nil {
			return nil, errors.NewDatabaseError(err)
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return opps, nil
}

func (r *CandidateOppRepository) Save(ctx context.Context, opp *models.CandidateOpportunity) error {
	if opp.ID == "" {
		opp.ID = uuid.New().String()
	}

	query := `
		INSERT INTO candidate_opportunities (` + candidateOppColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (candidate_id, job_opportunity_id) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			stage = EXCLUDED.stage,
			closed = EXCLUDED.closed,
			won = EXCLUDED.won,
			next_step = EXCLUDED.next_step,
			next_step_due = EXCLUDED.next_step_due,
			employer_feedback = EXCLUDED.employer_feedback,
			closing_comments = EXCLUDED.closing_comments,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		opp.ID, nullString(opp.ExternalID), opp.JobOpportunityID, opp.CandidateID,
		string(opp.Stage), opp.Closed, opp.Won,
		nullString(opp.NextStep), opp.NextStepDue,
		nullString(opp.EmployerFeedback), nullString(opp.ClosingComments),
		opp.CreatedAt, opp.UpdatedAt,
	)
	if err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}

func scanCandidateOpp(row rowScanner) (*models.CandidateOpportunity, error) {
	var opp models.CandidateOpportunity
	var stage string
	var externalID, nextStep, feedback, comments sql.NullString

	err := row.Scan(
		&opp.ID, &externalID, &opp.JobOpportunityID, &opp.CandidateID,
		&stage, &opp.Closed, &opp.Won,
		&nextStep, &opp.NextStepDue, &feedback, &comments,
		&opp.CreatedAt, &opp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	opp.Stage = models.CandidateStage(stage)
	opp.ExternalID = externalID.String
	opp.NextStep = nextStep.String
	opp.EmployerFeedback = feedback.String
	opp.ClosingComments = comments.String
	return &opp, nil
}
