// internal/sync/stores.go
package sync

import (
	"context"

	"recruitsync/internal/crm"
	"recruitsync/internal/models"
)

// CRMClient is the slice of the CRM executor the sync services consume.
type CRMClient interface {
	RunQuery(ctx context.Context, soql string) (*crm.QueryResult, error)
	FetchRecord(ctx context.Context, object, id string) (map[string]interface{}, error)
}

// BatchUpserter submits record batches to the CRM composite upsert endpoint.
type BatchUpserter interface {
	UpsertBatch(ctx context.Context, object string, records []map[string]interface{}) ([]crm.UpsertResult, error)
}

// JobOpportunityStore persists the local job opportunity cache.
type JobOpportunityStore interface {
	// FindByExternalID returns (nil, nil) when no cached job exists.
	FindByExternalID(ctx context.Context, externalID string) (*models.JobOpportunity, error)
	Save(ctx context.Context, job *models.JobOpportunity) error
	// ListOpen returns every cached job whose stage is not terminal.
	ListOpen(ctx context.Context) ([]*models.JobOpportunity, error)
}

// CandidateOpportunityStore persists candidate opportunities. At most one
// exists per (candidate, job) pair.
type CandidateOpportunityStore interface {
	// FindByCandidateAndJob returns (nil, nil) when the pair has no opportunity.
	FindByCandidateAndJob(ctx context.Context, candidateID, jobOpportunityID string) (*models.CandidateOpportunity, error)
	ListByJob(ctx context.Context, jobOpportunityID string) ([]*models.CandidateOpportunity, error)
	Save(ctx context.Context, opp *models.CandidateOpportunity) error
}

// CandidateStore is the slice of candidate persistence the sync engine needs.
type CandidateStore interface {
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
	// FindByNumber returns (nil, nil) when no candidate carries the number.
	FindByNumber(ctx context.Context, number string) (*models.Candidate, error)
	UpdateContactExternalID(ctx context.Context, id, contactExternalID string) error
	// UpdateStatus transitions the candidate and persists an audit comment
	// explaining the transition.
	UpdateStatus(ctx context.Context, id string, status models.CandidateStatus, comment string) error
}

// CountryStore resolves remote country names against local reference data.
type CountryStore interface {
	// FindByName returns (nil, nil) when the name is unknown; a miss is a
	// data-quality signal, not an error.
	FindByName(ctx context.Context, name string) (*models.Country, error)
}
