// internal/models/opportunity.go
package models

import "time"

// JobOpportunity is the local cache of a remote CRM job record. The external
// id is unique and immutable once set; the remote CRM is authoritative for
// stage, so no forward-only transition is enforced here.
type JobOpportunity struct {
	ID          string     `json:"id"`
	ExternalID  string     `json:"externalId"`
	Name        string     `json:"name"`
	AccountID   string     `json:"accountId"`
	AccountName string     `json:"accountName"`
	Stage       JobStage   `json:"stage"`
	Closed      bool       `json:"closed"`
	Won         bool       `json:"won"`
	NextStep    string     `json:"nextStep"`
	NextStepDue *time.Time `json:"nextStepDue,omitempty"`

	// CountryID is nil when the remote country name could not be resolved
	// against local reference data. That raises an operator alert but never
	// blocks the entity.
	CountryID *string `json:"countryId,omitempty"`

	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`

	// Timestamps parsed from the remote record.
	RemoteCreatedAt *time.Time `json:"remoteCreatedAt,omitempty"`
	RemoteUpdatedAt *time.Time `json:"remoteUpdatedAt,omitempty"`

	// SyncedAt is when the local cache was last refreshed from the CRM.
	SyncedAt time.Time `json:"syncedAt"`

	// Cached list references, owned by the list subsystem.
	SubmissionListID string `json:"submissionListId,omitempty"`
	ExclusionListID  string `json:"exclusionListId,omitempty"`
	SuggestedListID  string `json:"suggestedListId,omitempty"`
}

// Stale reports whether the local cache is older than the given threshold.
func (j *JobOpportunity) Stale(threshold time.Duration, now time.Time) bool {
	return now.Sub(j.SyncedAt) > threshold
}

// CandidateOpportunity links a candidate to a job opportunity. Exactly one
// exists per (candidate, job) pair. ExternalID is empty until the CRM assigns
// one in an upsert response.
type CandidateOpportunity struct {
	ID               string         `json:"id"`
	ExternalID       string         `json:"externalId,omitempty"`
	JobOpportunityID string         `json:"jobOpportunityId"`
	CandidateID      string         `json:"candidateId"`
	Stage            CandidateStage `json:"stage"`
	Closed           bool           `json:"closed"`
	Won              bool           `json:"won"`
	NextStep         string         `json:"nextStep"`
	NextStepDue      *time.Time     `json:"nextStepDue,omitempty"`
	EmployerFeedback string         `json:"employerFeedback,omitempty"`
	ClosingComments  string         `json:"closingComments,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// MatchKey builds the deterministic external match key used for batched
// candidate-opportunity upserts: candidate number + "-" + job external id.
// It is only an upsert match key, never the entity's own external id.
func MatchKey(candidateNumber, jobExternalID string) string {
	return candidateNumber + "-" + jobExternalID
}
