// internal/sync/mapper.go
package sync

import (
	"context"
	"fmt"
	"time"

	"recruitsync/internal/alerts"
	"recruitsync/internal/common/logger"
	"recruitsync/internal/models"
)

// Remote records carry either a full timestamp or a bare date depending on
// the field type; both layouts are tried in order.
const (
	remoteTimestampLayout = "2006-01-02T15:04:05.000-0700"
	remoteDateLayout      = "2006-01-02"
)

// Mapper translates raw remote records into local entities and local entities
// into upsert payloads. Every field access is defensive: a missing or
// malformed field degrades that one field, never the whole record.
type Mapper struct {
	countries      CountryStore
	alerts         alerts.Sender
	publishCutover time.Time
	logger         logger.Logger
}

func NewMapper(countries CountryStore, sender alerts.Sender, publishCutover string, log logger.Logger) (*Mapper, error) {
	cutover, err := time.Parse(remoteDateLayout, publishCutover)
	if err != nil {
		return nil, fmt.Errorf("invalid publish cutover date %q: %w", publishCutover, err)
	}
	return &Mapper{
		countries:      countries,
		alerts:         sender,
		publishCutover: cutover,
		logger:         log.WithFields(map[string]interface{}{"component": "mapper"}),
	}, nil
}

// MapJobOpportunity builds a local job opportunity from a remote record. The
// record must carry at least an Id; everything else is best-effort.
func (m *Mapper) MapJobOpportunity(ctx context.Context, record map[string]interface{}) *models.JobOpportunity {
	job := &models.JobOpportunity{
		ExternalID:  stringField(record, "Id"),
		Name:        stringField(record, "Name"),
		AccountID:   stringField(record, "AccountId"),
		AccountName: nestedStringField(record, "Account", "Name"),
		Closed:      boolField(record, "IsClosed"),
		Won:         boolField(record, "IsWon"),
		NextStep:    stringField(record, "NextStep"),
		NextStepDue: m.timeField(record, "Next_Step_Due_Date__c"),
		Published:   boolField(record, "Published__c"),
		PublishedAt: m.timeField(record, "Publication_Date__c"),

		RemoteCreatedAt: m.timeField(record, "CreatedDate"),
		RemoteUpdatedAt: m.timeField(record, "LastModifiedDate"),
		SyncedAt:        time.Now().UTC(),
	}

	stageName := stringField(record, "StageName")
	stage, known := models.JobStageFromRemote(stageName)
	if !known {
		m.logger.Error("unrecognized remote job stage, using default", map[string]interface{}{
			"stage": stageName,
			"job":   job.ExternalID,
		})
		stage = models.DefaultJobStage
	}
	job.Stage = stage

	job.CountryID = m.resolveCountry(ctx, record, job.ExternalID)

	// Records predating the publish feature carry no publication date; their
	// remote creation date stands in for it.
	if job.PublishedAt == nil && job.RemoteCreatedAt != nil && job.RemoteCreatedAt.Before(m.publishCutover) {
		job.PublishedAt = job.RemoteCreatedAt
		job.Published = true
	}

	return job
}

func (m *Mapper) resolveCountry(ctx context.Context, record map[string]interface{}, jobExternalID string) *string {
	name := stringField(record, "Country__c")
	if name == "" {
		return nil
	}

	country, err := m.countries.FindByName(ctx, name)
	if err != nil {
		m.logger.WithError(err).Error("country lookup failed", map[string]interface{}{
			"country": name,
			"job":     jobExternalID,
		})
		return nil
	}
	if country == nil {
		m.logger.Warn("remote country has no local match", map[string]interface{}{
			"country": name,
			"job":     jobExternalID,
		})
		subject := "Unresolved CRM country"
		message := fmt.Sprintf("Remote job %s references country %q which has no local match.", jobExternalID, name)
		if alertErr := m.alerts.Send(ctx, subject, message); alertErr != nil {
			m.logger.WithError(alertErr).Error("country alert delivery failed", nil)
		}
		return nil
	}
	return &country.ID
}

// CandidateStageFromRecord extracts the pipeline stage from a remote
// candidate opportunity record, falling back to the default stage for
// unrecognized labels.
func (m *Mapper) CandidateStageFromRecord(record map[string]interface{}) models.CandidateStage {
	stageName := stringField(record, "Stage__c")
	stage, known := models.CandidateStageFromRemote(stageName)
	if !known {
		m.logger.Error("unrecognized remote candidate stage, using default", map[string]interface{}{
			"stage":  stageName,
			"record": stringField(record, "Id"),
		})
		return models.DefaultCandidateStage
	}
	return stage
}

// ContactPayload builds the contact upsert fields for a candidate. The
// candidate number is the upsert match key.
func (m *Mapper) ContactPayload(c *models.Candidate) map[string]interface{} {
	return map[string]interface{}{
		"Candidate_Number__c": c.Number,
		"LastName":            c.Name,
		"Email":               c.Email,
	}
}

// CandidateOpportunityPayload builds the upsert fields for a candidate
// opportunity. The match key ties the record to its (candidate, job) pair;
// it is not the entity's own external id.
func (m *Mapper) CandidateOpportunityPayload(opp *models.CandidateOpportunity, candidate *models.Candidate, job *models.JobOpportunity) map[string]interface{} {
	payload := map[string]interface{}{
		"External_Key__c": models.MatchKey(candidate.Number, job.ExternalID),
		"Name":            fmt.Sprintf("%s - %s", candidate.Name, job.Name),
		"Stage__c":        string(opp.Stage),
		"Opportunity__c":  job.ExternalID,
		"Closed__c":       opp.Closed,
		"Won__c":          opp.Won,
	}
	if candidate.ContactExternalID != "" {
		payload["Contact__c"] = candidate.ContactExternalID
	}
	if opp.NextStep != "" {
		payload["Next_Step__c"] = opp.NextStep
	}
	if opp.NextStepDue != nil {
		payload["Next_Step_Due_Date__c"] = opp.NextStepDue.Format(remoteDateLayout)
	}
	if opp.EmployerFeedback != "" {
		payload["Employer_Feedback__c"] = opp.EmployerFeedback
	}
	if opp.ClosingComments != "" {
		payload["Closing_Comments__c"] = opp.ClosingComments
	}
	return payload
}

// timeField parses a remote timestamp or date field, returning nil when the
// field is absent or unparseable. Malformed values are logged, not fatal.
func (m *Mapper) timeField(record map[string]interface{}, key string) *time.Time {
	raw := stringField(record, key)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(remoteTimestampLayout, raw); err == nil {
		return &t
	}
	if t, err := time.Parse(remoteDateLayout, raw); err == nil {
		return &t
	}
	m.logger.Warn("unparseable remote timestamp", map[string]interface{}{
		"field": key,
		"value": raw,
	})
	return nil
}

func stringField(record map[string]interface{}, key string) string {
	if v, ok := record[key].(string); ok {
		return v
	}
	return ""
}

func boolField(record map[string]interface{}, key string) bool {
	if v, ok := record[key].(bool); ok {
		return v
	}
	return false
}

func nestedStringField(record map[string]interface{}, parent, key string) string {
	if nested, ok := record[parent].(map[string]interface{}); ok {
		return stringField(nested, key)
	}
	return ""
}
