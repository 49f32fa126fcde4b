// internal/sync/jobopp.go
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recruitsync/internal/common/config"
	"recruitsync/internal/common/errors"
	"recruitsync/internal/common/logger"
	"recruitsync/internal/common/metrics"
	"recruitsync/internal/crm"
	"recruitsync/internal/models"
)

// jobQueryFields is the projection used for every remote job query; it must
// stay in sync with what the mapper reads.
const jobQueryFields = "Id, Name, AccountId, Account.Name, StageName, IsClosed, IsWon, NextStep, " +
	"Next_Step_Due_Date__c, Country__c, Published__c, Publication_Date__c, CreatedDate, LastModifiedDate"

// JobOppService keeps the local job opportunity cache aligned with the remote
// CRM. The CRM is authoritative: local rows are a cache, refreshed on demand
// and in bulk.
type JobOppService struct {
	crm    CRMClient
	store  JobOpportunityStore
	mapper *Mapper
	cfg    config.SyncConfig
	logger logger.Logger
}

func NewJobOppService(client CRMClient, store JobOpportunityStore, mapper *Mapper, cfg config.SyncConfig, log logger.Logger) *JobOppService {
	return &JobOppService{
		crm:    client,
		store:  store,
		mapper: mapper,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "jobopp-sync"}),
	}
}

// GetOrCreateFromID returns the cached job for a remote id, refreshing it
// when stale and creating it when unseen. A remote id with no CRM record is
// a caller mistake, reported as an invalid request.
func (s *JobOppService) GetOrCreateFromID(ctx context.Context, externalID string) (*models.JobOpportunity, error) {
	existing, err := s.store.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !existing.Stale(s.cfg.StaleAfter, time.Now().UTC()) {
		return existing, nil
	}

	return s.refresh(ctx, externalID, existing)
}

// GetOrCreateFromURL resolves a pasted CRM record link to a cached job.
func (s *JobOppService) GetOrCreateFromURL(ctx context.Context, rawURL string) (*models.JobOpportunity, error) {
	objectType, id, ok := crm.ParseRecordURL(rawURL)
	if !ok || objectType != crm.ObjectOpportunity {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("not a job record link: %s", rawURL))
	}
	return s.GetOrCreateFromID(ctx, id)
}

// RefreshSingle re-fetches one job from the CRM regardless of cache freshness.
func (s *JobOppService) RefreshSingle(ctx context.Context, externalID string) (*models.JobOpportunity, error) {
	existing, err := s.store.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, externalID, existing)
}

func (s *JobOppService) refresh(ctx context.Context, externalID string, existing *models.JobOpportunity) (*models.JobOpportunity, error) {
	record, err := s.crm.FetchRecord(ctx, crm.ObjectOpportunity, externalID)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeRecordNotFound) {
			return nil, errors.NewInvalidRequestError(fmt.Sprintf("no remote job with id %s", externalID))
		}
		return nil, err
	}

	job := s.mapper.MapJobOpportunity(ctx, record)
	preserveLocalIdentity(job, existing)

	if err := s.store.Save(ctx, job); err != nil {
		return nil, err
	}
	metrics.SyncRecordsTotal.WithLabelValues("job_opportunity", "refreshed").Inc()
	return job, nil
}

// BulkRefreshOpenJobs re-fetches every open cached job in bounded query
// chunks. A failed chunk is logged and skipped so one bad id range cannot
// stall the rest of the refresh.
func (s *JobOppService) BulkRefreshOpenJobs(ctx context.Context) error {
	open, err := s.store.ListOpen(ctx)
	if err != nil {
		return err
	}
	if len(open) == 0 {
		return nil
	}

	// Jobs refreshed recently enough are skipped; the remote is polled only
	// for cache entries past the freshness threshold.
	now := time.Now().UTC()
	byExternalID := make(map[string]*models.JobOpportunity, len(open))
	ids := make([]string, 0, len(open))
	for _, job := range open {
		if !job.Stale(s.cfg.StaleAfter, now) {
			continue
		}
		byExternalID[job.ExternalID] = job
		ids = append(ids, job.ExternalID)
	}
	if len(ids) == 0 {
		return nil
	}

	chunks := chunkStrings(ids, s.cfg.JobQueryChunk)
	refreshed := 0
	for i, chunk := range chunks {
		soql := fmt.Sprintf("SELECT %s FROM Opportunity WHERE Id IN (%s)", jobQueryFields, soqlStringList(chunk))
		result, err := s.crm.RunQuery(ctx, soql)
		if err != nil {
			s.logger.WithError(err).Error("job refresh chunk failed, skipping", map[string]interface{}{
				"chunk": i,
				"size":  len(chunk),
			})
			metrics.SyncRecordsTotal.WithLabelValues("job_opportunity", "chunk_failed").Add(float64(len(chunk)))
			continue
		}

		for _, record := range result.Records {
			job := s.mapper.MapJobOpportunity(ctx, record)
			preserveLocalIdentity(job, byExternalID[job.ExternalID])
			if err := s.store.Save(ctx, job); err != nil {
				s.logger.WithError(err).Error("failed to save refreshed job", map[string]interface{}{
					"job": job.ExternalID,
				})
				continue
			}
			refreshed++
			metrics.SyncRecordsTotal.WithLabelValues("job_opportunity", "refreshed").Inc()
		}

		if s.cfg.ProgressEvery > 0 && (i+1)%s.cfg.ProgressEvery == 0 {
			s.logger.Info("bulk job refresh progress", map[string]interface{}{
				"chunks_done":  i + 1,
				"chunks_total": len(chunks),
				"refreshed":    refreshed,
			})
		}
	}

	s.logger.Info("bulk job refresh finished", map[string]interface{}{
		"open":      len(open),
		"refreshed": refreshed,
	})
	return nil
}

// ListOpenExternalIDs returns the remote ids of every open cached job.
func (s *JobOppService) ListOpenExternalIDs(ctx context.Context) ([]string, error) {
	open, err := s.store.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(open))
	for _, job := range open {
		ids = append(ids, job.ExternalID)
	}
	return ids, nil
}

// preserveLocalIdentity carries local-only state from the previous cached row
// onto a freshly mapped one. Remote data never owns these fields.
func preserveLocalIdentity(job, existing *models.JobOpportunity) {
	if existing == nil {
		return
	}
	job.ID = existing.ID
	job.SubmissionListID = existing.SubmissionListID
	job.ExclusionListID = existing.ExclusionListID
	job.SuggestedListID = existing.SuggestedListID
}

func chunkStrings(items []string, size int) [][]string {
	if size <= 0 {
		size = len(items)
	}
	var chunks [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// soqlStringList renders ids as a quoted, comma-separated list. Quotes inside
// values are escaped so ids can never break out of the literal.
func soqlStringList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "\\'") + "'"
	}
	return strings.Join(quoted, ", ")
}
