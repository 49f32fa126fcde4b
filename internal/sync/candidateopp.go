// internal/sync/candidateopp.go
package sync

import (
	"context"
	"fmt"
	"strings"
	stdsync "sync"
	"time"

	"recruitsync/internal/alerts"
	"recruitsync/internal/common/config"
	"recruitsync/internal/common/errors"
	"recruitsync/internal/common/logger"
	"recruitsync/internal/common/metrics"
	"recruitsync/internal/crm"
	"recruitsync/internal/models"
)

const (
	defaultNextStep     = "Contact candidate"
	defaultNextStepLead = 14 * 24 * time.Hour

	// duplicateContactCode is the remote error code for a contact upsert that
	// collides with existing CRM deduplication rules.
	duplicateContactCode = "DUPLICATES_DETECTED"
)

// candidateOppQueryFields is the projection for inbound opportunity pulls.
const candidateOppQueryFields = "Id, Stage__c, Next_Step__c, Next_Step_Due_Date__c, Employer_Feedback__c, " +
	"Closing_Comments__c, Closed__c, Won__c, Opportunity__c, Contact__r.Candidate_Number__c"

// StageParams carries the optional updates a caller can apply to a candidate
// opportunity. Nil fields leave the current value untouched.
type StageParams struct {
	Stage            *models.CandidateStage
	NextStep         *string
	NextStepDue      *time.Time
	EmployerFeedback *string
	ClosingComments  *string
}

// CandidateOppService owns the candidate opportunity lifecycle: local
// create/update with stage side effects, outbound batch pushes to the CRM and
// inbound pulls that reconcile remote edits.
type CandidateOppService struct {
	crm        CRMClient
	batcher    BatchUpserter
	jobs       *JobOppService
	opps       CandidateOpportunityStore
	candidates CandidateStore
	mapper     *Mapper
	alerts     alerts.Sender
	notifier   alerts.Notifier
	cfg        config.SyncConfig
	logger     logger.Logger

	// A burst of duplicate-contact rejections means a CRM dedup rule changed;
	// one alert is enough for the process lifetime.
	dupAlertOnce stdsync.Once
}

func NewCandidateOppService(
	client CRMClient,
	batcher BatchUpserter,
	jobs *JobOppService,
	opps CandidateOpportunityStore,
	candidates CandidateStore,
	mapper *Mapper,
	sender alerts.Sender,
	notifier alerts.Notifier,
	cfg config.SyncConfig,
	log logger.Logger,
) *CandidateOppService {
	return &CandidateOppService{
		crm:        client,
		batcher:    batcher,
		jobs:       jobs,
		opps:       opps,
		candidates: candidates,
		mapper:     mapper,
		alerts:     sender,
		notifier:   notifier,
		cfg:        cfg,
		logger:     log.WithFields(map[string]interface{}{"component": "candidateopp-sync"}),
	}
}

// CreateOrUpdateForJob links a candidate to a job, creating the opportunity
// with pipeline defaults when the pair is new and applying the given updates
// otherwise. jobRef is either a remote job id or a pasted record link.
func (s *CandidateOppService) CreateOrUpdateForJob(ctx context.Context, candidateID, jobRef string, params StageParams) (*models.CandidateOpportunity, error) {
	var job *models.JobOpportunity
	var err error
	if strings.HasPrefix(jobRef, "https://") {
		job, err = s.jobs.GetOrCreateFromURL(ctx, jobRef)
	} else {
		job, err = s.jobs.GetOrCreateFromID(ctx, jobRef)
	}
	if err != nil {
		return nil, err
	}

	candidate, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("no candidate with id %s", candidateID))
	}

	now := time.Now().UTC()
	opp, err := s.opps.FindByCandidateAndJob(ctx, candidate.ID, job.ID)
	if err != nil {
		return nil, err
	}
	if opp == nil {
		due := now.Add(defaultNextStepLead)
		opp = &models.CandidateOpportunity{
			JobOpportunityID: job.ID,
			CandidateID:      candidate.ID,
			Stage:            models.DefaultCandidateStage,
			NextStep:         defaultNextStep,
			NextStepDue:      &due,
			CreatedAt:        now,
		}
		s.resolveExternalID(ctx, opp, candidate, job)
	}

	if params.Stage != nil {
		opp.Stage = *params.Stage
	}
	if params.NextStep != nil {
		opp.NextStep = *params.NextStep
	}
	if params.NextStepDue != nil {
		opp.NextStepDue = params.NextStepDue
	}
	if params.EmployerFeedback != nil {
		opp.EmployerFeedback = *params.EmployerFeedback
	}
	if params.ClosingComments != nil {
		opp.ClosingComments = *params.ClosingComments
	}
	opp.UpdatedAt = now

	if err := s.opps.Save(ctx, opp); err != nil {
		return nil, err
	}

	s.applyStageSideEffects(ctx, candidate, opp, job.Name)
	return opp, nil
}

// resolveExternalID looks for an already-existing remote record for the pair
// so a later push updates it instead of creating a duplicate. Best effort: a
// failed lookup just leaves the id empty.
func (s *CandidateOppService) resolveExternalID(ctx context.Context, opp *models.CandidateOpportunity, candidate *models.Candidate, job *models.JobOpportunity) {
	key := models.MatchKey(candidate.Number, job.ExternalID)
	soql := fmt.Sprintf("SELECT Id FROM Candidate_Opportunity__c WHERE External_Key__c = '%s'",
		strings.ReplaceAll(key, "'", "\\'"))
	result, err := s.crm.RunQuery(ctx, soql)
	if err != nil {
		s.logger.WithError(err).Warn("remote match key lookup failed", map[string]interface{}{
			"match_key": key,
		})
		return
	}
	if len(result.Records) > 0 {
		opp.ExternalID = stringField(result.Records[0], "Id")
	}
}

// PushCandidatesToCRM pushes every candidate opportunity of a job to the CRM:
// contacts first so the opportunity records can reference them, then the
// opportunities themselves. Individual record failures are logged and counted
// but never abort the push.
func (s *CandidateOppService) PushCandidatesToCRM(ctx context.Context, jobExternalID string) error {
	job, err := s.jobs.GetOrCreateFromID(ctx, jobExternalID)
	if err != nil {
		return err
	}

	opps, err := s.opps.ListByJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if len(opps) == 0 {
		s.logger.Info("no candidate opportunities to push", map[string]interface{}{
			"job": job.ExternalID,
		})
		return nil
	}

	linked := make([]*models.Candidate, 0, len(opps))
	keptOpps := make([]*models.CandidateOpportunity, 0, len(opps))
	for _, opp := range opps {
		candidate, err := s.candidates.FindByID(ctx, opp.CandidateID)
		if err != nil || candidate == nil {
			s.logger.Warn("skipping opportunity with unresolvable candidate", map[string]interface{}{
				"candidate_id": opp.CandidateID,
				"job":          job.ExternalID,
			})
			metrics.SyncRecordsTotal.WithLabelValues("candidate_opportunity", "skipped").Inc()
			continue
		}
		linked = append(linked, candidate)
		keptOpps = append(keptOpps, opp)
	}

	s.pushContacts(ctx, linked)
	s.pushOpportunities(ctx, keptOpps, linked, job)
	return nil
}

func (s *CandidateOppService) pushContacts(ctx context.Context, candidates []*models.Candidate) {
	unique := make([]*models.Candidate, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		unique = append(unique, c)
	}

	for _, chunk := range chunkCandidates(unique, crm.MaxBatchSize) {
		payloads := make([]map[string]interface{}, len(chunk))
		for i, c := range chunk {
			payloads[i] = s.mapper.ContactPayload(c)
		}

		results, err := s.batcher.UpsertBatch(ctx, crm.ObjectContact, payloads)
		if err != nil {
			s.logger.WithError(err).Error("contact batch failed, skipping chunk", map[string]interface{}{
				"size": len(chunk),
			})
			continue
		}

		for i, result := range results {
			candidate := chunk[i]
			if !result.Success {
				s.logContactFailure(ctx, candidate, result)
				continue
			}
			if result.ID != "" && result.ID != candidate.ContactExternalID {
				if err := s.candidates.UpdateContactExternalID(ctx, candidate.ID, result.ID); err != nil {
					s.logger.WithError(err).Error("failed to store contact link", map[string]interface{}{
						"candidate": candidate.Number,
					})
					continue
				}
				candidate.ContactExternalID = result.ID
			}
		}
	}
}

func (s *CandidateOppService) logContactFailure(ctx context.Context, candidate *models.Candidate, result crm.UpsertResult) {
	for _, recordErr := range result.Errors {
		s.logger.Error("contact upsert rejected", map[string]interface{}{
			"candidate": candidate.Number,
			"code":      recordErr.StatusCode,
			"message":   recordErr.Message,
		})
		if recordErr.StatusCode == duplicateContactCode {
			s.dupAlertOnce.Do(func() {
				subject := "Duplicate CRM contact detected"
				message := fmt.Sprintf("Contact upsert for candidate %s was rejected as a duplicate. "+
					"Further duplicates in this run are logged only.", candidate.Number)
				if err := s.alerts.Send(ctx, subject, message); err != nil {
					s.logger.WithError(err).Error("duplicate contact alert delivery failed", nil)
				}
			})
		}
	}
}

func (s *CandidateOppService) pushOpportunities(ctx context.Context, opps []*models.CandidateOpportunity, candidates []*models.Candidate, job *models.JobOpportunity) {
	for start := 0; start < len(opps); start += crm.MaxBatchSize {
		end := start + crm.MaxBatchSize
		if end > len(opps) {
			end = len(opps)
		}
		chunkOpps := opps[start:end]
		chunkCands := candidates[start:end]

		payloads := make([]map[string]interface{}, len(chunkOpps))
		for i, opp := range chunkOpps {
			payloads[i] = s.mapper.CandidateOpportunityPayload(opp, chunkCands[i], job)
		}

		results, err := s.batcher.UpsertBatch(ctx, crm.ObjectCandidateOpportunity, payloads)
		if err != nil {
			s.logger.WithError(err).Error("candidate opportunity batch failed, skipping chunk", map[string]interface{}{
				"job":  job.ExternalID,
				"size": len(chunkOpps),
			})
			continue
		}

		for i, result := range results {
			opp := chunkOpps[i]
			candidate := chunkCands[i]
			if !result.Success {
				for _, recordErr := range result.Errors {
					s.logger.Error("candidate opportunity upsert rejected", map[string]interface{}{
						"candidate": candidate.Name,
						"job":       job.Name,
						"code":      recordErr.StatusCode,
						"message":   recordErr.Message,
					})
				}
				continue
			}
			if opp.ExternalID == "" && result.ID != "" {
				opp.ExternalID = result.ID
				if err := s.opps.Save(ctx, opp); err != nil {
					s.logger.WithError(err).Error("failed to store opportunity external id", map[string]interface{}{
						"candidate": candidate.Name,
						"job":       job.Name,
					})
				}
			}
		}
	}
}

// PullByJobIDs reconciles remote candidate opportunity edits for the given
// jobs back into the local store. Unknown jobs are fetched and cached on the
// fly; records whose candidate cannot be resolved locally are skipped. The
// pull is best effort throughout: failures are logged, never propagated.
func (s *CandidateOppService) PullByJobIDs(ctx context.Context, jobExternalIDs []string) {
	unique := make([]string, 0, len(jobExternalIDs))
	seen := make(map[string]bool, len(jobExternalIDs))
	for _, id := range jobExternalIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return
	}

	for i, chunk := range chunkStrings(unique, s.cfg.PullChunk) {
		soql := fmt.Sprintf("SELECT %s FROM Candidate_Opportunity__c WHERE Opportunity__c IN (%s)",
			candidateOppQueryFields, soqlStringList(chunk))
		result, err := s.crm.RunQuery(ctx, soql)
		if err != nil {
			s.logger.WithError(err).Error("opportunity pull chunk failed, skipping", map[string]interface{}{
				"chunk": i,
				"jobs":  len(chunk),
			})
			continue
		}

		for _, record := range result.Records {
			s.applyRemoteOpportunity(ctx, record)
		}
	}
}

func (s *CandidateOppService) applyRemoteOpportunity(ctx context.Context, record map[string]interface{}) {
	remoteID := stringField(record, "Id")
	jobExternalID := stringField(record, "Opportunity__c")

	job, err := s.jobs.GetOrCreateFromID(ctx, jobExternalID)
	if err != nil {
		s.logger.WithError(err).Error("cannot resolve job for remote opportunity", map[string]interface{}{
			"record": remoteID,
			"job":    jobExternalID,
		})
		metrics.SyncRecordsTotal.WithLabelValues("candidate_opportunity", "skipped").Inc()
		return
	}

	number := nestedStringField(record, "Contact__r", "Candidate_Number__c")
	if number == "" {
		s.logger.Warn("remote opportunity carries no candidate number, skipping", map[string]interface{}{
			"record": remoteID,
		})
		metrics.SyncRecordsTotal.WithLabelValues("candidate_opportunity", "skipped").Inc()
		return
	}

	candidate, err := s.candidates.FindByNumber(ctx, number)
	if err != nil {
		s.logger.WithError(err).Error("candidate lookup failed, skipping record", map[string]interface{}{
			"record":    remoteID,
			"candidate": number,
		})
		metrics.SyncRecordsTotal.WithLabelValues("candidate_opportunity", "skipped").Inc()
		return
	}
	if candidate == nil {
		s.logger.Warn("remote opportunity references unknown candidate, skipping", map[string]interface{}{
			"record":    remoteID,
			"candidate": number,
		})
		metrics.SyncRecordsTotal.WithLabelValues("candidate_opportunity", "skipped").Inc()
		return
	}

	now := time.Now().UTC()
	opp, err := s.opps.FindByCandidateAndJob(ctx, candidate.ID, job.ID)
	if err != nil {
		s.logger.WithError(err).Error("local opportunity lookup failed, skipping record", map[string]interface{}{
			"record": remoteID,
		})
		metrics.SyncRecordsTotal.WithLabelValues("candidate_opportunity", "skipped").Inc()
		return
	}
	if opp == nil {
		opp = &models.CandidateOpportunity{
			JobOpportunityID: job.ID,
			CandidateID:      candidate.ID,
			CreatedAt:        now,
		}
	}

	opp.ExternalID = remoteID
	opp.Stage = s.mapper.CandidateStageFromRecord(record)
	opp.NextStep = stringField(record, "Next_Step__c")
	opp.NextStepDue = s.mapper.timeField(record, "Next_Step_Due_Date__c")
	opp.EmployerFeedback = stringField(record, "Employer_Feedback__c")
	opp.ClosingComments = stringField(record, "Closing_Comments__c")
	opp.Closed = boolField(record, "Closed__c")
	opp.Won = boolField(record, "Won__c")
	opp.UpdatedAt = now

	if err := s.opps.Save(ctx, opp); err != nil {
		s.logger.WithError(err).Error("failed to save pulled opportunity", map[string]interface{}{
			"record":    remoteID,
			"candidate": candidate.Name,
			"job":       job.Name,
		})
		metrics.SyncRecordsTotal.WithLabelValues("candidate_opportunity", "failure").Inc()
		return
	}
	metrics.SyncRecordsTotal.WithLabelValues("candidate_opportunity", "pulled").Inc()

	s.applyStageSideEffects(ctx, candidate, opp, job.Name)
}

// applyStageSideEffects transitions candidate status off terminal stages.
// Status checks make the transitions idempotent: re-syncing an employed
// candidate neither re-updates nor re-notifies.
func (s *CandidateOppService) applyStageSideEffects(ctx context.Context, candidate *models.Candidate, opp *models.CandidateOpportunity, jobName string) {
	var target models.CandidateStatus
	switch {
	case opp.Stage.IsEmployment() && candidate.Status != models.CandidateStatusEmployed:
		target = models.CandidateStatusEmployed
	case opp.Stage == models.CandidateStageNotEligible && candidate.Status != models.CandidateStatusIneligible:
		target = models.CandidateStatusIneligible
	default:
		return
	}

	comment := fmt.Sprintf("Reached stage %q on job %q", opp.Stage, jobName)
	if err := s.candidates.UpdateStatus(ctx, candidate.ID, target, comment); err != nil {
		s.logger.WithError(err).Error("candidate status transition failed", map[string]interface{}{
			"candidate": candidate.Name,
			"status":    string(target),
		})
		return
	}
	candidate.Status = target
	candidate.StatusComment = comment

	s.logger.Info("candidate status transitioned", map[string]interface{}{
		"candidate": candidate.Name,
		"job":       jobName,
		"status":    string(target),
	})

	if err := s.notifier.StageChangeNote(ctx, candidate.Name, jobName, string(opp.Stage)); err != nil {
		s.logger.WithError(err).Error("stage change note delivery failed", map[string]interface{}{
			"candidate": candidate.Name,
		})
	}
}

func chunkCandidates(items []*models.Candidate, size int) [][]*models.Candidate {
	if size <= 0 {
		size = len(items)
	}
	var chunks [][]*models.Candidate
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
