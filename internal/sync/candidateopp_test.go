// internal/sync/candidateopp_test.go
package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruitsync/internal/common/logger"
	"recruitsync/internal/crm"
	"recruitsync/internal/models"
)

type candidateOppFixture struct {
	client    *fakeCRM
	batcher   *fakeBatcher
	jobStore  *memJobStore
	oppStore  *memOppStore
	candStore *memCandidateStore
	sender    *capturingSender
	notifier  *capturingNotifier
	svc       *CandidateOppService
}

func newCandidateOppFixture(t *testing.T) *candidateOppFixture {
	t.Helper()
	f := &candidateOppFixture{
		client:    &fakeCRM{},
		batcher:   &fakeBatcher{},
		jobStore:  newMemJobStore(),
		oppStore:  &memOppStore{},
		candStore: &memCandidateStore{},
		sender:    &capturingSender{},
		notifier:  &capturingNotifier{},
	}
	mapper := newTestMapper(t, nil, nil)
	jobs := NewJobOppService(f.client, f.jobStore, mapper, testSyncConfig(), logger.NewNoOpLogger())
	f.svc = NewCandidateOppService(f.client, f.batcher, jobs, f.oppStore, f.candStore, mapper,
		f.sender, f.notifier, testSyncConfig(), logger.NewNoOpLogger())
	return f
}

func (f *candidateOppFixture) addJob(externalID, name string) *models.JobOpportunity {
	job := &models.JobOpportunity{
		ID:         "job-" + externalID,
		ExternalID: externalID,
		Name:       name,
		Stage:      models.JobStageOpen,
		SyncedAt:   time.Now().UTC(),
	}
	f.jobStore.byExternalID[externalID] = job
	return job
}

func (f *candidateOppFixture) addCandidate(id, number, name string) *models.Candidate {
	c := &models.Candidate{ID: id, Number: number, Name: name, Email: number + "@example.org", Status: models.CandidateStatusActive}
	f.candStore.candidates = append(f.candStore.candidates, c)
	return c
}

func stagePtr(s models.CandidateStage) *models.CandidateStage { return &s }

// ==========================================
// CREATE / UPDATE TESTS
// ==========================================

func TestCandidateOpp_CreateAppliesPipelineDefaults(t *testing.T) {
	f := newCandidateOppFixture(t)
	f.addJob("ext-1", "Backend Engineer")
	f.addCandidate("cand-1", "C-100", "Ada Lovelace")

	before := time.Now().UTC()
	opp, err := f.svc.CreateOrUpdateForJob(context.Background(), "cand-1", "ext-1", StageParams{})
	require.NoError(t, err)

	assert.Equal(t, models.CandidateStageProspect, opp.Stage)
	assert.Equal(t, "Contact candidate", opp.NextStep)
	require.NotNil(t, opp.NextStepDue)
	expectedDue := before.Add(14 * 24 * time.Hour)
	assert.WithinDuration(t, expectedDue, *opp.NextStepDue, time.Minute)
	assert.Equal(t, 1, f.oppStore.saves)
}

func TestCandidateOpp_CreateResolvesExistingRemoteRecord(t *testing.T) {
	f := newCandidateOppFixture(t)
	f.addJob("ext-1", "Backend Engineer")
	f.addCandidate("cand-1", "C-100", "Ada Lovelace")
	f.client.queryFn = func(soql string) (*crm.QueryResult, error) {
		return &crm.QueryResult{Done: true, Records: []map[string]interface{}{
			{"Id": "a0A000000000001AAA"},
		}}, nil
	}

	opp, err := f.svc.CreateOrUpdateForJob(context.Background(), "cand-1", "ext-1", StageParams{})
	require.NoError(t, err)
	assert.Equal(t, "a0A000000000001AAA", opp.ExternalID)
	require.Len(t, f.client.queries, 1)
	assert.Contains(t, f.client.queries[0], "External_Key__c = 'C-100-ext-1'")
}

func TestCandidateOpp_UpdateAppliesOnlyGivenParams(t *testing.T) {
	f := newCandidateOppFixture(t)
	job := f.addJob("ext-1", "Backend Engineer")
	f.addCandidate("cand-1", "C-100", "Ada Lovelace")
	f.oppStore.items = append(f.oppStore.items, &models.CandidateOpportunity{
		ID:               "co-1",
		JobOpportunityID: job.ID,
		CandidateID:      "cand-1",
		Stage:            models.CandidateStageProspect,
		NextStep:         "Contact candidate",
	})

	feedback := "Strong technical round"
	opp, err := f.svc.CreateOrUpdateForJob(context.Background(), "cand-1", "ext-1", StageParams{
		Stage:            stagePtr(models.CandidateStageInterview),
		EmployerFeedback: &feedback,
	})
	require.NoError(t, err)

	assert.Equal(t, "co-1", opp.ID, "existing pair is updated, never duplicated")
	assert.Equal(t, models.CandidateStageInterview, opp.Stage)
	assert.Equal(t, "Strong technical round", opp.EmployerFeedback)
	assert.Equal(t, "Contact candidate", opp.NextStep, "untouched fields keep their value")
	assert.Empty(t, f.client.queries, "existing local records skip the remote lookup")
}

func TestCandidateOpp_UnknownCandidateIsInvalidRequest(t *testing.T) {
	f := newCandidateOppFixture(t)
	f.addJob("ext-1", "Backend Engineer")

	_, err := f.svc.CreateOrUpdateForJob(context.Background(), "nope", "ext-1", StageParams{})
	require.Error(t, err)
}

// ==========================================
// STAGE SIDE EFFECT TESTS
// ==========================================

func TestCandidateOpp_EmployedStageTransitionsStatusOnce(t *testing.T) {
	f := newCandidateOppFixture(t)
	f.addJob("ext-1", "Backend Engineer")
	candidate := f.addCandidate("cand-1", "C-100", "Ada Lovelace")

	params := StageParams{Stage: stagePtr(models.CandidateStageEmployed)}

	_, err := f.svc.CreateOrUpdateForJob(context.Background(), "cand-1", "ext-1", params)
	require.NoError(t, err)
	assert.Equal(t, models.CandidateStatusEmployed, candidate.Status)
	assert.Len(t, f.candStore.statusUpdates, 1)
	require.Len(t, f.candStore.statusComments, 1)
	assert.Contains(t, f.candStore.statusComments[0], "Employed")
	assert.Contains(t, f.candStore.statusComments[0], "Backend Engineer")
	assert.Len(t, f.notifier.notes, 1)
	assert.Contains(t, f.notifier.notes[0], "Ada Lovelace|Backend Engineer|Employed")

	// Re-applying the same stage changes nothing.
	_, err = f.svc.CreateOrUpdateForJob(context.Background(), "cand-1", "ext-1", params)
	require.NoError(t, err)
	assert.Len(t, f.candStore.statusUpdates, 1, "status transition is idempotent")
	assert.Len(t, f.notifier.notes, 1, "no repeat notification")
}

func TestCandidateOpp_NotEligibleStageTransitionsStatus(t *testing.T) {
	f := newCandidateOppFixture(t)
	f.addJob("ext-1", "Backend Engineer")
	candidate := f.addCandidate("cand-1", "C-100", "Ada Lovelace")

	_, err := f.svc.CreateOrUpdateForJob(context.Background(), "cand-1", "ext-1", StageParams{
		Stage: stagePtr(models.CandidateStageNotEligible),
	})
	require.NoError(t, err)
	assert.Equal(t, models.CandidateStatusIneligible, candidate.Status)
	assert.Len(t, f.notifier.notes, 1)
}

func TestCandidateOpp_MidPipelineStageHasNoSideEffects(t *testing.T) {
	f := newCandidateOppFixture(t)
	f.addJob("ext-1", "Backend Engineer")
	candidate := f.addCandidate("cand-1", "C-100", "Ada Lovelace")

	_, err := f.svc.CreateOrUpdateForJob(context.Background(), "cand-1", "ext-1", StageParams{
		Stage: stagePtr(models.CandidateStageSubmitted),
	})
	require.NoError(t, err)
	assert.Equal(t, models.CandidateStatusActive, candidate.Status)
	assert.Empty(t, f.candStore.statusUpdates)
	assert.Empty(t, f.notifier.notes)
}

// ==========================================
// PUSH TESTS
// ==========================================

func pushFixtureWithOpps(t *testing.T, n int) *candidateOppFixture {
	t.Helper()
	f := newCandidateOppFixture(t)
	job := f.addJob("ext-1", "Backend Engineer")
	for i := 0; i < n; i++ {
		c := f.addCandidate(fmt.Sprintf("cand-%d", i), fmt.Sprintf("C-%03d", i), fmt.Sprintf("Candidate %d", i))
		f.oppStore.items = append(f.oppStore.items, &models.CandidateOpportunity{
			ID:               fmt.Sprintf("co-%d", i),
			JobOpportunityID: job.ID,
			CandidateID:      c.ID,
			Stage:            models.CandidateStageProspect,
		})
	}
	return f
}

func TestCandidateOpp_PushUpsertsContactsThenOpportunities(t *testing.T) {
	f := pushFixtureWithOpps(t, 3)

	require.NoError(t, f.svc.PushCandidatesToCRM(context.Background(), "ext-1"))

	require.Len(t, f.batcher.calls, 2)
	assert.Equal(t, crm.ObjectContact, f.batcher.calls[0].object)
	assert.Equal(t, crm.ObjectCandidateOpportunity, f.batcher.calls[1].object)
	assert.Len(t, f.batcher.calls[0].records, 3)
	assert.Len(t, f.batcher.calls[1].records, 3)

	// Contact ids from the first batch are persisted and flow into the
	// opportunity payloads.
	assert.Len(t, f.candStore.contactUpdates, 3)
	for _, record := range f.batcher.calls[1].records {
		assert.NotEmpty(t, record["Contact__c"])
	}
}

func TestCandidateOpp_PushPartialFailureContinues(t *testing.T) {
	f := pushFixtureWithOpps(t, 4)
	f.batcher.results = [][]crm.UpsertResult{
		// Contacts: all fine.
		{
			{ID: "ct-0", Success: true}, {ID: "ct-1", Success: true},
			{ID: "ct-2", Success: true}, {ID: "ct-3", Success: true},
		},
		// Opportunities: one rejection among successes.
		{
			{ID: "a0A-0", Success: true, Created: true},
			{Success: false, Errors: []crm.RecordError{{StatusCode: "REQUIRED_FIELD_MISSING", Message: "missing stage"}}},
			{ID: "a0A-2", Success: true, Created: true},
			{ID: "a0A-3", Success: true, Created: true},
		},
	}

	require.NoError(t, f.svc.PushCandidatesToCRM(context.Background(), "ext-1"),
		"per-record rejections never fail the push")

	assert.Equal(t, "a0A-0", f.oppStore.items[0].ExternalID)
	assert.Empty(t, f.oppStore.items[1].ExternalID, "rejected record gets no external id")
	assert.Equal(t, "a0A-2", f.oppStore.items[2].ExternalID)
	assert.Equal(t, "a0A-3", f.oppStore.items[3].ExternalID)
}

func TestCandidateOpp_DuplicateContactAlertsExactlyOnce(t *testing.T) {
	f := pushFixtureWithOpps(t, 2)
	dup := crm.UpsertResult{Success: false, Errors: []crm.RecordError{
		{StatusCode: "DUPLICATES_DETECTED", Message: "duplicate contact"},
	}}
	f.batcher.results = [][]crm.UpsertResult{
		{dup, dup},
		{{Success: true}, {Success: true}},
	}

	require.NoError(t, f.svc.PushCandidatesToCRM(context.Background(), "ext-1"))
	assert.Len(t, f.sender.sent, 1, "duplicate alert fires once per process")

	// A second push with more duplicates stays silent.
	f.batcher.results = [][]crm.UpsertResult{
		{dup, dup},
		{{Success: true}, {Success: true}},
	}
	require.NoError(t, f.svc.PushCandidatesToCRM(context.Background(), "ext-1"))
	assert.Len(t, f.sender.sent, 1)
}

func TestCandidateOpp_PushNoOpportunities(t *testing.T) {
	f := newCandidateOppFixture(t)
	f.addJob("ext-1", "Backend Engineer")

	require.NoError(t, f.svc.PushCandidatesToCRM(context.Background(), "ext-1"))
	assert.Empty(t, f.batcher.calls)
}

// ==========================================
// PULL TESTS
// ==========================================

func TestCandidateOpp_PullDedupesAndChunksJobIDs(t *testing.T) {
	f := newCandidateOppFixture(t)
	f.client.queryFn = func(soql string) (*crm.QueryResult, error) {
		return &crm.QueryResult{Done: true}, nil
	}

	var ids []string
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("ext-%02d", i)
		ids = append(ids, id, id) // every id twice
	}

	f.svc.PullByJobIDs(context.Background(), ids)
	assert.Len(t, f.client.queries, 3, "25 unique ids at chunk size 10 is 3 queries")
}

func TestCandidateOpp_PullAppliesRemoteEdits(t *testing.T) {
	f := newCandidateOppFixture(t)
	job := f.addJob("ext-1", "Backend Engineer")
	candidate := f.addCandidate("cand-1", "C-100", "Ada Lovelace")
	f.oppStore.items = append(f.oppStore.items, &models.CandidateOpportunity{
		ID:               "co-1",
		JobOpportunityID: job.ID,
		CandidateID:      candidate.ID,
		Stage:            models.CandidateStageSubmitted,
	})

	f.client.queryFn = func(soql string) (*crm.QueryResult, error) {
		return &crm.QueryResult{Done: true, Records: []map[string]interface{}{{
			"Id":                    "a0A000000000001AAA",
			"Stage__c":              "Employed",
			"Next_Step__c":          "Onboarding",
			"Next_Step_Due_Date__c": "2026-10-01",
			"Closed__c":             true,
			"Won__c":                true,
			"Opportunity__c":        "ext-1",
			"Contact__r":            map[string]interface{}{"Candidate_Number__c": "C-100"},
		}}}, nil
	}

	f.svc.PullByJobIDs(context.Background(), []string{"ext-1"})

	opp := f.oppStore.items[0]
	assert.Equal(t, "a0A000000000001AAA", opp.ExternalID)
	assert.Equal(t, models.CandidateStageEmployed, opp.Stage)
	assert.Equal(t, "Onboarding", opp.NextStep)
	assert.True(t, opp.Closed)
	assert.True(t, opp.Won)

	// Terminal stage side effects apply on pull too.
	assert.Equal(t, models.CandidateStatusEmployed, candidate.Status)
	assert.Len(t, f.notifier.notes, 1)
}

func TestCandidateOpp_PullVivifiesUnknownJob(t *testing.T) {
	f := newCandidateOppFixture(t)
	f.addCandidate("cand-1", "C-100", "Ada Lovelace")
	f.client.fetchRecords = map[string]map[string]interface{}{
		"Opportunity/ext-new": {"Id": "ext-new", "Name": "Fresh Job", "StageName": "Open"},
	}
	f.client.queryFn = func(soql string) (*crm.QueryResult, error) {
		return &crm.QueryResult{Done: true, Records: []map[string]interface{}{{
			"Id":             "a0A000000000002AAA",
			"Stage__c":       "Prospect",
			"Opportunity__c": "ext-new",
			"Contact__r":     map[string]interface{}{"Candidate_Number__c": "C-100"},
		}}}, nil
	}

	f.svc.PullByJobIDs(context.Background(), []string{"ext-new"})

	assert.Equal(t, 1, f.client.fetchCalls, "unknown job is fetched and cached")
	require.NotNil(t, f.jobStore.byExternalID["ext-new"])
	require.Len(t, f.oppStore.items, 1)
	assert.Equal(t, f.jobStore.byExternalID["ext-new"].ID, f.oppStore.items[0].JobOpportunityID)
}

func TestCandidateOpp_PullSkipsUnresolvableCandidate(t *testing.T) {
	f := newCandidateOppFixture(t)
	f.addJob("ext-1", "Backend Engineer")
	f.client.queryFn = func(soql string) (*crm.QueryResult, error) {
		return &crm.QueryResult{Done: true, Records: []map[string]interface{}{{
			"Id":             "a0A000000000003AAA",
			"Stage__c":       "Interview",
			"Opportunity__c": "ext-1",
			"Contact__r":     map[string]interface{}{"Candidate_Number__c": "C-999"},
		}}}, nil
	}

	f.svc.PullByJobIDs(context.Background(), []string{"ext-1"})
	assert.Empty(t, f.oppStore.items, "records without a local candidate are skipped")
}
