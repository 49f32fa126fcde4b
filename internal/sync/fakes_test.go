// internal/sync/fakes_test.go
package sync

import (
	"context"
	"fmt"
	"strings"

	"recruitsync/internal/common/errors"
	"recruitsync/internal/crm"
	"recruitsync/internal/models"
)

// fakeCRM answers queries through a caller-supplied function and record
// fetches from a fixed map.
type fakeCRM struct {
	queries      []string
	queryFn      func(soql string) (*crm.QueryResult, error)
	fetchCalls   int
	fetchRecords map[string]map[string]interface{}
}

func (f *fakeCRM) RunQuery(ctx context.Context, soql string) (*crm.QueryResult, error) {
	f.queries = append(f.queries, soql)
	if f.queryFn != nil {
		return f.queryFn(soql)
	}
	return &crm.QueryResult{Done: true}, nil
}

func (f *fakeCRM) FetchRecord(ctx context.Context, object, id string) (map[string]interface{}, error) {
	f.fetchCalls++
	if record, ok := f.fetchRecords[object+"/"+id]; ok {
		return record, nil
	}
	return nil, errors.NewRecordNotFoundError(object, id)
}

// fakeBatcher records submitted batches and answers from a result queue; when
// the queue is exhausted every record succeeds with a generated id.
type fakeBatcher struct {
	calls   []batchCall
	results [][]crm.UpsertResult
	err     error
}

type batchCall struct {
	object  string
	records []map[string]interface{}
}

func (f *fakeBatcher) UpsertBatch(ctx context.Context, object string, records []map[string]interface{}) ([]crm.UpsertResult, error) {
	f.calls = append(f.calls, batchCall{object: object, records: records})
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > 0 {
		next := f.results[0]
		f.results = f.results[1:]
		return next, nil
	}
	out := make([]crm.UpsertResult, len(records))
	for i := range records {
		out[i] = crm.UpsertResult{ID: fmt.Sprintf("gen-%03d", i), Success: true, Created: true}
	}
	return out, nil
}

// ---- in-memory stores ----

type memJobStore struct {
	byExternalID map[string]*models.JobOpportunity
	saves        int
	nextID       int
}

func newMemJobStore(jobs ...*models.JobOpportunity) *memJobStore {
	s := &memJobStore{byExternalID: map[string]*models.JobOpportunity{}}
	for _, j := range jobs {
		s.byExternalID[j.ExternalID] = j
	}
	return s
}

func (s *memJobStore) FindByExternalID(ctx context.Context, externalID string) (*models.JobOpportunity, error) {
	return s.byExternalID[externalID], nil
}

func (s *memJobStore) Save(ctx context.Context, job *models.JobOpportunity) error {
	if job.ID == "" {
		s.nextID++
		job.ID = fmt.Sprintf("job-%d", s.nextID)
	}
	s.byExternalID[job.ExternalID] = job
	s.saves++
	return nil
}

func (s *memJobStore) ListOpen(ctx context.Context) ([]*models.JobOpportunity, error) {
	var open []*models.JobOpportunity
	for _, j := range s.byExternalID {
		if j.Stage != models.JobStageClosed && j.Stage != models.JobStageFilled {
			open = append(open, j)
		}
	}
	return open, nil
}

type memOppStore struct {
	items []*models.CandidateOpportunity
	saves int
}

func (s *memOppStore) FindByCandidateAndJob(ctx context.Context, candidateID, jobOpportunityID string) (*models.CandidateOpportunity, error) {
	for _, o := range s.items {
		if o.CandidateID == candidateID && o.JobOpportunityID == jobOpportunityID {
			return o, nil
		}
	}
	return nil, nil
}

func (s *memOppStore) ListByJob(ctx context.Context, jobOpportunityID string) ([]*models.CandidateOpportunity, error) {
	var out []*models.CandidateOpportunity
	for _, o := range s.items {
		if o.JobOpportunityID == jobOpportunityID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memOppStore) Save(ctx context.Context, opp *models.CandidateOpportunity) error {
	s.saves++
	if opp.ID == "" {
		opp.ID = fmt.Sprintf("co-%d", len(s.items)+1)
		s.items = append(s.items, opp)
		return nil
	}
	for i, o := range s.items {
		if o.ID == opp.ID {
			s.items[i] = opp
			return nil
		}
	}
	s.items = append(s.items, opp)
	return nil
}

type memCandidateStore struct {
	candidates     []*models.Candidate
	statusUpdates  []string
	statusComments []string
	contactUpdates []string
}

func (s *memCandidateStore) FindByID(ctx context.Context, id string) (*models.Candidate, error) {
	for _, c := range s.candidates {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (s *memCandidateStore) FindByNumber(ctx context.Context, number string) (*models.Candidate, error) {
	for _, c := range s.candidates {
		if c.Number == number {
			return c, nil
		}
	}
	return nil, nil
}

func (s *memCandidateStore) UpdateContactExternalID(ctx context.Context, id, contactExternalID string) error {
	s.contactUpdates = append(s.contactUpdates, id+"="+contactExternalID)
	for _, c := range s.candidates {
		if c.ID == id {
			c.ContactExternalID = contactExternalID
		}
	}
	return nil
}

func (s *memCandidateStore) UpdateStatus(ctx context.Context, id string, status models.CandidateStatus, comment string) error {
	s.statusUpdates = append(s.statusUpdates, id+"="+string(status))
	s.statusComments = append(s.statusComments, comment)
	for _, c := range s.candidates {
		if c.ID == id {
			c.Status = status
			c.StatusComment = comment
		}
	}
	return nil
}

type memCountryStore struct {
	byName map[string]*models.Country
}

func (s *memCountryStore) FindByName(ctx context.Context, name string) (*models.Country, error) {
	return s.byName[name], nil
}

// ---- alert capture ----

type capturingSender struct {
	sent []string
}

func (s *capturingSender) Send(ctx context.Context, subject, message string) error {
	s.sent = append(s.sent, subject+": "+message)
	return nil
}

type capturingNotifier struct {
	notes []string
}

func (n *capturingNotifier) StageChangeNote(ctx context.Context, candidateName, jobName, stage string) error {
	n.notes = append(n.notes, strings.Join([]string{candidateName, jobName, stage}, "|"))
	return nil
}
