// internal/crm/batch_test.go
package crm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruitsync/internal/common/errors"
	"recruitsync/internal/common/logger"
)

// ==========================================
// FAKES
// ==========================================

type fakeRequester struct {
	calls    int
	lastReq  Request
	response []byte
	err      error
}

func (f *fakeRequester) Execute(ctx context.Context, req Request) ([]byte, error) {
	f.calls++
	f.lastReq = req
	return f.response, f.err
}

func mustResults(t *testing.T, results []UpsertResult) []byte {
	t.Helper()
	raw, err := json.Marshal(results)
	require.NoError(t, err)
	return raw
}

// ==========================================
// BATCH VALIDATION TESTS
// ==========================================

func TestBatcher_RejectsOversizedBatchBeforeNetwork(t *testing.T) {
	requester := &fakeRequester{}
	batcher := NewBatcher(requester, logger.NewNoOpLogger())

	records := make([]map[string]interface{}, MaxBatchSize+1)
	for i := range records {
		records[i] = map[string]interface{}{"Name": "job"}
	}

	_, err := batcher.UpsertBatch(context.Background(), ObjectCandidateOpportunity, records)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeBatchTooLarge))
	assert.Equal(t, 0, requester.calls, "oversized batch must never reach the wire")
}

func TestBatcher_RejectsUnknownObject(t *testing.T) {
	requester := &fakeRequester{}
	batcher := NewBatcher(requester, logger.NewNoOpLogger())

	_, err := batcher.UpsertBatch(context.Background(), "Widget__c", []map[string]interface{}{{"Name": "x"}})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownObject))
	assert.Equal(t, 0, requester.calls)
}

func TestBatcher_EmptyBatchIsANoOp(t *testing.T) {
	requester := &fakeRequester{}
	batcher := NewBatcher(requester, logger.NewNoOpLogger())

	results, err := batcher.UpsertBatch(context.Background(), ObjectContact, nil)
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Equal(t, 0, requester.calls)
}

// ==========================================
// SUBMISSION AND RESULT TESTS
// ==========================================

func TestBatcher_TagsRecordsAndTargetsExternalIDField(t *testing.T) {
	requester := &fakeRequester{response: mustResults(t, []UpsertResult{
		{ID: "003000000000001AAA", Success: true, Created: true},
	})}
	batcher := NewBatcher(requester, logger.NewNoOpLogger())

	_, err := batcher.UpsertBatch(context.Background(), ObjectContact, []map[string]interface{}{
		{"Candidate_Number__c": "C-100", "Email": "a@example.org"},
	})
	require.NoError(t, err)

	assert.Equal(t, "PATCH", requester.lastReq.Method)
	assert.Equal(t, "composite/sobjects/Contact/Candidate_Number__c", requester.lastReq.Path)

	body, ok := requester.lastReq.Body.(compositeUpsertBody)
	require.True(t, ok)
	assert.False(t, body.AllOrNone)
	require.Len(t, body.Records, 1)
	assert.Equal(t, map[string]interface{}{"type": ObjectContact}, body.Records[0]["attributes"])
	assert.Equal(t, "C-100", body.Records[0]["Candidate_Number__c"])
}

func TestBatcher_DoesNotMutateCallerRecords(t *testing.T) {
	requester := &fakeRequester{response: mustResults(t, []UpsertResult{{Success: true}})}
	batcher := NewBatcher(requester, logger.NewNoOpLogger())

	record := map[string]interface{}{"Name": "Backend Engineer"}
	_, err := batcher.UpsertBatch(context.Background(), ObjectOpportunity, []map[string]interface{}{record})
	require.NoError(t, err)
	assert.NotContains(t, record, "attributes")
}

func TestBatcher_PartialFailureKeepsPositionalResults(t *testing.T) {
	requester := &fakeRequester{response: mustResults(t, []UpsertResult{
		{ID: "a0A000000000001AAA", Success: true, Created: true},
		{Success: false, Errors: []RecordError{{StatusCode: "REQUIRED_FIELD_MISSING", Message: "missing stage"}}},
		{ID: "a0A000000000003AAA", Success: true, Created: false},
	})}
	batcher := NewBatcher(requester, logger.NewNoOpLogger())

	records := []map[string]interface{}{
		{"External_Key__c": "C-1-J-1"},
		{"External_Key__c": "C-2-J-1"},
		{"External_Key__c": "C-3-J-1"},
	}
	results, err := batcher.UpsertBatch(context.Background(), ObjectCandidateOpportunity, records)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	require.Len(t, results[1].Errors, 1)
	assert.Equal(t, "REQUIRED_FIELD_MISSING", results[1].Errors[0].StatusCode)
	assert.True(t, results[2].Success)
	assert.False(t, results[2].Created)
}

func TestBatcher_ResultCountMismatchIsFatal(t *testing.T) {
	requester := &fakeRequester{response: mustResults(t, []UpsertResult{{Success: true}})}
	batcher := NewBatcher(requester, logger.NewNoOpLogger())

	records := []map[string]interface{}{
		{"External_Key__c": "C-1-J-1"},
		{"External_Key__c": "C-2-J-1"},
	}
	_, err := batcher.UpsertBatch(context.Background(), ObjectCandidateOpportunity, records)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeResultCountMismatch))
}
