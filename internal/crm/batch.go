// internal/crm/batch.go
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"recruitsync/internal/common/errors"
	"recruitsync/internal/common/logger"
	"recruitsync/internal/common/metrics"
)

// MaxBatchSize is the composite endpoint's per-call record cap. Callers are
// expected to chunk above this; the batcher rejects oversized inputs before
// any network traffic.
const MaxBatchSize = 200

// RecordError is a per-record failure reported by the composite endpoint.
type RecordError struct {
	StatusCode string   `json:"statusCode"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields"`
}

// UpsertResult is the outcome for one record, positionally aligned with the
// submitted batch.
type UpsertResult struct {
	ID      string        `json:"id"`
	Success bool          `json:"success"`
	Created bool          `json:"created"`
	Errors  []RecordError `json:"errors"`
}

// Batcher submits record batches to the CRM composite upsert endpoint with
// independent per-record outcomes.
type Batcher struct {
	requester Requester
	logger    logger.Logger
}

func NewBatcher(requester Requester, log logger.Logger) *Batcher {
	return &Batcher{
		requester: requester,
		logger:    log.WithFields(map[string]interface{}{"component": "crm-batch"}),
	}
}

type compositeUpsertBody struct {
	AllOrNone bool                     `json:"allOrNone"`
	Records   []map[string]interface{} `json:"records"`
}

// UpsertBatch submits up to MaxBatchSize records for upsert on the object's
// external-id field. One record's failure never blocks the others; results
// come back in submission order so callers can apply them positionally.
func (b *Batcher) UpsertBatch(ctx context.Context, object string, records []map[string]interface{}) ([]UpsertResult, error) {
	if _, err := CollectionPathFor(object); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	if len(records) > MaxBatchSize {
		return nil, errors.NewBatchTooLargeError(len(records), MaxBatchSize)
	}

	extField, err := ExternalIDFieldFor(object)
	if err != nil {
		return nil, err
	}

	// The composite endpoint requires each record to carry its object type.
	tagged := make([]map[string]interface{}, len(records))
	for i, rec := range records {
		clone := make(map[string]interface{}, len(rec)+1)
		for k, v := range rec {
			clone[k] = v
		}
		clone["attributes"] = map[string]interface{}{"type": object}
		tagged[i] = clone
	}

	body, err := b.requester.Execute(ctx, Request{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("composite/sobjects/%s/%s", object, extField),
		Body:   compositeUpsertBody{AllOrNone: false, Records: tagged},
	})
	if err != nil {
		return nil, err
	}

	var results []UpsertResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, errors.NewCRMTransportError(fmt.Errorf("decode upsert results: %w", err))
	}
	if len(results) != len(records) {
		return nil, errors.NewResultCountMismatchError(len(records), len(results))
	}

	for _, r := range results {
		outcome := "success"
		if !r.Success {
			outcome = "failure"
		}
		metrics.SyncRecordsTotal.WithLabelValues(object, outcome).Inc()
	}

	return results, nil
}
