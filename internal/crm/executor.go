// internal/crm/executor.go
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"recruitsync/internal/common/config"
	"recruitsync/internal/common/errors"
	"recruitsync/internal/common/logger"
	"recruitsync/internal/common/metrics"
)

// Request describes a single outbound CRM call relative to the versioned
// data API base path.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}
}

// Requester executes a raw CRM request. Batcher and the sync services depend
// on this interface rather than the concrete Executor.
type Requester interface {
	Execute(ctx context.Context, req Request) ([]byte, error)
}

// remoteError is the structured error body the CRM attaches to bad-request
// and multiple-choices responses.
type remoteError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

// Executor issues outbound CRM calls with the bounded retry policy: at most
// one retry on transport failure and at most one retry after a credential
// rejection, never more.
type Executor struct {
	basePath      string
	tokens        TokenSource
	httpClient    *http.Client
	retryInterval time.Duration
	logger        logger.Logger
}

func NewExecutor(cfg config.CRMConfig, tokens TokenSource, log logger.Logger) *Executor {
	return &Executor{
		basePath:      cfg.APIPath(),
		tokens:        tokens,
		httpClient:    &http.Client{Timeout: cfg.RequestTimeout},
		retryInterval: cfg.RetryInterval,
		logger:        log.WithFields(map[string]interface{}{"component": "crm-executor"}),
	}
}

// Execute runs one logical CRM call and returns the raw response body for
// the caller to decode.
func (e *Executor) Execute(ctx context.Context, req Request) ([]byte, error) {
	operation := operationLabel(req)
	start := time.Now()
	body, err := e.execute(ctx, req)
	metrics.CRMRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CRMRequestsTotal.WithLabelValues(operation, "error").Inc()
		return nil, err
	}
	metrics.CRMRequestsTotal.WithLabelValues(operation, "success").Inc()
	return body, nil
}

func (e *Executor) execute(ctx context.Context, req Request) ([]byte, error) {
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, errors.NewInvalidRequestError(fmt.Sprintf("marshal request body: %v", err))
		}
	}

	token, err := e.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := e.send(ctx, req, payload, token)
	if err != nil {
		// One fixed-interval retry with the same token.
		metrics.CRMRequestRetries.WithLabelValues("transport").Inc()
		e.logger.Warn("transport failure, retrying once", map[string]interface{}{
			"path":  req.Path,
			"error": err.Error(),
		})
		time.Sleep(e.retryInterval)
		resp, err = e.send(ctx, req, payload, token)
		if err != nil {
			return nil, errors.NewCRMTransportError(err)
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		// One token refresh + retry; a second rejection is surfaced.
		metrics.CRMRequestRetries.WithLabelValues("credential").Inc()
		e.logger.Warn("credential rejected, refreshing token", map[string]interface{}{
			"path": req.Path,
		})
		e.tokens.Invalidate()
		token, err = e.tokens.GetToken(ctx)
		if err != nil {
			return nil, err
		}
		resp, err = e.send(ctx, req, payload, token)
		if err != nil {
			return nil, errors.NewCRMTransportError(err)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			return nil, errors.NewCRMUnauthorizedError(req.Path)
		}
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewCRMTransportError(err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusMultipleChoices:
		return nil, decodeRemoteError(body)
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NewRecordNotFoundError(req.Path, "")
	default:
		return nil, errors.NewCRMTransportError(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)))
	}
}

func (e *Executor) send(ctx context.Context, req Request, payload []byte, token string) (*http.Response, error) {
	u := e.basePath + "/" + strings.TrimPrefix(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	return e.httpClient.Do(httpReq)
}

func decodeRemoteError(body []byte) error {
	var remote []remoteError
	if err := json.Unmarshal(body, &remote); err != nil || len(remote) == 0 {
		return errors.NewCRMRemoteError("UNKNOWN", string(body))
	}
	return errors.NewCRMRemoteError(remote[0].ErrorCode, remote[0].Message)
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func operationLabel(req Request) string {
	segment := req.Path
	if i := strings.IndexByte(segment, '/'); i > 0 {
		segment = segment[:i]
	}
	return req.Method + " " + segment
}

// QueryResult is the decoded shape of a CRM query response.
type QueryResult struct {
	TotalSize int                      `json:"totalSize"`
	Done      bool                     `json:"done"`
	Records   []map[string]interface{} `json:"records"`
}

// RunQuery issues a SELECT-shaped query against the CRM.
func (e *Executor) RunQuery(ctx context.Context, soql string) (*QueryResult, error) {
	q := url.Values{}
	q.Set("q", soql)

	body, err := e.Execute(ctx, Request{Method: http.MethodGet, Path: "query", Query: q})
	if err != nil {
		return nil, err
	}

	var result QueryResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.NewCRMTransportError(fmt.Errorf("decode query response: %w", err))
	}
	return &result, nil
}

// UpsertOne creates or updates a single record keyed by the object's
// external-id field.
func (e *Executor) UpsertOne(ctx context.Context, object, externalIDValue string, fields map[string]interface{}) (*UpsertResult, error) {
	collection, err := CollectionPathFor(object)
	if err != nil {
		return nil, err
	}
	extField, err := ExternalIDFieldFor(object)
	if err != nil {
		return nil, err
	}

	body, err := e.Execute(ctx, Request{
		Method: http.MethodPatch,
		Path:   collection + "/" + extField + "/" + externalIDValue,
		Body:   fields,
	})
	if err != nil {
		return nil, err
	}

	var result UpsertResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.NewCRMTransportError(fmt.Errorf("decode upsert result: %w", err))
	}
	return &result, nil
}

// FetchRecord retrieves a full record by id.
func (e *Executor) FetchRecord(ctx context.Context, object, id string) (map[string]interface{}, error) {
	collection, err := CollectionPathFor(object)
	if err != nil {
		return nil, err
	}

	body, err := e.Execute(ctx, Request{Method: http.MethodGet, Path: collection + "/" + id})
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeRecordNotFound) {
			return nil, errors.NewRecordNotFoundError(object, id)
		}
		return nil, err
	}

	var record map[string]interface{}
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, errors.NewCRMTransportError(fmt.Errorf("decode record: %w", err))
	}
	return record, nil
}
