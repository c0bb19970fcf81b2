package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/westonopentrain/capsule-match/internal/apperr"
	"github.com/westonopentrain/capsule-match/pkg/models"
)

// PineconeStore implements Store against the Pinecone REST API. It is the
// production driver named by the PINECONE_* environment variables.
type PineconeStore struct {
	apiKey     string
	host       string
	dimensions int
	client     *http.Client
}

// NewPineconeStore creates a Pinecone-backed vector store. host is the
// index's data-plane host (from PINECONE_HOST, or resolved out-of-band
// from PINECONE_ENV/PINECONE_INDEX).
func NewPineconeStore(apiKey, host string, dimensions int) *PineconeStore {
	return &PineconeStore{
		apiKey:     apiKey,
		host:       host,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *PineconeStore) Kind() string { return "pinecone" }

type pineconeVector struct {
	ID       string                 `json:"id"`
	Values   []float64              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type pineconeUpsertRequest struct {
	Vectors   []pineconeVector `json:"vectors"`
	Namespace string           `json:"namespace,omitempty"`
}

// Upsert writes vectors in a single batch request, retrying transient
// failures per the store adapter's retry policy (§4.1): exponential
// backoff with jitter, at most 3 extra attempts, on 429/5xx/network errors.
func (s *PineconeStore) Upsert(ctx context.Context, namespace string, vectors []Record) error {
	if len(vectors) == 0 {
		return nil
	}
	for _, v := range vectors {
		if len(v.Vector) != s.dimensions {
			return apperr.New(apperr.CodeInvalidVector, fmt.Sprintf("vector %q has dimension %d, want %d", v.ID, len(v.Vector), s.dimensions))
		}
	}

	req := pineconeUpsertRequest{Namespace: namespace}
	for _, v := range vectors {
		req.Vectors = append(req.Vectors, pineconeVector{ID: v.ID, Values: v.Vector, Metadata: v.Metadata})
	}

	return s.doWithRetry(ctx, "upsert", func(ctx context.Context) error {
		_, err := s.post(ctx, "/vectors/upsert", req)
		return err
	})
}

type pineconeFetchResponse struct {
	Vectors map[string]pineconeVector `json:"vectors"`
}

// Fetch retrieves vectors by id. Missing ids are simply absent from the result.
func (s *PineconeStore) Fetch(ctx context.Context, namespace string, ids []string) (map[string]Record, error) {
	if len(ids) == 0 {
		return map[string]Record{}, nil
	}

	var out map[string]Record
	err := s.doWithRetry(ctx, "fetch.job", func(ctx context.Context) error {
		q := "/vectors/fetch?namespace=" + namespace
		for _, id := range ids {
			q += "&ids=" + id
		}
		body, err := s.get(ctx, q)
		if err != nil {
			return err
		}
		var resp pineconeFetchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return apperr.Wrap(apperr.CodeStoreFailure, err, "unmarshal fetch response").WithPhase("fetch.job")
		}
		out = make(map[string]Record, len(resp.Vectors))
		for id, v := range resp.Vectors {
			out[id] = Record{ID: id, Vector: v.Values, Metadata: v.Metadata}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type pineconeQueryRequest struct {
	Vector          []float64              `json:"vector"`
	TopK            int                    `json:"topK"`
	Namespace       string                 `json:"namespace,omitempty"`
	Filter          map[string]interface{} `json:"filter,omitempty"`
	IncludeMetadata bool                   `json:"includeMetadata"`
	IncludeValues   bool                   `json:"includeValues"`
}

type pineconeQueryMatch struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

type pineconeQueryResponse struct {
	Matches []pineconeQueryMatch `json:"matches"`
}

// QueryByVector runs a nearest-neighbor query. The phase tag used on
// failure ("query.domain"/"query.task"/"query") is supplied by the caller
// via req.Filter["section"] when present, falling back to a generic tag.
func (s *PineconeStore) QueryByVector(ctx context.Context, req models.QueryRequest) ([]QueryResult, error) {
	phase := "query"
	if section, ok := req.Filter["section"].(string); ok && section != "" {
		phase = "query." + section
	}

	pineFilter := translateFilter(req.Filter)
	body := pineconeQueryRequest{
		Vector:          req.Vector,
		TopK:            req.TopK,
		Namespace:       req.Namespace,
		Filter:          pineFilter,
		IncludeMetadata: true,
	}

	var results []QueryResult
	err := s.doWithRetry(ctx, phase, func(ctx context.Context) error {
		respBody, err := s.post(ctx, "/query", body)
		if err != nil {
			return err
		}
		var resp pineconeQueryResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return apperr.Wrap(apperr.CodeStoreFailure, err, "unmarshal query response").WithPhase(phase)
		}
		results = make([]QueryResult, 0, len(resp.Matches))
		for _, m := range resp.Matches {
			results = append(results, QueryResult{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

type pineconeUpdateRequest struct {
	ID          string                 `json:"id"`
	SetMetadata map[string]interface{} `json:"setMetadata"`
	Namespace   string                 `json:"namespace,omitempty"`
}

// UpdateMetadata partially patches metadata for each id, one request per
// id (Pinecone's update endpoint is single-vector).
func (s *PineconeStore) UpdateMetadata(ctx context.Context, namespace string, ids []string, patch map[string]interface{}) error {
	for _, id := range ids {
		id := id
		err := s.doWithRetry(ctx, "update_metadata", func(ctx context.Context) error {
			_, err := s.post(ctx, "/vectors/update", pineconeUpdateRequest{ID: id, SetMetadata: patch, Namespace: namespace})
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

type pineconeDeleteRequest struct {
	IDs       []string `json:"ids"`
	Namespace string   `json:"namespace,omitempty"`
}

func (s *PineconeStore) Delete(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.doWithRetry(ctx, "delete", func(ctx context.Context) error {
		_, err := s.post(ctx, "/vectors/delete", pineconeDeleteRequest{IDs: ids, Namespace: namespace})
		return err
	})
}

func (s *PineconeStore) HealthCheck(ctx context.Context) error {
	_, err := s.get(ctx, "/describe_index_stats")
	return err
}

// translateFilter converts the generic QueryFilter into Pinecone's
// metadata-filter shape: []string becomes {"$in": [...]}, any other
// scalar is left as an equality match.
func translateFilter(f models.QueryFilter) map[string]interface{} {
	if len(f) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(f))
	for k, v := range f {
		switch val := v.(type) {
		case []string:
			if len(val) > 0 {
				out[k] = map[string]interface{}{"$in": val}
			}
		default:
			out[k] = v
		}
	}
	return out
}

// transientHTTPError marks status codes the retry policy should retry:
// 429 and 5xx.
type transientHTTPError struct {
	status int
	body   string
}

func (e *transientHTTPError) Error() string {
	return fmt.Sprintf("pinecone returned %d: %s", e.status, e.body)
}

func isTransient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// doWithRetry wraps fn with the store adapter's retry policy: exponential
// backoff with jitter, at most 3 extra attempts, on transient HTTP status
// codes and network-class errors. Non-retryable failures surface
// immediately as STORE_FAILURE tagged with phase.
func (s *PineconeStore) doWithRetry(ctx context.Context, phase string, fn func(context.Context) error) error {
	err := retry.Do(
		func() error { return fn(ctx) },
		retry.Context(ctx),
		retry.Attempts(4), // 1 initial + 3 retries
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.Delay(200*time.Millisecond),
		retry.MaxDelay(1*time.Second),
		retry.RetryIf(func(err error) bool {
			var transient *transientHTTPError
			if asTransient(err, &transient) {
				return isTransient(transient.status)
			}
			return isNetworkError(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Str("phase", phase).Uint("attempt", n+1).Msg("vector store call retrying")
		}),
	)
	if err != nil {
		return apperr.Wrap(apperr.CodeStoreFailure, err, "vector store call failed").WithPhase(phase)
	}
	return nil
}

func asTransient(err error, target **transientHTTPError) bool {
	te, ok := err.(*transientHTTPError)
	if ok {
		*target = te
	}
	return ok
}

func isNetworkError(err error) bool {
	// Any non-HTTP, non-context error reaching here (dial failures,
	// timeouts, connection resets) is treated as a transient network
	// error class per §4.1.
	_, isHTTP := err.(*transientHTTPError)
	return !isHTTP && err != context.Canceled && err != context.DeadlineExceeded
}

func (s *PineconeStore) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.apiKey)
	return s.do(req)
}

func (s *PineconeStore) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.host+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Api-Key", s.apiKey)
	return s.do(req)
}

func (s *PineconeStore) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, &transientHTTPError{status: resp.StatusCode, body: string(respBody)}
	}
	return respBody, nil
}
