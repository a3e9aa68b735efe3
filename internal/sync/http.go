package sync

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/islabooks/isla/internal/domain"
	"github.com/islabooks/isla/internal/errors"
)

// progressSyncPath is the server endpoint for record snapshots.
const progressSyncPath = "/api/v1/sync/progress"

// HTTPRecordStore talks to a remote record service over HTTP.
type HTTPRecordStore struct {
	baseURL    string
	httpClient *http.Client
	// tokenSource mints a bearer token per request. Optional.
	tokenSource func(ctx context.Context) (string, error)
}

// HTTPOption configures an HTTPRecordStore.
type HTTPOption func(*HTTPRecordStore)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPRecordStore) { s.httpClient = c }
}

// WithTokenSource sets the bearer token minting function.
func WithTokenSource(fn func(ctx context.Context) (string, error)) HTTPOption {
	return func(s *HTTPRecordStore) { s.tokenSource = fn }
}

// NewHTTPRecordStore creates a record store client against baseURL.
func NewHTTPRecordStore(baseURL string, opts ...HTTPOption) *HTTPRecordStore {
	s := &HTTPRecordStore{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save implements RecordStore by posting the record snapshot.
func (s *HTTPRecordStore) Save(ctx context.Context, rec Record) (Record, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return Record{}, errors.Internal("marshal sync record", err)
	}

	respBody, err := s.do(ctx, http.MethodPost, progressSyncPath, nil, bytes.NewReader(body))
	if err != nil {
		return Record{}, err
	}

	var saved Record
	if err := json.Unmarshal(respBody, &saved); err != nil {
		return Record{}, errors.Decode("decode saved sync record", err)
	}
	return saved, nil
}

// Query implements RecordStore. The server returns records newest-first.
func (s *HTTPRecordStore) Query(ctx context.Context, kind domain.RecordKind) ([]Record, error) {
	q := url.Values{"kind": {string(kind)}}
	respBody, err := s.do(ctx, http.MethodGet, progressSyncPath, q, nil)
	if err != nil {
		return nil, err
	}

	var recs []Record
	if err := json.Unmarshal(respBody, &recs); err != nil {
		return nil, errors.Decode("decode sync records", err)
	}
	return recs, nil
}

// DeleteAll implements RecordStore.
func (s *HTTPRecordStore) DeleteAll(ctx context.Context, kind domain.RecordKind) error {
	q := url.Values{"kind": {string(kind)}}
	_, err := s.do(ctx, http.MethodDelete, progressSyncPath, q, nil)
	return err
}

func (s *HTTPRecordStore) do(ctx context.Context, method, path string, query url.Values, body io.Reader) ([]byte, error) {
	u := s.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.Internal("build sync request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if s.tokenSource != nil {
		token, err := s.tokenSource(ctx)
		if err != nil {
			return nil, errors.Internal("mint sync token", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Network(fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Network("read sync response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.HTTPStatus(fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode), resp.StatusCode)
	}
	return respBody, nil
}
