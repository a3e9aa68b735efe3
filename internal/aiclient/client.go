// Package aiclient is the HTTP client for the Isla AI service: chapter
// summaries, question answering, the recommendations feed and progress
// snapshots.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/islabooks/isla/internal/errors"
)

// Service endpoints.
const (
	summaryPath         = "/api/v1/ai/summary"
	qaPath              = "/api/v1/ai/qa"
	recommendationsPath = "/api/v1/recommendations/feed"
	progressPath        = "/api/v1/sync/progress"
)

// defaultRequestRate bounds outbound AI requests. The service throttles
// beyond roughly three concurrent requests per client.
const defaultRequestRate = 3

// Client talks to the AI service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenService
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRequestRate overrides the request rate limit.
func WithRequestRate(perSecond float64, burst int) Option {
	return func(cl *Client) { cl.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// New creates an AI service client. tokens may be nil for unauthenticated
// deployments.
func New(baseURL string, tokens *TokenService, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestRate), defaultRequestRate),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Usage reports token consumption of one AI call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// SummaryRequest asks for a chapter or book summary.
type SummaryRequest struct {
	BookID    string `json:"book_id"`
	ChapterID string `json:"chapter_id,omitempty"`
	Text      string `json:"text"`
	Language  string `json:"language,omitempty"`
}

// SummaryResponse is the AI-generated summary.
type SummaryResponse struct {
	Summary string `json:"summary"`
	Usage   *Usage `json:"usage,omitempty"`
}

// Summarize requests a summary of the given text.
func (c *Client) Summarize(ctx context.Context, req SummaryRequest) (*SummaryResponse, error) {
	body, err := c.postJSON(ctx, summaryPath, req)
	if err != nil {
		return nil, err
	}

	var resp SummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Decode("decode summary response", err)
	}
	return &resp, nil
}

// Recommendation is one entry of the recommendations feed.
type Recommendation struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors,omitempty"`
	Description string   `json:"description,omitempty"`
	Score       float64  `json:"score,omitempty"`
}

// Recommendations fetches a page of the recommendations feed.
func (c *Client) Recommendations(ctx context.Context, feedType string, limit, offset int) ([]Recommendation, error) {
	q := url.Values{}
	if feedType != "" {
		q.Set("type", feedType)
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	body, err := c.request(ctx, http.MethodGet, recommendationsPath+"?"+q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Items []Recommendation `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Decode("decode recommendations feed", err)
	}
	return resp.Items, nil
}

// ProgressSync is a reading progress snapshot for the service.
type ProgressSync struct {
	BookID           string    `json:"book_id"`
	ChapterID        string    `json:"chapter_id,omitempty"`
	Position         float64   `json:"position"`
	TotalReadingTime int64     `json:"total_reading_time"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PushProgress uploads one progress snapshot.
func (c *Client) PushProgress(ctx context.Context, snapshot ProgressSync) error {
	_, err := c.postJSON(ctx, progressPath, snapshot)
	return err
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Internal("marshal request payload", err)
	}
	return c.request(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json")
}

func (c *Client) request(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	resp, err := c.send(ctx, method, path, body, contentType, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Network("read response body", err)
	}
	return respBody, nil
}

// send performs a rate-limited, authenticated request and checks the status
// code. The caller owns the response body.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType, accept string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Internal("build AI request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", accept)

	if c.tokens != nil {
		token, err := c.tokens.Mint()
		if err != nil {
			return nil, errors.Internal("mint AI bearer token", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Network(fmt.Sprintf("%s %s", method, path), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, errors.HTTPStatus(fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode), resp.StatusCode)
	}
	return resp, nil
}
