package d1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/store"
)

// DefaultAPIBaseURL is the Cloudflare v4 API root.
const DefaultAPIBaseURL = "https://api.cloudflare.com/client/v4"

var _ Executor = (*HTTPClient)(nil)

// HTTPClient executes statements through the D1 REST query endpoint.
type HTTPClient struct {
	baseURL    string
	accountID  string
	databaseID string
	apiToken   string
	httpClient *http.Client
}

// HTTPClientOption customizes an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithBaseURL points the client at a different API root (tests, proxies).
func WithBaseURL(u string) HTTPClientOption {
	return func(c *HTTPClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) HTTPClientOption {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// NewHTTPClient creates a D1 REST client for one database.
func NewHTTPClient(accountID, databaseID, apiToken string, timeout time.Duration, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    DefaultAPIBaseURL,
		accountID:  accountID,
		databaseID: databaseID,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type queryRequest struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type queryResult struct {
	Results []Row `json:"results"`
	Success bool  `json:"success"`
	Meta    struct {
		Changes  int64   `json:"changes"`
		Duration float64 `json:"duration"`
	} `json:"meta"`
}

type queryResponse struct {
	Result   []queryResult `json:"result"`
	Success  bool          `json:"success"`
	Errors   []apiMessage  `json:"errors"`
	Messages []apiMessage  `json:"messages"`
}

// APIError is a failure reported by the D1 API.
type APIError struct {
	StatusCode int
	Messages   []apiMessage
}

func (e *APIError) Error() string {
	parts := make([]string, 0, len(e.Messages))
	for _, m := range e.Messages {
		parts = append(parts, fmt.Sprintf("%d: %s", m.Code, m.Message))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("d1 api error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("d1 api error (status %d): %s", e.StatusCode, strings.Join(parts, "; "))
}

func (e *APIError) Is(target error) bool {
	if target == store.ErrConflict {
		for _, m := range e.Messages {
			if isUniqueViolation(m.Message) {
				return true
			}
		}
	}
	if target == store.ErrUnavailable {
		return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

func (c *HTTPClient) Query(ctx context.Context, sql string, params ...any) ([]Row, error) {
	results, err := c.do(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	var rows []Row
	for _, r := range results {
		rows = append(rows, r.Results...)
	}
	return rows, nil
}

func (c *HTTPClient) Exec(ctx context.Context, sql string, params ...any) (int64, error) {
	results, err := c.do(ctx, sql, params)
	if err != nil {
		return 0, err
	}
	var changes int64
	for _, r := range results {
		changes += r.Meta.Changes
	}
	return changes, nil
}

func (c *HTTPClient) endpoint() string {
	return fmt.Sprintf("%s/accounts/%s/d1/database/%s/query", c.baseURL, c.accountID, c.databaseID)
}

func (c *HTTPClient) do(ctx context.Context, sql string, params []any) ([]queryResult, error) {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(queryRequest{SQL: sql, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to encode d1 query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build d1 request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("d1 request: %w", ctxErr)
		}
		return nil, fmt.Errorf("d1 request: %w: %v", store.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("d1 response: %w: %v", store.ErrUnavailable, err)
	}

	logger.GetLogger().Debugw("D1 query executed",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	var decoded queryResponse
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{StatusCode: resp.StatusCode, Messages: []apiMessage{{Message: truncate(string(raw), 200)}}}
		}
		return nil, fmt.Errorf("failed to decode d1 response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest || !decoded.Success {
		return nil, &APIError{StatusCode: resp.StatusCode, Messages: decoded.Errors}
	}
	for _, r := range decoded.Result {
		if !r.Success {
			return nil, &APIError{StatusCode: resp.StatusCode, Messages: []apiMessage{{Message: "statement failed"}}}
		}
	}
	return decoded.Result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
