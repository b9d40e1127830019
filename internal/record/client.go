// Implements the rate-limited HTTP client for the external record API.

package record

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the record API base URL.
	DefaultBaseURL = "https://api.notion.com/v1"
	// APIVersion is the pinned API version.
	APIVersion = "2022-06-28"

	// requestsPerSecond is the API's documented rate limit.
	requestsPerSecond = 3
	pageSize          = 100
)

// APIError is an error payload returned by the record API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Client is a rate-limited record API client. It implements
// [RelationResolver] and serves as the page fetcher for ingestion.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client for the given base URL and bearer token. An
// empty baseURL uses [DefaultBaseURL].
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// do performs a rate-limited HTTP request.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", APIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if err := json.Unmarshal(respBody, &apiErr); err != nil {
			return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
		}
		return nil, &apiErr
	}

	return respBody, nil
}

// paginated is the common wire shape of paginated API responses.
type paginated[T any] struct {
	Object     string  `json:"object"`
	Results    []T     `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

// page converts the wire shape to a [PageOf].
func (p *paginated[T]) page() PageOf[T] {
	next := ""
	if p.NextCursor != nil {
		next = *p.NextCursor
	}
	return PageOf[T]{Items: p.Results, NextCursor: next, HasMore: p.HasMore}
}

// propertyItem is one item of a paginated property-items response. Only
// relation items are consumed.
type propertyItem struct {
	Object   string         `json:"object"`
	Type     string         `json:"type"`
	Relation *RelationValue `json:"relation,omitempty"`
}

// RelationPage implements [RelationResolver] via the property-items
// endpoint.
func (c *Client) RelationPage(ctx context.Context, recordID, propertyID, cursor string) (PageOf[string], error) {
	path := fmt.Sprintf("/pages/%s/properties/%s?page_size=%d", url.PathEscape(recordID), url.PathEscape(propertyID), pageSize)
	if cursor != "" {
		path += "&start_cursor=" + url.QueryEscape(cursor)
	}

	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return PageOf[string]{}, err
	}

	var resp paginated[propertyItem]
	if err := json.Unmarshal(data, &resp); err != nil {
		return PageOf[string]{}, fmt.Errorf("failed to parse property items response: %w", err)
	}

	out := resp.page()
	ids := make([]string, 0, len(resp.Results))
	for _, item := range resp.Results {
		if item.Relation != nil {
			ids = append(ids, item.Relation.ID)
		}
	}
	return PageOf[string]{Items: ids, NextCursor: out.NextCursor, HasMore: out.HasMore}, nil
}

// queryRequest is the request body for the database query endpoint.
type queryRequest struct {
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

// DatabasePage fetches one page of documents from a source database. It is
// the page fetcher the ingest pipeline iterates with [CollectPages].
func (c *Client) DatabasePage(ctx context.Context, databaseID, cursor string) (PageOf[Document], error) {
	req := &queryRequest{StartCursor: cursor, PageSize: pageSize}
	data, err := c.do(ctx, http.MethodPost, "/databases/"+url.PathEscape(databaseID)+"/query", req)
	if err != nil {
		return PageOf[Document]{}, err
	}

	var resp paginated[Document]
	if err := json.Unmarshal(data, &resp); err != nil {
		return PageOf[Document]{}, fmt.Errorf("failed to parse query response: %w", err)
	}
	return resp.page(), nil
}
