package cli

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	apiv1 "github.com/facilityhub/facility/pkg/api/v1"
	"github.com/facilityhub/facility/pkg/types"
)

// Client talks to the gateway's REST API
type Client struct {
	http *resty.Client
}

// APIError is a non-2xx response from the gateway
type APIError struct {
	StatusCode int
	Key        string
	Message    string
	Fields     []types.FieldError
}

func (e *APIError) Error() string {
	switch {
	case e.Key != "" && e.Message != "":
		return fmt.Sprintf("%s (%s)", e.Message, e.Key)
	case e.Message != "":
		return e.Message
	}
	return http.StatusText(e.StatusCode)
}

// PageInfo carries the pagination headers of a list response
type PageInfo struct {
	Total int64
	Link  string
}

// NewClient creates a client for the gateway at baseURL
func NewClient(baseURL, token string) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")

	if token != "" {
		client.SetAuthToken(token)
	}

	return &Client{http: client}
}

func (c *Client) execute(ctx context.Context, method, path string, query url.Values, body []byte, contentType string, out any) (*resty.Response, error) {
	var errBody apiv1.Response

	req := c.http.R().
		SetContext(ctx).
		SetError(&errBody)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", contentType).SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}

	if resp.IsError() {
		return resp, &APIError{
			StatusCode: resp.StatusCode(),
			Key:        errBody.ErrorKey,
			Message:    errBody.Error,
			Fields:     errBody.Fields,
		}
	}

	return resp, nil
}

// List fetches one page from a collection route
func List[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, *PageInfo, error) {
	var records []T
	resp, err := c.execute(ctx, http.MethodGet, path, query, nil, "", &records)
	if err != nil {
		return nil, nil, err
	}

	info := &PageInfo{Link: resp.Header().Get(apiv1.HeaderLink)}
	if total, err := strconv.ParseInt(resp.Header().Get(apiv1.HeaderTotalCount), 10, 64); err == nil {
		info.Total = total
	}
	return records, info, nil
}

// Get fetches a single record
func Get[T any](ctx context.Context, c *Client, path string) (T, error) {
	var record T
	_, err := c.execute(ctx, http.MethodGet, path, nil, nil, "", &record)
	return record, err
}

// Send writes body with method and decodes the stored record
func Send[T any](ctx context.Context, c *Client, method, path string, body []byte, contentType string) (T, error) {
	var record T
	_, err := c.execute(ctx, method, path, nil, body, contentType, &record)
	return record, err
}

func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.execute(ctx, http.MethodDelete, path, nil, nil, "", nil)
	return err
}

// Health returns the gateway's component status. A failing component is
// reported in the result, not as an error.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var result map[string]any
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&result).
		Get(apiv1.HttpServerBaseRoute + "/health")
	if err != nil {
		return nil, fmt.Errorf("failed to reach gateway: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && result == nil {
		return nil, &APIError{StatusCode: resp.StatusCode()}
	}
	return result, nil
}
