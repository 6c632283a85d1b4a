package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/logger"
	"github.com/hashicorp/go-retryablehttp"
)

const fullListBatch = 200

var ErrNotFound = errors.New("pocketbase: record not found")

// APIError is a non-2xx response from the record store.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pocketbase: status %d: %s", e.Status, e.Message)
}

// Record is a single collection record as returned by the API.
type Record map[string]any

func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (r Record) Int(key string) int {
	switch v := r[key].(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

func (r Record) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Time parses one of the API's datetime fields.
func (r Record) Time(key string) time.Time {
	s := r.String(key)
	for _, layout := range []string{"2006-01-02 15:04:05.000Z", "2006-01-02 15:04:05Z", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type ListOptions struct {
	Page    int
	PerPage int
	Filter  string
	Sort    string
}

type ListResult struct {
	Page       int      `json:"page"`
	PerPage    int      `json:"perPage"`
	TotalItems int      `json:"totalItems"`
	TotalPages int      `json:"totalPages"`
	Items      []Record `json:"items"`
}

type AuthResult struct {
	Token  string `json:"token"`
	Record Record `json:"record"`
}

// Client talks to a PocketBase-compatible record API. Reads are retried;
// requests that create or change data go out once, since a write whose
// response was lost may already have been applied.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
	once    *retryablehttp.Client
}

func New(baseURL, token string) *Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = leveledLogger{}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	once := retryablehttp.NewClient()
	once.HTTPClient = client.HTTPClient
	once.Logger = leveledLogger{}
	once.CheckRetry = noRetry
	once.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: client, once: once}
}

func noRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	return false, nil
}

// retryable reports whether sending the request twice has the same effect as
// sending it once. Password auth and token refresh only read.
func retryable(method, path string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		return true
	case http.MethodPost:
		return strings.HasSuffix(path, "/auth-with-password") || strings.HasSuffix(path, "/auth-refresh")
	}
	return false
}

// SetRetry tunes the retry policy for reads.
func (c *Client) SetRetry(max int, waitMin, waitMax time.Duration) {
	c.http.RetryMax = max
	c.http.RetryWaitMin = waitMin
	c.http.RetryWaitMax = waitMax
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Quote renders a string literal for use inside a filter expression.
func Quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func (c *Client) List(ctx context.Context, collection string, opts ListOptions) (*ListResult, error) {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		q.Set("perPage", strconv.Itoa(opts.PerPage))
	}
	if opts.Filter != "" {
		q.Set("filter", opts.Filter)
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}

	var result ListResult
	if err := c.do(ctx, http.MethodGet, recordsPath(collection)+"?"+q.Encode(), "", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FullList pages through every record matching opts.
func (c *Client) FullList(ctx context.Context, collection string, opts ListOptions) ([]Record, error) {
	opts.PerPage = fullListBatch
	records := []Record{}
	for page := 1; ; page++ {
		opts.Page = page
		result, err := c.List(ctx, collection, opts)
		if err != nil {
			return nil, err
		}
		records = append(records, result.Items...)
		if len(result.Items) < fullListBatch || page >= result.TotalPages {
			return records, nil
		}
	}
}

func (c *Client) GetOne(ctx context.Context, collection, id string) (Record, error) {
	var r Record
	if err := c.do(ctx, http.MethodGet, recordsPath(collection)+"/"+url.PathEscape(id), "", nil, &r); err != nil {
		return nil, err
	}
	return r, nil
}

// First returns the first record matching filter, or ErrNotFound.
func (c *Client) First(ctx context.Context, collection, filter string) (Record, error) {
	result, err := c.List(ctx, collection, ListOptions{Page: 1, PerPage: 1, Filter: filter})
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, ErrNotFound
	}
	return result.Items[0], nil
}

func (c *Client) Create(ctx context.Context, collection string, data Record) (Record, error) {
	var r Record
	if err := c.do(ctx, http.MethodPost, recordsPath(collection), "", data, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) Update(ctx context.Context, collection, id string, data Record) (Record, error) {
	var r Record
	if err := c.do(ctx, http.MethodPatch, recordsPath(collection)+"/"+url.PathEscape(id), "", data, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.do(ctx, http.MethodDelete, recordsPath(collection)+"/"+url.PathEscape(id), "", nil, nil)
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", "", nil, nil)
}

func (c *Client) AuthWithPassword(ctx context.Context, collection, identity, password string) (*AuthResult, error) {
	var result AuthResult
	body := map[string]string{"identity": identity, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/collections/"+url.PathEscape(collection)+"/auth-with-password", "", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AuthRefresh validates token and returns the record it belongs to.
func (c *Client) AuthRefresh(ctx context.Context, collection, token string) (*AuthResult, error) {
	var result AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/collections/"+url.PathEscape(collection)+"/auth-refresh", token, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateAs patches a record with the caller's own auth token instead of the
// client's, which the API requires for password changes.
func (c *Client) UpdateAs(ctx context.Context, collection, id, token string, data Record) (Record, error) {
	var r Record
	if err := c.do(ctx, http.MethodPatch, recordsPath(collection)+"/"+url.PathEscape(id), token, data, &r); err != nil {
		return nil, err
	}
	return r, nil
}

// RequestPasswordReset asks the API to mail a reset link. The API answers the
// same whether or not the address belongs to an account.
func (c *Client) RequestPasswordReset(ctx context.Context, collection, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/api/collections/"+url.PathEscape(collection)+"/request-password-reset", "", body, nil)
}

func (c *Client) ConfirmPasswordReset(ctx context.Context, collection, token, password, passwordConfirm string) error {
	body := map[string]string{"token": token, "password": password, "passwordConfirm": passwordConfirm}
	return c.do(ctx, http.MethodPost, "/api/collections/"+url.PathEscape(collection)+"/confirm-password-reset", "", body, nil)
}

func recordsPath(collection string) string {
	return "/api/collections/" + url.PathEscape(collection) + "/records"
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "sportsmeet/1.0")
	if token == "" {
		token = c.token
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	client := c.once
	if retryable(method, path) {
		client = c.http
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Message}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// leveledLogger routes retryablehttp logs into the application logger.
type leveledLogger struct{}

func (leveledLogger) Error(msg string, kv ...interface{}) {
	logger.Errorf("pocketbase: %s %v", msg, kv)
}
func (leveledLogger) Warn(msg string, kv ...interface{}) {
	logger.Warningf("pocketbase: %s %v", msg, kv)
}
func (leveledLogger) Info(msg string, kv ...interface{})  {}
func (leveledLogger) Debug(msg string, kv ...interface{}) {}
