// Package remote is the HTTP transport for the Redmine REST API. It builds
// filtered and paginated query URLs, performs GET/POST/PUT/DELETE with
// JSON bodies and hands raw JSON records back to the caller. It holds no
// business logic.
package remote

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

	"github.com/nhle/redtime/internal/logger"
	"github.com/nhle/redtime/internal/model"
)

var log = logger.For("remote")

// PageSize is the limit sent with every paginated request.
const PageSize = 100

// Auditor journals mutating calls. RecordMutation runs before the request
// is attempted and returns an id passed to CompleteMutation afterwards.
type Auditor interface {
	RecordMutation(ctx context.Context, m model.Mutation) (string, error)
	CompleteMutation(ctx context.Context, id string, status int, errMsg string) error
}

// Config holds everything the client needs. It is passed explicitly;
// the client reads no process-wide settings.
type Config struct {
	BaseURL  string
	APIKey   string
	ReadOnly bool

	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client

	// Auditor is optional.
	Auditor Auditor
}

// Client is a thin HTTP client for the Redmine REST API. It authenticates
// with a static key sent as a query parameter and never retries.
type Client struct {
	baseURL    string
	apiKey     string
	readOnly   bool
	httpClient *http.Client
	auditor    Auditor
}

// NewClient creates a Redmine client from cfg.
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		readOnly:   cfg.ReadOnly,
		httpClient: hc,
		auditor:    cfg.Auditor,
	}
}

// ReadOnly reports whether mutating calls are short-circuited.
func (c *Client) ReadOnly() bool {
	return c.readOnly
}

// Result is the outcome of a mutating call.
type Result struct {
	Status int

	// Record is the entity returned by a create, unwrapped from its
	// envelope. It is nil for updates, deletes and dry runs.
	Record json.RawMessage

	// DryRun is set when the client is read-only and nothing was sent.
	DryRun bool
}

// PaginatedGet fetches every record matching q, one page of PageSize at
// a time, and returns the concatenated elements of each page's array.
// It stops once the reported total_count is covered, or early when the
// server returns an empty page.
func (c *Client) PaginatedGet(ctx context.Context, q *Query) ([]json.RawMessage, error) {
	var all []json.RawMessage

	for {
		params := q.Values()
		params.Set("limit", strconv.Itoa(PageSize))
		params.Set("offset", strconv.Itoa(len(all)))

		body, err := c.get(ctx, q.Resource.Path, params)
		if err != nil {
			return nil, err
		}

		items, total, err := decodePage(q.Resource, body)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)

		log.Debug("%s page offset=%s got %d, %d/%d collected",
			q.Resource.Path, params.Get("offset"), len(items), len(all), total)

		if total <= len(all) {
			return all, nil
		}
		if len(items) == 0 {
			log.Warn("%s reported total_count %d but returned an empty page at offset %d; stopping",
				q.Resource.Path, total, len(all))
			return all, nil
		}
	}
}

func decodePage(res Resource, body []byte) ([]json.RawMessage, int, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, 0, &ParseError{Resource: res.Path, Err: err}
	}

	rawItems, ok := envelope[res.Path]
	if !ok {
		return nil, 0, &ParseError{Resource: res.Path, Err: fmt.Errorf("missing %q array", res.Path)}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return nil, 0, &ParseError{Resource: res.Path, Err: err}
	}

	total := len(items)
	if rawTotal, ok := envelope["total_count"]; ok {
		if err := json.Unmarshal(rawTotal, &total); err != nil {
			return nil, 0, &ParseError{Resource: res.Path, Err: fmt.Errorf("total_count: %w", err)}
		}
	}
	return items, total, nil
}

// GetOne fetches a single record, e.g. GET issues/42.json?include=journals,
// and returns it unwrapped from its envelope.
func (c *Client) GetOne(ctx context.Context, res Resource, id int, params url.Values) (json.RawMessage, error) {
	if params == nil {
		params = url.Values{}
	}
	body, err := c.get(ctx, fmt.Sprintf("%s/%d", res.Path, id), params)
	if err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ParseError{Resource: res.Path, Err: err}
	}
	record, ok := envelope[res.Key]
	if !ok {
		return nil, &ParseError{Resource: res.Path, Err: fmt.Errorf("missing %q object", res.Key)}
	}
	return record, nil
}

// Create POSTs body wrapped in the resource envelope. Success is 201.
func (c *Client) Create(ctx context.Context, res Resource, body any) (*Result, error) {
	return c.mutate(ctx, model.OpCreate, http.MethodPost, res, nil, body, http.StatusCreated)
}

// Update PUTs body to the record id. Success is 200; 204 is accepted too.
func (c *Client) Update(ctx context.Context, res Resource, id int, body any) (*Result, error) {
	return c.mutate(ctx, model.OpUpdate, http.MethodPut, res, &id, body, http.StatusOK, http.StatusNoContent)
}

// Delete removes the record id. Success is 200; 204 is accepted too.
func (c *Client) Delete(ctx context.Context, res Resource, id int) (*Result, error) {
	return c.mutate(ctx, model.OpDelete, http.MethodDelete, res, &id, nil, http.StatusOK, http.StatusNoContent)
}

func (c *Client) mutate(
	ctx context.Context,
	op string,
	method string,
	res Resource,
	id *int,
	body any,
	expected ...int,
) (*Result, error) {
	path := res.Path
	if id != nil {
		path = fmt.Sprintf("%s/%d", res.Path, *id)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(map[string]any{res.Key: body})
		if err != nil {
			return nil, fmt.Errorf("marshaling %s payload: %w", res.Key, err)
		}
	}

	marker := ""
	if c.readOnly {
		marker = " [read-only]"
	}
	log.Info("%s %s %s%s", op, path, payload, marker)
	auditID := c.record(ctx, model.Mutation{
		Resource:  res.Path,
		Operation: op,
		RemoteID:  id,
		Payload:   string(payload),
		DryRun:    c.readOnly,
	})

	if c.readOnly {
		c.complete(ctx, auditID, expected[0], nil)
		return &Result{Status: expected[0], DryRun: true}, nil
	}

	status, respBody, err := c.do(ctx, method, path, url.Values{}, payload)
	if err != nil {
		c.complete(ctx, auditID, 0, err)
		return nil, err
	}

	if !containsStatus(expected, status) {
		uploadErr := &UploadError{
			Resource:  res.Path,
			Operation: op,
			ID:        id,
			Status:    status,
			Payload:   string(payload),
			Body:      strings.TrimSpace(string(respBody)),
		}
		c.complete(ctx, auditID, status, uploadErr)
		return nil, uploadErr
	}
	c.complete(ctx, auditID, status, nil)

	result := &Result{Status: status}
	if op == model.OpCreate && len(respBody) > 0 {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			log.Warn("created %s but could not decode the response: %v", res.Key, err)
		} else {
			result.Record = envelope[res.Key]
		}
	}
	return result, nil
}

func containsStatus(expected []int, status int) bool {
	for _, s := range expected {
		if s == status {
			return true
		}
	}
	return false
}

func (c *Client) record(ctx context.Context, m model.Mutation) string {
	if c.auditor == nil {
		return ""
	}
	id, err := c.auditor.RecordMutation(ctx, m)
	if err != nil {
		log.Warn("audit record failed: %v", err)
		return ""
	}
	return id
}

func (c *Client) complete(ctx context.Context, id string, status int, callErr error) {
	if c.auditor == nil || id == "" {
		return
	}
	msg := ""
	if callErr != nil {
		msg = callErr.Error()
	}
	if err := c.auditor.CompleteMutation(ctx, id, status, msg); err != nil {
		log.Warn("audit completion failed: %v", err)
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	status, body, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &NetworkError{
			Method: http.MethodGet,
			URL:    c.redactedURL(path, params),
			Status: status,
			Err:    errors.New(strings.TrimSpace(string(body))),
		}
	}
	return body, nil
}

// do builds the request, appends the key and returns status and body.
// Transport failures come back as *NetworkError.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	params url.Values,
	payload []byte,
) (int, []byte, error) {
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("key", c.apiKey)
	target := c.baseURL + "/" + path + ".json?" + query.Encode()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error repeats the full URL, key included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return 0, nil, &NetworkError{Method: method, URL: c.redactedURL(path, params), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &NetworkError{Method: method, URL: c.redactedURL(path, params), Err: err}
	}
	return resp.StatusCode, respBody, nil
}

// redactedURL renders a request URL for error messages without the key.
func (c *Client) redactedURL(path string, params url.Values) string {
	u := c.baseURL + "/" + path + ".json"
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}
