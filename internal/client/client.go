package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reviewdeck/internal/types"
)

const (
	defaultBaseURL = "http://127.0.0.1:8000"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 64 << 20
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSettings decodes the settings stored under scope into out. A 404, an
// empty body, `{}` and `null` all report found=false.
func (c *Client) GetSettings(ctx context.Context, scope string, out any) (bool, error) {
	path, err := settingsPath(scope)
	if err != nil {
		return false, err
	}
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &raw); err != nil {
		if apiErr := asAPIError(err); apiErr != nil && apiErr.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	if isEmptyJSON(raw) {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s settings: %w", scope, err)
	}
	return true, nil
}

func (c *Client) SaveSettings(ctx context.Context, scope string, value any) error {
	if value == nil {
		return errors.New("settings are required")
	}
	path, err := settingsPath(scope)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, path, value, nil)
}

func (c *Client) DeleteSettings(ctx context.Context, scope string) error {
	path, err := settingsPath(scope)
	if err != nil {
		return err
	}
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		if apiErr := asAPIError(err); apiErr != nil && apiErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return err
	}
	return nil
}

func (c *Client) GetProviderTree(ctx context.Context) (*types.ProviderTree, bool, error) {
	tree := &types.ProviderTree{}
	found, err := c.GetSettings(ctx, types.ProvidersScope, tree)
	if err != nil || !found {
		return nil, false, err
	}
	return tree, true, nil
}

func (c *Client) SaveProviderTree(ctx context.Context, tree *types.ProviderTree) error {
	if tree == nil {
		return errors.New("provider tree is required")
	}
	return c.SaveSettings(ctx, types.ProvidersScope, tree)
}

func (c *Client) Status(ctx context.Context, kind types.JobKind) (*types.StatusSnapshot, error) {
	path, err := kindPath(kind, "status")
	if err != nil {
		return nil, err
	}
	var snapshot types.StatusSnapshot
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *Client) StartJob(ctx context.Context, kind types.JobKind, payload map[string]any) (string, error) {
	path, err := kindPath(kind, "start")
	if err != nil {
		return "", err
	}
	if payload == nil {
		payload = map[string]any{}
	}
	var resp types.StartJobResponse
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return "", err
	}
	jobID := strings.TrimSpace(resp.JobID)
	if jobID == "" {
		return "", errors.New("start response missing job_id")
	}
	return jobID, nil
}

func (c *Client) ListJobs(ctx context.Context, kind types.JobKind) ([]types.JobRecord, error) {
	path, err := kindPath(kind, "jobs")
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return decodeJobs(raw)
}

// Export downloads the current export file for kind.
func (c *Client) Export(ctx context.Context, kind types.JobKind) (*Download, error) {
	path, err := kindPath(kind, "export")
	if err != nil {
		return nil, err
	}
	return c.download(ctx, path, defaultExportName(kind))
}

func (c *Client) download(ctx context.Context, path, fallbackName string) (*Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return &Download{
		Filename:    FilenameFromContentDisposition(resp.Header.Get("Content-Disposition"), fallbackName),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	return c.doJSONWithClient(ctx, method, path, body, out, c.http)
}

func (c *Client) doJSONWithClient(ctx context.Context, method, path string, body any, out any, httpClient *http.Client) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return err
		}
		*raw = data
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeJobs(raw json.RawMessage) ([]types.JobRecord, error) {
	if isEmptyJSON(raw) {
		return []types.JobRecord{}, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped JobsResponse
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Jobs, nil
	}
	var jobs []types.JobRecord
	if err := json.Unmarshal(trimmed, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func isEmptyJSON(raw []byte) bool {
	trimmed := strings.TrimSpace(string(raw))
	switch trimmed {
	case "", "null", "{}", "[]":
		return true
	}
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return strings.TrimSpace(trimmed[1:len(trimmed)-1]) == ""
	}
	return false
}

func settingsPath(scope string) (string, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return "", errors.New("settings scope is required")
	}
	return "/settings/" + url.PathEscape(scope), nil
}

func kindPath(kind types.JobKind, action string) (string, error) {
	if _, ok := types.ParseJobKind(string(kind)); !ok {
		return "", fmt.Errorf("unknown job kind %q", kind)
	}
	return "/" + string(kind) + "/" + action, nil
}

func decodeAPIError(resp *http.Response) error {
	type errorPayload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	var payload errorPayload
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload)
	if payload.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	if payload.Detail != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Detail}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
}

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

func asAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	apiErr := asAPIError(err)
	return apiErr != nil && apiErr.StatusCode == http.StatusNotFound
}
