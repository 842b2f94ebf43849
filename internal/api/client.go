package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "LINENOTES_HTTP_TIMEOUT"
	apiTokenEnvKey     = "LINENOTES_API_TOKEN"
)

// Client is a simple HTTP client for the linenotes API.
type Client struct {
	baseURL   string
	http      *http.Client
	authToken string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: httpTimeoutFromEnv()},
		authToken: strings.TrimSpace(os.Getenv(apiTokenEnvKey)),
	}
}

// WithToken returns a copy of the client that sends token as bearer auth.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.authToken = strings.TrimSpace(token)
	return &clone
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/v1/info", nil, nil, &resp)
	return resp, err
}

func (c *Client) ListFiles(ctx context.Context) (FilesResponse, error) {
	var resp FilesResponse
	err := c.do(ctx, http.MethodGet, "/v1/files", nil, nil, &resp)
	return resp, err
}

func (c *Client) ListComments(ctx context.Context, path string) (CommentListResponse, error) {
	var resp CommentListResponse
	err := c.do(ctx, http.MethodGet, "/v1/comments", url.Values{"path": {path}}, nil, &resp)
	return resp, err
}

func (c *Client) GetComment(ctx context.Context, path string, line int) (CommentResponse, error) {
	var resp CommentResponse
	err := c.do(ctx, http.MethodGet, "/v1/comments/line", lineQuery(path, line), nil, &resp)
	return resp, err
}

func (c *Client) AddComment(ctx context.Context, req CommentCreateRequest) (CommentResponse, error) {
	var resp CommentResponse
	err := c.do(ctx, http.MethodPost, "/v1/comments", nil, req, &resp)
	return resp, err
}

func (c *Client) UpdateComment(ctx context.Context, req CommentUpdateRequest) (CommentResponse, error) {
	var resp CommentResponse
	err := c.do(ctx, http.MethodPatch, "/v1/comments", nil, req, &resp)
	return resp, err
}

func (c *Client) RemoveComment(ctx context.Context, path string, line int) (CommentResponse, error) {
	var resp CommentResponse
	err := c.do(ctx, http.MethodDelete, "/v1/comments", lineQuery(path, line), nil, &resp)
	return resp, err
}

func (c *Client) RenameFile(ctx context.Context, req FileRenameRequest) (FileRenameResponse, error) {
	var resp FileRenameResponse
	err := c.do(ctx, http.MethodPost, "/v1/files/rename", nil, req, &resp)
	return resp, err
}

func (c *Client) ApplyEdit(ctx context.Context, req EditRequest) (RemapResponse, error) {
	var resp RemapResponse
	err := c.do(ctx, http.MethodPost, "/v1/edits", nil, req, &resp)
	return resp, err
}

func (c *Client) ApplyLineChanges(ctx context.Context, req LineChangesRequest) (RemapResponse, error) {
	var resp RemapResponse
	err := c.do(ctx, http.MethodPost, "/v1/line-changes", nil, req, &resp)
	return resp, err
}

func (c *Client) Sync(ctx context.Context, req SyncRequest) (RemapResponse, error) {
	var resp RemapResponse
	err := c.do(ctx, http.MethodPost, "/v1/sync", nil, req, &resp)
	return resp, err
}

func (c *Client) ApplyPatch(ctx context.Context, req PatchRequest) (PatchResponse, error) {
	var resp PatchResponse
	err := c.do(ctx, http.MethodPost, "/v1/patch", nil, req, &resp)
	return resp, err
}

// Pending lists the candidates of path, or the files with candidates when
// path is empty.
func (c *Client) Pending(ctx context.Context, path string) (PendingResponse, error) {
	var resp PendingResponse
	var query url.Values
	if path != "" {
		query = url.Values{"path": {path}}
	}
	err := c.do(ctx, http.MethodGet, "/v1/pending", query, nil, &resp)
	return resp, err
}

func (c *Client) ArchivePending(ctx context.Context, req PendingDecisionRequest) (ArchiveResponse, error) {
	var resp ArchiveResponse
	err := c.do(ctx, http.MethodPost, "/v1/pending/archive", nil, req, &resp)
	return resp, err
}

func (c *Client) DiscardPending(ctx context.Context, path string) (DiscardResponse, error) {
	var resp DiscardResponse
	err := c.do(ctx, http.MethodPost, "/v1/pending/discard", nil, PendingDiscardRequest{Path: path}, &resp)
	return resp, err
}

func (c *Client) History(ctx context.Context, path string) (HistoryResponse, error) {
	var resp HistoryResponse
	var query url.Values
	if path != "" {
		query = url.Values{"path": {path}}
	}
	err := c.do(ctx, http.MethodGet, "/v1/archive", query, nil, &resp)
	return resp, err
}

func (c *Client) Export(ctx context.Context) (ExportResponse, error) {
	var resp ExportResponse
	err := c.do(ctx, http.MethodGet, "/v1/export", nil, nil, &resp)
	return resp, err
}

func lineQuery(path string, line int) url.Values {
	return url.Values{"path": {path}, "line": {strconv.Itoa(line)}}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.ErrorCode = errResp.ErrorCode
		apiErr.Message = errResp.Error
		return apiErr
	}
	apiErr.Message = "api error: " + resp.Status
	return apiErr
}

func (c *Client) setAuthHeader(req *http.Request) {
	if c.authToken == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
