// Package greptime implements the execution API adapter for GreptimeDB's HTTP interface.
package greptime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/doeshing/dexplorer/internal/domain"
	"github.com/doeshing/dexplorer/internal/ports"
)

const (
	sqlPath       = "/v1/sql"
	promqlPath    = "/v1/promql"
	runScriptPath = "/v1/run-script"
	scriptsPath   = "/v1/scripts"
	healthPath    = "/health"
)

// Client talks to one GreptimeDB HTTP endpoint.
type Client struct {
	baseURL    string
	database   string
	username   string
	password   string
	httpClient *http.Client
	logger     ports.Logger
}

// NewClient builds a client from configuration. Credentials are read from the
// environment variables named in the config.
func NewClient(cfg domain.Config, httpClient *http.Client, logger ports.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.GetTimeout()}
	}
	return &Client{
		baseURL:    cfg.GetBackendURL(),
		database:   cfg.GetDatabase(),
		username:   getEnv(cfg.Backend.UsernameEnvVar),
		password:   getEnv(cfg.Backend.PasswordEnvVar),
		httpClient: httpClient,
		logger:     logger,
	}
}

// RunSQL executes SQL statements.
func (c *Client) RunSQL(ctx context.Context, code string) (domain.ExecutionResponse, error) {
	form := url.Values{"sql": {code}}
	return c.postForm(ctx, sqlPath, nil, form)
}

// RunScript runs a previously saved script by name.
func (c *Client) RunScript(ctx context.Context, name string) (domain.ExecutionResponse, error) {
	return c.do(ctx, runScriptPath, url.Values{"name": {name}}, nil, "")
}

// RunPromQL evaluates a range query over window.
func (c *Client) RunPromQL(ctx context.Context, query string, window domain.PromRange) (domain.ExecutionResponse, error) {
	form := url.Values{
		"query": {query},
		"start": {strconv.FormatInt(window.Start, 10)},
		"end":   {strconv.FormatInt(window.End, 10)},
		"step":  {window.Step},
	}
	return c.postForm(ctx, promqlPath, nil, form)
}

// SaveScript stores code under name.
func (c *Client) SaveScript(ctx context.Context, name, code string) (domain.ExecutionResponse, error) {
	return c.do(ctx, scriptsPath, url.Values{"name": {name}}, strings.NewReader(code), "text/plain")
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("health check: %s", resp.Status)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, path string, query url.Values, form url.Values) (domain.ExecutionResponse, error) {
	return c.do(ctx, path, query, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func (c *Client) do(ctx context.Context, path string, query url.Values, body io.Reader, contentType string) (domain.ExecutionResponse, error) {
	endpoint := c.endpoint(path, query)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return domain.ExecutionResponse{}, err
	}
	if contentType != "" {
		httpReq.Header.Set("content-type", contentType)
	}
	httpReq.Header.Set("accept", "application/json")
	c.setAuth(httpReq)

	if c.logger != nil {
		c.logger.Debug("calling backend", map[string]interface{}{"endpoint": path})
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.ExecutionResponse{}, fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	var responseBody bytes.Buffer
	if _, err := responseBody.ReadFrom(resp.Body); err != nil {
		return domain.ExecutionResponse{}, fmt.Errorf("%s: read body: %w", path, err)
	}

	return decodeResponse(resp.StatusCode, responseBody.Bytes())
}

func (c *Client) endpoint(path string, query url.Values) string {
	params := url.Values{}
	for k, v := range query {
		params[k] = v
	}
	params.Set("db", c.database)
	return c.baseURL + path + "?" + params.Encode()
}

func (c *Client) setAuth(req *http.Request) {
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

// envelope is the wire shape shared by success and failure responses.
type envelope struct {
	Code            int             `json:"code"`
	Output          []domain.Output `json:"output"`
	Error           *string         `json:"error"`
	ExecutionTimeMS int64           `json:"execution_time_ms"`
}

func decodeResponse(status int, body []byte) (domain.ExecutionResponse, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if status >= 400 {
			return domain.ExecutionResponse{}, fmt.Errorf("unexpected status %d", status)
		}
		return domain.ExecutionResponse{}, fmt.Errorf("decode response: %w", err)
	}

	// A present error field marks a recovered failure, even when empty.
	if env.Error != nil {
		return domain.ExecutionResponse{}, &domain.BackendError{
			Code:            env.Code,
			Message:         *env.Error,
			ExecutionTimeMS: env.ExecutionTimeMS,
			HTTPStatus:      status,
		}
	}
	if status >= 400 {
		return domain.ExecutionResponse{}, fmt.Errorf("unexpected status %d", status)
	}

	return domain.ExecutionResponse{
		Code:            env.Code,
		Output:          env.Output,
		ExecutionTimeMS: env.ExecutionTimeMS,
	}, nil
}

func getEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

var _ ports.Backend = (*Client)(nil)
