// internal/index/client.go
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	custom_errors "github.com/kylediaz/github-chat/internal/errors"
	"github.com/kylediaz/github-chat/internal/model"
)

// ClientConfig holds the connection settings for the indexing service.
type ClientConfig struct {
	BaseURL string
	APIKey  string
}

// Client talks to the code-indexing service's REST API.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new indexing-service client.
func NewClient(config *ClientConfig, logger *slog.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("indexing service BaseURL must not be empty")
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

// CreateSource registers a repository with the indexing service and returns
// the service's identifier for it.
func (c *Client) CreateSource(ctx context.Context, owner, name string) (string, error) {
	body := map[string]string{
		"type":  "github",
		"owner": owner,
		"name":  name,
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sources", body, &out); err != nil {
		return "", fmt.Errorf("create source: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("create source: response missing id")
	}
	return out.ID, nil
}

// CreateInvocationResult is the indexing service's answer to an invocation
// create call.
type CreateInvocationResult struct {
	ExternalID string
	Status     model.InvocationStatus
}

// CreateInvocation asks the indexing service to index one commit of a
// registered source into the named collection.
func (c *Client) CreateInvocation(ctx context.Context, sourceExternalID, ref, collectionName string) (*CreateInvocationResult, error) {
	body := map[string]string{
		"source_id":       sourceExternalID,
		"ref":             ref,
		"collection_name": collectionName,
	}

	var out struct {
		ID     string     `json:"id"`
		Status wireStatus `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/invocations", body, &out); err != nil {
		return nil, fmt.Errorf("create invocation: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("create invocation: response missing id")
	}

	state := c.normalizeStatus(out.Status)
	return &CreateInvocationResult{
		ExternalID: out.ID,
		Status:     state.Status,
	}, nil
}

// GetInvocationStatus reports the current lifecycle state of an invocation.
func (c *Client) GetInvocationStatus(ctx context.Context, externalID string) (*model.InvocationState, error) {
	var out struct {
		ID     string     `json:"id"`
		Status wireStatus `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/invocations/"+externalID, nil, &out); err != nil {
		return nil, fmt.Errorf("get invocation status: %w", err)
	}

	state := c.normalizeStatus(out.Status)
	return &state, nil
}

// wireStatus absorbs both shapes the service uses for the status field: a
// bare string for the happy path and an object carrying a detail message
// for completions and failures.
type wireStatus struct {
	State  string
	Detail *string
}

func (w *wireStatus) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		w.State = s
		return nil
	}

	var obj struct {
		State  string  `json:"state"`
		Detail *string `json:"detail"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("status is neither string nor object: %w", err)
	}
	w.State = obj.State
	w.Detail = obj.Detail
	return nil
}

// normalizeStatus maps a wire status onto the internal enum. Anything
// unrecognized is reported as processing so it stays refreshable.
func (c *Client) normalizeStatus(w wireStatus) model.InvocationState {
	switch model.InvocationStatus(strings.ToLower(w.State)) {
	case model.InvocationStatusPending:
		return model.InvocationState{Status: model.InvocationStatusPending, Detail: w.Detail}
	case model.InvocationStatusProcessing:
		return model.InvocationState{Status: model.InvocationStatusProcessing, Detail: w.Detail}
	case model.InvocationStatusCancelled:
		return model.InvocationState{Status: model.InvocationStatusCancelled, Detail: w.Detail}
	case model.InvocationStatusCompleted:
		return model.InvocationState{Status: model.InvocationStatusCompleted, Detail: w.Detail}
	case model.InvocationStatusFailed:
		return model.InvocationState{Status: model.InvocationStatusFailed, Detail: w.Detail}
	}

	c.logger.Warn("Unrecognized invocation status from indexing service", "status", w.State)
	return model.InvocationState{Status: model.InvocationStatusProcessing, Detail: w.Detail}
}

// doJSON performs one request against the service and decodes the response
// into out. Non-2xx replies are translated to the fetch error classes.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	url := strings.TrimSuffix(c.config.BaseURL, "/") + path

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return custom_errors.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return custom_errors.ErrInaccessible
	case http.StatusConflict:
		return custom_errors.ErrDuplicateRegistration
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
}
