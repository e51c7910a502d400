// Package backend implements the knowledge-backend HTTP gateway
// consumed by the review engine.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kbase/review-engine/internal/domain/entity"
	"github.com/kbase/review-engine/internal/domain/workflow"
	"go.uber.org/zap"
)

// Config holds backend client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the knowledge backend over HTTP. It implements
// port.BackendGateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// envelope is the JSON wrapper the backend puts around every response.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// NewClient creates a new backend client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchDefinition retrieves and validates the workflow graph for a
// resource type.
func (c *Client) FetchDefinition(ctx context.Context, resourceType string) (*workflow.Definition, error) {
	var def workflow.Definition
	path := fmt.Sprintf("/workflow/%s", url.PathEscape(resourceType))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &def); err != nil {
		return nil, fmt.Errorf("failed to fetch workflow definition: %w", err)
	}

	def.ResourceType = resourceType
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow definition: %w", err)
	}

	return &def, nil
}

// GetResource retrieves the latest snapshot of one resource.
func (c *Client) GetResource(ctx context.Context, resourceType, id string) (*entity.Resource, error) {
	var res entity.Resource
	path := fmt.Sprintf("/%s/%s", url.PathEscape(resourceType), url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return &res, nil
}

// SubmitReview executes an action on a resource and returns the updated
// snapshot.
func (c *Client) SubmitReview(ctx context.Context, resourceType, id, actionID, note string) (*entity.Resource, error) {
	body := map[string]string{"action": actionID}
	if note != "" {
		body["note"] = note
	}

	var res entity.Resource
	path := fmt.Sprintf("/%s/%s/review", url.PathEscape(resourceType), url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodPost, path, body, &res); err != nil {
		return nil, fmt.Errorf("failed to submit review: %w", err)
	}
	return &res, nil
}

// GetHistory retrieves the transition history of a resource.
func (c *Client) GetHistory(ctx context.Context, resourceType, id string) ([]entity.HistoryRecord, error) {
	var records []entity.HistoryRecord
	path := fmt.Sprintf("/%s/%s/history", url.PathEscape(resourceType), url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return records, nil
}

// BatchReview applies one action to many resources in a single request.
func (c *Client) BatchReview(ctx context.Context, resourceType string, ids []string, actionID string) (*entity.BatchOutcome, error) {
	body := map[string]interface{}{"ids": ids, "action": actionID}

	var outcome entity.BatchOutcome
	path := fmt.Sprintf("/%s/batch-review", url.PathEscape(resourceType))
	if err := c.doJSON(ctx, http.MethodPost, path, body, &outcome); err != nil {
		return nil, fmt.Errorf("failed to batch review: %w", err)
	}
	return &outcome, nil
}

// BatchDelete removes many resources in a single request.
func (c *Client) BatchDelete(ctx context.Context, resourceType string, ids []string) (*entity.BatchOutcome, error) {
	body := map[string]interface{}{"ids": ids}

	var outcome entity.BatchOutcome
	path := fmt.Sprintf("/%s/batch-delete", url.PathEscape(resourceType))
	if err := c.doJSON(ctx, http.MethodPost, path, body, &outcome); err != nil {
		return nil, fmt.Errorf("failed to batch delete: %w", err)
	}
	return &outcome, nil
}

// doJSON performs one request against the backend, unwraps the response
// envelope, and decodes the data payload into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Backend returned error status",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode response envelope: %w", err)
	}
	if env.Code != 0 {
		return fmt.Errorf("backend error %d: %s", env.Code, env.Message)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}
