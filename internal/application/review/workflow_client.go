// Package review drives the document review workflow: definition
// lookups, single-resource review sessions, and batch transitions.
package review

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbase/review-engine/internal/application/port"
	"github.com/kbase/review-engine/internal/domain/workflow"
	"go.uber.org/zap"
)

// WorkflowClient fetches workflow definitions and caches them per
// resource type for the lifetime of a screen. A fetch failure yields a
// degraded fallback definition alongside ErrDefinitionUnavailable; the
// fallback is never cached, so the next screen visit retries naturally.
type WorkflowClient struct {
	gateway port.BackendGateway
	logger  *zap.Logger

	mu   sync.RWMutex
	defs map[string]*workflow.Definition
}

// NewWorkflowClient creates a new workflow client
func NewWorkflowClient(gateway port.BackendGateway, logger *zap.Logger) *WorkflowClient {
	return &WorkflowClient{
		gateway: gateway,
		logger:  logger,
		defs:    make(map[string]*workflow.Definition),
	}
}

// Definition returns the definition for a resource type, fetching it on
// first use. On failure it returns a usable fallback definition and
// ErrDefinitionUnavailable; callers may keep the fallback and degrade
// to read-only labels.
func (c *WorkflowClient) Definition(ctx context.Context, resourceType string) (*workflow.Definition, error) {
	c.mu.RLock()
	def, ok := c.defs[resourceType]
	c.mu.RUnlock()
	if ok {
		return def, nil
	}

	fetched, err := c.gateway.FetchDefinition(ctx, resourceType)
	if err != nil {
		c.logger.Warn("Workflow definition unavailable, degrading to static labels",
			zap.String("resource_type", resourceType),
			zap.Error(err))
		return workflow.FallbackDefinition(resourceType),
			fmt.Errorf("%w: %v", workflow.ErrDefinitionUnavailable, err)
	}

	c.mu.Lock()
	// A concurrent fetch may have won; keep the first stored definition
	// so every consumer shares one immutable graph.
	if existing, ok := c.defs[resourceType]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.defs[resourceType] = fetched
	c.mu.Unlock()

	return fetched, nil
}

// Reload drops the cached definition and fetches a fresh one. Used by
// the manual reload path; nothing re-fetches automatically.
func (c *WorkflowClient) Reload(ctx context.Context, resourceType string) (*workflow.Definition, error) {
	c.mu.Lock()
	delete(c.defs, resourceType)
	c.mu.Unlock()

	return c.Definition(ctx, resourceType)
}
