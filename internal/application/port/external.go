package port

import (
	"context"

	"github.com/kbase/review-engine/internal/domain/entity"
	"github.com/kbase/review-engine/internal/domain/workflow"
)

// BackendGateway defines the knowledge-backend operations the engine
// consumes. Implementations live in infrastructure; the application
// layer depends only on this interface.
type BackendGateway interface {
	// FetchDefinition retrieves the workflow graph for a resource type.
	FetchDefinition(ctx context.Context, resourceType string) (*workflow.Definition, error)

	// GetResource retrieves the latest snapshot of one resource,
	// including its partial chunk count while processing.
	GetResource(ctx context.Context, resourceType, id string) (*entity.Resource, error)

	// SubmitReview executes an action on a resource and returns the
	// updated snapshot.
	SubmitReview(ctx context.Context, resourceType, id, actionID, note string) (*entity.Resource, error)

	// GetHistory retrieves the append-only transition history of a
	// resource, ordered by the backend.
	GetHistory(ctx context.Context, resourceType, id string) ([]entity.HistoryRecord, error)

	// BatchReview applies one action to many resources in a single
	// aggregate request.
	BatchReview(ctx context.Context, resourceType string, ids []string, actionID string) (*entity.BatchOutcome, error)

	// BatchDelete removes many resources in a single aggregate request.
	BatchDelete(ctx context.Context, resourceType string, ids []string) (*entity.BatchOutcome, error)
}

// ResourceGetter is the narrow read used by the background job watcher.
type ResourceGetter interface {
	GetResource(ctx context.Context, resourceType, id string) (*entity.Resource, error)
}
