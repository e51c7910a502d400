package review

import (
	"context"
	"fmt"

	"github.com/kbase/review-engine/internal/application/port"
	"github.com/kbase/review-engine/internal/domain/entity"
	"github.com/kbase/review-engine/internal/domain/workflow"
	"go.uber.org/zap"
)

// BatchSignals are fired exactly once after each completed batch
// operation. Selections do not survive a refresh, so the caller clears
// them and reloads the list instead of patching rows in place.
type BatchSignals struct {
	OnClearSelection func()
	OnRefresh        func()
}

// BatchCoordinator applies one action to a set of resources in a single
// aggregate request, without opening per-resource sessions. Per-item
// legality is the caller's concern (the selection comes from a tab
// already filtered by node); the coordinator only checks that the
// action exists in the definition when one is available.
type BatchCoordinator struct {
	resourceType string
	gateway      port.BackendGateway
	workflows    *WorkflowClient
	signals      BatchSignals
	logger       *zap.Logger
}

// NewBatchCoordinator creates a new batch coordinator
func NewBatchCoordinator(
	resourceType string,
	gateway port.BackendGateway,
	workflows *WorkflowClient,
	signals BatchSignals,
	logger *zap.Logger,
) *BatchCoordinator {
	return &BatchCoordinator{
		resourceType: resourceType,
		gateway:      gateway,
		workflows:    workflows,
		signals:      signals,
		logger:       logger,
	}
}

// Run applies the action to all selected resources. Partial failure is
// not an error: the outcome reports a success count plus per-item
// failures, and the caller surfaces a warning when errors is non-empty.
func (b *BatchCoordinator) Run(ctx context.Context, ids []string, actionID string) (*entity.BatchOutcome, error) {
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}
	if actionID == "" {
		return nil, fmt.Errorf("%w: empty action id", workflow.ErrUnknownAction)
	}

	def, err := b.workflows.Definition(ctx, b.resourceType)
	if err == nil && !def.Degraded && !def.HasAction(actionID) {
		return nil, fmt.Errorf("%w: %s", workflow.ErrUnknownAction, actionID)
	}

	outcome, err := b.gateway.BatchReview(ctx, b.resourceType, ids, actionID)
	if err != nil {
		return nil, fmt.Errorf("batch review failed: %w", err)
	}

	b.logOutcome("batch review", actionID, len(ids), outcome)
	b.fireSignals()
	return outcome, nil
}

// Delete removes all selected resources. Deletion needs no action
// eligibility check; it is allowed from any non-terminal state and the
// backend reports refusals per item.
func (b *BatchCoordinator) Delete(ctx context.Context, ids []string) (*entity.BatchOutcome, error) {
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}

	outcome, err := b.gateway.BatchDelete(ctx, b.resourceType, ids)
	if err != nil {
		return nil, fmt.Errorf("batch delete failed: %w", err)
	}

	b.logOutcome("batch delete", "", len(ids), outcome)
	b.fireSignals()
	return outcome, nil
}

func (b *BatchCoordinator) logOutcome(op, actionID string, requested int, outcome *entity.BatchOutcome) {
	fields := []zap.Field{
		zap.String("resource_type", b.resourceType),
		zap.Int("requested", requested),
		zap.Int("success_count", outcome.SuccessCount),
		zap.Int("failed", len(outcome.Errors)),
	}
	if actionID != "" {
		fields = append(fields, zap.String("action", actionID))
	}

	if len(outcome.Errors) > 0 {
		b.logger.Warn(op+" completed with failures", fields...)
	} else {
		b.logger.Info(op+" completed", fields...)
	}
}

// fireSignals clears the selection and requests a list refresh, once
// per invocation.
func (b *BatchCoordinator) fireSignals() {
	if b.signals.OnClearSelection != nil {
		b.signals.OnClearSelection()
	}
	if b.signals.OnRefresh != nil {
		b.signals.OnRefresh()
	}
}
