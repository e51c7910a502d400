package review

import (
	"context"
	"errors"
	"sync"

	"github.com/kbase/review-engine/internal/domain/entity"
	"github.com/kbase/review-engine/internal/domain/workflow"
)

// fakeGateway is a hand-rolled port.BackendGateway with per-method
// hooks, following the repo's mock convention.
type fakeGateway struct {
	mu sync.Mutex

	fetchDefinitionFunc func(ctx context.Context, resourceType string) (*workflow.Definition, error)
	getResourceFunc     func(ctx context.Context, resourceType, id string) (*entity.Resource, error)
	submitReviewFunc    func(ctx context.Context, resourceType, id, actionID, note string) (*entity.Resource, error)
	getHistoryFunc      func(ctx context.Context, resourceType, id string) ([]entity.HistoryRecord, error)
	batchReviewFunc     func(ctx context.Context, resourceType string, ids []string, actionID string) (*entity.BatchOutcome, error)
	batchDeleteFunc     func(ctx context.Context, resourceType string, ids []string) (*entity.BatchOutcome, error)

	definitionFetches int
	resourceFetches   int
	historyFetches    int
}

func knowledgeDefinition() *workflow.Definition {
	return &workflow.Definition{
		ResourceType: "knowledge",
		Nodes: []workflow.Node{
			{ID: "pending", Name: "Pending Review", Kind: workflow.KindNormal},
			{ID: "processing", Name: "Processing", Kind: workflow.KindNormal},
			{ID: "published", Name: "Published", Kind: workflow.KindNormal},
			{ID: "rejected", Name: "Rejected", Kind: workflow.KindTerminal},
		},
		Actions: []workflow.Action{
			{ID: "approve", Name: "Approve"},
			{ID: "reject", Name: "Reject"},
		},
		Transitions: []workflow.Transition{
			{FromNode: "pending", Action: "approve"},
			{FromNode: "pending", Action: "reject"},
		},
	}
}

func (f *fakeGateway) FetchDefinition(ctx context.Context, resourceType string) (*workflow.Definition, error) {
	f.mu.Lock()
	f.definitionFetches++
	f.mu.Unlock()
	if f.fetchDefinitionFunc != nil {
		return f.fetchDefinitionFunc(ctx, resourceType)
	}
	return knowledgeDefinition(), nil
}

func (f *fakeGateway) GetResource(ctx context.Context, resourceType, id string) (*entity.Resource, error) {
	f.mu.Lock()
	f.resourceFetches++
	f.mu.Unlock()
	if f.getResourceFunc != nil {
		return f.getResourceFunc(ctx, resourceType, id)
	}
	return &entity.Resource{ID: id, CurrentNode: "pending"}, nil
}

func (f *fakeGateway) SubmitReview(ctx context.Context, resourceType, id, actionID, note string) (*entity.Resource, error) {
	if f.submitReviewFunc != nil {
		return f.submitReviewFunc(ctx, resourceType, id, actionID, note)
	}
	return nil, errors.New("submitReviewFunc not set")
}

func (f *fakeGateway) GetHistory(ctx context.Context, resourceType, id string) ([]entity.HistoryRecord, error) {
	f.mu.Lock()
	f.historyFetches++
	f.mu.Unlock()
	if f.getHistoryFunc != nil {
		return f.getHistoryFunc(ctx, resourceType, id)
	}
	return []entity.HistoryRecord{}, nil
}

func (f *fakeGateway) BatchReview(ctx context.Context, resourceType string, ids []string, actionID string) (*entity.BatchOutcome, error) {
	if f.batchReviewFunc != nil {
		return f.batchReviewFunc(ctx, resourceType, ids, actionID)
	}
	return &entity.BatchOutcome{SuccessCount: len(ids)}, nil
}

func (f *fakeGateway) BatchDelete(ctx context.Context, resourceType string, ids []string) (*entity.BatchOutcome, error) {
	if f.batchDeleteFunc != nil {
		return f.batchDeleteFunc(ctx, resourceType, ids)
	}
	return &entity.BatchOutcome{SuccessCount: len(ids)}, nil
}

func (f *fakeGateway) counts() (definitions, resources, histories int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.definitionFetches, f.resourceFetches, f.historyFetches
}
