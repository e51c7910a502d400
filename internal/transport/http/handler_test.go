package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kbase/review-engine/internal/application/review"
	"github.com/kbase/review-engine/internal/domain/entity"
	"github.com/kbase/review-engine/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubGateway implements port.BackendGateway for handler tests.
type stubGateway struct {
	definitionErr bool
	submitNode    string
	submitErr     error
	resourceNode  string
	outcome       *entity.BatchOutcome
}

func (s *stubGateway) FetchDefinition(ctx context.Context, resourceType string) (*workflow.Definition, error) {
	if s.definitionErr {
		return nil, errors.New("backend down")
	}
	return &workflow.Definition{
		ResourceType: resourceType,
		Nodes: []workflow.Node{
			{ID: "pending", Name: "Pending Review"},
			{ID: "processing", Name: "Processing"},
			{ID: "published", Name: "Published"},
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
	}, nil
}

func (s *stubGateway) GetResource(ctx context.Context, resourceType, id string) (*entity.Resource, error) {
	node := s.resourceNode
	if node == "" {
		node = "pending"
	}
	return &entity.Resource{ID: id, Title: "Doc", CurrentNode: node}, nil
}

func (s *stubGateway) SubmitReview(ctx context.Context, resourceType, id, actionID, note string) (*entity.Resource, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return &entity.Resource{ID: id, CurrentNode: s.submitNode}, nil
}

func (s *stubGateway) GetHistory(ctx context.Context, resourceType, id string) ([]entity.HistoryRecord, error) {
	return []entity.HistoryRecord{{Actor: "alice", Action: "approve"}}, nil
}

func (s *stubGateway) BatchReview(ctx context.Context, resourceType string, ids []string, actionID string) (*entity.BatchOutcome, error) {
	if s.outcome != nil {
		return s.outcome, nil
	}
	return &entity.BatchOutcome{SuccessCount: len(ids)}, nil
}

func (s *stubGateway) BatchDelete(ctx context.Context, resourceType string, ids []string) (*entity.BatchOutcome, error) {
	return &entity.BatchOutcome{SuccessCount: len(ids)}, nil
}

func newTestRouter(gw *stubGateway) (*gin.Engine, *SessionRegistry) {
	logger := zap.NewNop()
	workflows := review.NewWorkflowClient(gw, logger)

	sessions := NewSessionRegistry(func(resourceType, resourceID string) *review.Session {
		return review.NewSession(review.SessionConfig{
			ResourceType:   resourceType,
			ResourceID:     resourceID,
			ProcessingNode: "processing",
			PollInterval:   5 * time.Millisecond,
		}, gw, workflows, review.SessionEvents{}, logger)
	}, logger)

	handler := NewHandler(sessions, workflows, gw, logger)
	return NewRouter(handler, logger), sessions
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var rec = httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_GetSession(t *testing.T) {
	router, sessions := newTestRouter(&stubGateway{})
	defer sessions.CloseAll()

	rec := doRequest(router, http.MethodGet, "/api/review/knowledge/d1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap struct {
		CurrentNodeLabel string            `json:"current_node_label"`
		Terminal         bool              `json:"terminal"`
		Actions          []workflow.Action `json:"actions"`
		State            string            `json:"state"`
		Degraded         bool              `json:"degraded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))

	assert.Equal(t, "Pending Review", snap.CurrentNodeLabel)
	assert.False(t, snap.Terminal)
	assert.False(t, snap.Degraded)
	assert.Equal(t, "idle", snap.State)
	require.Len(t, snap.Actions, 2)
	assert.Equal(t, "approve", snap.Actions[0].ID)
}

func TestHandler_SubmitTerminalSetsNavigate(t *testing.T) {
	router, sessions := newTestRouter(&stubGateway{submitNode: "rejected"})
	defer sessions.CloseAll()

	rec := doRequest(router, http.MethodPost, "/api/review/knowledge/d1/submit",
		`{"action": "reject", "note": "off topic"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap struct {
		Terminal bool `json:"terminal"`
		Navigate bool `json:"navigate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.Terminal)
	assert.True(t, snap.Navigate)
}

func TestHandler_SubmitRejectedReturnsConflictWithSnapshot(t *testing.T) {
	router, sessions := newTestRouter(&stubGateway{submitErr: errors.New("stale state")})
	defer sessions.CloseAll()

	rec := doRequest(router, http.MethodPost, "/api/review/knowledge/d1/submit",
		`{"action": "approve"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Error    string          `json:"error"`
		Snapshot json.RawMessage `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
	assert.NotEmpty(t, resp.Snapshot, "the refreshed state is handed back")
}

func TestHandler_SubmitMissingAction(t *testing.T) {
	router, sessions := newTestRouter(&stubGateway{})
	defer sessions.CloseAll()

	rec := doRequest(router, http.MethodPost, "/api/review/knowledge/d1/submit", `{"note": "hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_BatchReview(t *testing.T) {
	gw := &stubGateway{outcome: &entity.BatchOutcome{
		SuccessCount: 3,
		Errors: []entity.BatchError{
			{ResourceID: "b", Reason: "stale state"},
			{ResourceID: "d", Reason: "not found"},
		},
	}}
	router, sessions := newTestRouter(gw)
	defer sessions.CloseAll()

	rec := doRequest(router, http.MethodPost, "/api/review/knowledge/batch",
		`{"ids": ["a", "b", "c", "d", "e"], "action": "approve"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SuccessCount   int                 `json:"success_count"`
		Errors         []entity.BatchError `json:"errors"`
		ClearSelection bool                `json:"clear_selection"`
		Refresh        bool                `json:"refresh"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 3, resp.SuccessCount)
	assert.Len(t, resp.Errors, 2)
	assert.True(t, resp.ClearSelection)
	assert.True(t, resp.Refresh)
}

func TestHandler_BatchReviewEmptySelection(t *testing.T) {
	router, sessions := newTestRouter(&stubGateway{})
	defer sessions.CloseAll()

	rec := doRequest(router, http.MethodPost, "/api/review/knowledge/batch",
		`{"ids": [], "action": "approve"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_BatchDelete(t *testing.T) {
	router, sessions := newTestRouter(&stubGateway{})
	defer sessions.CloseAll()

	rec := doRequest(router, http.MethodPost, "/api/review/knowledge/batch-delete",
		`{"ids": ["a", "b"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SuccessCount int  `json:"success_count"`
		Refresh      bool `json:"refresh"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.SuccessCount)
	assert.True(t, resp.Refresh)
}

func TestHandler_GetDefinitionDegraded(t *testing.T) {
	router, sessions := newTestRouter(&stubGateway{definitionErr: true})
	defer sessions.CloseAll()

	rec := doRequest(router, http.MethodGet, "/api/review/knowledge/definition", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Degraded bool `json:"degraded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Degraded)
}

func TestHandler_GetHistory(t *testing.T) {
	router, sessions := newTestRouter(&stubGateway{})
	defer sessions.CloseAll()

	rec := doRequest(router, http.MethodGet, "/api/review/knowledge/d1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Records []entity.HistoryRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "alice", resp.Records[0].Actor)
}

func TestHandler_CloseSession(t *testing.T) {
	router, sessions := newTestRouter(&stubGateway{})
	defer sessions.CloseAll()

	doRequest(router, http.MethodGet, "/api/review/knowledge/d1", "")
	assert.Equal(t, 1, sessions.Count())

	rec := doRequest(router, http.MethodDelete, "/api/review/knowledge/d1/session", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, sessions.Count())
}
