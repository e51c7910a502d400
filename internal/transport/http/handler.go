// Package http exposes the review engine to the admin-console frontend
// as a thin JSON API: session snapshots, submits, batch operations,
// history, and watcher progress. No rendering concerns live here.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kbase/review-engine/internal/application/port"
	"github.com/kbase/review-engine/internal/application/review"
	"github.com/kbase/review-engine/internal/domain/entity"
	"github.com/kbase/review-engine/internal/domain/workflow"
	"go.uber.org/zap"
)

// Handler handles review API requests
type Handler struct {
	sessions  *SessionRegistry
	workflows *review.WorkflowClient
	gateway   port.BackendGateway
	logger    *zap.Logger
}

// NewHandler creates a new review API handler
func NewHandler(
	sessions *SessionRegistry,
	workflows *review.WorkflowClient,
	gateway port.BackendGateway,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		sessions:  sessions,
		workflows: workflows,
		gateway:   gateway,
		logger:    logger,
	}
}

// sessionSnapshot is the session view rendered to the frontend.
type sessionSnapshot struct {
	Resource         *entity.Resource  `json:"resource"`
	CurrentNodeLabel string            `json:"current_node_label"`
	Terminal         bool              `json:"terminal"`
	Actions          []workflow.Action `json:"actions"`
	State            review.State      `json:"state"`
	Degraded         bool              `json:"degraded"`
	Navigate         bool              `json:"navigate,omitempty"`
}

func snapshotOf(sess *review.Session) sessionSnapshot {
	actions := sess.AvailableActions()
	if actions == nil {
		actions = []workflow.Action{}
	}
	return sessionSnapshot{
		Resource:         sess.Resource(),
		CurrentNodeLabel: sess.CurrentNodeLabel(),
		Terminal:         sess.IsTerminal(),
		Actions:          actions,
		State:            sess.State(),
		Degraded:         sess.Degraded(),
	}
}

// GetSession opens (or refreshes) the review session for a resource and
// returns its snapshot.
func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to open review session",
			zap.String("resource_id", c.Param("id")),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load resource"})
		return
	}

	c.JSON(http.StatusOK, snapshotOf(sess))
}

// CloseSession tears down the session for a resource, stopping any
// active watcher.
func (h *Handler) CloseSession(c *gin.Context) {
	h.sessions.Close(c.Param("type"), c.Param("id"))
	c.Status(http.StatusNoContent)
}

type submitRequest struct {
	Action string `json:"action" binding:"required"`
	Note   string `json:"note"`
}

// Submit executes an action on a resource through its session.
func (h *Handler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.sessions.Get(c.Request.Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load resource"})
		return
	}

	err = sess.Submit(c.Request.Context(), req.Action, req.Note)
	switch {
	case err == nil:
		snap := snapshotOf(sess)
		snap.Navigate = snap.Terminal
		c.JSON(http.StatusOK, snap)

	case errors.Is(err, review.ErrSubmitInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "a submit is already in flight"})

	case errors.Is(err, workflow.ErrUnknownAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, workflow.ErrTransitionRejected):
		// The session already re-fetched; hand the fresh state back so
		// the frontend can show what actually happened.
		c.JSON(http.StatusConflict, gin.H{
			"error":    err.Error(),
			"snapshot": snapshotOf(sess),
		})

	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

// GetHistory returns the resource's transition history.
func (h *Handler) GetHistory(c *gin.Context) {
	records, err := h.gateway.GetHistory(c.Request.Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load history"})
		return
	}
	if records == nil {
		records = []entity.HistoryRecord{}
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}

// GetProgress returns watcher progress for a resource.
func (h *Handler) GetProgress(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load resource"})
		return
	}

	res := sess.Resource()
	progress := gin.H{
		"watching": sess.State() == review.StateWatching,
	}
	if res != nil {
		progress["chunk_count"] = res.ChunkCount
		progress["current_node"] = res.CurrentNode
	}

	c.JSON(http.StatusOK, progress)
}

type batchRequest struct {
	IDs    []string `json:"ids" binding:"required"`
	Action string   `json:"action"`
}

// batchResponse carries the aggregate outcome plus the one-shot UI
// signals: the selection is stale after any batch, and the list must be
// reloaded rather than patched in place.
type batchResponse struct {
	*entity.BatchOutcome
	ClearSelection bool `json:"clear_selection"`
	Refresh        bool `json:"refresh"`
}

// BatchReview applies one action to a set of resources.
func (h *Handler) BatchReview(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	coordinator, signals := h.newCoordinator(c.Param("type"))
	outcome, err := coordinator.Run(c.Request.Context(), req.IDs, req.Action)
	if err != nil {
		h.writeBatchError(c, err)
		return
	}

	c.JSON(http.StatusOK, batchResponse{
		BatchOutcome:   outcome,
		ClearSelection: signals.cleared,
		Refresh:        signals.refreshed,
	})
}

// BatchDelete removes a set of resources.
func (h *Handler) BatchDelete(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	coordinator, signals := h.newCoordinator(c.Param("type"))
	outcome, err := coordinator.Delete(c.Request.Context(), req.IDs)
	if err != nil {
		h.writeBatchError(c, err)
		return
	}

	c.JSON(http.StatusOK, batchResponse{
		BatchOutcome:   outcome,
		ClearSelection: signals.cleared,
		Refresh:        signals.refreshed,
	})
}

// batchSignalState records the one-shot signals for the response body.
type batchSignalState struct {
	cleared   bool
	refreshed bool
}

func (h *Handler) newCoordinator(resourceType string) (*review.BatchCoordinator, *batchSignalState) {
	state := &batchSignalState{}
	coordinator := review.NewBatchCoordinator(resourceType, h.gateway, h.workflows, review.BatchSignals{
		OnClearSelection: func() { state.cleared = true },
		OnRefresh:        func() { state.refreshed = true },
	}, h.logger)
	return coordinator, state
}

func (h *Handler) writeBatchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, review.ErrEmptySelection), errors.Is(err, workflow.ErrUnknownAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

// GetDefinition returns the node/action metadata for a resource type so
// the frontend can render labels and terminal flags. Degraded mode is
// flagged instead of failing.
func (h *Handler) GetDefinition(c *gin.Context) {
	def, err := h.workflows.Definition(c.Request.Context(), c.Param("type"))
	if err != nil && !errors.Is(err, workflow.ErrDefinitionUnavailable) {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"definition": def,
		"degraded":   def.Degraded,
	})
}

// ReloadDefinition drops the cached definition and fetches a fresh one.
func (h *Handler) ReloadDefinition(c *gin.Context) {
	def, err := h.workflows.Reload(c.Request.Context(), c.Param("type"))
	if err != nil && !errors.Is(err, workflow.ErrDefinitionUnavailable) {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"definition": def,
		"degraded":   def.Degraded,
	})
}
