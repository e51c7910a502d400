package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbase/review-engine/internal/application/port"
	"github.com/kbase/review-engine/internal/domain/entity"
	"github.com/kbase/review-engine/internal/domain/workflow"
	"github.com/kbase/review-engine/internal/infrastructure/worker"
	"go.uber.org/zap"
)

// State is the externally visible state of a review session.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateWatching   State = "watching"
)

// SessionConfig holds session configuration
type SessionConfig struct {
	ResourceType   string
	ResourceID     string
	ProcessingNode string
	PollInterval   time.Duration
}

// SessionEvents are optional callbacks surfaced to the UI layer. All
// fields may be nil.
type SessionEvents struct {
	// OnStateChange fires on every Idle/Submitting/Watching change.
	OnStateChange func(State)

	// OnProgress fires on each watcher tick with the partial chunk count.
	OnProgress func(partialCount int)

	// OnRefreshed fires when the session replaced its snapshot outside a
	// direct caller request (watcher completion).
	OnRefreshed func()

	// OnNavigateAway fires when a submit lands the resource on a
	// terminal node: the resource is no longer reviewable.
	OnNavigateAway func()
}

// Session ties one resource instance to one workflow definition and
// drives its review lifecycle. It is a view over backend-authoritative
// state and is never persisted.
type Session struct {
	config    SessionConfig
	gateway   port.BackendGateway
	workflows *WorkflowClient
	watcher   *worker.Watcher
	events    SessionEvents
	logger    *zap.Logger

	// baseCtx outlives individual requests so the watcher is not tied
	// to the lifetime of the HTTP call that started it.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	state    State
	def      *workflow.Definition
	resource *entity.Resource
	history  []entity.HistoryRecord
	closed   bool
}

// NewSession creates a session for one resource instance. Call Load
// before using it and Close when the screen is torn down.
func NewSession(
	config SessionConfig,
	gateway port.BackendGateway,
	workflows *WorkflowClient,
	events SessionEvents,
	logger *zap.Logger,
) *Session {
	if config.ProcessingNode == "" {
		config.ProcessingNode = entity.NodeProcessing
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	watcher := worker.NewWatcher(worker.WatcherConfig{
		ResourceType:   config.ResourceType,
		ProcessingNode: config.ProcessingNode,
		PollInterval:   config.PollInterval,
	}, gateway, logger)

	return &Session{
		config:    config,
		gateway:   gateway,
		workflows: workflows,
		watcher:   watcher,
		events:    events,
		logger:    logger,
		baseCtx:   baseCtx,
		cancel:    cancel,
		state:     StateIdle,
	}
}

// Load fetches the definition, the resource snapshot, and its history.
// A definition fetch failure degrades the session to read-only labels
// instead of failing the load. Calling Load again replaces the snapshot
// wholesale (last write wins).
func (s *Session) Load(ctx context.Context) error {
	def, err := s.workflows.Definition(ctx, s.config.ResourceType)
	if err != nil {
		// Degraded mode: keep the fallback definition, offer no actions.
		s.logger.Warn("Session loading in degraded mode",
			zap.String("resource_id", s.config.ResourceID),
			zap.Error(err))
	}

	res, err := s.gateway.GetResource(ctx, s.config.ResourceType, s.config.ResourceID)
	if err != nil {
		return fmt.Errorf("failed to load resource: %w", err)
	}

	history, err := s.gateway.GetHistory(ctx, s.config.ResourceType, s.config.ResourceID)
	if err != nil {
		s.logger.Warn("Failed to load review history",
			zap.String("resource_id", s.config.ResourceID),
			zap.Error(err))
	}

	s.mu.Lock()
	s.def = def
	s.resource = res
	if history != nil {
		s.history = history
	}
	resume := !s.closed && s.state == StateIdle && res.CurrentNode == s.config.ProcessingNode
	s.mu.Unlock()

	// A document already chunking when the screen opens resumes its
	// watch instead of showing a frozen count.
	if resume {
		s.startWatching()
	}

	return nil
}

// State returns the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Resource returns the latest snapshot, or nil before Load.
func (s *Session) Resource() *entity.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resource == nil {
		return nil
	}
	copy := *s.resource
	return &copy
}

// History returns the transition history last fetched from the backend.
func (s *Session) History() []entity.HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.HistoryRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Degraded reports whether the session runs on the fallback definition.
func (s *Session) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.def == nil || s.def.Degraded
}

// AvailableActions returns the actions legal from the current node.
// Empty for terminal nodes, nodes unknown to the definition, and
// degraded sessions; callers must not render action buttons then.
func (s *Session) AvailableActions() []workflow.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.def == nil || s.resource == nil {
		return nil
	}
	return s.def.ActionsFrom(s.resource.CurrentNode)
}

// CurrentNodeLabel resolves the human label of the current node.
func (s *Session) CurrentNodeLabel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resource == nil {
		return ""
	}
	if s.def == nil {
		return workflow.FallbackLabel(s.resource.CurrentNode)
	}
	return s.def.NodeName(s.resource.CurrentNode)
}

// IsTerminal reports whether the current node permits no further
// actions. Unknown nodes fail open.
func (s *Session) IsTerminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.def == nil || s.resource == nil {
		return false
	}
	return s.def.IsTerminal(s.resource.CurrentNode)
}

// Submit executes an action on the resource. On success the snapshot is
// replaced from the response and history re-fetched; landing on the
// processing node hands off to the background watcher. On any failure
// the resource is re-fetched rather than trusting the cached node, and
// the error wraps ErrTransitionRejected. Submit is not retried.
func (s *Session) Submit(ctx context.Context, actionID, note string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSubmitInFlight
	}
	if s.def == nil || !s.def.HasAction(actionID) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", workflow.ErrUnknownAction, actionID)
	}
	s.mu.Unlock()

	s.setState(StateSubmitting)

	res, err := s.gateway.SubmitReview(ctx, s.config.ResourceType, s.config.ResourceID, actionID, note)
	if err != nil {
		s.refreshResource(ctx)
		s.setState(StateIdle)
		return fmt.Errorf("%w: %v", workflow.ErrTransitionRejected, err)
	}

	if res.CurrentNode == "" {
		// Malformed response: same recovery as a rejection.
		s.logger.Warn("Transition response carried no current node, re-fetching",
			zap.String("resource_id", s.config.ResourceID),
			zap.String("action", actionID))
		s.refreshResource(ctx)
		s.setState(StateIdle)
		return fmt.Errorf("%w: response carried no current node", workflow.ErrTransitionRejected)
	}

	s.mu.Lock()
	s.resource = res
	terminal := s.def.IsTerminal(res.CurrentNode)
	s.mu.Unlock()

	s.refreshHistory(ctx)

	if res.CurrentNode == s.config.ProcessingNode {
		s.startWatching()
		return nil
	}

	s.setState(StateIdle)

	if terminal && s.events.OnNavigateAway != nil {
		s.events.OnNavigateAway()
	}

	return nil
}

// Close tears the session down and stops any active watcher. No further
// callbacks fire after Close returns.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.watcher.Stop()
	s.cancel()
}

// startWatching transitions to Watching and starts the poll loop on the
// session's own context so it survives the request that triggered it.
func (s *Session) startWatching() {
	s.setState(StateWatching)

	s.watcher.Start(s.baseCtx, s.config.ResourceID,
		func(partialCount int) {
			s.mu.Lock()
			if s.resource != nil {
				s.resource.ChunkCount = partialCount
			}
			s.mu.Unlock()
			if s.events.OnProgress != nil {
				s.events.OnProgress(partialCount)
			}
		},
		func(final *entity.Resource) {
			s.mu.Lock()
			s.resource = final
			s.mu.Unlock()

			s.refreshHistory(s.baseCtx)
			s.setState(StateIdle)
			if s.events.OnRefreshed != nil {
				s.events.OnRefreshed()
			}
		})
}

// setState stores the new state and fires OnStateChange outside the lock.
func (s *Session) setState(next State) {
	s.mu.Lock()
	if s.closed || s.state == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()

	if s.events.OnStateChange != nil {
		s.events.OnStateChange(next)
	}
}

// refreshResource replaces the snapshot from the backend, logging but
// otherwise ignoring failures. Used after a failed or malformed submit.
func (s *Session) refreshResource(ctx context.Context) {
	res, err := s.gateway.GetResource(ctx, s.config.ResourceType, s.config.ResourceID)
	if err != nil {
		s.logger.Warn("Failed to refresh resource",
			zap.String("resource_id", s.config.ResourceID),
			zap.Error(err))
		return
	}

	s.mu.Lock()
	s.resource = res
	s.mu.Unlock()
}

// refreshHistory re-fetches the history list; the transition response
// does not carry it.
func (s *Session) refreshHistory(ctx context.Context) {
	history, err := s.gateway.GetHistory(ctx, s.config.ResourceType, s.config.ResourceID)
	if err != nil {
		s.logger.Warn("Failed to refresh history",
			zap.String("resource_id", s.config.ResourceID),
			zap.Error(err))
		return
	}

	s.mu.Lock()
	s.history = history
	s.mu.Unlock()
}
