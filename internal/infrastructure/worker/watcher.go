// Package worker contains the background job watcher that polls a
// resource while it sits in the processing node.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbase/review-engine/internal/application/port"
	"github.com/kbase/review-engine/internal/domain/entity"
	"go.uber.org/zap"
)

// TickFunc receives the partial chunk count observed by a poll.
type TickFunc func(partialCount int)

// DoneFunc receives the final snapshot once the resource leaves the
// processing node. It is called exactly once per watch.
type DoneFunc func(final *entity.Resource)

// WatcherConfig holds watcher configuration
type WatcherConfig struct {
	ResourceType   string
	ProcessingNode string
	PollInterval   time.Duration
}

// DefaultWatcherConfig returns default configuration
func DefaultWatcherConfig(resourceType string) WatcherConfig {
	return WatcherConfig{
		ResourceType:   resourceType,
		ProcessingNode: entity.NodeProcessing,
		PollInterval:   2 * time.Second,
	}
}

// Watcher polls one resource on a fixed interval until it leaves the
// processing node. Transient poll failures are swallowed: a job already
// running server-side must not be abandoned because of a client-side
// blip. Only an observed node change or Stop ends the loop.
//
// A generation counter gates every callback, so a stale poll resolving
// after Stop (or after a newer Start) is discarded rather than fired.
type Watcher struct {
	config WatcherConfig
	getter port.ResourceGetter
	logger *zap.Logger

	generation atomic.Uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewWatcher creates a new watcher
func NewWatcher(config WatcherConfig, getter port.ResourceGetter, logger *zap.Logger) *Watcher {
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.ProcessingNode == "" {
		config.ProcessingNode = entity.NodeProcessing
	}

	return &Watcher{
		config: config,
		getter: getter,
		logger: logger,
	}
}

// Start begins polling the resource. A running loop is stopped first so
// there is never more than one active loop per watcher instance.
func (w *Watcher) Start(ctx context.Context, resourceID string, onTick TickFunc, onDone DoneFunc) {
	w.mu.Lock()
	if w.running && w.cancel != nil {
		w.cancel()
	}

	gen := w.generation.Add(1)
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.mu.Unlock()

	w.logger.Debug("Watcher started",
		zap.String("resource_id", resourceID),
		zap.Duration("poll_interval", w.config.PollInterval))

	go w.pollLoop(loopCtx, gen, resourceID, onTick, onDone)
}

// Stop cancels the watch. No callback fires after Stop returns, even
// for polls already in flight.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.generation.Add(1)
	w.running = false
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

// IsRunning reports whether a poll loop is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// pollLoop runs the polling loop for one watch generation.
func (w *Watcher) pollLoop(ctx context.Context, gen uint64, resourceID string, onTick TickFunc, onDone DoneFunc) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			res, err := w.getter.GetResource(ctx, w.config.ResourceType, resourceID)
			if err != nil {
				// Transient failure: keep polling.
				w.logger.Debug("Watcher poll failed",
					zap.String("resource_id", resourceID),
					zap.Error(err))
				continue
			}

			if w.generation.Load() != gen {
				return
			}

			if res.CurrentNode != w.config.ProcessingNode {
				if !w.finish(gen) {
					return
				}
				w.logger.Debug("Watcher done",
					zap.String("resource_id", resourceID),
					zap.String("current_node", res.CurrentNode))
				if onDone != nil {
					onDone(res)
				}
				return
			}

			if onTick != nil {
				onTick(res.ChunkCount)
			}
		}
	}
}

// finish retires the watch generation before onDone fires, so any stale
// in-flight poll is discarded. It reports whether this loop was still
// the active one.
func (w *Watcher) finish(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.generation.Load() != gen {
		return false
	}

	w.generation.Add(1)
	w.running = false
	w.cancel = nil
	return true
}
