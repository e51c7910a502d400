package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kbase/review-engine/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedGetter serves resource snapshots from a script, then repeats
// the last entry. An optional gate blocks each call until released.
type scriptedGetter struct {
	mu     sync.Mutex
	script []entity.Resource
	errs   []error
	calls  int
	gate   chan struct{}
}

func (g *scriptedGetter) GetResource(ctx context.Context, resourceType, id string) (*entity.Resource, error) {
	if g.gate != nil {
		<-g.gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	g.calls++

	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	if i >= len(g.script) {
		i = len(g.script) - 1
	}
	res := g.script[i]
	res.ID = id
	return &res, nil
}

func (g *scriptedGetter) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// collector records watcher callbacks.
type collector struct {
	mu    sync.Mutex
	ticks []int
	done  []*entity.Resource

	doneCh chan struct{}
}

func newCollector() *collector {
	return &collector{doneCh: make(chan struct{}, 8)}
}

func (c *collector) onTick(n int) {
	c.mu.Lock()
	c.ticks = append(c.ticks, n)
	c.mu.Unlock()
}

func (c *collector) onDone(final *entity.Resource) {
	c.mu.Lock()
	c.done = append(c.done, final)
	c.mu.Unlock()
	c.doneCh <- struct{}{}
}

func (c *collector) tickCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ticks)
}

func (c *collector) doneCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.done)
}

func (c *collector) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-c.doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watcher completion")
	}
}

func testConfig() WatcherConfig {
	return WatcherConfig{
		ResourceType:   "knowledge",
		ProcessingNode: "processing",
		PollInterval:   5 * time.Millisecond,
	}
}

func TestWatcher_StopsWhenResourceLeavesProcessing(t *testing.T) {
	getter := &scriptedGetter{script: []entity.Resource{
		{CurrentNode: "processing", ChunkCount: 4},
		{CurrentNode: "processing", ChunkCount: 9},
		{CurrentNode: "published", ChunkCount: 20},
	}}
	col := newCollector()

	w := NewWatcher(testConfig(), getter, zap.NewNop())
	w.Start(context.Background(), "d1", col.onTick, col.onDone)

	col.waitDone(t)

	assert.False(t, w.IsRunning())
	assert.Equal(t, []int{4, 9}, func() []int {
		col.mu.Lock()
		defer col.mu.Unlock()
		return append([]int(nil), col.ticks...)
	}())

	require.Equal(t, 1, col.doneCount())
	col.mu.Lock()
	assert.Equal(t, "published", col.done[0].CurrentNode)
	col.mu.Unlock()

	// No tick may fire after completion.
	ticksAtDone := col.tickCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, ticksAtDone, col.tickCount())
	assert.Equal(t, 1, col.doneCount())
}

func TestWatcher_DoubleStartLeavesOneLoop(t *testing.T) {
	getter := &scriptedGetter{script: []entity.Resource{
		{CurrentNode: "processing", ChunkCount: 1},
	}}
	col := newCollector()

	w := NewWatcher(testConfig(), getter, zap.NewNop())
	w.Start(context.Background(), "d1", col.onTick, col.onDone)
	w.Start(context.Background(), "d1", col.onTick, col.onDone)

	time.Sleep(100 * time.Millisecond)
	w.Stop()

	// Two concurrent loops at a 5ms interval would roughly double the
	// poll count over 100ms; a single loop stays well under that.
	assert.LessOrEqual(t, getter.callCount(), 25)
	assert.GreaterOrEqual(t, getter.callCount(), 5)
	assert.Zero(t, col.doneCount())
}

func TestWatcher_StopDiscardsInFlightPoll(t *testing.T) {
	gate := make(chan struct{})
	getter := &scriptedGetter{
		script: []entity.Resource{{CurrentNode: "published"}},
		gate:   gate,
	}
	col := newCollector()

	w := NewWatcher(testConfig(), getter, zap.NewNop())
	w.Start(context.Background(), "d1", col.onTick, col.onDone)

	// Let one poll enter the gateway, then stop while it is in flight.
	time.Sleep(20 * time.Millisecond)
	w.Stop()
	close(gate)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, col.doneCount(), "stale poll results must be discarded after Stop")
	assert.Zero(t, col.tickCount())
	assert.False(t, w.IsRunning())
}

func TestWatcher_TransientPollFailuresIgnored(t *testing.T) {
	getter := &scriptedGetter{
		errs: []error{errors.New("timeout"), errors.New("connection reset")},
		script: []entity.Resource{
			{CurrentNode: "processing"},
			{CurrentNode: "processing"},
			{CurrentNode: "processing", ChunkCount: 7},
			{CurrentNode: "published", ChunkCount: 11},
		},
	}
	col := newCollector()

	w := NewWatcher(testConfig(), getter, zap.NewNop())
	w.Start(context.Background(), "d1", col.onTick, col.onDone)

	col.waitDone(t)

	assert.Equal(t, 1, col.doneCount(), "errors must not abandon a running job")
	assert.GreaterOrEqual(t, getter.callCount(), 4)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	getter := &scriptedGetter{script: []entity.Resource{{CurrentNode: "processing"}}}

	w := NewWatcher(testConfig(), getter, zap.NewNop())
	w.Start(context.Background(), "d1", nil, nil)

	w.Stop()
	w.Stop()
	assert.False(t, w.IsRunning())
}
