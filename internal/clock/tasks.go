package clock

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskGroup runs named periodic tasks that start and stop together.
type TaskGroup struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	names   []string
	logger  *zap.Logger
	stopped bool
}

// NewTaskGroup creates a task group whose tasks end when parent is canceled or Stop is called.
func NewTaskGroup(parent context.Context, logger *zap.Logger) *TaskGroup {
	ctx, cancel := context.WithCancel(parent)
	return &TaskGroup{ctx: ctx, cancel: cancel, logger: logger}
}

// Every runs fn each interval until the group stops. fn is never invoked
// concurrently with itself.
func (g *TaskGroup) Every(name string, interval time.Duration, fn func(ctx context.Context)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	g.names = append(g.names, name)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-g.ctx.Done():
				return
			case <-ticker.C:
				fn(g.ctx)
			}
		}
	}()
	g.logger.Debug("task scheduled", zap.String("task", name), zap.Duration("interval", interval))
}

// Stop cancels every task and waits until none is running.
func (g *TaskGroup) Stop() {
	g.mu.Lock()
	g.stopped = true
	g.cancel()
	g.mu.Unlock()
	g.wg.Wait()
}

// Names returns the scheduled task names.
func (g *TaskGroup) Names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.names...)
}
