package automation

import (
	"context"
	"sync"
	"time"

	"github.com/mact/ops-server/internal/pkg/logger"
)

// Runner drives the engine on a fixed interval: scan first, then process due
// reminders. One pass runs at a time; Stop waits for the in-flight pass.
type Runner struct {
	engine   *Engine
	tenantID string
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewRunner(engine *Engine, tenantID string, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Runner{engine: engine, tenantID: tenantID, interval: interval}
}

// Start launches the tick loop. Calling Start on a running runner is a no-op.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go r.loop(ctx)
	logger.Info("automation runner started", "interval", r.interval.String())
}

// Stop cancels the loop and waits for the current pass to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
	logger.Info("automation runner stopped")
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	scan, err := r.engine.Scan(ctx, r.tenantID)
	if err != nil {
		logger.Error("automation scan failed", "error", err.Error())
	} else {
		logger.Info("automation scan complete",
			"orders", scan.OrdersSeen, "created", scan.Created, "retired", scan.Retired,
			"errors", len(scan.Errors))
	}

	proc, err := r.engine.ProcessDue(ctx, r.tenantID)
	if err != nil {
		logger.Error("automation process failed", "error", err.Error())
		return
	}
	logger.Info("automation process complete",
		"due", proc.Due, "sent", proc.Sent, "retired", proc.Retired, "errors", len(proc.Errors))
}
