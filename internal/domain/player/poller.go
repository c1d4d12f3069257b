package player

import (
	"context"
	"sync"
	"time"
)

// DefaultFrameInterval is roughly one display frame at 60 fps.
const DefaultFrameInterval = 16 * time.Millisecond

// FramePoller runs at most one repeating per-frame task at a time.
// Each run gets its own cancellation token so a stopped loop can never
// fire again, even if Start is called right after Stop.
type FramePoller struct {
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	running uint64 // token of the active loop, 0 when idle
	nextTok uint64
}

// NewFramePoller creates a poller ticking every interval.
func NewFramePoller(interval time.Duration) *FramePoller {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FramePoller{interval: interval}
}

// Start begins calling tick every frame. Returns false if a loop is already
// running; the existing loop is kept.
func (p *FramePoller) Start(tick func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running != 0 {
		return false
	}

	p.nextTok++
	token := p.nextTok
	ctx, cancel := context.WithCancel(context.Background())

	p.running = token
	p.cancel = cancel

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !p.isCurrent(token) {
					return
				}
				tick()
			}
		}
	}()

	return true
}

// Stop cancels the active loop, if any. It does not wait: a tick that is
// already executing finishes, but no further tick of that loop starts.
func (p *FramePoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = nil
	p.running = 0
}

// Running reports whether a loop is active.
func (p *FramePoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running != 0
}

func (p *FramePoller) isCurrent(token uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running == token
}
