package player_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/edumarques81/stellar-video-player/internal/domain/player"
)

// fakeResource is an in-memory Resource. Tests drive it by emitting signals.
type fakeResource struct {
	mu sync.Mutex

	source   string
	calls    []string
	attaches []string
	detaches int
	plays    int
	pauses   int
	seeks    []float64

	position float64
	duration float64
	volume   float64
	muted    bool

	attachErr error

	subs   map[int]func(player.Signal)
	nextID int
}

func newFakeResource() *fakeResource {
	return &fakeResource{volume: 1, subs: make(map[int]func(player.Signal))}
}

func (f *fakeResource) Attach(source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "attach:"+source)
	f.attaches = append(f.attaches, source)
	if f.attachErr != nil {
		return f.attachErr
	}
	f.source = source
	f.position = 0
	return nil
}

func (f *fakeResource) Detach() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "detach")
	f.detaches++
	f.source = ""
	return nil
}

func (f *fakeResource) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return nil
}

func (f *fakeResource) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return nil
}

func (f *fakeResource) Position() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeResource) SetPosition(seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seconds)
	f.position = seconds
	return nil
}

func (f *fakeResource) Duration() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *fakeResource) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *fakeResource) SetVolume(v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
	return nil
}

func (f *fakeResource) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

func (f *fakeResource) SetMuted(muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = muted
	return nil
}

func (f *fakeResource) Subscribe(fn func(player.Signal)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// emit delivers sig to every current subscriber.
func (f *fakeResource) emit(sig player.Signal) {
	f.mu.Lock()
	fns := make([]func(player.Signal), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(sig)
	}
}

// capture returns the subscribers registered right now, so a test can
// replay a signal on a binding that has since been released.
func (f *fakeResource) capture() []func(player.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fns := make([]func(player.Signal), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	return fns
}

func (f *fakeResource) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeResource) setPosition(pos float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = pos
}

func (f *fakeResource) attachCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attaches)
}

// callLog returns attach and detach calls in order.
func (f *fakeResource) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeResource) current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}

// awaitingResource acknowledges detaches through a channel.
type awaitingResource struct {
	*fakeResource
	detached chan struct{}
}

func (a *awaitingResource) AwaitDetached(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-a.detached:
		return nil
	}
}

// stallingResource blocks its first SetVolume until release is closed,
// holding a rebind between subscribing and attaching.
type stallingResource struct {
	*fakeResource
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newStallingResource() *stallingResource {
	return &stallingResource{
		fakeResource: newFakeResource(),
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
}

func (r *stallingResource) SetVolume(v float64) error {
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.entered)
		<-r.release
	}
	return r.fakeResource.SetVolume(v)
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
