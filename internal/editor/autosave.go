package editor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type SaveFunc func(ctx context.Context, content string) error

type AutosaveOptions struct {
	Debounce   time.Duration
	MaxRetries int
	Backoff    time.Duration
	Logger     zerolog.Logger
}

// Autosaver debounces content changes into saves. Only the newest content
// in a debounce window is saved. A failed save is retried with doubling
// backoff until it succeeds, runs out of retries, or newer content arrives.
type Autosaver struct {
	save SaveFunc
	opts AutosaveOptions

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	timer      *time.Timer
	pending    string
	generation uint64
	dirty      bool
	closed     bool
	lastErr    error
}

func NewAutosaver(save SaveFunc, opts AutosaveOptions) *Autosaver {
	if opts.Debounce <= 0 {
		opts.Debounce = time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Autosaver{save: save, opts: opts, ctx: ctx, cancel: cancel}
}

// Schedule restarts the debounce window with content as the next save.
func (a *Autosaver) Schedule(content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.generation++
	a.pending = content
	a.dirty = true
	gen := a.generation
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.opts.Debounce, func() { a.fire(gen) })
}

// Dirty reports unsaved changes: true from Schedule until a save of the
// newest content succeeds.
func (a *Autosaver) Dirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dirty
}

// Err is the last save error, cleared by the next successful save.
func (a *Autosaver) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Flush saves pending content now, once, skipping the debounce window.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if !a.dirty {
		a.mu.Unlock()
		return nil
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.generation++
	content := a.pending
	a.mu.Unlock()

	err := a.save(ctx, content)
	a.finish(content, err)
	return err
}

// Close cancels the pending timer and any retry wait, then waits for an
// in-flight save to return. Unsaved content is dropped; call Flush first
// to keep it.
func (a *Autosaver) Close() {
	a.mu.Lock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()
	a.cancel()
	a.wg.Wait()
}

func (a *Autosaver) fire(gen uint64) {
	a.mu.Lock()
	if a.closed || gen != a.generation {
		a.mu.Unlock()
		return
	}
	content := a.pending
	a.wg.Add(1)
	a.mu.Unlock()
	defer a.wg.Done()

	backoff := a.opts.Backoff
	for attempt := 0; ; attempt++ {
		err := a.save(a.ctx, content)
		a.finish(content, err)
		if err == nil {
			return
		}
		a.opts.Logger.Warn().Err(err).Int("attempt", attempt+1).Msg("autosave failed")
		if attempt >= a.opts.MaxRetries {
			return
		}
		select {
		case <-a.ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if a.superseded(gen) {
			return
		}
	}
}

func (a *Autosaver) superseded(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return gen != a.generation
}

// finish clears dirty when the content just saved is still the newest,
// whichever save (timer or Flush) got it there.
func (a *Autosaver) finish(content string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastErr = err
	if err == nil && content == a.pending {
		a.dirty = false
	}
}
