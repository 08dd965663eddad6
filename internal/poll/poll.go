// Package poll keeps a value fresh by calling a fetch function on mount, on
// demand and on an interval, pausing while the consumer is hidden or offline.
package poll

import (
	"context"
	"sync"
	"time"

	"sesamum.org/internal/obs"
	"sesamum.org/internal/stream"
)

const (
	DefaultInterval = 600000 * time.Millisecond

	// OfflineMessage is surfaced in State.Error while connectivity is lost.
	OfflineMessage = "Connection lost. Data may be outdated."

	unknownErrorMessage = "Unknown error occurred"
)

// FetchFunc produces a fresh value. It must return promptly once ctx is done.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// State is an immutable snapshot of a Fetcher.
type State[T any] struct {
	Data       *T         `json:"data"`
	Loading    bool       `json:"loading"`
	Error      string     `json:"error,omitempty"`
	IsOnline   bool       `json:"isOnline"`
	LastUpdate *time.Time `json:"lastUpdate,omitempty"`
}

type config struct {
	name            string
	interval        time.Duration
	enabled         bool
	pauseWhenHidden bool
	online          bool
}

// Option configures a Fetcher.
type Option func(*config)

func WithInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithEnabled(enabled bool) Option {
	return func(c *config) { c.enabled = enabled }
}

func WithPauseWhenHidden(pause bool) Option {
	return func(c *config) { c.pauseWhenHidden = pause }
}

// WithOnline sets the initial connectivity state.
func WithOnline(online bool) Option {
	return func(c *config) { c.online = online }
}

// WithName labels metrics and log lines.
func WithName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
	}
}

// Fetcher polls a FetchFunc. Start and Stop bracket its lifetime; after Stop
// no fetch is started and results of in-flight fetches are discarded.
//
// Every fetch takes a sequence number when it starts. A result is committed
// only if no later-started fetch has committed already, so overlapping
// fetches resolve to the most recently started one.
type Fetcher[T any] struct {
	fetch FetchFunc[T]
	cfg   config
	hub   *stream.Hub[State[T]]

	// lifecycle serialises Start and Stop so a Start never adds to wg
	// while a Stop is waiting on it.
	lifecycle sync.Mutex

	mu         sync.Mutex
	enabled    bool
	online     bool
	hidden     bool
	mounted    bool
	generation uint64
	life       context.Context
	stopLife   context.CancelFunc
	stopLoop   context.CancelFunc
	wg         sync.WaitGroup

	started    uint64
	committed  uint64
	loading    int
	data       T
	hasData    bool
	err        string
	lastUpdate time.Time
}

func New[T any](fetch FetchFunc[T], opts ...Option) *Fetcher[T] {
	cfg := config{
		name:            "default",
		interval:        DefaultInterval,
		enabled:         true,
		pauseWhenHidden: true,
		online:          true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f := &Fetcher[T]{
		fetch:   fetch,
		cfg:     cfg,
		hub:     stream.New[State[T]](),
		enabled: cfg.enabled,
		online:  cfg.online,
	}
	if !f.online {
		f.err = OfflineMessage
	}
	return f
}

// Interval returns the configured polling period.
func (f *Fetcher[T]) Interval() time.Duration { return f.cfg.interval }

// Start mounts the fetcher: when enabled and online it performs one explicit
// fetch in the background and starts the interval loop. Cancelling ctx has the
// same effect as Stop on pending work. A Start racing a Stop waits for the
// Stop to finish.
func (f *Fetcher[T]) Start(ctx context.Context) {
	f.lifecycle.Lock()
	defer f.lifecycle.Unlock()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mounted {
		return
	}
	f.mounted = true
	f.generation++
	f.life, f.stopLife = context.WithCancel(ctx)
	f.resumeLocked()
}

// Stop unmounts the fetcher, stops the interval loop, cancels in-flight
// fetches and waits for background goroutines to exit.
func (f *Fetcher[T]) Stop() {
	f.lifecycle.Lock()
	defer f.lifecycle.Unlock()
	f.mu.Lock()
	if !f.mounted {
		f.mu.Unlock()
		return
	}
	f.mounted = false
	f.generation++
	f.stopLoop = nil
	f.stopLife()
	f.mu.Unlock()
	f.wg.Wait()
}

// Refetch performs an explicit fetch and waits for it. Loading is true for
// its duration. Failures are recorded in State.Error, never returned.
func (f *Fetcher[T]) Refetch(ctx context.Context) {
	f.run(ctx, true)
}

// SetVisible reports page visibility. Becoming visible triggers an immediate
// background fetch when PauseWhenHidden is set.
func (f *Fetcher[T]) SetVisible(visible bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wasHidden := f.hidden
	f.hidden = !visible
	if !f.cfg.pauseWhenHidden || !visible || !wasHidden {
		return
	}
	if f.mounted && f.enabled {
		f.spawnLocked(false)
	}
}

// SetOnline reports connectivity. Going offline stops polling and surfaces
// OfflineMessage; coming back clears the error and resumes.
func (f *Fetcher[T]) SetOnline(online bool) {
	f.mu.Lock()
	if f.online == online {
		f.mu.Unlock()
		return
	}
	f.online = online
	if online {
		f.err = ""
		f.resumeLocked()
	} else {
		f.err = OfflineMessage
		f.pauseLocked()
	}
	f.mu.Unlock()
	f.publish()
}

// SetEnabled toggles polling. Disabling stops the interval loop; enabling
// behaves like a fresh mount.
func (f *Fetcher[T]) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enabled == enabled {
		return
	}
	f.enabled = enabled
	if enabled {
		f.resumeLocked()
	} else {
		f.pauseLocked()
	}
}

// State returns a snapshot of the current state.
func (f *Fetcher[T]) State() State[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

// Subscribe delivers a snapshot after every state change until ctx ends.
func (f *Fetcher[T]) Subscribe(ctx context.Context) <-chan State[T] {
	return f.hub.Subscribe(ctx)
}

func (f *Fetcher[T]) stateLocked() State[T] {
	st := State[T]{
		Loading:  f.loading > 0,
		Error:    f.err,
		IsOnline: f.online,
	}
	if f.hasData {
		d := f.data
		st.Data = &d
	}
	if !f.lastUpdate.IsZero() {
		lu := f.lastUpdate
		st.LastUpdate = &lu
	}
	return st
}

func (f *Fetcher[T]) publish() {
	f.hub.Publish(f.State())
}

// resumeLocked runs the mount sequence if the fetcher may poll.
func (f *Fetcher[T]) resumeLocked() {
	if !f.mounted || !f.enabled || !f.online {
		return
	}
	f.spawnLocked(true)
	f.pauseLocked()
	loopCtx, cancel := context.WithCancel(f.life)
	f.stopLoop = cancel
	f.wg.Add(1)
	go f.loop(loopCtx)
}

func (f *Fetcher[T]) pauseLocked() {
	if f.stopLoop != nil {
		f.stopLoop()
		f.stopLoop = nil
	}
}

func (f *Fetcher[T]) spawnLocked(explicit bool) {
	ctx := f.life
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.run(ctx, explicit)
	}()
}

func (f *Fetcher[T]) loop(ctx context.Context) {
	defer f.wg.Done()
	ticker := time.NewTicker(f.cfg.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			hidden := f.cfg.pauseWhenHidden && f.hidden
			f.mu.Unlock()
			if hidden {
				obs.PollSkipped.WithLabelValues(f.cfg.name, "hidden").Inc()
				continue
			}
			f.run(ctx, false)
		}
	}
}

func (f *Fetcher[T]) run(ctx context.Context, explicit bool) {
	kind := "background"
	if explicit {
		kind = "explicit"
	}

	f.mu.Lock()
	if !f.mounted || !f.enabled || !f.online {
		f.mu.Unlock()
		obs.PollSkipped.WithLabelValues(f.cfg.name, "inactive").Inc()
		return
	}
	f.started++
	seq := f.started
	gen := f.generation
	life := f.life
	if explicit {
		f.loading++
	}
	f.mu.Unlock()
	if explicit {
		f.publish()
	}

	fctx, cancel := context.WithCancel(life)
	defer cancel()
	if ctx != nil && ctx != life {
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
	}

	start := time.Now()
	value, err := f.fetch(fctx)
	obs.PollFetchDuration.WithLabelValues(f.cfg.name).Observe(time.Since(start).Seconds())

	f.mu.Lock()
	if explicit {
		f.loading--
	}
	outcome := "ok"
	switch {
	case gen != f.generation || fctx.Err() != nil:
		outcome = "cancelled"
	case seq <= f.committed:
		outcome = "stale"
	case err != nil:
		outcome = "error"
		f.committed = seq
		f.err = errorMessage(err)
	default:
		f.committed = seq
		f.data = value
		f.hasData = true
		f.lastUpdate = time.Now()
		if f.online {
			f.err = ""
		}
	}
	f.mu.Unlock()

	obs.PollFetches.WithLabelValues(f.cfg.name, kind, outcome).Inc()
	if outcome == "error" {
		obs.Warn("poll fetch failed", map[string]any{"poller": f.cfg.name, "kind": kind, "err": err})
	}
	f.publish()
}

func errorMessage(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return unknownErrorMessage
}
