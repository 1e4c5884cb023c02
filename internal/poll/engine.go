package poll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// TickInterval is the countdown step; one tick is one minute of the poll.
const TickInterval = time.Minute

const timesUp = "Time's up!"

// MessageHandle identifies the chat message that shows a poll.
type MessageHandle struct {
	ChatID    int64
	MessageID int
}

func (h MessageHandle) IsZero() bool {
	return h.ChatID == 0 && h.MessageID == 0
}

// View is what the renderer needs to draw a poll. Handle is zero on the
// first render, which is expected to post the message.
type View struct {
	Handle    MessageHandle
	Title     string
	Options   []string
	Symbols   []Symbol
	Mode      Mode
	Remaining int
}

type Renderer interface {
	Render(ctx context.Context, v View) (MessageHandle, error)
}

type ReactionCounter interface {
	ReactionCount(ctx context.Context, h MessageHandle) ([]int, error)
}

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Resolver is told about the outcome once, after the announcements went out.
type Resolver interface {
	Resolved(ctx context.Context, s *State, o Outcome)
}

type Option func(*Engine)

func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithResolver(r Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// Engine runs the countdown of a single poll. It is the only writer of the
// poll's elapsed time and status.
type Engine struct {
	renderer Renderer
	counter  ReactionCounter
	notifier Notifier
	resolver Resolver

	clock    clockwork.Clock
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	state   *State
	last    State
	handle  MessageHandle
	outcome   *Outcome
	started   bool
	stopped   bool
	resolving bool

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewEngine(s *State, r Renderer, c ReactionCounter, n Notifier, opts ...Option) *Engine {
	e := &Engine{
		renderer: r,
		counter:  c,
		notifier: n,
		clock:    clockwork.NewRealClock(),
		interval: TickInterval,
		log:      zerolog.Nop(),
		state:    s,
		last:     s.clone(),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With().Str("poll_id", s.ID.String()).Logger()
	return e
}

// Start posts the initial poll message. The poll is not scheduled if this fails.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true
	v := e.viewLocked()
	e.mu.Unlock()

	h, err := e.renderer.Render(ctx, v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRenderFailure, err)
	}

	e.mu.Lock()
	e.handle = h
	e.mu.Unlock()

	e.log.Info().Int("minutes", v.Remaining).Stringer("mode", v.Mode).Int("options", len(v.Options)).Msg("poll started")
	return nil
}

// Run drives the countdown until the poll expires, Stop is called or ctx is
// cancelled. Only natural expiry resolves the poll.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)

	ticker := e.clock.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			e.log.Info().Msg("poll stopped")
			return
		case <-ctx.Done():
			e.log.Info().Err(ctx.Err()).Msg("poll context cancelled")
			return
		case <-ticker.Chan():
			if e.tick(ctx) {
				return
			}
		}
	}
}

// Stop cancels the poll. It is safe to call more than once and after expiry.
// It reports whether this call prevented the resolution; once the last tick
// has expired the poll, the result is announced regardless.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	prevented := !e.stopped && !e.resolving
	e.stopped = true
	e.mu.Unlock()

	e.stopOnce.Do(func() { close(e.stopCh) })
	return prevented
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Snapshot returns a copy of the poll as of the last completed tick.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last.clone()
}

// Outcome reports the resolved outcome, if any.
func (e *Engine) Outcome() (Outcome, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.outcome == nil {
		return Outcome{}, false
	}
	return *e.outcome, true
}

func (e *Engine) Handle() MessageHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handle
}

// tick advances the countdown once and reports whether the loop must end.
func (e *Engine) tick(ctx context.Context) bool {
	e.mu.Lock()
	if e.stopped || e.state == nil {
		e.mu.Unlock()
		return true
	}
	expired := e.state.advance()
	if expired {
		e.resolving = true
	}
	v := e.viewLocked()
	e.last = e.state.clone()
	e.mu.Unlock()

	h, err := e.renderer.Render(ctx, v)
	if err != nil {
		e.log.Warn().Err(err).Int("remaining", v.Remaining).Msg("poll render failed")
	} else if !h.IsZero() {
		e.mu.Lock()
		e.handle = h
		e.mu.Unlock()
	}

	if !expired {
		return false
	}

	e.resolve(ctx)
	return true
}

func (e *Engine) resolve(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		e.log.Info().Err(err).Msg("poll context cancelled before resolution")
		return
	}

	e.mu.Lock()
	if e.state == nil {
		e.mu.Unlock()
		return
	}
	s := e.state
	h := e.handle
	e.mu.Unlock()

	outcome := Draw()
	counts, err := e.counter.ReactionCount(ctx, h)
	switch {
	case err != nil:
		e.log.Error().Err(fmt.Errorf("%w: %w", ErrCountReadFailure, err)).Msg("poll resolved as draw")
	case len(counts) != len(s.Symbols):
		e.log.Error().Err(ErrCountReadFailure).Int("want", len(s.Symbols)).Int("got", len(counts)).Msg("poll resolved as draw")
	default:
		e.mu.Lock()
		copy(s.Counts, counts)
		e.last = s.clone()
		e.mu.Unlock()
		outcome = Tally(s.Symbols, s.Options, s.Counts)
	}

	e.mu.Lock()
	e.outcome = &outcome
	e.state = nil
	e.mu.Unlock()

	if err := e.notifier.Notify(ctx, timesUp); err != nil {
		e.log.Warn().Err(err).Msg("notify time's up failed")
	}
	if err := e.notifier.Notify(ctx, outcome.Announcement()); err != nil {
		e.log.Warn().Err(err).Msg("notify outcome failed")
	}
	if e.resolver != nil {
		e.resolver.Resolved(ctx, s, outcome)
	}

	e.log.Info().Stringer("outcome", outcome.Kind).Ints("counts", s.Counts).Msg("poll resolved")
}

func (e *Engine) viewLocked() View {
	s := e.state
	return View{
		Handle:    e.handle,
		Title:     s.Title,
		Options:   append([]string(nil), s.Options...),
		Symbols:   append([]Symbol(nil), s.Symbols...),
		Mode:      s.Mode(),
		Remaining: s.Remaining(),
	}
}
