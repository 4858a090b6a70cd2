// Package hooks implements named hook channels with durable and one-shot
// subscriptions.
//
// Handlers on a channel run synchronously, in the order they subscribed.
// Each Call works on a snapshot of the channel taken when the call begins,
// so handlers may subscribe or unsubscribe freely while they run. A handler
// that fails is logged and skipped; it never stops its siblings and never
// surfaces to the caller of Call.
package hooks

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/events"
)

// Args are the positional arguments of a single Call.
type Args []any

// At returns the i-th argument, or nil when there is none.
func (a Args) At(i int) any {
	if i < 0 || i >= len(a) {
		return nil
	}
	return a[i]
}

type Handler interface {
	Handle(args Args) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(args Args) error

func (f HandlerFunc) Handle(args Args) error { return f(args) }

// Handle identifies one subscription. The zero Handle is never issued.
type Handle struct {
	Channel Channel
	id      uint64
}

type subscription struct {
	id      uint64
	handler Handler
	once    bool
	fired   atomic.Bool
	removed atomic.Bool
}

type Registry struct {
	mu       sync.Mutex
	channels map[Channel][]*subscription
	next     uint64

	log     *log.Logger
	metrics *Metrics
	trace   events.Emitter
}

type Option func(*Registry)

func WithLogger(l *log.Logger) Option {
	return func(r *Registry) { r.log = l }
}

func WithMetrics(m *Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithTrace(e events.Emitter) Option {
	return func(r *Registry) { r.trace = e }
}

// New returns an empty registry. The registry is meant to live as long as
// the host process; pass it to whoever needs to subscribe or call.
func New(opts ...Option) *Registry {
	r := &Registry{
		channels: make(map[Channel][]*subscription),
		log:      log.Default(),
		trace:    events.Discard,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// On subscribes h to ch until Off is called with the returned handle.
func (r *Registry) On(ch Channel, h Handler) (Handle, error) {
	return r.subscribe(ch, h, false)
}

// Once subscribes h to ch for a single invocation. The subscription is
// removed before h runs.
func (r *Registry) Once(ch Channel, h Handler) (Handle, error) {
	return r.subscribe(ch, h, true)
}

func (r *Registry) subscribe(ch Channel, h Handler, once bool) (Handle, error) {
	if ch == "" {
		return Handle{}, fmt.Errorf("%w: empty channel name", ErrInvalidArgument)
	}
	if !invocable(h) {
		return Handle{}, fmt.Errorf("%w: nil handler for %q", ErrInvalidArgument, ch)
	}

	r.mu.Lock()
	r.next++
	s := &subscription{id: r.next, handler: h, once: once}
	r.channels[ch] = append(r.channels[ch], s)
	r.mu.Unlock()

	r.metrics.subscribed(ch)

	return Handle{Channel: ch, id: s.id}, nil
}

func invocable(h Handler) bool {
	if h == nil {
		return false
	}
	if f, ok := h.(HandlerFunc); ok && f == nil {
		return false
	}
	return true
}

// Off removes the subscription behind h. Removing twice, or removing a
// one-shot subscription that already fired, does nothing.
func (r *Registry) Off(h Handle) {
	if h.id == 0 {
		return
	}
	r.remove(h.Channel, h.id)
}

func (r *Registry) remove(ch Channel, id uint64) {
	r.mu.Lock()
	subs := r.channels[ch]
	idx := slices.IndexFunc(subs, func(s *subscription) bool { return s.id == id })
	if idx < 0 {
		r.mu.Unlock()
		return
	}

	subs[idx].removed.Store(true)
	// Snapshots taken by in-flight calls are clones, so deleting in place
	// is safe.
	r.channels[ch] = slices.Delete(subs, idx, idx+1)
	r.mu.Unlock()

	r.metrics.unsubscribed(ch)
}

// Call invokes every current subscriber of ch with args, in subscription
// order. Subscribers added during the call are not invoked by it.
func (r *Registry) Call(ch Channel, args ...any) {
	r.mu.Lock()
	subs, ok := r.channels[ch]
	if !ok && ch != "" {
		r.channels[ch] = nil
	}
	snapshot := slices.Clone(subs)
	r.mu.Unlock()

	r.metrics.called(ch)
	r.log.Debug("hook call", "channel", ch, "subscribers", len(snapshot))
	r.trace.Emit(events.Event{
		Type:   events.HookCall,
		Time:   time.Now(),
		Fields: map[string]any{"channel": string(ch), "subscribers": len(snapshot)},
	})

	for i, s := range snapshot {
		if s.removed.Load() {
			continue
		}

		if s.once {
			if !s.fired.CompareAndSwap(false, true) {
				continue
			}
			r.remove(ch, s.id)
		}

		if err := invoke(s.handler, args); err != nil {
			r.fail(&HandlerError{Channel: ch, Position: i, Err: err})
		}
	}
}

func invoke(h Handler, args Args) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	return h.Handle(args)
}

func (r *Registry) fail(err *HandlerError) {
	r.metrics.failed(err.Channel)
	r.log.Error("hook handler failed", "channel", err.Channel, "position", err.Position, "err", err.Err)
	r.trace.Emit(events.Event{
		Type: events.HandlerFailed,
		Time: time.Now(),
		Fields: map[string]any{
			"channel":  string(err.Channel),
			"position": err.Position,
			"error":    err.Error(),
		},
	})
}

// Subscribers returns how many subscriptions ch currently holds.
func (r *Registry) Subscribers(ch Channel) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.channels[ch])
}

// Channels returns every channel that has been subscribed to or called,
// sorted by name.
func (r *Registry) Channels() []Channel {
	r.mu.Lock()
	out := make([]Channel, 0, len(r.channels))
	for ch := range r.channels {
		out = append(out, ch)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}
