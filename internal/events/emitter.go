package events

import "sync"

// Bus is a thread safe trace emitter. Subscribers are called in the order
// they subscribed.
type Bus struct {
	mu   sync.RWMutex
	subs []busSub
	next int
}

type busSub struct {
	id int
	h  Handler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs = append(b.subs, busSub{id: id, h: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))

	for _, s := range b.subs {
		handlers = append(handlers, s.h)
	}

	b.mu.RUnlock()

	// Call without holding lock so handler can emit and unsubscribe safely
	for _, h := range handlers {
		h(e)
	}
}
