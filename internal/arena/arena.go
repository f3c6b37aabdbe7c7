// Package arena provides a slot arena with stable, generation-checked
// handles.  It replaces hand-linked free lists: retired objects are reset
// and their slot index is queued for reuse, and a stale handle to a
// recycled slot no longer resolves.
//
// An Arena is not safe for concurrent use; the reactor goroutine owns it.
package arena

import (
	"fmt"

	"github.com/eapache/queue"

	muderr "sockmud/internal/errors"
)

// Handle identifies one live object.  The zero Handle never resolves.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h.gen == 0 }

func (h Handle) String() string {
	if h.IsZero() {
		return "#-"
	}
	return fmt.Sprintf("#%d.%d", h.index, h.gen)
}

type slot[T any] struct {
	val  T
	gen  uint32
	used bool
}

// Arena owns every object of type T the server ever allocated.  Slots
// are heap-allocated individually, so pointers returned by Alloc and Get
// stay valid while the arena grows.
type Arena[T any] struct {
	slots []*slot[T]
	free  *queue.Queue // of uint32 slot indices, oldest retired first
	live  int
	limit int
	reset func(*T)
}

// New creates an arena.  limit caps the number of slots (0 = unbounded);
// reset prepares an object for use.  It runs on every new slot and on
// every freed object, and must clear every reference it holds.
func New[T any](limit int, reset func(*T)) *Arena[T] {
	if reset == nil {
		reset = func(v *T) {
			var zero T
			*v = zero
		}
	}
	return &Arena[T]{
		free:  queue.New(),
		limit: limit,
		reset: reset,
	}
}

// Alloc returns a handle and pointer to a clean object, reusing a
// retired slot when one is available.  It fails with ErrPoolExhausted
// only when the limit is reached and nothing is pooled.
func (a *Arena[T]) Alloc() (Handle, *T, error) {
	var idx uint32
	if a.free.Length() > 0 {
		idx = a.free.Remove().(uint32)
	} else {
		if a.limit > 0 && len(a.slots) >= a.limit {
			return Handle{}, nil, muderr.ErrPoolExhausted
		}
		idx = uint32(len(a.slots))
		fresh := &slot[T]{}
		a.reset(&fresh.val)
		a.slots = append(a.slots, fresh)
	}

	s := a.slots[idx]
	s.gen++
	if s.gen == 0 { // wrapped; keep the zero Handle unreachable
		s.gen = 1
	}
	s.used = true
	a.live++
	return Handle{index: idx, gen: s.gen}, &s.val, nil
}

// Get resolves h.  It returns false for the zero Handle and for handles
// whose slot has been freed since.
func (a *Arena[T]) Get(h Handle) (*T, bool) {
	s := a.lookup(h)
	if s == nil {
		return nil, false
	}
	return &s.val, true
}

// Free resets the object behind h and queues its slot for reuse.  Freeing
// a stale or zero handle is a no-op and reports false.
func (a *Arena[T]) Free(h Handle) bool {
	s := a.lookup(h)
	if s == nil {
		return false
	}
	a.reset(&s.val)
	s.used = false
	a.free.Add(h.index)
	a.live--
	return true
}

// Each calls fn for every live object in slot order until fn returns
// false.  fn must not allocate from or free into the arena; collect
// handles first when the loop body changes membership.
func (a *Arena[T]) Each(fn func(Handle, *T) bool) {
	for i, s := range a.slots {
		if !s.used {
			continue
		}
		if !fn(Handle{index: uint32(i), gen: s.gen}, &s.val) {
			return
		}
	}
}

// Handles returns the handles of every live object in slot order.
func (a *Arena[T]) Handles() []Handle {
	out := make([]Handle, 0, a.live)
	a.Each(func(h Handle, _ *T) bool {
		out = append(out, h)
		return true
	})
	return out
}

// Len is the number of live objects.
func (a *Arena[T]) Len() int { return a.live }

// Pooled is the number of retired slots waiting for reuse.
func (a *Arena[T]) Pooled() int { return a.free.Length() }

// Cap is the number of slots ever allocated; Len()+Pooled() == Cap().
func (a *Arena[T]) Cap() int { return len(a.slots) }

func (a *Arena[T]) lookup(h Handle) *slot[T] {
	if h.IsZero() || int(h.index) >= len(a.slots) {
		return nil
	}
	s := a.slots[h.index]
	if !s.used || s.gen != h.gen {
		return nil
	}
	return s
}
