// Package queue holds orders waiting for the book to catch up with them.
package queue

import (
	"errors"
	"fmt"

	"execsim/internal/event"
	"execsim/pkg/quant"
)

// GrowthFactor is the capacity multiplier applied by Grow. Growth is rare, so it
// is amortized hard.
const GrowthFactor = 16

var (
	ErrFull      = errors.New("pending queue full")
	ErrExhausted = errors.New("pending queue capacity exhausted")
)

// Entry is one queued order. Dead entries stay in place until Reclaim or
// Compact moves past them.
type Entry struct {
	event.Order
	// Pass is the last driver pass that tried this entry.
	Pass uint64
	live bool
}

func (e *Entry) Live() bool { return e.live }

// Stats is a snapshot of the queue counters.
type Stats struct {
	Appended    uint64 `json:"appended"`
	Retired     uint64 `json:"retired"`
	Live        int    `json:"live"`
	Head        int    `json:"head"`
	Tail        int    `json:"tail"`
	Cap         int    `json:"cap"`
	Grows       int    `json:"grows"`
	Compactions int    `json:"compactions"`
}

// Pending is a FIFO of orders with a dead prefix [0, head) and a live window
// [head, tail). Capacity only grows.
// Appended == Retired + Live holds after every operation.
type Pending struct {
	slots []Entry
	head  int
	tail  int
	max   int

	appended uint64
	retired  uint64
	live     int
	last     quant.Time

	grows       int
	compactions int
}

// New returns a queue with the given initial capacity. max bounds Grow; 0 means
// unbounded.
func New(capacity, max int) *Pending {
	if capacity < 1 {
		capacity = 1
	}
	if max > 0 && capacity > max {
		capacity = max
	}
	return &Pending{slots: make([]Entry, capacity), max: max}
}

// Append adds o at the tail and takes a private copy of its instrument.
// The caller must Grow when the queue is Full.
func (p *Pending) Append(o event.Order) error {
	if p.tail == len(p.slots) {
		return ErrFull
	}
	o.Retain()
	p.slots[p.tail] = Entry{Order: o, live: true}
	p.tail++
	p.appended++
	p.live++
	p.last = o.T
	return nil
}

// Grow multiplies capacity by GrowthFactor, up to the configured maximum.
// The live window is moved to the front while copying.
func (p *Pending) Grow() error {
	old := len(p.slots)
	if p.max > 0 && old >= p.max {
		return fmt.Errorf("%w: capacity %d", ErrExhausted, old)
	}
	n := old * GrowthFactor
	if n/GrowthFactor != old {
		return fmt.Errorf("%w: capacity %d", ErrExhausted, old)
	}
	if p.max > 0 && n > p.max {
		n = p.max
	}
	slots := make([]Entry, n)
	p.tail = copy(slots, p.slots[p.head:p.tail])
	p.head = 0
	p.slots = slots
	p.grows++
	return nil
}

// Kill retires the entry at index i. Killing a dead entry is a no-op.
func (p *Pending) Kill(i int) {
	e := &p.slots[i]
	if !e.live {
		return
	}
	e.live = false
	e.Instrument = nil
	p.retired++
	p.live--
}

// Reclaim advances head past the dead prefix. An empty queue rewinds to index 0;
// a dead prefix of at least half the capacity is compacted away.
func (p *Pending) Reclaim() {
	for p.head < p.tail && !p.slots[p.head].live {
		p.slots[p.head] = Entry{}
		p.head++
	}
	switch {
	case p.head == p.tail:
		p.head, p.tail = 0, 0
	case p.head >= len(p.slots)/2:
		p.Compact()
	}
}

// Compact shifts the window [head, tail) down to index 0.
func (p *Pending) Compact() {
	if p.head == 0 {
		return
	}
	n := copy(p.slots, p.slots[p.head:p.tail])
	clear(p.slots[n:p.tail])
	p.head, p.tail = 0, n
	p.compactions++
}

// Each calls fn for every live entry in arrival order until fn returns false.
// fn may Kill the entry it is given.
func (p *Pending) Each(fn func(i int, e *Entry) bool) {
	for i := p.head; i < p.tail; i++ {
		if !p.slots[i].live {
			continue
		}
		if !fn(i, &p.slots[i]) {
			return
		}
	}
}

// Full reports that Append would fail.
func (p *Pending) Full() bool { return p.tail == len(p.slots) }

// Empty reports that no entry is live.
func (p *Pending) Empty() bool { return p.live == 0 }

func (p *Pending) Len() int  { return p.live }
func (p *Pending) Cap() int  { return len(p.slots) }
func (p *Pending) Head() int { return p.head }

// Last returns the timestamp of the most recently appended order.
func (p *Pending) Last() (quant.Time, bool) { return p.last, p.appended > 0 }

func (p *Pending) Stats() Stats {
	return Stats{
		Appended:    p.appended,
		Retired:     p.retired,
		Live:        p.live,
		Head:        p.head,
		Tail:        p.tail,
		Cap:         len(p.slots),
		Grows:       p.grows,
		Compactions: p.compactions,
	}
}
