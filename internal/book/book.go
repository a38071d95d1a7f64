// Package book keeps aggregated price levels per side and answers depth probes.
package book

import (
	"github.com/tidwall/btree"

	"execsim/internal/event"
	"execsim/pkg/quant"
)

// Level is the aggregated liquidity at one price.
type Level struct {
	Price quant.Decimal `json:"price"`
	Qty   quant.Decimal `json:"qty"`
	// T is the time of the last update that touched this level.
	T quant.Time `json:"t"`
}

func byPrice(a, b *Level) bool {
	c, _ := a.Price.Cmp(b.Price)
	return c < 0
}

// Probe is the outcome of a read-only depth walk.
type Probe struct {
	Base quant.Decimal // matched quantity
	Term quant.Decimal // matched quantity times price
	// Youngest and Oldest are the latest and earliest update times among the
	// touched levels. They are meaningful only when Touched is set.
	Youngest quant.Time
	Oldest   quant.Time
	Touched  bool
}

const (
	askIdx = iota
	bidIdx
)

// Book is a two-sided price level book. Asks are walked ascending and bids
// descending.
type Book struct {
	sides [2]*btree.BTreeG[*Level]
	// l1 is the standing level-1 quote per side. Its quantity is included in the
	// level at its price; the zero Level (NaN price) means none.
	l1 [2]Level
}

func New() *Book {
	b := &Book{}
	for i := range b.sides {
		b.sides[i] = btree.NewBTreeG(byPrice)
	}
	return b
}

func index(s event.Side) (int, bool) {
	switch s {
	case event.Ask:
		return askIdx, true
	case event.Bid:
		return bidIdx, true
	}
	return 0, false
}

// Apply incorporates one quote. The Pair of a combined quote is not followed.
func (b *Book) Apply(q event.Quote) {
	switch q.Side {
	case event.Clear:
		b.clear()
		return
	case event.Delete:
		b.remove(q)
		return
	}
	i, ok := index(q.Side)
	if !ok {
		return
	}

	switch q.Level {
	case 1:
		// only the previous level-1 quantity is withdrawn; deeper liquidity at
		// that price stays
		if prev := b.l1[i]; !prev.Price.IsNaN() {
			if lvl, ok := b.sides[i].Get(&prev); ok {
				b.set(i, prev.Price, lvl.Qty.Sub(prev.Qty), lvl.T)
			}
			b.l1[i] = Level{}
		}
		if q.Price.IsNaN() || q.Qty.Sign() <= 0 {
			return
		}
		qty := q.Qty
		if lvl, ok := b.sides[i].Get(&Level{Price: q.Price}); ok {
			qty = lvl.Qty.Add(q.Qty)
		}
		b.set(i, q.Price, qty, q.T)
		b.l1[i] = Level{Price: q.Price, Qty: q.Qty, T: q.T}
	case 3:
		if q.Price.IsNaN() || q.Qty.IsNaN() {
			return
		}
		lvl, ok := b.sides[i].Get(&Level{Price: q.Price})
		if !ok {
			b.set(i, q.Price, q.Qty, q.T)
			return
		}
		b.set(i, q.Price, lvl.Qty.Add(q.Qty), q.T)
	default:
		if q.Price.IsNaN() {
			return
		}
		b.set(i, q.Price, q.Qty, q.T)
	}
}

// set upserts the level at px with an absolute quantity. A quantity that is
// unspecified or not positive removes the level. It reports whether a level stands.
func (b *Book) set(i int, px, qty quant.Decimal, t quant.Time) bool {
	if qty.Sign() <= 0 {
		b.sides[i].Delete(&Level{Price: px})
		return false
	}
	b.sides[i].Set(&Level{Price: px, Qty: qty, T: t})
	return true
}

// remove takes liquidity off whichever side holds q.Price. With a quantity the
// level is reduced, otherwise it is dropped.
func (b *Book) remove(q event.Quote) {
	if q.Price.IsNaN() {
		return
	}
	key := &Level{Price: q.Price}
	for i, s := range b.sides {
		lvl, ok := s.Get(key)
		if !ok {
			continue
		}
		if q.Qty.Sign() <= 0 {
			s.Delete(key)
		} else {
			b.set(i, q.Price, lvl.Qty.Sub(q.Qty), q.T)
		}
		return
	}
}

func (b *Book) clear() {
	for i, s := range b.sides {
		s.Clear()
		b.l1[i] = Level{}
	}
}

// Probe walks side from the best price and reports how much of qty could
// execute at or better than limit. Unspecified qty takes everything available,
// unspecified limit means no price bound. The book is not modified.
func (b *Book) Probe(side event.Side, qty, limit quant.Decimal) Probe {
	p := Probe{Base: quant.Zero(), Term: quant.Zero()}
	i, ok := index(side)
	if !ok {
		return p
	}

	walk := func(lvl *Level) bool {
		if !limit.IsNaN() {
			c, _ := lvl.Price.Cmp(limit)
			if (i == askIdx && c > 0) || (i == bidIdx && c < 0) {
				return false
			}
		}
		take := lvl.Qty
		if !qty.IsNaN() {
			left := qty.Sub(p.Base)
			if left.Sign() <= 0 {
				return false
			}
			take = quant.Min(take, left)
		}
		p.Base = p.Base.Add(take)
		p.Term = p.Term.Add(take.Mul(lvl.Price))
		if !p.Touched || lvl.T > p.Youngest {
			p.Youngest = lvl.T
		}
		if !p.Touched || lvl.T < p.Oldest {
			p.Oldest = lvl.T
		}
		p.Touched = true
		return true
	}
	if i == askIdx {
		b.sides[i].Scan(walk)
	} else {
		b.sides[i].Reverse(walk)
	}
	return p
}

// Top returns the best price on side, NaN when the side is empty.
func (b *Book) Top(side event.Side) quant.Decimal {
	i, ok := index(side)
	if !ok {
		return quant.NaN()
	}
	var lvl *Level
	if i == askIdx {
		lvl, ok = b.sides[i].Min()
	} else {
		lvl, ok = b.sides[i].Max()
	}
	if !ok {
		return quant.NaN()
	}
	return lvl.Price
}

// Levels returns a copy of side in walk order.
func (b *Book) Levels(side event.Side) []Level {
	i, ok := index(side)
	if !ok {
		return nil
	}
	out := make([]Level, 0, b.sides[i].Len())
	collect := func(lvl *Level) bool {
		out = append(out, *lvl)
		return true
	}
	if i == askIdx {
		b.sides[i].Scan(collect)
	} else {
		b.sides[i].Reverse(collect)
	}
	return out
}
