package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"execsim/internal/event"
	"execsim/internal/ledger"
	"execsim/internal/queue"
	"execsim/pkg/quant"
)

const (
	DefaultQueueSize = 1024
	DefaultDumpPath  = "panic_dump.json"
)

// Options configures a Driver.
type Options struct {
	Commission ledger.Commission
	QueueSize  int
	// QueueMax bounds queue growth; 0 means unbounded.
	QueueMax int
	DumpPath string
	Logger   *slog.Logger
}

// Stats counts what a run did.
type Stats struct {
	Quotes       uint64 `json:"quotes"`
	Orders       uint64 `json:"orders"`
	Fills        uint64 `json:"fills"`
	Rejects      uint64 `json:"rejects"`
	Liquidations uint64 `json:"liquidations"`
	Passes       uint64 `json:"passes"`
}

type state uint8

const (
	stateFill state = iota
	stateDrive
	stateAdvance
	stateFlush
	stateLiquidate
	stateDone
)

func (s state) String() string {
	switch s {
	case stateFill:
		return "fill"
	case stateDrive:
		return "drive"
	case stateAdvance:
		return "advance"
	case stateFlush:
		return "flush"
	case stateLiquidate:
		return "liquidate"
	case stateDone:
		return "done"
	}
	return "unknown"
}

func (s state) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Driver merges the quote and order streams and matches pending orders against
// the book. It is single-threaded: every order before the current quote is
// resolved before that quote is applied.
type Driver struct {
	book   Book
	quotes QuoteSource
	orders OrderSource
	sink   Sink
	opts   Options
	log    *slog.Logger

	queue *queue.Pending
	acct  *ledger.Account
	state state

	cur        event.Quote
	quotesDone bool
	ordersDone bool

	// lastT is the time of the last applied quote.
	lastT   quant.Time
	lastIns []byte
	// pass identifies the book state; it changes whenever a quote is applied.
	pass       uint64
	liquidated bool

	stats Stats
}

// NewDriver creates a driver. Zero option fields take their defaults.
func NewDriver(b Book, quotes QuoteSource, orders OrderSource, sink Sink, opts Options) *Driver {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.DumpPath == "" {
		opts.DumpPath = DefaultDumpPath
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Driver{
		book:   b,
		quotes: quotes,
		orders: orders,
		sink:   sink,
		opts:   opts,
		log:    opts.Logger,
		queue:  queue.New(opts.QueueSize, opts.QueueMax),
		acct:   ledger.NewAccount(),
		pass:   1,
	}
}

// Run drives both streams to exhaustion. It stops early when ctx is done or
// on the first I/O error. A panic is logged and the driver state dumped before
// it is re-raised.
func (d *Driver) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r), slog.String("state", d.state.String()))
			d.DumpState(d.opts.DumpPath)
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	// nothing can execute before the first quote; it is the reference point
	if err := d.nextQuote(); err != nil {
		return err
	}
	d.state = stateFill
	for d.state != stateDone {
		if err := ctx.Err(); err != nil {
			d.log.Info("Driver stopping...", slog.String("state", d.state.String()))
			return err
		}
		next, err := d.step()
		if err != nil {
			return fmt.Errorf("%s: %w", d.state, err)
		}
		d.state = next
	}

	d.log.Info("Run complete",
		slog.Uint64("quotes", d.stats.Quotes),
		slog.Uint64("orders", d.stats.Orders),
		slog.Uint64("fills", d.stats.Fills),
		slog.Uint64("rejects", d.stats.Rejects),
		slog.String("position", d.acct.Position.String()))
	return nil
}

func (d *Driver) step() (state, error) {
	switch d.state {
	case stateFill:
		return d.fill()
	case stateDrive:
		return d.drive()
	case stateAdvance:
		return d.advance()
	case stateFlush:
		return d.flush()
	case stateLiquidate:
		return d.liquidate()
	}
	return stateDone, nil
}

// fill pulls orders until the queue is full or the order stream ends.
func (d *Driver) fill() (state, error) {
	for !d.ordersDone && !d.queue.Full() {
		o, ok, err := d.orders.Next()
		if err != nil {
			return stateDone, fmt.Errorf("read order: %w", err)
		}
		if !ok {
			d.ordersDone = true
			d.log.Debug("Order stream exhausted", slog.Uint64("orders", d.stats.Orders))
			break
		}
		if err := d.queue.Append(o); err != nil {
			return stateDone, err
		}
		d.stats.Orders++
	}
	return stateDrive, nil
}

func (d *Driver) cutoff() quant.Time {
	if d.quotesDone {
		return quant.MaxTime
	}
	return d.cur.T
}

// drive tries every live order strictly before the cutoff once per book state.
func (d *Driver) drive() (state, error) {
	cutoff := d.cutoff()
	var err error
	d.queue.Each(func(i int, e *queue.Entry) bool {
		if e.T >= cutoff || e.Pass == d.pass {
			return true
		}
		e.Pass = d.pass
		err = d.match(i, e)
		return err == nil
	})
	if err != nil {
		return stateDone, err
	}
	d.queue.Reclaim()

	if d.quotesDone {
		return stateFlush, nil
	}
	if !d.ordersDone {
		last, _ := d.queue.Last()
		if d.queue.Empty() || last < cutoff {
			if d.queue.Full() {
				if err := d.queue.Grow(); err != nil {
					return stateDone, err
				}
				d.log.Debug("Pending queue grown", slog.Int("cap", d.queue.Cap()))
			}
			return stateFill, nil
		}
	}
	return stateAdvance, nil
}

// resolve returns the side and quantity to probe for e. ok is false for a
// liquidation while flat.
func (d *Driver) resolve(e *queue.Entry) (side event.Side, qty quant.Decimal, ok bool) {
	side, qty = e.Action.Side(), e.Qty
	if e.Action != event.Liquidate {
		return side, qty, true
	}
	switch {
	case d.acct.IsLong():
		side = event.Bid
	case d.acct.IsShort():
		side = event.Ask
	default:
		return event.SideNone, qty, false
	}
	if qty.IsNaN() {
		qty = d.acct.Position.Abs()
	}
	return side, qty, true
}

func (d *Driver) match(i int, e *queue.Entry) error {
	side, qty, ok := d.resolve(e)
	if !ok {
		d.log.Debug("Liquidation with flat position dropped", slog.String("t", e.T.String()))
		d.queue.Kill(i)
		return nil
	}
	p := d.book.Probe(side, qty, e.Limit)
	if p.Base.Sign() <= 0 {
		return nil
	}

	t := max(e.T, d.lastT)
	f := ledger.Fill{
		T:          t,
		Instrument: e.Instrument,
		Qty:        p.Base,
		Price:      p.Term.Div(p.Base),
		Notional:   p.Term,
		TopSpread:  d.book.Top(event.Ask).Sub(d.book.Top(event.Bid)),
		EffSpread:  quant.NaN(),
	}
	if c := d.book.Probe(side.Contra(), p.Base, quant.NaN()); c.Base.Sign() > 0 {
		cpx := c.Term.Div(c.Base)
		if side == event.Ask {
			f.EffSpread = f.Price.Sub(cpx)
		} else {
			f.EffSpread = cpx.Sub(f.Price)
		}
	}
	if side == event.Bid {
		f.Qty, f.Notional = f.Qty.Neg(), f.Notional.Neg()
	}
	if p.Touched {
		f.Youngest, f.Oldest, f.Aged = t.Sub(p.Youngest), t.Sub(p.Oldest), true
	}

	d.acct.Apply(f, d.opts.Commission)
	d.stats.Fills++
	d.lastIns = append(d.lastIns[:0], e.Instrument...)
	if err := d.sink.Execution(f); err != nil {
		return err
	}
	if err := d.sink.Account(t, e.Instrument, d.acct); err != nil {
		return err
	}

	switch {
	case e.Qty.IsNaN() && e.Action == event.Liquidate:
		if d.acct.IsFlat() {
			d.queue.Kill(i)
		}
	case e.Qty.IsNaN():
		d.queue.Kill(i)
	default:
		if e.Qty = e.Qty.Sub(p.Base); e.Qty.Sign() <= 0 {
			d.queue.Kill(i)
		}
	}
	return nil
}

// advance applies the current quote to the book and reads the next one.
func (d *Driver) advance() (state, error) {
	d.book.Apply(d.cur)
	if d.cur.Pair != nil {
		d.book.Apply(*d.cur.Pair)
	}
	if d.cur.Trade {
		if err := d.sink.Trade(d.cur.T, d.cur.Qty, d.cur.Price); err != nil {
			return stateDone, err
		}
	}
	d.lastT = d.cur.T
	d.stats.Quotes++
	d.pass++
	d.stats.Passes++
	if err := d.nextQuote(); err != nil {
		return stateDone, err
	}
	return stateFill, nil
}

func (d *Driver) nextQuote() error {
	q, ok, err := d.quotes.Next()
	if err != nil {
		return fmt.Errorf("read quote: %w", err)
	}
	if !ok {
		d.quotesDone = true
		d.cur = event.Quote{}
		d.log.Debug("Quote stream exhausted", slog.Uint64("quotes", d.stats.Quotes))
		return nil
	}
	d.cur = q
	return nil
}

// flush cancels every order still live after the last quote.
func (d *Driver) flush() (state, error) {
	var err error
	d.queue.Each(func(i int, e *queue.Entry) bool {
		defer d.queue.Kill(i)
		if e.Synthetic {
			d.log.Warn("Liquidation left unfilled",
				slog.String("position", d.acct.Position.String()),
				slog.String("instrument", string(e.Instrument)))
			return true
		}
		qty := e.Qty
		if side, _, _ := d.resolve(e); side == event.Bid {
			qty = qty.Neg()
		}
		d.stats.Rejects++
		err = d.sink.Execution(ledger.Fill{
			T:          max(e.T, d.lastT),
			Instrument: e.Instrument,
			Qty:        qty,
			Price:      quant.NaN(),
		})
		return err == nil
	})
	if err != nil {
		return stateDone, err
	}
	d.queue.Reclaim()
	if !d.ordersDone {
		return stateFill, nil
	}
	return stateLiquidate, nil
}

// liquidate synthesizes a single closing order for a residual position.
func (d *Driver) liquidate() (state, error) {
	if d.acct.IsFlat() || d.liquidated {
		return stateDone, nil
	}
	d.liquidated = true
	d.stats.Liquidations++
	o := event.Order{
		T:          d.lastT,
		Action:     event.Liquidate,
		Qty:        quant.NaN(),
		Limit:      quant.NaN(),
		Instrument: d.lastIns,
		Synthetic:  true,
	}
	if err := d.queue.Append(o); err != nil {
		return stateDone, err
	}
	d.log.Info("Liquidating residual position",
		slog.String("position", d.acct.Position.String()),
		slog.String("t", d.lastT.String()))
	return stateDrive, nil
}

// Account returns the live account.
func (d *Driver) Account() *ledger.Account { return d.acct }

func (d *Driver) Stats() Stats { return d.stats }

// DumpState writes the driver state to a file (for post-mortem).
func (d *Driver) DumpState(filename string) {
	d.log.Info("Dumping internal state...", slog.String("file", filename))

	var pending []event.Order
	d.queue.Each(func(_ int, e *queue.Entry) bool {
		pending = append(pending, e.Order)
		return true
	})
	data := struct {
		State   state           `json:"state"`
		Pass    uint64          `json:"pass"`
		LastT   string          `json:"last_t"`
		Queue   queue.Stats     `json:"queue"`
		Pending []event.Order   `json:"pending"`
		Account *ledger.Account `json:"account"`
		Stats   Stats           `json:"stats"`
	}{
		State:   d.state,
		Pass:    d.pass,
		LastT:   d.lastT.String(),
		Queue:   d.queue.Stats(),
		Pending: pending,
		Account: d.acct,
		Stats:   d.stats,
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		d.log.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		d.log.Error("Failed to write state dump", slog.Any("error", err))
	}
}
