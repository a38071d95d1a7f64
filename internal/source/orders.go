package source

import (
	"io"
	"log/slog"
	"time"

	"execsim/internal/event"
	"execsim/internal/record"
	"execsim/pkg/quant"
)

// OrderOptions are applied to every order as it is read.
type OrderOptions struct {
	// Delay is added to each order's timestamp to model transmission latency.
	Delay time.Duration
	// Qty replaces an unspecified buy or sell quantity.
	Qty    quant.Decimal
	Filter record.Filter
}

// Orders yields parsed orders with delay and default quantity applied.
type Orders struct {
	lines  lineReader
	opts   OrderOptions
	log    *slog.Logger
	counts Counters
}

func NewOrders(r io.Reader, opts OrderOptions, log *slog.Logger) *Orders {
	return &Orders{lines: newScanLines(r), opts: opts, log: log}
}

func (s *Orders) Next() (event.Order, bool, error) {
	for {
		line, ok, err := s.lines.next()
		if err != nil || !ok {
			return event.Order{}, false, err
		}
		s.counts.Lines++
		o, ok := record.ParseOrder(line)
		if ok && o.T > quant.MaxTime-quant.Time(s.opts.Delay) {
			ok = false
		}
		if !ok {
			s.counts.Malformed++
			s.log.Debug("Malformed order skipped", slog.Uint64("line", s.counts.Lines))
			continue
		}
		if !s.opts.Filter.Match(o.Instrument) {
			s.counts.Filtered++
			continue
		}
		o.T = o.T.Add(s.opts.Delay)
		if o.Qty.IsNaN() && o.Action != event.Liquidate {
			o.Qty = s.opts.Qty
		}
		return o, true, nil
	}
}

func (s *Orders) Counters() Counters { return s.counts }
