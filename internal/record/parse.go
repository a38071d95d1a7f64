// Package record decodes quote and order lines.
//
// Parsers never fail loudly: a malformed line yields ok == false and the caller
// skips it. Instrument slices in the results point into the line, so callers that
// keep a record past the current line must copy them (see event.Order.Retain).
package record

import (
	"bytes"

	"execsim/internal/event"
	"execsim/pkg/quant"
)

// ParseQuote decodes `<ts>\t<instrument>\t<side><level>\t<price>\t<qty>`.
// Fields are taken from the right, so extra leading columns are ignored.
func ParseQuote(line []byte) (event.Quote, bool) {
	line = trimEOL(line)
	t, _, ok := quant.ParseTime(line)
	if !ok {
		return event.Quote{}, false
	}
	if q, ok := parseCombined(t, line); ok {
		return q, true
	}

	rest, qf, ok := cutLast(line)
	if !ok {
		return event.Quote{}, false
	}
	rest, pf, ok := cutLast(rest)
	if !ok {
		return event.Quote{}, false
	}
	q := event.Quote{T: t, Price: decimalField(pf), Qty: decimalField(qf)}

	rest, sf, _ := cutLast(rest)
	if !decodeSide(sf, &q) {
		return event.Quote{}, false
	}
	if q.Side == event.Clear && q.Level == 1 {
		// C1 is reserved for the combined form, which did not match
		return event.Quote{}, false
	}
	_, q.Instrument, _ = cutLast(rest)
	return q, true
}

// parseCombined decodes `<ts>\t<ins>\tC1\t<bid-px>\t<ask-px>\t<bid-qty>\t<ask-qty>`
// into an ask quote paired with a bid quote.
func parseCombined(t quant.Time, line []byte) (event.Quote, bool) {
	var f [4][]byte
	rest := line
	for i := len(f) - 1; i >= 0; i-- {
		var ok bool
		if rest, f[i], ok = cutLast(rest); !ok {
			return event.Quote{}, false
		}
	}
	rest, sf, ok := cutLast(rest)
	if !ok || len(sf) < 2 || sf[0] != 'C' || sf[len(sf)-1] != '1' {
		return event.Quote{}, false
	}
	_, ins, _ := cutLast(rest)

	bid := &event.Quote{
		T: t, Instrument: ins, Side: event.Bid, Level: 1,
		Price: decimalField(f[0]), Qty: decimalField(f[2]),
	}
	return event.Quote{
		T: t, Instrument: ins, Side: event.Ask, Level: 1,
		Price: decimalField(f[1]), Qty: decimalField(f[3]),
		Pair: bid,
	}, true
}

func decodeSide(f []byte, q *event.Quote) bool {
	if len(f) == 0 {
		return false
	}
	switch f[0] {
	case 'A', 'a':
		q.Side = event.Ask
	case 'B', 'b':
		q.Side = event.Bid
	case 'C':
		q.Side = event.Clear
	case 'T':
		q.Side, q.Trade = event.Delete, true
	case 'D', 'd':
		q.Side = event.Delete
	default:
		return false
	}
	if l := f[len(f)-1]; l >= '1' && l <= '3' {
		q.Level = event.Level(l - '0')
	}
	return true
}

// ParseOrder decodes `<ts>\t<action>...\t<instrument>[\t<qty>[\t<limit>]]`.
// A zero quantity is returned as unspecified.
func ParseOrder(line []byte) (event.Order, bool) {
	line = trimEOL(line)
	t, n, ok := quant.ParseTime(line)
	if !ok || n >= len(line) || line[n] != '\t' {
		return event.Order{}, false
	}
	on := line[n+1:]
	if len(on) == 0 {
		return event.Order{}, false
	}

	o := event.Order{T: t}
	switch on[0] {
	case 'B', 'b', 'L', 'l':
		o.Action = event.Buy
	case 'S', 's':
		o.Action = event.Sell
	case 'C', 'c':
		o.Action = event.Liquidate
	default:
		return event.Order{}, false
	}

	i := bytes.IndexByte(on, '\t')
	if i < 0 {
		return event.Order{}, false
	}
	on = on[i+1:]

	i = bytes.IndexByte(on, '\t')
	if i < 0 {
		o.Instrument = on
		return o, true
	}
	o.Instrument, on = on[:i], on[i+1:]

	var k int
	o.Qty, k = quant.ScanDecimal(on)
	if on = on[k:]; len(on) > 0 && on[0] > ' ' {
		return event.Order{}, false
	}
	if o.Qty.Sign() < 0 {
		return event.Order{}, false
	}
	if o.Qty.IsZero() {
		o.Qty = quant.NaN()
	}

	if len(on) > 0 && on[0] == '\t' {
		o.Limit, k = quant.ScanDecimal(on[1:])
		if on = on[1+k:]; len(on) > 0 && on[0] > ' ' {
			return event.Order{}, false
		}
	}
	return o, true
}

func decimalField(b []byte) quant.Decimal {
	d, n := quant.ScanDecimal(b)
	if n == 0 {
		return quant.NaN()
	}
	return d
}

// cutLast splits b at its last tab. Without a tab, field is all of b and ok is false.
func cutLast(b []byte) (rest, field []byte, ok bool) {
	i := bytes.LastIndexByte(b, '\t')
	if i < 0 {
		return nil, b, false
	}
	return b[:i], b[i+1:], true
}

func trimEOL(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
