// Package emit writes the simulator's tab-separated output records.
package emit

import (
	"fmt"
	"io"
	"time"

	"execsim/internal/ledger"
	"execsim/pkg/quant"
)

// Kind tags an output record.
type Kind string

const (
	KindTrade     Kind = "TRA"
	KindExecution Kind = "EXE"
	KindReject    Kind = "REJ"
	KindAccount   Kind = "ACC"
)

// Record is one emitted line in structured form, as handed to a Journal.
type Record struct {
	T          quant.Time
	Instrument string
	Kind       Kind
	// Fields are the formatted values following the kind column.
	Fields []string
	Line   string
}

// Journal receives a copy of every record after it was written.
type Journal interface {
	Record(r Record) error
}

// Emitter formats records and writes each one with a single Write call.
type Emitter struct {
	w       io.Writer
	journal Journal
	buf     []byte
}

func New(w io.Writer, j Journal) *Emitter {
	return &Emitter{w: w, journal: j, buf: make([]byte, 0, 256)}
}

// Trade writes `TS\tTRA\tqty\tprice`.
func (e *Emitter) Trade(t quant.Time, qty, px quant.Decimal) error {
	return e.emit(t, "", KindTrade, qty.String(), px.String())
}

// Execution writes an EXE record, or REJ when f carries no price.
func (e *Emitter) Execution(f ledger.Fill) error {
	k := KindExecution
	if f.Rejected() {
		k = KindReject
	}
	return e.emit(f.T, string(f.Instrument), k,
		f.Qty.String(),
		f.Price.String(),
		f.TopSpread.String(),
		f.EffSpread.String(),
		age(f.Youngest, f.Aged),
		age(f.Oldest, f.Aged),
	)
}

// Account writes an ACC snapshot.
func (e *Emitter) Account(t quant.Time, ins []byte, a *ledger.Account) error {
	return e.emit(t, string(ins), KindAccount,
		a.Position.String(),
		a.Cash.String(),
		a.Commission.String(),
		a.SpreadCost.String(),
		quant.FormatDuration(a.YoungestSum),
		quant.FormatDuration(a.OldestSum),
	)
}

func age(d time.Duration, ok bool) string {
	if !ok {
		return quant.NaN().String()
	}
	return quant.FormatDuration(d)
}

func (e *Emitter) emit(t quant.Time, ins string, k Kind, fields ...string) error {
	b := t.AppendTo(e.buf[:0])
	if k != KindTrade {
		b = append(b, '\t')
		b = append(b, ins...)
	}
	b = append(b, '\t')
	b = append(b, k...)
	for _, f := range fields {
		b = append(b, '\t')
		b = append(b, f...)
	}
	b = append(b, '\n')
	e.buf = b

	if _, err := e.w.Write(b); err != nil {
		return fmt.Errorf("write %s record: %w", k, err)
	}
	if e.journal == nil {
		return nil
	}
	r := Record{T: t, Instrument: ins, Kind: k, Fields: fields, Line: string(b[:len(b)-1])}
	if err := e.journal.Record(r); err != nil {
		return fmt.Errorf("journal %s record: %w", k, err)
	}
	return nil
}
