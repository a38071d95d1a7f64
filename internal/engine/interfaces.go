package engine

import (
	"execsim/internal/book"
	"execsim/internal/event"
	"execsim/internal/ledger"
	"execsim/pkg/quant"
)

// Book is the liquidity the driver matches against. Probe must not modify it.
type Book interface {
	Apply(q event.Quote)
	Probe(side event.Side, qty, limit quant.Decimal) book.Probe
	Top(side event.Side) quant.Decimal
}

// QuoteSource yields market updates in time order. ok is false once the stream
// is exhausted. The returned quote may reference a buffer that is reused by
// the following call.
type QuoteSource interface {
	Next() (q event.Quote, ok bool, err error)
}

// OrderSource yields orders in time order with delay and default quantity
// already applied. ok is false once the stream is exhausted.
type OrderSource interface {
	Next() (o event.Order, ok bool, err error)
}

// Sink receives the driver's output records.
type Sink interface {
	Trade(t quant.Time, qty, px quant.Decimal) error
	Execution(f ledger.Fill) error
	Account(t quant.Time, ins []byte, a *ledger.Account) error
}
