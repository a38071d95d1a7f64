package event

import (
	"execsim/pkg/quant"
)

// Side of the book a quote touches or an order probes.
type Side uint8

const (
	SideNone Side = iota
	Ask
	Bid
	Clear
	Delete
)

// Contra returns the opposite book side. Clear and Delete have none.
func (s Side) Contra() Side {
	switch s {
	case Ask:
		return Bid
	case Bid:
		return Ask
	}
	return SideNone
}

func (s Side) String() string {
	switch s {
	case Ask:
		return "ask"
	case Bid:
		return "bid"
	case Clear:
		return "clear"
	case Delete:
		return "delete"
	}
	return "none"
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Level is the book depth a quote addresses. 0 is a full refresh.
type Level uint8

// Quote is one market update. Instrument references the parser's line buffer.
type Quote struct {
	T          quant.Time
	Instrument []byte
	Side       Side
	Level      Level
	Price      quant.Decimal
	Qty        quant.Decimal
	// Trade marks a trade print; it is applied as a delete of the traded size.
	Trade bool
	// Pair is the bid half of a combined two-sided level-1 line.
	Pair *Quote
}

// Action is what an order asks the driver to do.
type Action uint8

const (
	Buy Action = iota + 1
	Sell
	Liquidate
)

// Side is the book side an action probes. Liquidate resolves at match time.
func (a Action) Side() Side {
	switch a {
	case Buy:
		return Ask
	case Sell:
		return Bid
	}
	return SideNone
}

func (a Action) String() string {
	switch a {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	case Liquidate:
		return "liquidate"
	}
	return "none"
}

func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// Order is a request read from the order stream.
type Order struct {
	T          quant.Time    `json:"t"`
	Action     Action        `json:"action"`
	Qty        quant.Decimal `json:"qty"`   // unspecified: default or full position
	Limit      quant.Decimal `json:"limit"` // unspecified: market order
	Instrument []byte        `json:"instrument"`
	Synthetic  bool          `json:"synthetic,omitempty"`
}

// Retain copies Instrument so the order outlives the line it was parsed from.
func (o *Order) Retain() {
	if o.Instrument != nil {
		o.Instrument = append([]byte(nil), o.Instrument...)
	}
}
