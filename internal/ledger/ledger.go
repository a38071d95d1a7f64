// Package ledger accumulates position, cash and cost figures from fills.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"execsim/pkg/quant"
	"execsim/pkg/safe"
)

var ErrBadCommission = errors.New("invalid commission")

// Commission is charged per fill: Base per unit of base asset traded and Term
// per unit of term asset (notional).
type Commission struct {
	Base quant.Decimal `yaml:"base" json:"base"`
	Term quant.Decimal `yaml:"term" json:"term"`
}

// ParseCommission reads "BASE[/TERM]". An empty string charges nothing.
func ParseCommission(s string) (Commission, error) {
	c := Commission{Base: quant.Zero(), Term: quant.Zero()}
	if s == "" {
		return c, nil
	}
	base, term, hasTerm := strings.Cut(s, "/")
	var err error
	if c.Base, err = parseRate(base); err != nil {
		return Commission{}, fmt.Errorf("%w %q: %w", ErrBadCommission, s, err)
	}
	if hasTerm {
		if c.Term, err = parseRate(term); err != nil {
			return Commission{}, fmt.Errorf("%w %q: %w", ErrBadCommission, s, err)
		}
	}
	return c, nil
}

func parseRate(s string) (quant.Decimal, error) {
	d, err := quant.ParseDecimal(s)
	if err != nil {
		return d, err
	}
	if d.IsNaN() {
		return d, errors.New("rate must be a number")
	}
	return d, nil
}

// Charge is the (non-negative) fee for q units with the given term notional.
// Unspecified rates charge nothing.
func (c Commission) Charge(q, notional quant.Decimal) quant.Decimal {
	fee := quant.Zero()
	if !c.Base.IsNaN() {
		fee = fee.Add(c.Base.Mul(q.Abs()))
	}
	if !c.Term.IsNaN() {
		fee = fee.Add(c.Term.Mul(notional.Abs()))
	}
	return fee
}

func (c Commission) String() string {
	return c.Base.String() + "/" + c.Term.String()
}

// Fill is one matched quantity. A fill with an unspecified price is a rejection.
type Fill struct {
	T          quant.Time
	Instrument []byte
	Qty        quant.Decimal // signed, positive when base asset was bought
	Price      quant.Decimal // average price, for display
	// Notional is the exact term amount matched, signed like Qty. When
	// unspecified it is derived from Qty and Price.
	Notional   quant.Decimal
	TopSpread  quant.Decimal
	EffSpread  quant.Decimal
	// Youngest and Oldest are the ages of the freshest and stalest liquidity
	// consumed. They are meaningful only when Aged is set.
	Youngest time.Duration
	Oldest   time.Duration
	Aged     bool
}

func (f Fill) Rejected() bool { return f.Price.IsNaN() }

// Account is the running state of one simulation. Commission and SpreadCost
// only ever decrease.
type Account struct {
	Position    quant.Decimal `json:"position"`
	Cash        quant.Decimal `json:"cash"`
	Commission  quant.Decimal `json:"commission"`
	SpreadCost  quant.Decimal `json:"spread_cost"`
	YoungestSum time.Duration `json:"youngest_sum"`
	OldestSum   time.Duration `json:"oldest_sum"`
	Fills       int           `json:"fills"`
}

func NewAccount() *Account {
	return &Account{
		Position:   quant.Zero(),
		Cash:       quant.Zero(),
		Commission: quant.Zero(),
		SpreadCost: quant.Zero(),
	}
}

// Apply books f. Rejections change nothing and return false.
func (a *Account) Apply(f Fill, c Commission) bool {
	if f.Rejected() || f.Qty.IsNaN() {
		return false
	}
	n := f.Notional
	if n.IsNaN() {
		n = f.Qty.Mul(f.Price)
	}
	a.Position = a.Position.Add(f.Qty)
	a.Cash = a.Cash.Sub(n)
	a.Commission = a.Commission.Sub(c.Charge(f.Qty, n))
	if !f.EffSpread.IsNaN() {
		a.SpreadCost = a.SpreadCost.Sub(f.Qty.Abs().Mul(f.EffSpread))
	}
	if f.Aged {
		a.YoungestSum = safe.Add(a.YoungestSum, f.Youngest)
		a.OldestSum = safe.Add(a.OldestSum, f.Oldest)
	}
	a.Fills++
	return true
}

// IsLong checks if the account holds base asset.
func (a *Account) IsLong() bool { return a.Position.Sign() > 0 }

// IsShort checks if the account owes base asset.
func (a *Account) IsShort() bool { return a.Position.Sign() < 0 }

// IsFlat reports a zero position.
func (a *Account) IsFlat() bool { return a.Position.Sign() == 0 }
