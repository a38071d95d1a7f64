package ledger

import (
	"errors"
	"testing"
	"time"

	"execsim/pkg/quant"
)

func d(s string) quant.Decimal { return quant.MustDecimal(s) }

func TestParseCommission(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"", "0/0", false},
		{"0.01", "0.01/0", false},
		{"0.01/0.0", "0.01/0", false},
		{"0/0.001", "0/0.001", false},
		{"x", "", true},
		{"0.01/", "", true},
		{"nan/0", "", true},
	}
	for _, tt := range tests {
		c, err := ParseCommission(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCommission(%q) err = %v; wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err != nil {
			if !errors.Is(err, ErrBadCommission) {
				t.Errorf("ParseCommission(%q) err = %v; want ErrBadCommission", tt.input, err)
			}
			continue
		}
		if got := c.String(); got != tt.want {
			t.Errorf("ParseCommission(%q) = %s; want %s", tt.input, got, tt.want)
		}
	}
}

func TestAccount_CommissionScenario(t *testing.T) {
	c, err := ParseCommission("0.01/0.0")
	if err != nil {
		t.Fatal(err)
	}
	a := NewAccount()
	ok := a.Apply(Fill{Qty: d("10"), Price: d("2.00"), EffSpread: quant.NaN()}, c)
	if !ok {
		t.Fatal("fill rejected")
	}
	if !a.Commission.Equal(d("-0.10")) {
		t.Errorf("commission = %s; want -0.1", a.Commission)
	}
	if !a.Position.Equal(d("10")) || !a.Cash.Equal(d("-20")) {
		t.Errorf("position/cash = %s/%s; want 10/-20", a.Position, a.Cash)
	}
	if !a.SpreadCost.IsZero() {
		t.Errorf("spread cost = %s; unspecified spread must not be charged", a.SpreadCost)
	}
}

func TestAccount_Apply(t *testing.T) {
	c := Commission{Base: d("0.5"), Term: d("0.01")}
	a := NewAccount()

	a.Apply(Fill{Qty: d("3"), Price: d("10"), EffSpread: d("0.2"), Youngest: time.Second, Oldest: 3 * time.Second, Aged: true}, c)
	a.Apply(Fill{Qty: d("-3"), Price: d("11"), EffSpread: d("0.1"), Youngest: time.Second, Oldest: time.Second, Aged: true}, c)

	// commission: 0.5*3 + 0.01*30 + 0.5*3 + 0.01*33
	checks := map[string]struct{ got, want quant.Decimal }{
		"position":    {a.Position, d("0")},
		"cash":        {a.Cash, d("3")},
		"commission":  {a.Commission, d("-3.63")},
		"spread cost": {a.SpreadCost, d("-0.9")},
	}
	for name, c := range checks {
		if !c.got.Equal(c.want) {
			t.Errorf("%s = %s; want %s", name, c.got, c.want)
		}
	}
	if a.YoungestSum != 2*time.Second || a.OldestSum != 4*time.Second {
		t.Errorf("age sums = %v/%v; want 2s/4s", a.YoungestSum, a.OldestSum)
	}
	if !a.IsFlat() || a.Fills != 2 {
		t.Errorf("flat=%v fills=%d", a.IsFlat(), a.Fills)
	}
}

func TestAccount_NotionalIsExact(t *testing.T) {
	c := Commission{Base: quant.Zero(), Term: d("0.01")}
	a := NewAccount()
	f := Fill{Qty: d("3"), Price: d("10").Div(d("3")), Notional: d("10"), EffSpread: quant.NaN()}
	if !a.Apply(f, c) {
		t.Fatal("fill rejected")
	}
	if !a.Cash.Equal(d("-10")) {
		t.Errorf("cash = %s; want -10", a.Cash)
	}
	if !a.Commission.Equal(d("-0.1")) {
		t.Errorf("commission = %s; want -0.1", a.Commission)
	}

	a.Apply(Fill{Qty: d("-3"), Price: d("10").Div(d("3")), Notional: d("-10"), EffSpread: quant.NaN()}, c)
	if !a.IsFlat() || !a.Cash.IsZero() {
		t.Errorf("position/cash = %s/%s; want 0/0", a.Position, a.Cash)
	}
}

func TestAccount_RejectionChangesNothing(t *testing.T) {
	a := NewAccount()
	if a.Apply(Fill{Qty: d("5"), Price: quant.NaN()}, Commission{Base: d("1")}) {
		t.Error("rejection reported as applied")
	}
	if !a.Position.IsZero() || !a.Cash.IsZero() || !a.Commission.IsZero() || a.Fills != 0 {
		t.Errorf("account changed by rejection: %+v", a)
	}
}

func TestAccount_Direction(t *testing.T) {
	tests := []struct {
		name    string
		pos     string
		isLong  bool
		isShort bool
	}{
		{"Long", "100", true, false},
		{"Short", "-100", false, true},
		{"Flat", "0", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Account{Position: d(tt.pos)}
			if got := a.IsLong(); got != tt.isLong {
				t.Errorf("Account.IsLong() = %v, want %v", got, tt.isLong)
			}
			if got := a.IsShort(); got != tt.isShort {
				t.Errorf("Account.IsShort() = %v, want %v", got, tt.isShort)
			}
		})
	}
}
