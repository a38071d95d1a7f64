package quant

import (
	"testing"
)

func TestDecimal_NaNPropagation(t *testing.T) {
	one := MustDecimal("1")
	nan := NaN()

	ops := map[string]Decimal{
		"add": one.Add(nan),
		"sub": nan.Sub(one),
		"mul": one.Mul(nan),
		"div": nan.Div(one),
		"neg": nan.Neg(),
		"abs": nan.Abs(),
		"min": Min(one, nan),
	}
	for name, got := range ops {
		if !got.IsNaN() {
			t.Errorf("%s: expected NaN, got %s", name, got)
		}
	}

	if _, ok := one.Cmp(nan); ok {
		t.Error("comparison against NaN must not be ok")
	}
	if nan.Sign() != 0 || nan.IsZero() {
		t.Error("NaN must be neither signed nor zero")
	}
}

func TestDecimal_DivByZero(t *testing.T) {
	if got := MustDecimal("3").Div(Zero()); !got.IsNaN() {
		t.Errorf("3/0 = %s; want nan", got)
	}
}

func TestDecimal_Arithmetic(t *testing.T) {
	term := MustDecimal("30.00")
	base := MustDecimal("3")
	if got := term.Div(base); !got.Equal(MustDecimal("10")) {
		t.Errorf("30.00/3 = %s; want 10", got)
	}
	if got := MustDecimal("0.01").Mul(MustDecimal("10")); !got.Equal(MustDecimal("0.1")) {
		t.Errorf("0.01*10 = %s; want 0.1", got)
	}
	if got := MustDecimal("0.1").Add(MustDecimal("0.2")); got.String() != "0.3" {
		t.Errorf("0.1+0.2 = %s; want exactly 0.3", got)
	}
}

func TestDecimal_RoundTrip(t *testing.T) {
	for _, s := range []string{"10.00", "0.00000001", "-3.5", "123456789.123456789", "nan"} {
		d := MustDecimal(s)
		back, err := ParseDecimal(d.String())
		if err != nil {
			t.Fatalf("reparse %q: %v", d.String(), err)
		}
		if !back.Equal(d) {
			t.Errorf("round trip %q -> %q -> %q", s, d.String(), back.String())
		}
	}
}

func TestScanDecimal(t *testing.T) {
	tests := []struct {
		input string
		want  string
		n     int
	}{
		{"10.00\t5", "10", 5},
		{"5", "5", 1},
		{"-0.5 ", "-0.5", 4},
		{"+2", "2", 2},
		{"1e3x", "1000", 3},
		{".5", "0.5", 2},
		{"NaN\t", "nan", 3},
		{"abc", "nan", 0},
		{"", "nan", 0},
		{"-", "nan", 0},
	}
	for _, tt := range tests {
		got, n := ScanDecimal([]byte(tt.input))
		if n != tt.n || got.String() != tt.want {
			t.Errorf("ScanDecimal(%q) = %s, %d; want %s, %d", tt.input, got, n, tt.want, tt.n)
		}
	}
}

func TestDecimal_Text(t *testing.T) {
	var d Decimal
	if err := d.UnmarshalText([]byte("2.50")); err != nil {
		t.Fatal(err)
	}
	b, _ := d.MarshalText()
	if string(b) != "2.5" {
		t.Errorf("MarshalText = %s; want 2.5", b)
	}
	if err := d.UnmarshalText([]byte("x")); err == nil {
		t.Error("expected error for garbage")
	}
}
