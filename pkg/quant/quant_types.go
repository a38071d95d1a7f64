package quant

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"execsim/pkg/safe"
)

// Time is nanoseconds since an arbitrary epoch.
// There is no "not a time" value: parsers report failure through their ok result.
type Time int64

// MaxTime orders after every parsed timestamp. The driver uses it as the cutoff
// once the quote stream has ended.
const MaxTime Time = math.MaxInt64

const (
	NSecs = 1_000_000_000
	USecs = 1_000_000
	MSecs = 1_000
)

var ErrBadDuration = errors.New("invalid duration")

// ParseTime reads decimal seconds with an optional fraction of exactly 3, 6 or 9
// digits (ms/us/ns) from the front of b. It returns the time, the number of bytes
// consumed and whether the prefix was a valid timestamp.
func ParseTime(b []byte) (Time, int, bool) {
	i := 0
	var s Time
	for ; i < len(b) && b[i] >= '0' && b[i] <= '9'; i++ {
		if s > (MaxTime/NSecs-9)/10 {
			return 0, i, false
		}
		s = s*10 + Time(b[i]-'0')
	}
	if i == 0 {
		return 0, 0, false
	}
	r := safe.Mul(s, NSecs)
	if i == len(b) || b[i] != '.' {
		return r, i, true
	}

	i++
	start := i
	var x Time
	for ; i < len(b) && b[i] >= '0' && b[i] <= '9'; i++ {
		x = x*10 + Time(b[i]-'0')
		if i-start >= 9 {
			return 0, i, false
		}
	}
	switch i - start {
	case 3:
		x *= USecs
	case 6:
		x *= MSecs
	case 9:
	default:
		return 0, i, false
	}
	return r + x, i, true
}

// Add shifts t by d, panicking on overflow.
func (t Time) Add(d time.Duration) Time {
	return safe.Add(t, Time(d))
}

// Sub returns t-u.
func (t Time) Sub(u Time) time.Duration {
	return time.Duration(safe.Sub(t, u))
}

// AppendTo appends the seconds.nanoseconds rendering of t to b.
func (t Time) AppendTo(b []byte) []byte {
	return appendSeconds(b, int64(t))
}

func (t Time) String() string {
	return string(t.AppendTo(make([]byte, 0, 24)))
}

// AppendDuration renders d like a Time, with a leading minus sign when negative.
func AppendDuration(b []byte, d time.Duration) []byte {
	return appendSeconds(b, int64(d))
}

// FormatDuration is the string form of AppendDuration.
func FormatDuration(d time.Duration) string {
	return string(AppendDuration(make([]byte, 0, 24), d))
}

func appendSeconds(b []byte, ns int64) []byte {
	u := uint64(ns)
	if ns < 0 {
		b = append(b, '-')
		u = uint64(-(ns + 1)) + 1
	}
	b = strconv.AppendUint(b, u/NSecs, 10)
	b = append(b, '.')
	frac := u % NSecs
	for div := uint64(NSecs / 10); div > 0; div /= 10 {
		b = append(b, byte('0'+frac/div%10))
	}
	return b
}

// ParseDuration reads a (possibly fractional) number with an optional unit suffix
// s, ms, us or ns. Without a suffix the value is in seconds.
func ParseDuration(s string) (time.Duration, error) {
	num, unit := s, time.Second
	for _, suf := range []struct {
		name string
		unit time.Duration
	}{{"ms", time.Millisecond}, {"us", time.Microsecond}, {"ns", time.Nanosecond}, {"s", time.Second}} {
		if n := len(s) - len(suf.name); n > 0 && s[n:] == suf.name {
			num, unit = s[:n], suf.unit
			break
		}
	}
	d, err := ParseDecimal(num)
	if err != nil || d.IsNaN() {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
	}
	ns := d.Mul(DecimalFromInt(int64(unit))).Truncate()
	if !ns.IsInt64() {
		return 0, fmt.Errorf("%w: %q out of range", ErrBadDuration, s)
	}
	return time.Duration(ns.IntPart()), nil
}
