package source

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"execsim/internal/event"
	"execsim/internal/record"
	"execsim/pkg/quant"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

const quoteData = "100.000000000\tXYZ\tA1\t10.00\t5\n" +
	"garbage\n" +
	"101\tABC\tB1\t9\t1\n" +
	"102\tXYZ\tB1\t9.5\t2"

func drainQuotes(t *testing.T, next func() (event.Quote, bool, error)) []string {
	t.Helper()
	var out []string
	for {
		q, ok, err := next()
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, q.T.String()+" "+string(q.Instrument)+" "+q.Side.String())
	}
}

func TestQuotes_Reader(t *testing.T) {
	s := NewQuotes(strings.NewReader(quoteData), record.Filter{}, quiet)
	got := drainQuotes(t, s.Next)
	require.Equal(t, []string{
		"100.000000000 XYZ ask",
		"101.000000000 ABC bid",
		"102.000000000 XYZ bid",
	}, got)
	require.Equal(t, Counters{Lines: 4, Malformed: 1}, s.Counters())
}

func TestQuoteFile_Filtered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.tsv")
	require.NoError(t, os.WriteFile(path, []byte(quoteData), 0644))

	qf, err := OpenQuoteFile(path, record.NewFilter("XYZ"), quiet)
	require.NoError(t, err)
	defer qf.Close()

	got := drainQuotes(t, qf.Next)
	require.Equal(t, []string{"100.000000000 XYZ ask", "102.000000000 XYZ bid"}, got)
	require.Equal(t, Counters{Lines: 4, Malformed: 1, Filtered: 1}, qf.Counters())
}

func TestQuoteFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.tsv")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	qf, err := OpenQuoteFile(path, record.Filter{}, quiet)
	require.NoError(t, err)
	_, ok, err := qf.Next()
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, qf.Close())
}

func TestQuoteFile_Missing(t *testing.T) {
	_, err := OpenQuoteFile(filepath.Join(t.TempDir(), "nope"), record.Filter{}, quiet)
	require.ErrorContains(t, err, "cannot open QUOTES file")
}

func TestOrders_Options(t *testing.T) {
	data := "99.000000000\tB\tXYZ\n" +
		"99.500\tS\tXYZ\t2\t9\n" +
		"100\tC\tXYZ\n" +
		"100\tB\tABC\t1\n" +
		"bad line\n" +
		"9223372036.000000000\tB\tXYZ\t1\n"
	s := NewOrders(strings.NewReader(data), OrderOptions{
		Delay:  250 * time.Millisecond,
		Qty:    quant.MustDecimal("7"),
		Filter: record.NewFilter("XYZ"),
	}, quiet)

	var got []event.Order
	for {
		o, ok, err := s.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, o)
	}
	require.Len(t, got, 3)

	require.Equal(t, quant.Time(99_250_000_000), got[0].T)
	require.Equal(t, "7", got[0].Qty.String())
	require.Equal(t, quant.Time(99_750_000_000), got[1].T)
	require.Equal(t, "2", got[1].Qty.String())
	require.Equal(t, "9", got[1].Limit.String())
	// liquidations keep an unspecified quantity
	require.Equal(t, event.Liquidate, got[2].Action)
	require.True(t, got[2].Qty.IsNaN())

	require.Equal(t, Counters{Lines: 6, Malformed: 2, Filtered: 1}, s.Counters())
}

func TestBufferLines(t *testing.T) {
	l := &bufferLines{b: []byte("a\n\nb")}
	var got []string
	for {
		line, ok, err := l.next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, string(line))
	}
	require.Equal(t, []string{"a", "", "b"}, got)
}
