package backtest

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"execsim/internal/app"
	"execsim/internal/book"
	"execsim/internal/emit"
	"execsim/internal/engine"
	"execsim/internal/ledger"
	"execsim/internal/source"
)

// Summary describes a finished run.
type Summary struct {
	RunID   string          `json:"run_id"`
	Stats   engine.Stats    `json:"stats"`
	Quotes  source.Counters `json:"quotes"`
	Orders  source.Counters `json:"orders"`
	Account *ledger.Account `json:"account"`
}

// Replayer feeds a quotes file and an order stream through the driver.
type Replayer struct {
	boot *app.Bootstrap
}

// NewReplayer creates a new replayer instance.
func NewReplayer(b *app.Bootstrap) *Replayer {
	return &Replayer{boot: b}
}

// Run replays quotesPath against the orders read from orders, writing records to out.
func (r *Replayer) Run(ctx context.Context, quotesPath string, orders io.Reader, out io.Writer) (Summary, error) {
	s, log := r.boot.Settings, r.boot.Logger

	qf, err := source.OpenQuoteFile(quotesPath, s.Filter, log)
	if err != nil {
		return Summary{}, err
	}
	defer qf.Close()

	ords := source.NewOrders(orders, source.OrderOptions{
		Delay:  s.Delay,
		Qty:    s.Qty,
		Filter: s.Filter,
	}, log)

	var j emit.Journal
	if r.boot.Journal != nil {
		j = r.boot.Journal
	}

	d := engine.NewDriver(book.New(), qf, ords, emit.New(out, j), engine.Options{
		Commission: s.Commission,
		QueueSize:  r.boot.Config.Queue.Size,
		QueueMax:   r.boot.Config.Queue.Max,
		DumpPath:   r.boot.Config.DumpPath,
		Logger:     log,
	})
	runErr := d.Run(ctx)

	sum := Summary{
		RunID:   r.boot.RunID,
		Stats:   d.Stats(),
		Quotes:  qf.Counters(),
		Orders:  ords.Counters(),
		Account: d.Account(),
	}
	log.Debug("Replay finished",
		slog.Uint64("quote_lines", sum.Quotes.Lines),
		slog.Uint64("quotes_malformed", sum.Quotes.Malformed),
		slog.Uint64("quotes_filtered", sum.Quotes.Filtered),
		slog.Uint64("order_lines", sum.Orders.Lines),
		slog.Uint64("orders_malformed", sum.Orders.Malformed),
		slog.Uint64("orders_filtered", sum.Orders.Filtered))
	if runErr != nil {
		return sum, fmt.Errorf("replay %s: %w", quotesPath, runErr)
	}
	return sum, nil
}
