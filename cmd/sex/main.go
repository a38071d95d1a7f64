// Command sex replays orders from stdin against a QUOTES file and prints the
// resulting executions and account snapshots on stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"execsim/backtest"
	"execsim/internal/app"
	"execsim/internal/infra"
)

func main() {
	// Ctrl-C stops the run between driver steps
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type flags struct {
	fs         *pflag.FlagSet
	pair       *string
	qty        *string
	delay      *string
	commission *string
	config     *string
	journal    *string
	queueSize  *int
	verbose    *bool
}

func newFlags(stderr io.Writer) *flags {
	fs := pflag.NewFlagSet("sex", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: sex [OPTION]... QUOTES")
		fmt.Fprintln(stderr, "Simulate execution of orders read from stdin against QUOTES.")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}
	return &flags{
		fs:         fs,
		pair:       fs.StringP("pair", "p", "", "only consider quotes and orders for instrument `INS`"),
		qty:        fs.StringP("qty", "q", "1", "default order quantity `QTY`"),
		delay:      fs.StringP("delay", "d", "0", "execution delay `DUR` with suffix s, ms, us or ns (default seconds)"),
		commission: fs.StringP("commission", "c", "", "commission `BASE[/TERM]` per unit of base and term asset"),
		config:     fs.String("config", "", "YAML config `FILE`"),
		journal:    fs.String("journal", "", "also record output in SQLite `FILE`"),
		queueSize:  fs.Int("queue-size", 1024, "initial pending order queue capacity"),
		verbose:    fs.BoolP("verbose", "v", false, "debug logging and run banner on stderr"),
	}
}

// apply copies explicitly given flags over cfg.
func (f *flags) apply(cfg *infra.Config) {
	set := map[string]func(){
		"pair":       func() { cfg.Pair = *f.pair },
		"qty":        func() { cfg.Quantity = *f.qty },
		"delay":      func() { cfg.Delay = *f.delay },
		"commission": func() { cfg.Commission = *f.commission },
		"journal":    func() { cfg.Journal = *f.journal },
		"queue-size": func() { cfg.Queue.Size = *f.queueSize },
	}
	for name, fn := range set {
		if f.fs.Changed(name) {
			fn()
		}
	}
	if *f.verbose {
		cfg.Logging.Level = "debug"
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	f := newFlags(stderr)
	if err := f.fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}
	if f.fs.NArg() == 0 {
		serror(stderr, "QUOTES file is mandatory.")
		return 1
	}

	path := *f.config
	if path == "" {
		path = infra.ResolveConfigPath()
	}
	cfg, err := infra.LoadConfig(path)
	if err != nil {
		serror(stderr, "%v", err)
		return 1
	}
	f.apply(cfg)

	boot := app.NewBootstrap(cfg)
	if err := boot.Initialize(ctx, stderr); err != nil {
		serror(stderr, "%v", err)
		return 1
	}
	if *f.verbose {
		infra.PrintBanner(stderr, cfg, boot.RunID)
	}

	sum, err := backtest.NewReplayer(boot).Run(ctx, f.fs.Arg(0), stdin, stdout)
	if cerr := boot.Close(ctx, sum); err == nil {
		err = cerr
	}
	if err != nil {
		boot.Logger.Error("Run failed", slog.Any("error", err))
		serror(stderr, "%v", err)
		return 1
	}
	return 0
}

// serror reports a fatal problem on stderr.
func serror(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "Error: "+format+"\n", args...)
}
