package infra

import (
	"fmt"
	"io"
)

// ANSI Color Codes
const (
	ColorReset = "\033[0m"
	ColorCyan  = "\033[36m"
)

// PrintBanner writes a run summary to w (stderr in practice).
func PrintBanner(w io.Writer, cfg *Config, runID string) {
	pair := cfg.Pair
	if pair == "" {
		pair = "(all)"
	}
	commission := cfg.Commission
	if commission == "" {
		commission = "0"
	}

	fmt.Fprintf(w, "%s###########################################################%s\n", ColorCyan, ColorReset)
	fmt.Fprintf(w, "%s#   sex: offline execution simulator                      #%s\n", ColorCyan, ColorReset)
	fmt.Fprintf(w, "%s#   RUN:        %-41s #%s\n", ColorCyan, runID, ColorReset)
	fmt.Fprintf(w, "%s#   PAIR:       %-41s #%s\n", ColorCyan, pair, ColorReset)
	fmt.Fprintf(w, "%s#   QTY:        %-41s #%s\n", ColorCyan, cfg.Quantity, ColorReset)
	fmt.Fprintf(w, "%s#   DELAY:      %-41s #%s\n", ColorCyan, cfg.Delay, ColorReset)
	fmt.Fprintf(w, "%s#   COMMISSION: %-41s #%s\n", ColorCyan, commission, ColorReset)
	fmt.Fprintf(w, "%s###########################################################%s\n", ColorCyan, ColorReset)
}
