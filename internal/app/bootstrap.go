package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"execsim/internal/infra"
	"execsim/internal/storage"
)

// Bootstrap orchestrates the run startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Settings infra.Settings
	Logger   *slog.Logger
	RunID    string
	Journal  *storage.Journal
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap(cfg *infra.Config) *Bootstrap {
	return &Bootstrap{Config: cfg}
}

// Initialize validates the configuration and opens the run's resources.
// Logs go to logOut.
func (b *Bootstrap) Initialize(ctx context.Context, logOut io.Writer) error {
	// 1. Validate and parse settings
	if err := b.Config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	s, err := b.Config.Settings()
	if err != nil {
		return err
	}
	b.Settings = s

	// 2. Setup Logger
	b.RunID = uuid.NewString()
	b.Logger = infra.NewLogger(b.Config, logOut).With(slog.String("run", b.RunID))

	// 3. Journal (optional)
	if b.Config.Journal == "" {
		return nil
	}
	if err := infra.EnsureDir(filepath.Dir(b.Config.Journal)); err != nil {
		return fmt.Errorf("failed to create journal dir: %w", err)
	}
	j, err := storage.NewJournal(b.Config.Journal, b.RunID)
	if err != nil {
		return err
	}
	if err := j.BeginRun(ctx, b.Config); err != nil {
		j.Close()
		return err
	}
	b.Journal = j
	b.Logger.Info("Journal opened", slog.String("path", b.Config.Journal))
	return nil
}

// Close records the run summary and releases the journal.
func (b *Bootstrap) Close(ctx context.Context, summary any) error {
	if b.Journal == nil {
		return nil
	}
	err := b.Journal.FinishRun(ctx, summary)
	if cerr := b.Journal.Close(); err == nil {
		err = cerr
	}
	return err
}
