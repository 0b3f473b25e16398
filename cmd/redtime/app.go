package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nhle/redtime/internal/credential"
	"github.com/nhle/redtime/internal/logger"
	"github.com/nhle/redtime/internal/model"
	"github.com/nhle/redtime/internal/redmine"
	"github.com/nhle/redtime/internal/remote"
	"github.com/nhle/redtime/internal/schedule"
	"github.com/nhle/redtime/internal/store"
	"github.com/nhle/redtime/internal/sync"
	"github.com/nhle/redtime/internal/ui/progress"
)

// opTimeout bounds a single worker operation.
const opTimeout = 2 * time.Minute

var errNoBaseURL = errors.New("no Redmine URL configured; run `redtime login`")

// loadSettings reads the config file and applies the global flags and the
// logging settings.
func loadSettings(opts *globalOptions) (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dryRun {
		cfg.Redmine.ReadOnly = true
	}

	levelName := cfg.Log.Level
	if opts.logLevel != "" {
		levelName = opts.logLevel
	}
	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	if cfg.Log.File != "" {
		if err := logger.SetLogFile(cfg.Log.File); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openJournal opens the audit database, or returns nil when it is disabled.
func openJournal(cfg *model.AppConfig) (*store.SQLiteStore, error) {
	if cfg.Audit.Path == "" {
		return nil, nil
	}
	if cfg.Audit.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Audit.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating audit directory: %w", err)
		}
	}
	return store.NewSQLiteStore(cfg.Audit.Path)
}

// app wires the configured client, orchestrator and worker for one
// command invocation.
type app struct {
	cfg     *model.AppConfig
	week    schedule.Weekly
	journal *store.SQLiteStore
	rm      *redmine.Redmine
	worker  *sync.Worker

	out         io.Writer
	errOut      io.Writer
	interactive bool
}

func newApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	// 1. Settings and logging
	cfg, err := loadSettings(opts)
	if err != nil {
		return nil, err
	}
	if cfg.Redmine.BaseURL == "" {
		return nil, errNoBaseURL
	}

	week, err := schedule.FromConfig(cfg.Schedule.Hours)
	if err != nil {
		return nil, err
	}

	// 2. API key
	key, source, err := credential.ResolveAPIKey(cfg.Redmine.APIKey)
	if err != nil {
		return nil, err
	}
	logger.Debug("using API key from %s", source)

	// 3. Audit journal
	journal, err := openJournal(cfg)
	if err != nil {
		logger.Warn("audit journal unavailable: %v", err)
		journal = nil
	}

	// 4. Transport and orchestrator
	clientCfg := remote.Config{
		BaseURL:  cfg.Redmine.BaseURL,
		APIKey:   key,
		ReadOnly: cfg.Redmine.ReadOnly,
	}
	if journal != nil {
		clientCfg.Auditor = journal
	}
	client := remote.NewClient(clientCfg)

	return &app{
		cfg:         cfg,
		week:        week,
		journal:     journal,
		rm:          redmine.New(client, cfg.Redmine),
		worker:      sync.NewWorker(opTimeout),
		out:         cmd.OutOrStdout(),
		errOut:      cmd.ErrOrStderr(),
		interactive: isTerminal(cmd.ErrOrStderr()),
	}, nil
}

// close stops the worker and releases the journal and log file.
func (a *app) close() {
	a.worker.Stop()
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.Warn("closing audit journal: %v", err)
		}
	}
	logger.Close()
}

// run executes op on the worker while a spinner labelled label is shown.
func (a *app) run(ctx context.Context, label string, op sync.Op) error {
	result := a.worker.Go(ctx, label, op)
	return progress.Wait(ctx, a.errOut, label, result, a.interactive)
}

// upload sends every pending change and reports each failure.
func (a *app) upload(ctx context.Context) error {
	entries, issues := a.rm.PendingUploads()
	if entries == 0 && issues == 0 {
		return nil
	}

	errs := a.rm.UploadAll(ctx)
	for _, err := range errs {
		fmt.Fprintln(a.errOut, errorLine(err.Error()))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d uploads failed", len(errs), entries+issues)
	}
	return nil
}

// summary prints what upload did, or would have done in read-only mode.
func (a *app) summary(done string) {
	if a.cfg.Redmine.ReadOnly {
		fmt.Fprintln(a.out, helpLine("dry run: nothing was sent to Redmine"))
		return
	}
	fmt.Fprintln(a.out, successLine(done))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
