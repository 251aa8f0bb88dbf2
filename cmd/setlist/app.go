package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/mmcdole/setlist/internal/config"
	"github.com/mmcdole/setlist/internal/log"
	"github.com/mmcdole/setlist/internal/membership"
	"github.com/mmcdole/setlist/internal/playlist"
	"github.com/mmcdole/setlist/internal/remote"
	"github.com/mmcdole/setlist/internal/store"
)

var errNotConfigured = errors.New("server url, token and user id must be configured (run `setlist init`)")

// app is the wiring shared by the commands that talk to the service
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	reports *store.ReportStore
	svc     *playlist.Service
}

func newApp(v *viper.Viper, flags *rootFlags) (*app, error) {
	cfg, err := config.LoadConfig(v, flags.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := log.WithVerbosity(cfg.Logging, flags.verbose)
	logger, err := log.SetupLogger(&logCfg)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)
	logger.Info("starting setlist", "version", Version)

	if !cfg.IsConfigured() {
		return nil, errNotConfigured
	}

	reports, err := store.NewReportStore(cfg.Store.Path, cfg.Server.URL, cfg.Store.History)
	if err != nil {
		logger.Error("failed to open report store, keeping reports in memory", "error", err, "path", cfg.Store.Path)
		reports, _ = store.NewReportStore("", cfg.Server.URL, cfg.Store.History)
	}

	m := cfg.Membership
	client := remote.NewClient(cfg.Server.URL, cfg.Server.Token, cfg.Server.UserID, remote.Policy{
		Timeout:     m.RequestTimeout,
		MaxAttempts: m.MaxAttempts,
		BackoffMin:  m.BackoffMin,
		BackoffMax:  m.BackoffMax,
	}, logger.With("component", "remote"))

	svc := playlist.NewService(client, reports, membership.LoaderOptions{
		Concurrency:      m.Concurrency,
		PlaylistPageSize: m.PlaylistPageSize,
		ItemPageSize:     m.ItemPageSize,
	}, logger)

	return &app{cfg: cfg, logger: logger, reports: reports, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.reports.Close(); err != nil {
		a.logger.Error("failed to close report store", "error", err)
	}
}

// withApp runs fn with a wired app and a context cancelled on interrupt
func withApp(v *viper.Viper, flags *rootFlags, fn func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(v, flags)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return fn(ctx, cmd, a, args)
	}
}

// rebuild runs one rebuild, drawing progress on stderr when it is a terminal
func (a *app) rebuild(ctx context.Context, cmd *cobra.Command) (*membership.Result, error) {
	var obs membership.Observer = membership.NoOpObserver{}
	if f, ok := cmd.ErrOrStderr().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		obs = &progressObserver{w: f}
	}
	return a.svc.Rebuild(ctx, obs)
}

// progressObserver draws a single progress line
type progressObserver struct {
	membership.NoOpObserver
	w io.Writer
}

// clearLine clears the progress line from the terminal
const clearLine = "\r                                    \r"

func (o *progressObserver) OnProgress(current, total int) {
	fmt.Fprintf(o.w, "\rLoading playlists %d/%d", current, total)
}

func (o *progressObserver) OnReady(*membership.Snapshot) { fmt.Fprint(o.w, clearLine) }
func (o *progressObserver) OnError(error) { fmt.Fprint(o.w, clearLine) }
func (o *progressObserver) OnCancelled() { fmt.Fprint(o.w, clearLine) }
