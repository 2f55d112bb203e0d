package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/intact-sh/intact/internal/config"
	"github.com/intact-sh/intact/internal/integrity"
	"github.com/intact-sh/intact/internal/priv"
	"github.com/intact-sh/intact/internal/store"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	quiet     bool

	// Cycle flags
	insecure     bool
	findingsPath string
	storePath    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "intact",
	Short: "File-integrity monitoring for compliance scanning",
	Long: `intact records a cryptographic baseline of monitored filesystem entities
and later verifies that none have been altered, added or deleted.

Run 'intact baseline' once to establish the baseline, then 'intact integrity'
periodically (for example from a systemd timer) to verify it. Findings are
appended as text lines to the configured findings log.`,
	SilenceUsage: true,
}

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Rebuild the checksum baseline for all monitored entities",
	Long: `Baseline walks the configured roots, computes a checksum for every
non-excluded file and writes it to the baseline store, overwriting any
previous record. Re-running baseline always resets tracked state to the
current filesystem.

Secure mode (the default) requires elevated privileges so that
permission-restricted files can be read; it aborts before touching the
store otherwise.`,
	RunE: runBaseline,
}

var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Verify the filesystem against the recorded baseline",
	Long: `Integrity runs one verify cycle: every baseline record is marked, every
non-excluded file on disk is hashed and compared against its record, and
records left marked after the walk are reported as deleted and removed.

The exit code is 0 only when the cycle completes with zero altered, new
or deleted findings.`,
	RunE: runIntegrity,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("intact %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/intact/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress per-entity progress output (findings are unaffected)")

	// Cycle flags, shared by baseline and integrity
	for _, cmd := range []*cobra.Command{baselineCmd, integrityCmd} {
		cmd.Flags().BoolVar(&insecure, "insecure", false, "run without elevated privileges; permission-denied files become informational findings")
		cmd.Flags().StringVar(&findingsPath, "findings", "", "findings log destination ('-' for stdout, default from config)")
		cmd.Flags().StringVar(&storePath, "db", "", "baseline store path (default from config)")
	}

	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(integrityCmd)
	rootCmd.AddCommand(versionCmd)
}

func runBaseline(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	engine, sink, err := buildEngine(logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = sink.Close()
	}()

	logger.Info("establishing baseline")
	rep, err := engine.Baseline(ctx)
	if err != nil {
		logger.Error("baseline failed", "error", err)
		return err
	}

	if rep.SoftFailures > 0 {
		logger.Warn("baseline completed with unreadable entities", "soft_failures", rep.SoftFailures)
	}
	return nil
}

func runIntegrity(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	engine, sink, err := buildEngine(logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = sink.Close()
	}()

	logger.Info("starting integrity verification")
	rep, err := engine.Verify(ctx)
	if err != nil {
		logger.Error("integrity verification failed", "error", err)
		return err
	}

	if !rep.Clean() {
		return fmt.Errorf("integrity violations detected: %d altered, %d new, %d deleted",
			rep.Altered, rep.New, rep.Deleted)
	}
	return nil
}

// buildEngine assembles the store, rules, sink and privilege guard from
// config and flags. The caller owns the returned sink; the engine owns
// (and closes) the store as part of the cycle.
func buildEngine(logger *slog.Logger) (*integrity.Engine, integrity.Sink, error) {
	cfg, err := loadConfig(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	matcher, err := cfg.Matcher()
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("compiled scan rules", "exclude", matcher.Patterns())

	sink, err := openSink(cfg)
	if err != nil {
		return nil, nil, err
	}

	dbPath := cfg.Store.Path
	if storePath != "" {
		dbPath = storePath
	}
	st, err := store.Open(dbPath)
	if err != nil {
		_ = sink.Close()
		return nil, nil, err
	}

	engine := integrity.NewEngine(afero.NewOsFs(), st, priv.NewOSGuard(), sink, logger, integrity.Options{
		Roots:    cfg.CanonicalRoots(),
		Excluded: matcher.Excluded,
		Insecure: insecure,
		Workers:  cfg.Scan.Workers,
	})
	return engine, sink, nil
}

func openSink(cfg *config.Config) (integrity.Sink, error) {
	path := cfg.Findings.Path
	if findingsPath != "" {
		path = findingsPath
	}
	if path == "-" {
		return integrity.NewWriterSink(os.Stdout), nil
	}
	return integrity.NewFileSink(path)
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Quiet suppresses progress chatter only; computed results and
	// findings are unaffected.
	if quiet && level < slog.LevelWarn {
		level = slog.LevelWarn
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		configPath = "/etc/intact/config.yaml"
	}

	logger.Debug("loading configuration", "path", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"roots", cfg.Scan.Roots,
		"store", cfg.Store.Path,
		"findings", cfg.Findings.Path)

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
