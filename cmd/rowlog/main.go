// Package main is the entry point for the rowlog importer.
//
// rowlog ingests records from an external source database into a named
// tabular store used as an audit log. Configuration comes from CLI flags
// and a YAML config file; the source token may also come from the
// ROWLOG_TOKEN environment variable.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rowlog/rowlog/internal/config"
	"github.com/rowlog/rowlog/internal/history"
	"github.com/rowlog/rowlog/internal/ingest"
	"github.com/rowlog/rowlog/internal/record"
	"github.com/rowlog/rowlog/internal/tabular"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "rowlog: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", "rowlog.yaml", "Path to config file (created with defaults if missing)")
	database := flag.String("database", "", "Source database ID to import")
	table := flag.String("table", "", "Destination table name")
	match := flag.String("match", "", "Comma-separated match columns keying the upsert")
	position := flag.String("position", "bottom", "Where new rows are inserted (top, bottom)")
	names := flag.String("names", "", "Comma-separated property names to decode (default: all)")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}
	if err := checkImportFlags(*database, *table, *match); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ll := &slog.LevelVar{}
	ll.Set(cfg.Level())
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			val := a.Value.Any()
			skip := false
			switch t := val.(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case int64:
				skip = t == 0
			case uint64:
				skip = t == 0
			case float64:
				skip = t == 0
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	if err := watchConfig(ctx, *configPath, ll); err != nil {
		slog.WarnContext(ctx, "Failed to watch config file", "err", err)
	}

	var recorder tabular.Recorder
	if cfg.History.Enabled {
		trail, err := history.Open(cfg.DataDir, cfg.History.Name, cfg.History.Email)
		if err != nil {
			return err
		}
		recorder = trail
	}

	store, err := tabular.NewStore(cfg.DataDir, recorder)
	if err != nil {
		return err
	}

	client := record.NewClient(cfg.Source.BaseURL, cfg.Source.Token)
	decoder := &record.Decoder{Relations: client}
	importer := ingest.NewImporter(client, decoder, store, nil)

	opts := ingest.Options{
		DatabaseID:   *database,
		Table:        *table,
		MatchColumns: splitList(*match),
		Position:     tabular.Position(*position),
		Names:        splitList(*names),
	}
	stats, err := importer.Run(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d documents into %s (%d upserted) in %s\n",
		stats.Documents, *table, stats.Upserted, stats.Duration.Round(time.Millisecond))
	return nil
}

// checkImportFlags rejects a missing import argument before any setup work
// happens.
func checkImportFlags(database, table, match string) error {
	if database == "" || table == "" || match == "" {
		return errors.New("-database, -table and -match are required")
	}
	return nil
}

// watchConfig watches the config file and applies log level changes at
// runtime.
func watchConfig(ctx context.Context, path string, ll *slog.LevelVar) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					cfg, err := config.Load(path)
					if err != nil {
						slog.WarnContext(ctx, "Ignoring invalid config change", "err", err)
						continue
					}
					if cfg.Level() != ll.Level() {
						slog.InfoContext(ctx, "Log level changed", "level", cfg.LogLevel)
						ll.Set(cfg.Level())
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching config file", "err", err)
			}
		}
	}()
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("rowlog %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	return
}
