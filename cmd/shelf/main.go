package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/mmcdole/shelf/internal/adapter"
	"github.com/mmcdole/shelf/internal/adapter/source"
	"github.com/mmcdole/shelf/internal/catalog"
	"github.com/mmcdole/shelf/internal/store"
	"github.com/mmcdole/shelf/internal/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("shelf %s\n", Version)
		return
	}

	if err := run(flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: shelf [flags] [command] [args]

Without a command shelf opens the interactive browser (or lists books
when output is not a terminal).

Commands:
  list       [-title T] [-author A] [-genre G] [-id ID] [-limit N] [-json]
  genres     list the genres of the collection
  categories list the browsable categories
  recommend  [-n N] [-json]
  show       <id> [-json] [-open]
  add        -title T -author A -genre G -year Y -description D -image FILE
  edit       <id> [-title T] [-author A] [-genre G] [-year Y] [-description D] [-rating R]
  rm         <id>
  save       <id>
  config     [init]

Flags:
`)
	flag.PrintDefaults()
}

func run(args []string) error {
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// config needs no service connection
	if len(args) > 0 && args[0] == "config" {
		return runConfig(os.Stdout, cfg, args[1:])
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config (%s): %w", adapter.ConfigFile(), err)
	}

	logger, closeLog, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
		closeLog = func() error { return nil }
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("starting shelf", "version", Version, "server", cfg.Server.URL)

	client, err := source.NewClientFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create directory client: %w", err)
	}

	cacheDir, err := expandPath(cfg.Cache.Dir)
	if err != nil {
		return err
	}
	snapshots, err := store.NewSnapshotStore(cacheDir, cfg.Server.URL)
	if err != nil {
		return fmt.Errorf("failed to open snapshot cache: %w", err)
	}

	logger.Debug("snapshot cache opened", "persistent", snapshots.Persistent(), "dir", cacheDir)

	books := catalog.New(client, snapshots, logger)
	defer books.Close()

	images := catalog.ImageResolver{
		FileHost:    cfg.Server.FileHost,
		ShareToken:  cfg.Server.ShareToken,
		Placeholder: cfg.Server.Placeholder,
	}

	launcher := adapter.NewLauncher(cfg.Viewer.Command, cfg.Viewer.Args, logger)

	if len(args) == 0 {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return runTUI(books, images, launcher, cfg, logger)
		}
		args = []string{"list"}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := &cli{
		store:  books,
		images: images,
		opener: launcher,
		out:    os.Stdout,
		errOut: os.Stderr,
		limit:  cfg.UI.Recommendations,
	}
	return c.dispatch(ctx, args)
}

func runTUI(books *catalog.CatalogStore, images catalog.ImageResolver, launcher *adapter.Launcher, cfg *adapter.Config, logger *slog.Logger) error {
	model := tui.NewModel(books, images, tui.Options{
		RecommendationLimit: cfg.UI.Recommendations,
		DefaultGenre:        cfg.UI.DefaultGenre,
		Opener:              launcher,
	}, logger)

	p := tea.NewProgram(model, tea.WithAltScreen())

	logger.Info("starting TUI")

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// expandPath expands a leading ~ in a configured directory
func expandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}
