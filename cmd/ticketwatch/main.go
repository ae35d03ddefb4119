package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"

	"github.com/nhle/ticketwatch/internal/app"
	"github.com/nhle/ticketwatch/internal/backend"
	"github.com/nhle/ticketwatch/internal/model"
	"github.com/nhle/ticketwatch/internal/platform"
	"github.com/nhle/ticketwatch/internal/store"
	"github.com/nhle/ticketwatch/internal/stream"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to the config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "ticketwatch:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	dataDir := model.DefaultDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	logger, logFile, err := newLogger(filepath.Join(dataDir, "ticketwatch.log"))
	if err != nil {
		return err
	}
	defer logFile.Close()

	st, err := store.NewSQLiteStore(filepath.Join(dataDir, "ticketwatch.db"))
	if err != nil {
		return err
	}
	defer st.Close()

	client := backend.NewClient(
		cfg.Backend.BaseURL,
		time.Duration(cfg.Backend.TimeoutSec)*time.Second,
	)
	api := backend.NewAPI(client)

	redisOpts, err := redis.ParseURL(cfg.Stream.RedisURL)
	if err != nil {
		return fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	streams := stream.NewManager(rdb, cfg.Stream.ChannelPrefix, logger)
	defer streams.Close()

	root := app.New(app.Deps{
		Config:   cfg,
		Store:    st,
		API:      api,
		Streams:  streams,
		Notifier: platform.NewTermNotifier(os.Stderr),
		Player:   platform.NewBellPlayer(os.Stderr),
		Logger:   logger,
	})

	logger.Info("starting ticketwatch",
		slog.String("backend", cfg.Backend.BaseURL),
		slog.String("config", configPath),
	)

	p := tea.NewProgram(root, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}

// newLogger opens the application log file. The TUI owns the terminal,
// so logs never go to stdout or stderr.
func newLogger(path string) (*slog.Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	return slog.New(slog.NewTextHandler(f, nil)), f, nil
}
