package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"

	"roundtable/internal/config"
	"roundtable/internal/forum"
	"roundtable/internal/id"
	"roundtable/internal/logging"
	"roundtable/internal/tui"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "roundtable-tui fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	closer, err := logging.Setup(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := id.Init(cfg.NodeID); err != nil {
		return errors.Wrap(err, "init request ids")
	}

	logger := slog.Default()
	client := forum.NewClient(cfg.APIURL,
		forum.WithTimeout(cfg.RequestTimeout),
		forum.WithLogger(logger),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.InfoContext(ctx, "starting roundtable-tui", "api_url", cfg.APIURL, "topic", cfg.TopicID)
	model := tui.New(ctx, cfg, client, tui.WithLogger(logger))
	options := []tea.ProgramOption{tea.WithMouseCellMotion(), tea.WithContext(ctx)}
	if cfg.AltScreen {
		options = append(options, tea.WithAltScreen())
	}
	if _, err := tea.NewProgram(model, options...).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run program")
	}
	if topic, ok := model.Topic(); ok {
		logger.InfoContext(ctx, "exited", "topic", topic.ID, "discussion", topic.RoundtableStatus)
	}
	return nil
}
