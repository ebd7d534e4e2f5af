package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"taskboard/internal/cli"
	"taskboard/internal/cli/formatter"
	"taskboard/internal/config"
	"taskboard/internal/logging"
	"taskboard/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	// log lines go to stderr so they never mix with command output
	logFile, err := logging.Configure(logrus.StandardLogger(), cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer logFile.Close()

	out := os.Stdout.Fd()
	formatter.SetPlain(!isatty.IsTerminal(out) && !isatty.IsCygwinTerminal(out))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stores, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()
	logrus.WithField("backend", stores.Backend).Debug("storage opened")

	app := &cli.App{
		Tasks:    stores.Tasks,
		Memos:    stores.Memos,
		Backend:  stores.Backend,
		Location: cfg.Location,
	}
	return cli.NewRootCmd(app).ExecuteContext(ctx)
}
