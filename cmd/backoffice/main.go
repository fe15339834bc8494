package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/stonecrest/backoffice/internal/app"
)

const usage = `usage: backoffice <command> [flags]

commands:
  serve                         run the HTTP API (default)
  migrate                       apply the embedded schema and exit
  token issue -email E -role R  issue a bearer token
  token revoke TOKEN            revoke a bearer token
  jobs trigger NAME             enqueue invoices:mark_overdue or idempotency:cleanup
  jobs stats                    print default queue depth
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	if command == "help" || command == "-h" || command == "--help" {
		_, err := io.WriteString(stdout, usage)
		return err
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	switch command {
	case "serve":
		return serve(ctx, cfg, logger)
	case "migrate":
		return migrate(ctx, cfg, logger)
	case "token":
		return tokenCommand(ctx, cfg, args, stdout)
	case "jobs":
		return jobsCommand(ctx, cfg, args, stdout)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}
}
