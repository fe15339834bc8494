package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/stonecrest/backoffice/cmd/backoffice/cli"
	"github.com/stonecrest/backoffice/internal/app"
	"github.com/stonecrest/backoffice/internal/auth"
	"github.com/stonecrest/backoffice/internal/platform/cache"
)

func tokenCommand(ctx context.Context, cfg *app.Config, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New("token: expected issue or revoke")
	}
	redisClient, err := cache.New(ctx, redisOptions(cfg))
	if err != nil {
		return err
	}
	defer redisClient.Close()
	tokens := cli.NewTokenCLI(auth.NewTokenStore(redisClient), cfg.TokenTTL)

	switch args[0] {
	case "issue":
		fs := flag.NewFlagSet("token issue", flag.ContinueOnError)
		fs.SetOutput(stdout)
		email := fs.String("email", "", "staff email recorded on every change")
		role := fs.String("role", "employee", "admin or employee")
		ttl := fs.Duration("ttl", 0, "token lifetime (default TOKEN_TTL)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		token, err := tokens.Issue(ctx, *email, *role, *ttl)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, token)
		return err
	case "revoke":
		if len(args) != 2 {
			return errors.New("token revoke: expected exactly one token")
		}
		return tokens.Revoke(ctx, args[1])
	default:
		return fmt.Errorf("token: unknown subcommand %q", args[0])
	}
}

func jobsCommand(ctx context.Context, cfg *app.Config, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New("jobs: expected trigger or stats")
	}
	jobsCLI := cli.NewJobsCLI(redisOptions(cfg).AsynqOpt(), cfg.IdempotencyKeepDays*24)
	defer jobsCLI.Close()

	switch args[0] {
	case "trigger":
		if len(args) != 2 {
			return errors.New("jobs trigger: expected a job name")
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "enqueued %s as %s\n", info.Type, info.ID)
		return err
	case "stats":
		stats, err := jobsCLI.InspectQueue()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return err
	default:
		return fmt.Errorf("jobs: unknown subcommand %q", args[0])
	}
}
