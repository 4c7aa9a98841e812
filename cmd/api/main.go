package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"Lee_Social/internal/config"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "social",
		Usage: "Social backend: users, posts, follows, friends and stories",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config yaml",
				Sources: cli.EnvVars(config.ConfigPathEnvVar),
			},
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			serveCommand(),
			reconcileCommand(),
			migrateCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API with the graph repair and reconcile workers",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-workers",
				Usage: "do not start background workers",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(ctx, cmd.String("config"))
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(ctx, !cmd.Bool("no-workers"))
		},
	}
}

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "Run one pass of graph repair replay and follow counter reconciliation",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(ctx, cmd.String("config"))
			if err != nil {
				return err
			}
			defer a.close()
			return a.reconcileOnce(ctx)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create mongo indexes, graph constraints and the repair table",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(ctx, cmd.String("config"))
			if err != nil {
				return err
			}
			defer a.close()
			return a.migrate(ctx)
		},
	}
}
