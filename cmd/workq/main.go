// workq runs the worker pool demos: a TCP server whose connections are
// handled on a pool, a producer/consumer simulation over the blocking queue,
// cron-driven jobs, and a Redis list feed.
//
// Usage:
//
//	workq [global options] <command> [command options]
//
// Global options:
//
//	-c, --config     YAML or JSON configuration file
//	-l, --log-level  debug, info, warn or error
//
// Commands:
//
//	serve      accept TCP connections and answer them on the pool
//	simulate   run producers and consumers over one queue and report
//	schedule   submit configured cron jobs to the pool
//	feed       drain a Redis list into the pool
//	publish    push payloads onto the Redis list
//
// Examples:
//
//	workq serve --workers 4
//	workq simulate --producers 4 --consumers 4 --items 1000000
//	workq -c workq.yaml schedule
//	workq schedule --job "heartbeat=@every 5s"
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// Build information, set with -ldflags "-X main.Version=...".
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:    "workq",
		Usage:   "bounded worker pool and blocking queue demos",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "configuration file (.yaml, .yml or .json)",
				Sources: cli.EnvVars("WORKQ_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "log level: debug, info, warn or error",
				Sources: cli.EnvVars("WORKQ_LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			simulateCommand(),
			scheduleCommand(),
			feedCommand(),
			publishCommand(),
		},
	}
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := createApp().Run(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
