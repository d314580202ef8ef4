// zkill-ws-slack posts kills and losses of an EVE Online alliance or corporation from the
// zKillboard websocket relay to a Slack or Discord webhook.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brotsalat/zkill-ws-slack/config"
	"github.com/Brotsalat/zkill-ws-slack/daemon"
	"github.com/Brotsalat/zkill-ws-slack/logging"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	var flags Flags
	if err := config.ParseFlags(&flags); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 2
	}

	environment, err := flags.Environment()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}

	var cfg daemon.Config
	if err := config.Load(&cfg, config.LoadOptions{
		Flags:      flags,
		EnvOptions: config.EnvOptions{Environment: environment, Prefix: daemon.EnvPrefix},
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "can't load configuration: %+v\n", err)
		return 1
	}

	logs, err := logging.NewLoggingFromConfig("zkill-ws-slack", cfg.Logging)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "can't configure logging: %v\n", err)
		return 1
	}
	defer logs.Sync()

	logger := logs.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(&cfg, logs)
	if err != nil {
		logger.Errorw("Can't start", logging.Error(err))
		return 1
	}

	logger.Infow("Starting",
		zap.Stringer("watched", cfg.Watch.Entity()),
		zap.Bool("all", cfg.Watch.All),
		zap.Bool("dry_run", cfg.Webhook.DryRun),
		zap.String("flavor", string(cfg.Webhook.Flavor)))

	if err := d.Run(ctx); err != nil {
		logger.Errorw("Killmail feed lost, exiting", logging.Error(err))
		return 1
	}

	logger.Info("Interrupted, exiting")

	return 0
}
