package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robalyx/snowball/internal/bot"
	"github.com/robalyx/snowball/internal/setup"
	"github.com/robalyx/snowball/internal/setup/telemetry"
	"github.com/urfave/cli/v3"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"
	// defaultShutdownTimeout bounds how long in-flight handlers may run after a signal.
	defaultShutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	return newCommand(runBot).Run(context.Background(), os.Args)
}

// newCommand builds the bot command, handing the parsed shutdown timeout to action.
func newCommand(action func(ctx context.Context, shutdownTimeout time.Duration) error) *cli.Command {
	return &cli.Command{
		Name:  "bot",
		Usage: "Start the snowball Discord bot",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Value: defaultShutdownTimeout,
				Usage: "How long running handlers may finish after an interrupt",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return action(ctx, c.Duration("shutdown-timeout"))
		},
	}
}

func runBot(ctx context.Context, shutdownTimeout time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx, telemetry.ServiceBot, BotLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		app.Cleanup(cleanupCtx)
	}()

	discordBot, err := bot.New(app.Config, app.DB, app.RedisManager, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	if err := discordBot.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	app.Logger.Info("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	<-ctx.Done()

	// Give running handlers a chance to finish before they are cancelled
	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	discordBot.Close(closeCtx)

	return nil
}
