package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const (
	loginRetryDelay   = 60 * time.Second
	sessionRetryDelay = 5 * time.Second
	fetchRetryDelay   = 10 * time.Second
)

var (
	once   = flag.Bool("once", false, "Run a single poll cycle and exit")
	dryRun = flag.Bool("dry-run", false, "Log new messages without forwarding or advancing state")
)

// errLoginFailed distinguishes bad credentials or a changed login page
// from other session failures; it backs off longer before retrying.
var errLoginFailed = errors.New("login failed")

func main() {
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier, err := NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram setup failed")
	}

	notify(logger, notifier, "✅ Bot Started Successfully. Initializing configuration and web automation environment.")

	store := NewFileStateStore(cfg.StateFile)

	if err := run(ctx, cfg, logger, notifier, store, *once, *dryRun); err != nil {
		notify(logger, notifier, fmt.Sprintf("⚠️ Fatal error, shutting down: %v", err))
		logger.Error().Err(err).Msg("shutting down")
		os.Exit(1)
	}

	notify(logger, notifier, "🔌 Bot stopped.")
	logger.Info().Msg("stopped")
}

// notify sends an operational notice to the chat, logging delivery
// failures instead of propagating them.
func notify(logger zerolog.Logger, sender MessageSender, text string) {
	if err := sender.Send(text); err != nil {
		logger.Error().Err(err).Msg("failed to send Telegram notification")
	}
}

// run keeps a browser session alive, restarting it after recoverable
// failures, until ctx is canceled. A state-persistence failure is
// returned as fatal: restarting over an unwritable marker would forward
// duplicates.
func run(ctx context.Context, cfg *Config, logger zerolog.Logger, sender MessageSender, store StateStore, once, dryRun bool) error {
	for {
		err := runSession(ctx, cfg, logger, sender, store, once, dryRun)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, errStatePersist) {
			return err
		}
		if once {
			return err
		}

		delay := sessionRetryDelay
		if errors.Is(err, errLoginFailed) {
			notify(logger, sender, "❌ Login Failed! Please check WEBSITE_USERNAME and WEBSITE_PASSWORD. Retrying in 60 seconds.")
			delay = loginRetryDelay
		} else {
			notify(logger, sender, fmt.Sprintf("⚠️ Critical Error Detected! The monitoring process stopped. Error: %v. Attempting graceful restart...", err))
		}
		logger.Error().Err(err).Dur("retry_in", delay).Msg("session ended")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// runSession starts a browser, logs in and polls the inbox until an
// error or cancellation ends the session.
func runSession(ctx context.Context, cfg *Config, logger zerolog.Logger, sender MessageSender, store StateStore, once, dryRun bool) error {
	browser := NewBrowserMonitor(cfg, logger)
	if err := browser.Start(ctx); err != nil {
		return err
	}
	defer browser.Stop()

	if err := browser.Login(ctx); err != nil {
		return fmt.Errorf("%w: %v", errLoginFailed, err)
	}
	notify(logger, sender, "🌐 Login Successful! Session established. Starting continuous OTP monitoring loop.")

	monitor := NewMonitor(browser, sender, store, logger, dryRun)

	for {
		res, err := monitor.CheckOnce(ctx)
		switch {
		case err == nil:
			logger.Debug().
				Int("snapshot", res.SnapshotCount).
				Int("forwarded", res.ForwardedCount).
				Msg("cycle complete")
		case errors.Is(err, context.Canceled):
			return nil
		case errors.Is(err, errStatePersist):
			return err
		case errors.Is(err, context.DeadlineExceeded):
			// Slow page, not a broken session; retry shortly without
			// restarting the browser.
			if once {
				return err
			}
			notify(logger, sender, "⚠️ Warning: Timeout while fetching messages. Will retry.")
			logger.Warn().Err(err).Msg("fetch timed out")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchRetryDelay):
			}
			continue
		default:
			return err
		}

		if once {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cfg.CheckInterval):
		}
	}
}
