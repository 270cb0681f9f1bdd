package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/Wilfredoo/jdgrowthscraper/internal/brain"
	"github.com/Wilfredoo/jdgrowthscraper/internal/composer"
	"github.com/Wilfredoo/jdgrowthscraper/internal/config"
	"github.com/Wilfredoo/jdgrowthscraper/internal/core/ports"
	"github.com/Wilfredoo/jdgrowthscraper/internal/runner"
	"github.com/Wilfredoo/jdgrowthscraper/internal/safety"
	"github.com/Wilfredoo/jdgrowthscraper/internal/sites/facebook"
	"github.com/Wilfredoo/jdgrowthscraper/internal/storage"
	"github.com/Wilfredoo/jdgrowthscraper/internal/ui/telegram"
)

const version = "1.0.0"

var cmd = &cli.Command{
	Name:    "jdgrowthscraper",
	Usage:   "Comments on new posts of one group, with rate limiting and duplicate protection",
	Version: version,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "path to the .env file with credentials and settings",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
			Value: "info",
		},
	},
	Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
		return ctx, initLogger(c.String("log-level"))
	},
	Action: run,
}

func main() {
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if closer, ok := store.(interface{ Close() }); ok {
		defer closer.Close()
	}

	site, err := facebook.NewClient(facebook.Options{
		Email:       cfg.Email,
		Password:    cfg.Password,
		GroupID:     cfg.GroupID,
		GroupURL:    cfg.GroupURL,
		Timeout:     cfg.HTTPTimeout,
		ActionDelay: cfg.ActionDelay,
	})
	if err != nil {
		return fmt.Errorf("site client: %w", err)
	}

	comp, err := pickComposer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("composer: %w", err)
	}

	guard := safety.NewGuard(store, safety.Limits{
		MaxPerRun:            cfg.MaxCommentsPerRun,
		MaxPerDay:            cfg.MaxCommentsPerDay,
		MaxPerHour:           cfg.MaxCommentsPerHour,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		MinDelay:             cfg.MinCommentDelay,
		MaxDelay:             cfg.MaxCommentDelay,
	})

	r := runner.New(site, comp, guard, slog.Default())
	r.MaxPosts = cfg.MaxPostsToProcess

	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		ui, err := telegram.NewUI(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		r.UI = ui
		slog.Info("telegram approval enabled", "chat_id", cfg.TelegramChatID)
	}

	report, err := r.Run(ctx)
	if err != nil {
		return err
	}

	slog.Info("run finished",
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return nil
}

func openStorage(ctx context.Context, cfg config.Config) (ports.Storage, error) {
	if cfg.DatabaseURL != "" {
		store, err := storage.NewPostgresStorage(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		slog.Info("storage: postgres connected")
		return store, nil
	}

	store, err := storage.NewJSONStorage(cfg.SeenFile)
	if err != nil {
		return nil, err
	}
	slog.Info("storage: json file mode", "path", cfg.SeenFile)
	return store, nil
}

// pickComposer prefers the AI composer when a key is configured and falls
// back to the template set otherwise.
func pickComposer(ctx context.Context, cfg config.Config) (ports.Composer, error) {
	if cfg.GeminiAPIKey != "" {
		comp, err := brain.NewGeminiComposer(ctx, cfg.GeminiAPIKey)
		if err == nil {
			slog.Info("composer: gemini")
			return comp, nil
		}
		slog.Warn("gemini unavailable, falling back to templates", "err", err)
	}
	return composer.NewTemplateComposer(cfg.Templates)
}
