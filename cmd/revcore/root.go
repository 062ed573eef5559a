package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/clipwave/revcore/internal/aggwriter"
	"github.com/clipwave/revcore/internal/config"
	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/infrastructure/db"
	"github.com/clipwave/revcore/internal/ops"
	"github.com/clipwave/revcore/internal/reader"
	"github.com/clipwave/revcore/internal/revwin"
	"github.com/clipwave/revcore/internal/trust"
	"github.com/clipwave/revcore/internal/units"
)

var configPath string

// Execute runs the revcore CLI.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:   "revcore",
		Short: "Integrity scoring and revenue allocation for creator payouts",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to YAML config")

	root.AddCommand(finalizeCmd(ctx))
	root.AddCommand(unitsCmd(ctx))
	root.AddCommand(scoreCmd(ctx))
	root.AddCommand(analyzeCmd(ctx))
	root.AddCommand(creatorsCmd(ctx))
	root.AddCommand(serveCmd(ctx))
	root.AddCommand(healthCmd(ctx))
	root.AddCommand(schemaCmd(ctx))
	return root.ExecuteContext(ctx)
}

// app bundles the wired components every command needs.
type app struct {
	cfg       *config.AppConfig
	manager   *db.Manager
	reader    *reader.Reader
	writer    *aggwriter.Writer
	builder   *units.Builder
	finalizer *revwin.Finalizer
	retrier   *ops.Retrier
}

func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured (set database.dsn or REVCORE_PG_DSN)")
	}

	manager, err := db.NewManager(cfg.Database)
	if err != nil {
		return nil, err
	}
	repos := manager.Repository()

	var cache trust.Cache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		cache = trust.NewRedisCache(client, cfg.Redis.VTSCacheTTL)
	}
	resolver := trust.NewResolver(repos.Users, cache)

	rd := reader.New(repos, cfg.Reader.PageSize, cfg.Reader.PagesPerSecond)
	writer := aggwriter.New(repos, rd, resolver)
	builder := units.New(repos, rd, writer)
	finalizer := revwin.New(repos, builder, cfg.Params)
	retrier := ops.NewRetrier(cfg.Ops.MaxRetries, cfg.Ops.RetryBaseDelay)

	return &app{
		cfg:       cfg,
		manager:   manager,
		reader:    rd,
		writer:    writer,
		builder:   builder,
		finalizer: finalizer,
		retrier:   retrier,
	}, nil
}

func (a *app) close() {
	if a.manager != nil {
		_ = a.manager.Close()
	}
}

// windowFlags holds the shared --day / --start / --end window selection.
type windowFlags struct {
	day   string
	start string
	end   string
}

func (w *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&w.day, "day", "", "UTC day to process (YYYY-MM-DD)")
	cmd.Flags().StringVar(&w.start, "start", "", "window start (RFC3339)")
	cmd.Flags().StringVar(&w.end, "end", "", "window end (RFC3339)")
}

func (w *windowFlags) window() (domain.Window, error) {
	if w.day != "" {
		day, err := time.Parse("2006-01-02", w.day)
		if err != nil {
			return domain.Window{}, fmt.Errorf("invalid --day %q: %w", w.day, err)
		}
		return domain.DayWindow(day), nil
	}
	if w.start == "" || w.end == "" {
		return domain.Window{}, fmt.Errorf("either --day or both --start and --end are required")
	}
	start, err := time.Parse(time.RFC3339, w.start)
	if err != nil {
		return domain.Window{}, fmt.Errorf("invalid --start %q: %w", w.start, err)
	}
	end, err := time.Parse(time.RFC3339, w.end)
	if err != nil {
		return domain.Window{}, fmt.Errorf("invalid --end %q: %w", w.end, err)
	}
	return domain.NewWindow(start, end)
}
