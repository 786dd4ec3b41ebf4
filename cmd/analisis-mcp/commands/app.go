package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"analisis-mcp/internal/analysis"
	"analisis-mcp/internal/cases"
	"analisis-mcp/internal/config"
	"analisis-mcp/internal/metrics"
	"analisis-mcp/internal/notify"
	"analisis-mcp/internal/progress"
	"analisis-mcp/internal/report"
	"analisis-mcp/internal/store"
)

// runStore is what a backing store has to provide to the pipeline and the
// report service.
type runStore interface {
	analysis.DataSource
	analysis.Sink
	report.Reader
}

// app is the wired object graph shared by every command.
type app struct {
	store    runStore
	mysql    *store.MySQL
	tracker  progress.Store
	catalog  cases.Catalog
	pipeline *analysis.Pipeline
	reports  *report.Service
	recorder *metrics.Recorder

	closers []io.Closer
}

func newApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	a := &app{recorder: metrics.NewRecorder(prometheus.NewRegistry())}

	if err := a.openStore(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openTracker(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openCatalog(cfg); err != nil {
		a.Close()
		return nil, err
	}

	opts := analysis.Options{StageTimeout: cfg.StageTimeout, Observer: a.recorder}
	if cfg.Discord.Enabled() {
		d, err := notify.NewDiscord(cfg.Discord)
		if err != nil {
			log.Warn().Err(err).Msg("Discord notifications disabled")
		} else {
			opts.Notifier = d
			a.closers = append(a.closers, d)
		}
	}
	a.pipeline = analysis.NewPipeline(a.store, a.store, a.catalog, a.tracker, opts)

	var completer report.Completer
	if cfg.Anthropic.APIKey != "" {
		completer = report.NewAnthropicCompleter(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
	} else {
		log.Debug().Msg("ANTHROPIC_API_KEY not set, report rewriting disabled")
	}
	a.reports = report.NewService(a.store, completer)
	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg *config.AppConfig) error {
	if cfg.UseMySQL() {
		db, err := store.OpenMySQL(ctx, cfg.MySQL)
		if err != nil {
			return err
		}
		a.store, a.mysql = db, db
		a.closers = append(a.closers, db)
		log.Info().Msg("Using MySQL store")
		return nil
	}

	mem := store.NewMemory(cfg.HistoryPath)
	if cfg.FixturePath != "" {
		fx, err := store.LoadFixture(cfg.FixturePath)
		if err != nil {
			return err
		}
		mem.AddFixture(fx)
		log.Info().Str("path", cfg.FixturePath).Int("projects", len(fx.Proyectos)).Msg("Loaded project fixture")
	} else {
		log.Warn().Msg("Neither MYSQL_DSN nor FIXTURE_PATH is set; no project data is available")
	}
	if err := mem.LoadHistory(cfg.HistoryPath); err != nil {
		return err
	}
	a.store = mem
	return nil
}

func (a *app) openTracker(ctx context.Context, cfg *config.AppConfig) error {
	if cfg.Redis.Address == "" {
		a.tracker = progress.NewMemoryStore()
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("connect redis %s: %w", cfg.Redis.Address, err)
	}
	a.tracker = progress.NewRedisStore(client, cfg.Redis.TTL)
	a.closers = append(a.closers, client)
	log.Info().Str("addr", cfg.Redis.Address).Msg("Using Redis progress store")
	return nil
}

func (a *app) openCatalog(cfg *config.AppConfig) error {
	if cfg.CatalogSource == config.CatalogMySQL {
		if a.mysql == nil {
			return errors.New("CASE_CATALOG_SOURCE=mysql requires a MySQL store")
		}
		a.catalog = a.mysql
		return nil
	}

	cat, err := cases.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	log.Debug().Int("entries", cat.Len()).Msg("Case catalog loaded")
	a.catalog = cat
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("Close failed")
		}
	}
}
