package internal

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/starford/incipit/internal/commands"
	"github.com/starford/incipit/internal/compile"
	"github.com/starford/incipit/internal/history"
	"github.com/starford/incipit/internal/meta"
	"github.com/starford/incipit/internal/metrics"
	"github.com/starford/incipit/internal/models"
	"github.com/starford/incipit/internal/sse"
	"github.com/starford/incipit/internal/watch"
)

// components is the object graph shared by every run mode.
type components struct {
	logger   *slog.Logger
	engine   *compile.Subprocess
	settings *meta.SettingsStore
	history  *history.DB
	broker   *sse.Broker
	watcher  *watch.Manager
	svc      *commands.Service
}

type buildOptions struct {
	watch bool
	sse   bool
}

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

func build(cfg *Config, logger *slog.Logger, bo buildOptions) (*components, error) {
	c := &components{logger: logger}

	settingsDir, err := cfg.Settings.ResolveDir()
	if err != nil {
		return nil, err
	}
	c.settings = meta.NewSettingsStore(settingsDir)

	c.engine = compile.NewSubprocess(cfg.Engine.Binary, cfg.Engine.Args, cfg.Engine.SearchPaths)
	if bin, err := c.engine.Discover(); err != nil {
		logger.Warn("engine not available, compiles will fail until it is installed",
			slog.String("binary", cfg.Engine.Binary),
			slog.String("error", err.Error()))
	} else {
		logger.Info("engine found", slog.String("path", bin))
	}

	dopts := []compile.Option{
		compile.WithLogger(logger),
		compile.WithMaxParallel(cfg.Engine.MaxParallel),
		compile.WithOutputDir(cfg.Engine.OutputDir),
		compile.OnStart(metrics.CompileStarted),
		compile.OnFinish(metrics.CompileFinished),
	}
	sopts := []commands.Option{commands.WithLogger(logger)}

	if cfg.History.Enabled {
		path := cfg.History.ResolvePath(settingsDir)
		db, err := history.Open(path)
		if err != nil {
			return nil, fmt.Errorf("init history: %w", err)
		}
		c.history = db
		if n, err := db.Prune(cfg.History.Keep); err != nil {
			logger.Warn("history prune failed", slog.String("error", err.Error()))
		} else if n > 0 {
			logger.Info("history pruned", slog.Int64("removed", n))
		}
		dopts = append(dopts, compile.OnFinish(func(rec models.CompileRecord) {
			if err := db.Record(rec); err != nil {
				logger.Warn("history record failed", slog.String("id", rec.ID), slog.String("error", err.Error()))
			}
		}))
		sopts = append(sopts, commands.WithHistory(db))
	}

	if bo.sse {
		c.broker = sse.NewBroker(500*time.Millisecond, sse.WithClientGauge(metrics.SetSSEClients))
		dopts = append(dopts,
			compile.OnStart(c.broker.CompileStarted),
			compile.OnFinish(c.broker.CompileFinished),
		)
	}

	if bo.watch && cfg.Watch.Enabled {
		var cb watch.Callback
		if c.broker != nil {
			cb = c.broker.PublishTreeChanged
		}
		c.watcher = watch.NewManager(cfg.Watch.Debounce, cb, logger)
		sopts = append(sopts, commands.WithWatcher(c.watcher))
	}

	c.svc = commands.NewService(compile.NewDispatcher(c.engine, dopts...), c.settings, sopts...)
	return c, nil
}

func (c *components) Close() {
	if c.watcher != nil {
		c.watcher.Close()
	}
	if c.broker != nil {
		c.broker.Close()
	}
	if c.history != nil {
		if err := c.history.Close(); err != nil {
			c.logger.Warn("history close failed", slog.String("error", err.Error()))
		}
	}
}
