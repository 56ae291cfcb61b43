package app

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/doeshing/dexplorer/internal/application/doctor"
	"github.com/doeshing/dexplorer/internal/application/query"
	"github.com/doeshing/dexplorer/internal/application/results"
	"github.com/doeshing/dexplorer/internal/application/session"
	"github.com/doeshing/dexplorer/internal/domain"
	"github.com/doeshing/dexplorer/internal/infrastructure/config"
	"github.com/doeshing/dexplorer/internal/infrastructure/greptime"
	"github.com/doeshing/dexplorer/internal/infrastructure/history"
	"github.com/doeshing/dexplorer/internal/infrastructure/security"
	"github.com/doeshing/dexplorer/internal/pkg/logger"
	"github.com/doeshing/dexplorer/internal/ports"
)

// Options controls how the container is assembled.
type Options struct {
	Verbose    bool
	ConfigPath string
	// Flags are the parsed persistent CLI flags layered over the config file.
	Flags *pflag.FlagSet
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config         domain.Config
	ConfigProvider ports.ConfigProvider
	ConfigLoader   *config.FileLoader
	Logger         *logger.StdLogger
	Backend        ports.Backend
	Session        *session.Session
	Results        *results.Store
	QueryService   *query.Service
	DoctorService  *doctor.Service
	// HistoryStore is nil when history is disabled or could not be opened.
	HistoryStore ports.HistoryRepository
	// Guardrail is nil when statement confirmation is disabled.
	Guardrail ports.StatementGuard

	closers []func() error
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath, opts.Flags)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.NewStd(opts.Verbose)
	backend := greptime.NewClient(cfg, nil, log)
	sess := session.New()
	store := results.NewStore()

	c := &Container{
		Config:         cfg,
		ConfigProvider: cfgLoader,
		ConfigLoader:   cfgLoader,
		Logger:         log,
		Backend:        backend,
		Session:        sess,
		Results:        store,
	}

	if cfg.IsHistoryEnabled() {
		historyStore, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			log.Warn("history disabled", map[string]interface{}{"path": cfg.History.Path, "error": err.Error()})
		} else {
			c.HistoryStore = historyStore
			c.closers = append(c.closers, historyStore.Close)
			if days := cfg.History.RetentionDays; days > 0 {
				pruned, err := historyStore.PruneOlderThan(ctx, days)
				if err != nil {
					log.Warn("history prune failed", map[string]interface{}{"error": err.Error()})
				} else if pruned > 0 {
					log.Debug("pruned history", map[string]interface{}{"removed": pruned, "days": days})
				}
			}
		}
	}

	if cfg.IsGuardrailEnabled() {
		guardrail, err := security.NewGuardrail(cfg.Guardrail.RulesPath)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("guardrail: %w", err)
		}
		c.Guardrail = guardrail
	}

	c.QueryService = &query.Service{
		Backend:        backend,
		Results:        store,
		TimeRange:      sess,
		Logger:         log,
		History:        c.HistoryStore,
		SessionID:      sess.ID(),
		NotifyDuration: cfg.GetNotifyDuration(),
	}

	c.DoctorService = &doctor.Service{
		ConfigProvider: cfgLoader,
		Backend:        backend,
		History:        c.HistoryStore,
	}

	return c, nil
}

// Close releases resources held by adapters.
func (c *Container) Close() error {
	var first error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}
