package doctor

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/doeshing/dexplorer/internal/domain"
	"github.com/doeshing/dexplorer/internal/ports"
)

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Backend        ports.Backend
	History        ports.HistoryRepository
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config file", fmt.Sprintf("loaded version %s", cfg.ConfigFormatVersion)))

	checks = append(checks, credentialsCheck(cfg.Backend))

	// Backend and history probes run concurrently.
	var backend, history domain.HealthCheck
	var g errgroup.Group
	g.Go(func() error {
		backend = s.backendCheck(ctx, cfg)
		return nil
	})
	g.Go(func() error {
		history = s.historyCheck(ctx, cfg)
		return nil
	})
	_ = g.Wait()

	checks = append(checks, backend, history, guardrailCheck(cfg.Guardrail))

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) backendCheck(ctx context.Context, cfg domain.Config) domain.HealthCheck {
	if s.Backend == nil {
		return warn("Backend", "client not initialized")
	}
	if err := s.Backend.Health(ctx); err != nil {
		return fail("Backend", fmt.Sprintf("%s unreachable: %v", cfg.GetBackendURL(), err))
	}
	return ok("Backend", fmt.Sprintf("%s (db %s)", cfg.GetBackendURL(), cfg.GetDatabase()))
}

func (s *Service) historyCheck(ctx context.Context, cfg domain.Config) domain.HealthCheck {
	if !cfg.IsHistoryEnabled() {
		return warn("History", "disabled in config")
	}
	if s.History == nil {
		return warn("History", "store not initialized")
	}
	entries, err := s.History.Records(ctx, domain.HistoryFilter{Limit: 1})
	if err != nil {
		return fail("History", err.Error())
	}
	if len(entries) == 0 {
		return ok("History", fmt.Sprintf("%s (empty)", s.History.Path()))
	}
	return ok("History", s.History.Path())
}

func guardrailCheck(settings domain.GuardrailSettings) domain.HealthCheck {
	if !settings.Enabled {
		return warn("Guardrail", "disabled, destructive SQL runs without confirmation")
	}
	if _, err := os.Stat(settings.RulesPath); err != nil {
		return ok("Guardrail", "built-in rules")
	}
	return ok("Guardrail", settings.RulesPath)
}

func credentialsCheck(backend domain.BackendSettings) domain.HealthCheck {
	if backend.UsernameEnvVar == "" && backend.PasswordEnvVar == "" {
		return ok("Credentials", "not configured")
	}
	for _, name := range []string{backend.UsernameEnvVar, backend.PasswordEnvVar} {
		if name != "" && os.Getenv(name) == "" {
			return warn("Credentials", fmt.Sprintf("%s is not set", name))
		}
	}
	return ok("Credentials", "basic auth from environment")
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
