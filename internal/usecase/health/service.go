package health

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a failing dependency; some requests will fail.
	Degraded Status = "degraded"
	// Unhealthy indicates local storage is unusable; no request can succeed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Check names.
const (
	CheckSessions  = "sessions"
	CheckEmbedding = "embedding"
	CheckLLM       = "llm"
	CheckStorage   = "storage"
)

const defaultProbeTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks. Unset dependencies are not reported.
type Service struct {
	sessions  Pinger
	embedding ProviderChecker
	llm       ProviderChecker
	dirs      []string
	timeout   time.Duration
}

// New creates a Service. Any argument can be nil.
func New(sessions Pinger, embedding, llm ProviderChecker, dirs ...string) *Service {
	return &Service{sessions: sessions, embedding: embedding, llm: llm, dirs: dirs, timeout: defaultProbeTimeout}
}

// WithTimeout bounds each check.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs all checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult)
	)
	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			checks[name] = CheckError
			return
		}
		checks[name] = CheckOK
	}

	var g errgroup.Group
	run := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			record(name, fn(pctx))
			return nil
		})
	}

	if s.sessions != nil {
		run(CheckSessions, s.sessions.Ping)
	}
	if s.embedding != nil {
		run(CheckEmbedding, s.embedding.HealthCheck)
	}
	if s.llm != nil {
		run(CheckLLM, s.llm.HealthCheck)
	}
	if len(s.dirs) > 0 {
		run(CheckStorage, func(context.Context) error { return writable(s.dirs) })
	}
	_ = g.Wait()

	status := Healthy
	for name, v := range checks {
		if v != CheckError {
			continue
		}
		if name == CheckStorage {
			status = Unhealthy
			break
		}
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

// writable creates each directory if needed and tests it with a temp file.
func writable(dirs []string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		f, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return fmt.Errorf("write %s: %w", dir, err)
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
	}
	return nil
}
