package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"spacegun/internal/scheduler"
	"spacegun/pkg/logging"
)

// ErrUnknownPipeline is returned for names that are not loaded.
var ErrUnknownPipeline = errors.New("unknown pipeline")

const historySize = 50

// Manager owns the loaded pipelines and their cron triggers.
type Manager struct {
	mu        sync.RWMutex
	dir       string
	executor  *Executor
	crons     *scheduler.CronRegistry
	pipelines map[string]*PipelineDescription
	running   map[string]bool
	history   []*RunResult
	started   bool
}

// NewManager returns a Manager for the pipelines in dir.
func NewManager(dir string, executor *Executor, crons *scheduler.CronRegistry) *Manager {
	if crons == nil {
		crons = scheduler.NewCronRegistry()
	}
	return &Manager{
		dir:       dir,
		executor:  executor,
		crons:     crons,
		pipelines: make(map[string]*PipelineDescription),
		running:   make(map[string]bool),
	}
}

// Load replaces the loaded pipelines with the contents of the directory. The
// valid pipelines are kept even when some files fail; those failures are
// returned as a *config.ConfigurationErrorCollection.
func (m *Manager) Load() error {
	pipelines, errs := LoadDir(m.dir)

	m.mu.Lock()
	for name, p := range m.pipelines {
		if p.Cron != "" {
			m.crons.Remove(name)
		}
	}
	m.pipelines = make(map[string]*PipelineDescription, len(pipelines))
	for _, p := range pipelines {
		m.pipelines[p.Name] = p
		m.registerLocked(p)
	}
	m.mu.Unlock()

	logging.Info("PipelineManager", "Loaded %d pipelines from %s", len(pipelines), m.dir)
	if errs.HasErrors() {
		logging.Warn("PipelineManager", "Some pipeline files had errors:\n%s", errs.GetDetailedReport())
		return errs
	}
	return nil
}

func (m *Manager) registerLocked(p *PipelineDescription) {
	for _, name := range Unreachable(p) {
		logging.Warn("PipelineManager", "Step %s of pipeline %s is unreachable", name, p.Name)
	}
	if p.Cron == "" {
		return
	}
	name := p.Name
	err := m.crons.Register(name, p.Cron, func(ctx context.Context) error {
		res, err := m.Run(ctx, name)
		if err != nil {
			return err
		}
		return res.Err
	}, m.started)
	if err != nil {
		logging.Error("PipelineManager", err, "Failed to register cron of pipeline %s", name)
	}
}

// Start arms the cron triggers.
func (m *Manager) Start() {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	m.crons.StartAllCrons()
}

// Stop disarms the cron triggers and waits for running pipelines or ctx.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.started = false
	m.mu.Unlock()
	return m.crons.Close(ctx)
}

// Crons exposes the trigger registry.
func (m *Manager) Crons() *scheduler.CronRegistry {
	return m.crons
}

// List returns the loaded pipelines sorted by name.
func (m *Manager) List() []PipelineDescription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]PipelineDescription, 0, len(m.pipelines))
	for _, p := range m.pipelines {
		res = append(res, *p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Get returns the pipeline called name.
func (m *Manager) Get(name string) (*PipelineDescription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPipeline, name)
	}
	return p, nil
}

// Run executes name now. A pipeline runs at most once at a time, whether
// started here or by its cron; a second request gets
// scheduler.ErrAlreadyRunning. A failed run is reported in the result, not
// in the error.
func (m *Manager) Run(ctx context.Context, name string) (*RunResult, error) {
	m.mu.Lock()
	p, ok := m.pipelines[name]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownPipeline, name)
	}
	if m.running[name] {
		m.mu.Unlock()
		return nil, fmt.Errorf("pipeline %s: %w", name, scheduler.ErrAlreadyRunning)
	}
	m.running[name] = true
	m.mu.Unlock()

	res := m.executor.Run(ctx, p)

	m.mu.Lock()
	delete(m.running, name)
	m.history = append(m.history, res)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
	m.mu.Unlock()
	return res, nil
}

// Runs returns the recent runs of name, newest first. An empty name returns
// the runs of every pipeline.
func (m *Manager) Runs(name string) []RunResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []RunResult
	for i := len(m.history) - 1; i >= 0; i-- {
		if name == "" || m.history[i].Pipeline == name {
			res = append(res, *m.history[i])
		}
	}
	return res
}

// Watch reloads pipelines as their files change until ctx is done.
func (m *Manager) Watch(ctx context.Context) error {
	w := NewWatcher(m.dir, 0)
	changes := make(chan Change, 16)
	if err := w.Start(ctx, changes); err != nil {
		return fmt.Errorf("failed to watch %s: %w", m.dir, err)
	}
	go func() {
		defer w.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case change := <-changes:
				m.Apply(change)
			}
		}
	}()
	return nil
}

// Apply updates one pipeline after its file changed. An invalid new version
// keeps the previous one loaded.
func (m *Manager) Apply(change Change) {
	if change.Operation == OperationDelete {
		m.mu.Lock()
		if _, ok := m.pipelines[change.Name]; ok {
			delete(m.pipelines, change.Name)
			m.crons.Remove(change.Name)
			logging.Info("PipelineManager", "Unloaded pipeline %s", change.Name)
		}
		m.mu.Unlock()
		return
	}

	p, err := LoadFile(change.Path)
	if err != nil {
		logging.Error("PipelineManager", err, "Keeping previous version of pipeline %s", change.Name)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.pipelines[p.Name]; ok && old.Cron != "" && p.Cron == "" {
		m.crons.Remove(p.Name)
	}
	m.pipelines[p.Name] = p
	m.registerLocked(p)
	logging.Info("PipelineManager", "Reloaded pipeline %s", p.Name)
}
