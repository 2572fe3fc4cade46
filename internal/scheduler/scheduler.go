package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"spacegun/internal/clock"
	"spacegun/internal/metrics"
	"spacegun/pkg/logging"
)

const subsystem = "Scheduler"

// nextRunCount is the number of upcoming runs reported per cron.
const nextRunCount = 5

var (
	// ErrAlreadyRunning is returned when a run of the same name is in flight.
	ErrAlreadyRunning = errors.New("already running")
	// ErrUnknownCron is returned for names that were never registered.
	ErrUnknownCron = errors.New("unknown cron")
)

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseExpression parses a cron expression.
func ParseExpression(expression string) (cron.Schedule, error) {
	schedule, err := parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}
	return schedule, nil
}

// TaskFactory starts one run of a task. It is called once per run.
type TaskFactory func(ctx context.Context) error

// Cron is the observable state of a registered cron.
type Cron struct {
	Name       string      `json:"name" yaml:"name"`
	Expression string      `json:"expression" yaml:"expression"`
	LastRun    *time.Time  `json:"lastRun,omitempty" yaml:"lastRun,omitempty"`
	NextRuns   []time.Time `json:"nextRuns" yaml:"nextRuns"`
	IsStarted  bool        `json:"isStarted" yaml:"isStarted"`
	IsRunning  bool        `json:"isRunning" yaml:"isRunning"`
}

type job struct {
	name       string
	expression string
	schedule   cron.Schedule
	factory    TaskFactory
	entryID    cron.EntryID
	started    bool
	lastRun    *time.Time
}

// CronRegistry owns the mapping from job name to cron trigger.
type CronRegistry struct {
	mu      sync.Mutex
	runner  *cron.Cron
	jobs    map[string]*job
	running map[string]bool

	clock   clock.Clock
	metrics *metrics.Metrics
}

// Option configures a CronRegistry.
type Option func(*CronRegistry)

// WithClock sets the clock used for next run computation and run times.
func WithClock(c clock.Clock) Option {
	return func(r *CronRegistry) { r.clock = clock.OrReal(c) }
}

// WithMetrics records runs in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *CronRegistry) { r.metrics = m }
}

// NewCronRegistry creates an empty registry.
func NewCronRegistry(opts ...Option) *CronRegistry {
	r := &CronRegistry{
		runner:  cron.New(cron.WithParser(parser)),
		jobs:    make(map[string]*job),
		running: make(map[string]bool),
		clock:   clock.Real{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores a cron trigger for name, replacing an existing one. The
// trigger only fires after StartAllCrons unless startImmediately is set.
func (r *CronRegistry) Register(name, expression string, factory TaskFactory, startImmediately bool) error {
	if name == "" {
		return errors.New("cron name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("cron %s has no task", name)
	}
	schedule, err := ParseExpression(expression)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.jobs[name]; ok && old.started {
		r.runner.Remove(old.entryID)
	}
	j := &job{name: name, expression: expression, schedule: schedule, factory: factory}
	if old, ok := r.jobs[name]; ok {
		j.lastRun = old.lastRun
	}
	r.jobs[name] = j

	logging.Info(subsystem, "Registered cron %s (%s)", name, expression)
	if startImmediately {
		r.startLocked(j)
	}
	return nil
}

func (r *CronRegistry) startLocked(j *job) {
	if j.started {
		return
	}
	name := j.name
	j.entryID = r.runner.Schedule(j.schedule, cron.FuncJob(func() { r.tick(name) }))
	j.started = true
	r.runner.Start()
}

// StartAllCrons starts every registered trigger.
func (r *CronRegistry) StartAllCrons() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		r.startLocked(j)
	}
	logging.Info(subsystem, "Started %d crons", len(r.jobs))
}

// StopAllCrons removes every trigger. Runs in flight keep going.
func (r *CronRegistry) StopAllCrons() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.started {
			r.runner.Remove(j.entryID)
			j.started = false
		}
	}
	logging.Info(subsystem, "Stopped all crons")
}

// RemoveAllCrons stops and forgets every cron.
func (r *CronRegistry) RemoveAllCrons() {
	r.StopAllCrons()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = make(map[string]*job)
}

// Remove stops and forgets name. Unknown names are ignored.
func (r *CronRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[name]
	if !ok {
		return
	}
	if j.started {
		r.runner.Remove(j.entryID)
	}
	delete(r.jobs, name)
	logging.Info(subsystem, "Removed cron %s", name)
}

// Close stops all triggers and waits for in-flight runs or ctx.
func (r *CronRegistry) Close(ctx context.Context) error {
	r.StopAllCrons()
	select {
	case <-r.runner.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger runs name now, subject to single-flight.
func (r *CronRegistry) Trigger(ctx context.Context, name string) error {
	return r.run(ctx, name)
}

func (r *CronRegistry) tick(name string) {
	err := r.run(context.Background(), name)
	if err != nil && !errors.Is(err, ErrAlreadyRunning) {
		logging.Error(subsystem, err, "Cron %s failed", name)
	}
}

func (r *CronRegistry) run(ctx context.Context, name string) (err error) {
	r.mu.Lock()
	j, ok := r.jobs[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownCron, name)
	}
	if r.running[name] {
		r.mu.Unlock()
		r.metrics.CronRun(name, metrics.ResultSkipped)
		logging.Warn(subsystem, "Skipping cron %s: previous run is still in progress", name)
		return fmt.Errorf("cron %s: %w", name, ErrAlreadyRunning)
	}
	r.running[name] = true
	factory := j.factory
	r.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("cron %s panicked: %v", name, p)
		}

		// The task found its own run in flight, e.g. a manual pipeline run,
		// so nothing ran.
		skipped := errors.Is(err, ErrAlreadyRunning)
		now := r.clock.Now()
		r.mu.Lock()
		delete(r.running, name)
		if !skipped {
			j.lastRun = &now
		}
		r.mu.Unlock()

		switch {
		case skipped:
			r.metrics.CronRun(name, metrics.ResultSkipped)
			logging.Warn(subsystem, "Skipping cron %s: %v", name, err)
		case err != nil:
			r.metrics.CronRun(name, metrics.ResultFailure)
		default:
			r.metrics.CronRun(name, metrics.ResultSuccess)
		}
	}()

	logging.Info(subsystem, "Running cron %s", name)
	return factory(ctx)
}

// Crons returns the state of every registered cron, sorted by name.
func (r *CronRegistry) Crons() []Cron {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	crons := make([]Cron, 0, len(r.jobs))
	for name, j := range r.jobs {
		c := Cron{
			Name:       name,
			Expression: j.expression,
			IsStarted:  j.started,
			IsRunning:  r.running[name],
			NextRuns:   make([]time.Time, 0, nextRunCount),
		}
		if j.lastRun != nil {
			last := *j.lastRun
			c.LastRun = &last
		}
		next := now
		for i := 0; i < nextRunCount; i++ {
			next = j.schedule.Next(next)
			if next.IsZero() {
				break
			}
			c.NextRuns = append(c.NextRuns, next)
		}
		crons = append(crons, c)
	}
	sort.Slice(crons, func(i, k int) bool { return crons[i].Name < crons[k].Name })
	return crons
}
