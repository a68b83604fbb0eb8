// Package probe schedules live diagnostics for running organelles. Each
// entry pairs a cron expression with a probe target; the scheduler
// injects probes whenever the schedule comes due, so a long-running
// network periodically reports its identity without any caller
// involvement.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultPollInterval = time.Second

// standardParser accepts classic five-field cron expressions.
var standardParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// Target injects one probe into a running organelle. The Organelle's
// Probe method satisfies this directly.
type Target func(ctx context.Context) error

// Config controls scheduler behavior.
type Config struct {
	// PollInterval is how often due entries are evaluated (default 1s).
	PollInterval time.Duration

	// Now provides the current time (for testing). If nil, uses UTC now.
	Now func() time.Time

	// OnError receives probe injection failures. May be nil.
	OnError func(error)
}

type entry struct {
	expr     string
	schedule cron.Schedule
	target   Target
	next     time.Time
}

// Scheduler evaluates cron entries and fires their probe targets.
type Scheduler struct {
	pollInterval time.Duration
	now          func() time.Time
	onError      func(error)

	mu      sync.Mutex
	entries []*entry
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler creates a probe scheduler.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.OnError == nil {
		cfg.OnError = func(error) {}
	}

	return &Scheduler{
		pollInterval: cfg.PollInterval,
		now:          cfg.Now,
		onError:      cfg.OnError,
	}
}

// Add registers a probe target under a five-field UTC cron expression.
func (s *Scheduler) Add(expr string, target Target) error {
	if target == nil {
		return errors.New("probe: target is nil")
	}
	schedule, err := parseCronExpressionUTC(expr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry{
		expr:     expr,
		schedule: schedule,
		target:   target,
		next:     schedule.Next(s.now()),
	})
	return nil
}

// Start begins scheduler execution. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.RunOnce(loopCtx)
			}
		}
	}()
}

// Stop terminates scheduler execution and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce fires every entry whose schedule is due and advances its next
// fire time. Exported for testing and for callers driving their own loop.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []*entry
	for _, e := range s.entries {
		if !e.next.After(now) {
			due = append(due, e)
			e.next = e.schedule.Next(now)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		if err := e.target(ctx); err != nil {
			s.onError(fmt.Errorf("probe: firing %q: %w", e.expr, err))
		}
	}
}

func parseCronExpressionUTC(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, errors.New("probe: cron expression is required")
	}

	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, errors.New("probe: cron expression must be UTC-only (timezone prefixes are not allowed)")
	}

	schedule, err := standardParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("probe: invalid cron expression: %w", err)
	}
	return schedule, nil
}
