// Package worker runs conversions off the caller's goroutine behind a
// request/response protocol keyed by correlation id, with cooperative
// cancellation and cleanup.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/mkowalik/ankiconv/internal/entities"
	"github.com/mkowalik/ankiconv/internal/logger"
	"github.com/mkowalik/ankiconv/internal/pipeline"
)

// ErrCancelled rejects the pending outcome of a cancelled conversion.
var ErrCancelled = errors.New("conversion cancelled")

// Runner decides where submitted work executes. The default runs each
// conversion on its own goroutine; InlineRunner executes on the caller's
// goroutine and must produce identical results.
type Runner interface {
	Run(fn func())
}

// GoRunner runs work on a new goroutine.
type GoRunner struct{}

func (GoRunner) Run(fn func()) { go fn() }

// InlineRunner runs work synchronously on the calling goroutine.
type InlineRunner struct{}

func (InlineRunner) Run(fn func()) { fn() }

// LimitedRunner runs work on goroutines while capping how many conversions
// execute at once. Submissions past the cap queue on the slot channel.
type LimitedRunner struct {
	slots chan struct{}
}

func NewLimitedRunner(n int) *LimitedRunner {
	if n < 1 {
		n = 1
	}
	return &LimitedRunner{slots: make(chan struct{}, n)}
}

func (r *LimitedRunner) Run(fn func()) {
	go func() {
		r.slots <- struct{}{}
		defer func() { <-r.slots }()
		fn()
	}()
}

// Request is one conversion request. A zero ID is assigned a fresh
// correlation id on submit.
type Request struct {
	ID       uuid.UUID
	Data     []byte
	Filename string
	Options  pipeline.Options
}

// Outcome is the single terminal message of one conversion.
type Outcome struct {
	Result *entities.ConversionResult
	Err    error
}

type job struct {
	cancel    context.CancelFunc
	done      chan Outcome
	finish    sync.Once
	cancelled bool
	mu        sync.Mutex
}

// markCancelled flips the job to cancelled and reports whether this call
// did the flip.
func (j *job) markCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancelled {
		return false
	}
	j.cancelled = true
	return true
}

func (j *job) isCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// Manager owns in-flight conversions. Conversions share no mutable state;
// each correlation id has its own progress listener and outcome channel.
type Manager struct {
	pipeline *pipeline.Pipeline
	runner   Runner
	log      *logger.Logger

	mu   sync.Mutex
	jobs map[uuid.UUID]*job
}

// NewManager creates a manager executing through runner. Pass GoRunner{}
// for background execution or InlineRunner{} to stay on the caller's
// goroutine.
func NewManager(p *pipeline.Pipeline, runner Runner, log *logger.Logger) *Manager {
	if runner == nil {
		runner = GoRunner{}
	}
	return &Manager{pipeline: p, runner: runner, log: log, jobs: make(map[uuid.UUID]*job)}
}

// Submit starts one conversion and returns its correlation id plus the
// channel carrying the single terminal outcome. Progress events for this id
// go only to onProgress and stop after cancellation or failure.
func (m *Manager) Submit(ctx context.Context, req Request, onProgress pipeline.ProgressFunc) (uuid.UUID, <-chan Outcome) {
	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	runCtx, cancel := context.WithCancel(ctx)
	j := &job{cancel: cancel, done: make(chan Outcome, 1)}

	m.mu.Lock()
	m.jobs[id] = j
	m.mu.Unlock()

	log := m.log.With("conversion_id", id.String())

	guardedProgress := func(p pipeline.Progress) {
		if j.isCancelled() || onProgress == nil {
			return
		}
		onProgress(p)
	}

	m.runner.Run(func() {
		defer m.remove(id)
		result, err := m.pipeline.Convert(runCtx, req.Data, req.Filename, req.Options, guardedProgress)

		// A cancelled conversion already rejected its outcome; whatever
		// the synchronous work produced is discarded.
		if j.isCancelled() {
			log.Debug("discarding outcome of cancelled conversion")
			return
		}
		j.finish.Do(func() {
			if err != nil {
				log.Warn("conversion failed", "error", err)
				j.done <- Outcome{Err: err}
				return
			}
			j.done <- Outcome{Result: result}
		})
	})

	return id, j.done
}

// Cancel stops emission for the given correlation id and rejects its
// pending outcome with ErrCancelled. Unknown ids are ignored.
func (m *Manager) Cancel(id uuid.UUID) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return
	}
	if !j.markCancelled() {
		return
	}
	j.cancel()
	j.finish.Do(func() {
		j.done <- Outcome{Err: ErrCancelled}
	})
	m.log.Debug("conversion cancelled", "conversion_id", id.String())
}

// Cleanup cancels every in-flight conversion and releases retained state.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Cancel(id)
	}
}

// InFlight reports how many conversions are currently tracked.
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func (m *Manager) remove(id uuid.UUID) {
	m.mu.Lock()
	delete(m.jobs, id)
	m.mu.Unlock()
}
