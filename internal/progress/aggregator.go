package progress

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chrisgleissner/sidflow-sub004/internal/logging"
	"github.com/chrisgleissner/sidflow-sub004/internal/phase"
)

// State is the run-level lifecycle of a classification batch.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// ThreadStatus describes what a worker slot is doing right now. Staleness is
// not a stored status; it is derived from the last-update timestamp whenever
// a snapshot is taken.
type ThreadStatus string

const (
	ThreadIdle    ThreadStatus = "idle"
	ThreadWorking ThreadStatus = "working"
	ThreadError   ThreadStatus = "error"
)

// ThreadSnapshot is the read-side view of one worker slot.
type ThreadSnapshot struct {
	ID             int          `json:"id"`
	Phase          phase.Phase  `json:"phase"`
	Status         ThreadStatus `json:"status"`
	File           string       `json:"file,omitempty"`
	PhaseStartedAt time.Time    `json:"phase_started_at"`
	LastUpdate     time.Time    `json:"last_update"`
	Stale          bool         `json:"stale"`
	NoAudioStreak  int          `json:"no_audio_streak"`
	Retries        int          `json:"retries"`
}

// Snapshot is a deep copy of the aggregator state; callers may retain or
// mutate it freely without racing the writers.
type Snapshot struct {
	State          State            `json:"state"`
	Message        string           `json:"message,omitempty"`
	TotalFiles     int              `json:"total_files"`
	ProcessedFiles int              `json:"processed_files"`
	FailedFiles    int              `json:"failed_files"`
	RenderedFiles  int              `json:"rendered_files"`
	Retries        int              `json:"retries"`
	StartedAt      time.Time        `json:"started_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	Threads        []ThreadSnapshot `json:"threads"`
}

// StallReport is the advisory result of StallState. A stall never changes
// aggregator state; operators decide what to do with it.
type StallReport struct {
	Stalled bool
	Reason  string
}

type threadState struct {
	phase         phase.Phase
	status        ThreadStatus
	file          string
	phaseStarted  time.Time
	lastUpdate    time.Time
	noAudioStreak int
	retries       int
}

// Aggregator collects per-thread progress from concurrent pipeline workers
// into a single coherent view. All methods are safe for concurrent use.
type Aggregator struct {
	mu sync.Mutex

	state        State
	message      string
	total        int
	processed    int
	failed       int
	rendered     int
	retries      int
	startedAt    time.Time
	updatedAt    time.Time
	lastProgress time.Time
	threads      []*threadState

	staleAfter time.Duration
	stallAfter time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// withClock overrides the time source. Test-only.
func withClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithThresholds overrides the stale and stall detection windows.
// Non-positive values keep the defaults.
func WithThresholds(stale, stall time.Duration) Option {
	return func(a *Aggregator) {
		if stale > 0 {
			a.staleAfter = stale
		}
		if stall > 0 {
			a.stallAfter = stall
		}
	}
}

// NewAggregator returns an idle aggregator.
func NewAggregator(logger *slog.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = logging.NewNop()
	}
	a := &Aggregator{
		state:      StateIdle,
		staleAfter: phase.StaleThresholdSeconds * time.Second,
		stallAfter: phase.StallThresholdSeconds * time.Second,
		logger:     logging.NewComponentLogger(logger, "progress"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Begin starts a run of total files across the given number of worker slots.
func (a *Aggregator) Begin(total, threads int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.state = StateRunning
	a.message = ""
	a.total = total
	a.processed = 0
	a.failed = 0
	a.rendered = 0
	a.retries = 0
	a.startedAt = now
	a.updatedAt = now
	a.lastProgress = now
	a.threads = make([]*threadState, 0, threads)
	for i := 0; i < threads; i++ {
		a.threads = append(a.threads, &threadState{
			phase:        phase.Idle,
			status:       ThreadIdle,
			phaseStarted: now,
			lastUpdate:   now,
		})
	}
}

// thread returns the slot for id, growing the table when a worker beyond the
// initial count reports in. Slots never shrink during a run.
func (a *Aggregator) thread(id int) *threadState {
	for id >= len(a.threads) {
		a.threads = append(a.threads, &threadState{
			phase:        phase.Idle,
			status:       ThreadIdle,
			phaseStarted: a.now(),
			lastUpdate:   a.now(),
		})
	}
	return a.threads[id]
}

// ApplyThreadUpdate records a thread's current phase, status, and file. A
// thread that was rendering and has moved on is inferred to have finished
// its render even if no explicit completion event arrived.
func (a *Aggregator) ApplyThreadUpdate(id int, p phase.Phase, status ThreadStatus, file string) {
	if id < 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	t := a.thread(id)

	if t.phase != p && !phase.CanTransition(t.phase, p) {
		a.logger.Debug("phase transition out of order",
			logging.Int(logging.FieldThread, id),
			logging.String("from", string(t.phase)),
			logging.String("to", string(p)))
	}

	renderDone := t.phase == phase.Building && t.status == ThreadWorking && t.file != "" &&
		p != phase.Error &&
		(p == phase.Tagging || p == phase.Metadata || status == ThreadIdle)
	if renderDone {
		a.rendered++
	}

	// Phase timing restarts on any phase or file change, and when the
	// thread goes back to idle.
	if t.phase != p || t.file != file || (status == ThreadIdle && t.status != ThreadIdle) {
		t.phaseStarted = now
	}

	t.phase = p
	t.status = status
	t.file = file
	t.lastUpdate = now
	a.updatedAt = now

	a.checkSiblings(id, now)
}

// checkSiblings logs threads that have gone quiet. This is the only place
// staleness is noticed without a reader asking, and it rides on updates from
// live threads rather than a background timer.
func (a *Aggregator) checkSiblings(id int, now time.Time) {
	for i, t := range a.threads {
		if i == id || t.status != ThreadWorking {
			continue
		}
		if now.Sub(t.lastUpdate) > a.staleAfter {
			a.logger.Warn("worker thread has gone stale",
				logging.Int(logging.FieldThread, i),
				logging.String(logging.FieldFile, t.file),
				logging.Duration("since_update", now.Sub(t.lastUpdate)))
		}
	}
}

// Heartbeat refreshes a thread's liveness timestamp without changing its
// phase or file.
func (a *Aggregator) Heartbeat(id int) {
	if id < 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.thread(id).lastUpdate = now
	a.updatedAt = now
}

// RecordRetry counts one retry attempt for a thread in the given phase.
func (a *Aggregator) RecordRetry(id int, p phase.Phase) {
	if id < 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	t := a.thread(id)
	t.retries++
	t.lastUpdate = now
	a.retries++
	a.updatedAt = now
	a.logger.Debug("phase retry recorded",
		logging.Int(logging.FieldThread, id),
		logging.String(logging.FieldPhase, string(p)))
}

// RecordNoAudio increments a thread's consecutive zero-audio render streak.
// escalate is true once the streak reaches the escalation threshold; the
// caller decides what advisory action to take.
func (a *Aggregator) RecordNoAudio(id int) (streak int, escalate bool) {
	if id < 0 {
		return 0, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	t := a.thread(id)
	t.noAudioStreak++
	t.lastUpdate = now
	a.updatedAt = now
	return t.noAudioStreak, t.noAudioStreak >= phase.NoAudioEscalationStreak
}

// ResetNoAudio clears a thread's zero-audio streak after an audible render.
func (a *Aggregator) ResetNoAudio(id int) {
	if id < 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.thread(id).noAudioStreak = 0
}

// RecordFileDone marks one file finished on a thread. A nil error counts as
// processed; a non-nil error counts as failed.
func (a *Aggregator) RecordFileDone(id int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.lastProgress = now
	a.updatedAt = now
	if err != nil {
		a.failed++
	} else {
		a.processed++
	}
	if id >= 0 {
		a.thread(id).lastUpdate = now
	}
}

// Complete marks the run finished.
func (a *Aggregator) Complete() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateCompleted
	a.updatedAt = a.now()
}

// Fail marks the run failed with an operator-facing message.
func (a *Aggregator) Fail(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateFailed
	a.message = msg
	a.updatedAt = a.now()
}

// Pause marks the run paused. Thread slots and counters are preserved.
func (a *Aggregator) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StatePaused
	a.updatedAt = a.now()
}

// Snapshot returns a deep copy of the current state. Per-thread staleness is
// computed here from the wall clock, never stored.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()

	snap := Snapshot{
		State:          a.state,
		Message:        a.message,
		TotalFiles:     a.total,
		ProcessedFiles: a.processed,
		FailedFiles:    a.failed,
		RenderedFiles:  a.rendered,
		Retries:        a.retries,
		StartedAt:      a.startedAt,
		UpdatedAt:      a.updatedAt,
		Threads:        make([]ThreadSnapshot, len(a.threads)),
	}
	for i, t := range a.threads {
		snap.Threads[i] = ThreadSnapshot{
			ID:             i,
			Phase:          t.phase,
			Status:         t.status,
			File:           t.file,
			PhaseStartedAt: t.phaseStarted,
			LastUpdate:     t.lastUpdate,
			Stale:          t.status == ThreadWorking && now.Sub(t.lastUpdate) > a.staleAfter,
			NoAudioStreak:  t.noAudioStreak,
			Retries:        t.retries,
		}
	}
	return snap
}

// StallState reports whether the run looks stuck: running with no file
// completed for longer than the stall threshold, or every working thread
// stale. Advisory only.
func (a *Aggregator) StallState(now time.Time) StallReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateRunning {
		return StallReport{}
	}
	if a.processed == 0 && a.failed == 0 && now.Sub(a.lastProgress) > a.stallAfter {
		return StallReport{
			Stalled: true,
			Reason:  fmt.Sprintf("no file completed in %s", now.Sub(a.lastProgress).Round(time.Second)),
		}
	}

	working, stale := 0, 0
	for _, t := range a.threads {
		if t.status != ThreadWorking {
			continue
		}
		working++
		if now.Sub(t.lastUpdate) > a.staleAfter {
			stale++
		}
	}
	if working > 0 && stale == working {
		return StallReport{
			Stalled: true,
			Reason:  fmt.Sprintf("all %d working threads are stale", working),
		}
	}
	return StallReport{}
}
