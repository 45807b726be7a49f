package renderpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chrisgleissner/sidflow-sub004/internal/engine"
	"github.com/chrisgleissner/sidflow-sub004/internal/logging"
	"github.com/chrisgleissner/sidflow-sub004/internal/services"
)

// ErrPoolDestroyed is returned for jobs enqueued or in flight when the pool
// is torn down.
var ErrPoolDestroyed = errors.New("render pool destroyed")

// EngineFactory constructs a render engine for one worker slot. It is called
// lazily on the slot's first job, and again after a crash replacement.
type EngineFactory func(slot int) (engine.Engine, error)

// job is owned by the pool from enqueue until resolution. done carries
// exactly one result.
type job struct {
	id       uint64
	req      engine.Request
	progress func(engine.Update)
	done     chan jobResult
}

type jobResult struct {
	resp *engine.Response
	err  error
}

type eventKind int

const (
	eventProgress eventKind = iota
	eventResult
	eventCrashed
	eventExited
)

// workerEvent is the only message workers send to the controller. The gen
// field lets the controller ignore stragglers from a replaced worker.
type workerEvent struct {
	slot   int
	gen    int
	kind   eventKind
	update engine.Update
	resp   *engine.Response
	err    error
}

// workerSlot is controller-owned state for one worker. The jobs channel has
// capacity one and at most one outstanding send, so dispatch never blocks.
type workerSlot struct {
	gen     int
	jobs    chan *job
	busy    *job
	exiting bool
}

// Pool is a fixed-size render worker pool. One controller goroutine owns the
// queue and all slot state; workers talk to it purely through events, so no
// state is shared across goroutines.
//
// Jobs are dispatched FIFO to idle slots in slot order, but completion order
// across workers is not guaranteed. There is no per-job cancellation: the
// only aborts are Destroy and a worker crash, which fails just that job and
// heals the slot.
type Pool struct {
	size    int
	factory EngineFactory
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	enqueue    chan *job
	events     chan workerEvent
	destroyReq chan struct{}
	destroyed  chan struct{}
	stopped    chan struct{}

	destroyOnce sync.Once
}

// New constructs a pool with the given number of worker slots.
func New(size int, factory EngineFactory, logger *slog.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, services.Wrap(services.ErrValidation, "renderpool", "new",
			fmt.Sprintf("invalid pool size %d", size), nil)
	}
	if factory == nil {
		return nil, services.Wrap(services.ErrValidation, "renderpool", "new",
			"engine factory required", nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		size:       size,
		factory:    factory,
		logger:     logging.NewComponentLogger(logger, "renderpool"),
		ctx:        ctx,
		cancel:     cancel,
		enqueue:    make(chan *job),
		events:     make(chan workerEvent, size*4),
		destroyReq: make(chan struct{}, 1),
		destroyed:  make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go p.run()
	return p, nil
}

// Render enqueues one job and blocks until a worker resolves it or the pool
// is destroyed. progress may be nil; it is invoked from the controller, zero
// or more times, before the call returns.
func (p *Pool) Render(req engine.Request, progress func(engine.Update)) (*engine.Response, error) {
	j := &job{req: req, progress: progress, done: make(chan jobResult, 1)}
	select {
	case p.enqueue <- j:
	case <-p.destroyed:
		return nil, ErrPoolDestroyed
	}
	res := <-j.done
	return res.resp, res.err
}

// Destroy rejects all queued jobs, fails any in-flight jobs, and stops every
// worker. It is idempotent; after the first call Render always rejects.
// Destroy returns once the controller has rejected the queue; workers finish
// winding down in the background.
func (p *Pool) Destroy() {
	p.destroyOnce.Do(func() {
		p.destroyReq <- struct{}{}
	})
	<-p.destroyed
}

// run is the controller: the single goroutine that owns the queue, the slot
// table, and job resolution.
func (p *Pool) run() {
	slots := make([]*workerSlot, p.size)
	for i := range slots {
		slots[i] = &workerSlot{jobs: make(chan *job, 1)}
		go p.worker(i, 0, slots[i].jobs)
	}
	live := p.size

	var queue []*job
	var nextID uint64
	down := false

	dispatch := func() {
		for _, slot := range slots {
			if len(queue) == 0 {
				return
			}
			if slot.busy != nil || slot.exiting {
				continue
			}
			slot.busy = queue[0]
			queue = queue[1:]
			slot.jobs <- slot.busy
		}
	}

	resolve := func(j *job, resp *engine.Response, err error) {
		j.done <- jobResult{resp: resp, err: err}
	}

	for {
		select {
		case j := <-p.enqueue:
			if down {
				resolve(j, nil, ErrPoolDestroyed)
				continue
			}
			nextID++
			j.id = nextID
			queue = append(queue, j)
			dispatch()

		case ev := <-p.events:
			slot := slots[ev.slot]
			stale := ev.gen != slot.gen
			switch ev.kind {
			case eventProgress:
				if !stale && slot.busy != nil && slot.busy.progress != nil {
					slot.busy.progress(ev.update)
				}
			case eventResult:
				if stale || slot.busy == nil {
					continue
				}
				resolve(slot.busy, ev.resp, ev.err)
				slot.busy = nil
				dispatch()
			case eventCrashed:
				live--
				if stale {
					continue
				}
				if slot.busy != nil {
					resolve(slot.busy, nil, services.Wrap(services.ErrTransient,
						"renderpool", "render",
						fmt.Sprintf("worker %d crashed on job %d (%s)",
							ev.slot, slot.busy.id, slot.busy.req.SourcePath), ev.err))
					slot.busy = nil
				}
				p.logger.Warn("render worker crashed, replacing slot",
					logging.Int(logging.FieldThread, ev.slot),
					logging.Error(ev.err))
				if !down {
					slot.gen++
					go p.worker(ev.slot, slot.gen, slot.jobs)
					live++
					dispatch()
				}
			case eventExited:
				live--
			}

		case <-p.destroyReq:
			down = true
			close(p.destroyed)
			for _, j := range queue {
				resolve(j, nil, ErrPoolDestroyed)
			}
			queue = nil
			for _, slot := range slots {
				slot.exiting = true
				if slot.busy != nil {
					resolve(slot.busy, nil, ErrPoolDestroyed)
					slot.busy = nil
				}
				close(slot.jobs)
			}
			// cancel last: busy jobs are already resolved as destroyed, so a
			// worker's cancellation error arrives at an empty slot and is
			// dropped instead of racing the destroyed verdict.
			p.cancel()
		}

		if down && live == 0 {
			close(p.stopped)
			return
		}
	}
}

// worker runs one slot: it constructs its engine on the first job, renders
// jobs sequentially, and reports every outcome as an event. A panic anywhere
// in the loop is reported as a crash so the controller can heal the slot.
func (p *Pool) worker(slot, gen int, jobs <-chan *job) {
	defer func() {
		if r := recover(); r != nil {
			p.events <- workerEvent{slot: slot, gen: gen, kind: eventCrashed,
				err: fmt.Errorf("worker panic: %v", r)}
			return
		}
		p.events <- workerEvent{slot: slot, gen: gen, kind: eventExited}
	}()

	var eng engine.Engine
	for j := range jobs {
		if eng == nil {
			built, err := p.factory(slot)
			if err != nil {
				p.events <- workerEvent{slot: slot, gen: gen, kind: eventResult,
					err: services.Wrap(services.ErrExternalTool, "renderpool", "render",
						fmt.Sprintf("worker %d engine construction", slot), err)}
				continue
			}
			eng = built
		}
		resp, err := eng.Render(p.ctx, j.req, func(u engine.Update) {
			p.events <- workerEvent{slot: slot, gen: gen, kind: eventProgress, update: u}
		})
		p.events <- workerEvent{slot: slot, gen: gen, kind: eventResult, resp: resp, err: err}
	}
}
