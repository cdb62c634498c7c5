// Package compute fills color buffer regions for the active segment set
// each tick, choosing between a single-threaded path, a fixed-size worker
// pool, and an optional accelerated backend by LED-count heuristics.
package compute

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coreman2200/tapelight/internal/render"
)

const (
	// DefaultSingleThreshold is the total active LED count below which a
	// tick computes on the calling goroutine.
	DefaultSingleThreshold = 2048
	// DefaultAccelThreshold is the total active LED count above which
	// eligible jobs offload to a registered backend.
	DefaultAccelThreshold = 100_000
)

// Options configures a Dispatcher.
type Options struct {
	Workers         int
	SingleThreshold int
	AccelThreshold  int
	Logger          zerolog.Logger
}

// Result reports the outcome of one job in a Fill call.
type Result struct {
	Job int // index into the Fill slice
	Err error
}

type task struct {
	job  Job
	wg   *sync.WaitGroup
	errs chan<- Result
	idx  int
}

// Dispatcher owns the worker pool and the optional accelerated backend.
type Dispatcher struct {
	workers  int
	single   int
	accelMin int
	log      zerolog.Logger

	backend     Backend
	accelFailed bool // logged once, then silent fallback

	tasks chan task
	stop  chan struct{}
	wg    sync.WaitGroup
}

func NewDispatcher(opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.SingleThreshold <= 0 {
		opts.SingleThreshold = DefaultSingleThreshold
	}
	if opts.AccelThreshold <= 0 {
		opts.AccelThreshold = DefaultAccelThreshold
	}
	d := &Dispatcher{
		workers:  opts.Workers,
		single:   opts.SingleThreshold,
		accelMin: opts.AccelThreshold,
		log:      opts.Logger,
		tasks:    make(chan task, opts.Workers*2),
		stop:     make(chan struct{}),
	}
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// RegisterBackend probes and installs an accelerated backend. On Init
// failure the backend is dropped and the dispatcher stays on the pool.
func (d *Dispatcher) RegisterBackend(b Backend) error {
	if b == nil {
		return nil
	}
	if err := b.Init(); err != nil {
		d.log.Warn().Err(err).Str("backend", b.Name()).
			Msg("accelerated backend unavailable, staying on worker pool")
		return fmt.Errorf("compute: backend %s init: %w", b.Name(), err)
	}
	d.backend = b
	d.log.Info().Str("backend", b.Name()).Msg("accelerated backend registered")
	return nil
}

// Backend returns the registered backend, if any.
func (d *Dispatcher) Backend() Backend { return d.backend }

func (d *Dispatcher) Close() {
	close(d.stop)
	d.wg.Wait()
	if d.backend != nil {
		d.backend.Close()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		case t := <-d.tasks:
			t.errs <- Result{Job: t.idx, Err: runJob(t.job)}
			t.wg.Done()
		}
	}
}

// runJob executes one fill with panic containment: a crashing effect must
// not take down the loop or touch any other job's region.
func runJob(j Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compute: job panicked: %v", r)
		}
	}()
	j.Render(j.Dst, j.Off, j.Total, j.Phase, j.Params)
	return nil
}

// Fill computes every job for this tick and returns one Result per failed
// job (successes are omitted). ctx should carry the frame deadline minus a
// margin; an accelerated fill that overruns it is abandoned for this tick
// and the job's region is left for the caller to restore.
func (d *Dispatcher) Fill(ctx context.Context, jobs []Job) []Result {
	if len(jobs) == 0 {
		return nil
	}
	total := 0
	for i := range jobs {
		total += len(jobs[i].Dst)
	}

	var failures []Result
	remaining := make([]int, 0, len(jobs))

	if d.backend != nil && total >= d.accelMin {
		for i := range jobs {
			if !d.backend.CanRender(jobs[i].Kind) {
				remaining = append(remaining, i)
				continue
			}
			if err := d.fillAccelerated(ctx, jobs[i]); err != nil {
				switch {
				case ctx.Err() != nil:
					// Abandoned at the deadline: prior frame stays, retry
					// next tick.
					failures = append(failures, Result{Job: i, Err: err})
				default:
					remaining = append(remaining, i)
				}
			}
		}
	} else {
		for i := range jobs {
			remaining = append(remaining, i)
		}
	}

	if len(remaining) == 0 {
		return failures
	}
	if total < d.single || d.workers <= 1 {
		for _, i := range remaining {
			if err := runJob(jobs[i]); err != nil {
				failures = append(failures, Result{Job: i, Err: err})
			}
		}
		return failures
	}
	return append(failures, d.fillPooled(jobs, remaining, total)...)
}

// fillAccelerated renders into scratch and copies on success, so a failed
// or abandoned offload never leaves a half-written region behind.
func (d *Dispatcher) fillAccelerated(ctx context.Context, j Job) error {
	scratch := make([]render.Color, len(j.Dst))
	shadow := j
	shadow.Dst = scratch
	if err := d.backend.Fill(ctx, shadow); err != nil {
		if err != ErrFallback && !d.accelFailed {
			d.accelFailed = true
			d.log.Warn().Err(err).Str("backend", d.backend.Name()).
				Msg("accelerated fill failed, falling back to worker pool")
		}
		return err
	}
	copy(j.Dst, scratch)
	return nil
}

// fillPooled splits the remaining jobs into chunks balanced by LED count
// (not job count, so a few huge segments don't skew one worker) and runs
// them on the pool.
func (d *Dispatcher) fillPooled(jobs []Job, remaining []int, total int) []Result {
	chunkLEDs := total / (d.workers * 2)
	if chunkLEDs < 1 {
		chunkLEDs = 1
	}

	var chunks []task
	for _, i := range remaining {
		j := jobs[i]
		for off := 0; off < len(j.Dst); off += chunkLEDs {
			hi := off + chunkLEDs
			if hi > len(j.Dst) {
				hi = len(j.Dst)
			}
			part := j
			part.Dst = j.Dst[off:hi]
			part.Off = j.Off + off
			chunks = append(chunks, task{job: part, idx: i})
		}
	}

	var wg sync.WaitGroup
	errs := make(chan Result, len(chunks))
	for i := range chunks {
		chunks[i].wg = &wg
		chunks[i].errs = errs
		wg.Add(1)
		d.tasks <- chunks[i]
	}
	wg.Wait()
	close(errs)

	seen := map[int]bool{}
	var failures []Result
	for r := range errs {
		if r.Err != nil && !seen[r.Job] {
			seen[r.Job] = true
			failures = append(failures, r)
		}
	}
	return failures
}
