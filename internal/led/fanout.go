package led

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/coreman2200/tapelight/internal/frame"
)

// Fanout relays each committed frame to every attached sink from its own
// goroutine. Per-sink queues are bounded with a drop-oldest policy: a slow
// sink loses frames, never the render loop.
type Fanout struct {
	mu    sync.Mutex
	lanes []*lane
	log   zerolog.Logger
}

type lane struct {
	sink    Sink
	ch      chan frame.Snapshot
	dropped uint64
	done    chan struct{}
}

func NewFanout(log zerolog.Logger) *Fanout {
	return &Fanout{log: log}
}

// Attach adds a sink with the given queue depth (minimum 1).
func (f *Fanout) Attach(s Sink, depth int) {
	if depth < 1 {
		depth = 1
	}
	l := &lane{sink: s, ch: make(chan frame.Snapshot, depth), done: make(chan struct{})}
	f.mu.Lock()
	f.lanes = append(f.lanes, l)
	f.mu.Unlock()

	go func() {
		defer close(l.done)
		for snap := range l.ch {
			if err := s.Write(snap); err != nil {
				f.log.Warn().Err(err).Msg("frame sink write failed")
			}
		}
	}()
}

// Write enqueues the snapshot on every lane without blocking, discarding
// the oldest queued frame on overflow.
func (f *Fanout) Write(snap frame.Snapshot) {
	f.mu.Lock()
	lanes := f.lanes
	f.mu.Unlock()
	for _, l := range lanes {
		select {
		case l.ch <- snap:
		default:
			select {
			case <-l.ch:
				l.dropped++
			default:
			}
			select {
			case l.ch <- snap:
			default:
				l.dropped++
			}
		}
	}
}

// Close drains and closes every sink.
func (f *Fanout) Close() {
	f.mu.Lock()
	lanes := f.lanes
	f.lanes = nil
	f.mu.Unlock()
	for _, l := range lanes {
		close(l.ch)
		<-l.done
		if err := l.sink.Close(); err != nil {
			f.log.Warn().Err(err).Msg("frame sink close failed")
		}
	}
}
