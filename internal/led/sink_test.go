package led

import (
	"bytes"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/coreman2200/tapelight/internal/frame"
	"github.com/coreman2200/tapelight/internal/render"
)

func snapshotOf(deviceID string, gen uint64, colors ...render.Color) frame.Snapshot {
	return frame.Snapshot{
		Gen:     gen,
		Colors:  colors,
		Devices: []frame.DeviceSpan{{ID: deviceID, Off: 0, N: len(colors)}},
	}
}

func TestCaptureSink(t *testing.T) {
	c := &CaptureSink{}
	c.Write(snapshotOf("dev1", 1, render.Color{R: 1}))
	c.Write(snapshotOf("dev1", 2, render.Color{G: 2}))
	last, n := c.Last()
	assert.Equal(t, 2, n)
	assert.Equal(t, uint64(2), last.Gen)
}

// blockingSink stalls until released, counting the frames it got through.
type blockingSink struct {
	gate chan struct{}
	seen atomic.Int64
	last atomic.Uint64
}

func (b *blockingSink) Write(s frame.Snapshot) error {
	<-b.gate
	b.seen.Add(1)
	b.last.Store(s.Gen)
	return nil
}

func (b *blockingSink) Close() error { return nil }

func TestFanoutDropsOldestForSlowSink(t *testing.T) {
	f := NewFanout(zerolog.Nop())
	slow := &blockingSink{gate: make(chan struct{})}
	f.Attach(slow, 1)

	// sink is stalled: its writer goroutine holds frame 1, the queue holds
	// one more, and the rest displace each other
	for gen := uint64(1); gen <= 10; gen++ {
		f.Write(snapshotOf("dev1", gen, render.Color{}))
	}
	close(slow.gate)
	f.Close()

	assert.LessOrEqual(t, slow.seen.Load(), int64(3), "slow sink should have lost frames")
	assert.Equal(t, uint64(10), slow.last.Load(), "the newest frame must survive the drops")
}

func TestFanoutDeliversToAllSinks(t *testing.T) {
	f := NewFanout(zerolog.Nop())
	a := &CaptureSink{}
	b := &CaptureSink{}
	f.Attach(a, 4)
	f.Attach(b, 4)

	f.Write(snapshotOf("dev1", 7, render.Color{B: 3}))
	f.Close() // drains queues before closing sinks

	la, na := a.Last()
	lb, nb := b.Last()
	assert.Equal(t, 1, na)
	assert.Equal(t, 1, nb)
	assert.Equal(t, uint64(7), la.Gen)
	assert.Equal(t, uint64(7), lb.Gen)
}

func TestFanoutCloseIsIdempotentWithPendingWrites(t *testing.T) {
	f := NewFanout(zerolog.Nop())
	f.Attach(NullSink{}, 2)
	for i := 0; i < 5; i++ {
		f.Write(snapshotOf("dev1", uint64(i), render.Color{}))
	}
	done := make(chan struct{})
	go func() {
		f.Close()
		f.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("close deadlocked")
	}
}

func TestSPISinkWritesStrip(t *testing.T) {
	buf := bytes.Buffer{}
	s, err := NewSPISinkWith("dev1", spitest.NewRecordRaw(&buf), 4)
	assert.NoError(t, err)

	snap := snapshotOf("dev1", 1,
		render.Color{R: 255}, render.Color{G: 255}, render.Color{B: 255}, render.Color{})
	assert.NoError(t, s.Write(snap))
	assert.NotZero(t, buf.Len(), "pixels should reach the port as NRZ bits")

	// a snapshot missing the device is an error, not a crash
	err = s.Write(frame.Snapshot{Gen: 2})
	assert.Error(t, err)
}
