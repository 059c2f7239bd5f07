package tunnel

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/nrfnet/nrfnet/internal/nrftime"
	"github.com/nrfnet/nrfnet/pkg/layer"
	"github.com/nrfnet/nrfnet/pkg/metrics"
)

var log = logging.MustGetLogger("tunnel")

const (
	// maxFrameSize bounds a single read from the TUN device.
	maxFrameSize = 3200

	// maxBufferedFrames bounds the reader-to-pipeline queue. The reader
	// backs off rather than dropping when the pipeline falls behind.
	maxBufferedFrames = 1024

	// readerBackoffUs is how long the reader sleeps when the queue is
	// full.
	readerBackoffUs = 1000
)

// Layer is the topmost pipeline stage. A background goroutine reads IP
// frames from the device into a bounded queue; the supervisory loop drains
// that queue downstream and writes upstream deliveries back to the device.
type Layer struct {
	layer.Base

	dev   io.ReadWriteCloser
	clock nrftime.Clock
	m     *metrics.TunnelMetrics

	logsEnabled bool

	downMu     sync.Mutex
	downstream [][]byte

	upMu     sync.Mutex
	upstream [][]byte

	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates the tunnel layer around an open device.
func New(dev io.ReadWriteCloser, clock nrftime.Clock, m *metrics.TunnelMetrics, logsEnabled bool) *Layer {
	if m == nil {
		m = metrics.NewTunnelMetrics()
	}
	return &Layer{dev: dev, clock: clock, m: m, logsEnabled: logsEnabled}
}

// Start launches the background reader.
func (l *Layer) Start() {
	l.running.Store(true)
	l.wg.Add(1)
	go l.readLoop()
}

// Run moves at most one frame in each direction: one queued device frame
// downstream, one queued upstream delivery to the device.
func (l *Layer) Run() {
	var frame []byte
	l.downMu.Lock()
	if len(l.downstream) > 0 {
		frame = l.downstream[0]
		l.downstream = l.downstream[1:]
	}
	l.downMu.Unlock()
	if frame != nil {
		if l.logsEnabled {
			log.Infof("sending %d bytes downstream", len(frame))
		}
		l.SendDownstream(frame)
	}

	l.writeToDevice()
}

// ReceiveFromDownstream queues a reassembled IP frame for the device.
func (l *Layer) ReceiveFromDownstream(data []byte) {
	if l.logsEnabled {
		log.Infof("received %d bytes from downstream", len(data))
	}
	l.upMu.Lock()
	l.upstream = append(l.upstream, data)
	l.upMu.Unlock()
}

// ReceiveFromUpstream implements layer.Layer. The tunnel is the top of the
// pipeline, so nothing arrives from above.
func (l *Layer) ReceiveFromUpstream([]byte) {}

// Reset drops both queues.
func (l *Layer) Reset() {
	l.downMu.Lock()
	l.downstream = nil
	l.downMu.Unlock()

	l.upMu.Lock()
	l.upstream = nil
	l.upMu.Unlock()
}

// Close stops the reader and closes the device. Closing the device is what
// unblocks a reader parked in Read.
func (l *Layer) Close() error {
	l.running.Store(false)
	err := l.dev.Close()
	l.wg.Wait()
	return err
}

func (l *Layer) writeToDevice() {
	var frame []byte
	l.upMu.Lock()
	if len(l.upstream) > 0 {
		frame = l.upstream[0]
		l.upstream = l.upstream[1:]
	}
	l.upMu.Unlock()
	if frame == nil {
		return
	}

	if _, err := l.dev.Write(frame); err != nil {
		log.Errorf("failed to write %d bytes to tunnel: %v", len(frame), err)
		return
	}
	l.m.FramesWritten.Inc()
}

func (l *Layer) readLoop() {
	defer l.wg.Done()
	buf := make([]byte, maxFrameSize)

	for l.running.Load() {
		n, err := l.dev.Read(buf)
		if err != nil {
			if !l.running.Load() {
				return
			}
			log.Errorf("failed to read from tunnel: %v", err)
			l.m.ReadErrors.Inc()
			continue
		}
		if n == 0 {
			continue
		}

		frame := make([]byte, n)
		copy(frame, buf[:n])

		l.downMu.Lock()
		l.downstream = append(l.downstream, frame)
		depth := len(l.downstream)
		l.downMu.Unlock()
		l.m.FramesRead.Inc()
		if l.logsEnabled {
			log.Infof("read %d bytes from the tunnel", n)
		}

		for depth >= maxBufferedFrames && l.running.Load() {
			l.clock.SleepUs(readerBackoffUs)
			l.downMu.Lock()
			depth = len(l.downstream)
			l.downMu.Unlock()
		}
	}
}
