package tunnel

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrfnet/nrfnet/internal/nrftime"
	"github.com/nrfnet/nrfnet/pkg/layer"
)

type sinkLayer struct {
	layer.Base
	fromUp [][]byte
}

func (l *sinkLayer) ReceiveFromUpstream(data []byte)   { l.fromUp = append(l.fromUp, data) }
func (l *sinkLayer) ReceiveFromDownstream(data []byte) {}
func (l *sinkLayer) Reset()                            {}

type pipeDevice struct {
	readEnd *io.PipeReader
	writeIn *io.PipeWriter
	written chan []byte
}

func newPipeDevice() *pipeDevice {
	r, w := io.Pipe()
	return &pipeDevice{readEnd: r, writeIn: w, written: make(chan []byte, 16)}
}

func (d *pipeDevice) Read(p []byte) (int, error) { return d.readEnd.Read(p) }

func (d *pipeDevice) Write(p []byte) (int, error) {
	frame := make([]byte, len(p))
	copy(frame, p)
	d.written <- frame
	return len(p), nil
}

func (d *pipeDevice) Close() error {
	d.writeIn.Close()
	return d.readEnd.Close()
}

func TestReaderPushesFramesDownstream(t *testing.T) {
	dev := newPipeDevice()
	l := New(dev, nrftime.Real(), nil, false)
	sink := &sinkLayer{}
	layer.Chain(l, sink)

	l.Start()
	defer l.Close()

	go dev.writeIn.Write([]byte{0x45, 0x00, 0x01})

	require.Eventually(t, func() bool {
		l.downMu.Lock()
		defer l.downMu.Unlock()
		return len(l.downstream) == 1
	}, time.Second, time.Millisecond)

	l.Run()
	require.Len(t, sink.fromUp, 1)
	assert.Equal(t, []byte{0x45, 0x00, 0x01}, sink.fromUp[0])
}

func TestUpstreamDeliveryWrittenToDevice(t *testing.T) {
	dev := newPipeDevice()
	l := New(dev, nrftime.Real(), nil, false)
	layer.Chain(l, &sinkLayer{})

	l.ReceiveFromDownstream([]byte("ip frame"))
	l.Run()

	select {
	case frame := <-dev.written:
		assert.Equal(t, []byte("ip frame"), frame)
	default:
		t.Fatal("no frame written to device")
	}
}

func TestRunMovesAtMostOneFrameEachDirection(t *testing.T) {
	dev := newPipeDevice()
	l := New(dev, nrftime.Real(), nil, false)
	sink := &sinkLayer{}
	layer.Chain(l, sink)

	l.downMu.Lock()
	l.downstream = [][]byte{{1}, {2}}
	l.downMu.Unlock()
	l.ReceiveFromDownstream([]byte{3})
	l.ReceiveFromDownstream([]byte{4})

	l.Run()

	assert.Len(t, sink.fromUp, 1)
	assert.Len(t, dev.written, 1)
}

func TestCloseStopsReader(t *testing.T) {
	dev := newPipeDevice()
	l := New(dev, nrftime.Real(), nil, false)
	layer.Chain(l, &sinkLayer{})

	l.Start()

	done := make(chan struct{})
	go func() {
		l.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not join the reader")
	}
}

func TestResetDropsQueues(t *testing.T) {
	dev := newPipeDevice()
	l := New(dev, nrftime.Real(), nil, false)

	l.ReceiveFromDownstream([]byte{1})
	l.downMu.Lock()
	l.downstream = [][]byte{{2}}
	l.downMu.Unlock()

	l.Reset()

	l.downMu.Lock()
	assert.Empty(t, l.downstream)
	l.downMu.Unlock()
	l.upMu.Lock()
	assert.Empty(t, l.upstream)
	l.upMu.Unlock()
}
