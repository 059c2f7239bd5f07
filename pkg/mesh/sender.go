package mesh

import "github.com/nrfnet/nrfnet/pkg/radio"

// continuousSenderReceiver runs the non-slotted schedule: guarantee a
// minimum listen period, then burst queued frames.
func (l *Layer) continuousSenderReceiver() {
	if len(l.queue) == 0 {
		return
	}
	if l.clock.NowUs()-l.lastListenUs < ContinuousListenUs {
		return
	}
	l.sender()
}

// sender drains up to three queued frames sharing one destination into the
// TX FIFO and waits for them to go out. The writing pipe is only
// reconfigured when the destination changes: reprogramming it costs a bus
// round trip per address byte.
func (l *Layer) sender() {
	if len(l.queue) == 0 {
		return
	}

	l.radio.StopListening()

	burst := l.queue[:1]
	for len(burst) < radio.TxFIFODepth && len(l.queue) > len(burst) &&
		l.queue[len(burst)].addr == burst[0].addr {
		burst = l.queue[:len(burst)+1]
	}
	l.queue = l.queue[len(burst):]

	if burst[0].addr != l.writingPipe {
		l.writingPipe = burst[0].addr
		l.radio.OpenWritingPipe(l.writingPipe)
		log.Infof("opened writing pipe %#x", l.writingPipe)
	}

	l.radio.FlushTX()
	for _, pf := range burst {
		if err := l.radio.WriteFast(pf.data); err != nil {
			log.Errorf("failed to enqueue frame: %v", err)
			continue
		}
		l.m.FramesSent.Inc()
	}

	if !l.radio.TxStandby(l.cfg.TxStandbyTimeout) {
		log.Error("failed to drain TX FIFO (timeout)")
	}

	l.radio.StartListening()
	l.lastListenUs = l.clock.NowUs()
}
