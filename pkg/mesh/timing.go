package mesh

import "github.com/nrfnet/nrfnet/pkg/frame"

// slotTask alternates the radio between listening and sending every
// SendReceivePeriodUs and runs the sender during a sending slot.
func (l *Layer) slotTask() {
	now := l.clock.NowUs()

	if now-l.slotStartUs >= SendReceivePeriodUs {
		l.slotStartUs = now
		if l.radioState == RadioListening {
			l.radioState = RadioSending
		} else {
			l.radioState = RadioListening
			l.radio.StartListening()
			l.lastListenUs = now
		}
	}

	if l.radioState == RadioSending {
		l.sender()
	}
}

// timingTask sends slot synchronization probes and falls back to discovery
// when the medium has been silent too long.
func (l *Layer) timingTask() {
	now := l.clock.NowUs()

	if now-l.lastTimingRxUs > TimingFallbackUs {
		// Back to continuous listening: staying slotted without a peer to
		// alternate against would starve the discovery sender.
		log.Warn("no timing traffic, falling back to discovery")
		l.discoveryTimerUs = 0
		l.discoverySent = 0
		l.firstResponseUs = 0
		l.commsState = CommsDiscovery
		l.radioState = RadioContinuous
		l.radio.StartListening()
		l.lastListenUs = now
		return
	}

	if now-l.timingTimerUs > SendReceivePeriodUs && len(l.neighbors) > 0 {
		l.timingTimerUs = now
		l.enqueue(NodeAddress(l.neighbors[0], 1), frame.TimeSynch{
			Source:     l.nodeID,
			TimeLeftUs: l.slotRemainingUs(now),
		}.Encode())
	}
}

// handleTimeSynch answers probes while listening and re-anchors the slot
// clock on a probe answer so the local sending slot overlaps the peer's
// listening slot.
func (l *Layer) handleTimeSynch(p frame.TimeSynch) {
	now := l.clock.NowUs()
	l.lastTimingRxUs = now

	if !p.Ack {
		// Answer while listening, including continuous operation: a
		// continuous node is listening-dominant and a probing peer needs
		// the reply to align against.
		if l.radioState == RadioSending {
			return
		}
		l.enqueue(NodeAddress(p.Source, 1), frame.TimeSynch{
			Ack:        true,
			Source:     l.nodeID,
			TimeLeftUs: l.slotRemainingUs(now),
		}.Encode())
		return
	}

	// The peer reported how long it keeps listening; start our sending
	// slot so both run out together.
	left := p.TimeLeftUs
	if left > SendReceivePeriodUs {
		left = SendReceivePeriodUs
	}
	l.commsState = CommsRunning
	l.radioState = RadioSending
	l.slotStartUs = now - (SendReceivePeriodUs - left)
	log.Infof("slot clock aligned with node %d, %dus left in peer slot", p.Source, left)
}

func (l *Layer) slotRemainingUs(now uint64) uint64 {
	elapsed := now - l.slotStartUs
	if elapsed >= SendReceivePeriodUs {
		return 0
	}
	return SendReceivePeriodUs - elapsed
}
