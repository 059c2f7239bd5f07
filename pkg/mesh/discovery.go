package mesh

import (
	"fmt"

	"github.com/nrfnet/nrfnet/pkg/frame"
)

// discoveryTask broadcasts discovery frames, detects isolation and assigns
// the node ID once the response collection window closes.
func (l *Layer) discoveryTask() {
	now := l.clock.NowUs()

	if now-l.discoveryTimerUs > DiscoveryRateUs {
		l.discoveryTimerUs = now

		if l.discoverySent >= MaxDiscoveryMessages && l.firstResponseUs == 0 {
			log.Info("no neighbors found, assigning node id 0")
			l.setNodeID(0)
			return
		}

		l.enqueue(l.discoveryAddr, frame.Discovery{Source: l.nodeID}.Encode())
		l.discoverySent++
		l.m.DiscoverySent.Inc()
	}

	if l.firstResponseUs != 0 && now-l.firstResponseUs > AckTimeoutUs {
		log.Info("done listening for neighbors")
		for id := uint8(0); id < MinDiscoveryID; id++ {
			if !l.neighborSet[id] {
				l.firstResponseUs = 0
				l.setNodeID(id)
				return
			}
		}
		panic(fmt.Sprintf("mesh: no node id available below %d", MinDiscoveryID))
	}
}

// setNodeID finalizes the node ID: announce it, open the unicast reading
// pipes at the new addresses and leave discovery.
func (l *Layer) setNodeID(id uint8) {
	l.radio.StopListening()
	l.clock.SleepUs(1000)

	l.nodeID = id
	log.Infof("assigned node id %d", id)
	l.sendNodeIDAnnouncement()

	l.writingPipe = 0
	for pipe := uint8(1); pipe <= 5; pipe++ {
		l.readingPipes[pipe] = NodeAddress(id, pipe)
		l.radio.OpenReadingPipe(pipe, l.readingPipes[pipe])
	}

	l.clock.SleepUs(1000)
	l.radio.StartListening()
	l.lastListenUs = l.clock.NowUs()

	if l.cfg.Slotted {
		l.commsState = CommsTiming
		l.radioState = RadioListening
		l.slotStartUs = l.clock.NowUs()
		l.lastTimingRxUs = l.clock.NowUs()
		return
	}
	l.commsState = CommsRunning
	l.radioState = RadioContinuous
}

// sendNodeIDAnnouncement broadcasts the freshly assigned ID on the
// discovery pipe.
func (l *Layer) sendNodeIDAnnouncement() {
	l.enqueue(l.discoveryAddr, frame.NodeIDAnnounce{Source: l.nodeID}.Encode())
}

func (l *Layer) handleDiscovery(p frame.Discovery) {
	log.Infof("received discovery from node %d", p.Source)

	if l.commsState == CommsDiscovery {
		if p.Source == l.nodeID {
			return
		}
		if p.Source < l.nodeID {
			// The lower provisional ID wins the medium: restart our own
			// discovery schedule and let the peer finish first.
			log.Infof("yielding discovery to lower node %d", p.Source)
			l.discoveryTimerUs = 0
			l.discoverySent = 0
		}
		return
	}

	resp := frame.DiscoverResponse{Source: l.nodeID, Neighbors: l.neighbors}
	if len(l.neighbors) > frame.MaxNeighbors {
		log.Warnf("truncating %d neighbors to %d in discover response", len(l.neighbors), frame.MaxNeighbors)
	}
	l.enqueue(NodeAddress(p.Source, 1), resp.Encode())
}

func (l *Layer) handleDiscoverResponse(p frame.DiscoverResponse) {
	log.Infof("received %d neighbors from node %d", len(p.Neighbors), p.Source)

	if l.firstResponseUs == 0 {
		l.firstResponseUs = l.clock.NowUs()
	}

	l.addNeighbor(p.Source)
	for _, id := range p.Neighbors {
		l.addNeighbor(id)
	}
}

func (l *Layer) handleNodeIDAnnounce(p frame.NodeIDAnnounce) {
	if p.Source == l.nodeID {
		return
	}
	l.addNeighbor(p.Source)
}
