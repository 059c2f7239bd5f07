// Package mesh owns the radio: it moves 32-byte frames between the shared
// half-duplex medium and the layer above, discovers peers, negotiates node
// IDs and schedules transmit/receive slots.
package mesh

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/nrfnet/nrfnet/internal/nrftime"
	"github.com/nrfnet/nrfnet/pkg/frame"
	"github.com/nrfnet/nrfnet/pkg/layer"
	"github.com/nrfnet/nrfnet/pkg/metrics"
	"github.com/nrfnet/nrfnet/pkg/radio"
)

var log = logging.MustGetLogger("mesh")

// Timing constants, all in microseconds unless noted.
const (
	// DiscoveryRateUs is the interval between discovery broadcasts.
	DiscoveryRateUs = 1000000

	// AckTimeoutUs is how long responses are collected after the first
	// DiscoverResponse before the node assigns itself an ID.
	AckTimeoutUs = 1000000

	// MaxDiscoveryMessages is how many unanswered discovery broadcasts
	// are sent before the node assumes it is alone.
	MaxDiscoveryMessages = 3

	// SendReceivePeriodUs is the slot length in slotted (TDMA) operation.
	SendReceivePeriodUs = 5000

	// ContinuousListenUs is the minimum listen period before any
	// transmission in continuous operation.
	ContinuousListenUs = 10000

	// TimingFallbackUs is how long slotted operation tolerates silence
	// before falling back to discovery.
	TimingFallbackUs = 5000000

	// DefaultTxStandbyTimeout bounds the wait for the TX FIFO to drain.
	DefaultTxStandbyTimeout = 100 * time.Millisecond
)

// CommsState is the protocol phase.
type CommsState int

// Protocol phases.
const (
	CommsNone CommsState = iota
	CommsTiming
	CommsDiscovery
	CommsRunning
)

func (s CommsState) String() string {
	switch s {
	case CommsTiming:
		return "timing"
	case CommsDiscovery:
		return "discovery"
	case CommsRunning:
		return "running"
	default:
		return "none"
	}
}

// RadioState is the medium scheduling mode.
type RadioState int

// Medium scheduling modes.
const (
	RadioNone RadioState = iota
	RadioListening
	RadioSending
	RadioContinuous
)

func (s RadioState) String() string {
	switch s {
	case RadioListening:
		return "listening"
	case RadioSending:
		return "sending"
	case RadioContinuous:
		return "continuous"
	default:
		return "none"
	}
}

// Config tunes the mesh layer.
type Config struct {
	// Channel is the RF channel (0..127).
	Channel uint8

	// Power and LNA select the PA configuration.
	Power radio.Power
	LNA   bool

	// DataRate selects the on-air rate.
	DataRate radio.DataRate

	// AddressWidth is the pipe address width in bytes. Defaults to 3.
	AddressWidth uint8

	// DiscoveryAddress overrides the shared bootstrap address. Zero
	// selects DiscoveryAddress().
	DiscoveryAddress uint32

	// InitialID overrides the random provisional node ID when at or above
	// MinDiscoveryID. Zero picks randomly.
	InitialID uint8

	// Slotted enables TDMA slot scheduling after discovery completes.
	// When false the radio stays in continuous best-effort operation.
	Slotted bool

	// TxStandbyTimeout bounds the wait for the TX FIFO to drain. Zero
	// selects DefaultTxStandbyTimeout.
	TxStandbyTimeout time.Duration
}

// packetFrame is a queued outbound frame with its destination pipe.
type packetFrame struct {
	addr uint32
	data []byte
}

// Layer drives the radio state machine. It is owned by the supervisory
// loop and needs no internal locking.
type Layer struct {
	layer.Base

	radio radio.Radio
	clock nrftime.Clock
	cfg   Config
	m     *metrics.RadioMetrics

	nodeID      uint8
	neighbors   []uint8
	neighborSet map[uint8]bool

	commsState CommsState
	radioState RadioState

	discoveryAddr uint32

	readingPipes [6]uint32
	writingPipe  uint32
	queue        []packetFrame

	discoveryTimerUs uint64
	discoverySent    int
	firstResponseUs  uint64

	lastListenUs   uint64
	slotStartUs    uint64
	timingTimerUs  uint64
	lastTimingRxUs uint64
}

// New initializes the radio and enters discovery. Setup failures are
// fatal: the caller is expected to terminate.
func New(r radio.Radio, cfg Config, clock nrftime.Clock, m *metrics.RadioMetrics) (*Layer, error) {
	if cfg.Channel > 127 {
		return nil, fmt.Errorf("mesh: channel %d must be between 0 and 127", cfg.Channel)
	}
	if cfg.AddressWidth == 0 {
		cfg.AddressWidth = 3
	}
	if cfg.TxStandbyTimeout == 0 {
		cfg.TxStandbyTimeout = DefaultTxStandbyTimeout
	}
	if m == nil {
		m = metrics.NewRadioMetrics()
	}

	if err := r.Begin(); err != nil {
		return nil, fmt.Errorf("mesh: failed to start NRF24L01: %w", err)
	}
	if err := r.SetChannel(cfg.Channel); err != nil {
		return nil, fmt.Errorf("mesh: %w", err)
	}
	r.SetPower(cfg.Power, cfg.LNA)
	r.SetDataRate(cfg.DataRate)
	r.SetAddressWidth(cfg.AddressWidth)
	r.EnableDynamicPayloads()
	r.DisableAutoAck()
	r.SetRetries(0, 0)
	r.SetCRC8()

	if !r.IsConnected() {
		return nil, fmt.Errorf("mesh: NRF24L01 is unavailable")
	}

	l := &Layer{
		radio:         r,
		clock:         clock,
		cfg:           cfg,
		m:             m,
		neighborSet:   map[uint8]bool{},
		commsState:    CommsDiscovery,
		radioState:    RadioContinuous,
		discoveryAddr: cfg.DiscoveryAddress,
	}
	if l.discoveryAddr == 0 {
		l.discoveryAddr = DiscoveryAddress()
	}

	l.nodeID = cfg.InitialID
	if l.nodeID < MinDiscoveryID {
		l.nodeID = MinDiscoveryID + uint8(rand.Intn(256-int(MinDiscoveryID)))
	}
	log.Infof("starting mesh radio with provisional node id %d", l.nodeID)

	l.readingPipes[0] = l.discoveryAddr
	l.readingPipes[1] = NodeAddress(l.nodeID, 1)
	r.OpenReadingPipe(0, l.readingPipes[0])
	r.OpenReadingPipe(1, l.readingPipes[1])
	r.FlushRX()
	r.FlushTX()
	r.StartListening()
	l.lastListenUs = clock.NowUs()
	return l, nil
}

// NodeID returns the current node ID. Values at or above MinDiscoveryID
// are provisional.
func (l *Layer) NodeID() uint8 { return l.nodeID }

// Neighbors returns the known neighbor IDs in insertion order.
func (l *Layer) Neighbors() []uint8 {
	out := make([]uint8, len(l.neighbors))
	copy(out, l.neighbors)
	return out
}

// Snapshot is the mesh state exposed by the status API. Neighbors are
// plain ints so they serialize as a JSON array rather than base64.
type Snapshot struct {
	NodeID     uint8  `json:"node_id"`
	CommsState string `json:"comms_state"`
	RadioState string `json:"radio_state"`
	Neighbors  []int  `json:"neighbors"`
	QueueDepth int    `json:"queue_depth"`
}

// Snapshot captures the current mesh state.
func (l *Layer) Snapshot() Snapshot {
	neighbors := make([]int, len(l.neighbors))
	for i, id := range l.neighbors {
		neighbors[i] = int(id)
	}
	return Snapshot{
		NodeID:     l.nodeID,
		CommsState: l.commsState.String(),
		RadioState: l.radioState.String(),
		Neighbors:  neighbors,
		QueueDepth: len(l.queue),
	}
}

// Run advances the state machine one tick: protocol timers, the slot
// schedule, then the receive path.
func (l *Layer) Run() {
	switch l.commsState {
	case CommsDiscovery:
		l.discoveryTask()
	case CommsTiming:
		l.timingTask()
	}

	if l.radioState == RadioContinuous {
		l.continuousSenderReceiver()
	} else {
		l.slotTask()
	}

	l.receiver()
}

// ReceiveFromUpstream accepts an encoded Data or DataAck frame, stamps the
// checksum and queues it for the first neighbor. With no neighbors the
// frame is dropped.
func (l *Layer) ReceiveFromUpstream(data []byte) {
	if len(data) != frame.Size {
		log.Errorf("dropping %d byte frame, must be %d", len(data), frame.Size)
		return
	}
	t := frame.TypeOf(data)
	if t != frame.TypeData && t != frame.TypeDataAck {
		log.Errorf("dropping unexpected %s frame from upstream", t)
		return
	}
	if len(l.neighbors) == 0 {
		log.Error("neighbor list is empty, cannot send data")
		return
	}

	buf := make([]byte, frame.Size)
	copy(buf, data)
	frame.Stamp(buf)
	l.enqueue(NodeAddress(l.neighbors[0], 1), buf)
}

// ReceiveFromDownstream implements layer.Layer. The mesh is the bottom of
// the pipeline, so nothing arrives from below.
func (l *Layer) ReceiveFromDownstream([]byte) {}

// Reset drops queued frames, forgets neighbors and returns to discovery.
func (l *Layer) Reset() {
	l.queue = nil
	l.neighbors = nil
	l.neighborSet = map[uint8]bool{}
	l.m.Neighbors.Set(0)
	l.discoveryTimerUs = 0
	l.discoverySent = 0
	l.firstResponseUs = 0
	l.radio.FlushRX()
	l.radio.FlushTX()
	l.commsState = CommsDiscovery
	l.radioState = RadioContinuous
	l.radio.StartListening()
	l.lastListenUs = l.clock.NowUs()
}

func (l *Layer) enqueue(addr uint32, buf []byte) {
	l.queue = append(l.queue, packetFrame{addr: addr, data: buf})
}

// receiver polls the radio and dispatches one frame per tick.
func (l *Layer) receiver() {
	if _, ok := l.radio.Available(); !ok {
		return
	}

	buf := make([]byte, frame.Size)
	if _, err := l.radio.Read(buf); err != nil {
		log.Errorf("radio read failed: %v", err)
		return
	}
	l.m.FramesReceived.Inc()

	pkt, err := frame.Decode(buf)
	if err != nil {
		log.Errorf("discarding frame: %v", err)
		l.m.FramesCorrupt.Inc()
		l.radio.FlushRX()
		return
	}

	switch p := pkt.(type) {
	case frame.Data:
		l.SendUpstream(buf)
	case frame.Discovery:
		l.handleDiscovery(p)
	case frame.DiscoverResponse:
		l.handleDiscoverResponse(p)
	case frame.NodeIDAnnounce:
		l.handleNodeIDAnnounce(p)
	case frame.TimeSynch:
		l.handleTimeSynch(p)
	case frame.Status:
		// Reserved; nothing to do yet.
	default:
		log.Errorf("unhandled %s frame", pkt.Type())
		l.radio.FlushRX()
	}
}

func (l *Layer) addNeighbor(id uint8) {
	if id == l.nodeID || l.neighborSet[id] {
		return
	}
	l.neighborSet[id] = true
	l.neighbors = append(l.neighbors, id)
	l.m.Neighbors.Set(float64(len(l.neighbors)))
	log.Infof("added node %d to neighbor list", id)
}
