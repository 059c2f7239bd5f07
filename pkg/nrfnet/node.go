package nrfnet

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/nrfnet/nrfnet/internal/nrftime"
	"github.com/nrfnet/nrfnet/pkg/ack"
	"github.com/nrfnet/nrfnet/pkg/fragment"
	"github.com/nrfnet/nrfnet/pkg/layer"
	"github.com/nrfnet/nrfnet/pkg/mesh"
	"github.com/nrfnet/nrfnet/pkg/metrics"
	"github.com/nrfnet/nrfnet/pkg/radio"
	"github.com/nrfnet/nrfnet/pkg/store"
	"github.com/nrfnet/nrfnet/pkg/tunnel"
)

var log = logging.MustGetLogger("nrfnet")

// Node wires the pipeline (tunnel, fragmentation, ack, mesh) and runs the
// supervisory loop that ticks it.
type Node struct {
	conf      Config
	clock     nrftime.Clock
	sessionID uuid.UUID
	startedAt time.Time

	registry *prometheus.Registry

	tunnel *tunnel.Layer
	frag   *fragment.Layer
	ack    *ack.Layer
	mesh   *mesh.Layer
	store  *store.Store

	// mu serializes pipeline ticks against status reads from the API
	// goroutine. The layers themselves are lock-free and owned by the
	// loop.
	mu sync.Mutex

	done    chan struct{}
	wg      sync.WaitGroup
	stopAPI func()
}

// NewNode builds a node from an initialized radio and an open tunnel
// device. Close closes the tunnel device; the radio stays with the caller,
// which releases it after Close.
func NewNode(conf Config, r radio.Radio, dev io.ReadWriteCloser, clock nrftime.Clock) (*Node, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = nrftime.Real()
	}

	n := &Node{
		conf:      conf,
		clock:     clock,
		sessionID: uuid.New(),
		startedAt: time.Now(),
		registry:  prometheus.NewRegistry(),
		done:      make(chan struct{}),
	}

	radioM := metrics.NewRadioMetrics()
	ackM := metrics.NewAckMetrics()
	fragM := metrics.NewFragmentMetrics()
	tunnelM := metrics.NewTunnelMetrics()
	for _, cs := range [][]prometheus.Collector{
		radioM.Collectors(), ackM.Collectors(), fragM.Collectors(), tunnelM.Collectors(),
	} {
		for _, c := range cs {
			n.registry.MustRegister(c)
		}
	}

	meshLayer, err := mesh.New(r, mesh.Config{
		Channel:          conf.Channel,
		Power:            radio.Power(conf.PowerLevel),
		LNA:              conf.LowNoiseAmplifier,
		DataRate:         radio.DataRate(conf.DataRate),
		AddressWidth:     conf.AddressWidth,
		DiscoveryAddress: conf.DiscoveryAddress,
		InitialID:        conf.InitialNodeID,
		Slotted:          conf.Slotted,
	}, clock, radioM)
	if err != nil {
		return nil, err
	}
	n.mesh = meshLayer

	n.ack = ack.New(ack.Config{
		Window:   conf.MaxInFlight,
		Disabled: !conf.AckEnabled,
	}, clock, ackM)
	n.frag = fragment.New(fragM)
	n.tunnel = tunnel.New(dev, clock, tunnelM, conf.EnableTunnelLogs)

	layer.Chain(n.tunnel, n.frag, n.ack, n.mesh)

	if conf.DBPath != "" {
		s, err := store.Open(conf.DBPath)
		if err != nil {
			return nil, err
		}
		n.store = s

		if prev, ok, err := s.LoadSession(); err != nil {
			log.Warnf("failed to load previous session: %v", err)
		} else if ok {
			log.Infof("previous session %s held node id %d with %d neighbors",
				prev.ID, prev.NodeID, len(prev.Neighbors))
		}
		n.persistSession()
	}

	return n, nil
}

// SessionID returns the per-boot session identifier.
func (n *Node) SessionID() uuid.UUID { return n.sessionID }

// Start launches the tunnel reader, the supervisory loop and, when
// configured, the status API.
func (n *Node) Start() error {
	n.tunnel.Start()

	if n.conf.APIAddr != "" {
		if err := n.startAPI(); err != nil {
			return fmt.Errorf("nrfnet: start api: %w", err)
		}
	}

	n.wg.Add(1)
	go n.loop()
	log.Infof("node started, session %s", n.sessionID)
	return nil
}

// loop ticks each layer in order. PollIntervalUs throttles the loop; zero
// keeps it hot like the reference implementation.
func (n *Node) loop() {
	defer n.wg.Done()
	for {
		select {
		case <-n.done:
			return
		default:
		}

		n.mu.Lock()
		n.tunnel.Run()
		n.ack.Run()
		n.mesh.Run()
		n.mu.Unlock()

		if n.conf.PollIntervalUs > 0 {
			n.clock.SleepUs(n.conf.PollIntervalUs)
		}
	}
}

// Close stops the loop and the status API, joins the tunnel reader, closes
// the tunnel device, persists the session and closes the store. The radio
// is left open.
func (n *Node) Close() error {
	close(n.done)
	n.wg.Wait()

	if n.stopAPI != nil {
		n.stopAPI()
	}

	err := n.tunnel.Close()

	if n.store != nil {
		n.persistSession()
		if cerr := n.store.Close(); err == nil {
			err = cerr
		}
	}
	log.Info("node stopped")
	return err
}

func (n *Node) persistSession() {
	session := store.Session{
		ID:        n.sessionID,
		NodeID:    n.mesh.NodeID(),
		Neighbors: n.mesh.Neighbors(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := n.store.SaveSession(session); err != nil {
		log.Warnf("failed to persist session: %v", err)
	}
}
