package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// StackMetrics exposes Prometheus gauges for a Stack's socket-table
// occupancy, scraped the same way the teacher exposes node health.
type StackMetrics struct {
	openSockets prometheus.Gauge
	pendingEvts prometheus.Gauge
}

// NewStackMetrics registers gauges on reg under name-prefixed metric
// names so multiple stacks in one process don't collide.
func NewStackMetrics(reg prometheus.Registerer, name string) *StackMetrics {
	m := &StackMetrics{
		openSockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trentos_socket_open_total", Help: "Open sockets in the stack's table.",
			ConstLabels: prometheus.Labels{"stack": name},
		}),
		pendingEvts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trentos_socket_pending_events", Help: "Sockets with at least one pending event.",
			ConstLabels: prometheus.Labels{"stack": name},
		}),
	}
	reg.MustRegister(m.openSockets, m.pendingEvts)
	return m
}

// Sample snapshots s's current counters into the gauges.
func (m *StackMetrics) Sample(s *Stack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := 0
	s.sockets.Range(func(_ uint32, e *socketEntry) bool {
		if e.pending != 0 {
			pending++
		}
		return true
	})
	m.openSockets.Set(float64(s.sockets.Len()))
	m.pendingEvts.Set(float64(pending))
}

// EventHub fans a stack's pending-event records out to connected
// websocket clients — a push-notification surface above regCallback's
// one-shot in-process callback, adapted from the teacher's p2p gossip
// idea but scoped to a single stack's own event stream instead of
// cross-node swarm traffic.
type EventHub struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
}

// NewEventHub constructs an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection to receive future Broadcast calls.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

// Broadcast pushes events as JSON to every connected client, pruning
// any connection that errors out.
func (h *EventHub) Broadcast(events []PendingEvent) {
	if len(events) == 0 {
		return
	}
	payload, err := json.Marshal(events)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			_ = c.Close()
			delete(h.clients, c)
		}
	}
}

// PeerNode is a thin libp2p host used to gossip stack health between
// cooperating TRENTOS-M instances, adapted from the teacher's
// core/network.go NewNode — trimmed to a single pubsub topic instead of
// the full blockchain peer/message/NAT machinery, since the Socket
// module has no notion of a wider swarm.
type PeerNode struct {
	ctx    context.Context
	cancel context.CancelFunc
	host   host.Host
	pubsub *pubsub.PubSub
	topic  *pubsub.Topic
}

// NewPeerNode starts a libp2p host listening on listenAddr and joins
// topic for stack-health gossip.
func NewPeerNode(listenAddr, topic string) (*PeerNode, error) {
	ctx, cancel := context.WithCancel(context.Background())
	h, err := libp2p.New(libp2p.ListenAddrStrings(listenAddr))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create gossipsub: %w", err)
	}
	t, err := ps.Join(topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("join topic %s: %w", topic, err)
	}
	return &PeerNode{ctx: ctx, cancel: cancel, host: h, pubsub: ps, topic: t}, nil
}

// Publish gossips a stack-health snapshot to the topic's peers.
func (n *PeerNode) Publish(payload []byte) error {
	return n.topic.Publish(n.ctx, payload)
}

// DialSeed connects to a fixed set of bootstrap peer multiaddrs.
func (n *PeerNode) DialSeed(seeds []string) {
	for _, addr := range seeds {
		pi, err := peer.AddrInfoFromString(addr)
		if err != nil {
			logrus.Warnf("invalid peer addr %s: %v", addr, err)
			continue
		}
		if err := n.host.Connect(n.ctx, *pi); err != nil {
			logrus.Warnf("connect to %s: %v", addr, err)
		}
	}
}

// Close tears the node down.
func (n *PeerNode) Close() {
	n.cancel()
}
