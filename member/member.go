// Package member provides the synchronous, client-facing façade over
// the asynchronous Paxos protocol: construct one on a network.Network,
// Start it, and call Invoke from any goroutine to run one operation
// through consensus and get its output back.
package member

import (
	"fmt"
	"sync"
	"time"

	"github.com/quorumdb/server/network"
	"github.com/quorumdb/server/paxos"
	"github.com/quorumdb/server/role"
)

// Member owns one Node on a shared Network and the single Requester
// that may be in flight on it at any time.
type Member struct {
	net  *network.Network
	node *network.Node
	cfg  *paxos.Config

	mu       sync.Mutex
	invoking bool
}

// NewSeed constructs a Member that forms a brand-new cluster, seeded
// with initialState, on address. Use this for exactly one node per
// cluster; every other node should use New to join it.
func NewSeed(net *network.Network, address role.Address, cfg *paxos.Config, initialState interface{}) *Member {
	node := net.NewNode(address)
	paxos.NewSeed(node, cfg, initialState)
	return &Member{net: net, node: node, cfg: cfg}
}

// New constructs a Member that joins an existing cluster via cfg.Peers.
func New(net *network.Network, address role.Address, cfg *paxos.Config) *Member {
	node := net.NewNode(address)
	paxos.NewBootstrap(node, cfg)
	return &Member{net: net, node: node, cfg: cfg}
}

// Address is this Member's node address on its Network.
func (m *Member) Address() role.Address { return m.node.Address() }

// Peers returns the full cluster membership this Member was configured
// with, including its own address.
func (m *Member) Peers() []role.Address {
	peers := make([]role.Address, len(m.cfg.Peers))
	copy(peers, m.cfg.Peers)
	return peers
}

// Start launches the shared Network's event loop if it is not already
// running. Safe to call once per Member sharing a Network; later calls
// after the first are no-ops.
func (m *Member) Start() {
	m.net.EnsureRunning()
}

// Invoke runs input through consensus and blocks until the cluster has
// committed and executed it, returning the state machine's output. Only
// one Invoke may be outstanding on a Member at a time; a concurrent
// second call returns an error immediately rather than silently
// queuing.
func (m *Member) Invoke(input interface{}) (interface{}, error) {
	m.mu.Lock()
	if m.invoking {
		m.mu.Unlock()
		return nil, fmt.Errorf("member: invoke already in progress on %s", m.node.Address())
	}
	m.invoking = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.invoking = false
		m.mu.Unlock()
	}()

	started := time.Now()
	result := make(chan interface{}, 1)
	m.net.Do(func() {
		paxos.NewRequester(m.node, input, m.cfg.InvokeRetransmit, func(output interface{}) {
			result <- output
		})
	})
	output := <-result
	m.cfg.Recorder().InvokeLatencySeconds(time.Since(started).Seconds())
	return output, nil
}
