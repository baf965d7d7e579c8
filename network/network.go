// Package network implements the simulated and real transports that the
// paxos roles run over, plus the Node/Network plumbing that turns a
// scheduled Timer into either a callback firing or a message being
// delivered.
//
// Grounded in Rain168-server's network package (ConnectionManager: a
// single goroutine owning connection state, fed by a work queue from
// other goroutines) - here the "connections" are in-process Nodes and
// the "work queue" is Network.pending, but the shape (one goroutine
// mutates shared state, everyone else enqueues) is the same.
package network

import (
	"container/heap"
	"math/rand"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/google/uuid"

	"github.com/quorumdb/server/role"
	"github.com/quorumdb/server/stats"
)

// Default delay/drop parameters for the simulated transport, chosen to
// make retransmission logic actually exercise itself in tests without
// making them slow.
const (
	DefaultMinDelay        = 10 * time.Millisecond
	DefaultMaxDelay        = 70 * time.Millisecond
	DefaultDropProbability = 0.05
)

// Network owns the clock, the timer/delivery heap, and the set of live
// Nodes. Exactly one goroutine (the one running Run) ever pops the heap
// or mutates a Node's roles slice; every other goroutine reaches in
// through Do, Send, SetTimer, or Kill, all of which are safe to call
// concurrently.
type Network struct {
	mu     sync.Mutex
	nodes  map[role.Address]*Node
	timers timerHeap
	now    float64
	epoch  time.Time

	pending []func()
	wake    chan struct{}
	stopCh  chan struct{}
	stopped bool
	runOnce sync.Once

	realtime bool
	reliable bool
	minDelay float64
	maxDelay float64
	dropProb float64

	rng    *rand.Rand
	logger log.Logger
	stats  stats.Recorder
}

// Option configures a Network at construction time.
type Option func(*Network)

// WithRealtime switches between a wall-clock-driven Network (timers
// fire after real delays; the default, used for the CLI and
// integration tests that exercise real concurrency) and a virtual one
// whose clock only advances when its heap is drained (used by
// FakeNetwork for deterministic single-process tests).
func WithRealtime(realtime bool) Option {
	return func(n *Network) { n.realtime = realtime }
}

// WithReliable disables simulated drops entirely, whatever drop
// probability is configured.
func WithReliable(reliable bool) Option {
	return func(n *Network) { n.reliable = reliable }
}

// WithDelayRange sets the random one-way delay applied to messages
// between distinct nodes. Self-sends always bypass this.
func WithDelayRange(min, max time.Duration) Option {
	return func(n *Network) {
		n.minDelay = min.Seconds()
		n.maxDelay = max.Seconds()
	}
}

// WithDropProbability sets the fraction of inter-node messages the
// simulated transport silently discards.
func WithDropProbability(p float64) Option {
	return func(n *Network) { n.dropProb = p }
}

// WithLogger sets the base logger every Node hands to its roles.
func WithLogger(logger log.Logger) Option {
	return func(n *Network) { n.logger = logger }
}

// WithRecorder wires a stats.Recorder; the default is stats.Noop{}.
func WithRecorder(r stats.Recorder) Option {
	return func(n *Network) { n.stats = r }
}

// WithSeed fixes the PRNG driving delay/drop decisions, for
// reproducible tests.
func WithSeed(seed int64) Option {
	return func(n *Network) { n.rng = rand.New(rand.NewSource(seed)) }
}

// New constructs a Network ready to have Nodes added to it. Call Run in
// its own goroutine once all the initial Nodes and roles are set up.
func New(opts ...Option) *Network {
	n := &Network{
		nodes:    make(map[role.Address]*Node),
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		epoch:    time.Now(),
		realtime: true,
		reliable: false,
		minDelay: DefaultMinDelay.Seconds(),
		maxDelay: DefaultMaxDelay.Seconds(),
		dropProb: DefaultDropProbability,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:   log.NewNopLogger(),
		stats:    stats.Noop{},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewNode creates a Node on this Network. An empty address is replaced
// with a random one, mirroring the teacher's use of google/uuid for
// generated connection identities.
func (n *Network) NewNode(address role.Address) *Node {
	if address == "" {
		address = role.Address(uuid.NewString())
	}
	node := &Node{address: address, network: n, logger: n.logger}
	n.mu.Lock()
	n.nodes[address] = node
	n.mu.Unlock()
	return node
}

// Kill removes address from the Network: further sends to it are
// dropped and any timer already scheduled against it is suppressed when
// it next comes up for delivery.
func (n *Network) Kill(address role.Address) {
	n.Do(func() {
		n.mu.Lock()
		delete(n.nodes, address)
		n.mu.Unlock()
	})
}

// Now returns the Network's current virtual (or wall, if realtime)
// clock reading in fractional seconds.
func (n *Network) Now() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.now
}

func (n *Network) wallNow() float64 {
	return time.Since(n.epoch).Seconds()
}

// Do enqueues fn to run on the event-loop goroutine, ahead of the next
// timer pop. It is how code outside Run's goroutine - most notably
// Member.Invoke spinning up a Requester - safely touches role or Node
// state.
func (n *Network) Do(fn func()) {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.pending = append(n.pending, fn)
	n.mu.Unlock()
	n.signal()
}

func (n *Network) signal() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// Send schedules msg for delivery to each of destinations. Self-sends
// (destination == sender) are delivered with no delay and are never
// dropped, matching the reference semantics that a role always sees its
// own broadcasts. Unknown destinations are silently dropped, as are
// duplicate destinations beyond the first.
func (n *Network) Send(sender role.Address, destinations []role.Address, msg role.Message) {
	n.Do(func() { n.doSend(sender, destinations, msg) })
}

func (n *Network) doSend(sender role.Address, destinations []role.Address, msg role.Message) {
	tag := tagOf(msg)
	seen := make(map[role.Address]bool, len(destinations))
	for _, dest := range destinations {
		if seen[dest] {
			continue
		}
		seen[dest] = true
		n.stats.MessageSent(tag)

		if dest == sender {
			n.scheduleDelivery(sender, dest, msg, 0)
			continue
		}

		n.mu.Lock()
		_, known := n.nodes[dest]
		n.mu.Unlock()
		if !known {
			continue
		}

		if !n.reliable && n.rng.Float64() < n.dropProb {
			n.stats.MessageDropped(tag)
			continue
		}

		delay := n.minDelay
		if n.maxDelay > n.minDelay {
			delay += n.rng.Float64() * (n.maxDelay - n.minDelay)
		}
		n.scheduleDelivery(sender, dest, msg, delay)
	}
}

func (n *Network) scheduleDelivery(sender, dest role.Address, msg role.Message, delay float64) {
	n.mu.Lock()
	t := &Timer{
		Expires: n.now + delay,
		Address: dest,
		Callback: func() {
			n.mu.Lock()
			node, ok := n.nodes[dest]
			n.mu.Unlock()
			if !ok {
				return
			}
			n.stats.MessageDelivered(tagOf(msg))
			node.Receive(sender, msg)
		},
	}
	heap.Push(&n.timers, t)
	n.mu.Unlock()
	n.stats.TimerScheduled()
	n.signal()
}

// SetTimer schedules callback to fire after seconds, scoped to address:
// if address is removed from the Network before the timer is due, the
// callback is skipped.
func (n *Network) SetTimer(address role.Address, seconds float64, callback func()) role.Timer {
	n.mu.Lock()
	t := &Timer{Expires: n.now + seconds, Address: address, Callback: callback}
	heap.Push(&n.timers, t)
	n.mu.Unlock()
	n.stats.TimerScheduled()
	n.signal()
	return t
}

// EnsureRunning launches Run on its own goroutine the first time it is
// called; later calls are no-ops. This lets several Members share one
// Network (common in tests and single-process demos) without each one
// racing to start its own copy of the event loop.
func (n *Network) EnsureRunning() {
	n.runOnce.Do(func() { go n.Run() })
}

// Run drains pending operations and fires due timers/deliveries until
// Stop is called. It must run in its own goroutine; every other
// Network method is safe to call from elsewhere while it runs.
func (n *Network) Run() {
	for {
		for _, op := range n.drainPending() {
			op()
		}

		n.mu.Lock()
		if n.stopped {
			n.mu.Unlock()
			return
		}
		if len(n.timers) == 0 {
			n.mu.Unlock()
			select {
			case <-n.wake:
				continue
			case <-n.stopCh:
				return
			}
		}
		next := n.timers[0]
		n.mu.Unlock()

		if n.realtime {
			wait := time.Duration((next.Expires - n.wallNow()) * float64(time.Second))
			if wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-n.wake:
					timer.Stop()
					continue
				case <-n.stopCh:
					timer.Stop()
					return
				}
			}
		}

		n.mu.Lock()
		if len(n.timers) == 0 || n.timers[0] != next {
			n.mu.Unlock()
			continue
		}
		t := heap.Pop(&n.timers).(*Timer)
		if n.realtime {
			n.now = n.wallNow()
		} else {
			n.now = t.Expires
		}
		cancelled := t.Cancelled
		nodeExists := true
		if t.Address != "" {
			_, nodeExists = n.nodes[t.Address]
		}
		n.mu.Unlock()

		if cancelled {
			n.stats.TimerCancelled()
			continue
		}
		if !nodeExists {
			continue
		}
		n.stats.TimerFired()
		t.Callback()
	}
}

func (n *Network) drainPending() []func() {
	n.mu.Lock()
	ops := n.pending
	n.pending = nil
	n.mu.Unlock()
	return ops
}

// Stop halts Run. It is idempotent and safe to call from any goroutine.
func (n *Network) Stop() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	n.mu.Unlock()
	close(n.stopCh)
}
