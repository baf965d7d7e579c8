package network

import (
	"bytes"
	"container/heap"
	"context"
	"encoding/gob"
	"net"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"golang.org/x/time/rate"

	"github.com/quorumdb/server/role"
	"github.com/quorumdb/server/stats"
)

// RegisterMessageType makes a concrete paxos message type
// gob-encodable across the wire. Every message type a deployment uses
// must be registered once, on both ends, before any UDPTransport is
// started - callers typically do this from an init func in cmd/quorumdbd.
func RegisterMessageType(sample role.Message) {
	gob.Register(sample)
}

// envelope is the wire format: the sender's address travels alongside
// the payload since a UDP packet's source address is not necessarily
// the logical node address a role should reply to.
type envelope struct {
	Sender  role.Address
	Payload role.Message
}

// UDPTransport is the production role.Node: one OS process, one UDP
// socket, one logical address. Unlike the in-process Network it carries
// no simulated delay or drop - loss and reordering are whatever the
// real network gives it - but it borrows the same timerHeap used there,
// since a single process still needs a single ordered timer queue.
//
// Grounded in Rain168-server's network.ConnectionManager (one owning
// goroutine reading its socket, a mutex-guarded table for anything
// reachable from other goroutines) and in moby-moby's direct
// dependency on golang.org/x/time/rate, here repurposed to cap the rate
// of retransmits sent to any one peer.
type UDPTransport struct {
	address role.Address
	conn    *net.UDPConn
	logger  log.Logger
	stats   stats.Recorder

	rolesMu sync.Mutex
	roles   []role.Registrant

	addrCacheMu sync.Mutex
	addrCache   map[role.Address]*net.UDPAddr

	limiterMu sync.Mutex
	limiters  map[role.Address]*rate.Limiter
	rateLimit rate.Limit
	burst     int

	mu     sync.Mutex
	timers timerHeap
	wake   chan struct{}
	stopCh chan struct{}
	epoch  time.Time
}

// UDPOption configures a UDPTransport at construction time.
type UDPOption func(*UDPTransport)

// WithUDPLogger sets the logger handed to registered roles.
func WithUDPLogger(logger log.Logger) UDPOption {
	return func(t *UDPTransport) { t.logger = logger }
}

// WithUDPRecorder wires a stats.Recorder; default is stats.Noop{}.
func WithUDPRecorder(r stats.Recorder) UDPOption {
	return func(t *UDPTransport) { t.stats = r }
}

// WithUDPRateLimit bounds outgoing packets per destination address, a
// token bucket of burst size replenished at rateLimit per second.
// Defaults to 200/s, burst 50 - comfortably above the retransmit
// periods in consts.go under normal operation.
func WithUDPRateLimit(perSecond float64, burst int) UDPOption {
	return func(t *UDPTransport) {
		t.rateLimit = rate.Limit(perSecond)
		t.burst = burst
	}
}

// NewUDPTransport binds laddr (e.g. "0.0.0.0:9001") and returns a
// transport whose logical address is addr (e.g. a reachable
// "host:port" peers will dial back). They are often the same string.
func NewUDPTransport(addr role.Address, laddr string, opts ...UDPOption) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", laddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	t := &UDPTransport{
		address:   addr,
		conn:      conn,
		logger:    log.NewNopLogger(),
		stats:     stats.Noop{},
		addrCache: make(map[role.Address]*net.UDPAddr),
		limiters:  make(map[role.Address]*rate.Limiter),
		rateLimit: rate.Limit(200),
		burst:     50,
		wake:      make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		epoch:     time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

var _ role.Node = (*UDPTransport)(nil)

func (t *UDPTransport) Address() role.Address { return t.address }

func (t *UDPTransport) Register(r role.Registrant) {
	t.rolesMu.Lock()
	t.roles = append(t.roles, r)
	t.rolesMu.Unlock()
}

func (t *UDPTransport) Unregister(r role.Registrant) {
	t.rolesMu.Lock()
	defer t.rolesMu.Unlock()
	for i, existing := range t.roles {
		if existing == r {
			t.roles = append(t.roles[:i], t.roles[i+1:]...)
			return
		}
	}
}

func (t *UDPTransport) Logger() log.Logger { return t.logger }

func (t *UDPTransport) Now() float64 { return time.Since(t.epoch).Seconds() }

func (t *UDPTransport) resolve(dest role.Address) (*net.UDPAddr, error) {
	t.addrCacheMu.Lock()
	if a, ok := t.addrCache[dest]; ok {
		t.addrCacheMu.Unlock()
		return a, nil
	}
	t.addrCacheMu.Unlock()

	a, err := net.ResolveUDPAddr("udp", string(dest))
	if err != nil {
		return nil, err
	}
	t.addrCacheMu.Lock()
	t.addrCache[dest] = a
	t.addrCacheMu.Unlock()
	return a, nil
}

func (t *UDPTransport) limiterFor(dest role.Address) *rate.Limiter {
	t.limiterMu.Lock()
	defer t.limiterMu.Unlock()
	l, ok := t.limiters[dest]
	if !ok {
		l = rate.NewLimiter(t.rateLimit, t.burst)
		t.limiters[dest] = l
	}
	return l
}

// Send encodes msg once and fires off one goroutine per destination,
// each waiting on that destination's rate limiter before writing the
// packet. A self-send is delivered in-process without touching the
// socket, matching the in-process Network's self-delivery rule.
func (t *UDPTransport) Send(destinations []role.Address, msg role.Message) {
	self := t.address
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope{Sender: self, Payload: msg}); err != nil {
		t.logger.Log("msg", "encode failed", "error", err)
		return
	}
	payload := buf.Bytes()

	seen := make(map[role.Address]bool, len(destinations))
	for _, dest := range destinations {
		if seen[dest] {
			continue
		}
		seen[dest] = true

		if dest == self {
			t.dispatch(self, msg)
			continue
		}

		udpAddr, err := t.resolve(dest)
		if err != nil {
			t.logger.Log("msg", "resolve failed", "dest", dest, "error", err)
			continue
		}
		limiter := t.limiterFor(dest)
		go func(dest role.Address, udpAddr *net.UDPAddr) {
			if err := limiter.Wait(context.Background()); err != nil {
				return
			}
			if _, err := t.conn.WriteToUDP(payload, udpAddr); err != nil {
				t.logger.Log("msg", "write failed", "dest", dest, "error", err)
				return
			}
			t.stats.MessageSent(tagOf(msg))
		}(dest, udpAddr)
	}
}

func (t *UDPTransport) dispatch(sender role.Address, msg role.Message) {
	t.rolesMu.Lock()
	snapshot := make([]role.Registrant, len(t.roles))
	copy(snapshot, t.roles)
	t.rolesMu.Unlock()
	t.stats.MessageDelivered(tagOf(msg))
	for _, r := range snapshot {
		r.HandleMessage(sender, msg)
	}
}

// Serve reads packets until ctx is cancelled. It must run in its own
// goroutine; Send, SetTimer, Register and Unregister are all safe to
// call from elsewhere while it runs.
func (t *UDPTransport) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		t.conn.SetReadDeadline(time.Now())
	}()

	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, _, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.logger.Log("msg", "read failed", "error", err)
			continue
		}
		var env envelope
		if err := gob.NewDecoder(bytes.NewReader(buf[:n])).Decode(&env); err != nil {
			t.logger.Log("msg", "decode failed", "error", err)
			continue
		}
		t.dispatch(env.Sender, env.Payload)
	}
}

// SetTimer schedules callback to run after seconds on a dedicated timer
// goroutine (see RunTimers). Unlike Network's, this heap is unscoped:
// a process hosting a UDPTransport only ever has the one logical
// address, so there is no "other node died" case to suppress.
func (t *UDPTransport) SetTimer(seconds float64, callback func()) role.Timer {
	t.mu.Lock()
	tm := &Timer{Expires: t.Now() + seconds, Callback: callback}
	heap.Push(&t.timers, tm)
	t.mu.Unlock()
	t.stats.TimerScheduled()
	t.signal()
	return tm
}

func (t *UDPTransport) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// RunTimers drains the timer heap until Close is called. It must run in
// its own goroutine, alongside Serve.
func (t *UDPTransport) RunTimers() {
	for {
		t.mu.Lock()
		if len(t.timers) == 0 {
			t.mu.Unlock()
			select {
			case <-t.wake:
				continue
			case <-t.stopCh:
				return
			}
		}
		next := t.timers[0]
		t.mu.Unlock()

		wait := time.Duration((next.Expires - t.Now()) * float64(time.Second))
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-t.wake:
				timer.Stop()
				continue
			case <-t.stopCh:
				timer.Stop()
				return
			}
		}

		t.mu.Lock()
		if len(t.timers) == 0 || t.timers[0] != next {
			t.mu.Unlock()
			continue
		}
		tm := heap.Pop(&t.timers).(*Timer)
		t.mu.Unlock()

		if tm.Cancelled {
			t.stats.TimerCancelled()
			continue
		}
		t.stats.TimerFired()
		tm.Callback()
	}
}

// Close stops RunTimers and releases the socket.
func (t *UDPTransport) Close() error {
	select {
	case <-t.stopCh:
	default:
		close(t.stopCh)
	}
	return t.conn.Close()
}
