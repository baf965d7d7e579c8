package paxos

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/log/level"

	"github.com/quorumdb/server/role"
	"github.com/quorumdb/server/stats"
)

// ExecuteFunc is the deterministic, total state-machine step every
// Replica drives decisions through. It must not mutate state in place;
// it returns the next state and the output for this input.
type ExecuteFunc func(state interface{}, input interface{}) (newState interface{}, output interface{})

// clientOpKey names one logical client operation, used both to find a
// pending proposal to re-propose on an INVOKE retry and to suppress a
// duplicate commit.
type clientOpKey struct {
	Caller   role.Address
	ClientID int
}

// Replica sequences slots, tracks outstanding proposals, drives the
// state machine on decisions in order, and tracks a guess at the
// current leader so it knows where to route PROPOSE.
type Replica struct {
	*role.Base

	peers   []role.Address
	peerSet map[role.Address]struct{}
	execute ExecuteFunc
	stats   stats.Recorder

	leaderTimeout time.Duration
	leaderTimer   role.Timer

	state interface{}
	slot  Slot // next slot to execute
	nextSlot Slot // smallest slot never yet proposed from this replica

	proposals       map[Slot]Proposal
	pendingByClient map[clientOpKey]Slot
	decisions       map[Slot]Proposal
	executed        map[clientOpKey]Slot

	latestLeader role.Address
}

// NewReplica constructs a Replica seeded with initialState at
// startSlot (1 for a fresh cluster; Welcome.Slot when catching up via
// Bootstrap), with decisions pre-populated from a Welcome catch-up if
// any.
func NewReplica(node role.Node, peers []role.Address, initialState interface{}, startSlot Slot, decisions map[Slot]Proposal, execute ExecuteFunc, leaderTimeout time.Duration, recorder stats.Recorder) *Replica {
	if recorder == nil {
		recorder = stats.Noop{}
	}
	if decisions == nil {
		decisions = make(map[Slot]Proposal)
	}
	peerSet := make(map[role.Address]struct{}, len(peers))
	for _, p := range peers {
		peerSet[p] = struct{}{}
	}
	r := &Replica{
		peers:           peers,
		peerSet:         peerSet,
		execute:         execute,
		stats:           recorder,
		leaderTimeout:   leaderTimeout,
		state:           initialState,
		slot:            startSlot,
		nextSlot:        startSlot,
		proposals:       make(map[Slot]Proposal),
		pendingByClient: make(map[clientOpKey]Slot),
		decisions:       decisions,
		executed:        make(map[clientOpKey]Slot),
	}
	r.Base = role.NewBase(node, r, "replica")
	r.resetLeaderTimer()
	return r
}

func (r *Replica) HandleMessage(sender role.Address, msg role.Message) {
	switch m := msg.(type) {
	case Invoke:
		r.handleInvoke(m)
	case Decision:
		r.handleDecision(m)
	case Adopted:
		r.latestLeader = r.Node.Address()
		r.resetLeaderTimer()
	case Accepting:
		r.latestLeader = m.Leader
		r.resetLeaderTimer()
	case Active:
		if sender == r.latestLeader {
			r.resetLeaderTimer()
		}
	case Join:
		r.handleJoin(sender)
	}
}

func (r *Replica) handleInvoke(m Invoke) {
	key := clientOpKey{Caller: m.Caller, ClientID: m.ClientID}
	if slot, ok := r.pendingByClient[key]; ok {
		r.doPropose(r.proposals[slot], &slot)
		return
	}
	r.doPropose(Proposal{Caller: m.Caller, ClientID: m.ClientID, Input: m.Input}, nil)
}

func (r *Replica) doPropose(proposal Proposal, slot *Slot) {
	var s Slot
	if slot != nil {
		s = *slot
	} else {
		s = r.nextSlot
		r.nextSlot++
	}
	r.proposals[s] = proposal
	if proposal.Caller != "" {
		r.pendingByClient[clientOpKey{proposal.Caller, proposal.ClientID}] = s
	}
	target := r.latestLeader
	if target == "" {
		target = r.Node.Address()
	}
	r.Node.Send([]role.Address{target}, Propose{Slot: s, Proposal: proposal})
}

func (r *Replica) handleDecision(m Decision) {
	if existing, ok := r.decisions[m.Slot]; ok {
		if existing == m.Proposal {
			return
		}
		level.Error(r.Log).Log("msg", "decision conflict at slot, aborting", "slot", m.Slot)
		panic(fmt.Sprintf("paxos: conflicting decisions at slot %d: %+v vs %+v", m.Slot, existing, m.Proposal))
	}
	r.decisions[m.Slot] = m.Proposal
	if m.Slot >= r.nextSlot {
		r.nextSlot = m.Slot + 1
	}

	if local, ok := r.proposals[m.Slot]; ok && local != m.Proposal && local.Caller != "" {
		r.doPropose(local, nil)
	}

	for {
		proposal, ok := r.decisions[r.slot]
		if !ok {
			break
		}
		r.commit(r.slot, proposal)
		r.slot++
	}
}

func (r *Replica) commit(slot Slot, proposal Proposal) {
	if proposal.Caller == "" {
		return
	}
	key := clientOpKey{Caller: proposal.Caller, ClientID: proposal.ClientID}
	if _, dup := r.executed[key]; dup {
		level.Debug(r.Log).Log("msg", "duplicate commit suppressed", "caller", proposal.Caller, "client_id", proposal.ClientID)
		return
	}
	r.executed[key] = slot

	newState, output := r.execute(r.state, proposal.Input)
	r.state = newState
	r.stats.DecisionCommitted(string(r.Node.Address()), slot)
	r.Node.Send([]role.Address{proposal.Caller}, Invoked{ClientID: proposal.ClientID, Output: output})
}

func (r *Replica) handleJoin(sender role.Address) {
	if _, ok := r.peerSet[sender]; !ok {
		return
	}
	r.Node.Send([]role.Address{sender}, Welcome{State: r.state, Slot: r.slot, Decisions: r.decisions})
}

func (r *Replica) resetLeaderTimer() {
	if r.leaderTimer != nil {
		r.leaderTimer.Cancel()
	}
	r.leaderTimer = r.SetTimer(r.leaderTimeout.Seconds(), r.onLeaderTimeout)
}

// onLeaderTimeout advances latestLeader to the next address in peers,
// round-robin, biasing future PROPOSEs toward a new candidate. It
// reschedules itself so a silent successor is rotated past in turn.
func (r *Replica) onLeaderTimeout() {
	if len(r.peers) > 0 {
		idx := -1
		for i, p := range r.peers {
			if p == r.latestLeader {
				idx = i
				break
			}
		}
		r.latestLeader = r.peers[(idx+1)%len(r.peers)]
	}
	r.resetLeaderTimer()
}
