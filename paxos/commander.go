package paxos

import (
	"time"

	"github.com/quorumdb/server/role"
	"github.com/quorumdb/server/stats"
)

// Commander runs Phase-2 of one slot on behalf of the Leader that
// spawned it. One-shot: reports DECIDED or PREEMPTED to its own node
// exactly once, then stops.
type Commander struct {
	*role.Base

	ballotNum  Ballot
	slot       Slot
	proposal   Proposal
	peers      []role.Address
	quorum     int
	retransmit time.Duration
	stats      stats.Recorder
	started    float64

	accepted map[role.Address]struct{}
	timer    role.Timer
}

// NewCommander constructs a Commander for (ballotNum, slot, proposal),
// registers it on node, and immediately broadcasts the first ACCEPT.
func NewCommander(node role.Node, ballotNum Ballot, slot Slot, proposal Proposal, peers []role.Address, retransmit time.Duration, recorder stats.Recorder) *Commander {
	if recorder == nil {
		recorder = stats.Noop{}
	}
	c := &Commander{
		ballotNum:  ballotNum,
		slot:       slot,
		proposal:   proposal,
		peers:      peers,
		quorum:     Quorum(len(peers)),
		retransmit: retransmit,
		stats:      recorder,
		accepted:   make(map[role.Address]struct{}),
	}
	c.Base = role.NewBase(node, c, "commander")
	c.started = node.Now()
	c.sendAccept()
	return c
}

func (c *Commander) sendAccept() {
	var targets []role.Address
	for _, p := range c.peers {
		if _, done := c.accepted[p]; !done {
			targets = append(targets, p)
		}
	}
	if len(targets) > 0 {
		c.Node.Send(targets, Accept{Slot: c.slot, BallotNum: c.ballotNum, Proposal: c.proposal})
	}
	c.timer = c.SetTimer(c.retransmit.Seconds(), c.sendAccept)
}

func (c *Commander) HandleMessage(sender role.Address, msg role.Message) {
	if accepted, ok := msg.(Accepted); ok {
		c.handleAccepted(sender, accepted)
	}
}

func (c *Commander) handleAccepted(sender role.Address, m Accepted) {
	if m.Slot != c.slot {
		return
	}
	if m.BallotNum == c.ballotNum {
		c.accepted[sender] = struct{}{}
		if len(c.accepted) >= c.quorum {
			c.stats.CommanderLatencySeconds(c.Node.Now() - c.started)
			c.Node.Send(c.peers, Decision{Slot: c.slot, Proposal: c.proposal})
			c.notifyLeader(Decided{Slot: c.slot})
			c.stop()
		}
		return
	}
	c.stats.CommanderPreempted()
	slot := c.slot
	c.notifyLeader(Preempted{Slot: &slot, PreemptedBy: m.BallotNum})
	c.stop()
}

func (c *Commander) notifyLeader(msg role.Message) {
	c.Node.Send([]role.Address{c.Node.Address()}, msg)
}

func (c *Commander) stop() {
	if c.timer != nil {
		c.timer.Cancel()
	}
	c.Base.Stop(c)
}
