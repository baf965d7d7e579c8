package paxos

import (
	"time"

	"github.com/quorumdb/server/role"
	"github.com/quorumdb/server/stats"
)

// Leader owns a ballot and spawns Scouts/Commanders on demand. It runs
// for the lifetime of the node. Unlike the textbook Multi-Paxos leader,
// adoption does not respawn commanders for every merged proposal -
// liveness for those comes from the originating Replica's continued
// re-PROPOSE, keeping this Leader's own bookkeeping a straight
// reflection of what it has been asked to drive since becoming active.
type Leader struct {
	*role.Base

	peers  []role.Address
	quorum int
	stats  stats.Recorder

	prepareRetransmit time.Duration
	acceptRetransmit  time.Duration
	leaderTimeout     time.Duration

	ballotNum Ballot
	active    bool
	scouting  bool
	proposals map[Slot]Proposal
}

// NewLeader constructs a Leader at ballot (0, node.Address()), starts
// its ACTIVE liveness beacon, and registers it on node.
func NewLeader(node role.Node, peers []role.Address, prepareRetransmit, acceptRetransmit, leaderTimeout time.Duration, recorder stats.Recorder) *Leader {
	if recorder == nil {
		recorder = stats.Noop{}
	}
	l := &Leader{
		peers:             peers,
		quorum:            Quorum(len(peers)),
		stats:             recorder,
		prepareRetransmit: prepareRetransmit,
		acceptRetransmit:  acceptRetransmit,
		leaderTimeout:     leaderTimeout,
		proposals:         make(map[Slot]Proposal),
	}
	l.Base = role.NewBase(node, l, "leader")
	l.ballotNum = Ballot{N: 0, Leader: node.Address()}
	l.beacon()
	return l
}

func (l *Leader) beacon() {
	if l.active {
		l.Node.Send(l.peers, Active{})
	}
	l.SetTimer(l.leaderTimeout.Seconds()/2, l.beacon)
}

func (l *Leader) HandleMessage(sender role.Address, msg role.Message) {
	switch m := msg.(type) {
	case Propose:
		l.handlePropose(m)
	case Adopted:
		l.handleAdopted(m)
	case Preempted:
		l.handlePreempted(m)
	}
}

func (l *Leader) handlePropose(m Propose) {
	if _, exists := l.proposals[m.Slot]; exists {
		return
	}
	switch {
	case l.active:
		l.proposals[m.Slot] = m.Proposal
		NewCommander(l.Node, l.ballotNum, m.Slot, m.Proposal, l.peers, l.acceptRetransmit, l.stats)
	case !l.scouting:
		l.scouting = true
		NewScout(l.Node, l.ballotNum, l.peers, l.prepareRetransmit, l.stats)
	default:
		// already scouting; a later re-PROPOSE from the Replica will retry
	}
}

func (l *Leader) handleAdopted(m Adopted) {
	l.scouting = false
	for slot, pv := range m.Accepted {
		l.proposals[slot] = pv.Proposal
	}
	l.active = true
	l.stats.LeaderBallot(string(l.Node.Address()), l.ballotNum.N)
}

func (l *Leader) handlePreempted(m Preempted) {
	if m.Slot == nil {
		l.scouting = false
	}
	l.active = false
	l.ballotNum = Ballot{N: m.PreemptedBy.N + 1, Leader: l.Node.Address()}
}
