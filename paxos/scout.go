package paxos

import (
	"time"

	"github.com/quorumdb/server/role"
	"github.com/quorumdb/server/stats"
)

// Scout runs Phase-1 of a ballot on behalf of the Leader that spawned
// it. It is one-shot: it reports ADOPTED or PREEMPTED to its own node
// (where the Leader lives) exactly once, then stops.
type Scout struct {
	*role.Base

	ballotNum  Ballot
	peers      []role.Address
	quorum     int
	retransmit time.Duration
	stats      stats.Recorder
	started    float64

	promised map[role.Address]struct{}
	accepted map[Slot]PValue
	timer    role.Timer
}

// NewScout constructs a Scout for ballotNum, registers it on node, and
// immediately broadcasts the first PREPARE.
func NewScout(node role.Node, ballotNum Ballot, peers []role.Address, retransmit time.Duration, recorder stats.Recorder) *Scout {
	if recorder == nil {
		recorder = stats.Noop{}
	}
	s := &Scout{
		ballotNum:  ballotNum,
		peers:      peers,
		quorum:     Quorum(len(peers)),
		retransmit: retransmit,
		stats:      recorder,
		promised:   make(map[role.Address]struct{}),
		accepted:   make(map[Slot]PValue),
	}
	s.Base = role.NewBase(node, s, "scout")
	s.started = node.Now()
	s.sendPrepare()
	return s
}

func (s *Scout) sendPrepare() {
	s.Node.Send(s.peers, Prepare{BallotNum: s.ballotNum})
	s.timer = s.SetTimer(s.retransmit.Seconds(), s.sendPrepare)
}

func (s *Scout) HandleMessage(sender role.Address, msg role.Message) {
	if promise, ok := msg.(Promise); ok {
		s.handlePromise(sender, promise)
	}
}

func (s *Scout) handlePromise(sender role.Address, m Promise) {
	if m.BallotNum != s.ballotNum {
		// Acceptor ballots only increase, so this is necessarily higher.
		s.stats.ScoutPreempted()
		s.notifyLeader(Preempted{Slot: nil, PreemptedBy: m.BallotNum})
		s.stop()
		return
	}

	s.accepted = MergePValues(s.accepted, m.Accepted)
	s.promised[sender] = struct{}{}
	if len(s.promised) >= s.quorum {
		s.stats.ScoutLatencySeconds(s.Node.Now() - s.started)
		s.notifyLeader(Adopted{BallotNum: s.ballotNum, Accepted: s.accepted})
		s.stop()
	}
}

func (s *Scout) notifyLeader(msg role.Message) {
	s.Node.Send([]role.Address{s.Node.Address()}, msg)
}

func (s *Scout) stop() {
	if s.timer != nil {
		s.timer.Cancel()
	}
	s.Base.Stop(s)
}
