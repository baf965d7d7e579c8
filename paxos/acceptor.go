package paxos

import "github.com/quorumdb/server/role"

// Acceptor is the Paxos acceptor state machine: a monotone ballot_num
// and the highest-ballot Proposal accepted at each slot. It runs for
// the lifetime of the node and never stops on its own.
type Acceptor struct {
	*role.Base

	peers []role.Address

	ballotNum Ballot
	accepted  map[Slot]PValue
}

// NewAcceptor constructs and registers an Acceptor on node. peers is
// the full cluster membership, including node's own address - a
// Prepare's ACCEPTING fan-out reaches every peer including self, and
// self-sends are always delivered.
func NewAcceptor(node role.Node, peers []role.Address) *Acceptor {
	a := &Acceptor{peers: peers, ballotNum: NullBallot, accepted: make(map[Slot]PValue)}
	a.Base = role.NewBase(node, a, "acceptor")
	return a
}

func (a *Acceptor) HandleMessage(sender role.Address, msg role.Message) {
	switch m := msg.(type) {
	case Prepare:
		a.handlePrepare(sender, m)
	case Accept:
		a.handleAccept(sender, m)
	}
}

func (a *Acceptor) handlePrepare(sender role.Address, m Prepare) {
	if a.ballotNum.Less(m.BallotNum) {
		a.ballotNum = m.BallotNum
		a.Node.Send(a.peers, Accepting{Leader: sender})
	}
	a.Node.Send([]role.Address{sender}, Promise{BallotNum: a.ballotNum, Accepted: a.accepted})
}

func (a *Acceptor) handleAccept(sender role.Address, m Accept) {
	if !m.BallotNum.Less(a.ballotNum) {
		a.ballotNum = m.BallotNum
		a.accepted[m.Slot] = PValue{Ballot: m.BallotNum, Proposal: m.Proposal}
	}
	a.Node.Send([]role.Address{sender}, Accepted{Slot: m.Slot, BallotNum: a.ballotNum})
}
