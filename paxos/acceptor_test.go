package paxos

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/quorumdb/server/role"
)

func TestAcceptorPrepareWithHigherBallotAdopts(t *testing.T) {
	node := newRecordingNode("self")
	peers := []role.Address{"self", "p2", "p3"}

	a := &Acceptor{
		peers:     peers,
		ballotNum: Ballot{N: 10, Leader: "10"},
		accepted: map[Slot]PValue{
			33: {Ballot: Ballot{N: 19, Leader: "19"}, Proposal: Proposal{Caller: "cli", ClientID: 123, Input: "INC"}},
		},
	}
	a.Base = role.NewBase(node, a, "acceptor")

	a.HandleMessage("SC", Prepare{BallotNum: Ballot{N: 19, Leader: "19"}})

	assert.Equal(t, a.ballotNum, Ballot{N: 19, Leader: "19"})
	assert.Equal(t, len(node.sent), 2)

	accepting := node.sent[0]
	assert.DeepEqual(t, accepting.Destinations, peers)
	assert.DeepEqual(t, accepting.Message, Accepting{Leader: "SC"})

	promise := node.sent[1]
	assert.DeepEqual(t, promise.Destinations, []role.Address{"SC"})
	assert.DeepEqual(t, promise.Message, Promise{
		BallotNum: Ballot{N: 19, Leader: "19"},
		Accepted:  a.accepted,
	})
}

func TestAcceptorPrepareWithLowerBallotStillReplies(t *testing.T) {
	node := newRecordingNode("self")
	a := &Acceptor{peers: []role.Address{"self"}, ballotNum: Ballot{N: 20, Leader: "x"}, accepted: map[Slot]PValue{}}
	a.Base = role.NewBase(node, a, "acceptor")

	a.HandleMessage("SC", Prepare{BallotNum: Ballot{N: 5, Leader: "y"}})

	assert.Equal(t, a.ballotNum, Ballot{N: 20, Leader: "x"})
	assert.Equal(t, len(node.sent), 1)
	assert.DeepEqual(t, node.sent[0].Message, Promise{BallotNum: Ballot{N: 20, Leader: "x"}, Accepted: a.accepted})
}

func TestAcceptorAcceptRecordsAndReplies(t *testing.T) {
	node := newRecordingNode("self")
	a := &Acceptor{peers: []role.Address{"self"}, ballotNum: NullBallot, accepted: map[Slot]PValue{}}
	a.Base = role.NewBase(node, a, "acceptor")

	prop := Proposal{Caller: "cli", ClientID: 1, Input: "x"}
	a.HandleMessage("leader", Accept{Slot: 3, BallotNum: Ballot{N: 1, Leader: "leader"}, Proposal: prop})

	assert.Equal(t, a.ballotNum, Ballot{N: 1, Leader: "leader"})
	assert.DeepEqual(t, a.accepted[3], PValue{Ballot: Ballot{N: 1, Leader: "leader"}, Proposal: prop})
	assert.Equal(t, len(node.sent), 1)
	assert.DeepEqual(t, node.sent[0].Message, Accepted{Slot: 3, BallotNum: Ballot{N: 1, Leader: "leader"}})
}

func TestAcceptorAcceptBelowBallotSignalsPreemptionViaReply(t *testing.T) {
	node := newRecordingNode("self")
	a := &Acceptor{peers: []role.Address{"self"}, ballotNum: Ballot{N: 9, Leader: "higher"}, accepted: map[Slot]PValue{}}
	a.Base = role.NewBase(node, a, "acceptor")

	a.HandleMessage("stale-leader", Accept{Slot: 3, BallotNum: Ballot{N: 1, Leader: "stale-leader"}, Proposal: Proposal{Input: "x"}})

	// ballot_num unchanged, nothing recorded - the reply ballot_num tells
	// the commander it lost the race
	assert.Equal(t, a.ballotNum, Ballot{N: 9, Leader: "higher"})
	_, ok := a.accepted[3]
	assert.Equal(t, ok, false)
	assert.DeepEqual(t, node.sent[0].Message, Accepted{Slot: 3, BallotNum: Ballot{N: 9, Leader: "higher"}})
}
