package paxos

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/quorumdb/server/role"
)

func TestCommanderBroadcastsAcceptOnStart(t *testing.T) {
	node := newRecordingNode("leader-1")
	peers := []role.Address{"leader-1", "p2", "p3"}
	ballot := Ballot{N: 1, Leader: "leader-1"}
	proposal := Proposal{Caller: "cli", ClientID: 1, Input: "x"}

	NewCommander(node, ballot, 7, proposal, peers, time.Second, nil)

	assert.Equal(t, len(node.sent), 1)
	assert.DeepEqual(t, node.sent[0].Destinations, peers)
	assert.DeepEqual(t, node.sent[0].Message, Accept{Slot: 7, BallotNum: ballot, Proposal: proposal})
}

func TestCommanderDecidesOnQuorumAndNotifiesLeader(t *testing.T) {
	node := newRecordingNode("leader-1")
	peers := []role.Address{"leader-1", "p2", "p3"}
	ballot := Ballot{N: 1, Leader: "leader-1"}
	proposal := Proposal{Caller: "cli", ClientID: 1, Input: "x"}

	c := NewCommander(node, ballot, 7, proposal, peers, time.Second, nil)
	node.sent = nil

	c.HandleMessage("p2", Accepted{Slot: 7, BallotNum: ballot})
	assert.Equal(t, len(node.sent), 0, "no quorum yet")

	c.HandleMessage("p3", Accepted{Slot: 7, BallotNum: ballot})

	assert.Equal(t, len(node.sent), 2)
	decision := node.sent[0]
	assert.DeepEqual(t, decision.Destinations, peers)
	assert.DeepEqual(t, decision.Message, Decision{Slot: 7, Proposal: proposal})

	decided := node.sent[1]
	assert.DeepEqual(t, decided.Destinations, []role.Address{"leader-1"})
	assert.DeepEqual(t, decided.Message, Decided{Slot: 7})
	assert.Equal(t, c.Running, false)
}

func TestCommanderIgnoresAcceptedForOtherSlot(t *testing.T) {
	node := newRecordingNode("leader-1")
	peers := []role.Address{"leader-1", "p2", "p3"}
	ballot := Ballot{N: 1, Leader: "leader-1"}

	c := NewCommander(node, ballot, 7, Proposal{Input: "x"}, peers, time.Second, nil)
	node.sent = nil

	c.HandleMessage("p2", Accepted{Slot: 99, BallotNum: ballot})
	assert.Equal(t, len(node.sent), 0)
	assert.Equal(t, c.Running, true)
}

func TestCommanderPreemptedNotifiesLeaderWithSlot(t *testing.T) {
	node := newRecordingNode("leader-1")
	peers := []role.Address{"leader-1", "p2", "p3"}
	ballot := Ballot{N: 1, Leader: "leader-1"}

	c := NewCommander(node, ballot, 7, Proposal{Input: "x"}, peers, time.Second, nil)
	node.sent = nil

	higher := Ballot{N: 9, Leader: "other"}
	c.HandleMessage("p2", Accepted{Slot: 7, BallotNum: higher})

	assert.Equal(t, len(node.sent), 1)
	preempted := node.sent[0].Message.(Preempted)
	assert.Assert(t, preempted.Slot != nil && *preempted.Slot == 7)
	assert.Equal(t, preempted.PreemptedBy, higher)
	assert.Equal(t, c.Running, false)
}
