package paxos

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/quorumdb/server/role"
)

func TestScoutBroadcastsPrepareOnStart(t *testing.T) {
	node := newRecordingNode("leader-1")
	peers := []role.Address{"leader-1", "p2", "p3"}

	NewScout(node, Ballot{N: 1, Leader: "leader-1"}, peers, time.Second, nil)

	assert.Equal(t, len(node.sent), 1)
	assert.DeepEqual(t, node.sent[0].Destinations, peers)
	assert.DeepEqual(t, node.sent[0].Message, Prepare{BallotNum: Ballot{N: 1, Leader: "leader-1"}})
}

func TestScoutAdoptsOnQuorumAndMergesHighestBallot(t *testing.T) {
	node := newRecordingNode("leader-1")
	peers := []role.Address{"leader-1", "p2", "p3"}
	ballot := Ballot{N: 1, Leader: "leader-1"}

	s := NewScout(node, ballot, peers, time.Second, nil)
	node.sent = nil // drop the initial broadcast, only inspect post-quorum output

	low := map[Slot]PValue{5: {Ballot: Ballot{N: 0, Leader: "old"}, Proposal: Proposal{Caller: "c", ClientID: 1, Input: "a"}}}
	high := map[Slot]PValue{5: {Ballot: Ballot{N: 1, Leader: "leader-1"}, Proposal: Proposal{Caller: "c", ClientID: 1, Input: "b"}}}

	s.HandleMessage("p2", Promise{BallotNum: ballot, Accepted: low})
	assert.Equal(t, len(node.sent), 0, "no quorum yet")

	s.HandleMessage("p3", Promise{BallotNum: ballot, Accepted: high})

	assert.Equal(t, len(node.sent), 1)
	assert.DeepEqual(t, node.sent[0].Destinations, []role.Address{"leader-1"})
	adopted := node.sent[0].Message.(Adopted)
	assert.Equal(t, adopted.BallotNum, ballot)
	assert.DeepEqual(t, adopted.Accepted[5], high[5])
	assert.Equal(t, s.Running, false)
}

func TestScoutPreemptedOnHigherBallotPromise(t *testing.T) {
	node := newRecordingNode("leader-1")
	peers := []role.Address{"leader-1", "p2", "p3"}
	ballot := Ballot{N: 1, Leader: "leader-1"}

	s := NewScout(node, ballot, peers, time.Second, nil)
	node.sent = nil

	higher := Ballot{N: 5, Leader: "other"}
	s.HandleMessage("p2", Promise{BallotNum: higher, Accepted: map[Slot]PValue{}})

	assert.Equal(t, len(node.sent), 1)
	preempted := node.sent[0].Message.(Preempted)
	assert.Assert(t, preempted.Slot == nil)
	assert.Equal(t, preempted.PreemptedBy, higher)
	assert.Equal(t, s.Running, false)
}
