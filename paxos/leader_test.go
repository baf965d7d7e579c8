package paxos

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/quorumdb/server/role"
	"github.com/quorumdb/server/stats"
)

func TestLeaderPreemptedFromCommanderRaisesBallotAndGoesInactive(t *testing.T) {
	node := newRecordingNode("F999")
	peers := []role.Address{"F999", "p2", "p3"}

	l := NewLeader(node, peers, time.Second, time.Second, time.Second, stats.Noop{})
	assert.Equal(t, l.ballotNum, Ballot{N: 0, Leader: "F999"})

	l.HandleMessage("F999", Adopted{BallotNum: l.ballotNum, Accepted: map[Slot]PValue{}})
	assert.Equal(t, l.active, true)

	slot := 10
	p1 := Proposal{Caller: "cli", ClientID: 1, Input: "x"}
	l.HandleMessage("replica", Propose{Slot: slot, Proposal: p1})
	assert.DeepEqual(t, l.proposals[slot], p1)

	l.HandleMessage("F999", Preempted{Slot: &slot, PreemptedBy: Ballot{N: 22, Leader: "XXXX"}})

	assert.Equal(t, l.ballotNum, Ballot{N: 23, Leader: "F999"})
	assert.Equal(t, l.active, false)
	assert.Equal(t, l.scouting, false)
}

func TestLeaderIgnoresProposeForSlotAlreadyHeld(t *testing.T) {
	node := newRecordingNode("F999")
	peers := []role.Address{"F999", "p2", "p3"}
	l := NewLeader(node, peers, time.Second, time.Second, time.Second, stats.Noop{})
	l.HandleMessage("F999", Adopted{BallotNum: l.ballotNum, Accepted: map[Slot]PValue{}})

	p1 := Proposal{Caller: "cli", ClientID: 1, Input: "x"}
	l.HandleMessage("replica", Propose{Slot: 1, Proposal: p1})
	sentBefore := len(node.sent)

	p2 := Proposal{Caller: "cli", ClientID: 2, Input: "y"}
	l.HandleMessage("replica", Propose{Slot: 1, Proposal: p2})

	assert.Equal(t, len(node.sent), sentBefore)
	assert.DeepEqual(t, l.proposals[1], p1)
}

func TestLeaderSpawnsScoutOnFirstProposeWhileInactive(t *testing.T) {
	node := newRecordingNode("F999")
	peers := []role.Address{"F999", "p2", "p3"}
	l := NewLeader(node, peers, time.Second, time.Second, time.Second, stats.Noop{})
	node.sent = nil

	l.HandleMessage("replica", Propose{Slot: 1, Proposal: Proposal{Input: "x"}})
	assert.Equal(t, l.scouting, true)

	var sawPrepare bool
	for _, sm := range node.sent {
		if _, ok := sm.Message.(Prepare); ok {
			sawPrepare = true
		}
	}
	assert.Assert(t, sawPrepare)
}
