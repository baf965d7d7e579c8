package paxos

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/quorumdb/server/role"
)

func TestRequesterRetransmitsUntilMatchingInvoked(t *testing.T) {
	node := newRecordingNode("F999")
	var output interface{}

	r := &Requester{clientID: 999999, input: 10, retransmit: time.Second, callback: func(o interface{}) { output = o }}
	r.Base = role.NewBase(node, r, "requester")
	r.sendInvoke()

	assert.Equal(t, len(node.sent), 1)
	assert.DeepEqual(t, node.sent[0].Destinations, []role.Address{"F999"})
	assert.DeepEqual(t, node.sent[0].Message, Invoke{Caller: "F999", ClientID: 999999, Input: 10})

	node.sent = nil
	node.fireTimers()
	assert.Equal(t, len(node.sent), 1)
	assert.DeepEqual(t, node.sent[0].Message, Invoke{Caller: "F999", ClientID: 999999, Input: 10})

	r.HandleMessage("F999", Invoked{ClientID: 333, Output: 22})
	assert.Equal(t, r.Running, true)
	assert.Assert(t, output == nil)

	r.HandleMessage("F999", Invoked{ClientID: 999999, Output: 20})
	assert.Equal(t, output, 20)
	assert.Equal(t, r.Running, false)
}

func TestRequesterClientIDsAreUniqueAndAboveTestLiterals(t *testing.T) {
	a := nextClientID()
	b := nextClientID()
	assert.Assert(t, a >= 100000)
	assert.Assert(t, b > a)
}
