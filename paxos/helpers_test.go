package paxos

import (
	"github.com/go-kit/kit/log"

	"github.com/quorumdb/server/role"
)

// sentMessage records one Send call observed on a recordingNode.
type sentMessage struct {
	Destinations []role.Address
	Message      role.Message
}

// recordingNode is a minimal role.Node that records every Send instead
// of delivering it anywhere, and fires timers only when the test asks
// it to. It lets a single HandleMessage call be asserted against
// exactly the outbound messages the spec says it should produce.
type recordingNode struct {
	address role.Address
	sent    []sentMessage
	timers  []*recordedTimer
	now     float64
}

type recordedTimer struct {
	seconds  float64
	callback func()
	cancelled bool
}

func (t *recordedTimer) Cancel() { t.cancelled = true }

func newRecordingNode(address role.Address) *recordingNode {
	return &recordingNode{address: address}
}

func (n *recordingNode) Address() role.Address { return n.address }
func (n *recordingNode) Register(r role.Registrant)   {}
func (n *recordingNode) Unregister(r role.Registrant) {}

func (n *recordingNode) Send(destinations []role.Address, msg role.Message) {
	n.sent = append(n.sent, sentMessage{Destinations: destinations, Message: msg})
}

func (n *recordingNode) SetTimer(seconds float64, callback func()) role.Timer {
	t := &recordedTimer{seconds: seconds, callback: callback}
	n.timers = append(n.timers, t)
	return t
}

func (n *recordingNode) Now() float64 { return n.now }

func (n *recordingNode) Logger() log.Logger { return log.NewNopLogger() }

// fireTimers invokes every still-live timer's callback once, in
// registration order - enough to drive a single retransmit tick in
// tests that care about it.
func (n *recordingNode) fireTimers() {
	live := n.timers
	n.timers = nil
	for _, t := range live {
		if !t.cancelled {
			t.callback()
		}
	}
}

var _ role.Node = (*recordingNode)(nil)
