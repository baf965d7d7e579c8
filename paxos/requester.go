package paxos

import (
	"sync/atomic"
	"time"

	"github.com/quorumdb/server/role"
)

// clientIDSeq is a process-wide monotonic counter for Requester client
// IDs, starting well above any literal a test might hardcode.
var clientIDSeq int64 = 99999

func nextClientID() int {
	return int(atomic.AddInt64(&clientIDSeq, 1))
}

// Requester is the client-side proposal driver: it submits one INVOKE,
// retransmits until the matching INVOKED arrives, then reports the
// output to callback and stops. One Requester drives exactly one
// client operation.
type Requester struct {
	*role.Base

	clientID   int
	input      interface{}
	retransmit time.Duration
	callback   func(output interface{})

	timer role.Timer
}

// NewRequester constructs a Requester on node for input, registers it,
// and sends the first INVOKE.
func NewRequester(node role.Node, input interface{}, retransmit time.Duration, callback func(output interface{})) *Requester {
	r := &Requester{
		clientID:   nextClientID(),
		input:      input,
		retransmit: retransmit,
		callback:   callback,
	}
	r.Base = role.NewBase(node, r, "requester")
	r.sendInvoke()
	return r
}

func (r *Requester) sendInvoke() {
	self := r.Node.Address()
	r.Node.Send([]role.Address{self}, Invoke{Caller: self, ClientID: r.clientID, Input: r.input})
	r.timer = r.SetTimer(r.retransmit.Seconds(), r.sendInvoke)
}

func (r *Requester) HandleMessage(sender role.Address, msg role.Message) {
	invoked, ok := msg.(Invoked)
	if !ok || invoked.ClientID != r.clientID {
		return
	}
	if r.timer != nil {
		r.timer.Cancel()
	}
	r.Base.Stop(r)
	r.callback(invoked.Output)
}
