package network

import (
	"github.com/go-kit/kit/log"

	"github.com/quorumdb/server/role"
)

// Node is a single addressable endpoint on a Network. It fans incoming
// messages out to every Registrant currently registered on it and
// forwards outgoing Send/SetTimer calls back to the owning Network.
//
// All of Node's methods are only ever invoked from the Network's single
// event-loop goroutine (role construction, HandleMessage dispatch, and
// timer callbacks all run there), so the roles slice needs no locking of
// its own - see Network.Do.
type Node struct {
	address role.Address
	network *Network
	roles   []role.Registrant
	logger  log.Logger
}

var _ role.Node = (*Node)(nil)

func (n *Node) Address() role.Address { return n.address }

func (n *Node) Register(r role.Registrant) {
	n.roles = append(n.roles, r)
}

func (n *Node) Unregister(r role.Registrant) {
	for i, existing := range n.roles {
		if existing == r {
			n.roles = append(n.roles[:i], n.roles[i+1:]...)
			return
		}
	}
}

func (n *Node) Send(destinations []role.Address, msg role.Message) {
	n.network.Send(n.address, destinations, msg)
}

func (n *Node) SetTimer(seconds float64, callback func()) role.Timer {
	return n.network.SetTimer(n.address, seconds, callback)
}

func (n *Node) Now() float64 { return n.network.Now() }

func (n *Node) Logger() log.Logger { return n.logger }

// Receive dispatches msg to every role currently registered on this
// node. The roles slice is copied first so a handler that registers or
// unregisters a role mid-dispatch (Leader spawning a Scout, a Commander
// stopping itself) never mutates the slice out from under the range.
func (n *Node) Receive(sender role.Address, msg role.Message) {
	snapshot := make([]role.Registrant, len(n.roles))
	copy(snapshot, n.roles)
	for _, r := range snapshot {
		r.HandleMessage(sender, msg)
	}
}
