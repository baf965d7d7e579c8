// Package role provides the base lifecycle every Paxos role (Acceptor,
// Scout, Commander, Leader, Replica, Seed, Bootstrap, Requester) builds on:
// registration with a Node, a namespaced logger, and running-gated timers.
//
// It deliberately knows nothing about Paxos messages or the network
// transport's concrete type - only the small interface surface a role
// needs from its Node. This keeps role importable from both network
// (which implements Node) and paxos (which implements Registrant)
// without an import cycle.
package role

import (
	"github.com/go-kit/kit/log"
)

// Address names a node on the network. network.NewNode generates a
// random one when given an empty address; UDPTransport uses the address
// it is constructed with; tests often use short literals.
type Address string

// Message is deliberately untyped: the wire taxonomy lives in package
// paxos. Node and Role only need to pass values through.
type Message interface{}

// Registrant is anything a Node can dispatch messages to. A concrete
// role's HandleMessage implements the "do_<Tag>" dispatch by switching on
// the dynamic type of msg; unhandled variants are a no-op default case.
type Registrant interface {
	HandleMessage(sender Address, msg Message)
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	Cancel()
}

// Node is the subset of network.Node that a Role depends on.
type Node interface {
	Address() Address
	Register(r Registrant)
	Unregister(r Registrant)
	Send(destinations []Address, msg Message)
	SetTimer(seconds float64, callback func()) Timer
	Now() float64
	Logger() log.Logger
}

// Base is embedded by every concrete role. It self-registers on
// construction and gates timer callbacks on Running so a stopped role
// never observes a late-firing timer.
type Base struct {
	Node    Node
	Running bool
	Log     log.Logger
}

// NewBase registers self with node and returns the embeddable Base. self
// must be the concrete role embedding this Base (Go has no way for Base
// to register "itself" as the Registrant, since HandleMessage is defined
// on the embedder).
func NewBase(node Node, self Registrant, name string) *Base {
	b := &Base{
		Node:    node,
		Running: true,
		Log:     log.With(node.Logger(), "role", name),
	}
	node.Register(self)
	return b
}

// SetTimer installs a timer that only fires callback while the role is
// still running, matching the Python Role.set_timer gate.
func (b *Base) SetTimer(seconds float64, callback func()) Timer {
	return b.Node.SetTimer(seconds, func() {
		if b.Running {
			callback()
		}
	})
}

// Stop unregisters self and marks the role as no longer running. self
// must be the same value passed to NewBase.
func (b *Base) Stop(self Registrant) {
	b.Running = false
	b.Node.Unregister(self)
}
