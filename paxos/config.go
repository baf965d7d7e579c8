package paxos

import (
	"time"

	"github.com/quorumdb/server/role"
	"github.com/quorumdb/server/stats"
)

// Config bundles everything a Seed or Bootstrap needs to hand off to
// the steady-state Acceptor/Replica/Leader trio once a cluster has
// either formed or been joined, so neither role has to thread a dozen
// constructor parameters by hand.
type Config struct {
	Peers   []role.Address
	Execute ExecuteFunc

	JoinRetransmit    time.Duration
	PrepareRetransmit time.Duration
	AcceptRetransmit  time.Duration
	InvokeRetransmit  time.Duration
	LeaderTimeout     time.Duration

	Stats stats.Recorder
}

// Recorder returns c.Stats, defaulting to stats.Noop{} when unset, so
// every constructor that takes a recorder can be called without a nil
// check of its own.
func (c *Config) Recorder() stats.Recorder {
	if c.Stats == nil {
		return stats.Noop{}
	}
	return c.Stats
}

// StartSteadyState constructs the Acceptor, Replica and Leader that run
// for the lifetime of node, seeded with the given state/slot/decisions
// (a fresh cluster uses slot 1 and empty decisions; a joiner uses
// whatever its Welcome carried).
func StartSteadyState(node role.Node, cfg *Config, state interface{}, slot Slot, decisions map[Slot]Proposal) (*Acceptor, *Replica, *Leader) {
	acceptor := NewAcceptor(node, cfg.Peers)
	replica := NewReplica(node, cfg.Peers, state, slot, decisions, cfg.Execute, cfg.LeaderTimeout, cfg.Recorder())
	leader := NewLeader(node, cfg.Peers, cfg.PrepareRetransmit, cfg.AcceptRetransmit, cfg.LeaderTimeout, cfg.Recorder())
	return acceptor, replica, leader
}
