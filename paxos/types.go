// Package paxos implements the Multi-Paxos role ensemble: Acceptor,
// Scout, Commander, Leader, Replica, Seed, Bootstrap and Requester.
// Every role embeds role.Base and is driven entirely by
// HandleMessage and timer callbacks - no role ever blocks.
//
// Grounded in Rain168-server's txnengine package, which runs the same
// shape of thing (a acceptor/proposer-style voting protocol driven by
// message handlers over a ConnectionManager) one layer up the stack;
// here the roles talk to role.Node instead of a capnproto connection.
package paxos

import "github.com/quorumdb/server/role"

// Ballot totally orders Paxos rounds: first by N, then by Leader. The
// zero value is NOT the bottom ballot - use NullBallot for that, since
// a zero role.Address is a valid (if unlikely) real address.
type Ballot struct {
	N      int
	Leader role.Address
}

// NullBallot is less than every real ballot a Leader can hold; it is
// the Acceptor's initial ballot_num.
var NullBallot = Ballot{N: -1, Leader: ""}

// Less reports whether b sorts strictly before other.
func (b Ballot) Less(other Ballot) bool {
	if b.N != other.N {
		return b.N < other.N
	}
	return b.Leader < other.Leader
}

// Proposal is one client operation put to consensus. Two Proposals are
// equal iff all three fields match structurally (Go's == suffices,
// since Input is compared by interface equality - callers whose input
// values are not comparable must not rely on duplicate detection; this
// mirrors the reference's equality-by-tuple rule).
type Proposal struct {
	Caller   role.Address // empty for a no-op catch-up filler
	ClientID int
	Input    interface{}
}

// IsNoOp reports whether p originated internally rather than from a
// Requester - such proposals never produce an INVOKED reply.
func (p Proposal) IsNoOp() bool { return p.Caller == "" }

// PValue pairs a Ballot with the Proposal an Acceptor accepted for it
// at some slot - the unit merged by a Scout and recorded by a Leader.
type PValue struct {
	Ballot   Ballot
	Proposal Proposal
}

// Slot identifies one position in the totally ordered decision log.
// Slots start at 1; 0 is never assigned.
type Slot = int

// Quorum returns the minimum number of distinct peers needed to form a
// majority of a cluster of size n (peers, not counting nobody twice).
func Quorum(n int) int {
	return n/2 + 1
}

// MergePValues implements the Paxos "keep the highest ballot" merge
// rule used by Scout.handlePromise: for every
// slot present in b, keep it unless a already holds a PValue for that
// slot with a ballot that is not lower.
func MergePValues(a, b map[Slot]PValue) map[Slot]PValue {
	merged := make(map[Slot]PValue, len(a)+len(b))
	for s, pv := range a {
		merged[s] = pv
	}
	for s, pv := range b {
		existing, ok := merged[s]
		if !ok || existing.Ballot.Less(pv.Ballot) {
			merged[s] = pv
		}
	}
	return merged
}
