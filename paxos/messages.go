package paxos

import "github.com/quorumdb/server/role"

// Join carries no fields; a node sends it to announce it wants to
// enter the cluster, either forming one (Seed) or catching up to an
// existing one (Bootstrap).
type Join struct{}

// Welcome answers a Join with enough state for the joiner to catch up:
// the current state-machine value, the next slot to execute, and every
// decision known so far.
type Welcome struct {
	State     interface{}
	Slot      Slot
	Decisions map[Slot]Proposal
}

// Prepare is Phase-1a: a Scout asking every Acceptor to promise not to
// accept anything below BallotNum.
type Prepare struct {
	BallotNum Ballot
}

// Promise is Phase-1b: an Acceptor's reply to Prepare, reporting its
// (possibly just-raised) ballot_num and everything it has accepted so
// far.
type Promise struct {
	BallotNum Ballot
	Accepted  map[Slot]PValue
}

// Accept is Phase-2a: a Commander asking every Acceptor to accept
// Proposal at Slot under BallotNum.
type Accept struct {
	Slot      Slot
	BallotNum Ballot
	Proposal  Proposal
}

// Accepted is Phase-2b: an Acceptor's reply to Accept.
type Accepted struct {
	Slot      Slot
	BallotNum Ballot
}

// Decision announces that Proposal has been chosen at Slot. Every
// Replica applies decisions in slot order.
type Decision struct {
	Slot     Slot
	Proposal Proposal
}

// Invoke is a client request: a Requester asking its local Replica to
// put Input through consensus on behalf of Caller/ClientID.
type Invoke struct {
	Caller   role.Address
	ClientID int
	Input    interface{}
}

// Invoked answers Invoke once the corresponding Proposal has been
// committed and executed, carrying the state machine's Output.
type Invoked struct {
	ClientID int
	Output   interface{}
}

// Propose is a Replica asking the (suspected) Leader to drive Proposal
// through consensus at Slot.
type Propose struct {
	Slot     Slot
	Proposal Proposal
}

// Adopted tells a Leader its Scout completed Phase-1: the Leader may
// now act on BallotNum, recording Accepted as its own proposals
// (without spawning Commanders for them).
type Adopted struct {
	BallotNum Ballot
	Accepted  map[Slot]PValue
}

// Accepting is an Acceptor's leader-hint broadcast on observing a
// higher Prepare: Replicas use it to retarget future Propose sends.
type Accepting struct {
	Leader role.Address
}

// Active is a Leader's liveness beacon, broadcast at roughly
// LeaderTimeout/2 while it holds an adopted ballot.
type Active struct{}

// Preempted tells a Leader that its Scout or a Commander observed a
// higher ballot. Slot is nil when a Scout (rather than a Commander at
// a specific slot) was preempted.
type Preempted struct {
	Slot        *Slot
	PreemptedBy Ballot
}

// Decided tells a Leader that its Commander for Slot reached quorum.
// The Leader has no handler for it; its proposals entry for Slot is
// kept.
type Decided struct {
	Slot Slot
}
