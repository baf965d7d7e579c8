package paxos

import "github.com/quorumdb/server/role"

// Seed bootstraps a brand-new cluster: it answers JOINs from its peers
// until quorum, keeps answering stragglers for a while, then steps
// aside and joins its own cluster the same way every other node does.
type Seed struct {
	*role.Base

	cfg          *Config
	initialState interface{}
	quorum       int
	peerSet      map[role.Address]struct{}

	joined map[role.Address]struct{}
	timer  role.Timer
}

// NewSeed constructs and registers a Seed on node, seeded with
// initialState for the cluster it is about to form.
func NewSeed(node role.Node, cfg *Config, initialState interface{}) *Seed {
	peerSet := make(map[role.Address]struct{}, len(cfg.Peers))
	for _, p := range cfg.Peers {
		peerSet[p] = struct{}{}
	}
	s := &Seed{
		cfg:          cfg,
		initialState: initialState,
		quorum:       Quorum(len(cfg.Peers)),
		peerSet:      peerSet,
		joined:       make(map[role.Address]struct{}),
	}
	s.Base = role.NewBase(node, s, "seed")
	return s
}

func (s *Seed) HandleMessage(sender role.Address, msg role.Message) {
	if _, ok := msg.(Join); ok {
		s.handleJoin(sender)
	}
}

func (s *Seed) handleJoin(sender role.Address) {
	if _, ok := s.peerSet[sender]; !ok {
		return
	}
	s.joined[sender] = struct{}{}

	if len(s.joined) < s.quorum {
		return
	}
	// Only once quorum has been welcomed does a subsequent silence become
	// meaningful; arming the timer any earlier would let a slow-forming
	// cluster retire the Seed before it ever reached quorum.
	s.resetTimer()
	targets := make([]role.Address, 0, len(s.joined))
	for addr := range s.joined {
		targets = append(targets, addr)
	}
	s.Node.Send(targets, Welcome{State: s.initialState, Slot: 1, Decisions: map[Slot]Proposal{}})
}

func (s *Seed) resetTimer() {
	if s.timer != nil {
		s.timer.Cancel()
	}
	s.timer = s.SetTimer(2*s.cfg.JoinRetransmit.Seconds(), s.onSilence)
}

// onSilence fires after two join-retransmit periods without a JOIN:
// the cluster is considered formed, so this node joins it like any
// other, via a fresh Bootstrap.
func (s *Seed) onSilence() {
	s.Base.Stop(s)
	NewBootstrap(s.Node, s.cfg)
}
