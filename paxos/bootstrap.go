package paxos

import "github.com/quorumdb/server/role"

// Bootstrap joins an existing cluster: it cycles through peers sending
// JOIN, one peer per JoinRetransmit tick, until a WELCOME arrives, then
// builds the steady-state Acceptor/Replica/Leader trio and stops.
type Bootstrap struct {
	*role.Base

	cfg    *Config
	cursor int
	timer  role.Timer
}

// NewBootstrap constructs and registers a Bootstrap on node and sends
// the first JOIN.
func NewBootstrap(node role.Node, cfg *Config) *Bootstrap {
	b := &Bootstrap{cfg: cfg}
	b.Base = role.NewBase(node, b, "bootstrap")
	b.sendJoin()
	return b
}

func (b *Bootstrap) sendJoin() {
	if len(b.cfg.Peers) > 0 {
		target := b.cfg.Peers[b.cursor%len(b.cfg.Peers)]
		b.cursor++
		b.Node.Send([]role.Address{target}, Join{})
	}
	b.timer = b.SetTimer(b.cfg.JoinRetransmit.Seconds(), b.sendJoin)
}

func (b *Bootstrap) HandleMessage(sender role.Address, msg role.Message) {
	if welcome, ok := msg.(Welcome); ok {
		b.handleWelcome(welcome)
	}
}

func (b *Bootstrap) handleWelcome(w Welcome) {
	if b.timer != nil {
		b.timer.Cancel()
	}
	StartSteadyState(b.Node, b.cfg, w.State, w.Slot, w.Decisions)
	b.Base.Stop(b)
}
