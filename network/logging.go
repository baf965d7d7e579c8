package network

import "github.com/go-kit/kit/log"

// Clock is the subset of Network/UDPTransport that SimTimeLogger needs.
type Clock interface {
	Now() float64
}

// SimTimeLogger prepends a "t" field carrying the Network's own clock
// reading to every log line, in place of go-kit's usual wall-clock
// timestamp - under a simulated Network, wall time and protocol time
// have nothing to do with each other, and log lines should sort by the
// clock the protocol actually reasons about.
func SimTimeLogger(base log.Logger, clock Clock) log.Logger {
	return log.With(base, "t", log.Valuer(func() interface{} {
		return clock.Now()
	}))
}
