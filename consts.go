// Package server holds the constants used across
// the consensus stack: network transport, the Paxos role ensemble, and the
// client-facing Member facade.
package server

import "time"

const (
	ServerVersion = "dev"

	// Retransmission and liveness periods. Defaults mirror the values used
	// throughout the reference implementation's test suite.
	JoinRetransmit    = 700 * time.Millisecond
	AcceptRetransmit  = time.Second
	PrepareRetransmit = time.Second
	InvokeRetransmit  = time.Second
	LeaderTimeout     = time.Second

	// DefaultPrometheusPort is used by the CLI when -prometheus-port is
	// left unset and metrics are enabled.
	DefaultPrometheusPort = 9721

	// HttpProfilePort mirrors the teacher's debug pprof port number. No
	// command in this module serves pprof on it.
	HttpProfilePort = 6060
)
