package network

import "fmt"

// tagOf derives a low-cardinality metrics label from a message's
// concrete type, e.g. "paxos.Prepare". Used only for stats; never parsed
// back.
func tagOf(msg interface{}) string {
	return fmt.Sprintf("%T", msg)
}
