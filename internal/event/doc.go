// Package event provides a small pub/sub event bus built on watermill's
// gochannel, used to decouple the tool-orchestration loop from the
// transport connection responsible for writing notifications to the
// wire.
//
// Each connection owns one Bus. The dispatcher publishes a SessionUpdate
// event when a prompt turn finishes; the connection's subscriber callback,
// run synchronously on the dispatching goroutine, turns it into a
// session/update JSON-RPC notification and writes it.
package event
