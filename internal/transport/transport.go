// Package transport owns connection lifecycle for the two ways the agent
// can be reached: a single stdio session for the process lifetime, or a
// TCP listener handing each accepted connection its own session
// pipeline. Both modes speak the same newline-delimited JSON-RPC framing
// via internal/protocol.Codec and dispatch through a shared
// internal/agentcore.Agent.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/grokacp/grokacp/internal/agentcore"
	"github.com/grokacp/grokacp/internal/event"
	"github.com/grokacp/grokacp/internal/logging"
	"github.com/grokacp/grokacp/internal/protocol"
)

// ServeStdio runs one connection pipeline over r/w for the process
// lifetime. It returns when r reaches EOF, or when ctx is found cancelled
// before the next request is read; a read already waiting on r is not
// interrupted by cancellation.
func ServeStdio(ctx context.Context, agent *agentcore.Agent, r io.Reader, w io.Writer) error {
	return serveConn(ctx, agent, r, w)
}

// ServeTCP accepts connections on ln until ctx is cancelled, handling
// each on its own goroutine against the same agent.
func ServeTCP(ctx context.Context, agent *agentcore.Agent, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("accept: %w", err)
		}

		go func() {
			defer conn.Close()
			logging.Info().Str("remote", conn.RemoteAddr().String()).Msg("connection accepted")
			if err := serveConn(ctx, agent, conn, conn); err != nil && err != io.EOF {
				logging.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("connection closed with error")
			}
		}()
	}
}

// serveConn runs the read-dispatch-write loop for one connection. A
// connection-scoped event bus decouples session/update emission (which
// happens mid-dispatch, inside the tool-orchestration loop's caller) from
// the codec write -- the same decoupling the teacher's SSE handlers use
// for HTTP, here feeding a single output stream instead of many.
func serveConn(ctx context.Context, agent *agentcore.Agent, r io.Reader, w io.Writer) error {
	codec := protocol.NewCodec(r, w)
	bus := event.NewBus()
	defer bus.Close()

	unsubscribe := bus.Subscribe(event.SessionUpdate, func(e event.Event) {
		data, ok := e.Data.(event.SessionUpdateData)
		if !ok {
			return
		}
		notification := protocol.NewAgentMessageChunkNotification(data.SessionID, data.Text)
		if err := codec.WriteNotification(protocol.NotificationSessionUpdate, notification); err != nil {
			logging.Warn().Err(err).Msg("failed to write session/update notification")
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := codec.ReadRequest()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			logging.Warn().Err(err).Msg("malformed JSON-RPC message, skipping")
			continue
		}

		resp := func() (resp *protocol.Response) {
			defer func() {
				if r := recover(); r != nil {
					logging.Error().Interface("panic", r).Str("method", req.Method).Msg("recovered from panic handling request")
					if !req.IsNotification() {
						resp = protocol.NewErrorResponse(req.ID, protocol.ErrCodeInternal, fmt.Sprintf("internal error: %v", r))
					}
				}
			}()
			return agent.Handle(ctx, req, bus)
		}()

		if resp == nil {
			continue
		}
		if err := codec.WriteResponse(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}

// ListenTCP is a thin wrapper so callers don't need net imports just to
// bind an address.
func ListenTCP(address string) (net.Listener, error) {
	return net.Listen("tcp", address)
}
