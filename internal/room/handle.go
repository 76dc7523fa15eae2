// Package room tracks which live connections are joined to each lecture and
// fans subtitle frames out to them. The registry and the broadcaster are the
// only cross-connection shared mutable state in the system; all mutation is
// serialized behind one mutex and all reads used for delivery are
// point-in-time snapshots, so no lock is ever held across a network send.
package room

import "context"

// Handle is one live listener endpoint joined to a lecture. A handle belongs
// to at most one room at a time and is owned by that room's registry entry
// while joined.
//
// Send must honor ctx cancellation: the broadcaster bounds every delivery
// with a per-send timeout and relies on Send returning once the deadline
// passes. All methods must be safe for concurrent use.
type Handle interface {
	// ID identifies the connection for logging. Unique per connection.
	ID() string

	// Send delivers one outbound frame. Any error marks the handle dead;
	// the broadcaster removes dead handles from the room after the fan-out.
	Send(ctx context.Context, frame any) error
}
