// Package relay defines the narrow outbound publishing seam spec.md §1's
// "brain mode" would eventually consume (C25). Only the publisher is shipped
// here — the gateway/router/rate-limiter/replay-buffer on the other end of
// the socket is explicitly out of scope.
package relay

import "context"

// Publisher fans discovery events out to whatever is listening on the other
// end of a configured transport. Every implementation must be best-effort:
// callers never treat a Publish failure as fatal.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// NullRelay is the default Publisher: every call succeeds and does nothing.
// Used whenever no relay transport is configured, so callers never need to
// nil-check before calling Publish.
type NullRelay struct{}

func (NullRelay) Publish(context.Context, string, any) error { return nil }
