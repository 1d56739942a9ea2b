package broadcast

import "context"

// Transport sends transfer RPCs to other nodes.
//
// Transfer must block until the peer acknowledges it has stored the values,
// or return an error if the RPC fails or the context is done. Any error is
// treated as a failed transfer, so the values are sent again in the next
// round.
type Transport interface {
	Transfer(ctx context.Context, peer string, values []Value) error
}
