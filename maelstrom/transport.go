package maelstrom

import (
	"context"
	"fmt"

	"github.com/andydunstall/rumor/pkg/broadcast"
)

type transferBody struct {
	Type     string            `json:"type"`
	Messages []broadcast.Value `json:"messages"`
}

// Transport sends transfers as Maelstrom RPCs.
type Transport struct {
	node *Node
}

func NewTransport(node *Node) *Transport {
	return &Transport{
		node: node,
	}
}

// Transfer sends a 'transfer' RPC to the peer and waits for 'transfer_ok'.
func (t *Transport) Transfer(ctx context.Context, peer string, values []broadcast.Value) error {
	if values == nil {
		// Always send an array.
		values = []broadcast.Value{}
	}
	resp, err := t.node.SyncRPC(ctx, peer, &transferBody{
		Type:     "transfer",
		Messages: values,
	})
	if err != nil {
		return fmt.Errorf("rpc: %w", err)
	}
	if err := resp.RPCError(); err != nil {
		return fmt.Errorf("rpc: %w", err)
	}
	if resp.Type() != "transfer_ok" {
		return fmt.Errorf("unexpected response: %s", resp.Type())
	}
	return nil
}

var _ broadcast.Transport = &Transport{}
