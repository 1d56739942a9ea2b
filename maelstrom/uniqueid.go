package maelstrom

import (
	"fmt"

	mnode "github.com/jepsen-io/maelstrom/demo/go"
	"go.uber.org/atomic"

	"github.com/andydunstall/rumor/pkg/uniqueid"
)

type generateOKBody struct {
	Type string `json:"type"`
	ID   uint64 `json:"id"`
}

// UniqueIDs handles the unique-ids workload.
type UniqueIDs struct {
	node *Node

	allocator *atomic.Pointer[uniqueid.Allocator]
}

func NewUniqueIDs(node *Node) *UniqueIDs {
	u := &UniqueIDs{
		node:      node,
		allocator: atomic.NewPointer[uniqueid.Allocator](nil),
	}
	node.OnInit(u.init)
	node.Handle("generate", u.generate)
	return u
}

func (u *UniqueIDs) init() error {
	index, ok := uniqueid.IndexOf(u.node.ID(), u.node.NodeIDs())
	if !ok {
		return fmt.Errorf("node not in cluster: %s", u.node.ID())
	}
	allocator, err := uniqueid.NewAllocator(index, len(u.node.NodeIDs()))
	if err != nil {
		return fmt.Errorf("allocator: %w", err)
	}
	u.allocator.Store(allocator)
	return nil
}

func (u *UniqueIDs) generate(msg mnode.Message) error {
	allocator := u.allocator.Load()
	if allocator == nil {
		return mnode.NewRPCError(
			mnode.TemporarilyUnavailable, "node not initialised",
		)
	}
	return u.node.Reply(msg, &generateOKBody{
		Type: "generate_ok",
		ID:   allocator.Next(),
	})
}
