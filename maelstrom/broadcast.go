package maelstrom

import (
	"context"
	"fmt"

	mnode "github.com/jepsen-io/maelstrom/demo/go"
	"go.uber.org/atomic"

	"github.com/andydunstall/rumor/pkg/broadcast"
	"github.com/andydunstall/rumor/pkg/log"
)

type broadcastBody struct {
	Message broadcast.Value `json:"message"`
}

type readOKBody struct {
	Type     string            `json:"type"`
	Messages []broadcast.Value `json:"messages"`
}

type topologyBody struct {
	Topology map[string][]string `json:"topology"`
}

// Broadcast handles the broadcast workload.
//
// The engine is created when the node is initialised, since it requires the
// node ID.
type Broadcast struct {
	node *Node

	engine *atomic.Pointer[broadcast.Engine]

	config *broadcast.Config

	logger log.Logger
}

func NewBroadcast(node *Node, config *broadcast.Config, logger log.Logger) *Broadcast {
	b := &Broadcast{
		node:   node,
		engine: atomic.NewPointer[broadcast.Engine](nil),
		config: config,
		logger: logger,
	}

	node.OnInit(b.init)
	node.Handle("broadcast", b.broadcast)
	node.Handle("read", b.read)
	node.Handle("topology", b.topology)
	node.Handle("transfer", b.transfer)

	return b
}

// Engine returns the broadcast engine, or nil if the node hasn't been
// initialised.
func (b *Broadcast) Engine() *broadcast.Engine {
	return b.engine.Load()
}

func (b *Broadcast) Close() error {
	if engine := b.engine.Load(); engine != nil {
		return engine.Close()
	}
	return nil
}

func (b *Broadcast) init() error {
	engine := broadcast.NewEngine(
		b.node.ID(),
		NewTransport(b.node),
		b.config,
		b.logger,
	)
	if !b.engine.CompareAndSwap(nil, engine) {
		return fmt.Errorf("already initialised")
	}
	engine.Start()
	return nil
}

func (b *Broadcast) broadcast(msg mnode.Message) error {
	engine, err := b.loadEngine()
	if err != nil {
		return err
	}

	var body broadcastBody
	if err := decode(msg, &body); err != nil {
		return err
	}

	if err := engine.Submit(context.Background(), body.Message); err != nil {
		return rpcError(err)
	}

	return b.node.Reply(msg, &okBody{Type: "broadcast_ok"})
}

func (b *Broadcast) read(msg mnode.Message) error {
	engine, err := b.loadEngine()
	if err != nil {
		return err
	}

	return b.node.Reply(msg, &readOKBody{
		Type:     "read_ok",
		Messages: engine.Read(),
	})
}

func (b *Broadcast) topology(msg mnode.Message) error {
	engine, err := b.loadEngine()
	if err != nil {
		return err
	}

	var body topologyBody
	if err := decode(msg, &body); err != nil {
		return err
	}

	engine.SetTopology(body.Topology)

	return b.node.Reply(msg, &okBody{Type: "topology_ok"})
}

func (b *Broadcast) transfer(msg mnode.Message) error {
	engine, err := b.loadEngine()
	if err != nil {
		return err
	}

	var body transferBody
	if err := decode(msg, &body); err != nil {
		return err
	}

	engine.Receive(msg.Src, body.Messages)

	return b.node.Reply(msg, &okBody{Type: "transfer_ok"})
}

func (b *Broadcast) loadEngine() (*broadcast.Engine, error) {
	engine := b.engine.Load()
	if engine == nil {
		return nil, mnode.NewRPCError(
			mnode.TemporarilyUnavailable, "node not initialised",
		)
	}
	return engine, nil
}
