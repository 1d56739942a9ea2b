// Package maelstrom runs rumor workloads as a Maelstrom node, reading
// messages from stdin and writing messages to stdout.
package maelstrom

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	mnode "github.com/jepsen-io/maelstrom/demo/go"
	"go.uber.org/zap"

	"github.com/andydunstall/rumor/pkg/log"
)

// Node wraps a Maelstrom node with the handlers for one or more workloads.
type Node struct {
	node *mnode.Node

	// initHooks are called once the node ID and cluster are known.
	initHooks []func() error

	logger log.Logger
}

func NewNode(stdin io.Reader, stdout io.Writer, logger log.Logger) *Node {
	node := mnode.NewNode()
	node.Stdin = stdin
	node.Stdout = stdout

	n := &Node{
		node:   node,
		logger: logger.WithSubsystem("maelstrom"),
	}
	node.Handle("init", n.init)
	return n
}

func (n *Node) ID() string {
	return n.node.ID()
}

func (n *Node) NodeIDs() []string {
	return n.node.NodeIDs()
}

// Run processes messages until stdin is closed.
func (n *Node) Run() error {
	return n.node.Run()
}

// OnInit registers a hook to run when the node is initialised. If a hook
// fails, the node replies to the init message with an error.
func (n *Node) OnInit(f func() error) {
	n.initHooks = append(n.initHooks, f)
}

func (n *Node) Handle(typ string, h mnode.HandlerFunc) {
	n.node.Handle(typ, func(msg mnode.Message) error {
		if err := h(msg); err != nil {
			n.logger.Warn(
				"failed to handle message",
				zap.String("type", typ),
				zap.String("src", msg.Src),
				zap.Error(err),
			)
			return err
		}
		return nil
	})
}

func (n *Node) Reply(msg mnode.Message, body any) error {
	return n.node.Reply(msg, body)
}

func (n *Node) SyncRPC(ctx context.Context, dest string, body any) (mnode.Message, error) {
	return n.node.SyncRPC(ctx, dest, body)
}

func (n *Node) init(_ mnode.Message) error {
	n.logger.Info(
		"node initialised",
		zap.String("node-id", n.node.ID()),
		zap.Strings("node-ids", n.node.NodeIDs()),
	)

	for _, hook := range n.initHooks {
		if err := hook(); err != nil {
			return mnode.NewRPCError(mnode.Crash, err.Error())
		}
	}
	return nil
}

// decode unmarshals the message body, returning a malformed request error if
// the body is invalid.
func decode(msg mnode.Message, body any) error {
	if err := json.Unmarshal(msg.Body, body); err != nil {
		return mnode.NewRPCError(mnode.MalformedRequest, err.Error())
	}
	return nil
}

// rpcError maps the error onto a Maelstrom error code.
func rpcError(err error) error {
	var rpcErr *mnode.RPCError
	if errors.As(err, &rpcErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return mnode.NewRPCError(mnode.Timeout, err.Error())
	}
	return mnode.NewRPCError(mnode.TemporarilyUnavailable, err.Error())
}

type okBody struct {
	Type string `json:"type"`
}
