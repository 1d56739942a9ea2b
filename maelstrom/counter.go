package maelstrom

import (
	"context"
	"time"

	mnode "github.com/jepsen-io/maelstrom/demo/go"

	"github.com/andydunstall/rumor/pkg/counter"
	"github.com/andydunstall/rumor/pkg/log"
)

const (
	counterKey = "counter"
)

type addBody struct {
	Delta uint64 `json:"delta"`
}

type counterReadOKBody struct {
	Type  string `json:"type"`
	Value uint64 `json:"value"`
}

// Counter handles the g-counter workload, storing the counter in the
// Maelstrom 'seq-kv' service.
type Counter struct {
	node *Node

	counter *counter.Counter

	timeout time.Duration
}

func NewCounter(node *Node, timeout time.Duration, logger log.Logger) *Counter {
	c := &Counter{
		node:    node,
		counter: counter.NewCounter(NewSeqKV(node), counterKey, logger),
		timeout: timeout,
	}
	node.Handle("add", c.add)
	node.Handle("read", c.read)
	return c
}

func (c *Counter) add(msg mnode.Message) error {
	var body addBody
	if err := decode(msg, &body); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.counter.Add(ctx, body.Delta); err != nil {
		return rpcError(err)
	}

	return c.node.Reply(msg, &okBody{Type: "add_ok"})
}

func (c *Counter) read(msg mnode.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	value, err := c.counter.Read(ctx)
	if err != nil {
		return rpcError(err)
	}

	return c.node.Reply(msg, &counterReadOKBody{
		Type:  "read_ok",
		Value: value,
	})
}
