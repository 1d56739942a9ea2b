package maelstrom

import (
	mnode "github.com/jepsen-io/maelstrom/demo/go"
)

// Echo handles the echo workload, replying with the request body.
type Echo struct {
	node *Node
}

func NewEcho(node *Node) *Echo {
	e := &Echo{
		node: node,
	}
	node.Handle("echo", e.echo)
	return e
}

func (e *Echo) echo(msg mnode.Message) error {
	var body map[string]any
	if err := decode(msg, &body); err != nil {
		return err
	}
	body["type"] = "echo_ok"
	// msg_id is set by the reply.
	delete(body, "msg_id")

	return e.node.Reply(msg, body)
}

