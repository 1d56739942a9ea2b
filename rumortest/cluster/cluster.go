// Package cluster runs a local cluster of rumor nodes for testing.
package cluster

import (
	"fmt"

	"github.com/andydunstall/rumor/pkg/log"
)

// Cluster is a full mesh of rumor nodes, where every node propagates values
// to every other node.
type Cluster struct {
	nodes []*Node
}

// NewCluster starts a cluster with the given number of nodes, with IDs
// 'n0', 'n1', ...
func NewCluster(size int, opts ...Option) *Cluster {
	options := options{
		logger: log.NewNopLogger(),
	}
	for _, o := range opts {
		o.apply(&options)
	}

	var nodes []*Node
	for i := 0; i != size; i++ {
		nodes = append(nodes, newNode(fmt.Sprintf("n%d", i), options))
	}

	// Nodes must know every peer before starting.
	for _, node := range nodes {
		for _, peer := range nodes {
			if node != peer {
				node.server.AddPeer(peer.ID(), peer.TransferAddr())
			}
		}
	}
	for _, node := range nodes {
		node.Start()
	}

	return &Cluster{
		nodes: nodes,
	}
}

func (c *Cluster) Nodes() []*Node {
	return append([]*Node(nil), c.nodes...)
}

func (c *Cluster) Close() {
	for _, node := range c.nodes {
		node.Stop()
	}
}
