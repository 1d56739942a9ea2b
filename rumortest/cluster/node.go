package cluster

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/andydunstall/rumor/pkg/broadcast"
	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/server"
	"github.com/andydunstall/rumor/server/config"
)

// Node is a rumor server node listening on loopback.
type Node struct {
	server *server.Server

	cancel context.CancelFunc
	doneCh chan struct{}

	logger log.Logger
}

func newNode(nodeID string, options options) *Node {
	conf := config.Default()
	conf.Cluster.NodeID = nodeID
	conf.API.BindAddr = "127.0.0.1:0"
	conf.Admin.BindAddr = "127.0.0.1:0"
	conf.Transfer.BindAddr = "127.0.0.1:0"
	conf.Broadcast = broadcast.Config{
		Interval:        time.Millisecond * 10,
		TransferTimeout: time.Millisecond * 500,
		SubmitTimeout:   time.Second * 5,
	}
	if options.broadcastConfig != nil {
		conf.Broadcast = *options.broadcastConfig
	}
	conf.GracePeriod = time.Second

	logger := options.logger.With(zap.String("node", nodeID))
	s, err := server.NewServer(conf, logger)
	if err != nil {
		panic("server: " + err.Error())
	}

	return &Node{
		server: s,
		doneCh: make(chan struct{}),
		logger: logger,
	}
}

func (n *Node) ID() string {
	return n.server.Config().Cluster.NodeID
}

func (n *Node) APIAddr() string {
	return n.server.APIAddr()
}

func (n *Node) AdminAddr() string {
	return n.server.AdminAddr()
}

func (n *Node) TransferAddr() string {
	return n.server.TransferAddr()
}

func (n *Node) Engine() *broadcast.Engine {
	return n.server.Engine()
}

func (n *Node) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel

	go func() {
		defer close(n.doneCh)

		if err := n.server.Run(ctx); err != nil {
			n.logger.Error("failed to run server", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the node and waits for it to exit.
func (n *Node) Stop() {
	n.cancel()
	<-n.doneCh
}
