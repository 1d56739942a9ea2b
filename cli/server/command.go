package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/hashicorp/go-sockaddr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	rumorconfig "github.com/andydunstall/rumor/pkg/config"
	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/server"
	"github.com/andydunstall/rumor/server/config"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "start a server node",
		Long: `Start a server node.

The server accepts values from clients and propagates them to the other nodes
in the cluster.

The server has three ports: an 'api' port which accepts client requests to
broadcast and read values, an 'admin' port which is used to inspect the
status of the node, and a 'transfer' port which receives values from other
nodes.

Each node must be configured with the transfer address of the other nodes in
the cluster using '--cluster.peers'. By default values are propagated to
every peer, though the neighbours can be restricted using
'--cluster.neighbours' or the topology API.

Supports both YAML configuration and command line flags. Configure a YAML file
using '--config.path'. When enabling '--config.expand-env', rumor will expand
environment variables in the loaded YAML configuration.

Examples:
  # Start a single rumor node.
  rumor server

  # Start node n1 in a cluster of three nodes.
  rumor server --cluster.node-id n1 \
    --cluster.peers n2=10.26.104.14:8003,n3=10.26.104.75:8003

  # Start a node that only propagates values to n2.
  rumor server --cluster.node-id n1 \
    --cluster.peers n2=10.26.104.14:8003,n3=10.26.104.75:8003 \
    --cluster.neighbours n2

  # Start a node with a grow-only counter stored in etcd.
  rumor server --counter.backend etcd --counter.etcd.endpoints 10.26.104.8:2379
`,
	}

	conf := config.Default()

	var configPath string
	cmd.Flags().StringVar(
		&configPath,
		"config.path",
		"",
		`
YAML config file path.`,
	)

	var configExpandEnv bool
	cmd.Flags().BoolVar(
		&configExpandEnv,
		"config.expand-env",
		false,
		`
Whether to expand environment variables in the config file.

This will replaces references to ${VAR} or $VAR with the corresponding
environment variable. The replacement is case-sensitive.

References to undefined variables will be replaced with an empty string. A
default value can be given using form ${VAR:default}.`,
	)

	// Register flags and set default values.
	conf.RegisterFlags(cmd.Flags())

	cmd.Run = func(cmd *cobra.Command, args []string) {
		if configPath != "" {
			if err := rumorconfig.Load(configPath, conf, configExpandEnv); err != nil {
				fmt.Printf("load config: %s\n", err.Error())
				os.Exit(1)
			}
		}

		if err := conf.Validate(); err != nil {
			fmt.Printf("invalid config: %s\n", err.Error())
			os.Exit(1)
		}

		logger, err := log.NewLogger(conf.Log.Level, conf.Log.Subsystems)
		if err != nil {
			fmt.Printf("failed to setup logger: %s\n", err.Error())
			os.Exit(1)
		}

		if conf.Cluster.NodeID == "" {
			nodeID := generateNodeID()
			if conf.Cluster.NodeIDPrefix != "" {
				nodeID = conf.Cluster.NodeIDPrefix + nodeID
			}
			conf.Cluster.NodeID = nodeID
		}

		if conf.Transfer.AdvertiseAddr == "" {
			advertiseAddr, err := advertiseAddrFromBindAddr(conf.Transfer.BindAddr)
			if err != nil {
				logger.Error("invalid configuration", zap.Error(err))
				os.Exit(1)
			}
			conf.Transfer.AdvertiseAddr = advertiseAddr
		}

		if err := run(conf, logger); err != nil {
			logger.Error("failed to run server", zap.Error(err))
			os.Exit(1)
		}
	}

	return cmd
}

func run(conf *config.Config, logger log.Logger) error {
	logger.Info("starting rumor server", zap.Any("conf", conf))

	s, err := server.NewServer(conf, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	return s.Run(ctx)
}

// generateNodeID generates a unique random node ID.
func generateNodeID() string {
	// Use 8 characters of a UUID, which is unique enough given the cluster
	// size.
	return uuid.New().String()[:8]
}

func advertiseAddrFromBindAddr(bindAddr string) (string, error) {
	if strings.HasPrefix(bindAddr, ":") {
		bindAddr = "0.0.0.0" + bindAddr
	}

	host, port, err := net.SplitHostPort(bindAddr)
	if err != nil {
		return "", fmt.Errorf("invalid bind addr: %s: %w", bindAddr, err)
	}

	if host == "0.0.0.0" {
		ip, err := sockaddr.GetPrivateIP()
		if err != nil {
			return "", fmt.Errorf("get interface addr: %w", err)
		}
		if ip == "" {
			return "", fmt.Errorf("no private ip found")
		}
		return ip + ":" + port, nil
	}
	return bindAddr, nil
}
