package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/andydunstall/rumor/pkg/broadcast"
	"github.com/andydunstall/rumor/pkg/counter"
	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/pkg/transfer"
)

type APIConfig struct {
	// BindAddr is the address to bind to listen for incoming HTTP
	// connections.
	BindAddr string `json:"bind_addr" yaml:"bind_addr"`
}

func (c *APIConfig) Validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("missing bind addr")
	}
	return nil
}

type AdminConfig struct {
	// BindAddr is the address to bind to listen for incoming HTTP
	// connections.
	BindAddr string `json:"bind_addr" yaml:"bind_addr"`
}

func (c *AdminConfig) Validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("missing bind addr")
	}
	return nil
}

type ClusterConfig struct {
	// NodeID is a unique identifier for this node in the cluster.
	NodeID string `json:"node_id" yaml:"node_id"`

	// NodeIDPrefix is a node ID prefix, where rumor will generate the rest
	// of the node ID to ensure uniqueness.
	NodeIDPrefix string `json:"node_id_prefix" yaml:"node_id_prefix"`

	// Peers contains the other nodes in the cluster, each formatted as
	// '<node ID>=<transfer addr>'.
	Peers []string `json:"peers" yaml:"peers"`

	// Neighbours contains the IDs of the nodes to propagate values to. If
	// empty, values are propagated to every peer.
	Neighbours []string `json:"neighbours" yaml:"neighbours"`
}

func (c *ClusterConfig) Validate() error {
	if c.NodeID != "" && c.NodeIDPrefix != "" {
		return fmt.Errorf("cannot specify both node ID and node ID prefix")
	}
	peers, err := c.ParsePeers()
	if err != nil {
		return err
	}
	for _, id := range c.Neighbours {
		if _, ok := peers[id]; !ok {
			return fmt.Errorf("unknown neighbour: %s", id)
		}
	}
	return nil
}

// ParsePeers returns the configured peers as a map of node ID to transfer
// address.
func (c *ClusterConfig) ParsePeers() (map[string]string, error) {
	peers := make(map[string]string, len(c.Peers))
	for _, peer := range c.Peers {
		id, addr, ok := strings.Cut(peer, "=")
		if !ok || id == "" || addr == "" {
			return nil, fmt.Errorf("invalid peer: %s: expected <node id>=<addr>", peer)
		}
		if _, ok := peers[id]; ok {
			return nil, fmt.Errorf("duplicate peer: %s", id)
		}
		peers[id] = addr
	}
	return peers, nil
}

// PeerIDs returns the sorted IDs of the configured peers.
func (c *ClusterConfig) PeerIDs() []string {
	// Peers are validated before use.
	peers, _ := c.ParsePeers()
	ids := make([]string, 0, len(peers))
	for id := range peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type Config struct {
	Broadcast broadcast.Config `json:"broadcast" yaml:"broadcast"`
	Transfer  transfer.Config  `json:"transfer" yaml:"transfer"`
	API       APIConfig        `json:"api" yaml:"api"`
	Admin     AdminConfig      `json:"admin" yaml:"admin"`
	Cluster   ClusterConfig    `json:"cluster" yaml:"cluster"`
	Counter   counter.Config   `json:"counter" yaml:"counter"`
	Log       log.Config       `json:"log" yaml:"log"`

	// GracePeriod is the duration to gracefully shutdown the server. During
	// the grace period, listeners are closed, then waits for active requests
	// to complete.
	GracePeriod time.Duration `json:"grace_period" yaml:"grace_period"`
}

func Default() *Config {
	return &Config{
		Broadcast: broadcast.Config{
			Interval:        time.Millisecond * 500,
			Jitter:          true,
			TransferTimeout: time.Second,
			SubmitTimeout:   time.Second * 5,
		},
		Transfer: transfer.Config{
			BindAddr: ":8003",
			Timeout:  time.Second * 5,
		},
		API: APIConfig{
			BindAddr: ":8001",
		},
		Admin: AdminConfig{
			BindAddr: ":8002",
		},
		Counter: counter.Config{
			Backend: counter.BackendNone,
			Key:     "counter",
			Etcd: counter.EtcdConfig{
				DialTimeout: time.Second * 5,
				Prefix:      "/rumor/",
			},
		},
		Log: log.Config{
			Level: "info",
		},
		GracePeriod: time.Minute,
	}
}

func (c *Config) Validate() error {
	if err := c.Broadcast.Validate(); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	if err := c.Transfer.Validate(); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Admin.Validate(); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	if err := c.Cluster.Validate(); err != nil {
		return fmt.Errorf("cluster: %w", err)
	}
	if err := c.Counter.Validate(); err != nil {
		return fmt.Errorf("counter: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if c.GracePeriod == 0 {
		return fmt.Errorf("missing grace period")
	}

	return nil
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	c.Broadcast.RegisterFlags(fs)
	c.Transfer.RegisterFlags(fs)

	fs.StringVar(
		&c.API.BindAddr,
		"api.bind-addr",
		":8001",
		`
The host/port to listen for client requests, such as to broadcast and read
values.

If the host is unspecified it defaults to all listeners, such as
'--api.bind-addr :8001' will listen on '0.0.0.0:8001'`,
	)

	fs.StringVar(
		&c.Admin.BindAddr,
		"admin.bind-addr",
		":8002",
		`
The host/port to listen for incoming admin connections.

If the host is unspecified it defaults to all listeners, such as
'--admin.bind-addr :8002' will listen on '0.0.0.0:8002'`,
	)

	fs.StringVar(
		&c.Cluster.NodeID,
		"cluster.node-id",
		"",
		`
A unique identifier for the node in the cluster.

By default a random ID will be generated for the node.`,
	)
	fs.StringVar(
		&c.Cluster.NodeIDPrefix,
		"cluster.node-id-prefix",
		"",
		`
A prefix for the node ID.

rumor will generate a unique random identifier for the node and append it to
the given prefix.`,
	)
	fs.StringSliceVar(
		&c.Cluster.Peers,
		"cluster.peers",
		nil,
		`
The other nodes in the cluster, each formatted as '<node id>=<transfer addr>'.

Such as '--cluster.peers n2=10.26.104.14:8003,n3=10.26.104.75:8003'.

Note the peers must use the same IDs they are configured with using
'--cluster.node-id'.`,
	)
	fs.StringSliceVar(
		&c.Cluster.Neighbours,
		"cluster.neighbours",
		nil,
		`
The IDs of the peers this node propagates values to.

By default values are propagated to every peer. The neighbours can also be
updated at runtime using the topology API.`,
	)

	c.Counter.RegisterFlags(fs)
	c.Log.RegisterFlags(fs)

	fs.DurationVar(
		&c.GracePeriod,
		"grace-period",
		time.Minute,
		`
Maximum duration after a shutdown signal is received (SIGTERM or
SIGINT) to gracefully shutdown the server node before terminating.

This includes waiting for in-progress client requests to complete.`,
	)
}
