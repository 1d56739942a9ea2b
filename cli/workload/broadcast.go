package workload

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andydunstall/rumor/pkg/broadcast"
	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/rumortest/cluster"
	"github.com/andydunstall/rumor/status/client"
)

type broadcastConfig struct {
	Servers            []string
	LocalCluster       int
	Values             int
	Clients            int
	Timeout            time.Duration
	ConvergenceTimeout time.Duration
	Log                log.Config
}

func (c *broadcastConfig) Validate() error {
	if len(c.Servers) == 0 && c.LocalCluster == 0 {
		return fmt.Errorf("missing servers")
	}
	for _, s := range c.Servers {
		if _, err := url.Parse(s); err != nil {
			return fmt.Errorf("invalid server url: %s: %w", s, err)
		}
	}
	if c.LocalCluster < 0 {
		return fmt.Errorf("negative local cluster size")
	}
	if c.Values <= 0 {
		return fmt.Errorf("values must be positive")
	}
	if c.Clients <= 0 {
		return fmt.Errorf("clients must be positive")
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func newBroadcastCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "broadcast",
		Short: "submit values and verify convergence",
		Long: `Submit values and verify convergence.

Submits the configured number of unique values, spread evenly across the
servers, then waits for every server to return every submitted value.

Values that time out waiting for a round are still counted, since a timed out
value may still be propagated.

Examples:
  # Submit 1000 values using 10 concurrent clients.
  rumor workload broadcast --values 1000 --clients 10

  # Start a local cluster of 5 nodes and submit 1000 values.
  rumor workload broadcast --values 1000 --local-cluster 5
`,
	}

	var conf broadcastConfig

	cmd.Flags().StringSliceVar(
		&conf.Servers,
		"servers",
		[]string{"http://localhost:8001"},
		`
rumor server URLs. Each URL should point to a server API port.`,
	)
	cmd.Flags().IntVar(
		&conf.LocalCluster,
		"local-cluster",
		0,
		`
Starts a local cluster with the given number of nodes and submits values to
those nodes instead of '--servers'.`,
	)
	cmd.Flags().IntVar(
		&conf.Values,
		"values",
		1000,
		`
The number of values to submit.`,
	)
	cmd.Flags().IntVar(
		&conf.Clients,
		"clients",
		10,
		`
The number of concurrent clients submitting values.`,
	)
	cmd.Flags().DurationVar(
		&conf.Timeout,
		"timeout",
		time.Second*10,
		`
Timeout for each request.`,
	)
	cmd.Flags().DurationVar(
		&conf.ConvergenceTimeout,
		"convergence-timeout",
		time.Second*30,
		`
Maximum duration to wait for every server to return every value.`,
	)
	conf.Log.RegisterFlags(cmd.Flags())

	cmd.Run = func(cmd *cobra.Command, args []string) {
		if err := conf.Validate(); err != nil {
			fmt.Printf("invalid config: %s\n", err.Error())
			os.Exit(1)
		}

		logger, err := log.NewLogger(conf.Log.Level, conf.Log.Subsystems)
		if err != nil {
			fmt.Printf("failed to setup logger: %s\n", err.Error())
			os.Exit(1)
		}

		if err := runBroadcast(&conf, logger); err != nil {
			logger.Error("workload failed", zap.Error(err))
			os.Exit(1)
		}
	}

	return cmd
}

func runBroadcast(conf *broadcastConfig, logger log.Logger) error {
	servers := conf.Servers
	if conf.LocalCluster > 0 {
		c := cluster.NewCluster(conf.LocalCluster, cluster.WithLogger(logger))
		defer c.Close()

		servers = nil
		for _, node := range c.Nodes() {
			servers = append(servers, "http://"+node.APIAddr())
		}
	}

	var clients []*client.APIClient
	for _, s := range servers {
		// The URLs have already been validated in conf.
		u, _ := url.Parse(s)
		c := client.NewAPIClient(u)
		defer c.Close()
		clients = append(clients, c)
	}

	logger.Info(
		"submitting values",
		zap.Strings("servers", servers),
		zap.Int("values", conf.Values),
		zap.Int("clients", conf.Clients),
	)

	start := time.Now()

	failed := atomic.NewInt64(0)

	g := new(errgroup.Group)
	g.SetLimit(conf.Clients)
	for i := 0; i != conf.Values; i++ {
		c := clients[i%len(clients)]
		v := broadcast.Value(i)
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), conf.Timeout)
			defer cancel()

			if err := c.Broadcast(ctx, v); err != nil {
				// The value is stored even if the round timed out.
				logger.Warn("failed to broadcast", zap.Int64("value", int64(v)), zap.Error(err))
				failed.Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info(
		"submitted values",
		zap.Duration("duration", time.Since(start)),
		zap.Int64("failed", failed.Load()),
	)

	return waitForConvergence(clients, conf.Values, conf.ConvergenceTimeout, logger)
}

// waitForConvergence waits for every server to return values 0 to count-1.
func waitForConvergence(
	clients []*client.APIClient,
	count int,
	timeout time.Duration,
	logger log.Logger,
) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()

	ticker := time.NewTicker(time.Millisecond * 100)
	defer ticker.Stop()

	for {
		converged := 0
		for _, c := range clients {
			values, err := c.Read(ctx)
			if err != nil {
				logger.Warn("failed to read", zap.Error(err))
				continue
			}
			if missing(values, count) == 0 {
				converged++
			}
		}
		if converged == len(clients) {
			logger.Info(
				"converged",
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("not converged: %d/%d servers", converged, len(clients))
		}
	}
}

// missing returns the number of values 0 to count-1 not in values.
func missing(values []broadcast.Value, count int) int {
	seen := make(map[broadcast.Value]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	n := 0
	for i := 0; i != count; i++ {
		if _, ok := seen[broadcast.Value(i)]; !ok {
			n++
		}
	}
	return n
}
