package maelstrom

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andydunstall/rumor/maelstrom"
	"github.com/andydunstall/rumor/pkg/broadcast"
	"github.com/andydunstall/rumor/pkg/log"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maelstrom",
		Short: "run a maelstrom node",
		Long: `Run a Maelstrom node.

Runs the node as a Maelstrom binary, reading messages from stdin and writing
messages to stdout. Logs are written to stderr.

Each workload is a separate command.

Examples:
  # Run the broadcast workload.
  maelstrom test -w broadcast --bin rumor-broadcast.sh --node-count 25 \
    --time-limit 20 --rate 100 --latency 100 --nemesis partition

  # Where rumor-broadcast.sh contains:
  exec rumor maelstrom broadcast --broadcast.interval 100ms
`,
	}

	cmd.AddCommand(newBroadcastCommand())
	cmd.AddCommand(newEchoCommand())
	cmd.AddCommand(newUniqueIDsCommand())
	cmd.AddCommand(newCounterCommand())

	return cmd
}

func newBroadcastCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "broadcast",
		Short: "run the broadcast workload",
		Long: `Run the broadcast workload.

Values are propagated to the neighbours assigned by the 'topology' message
using periodic anti-entropy rounds, so values are eventually delivered to
every node even when the network is partitioned.

Examples:
  rumor maelstrom broadcast --broadcast.interval 100ms
`,
	}

	var conf broadcast.Config
	conf.RegisterFlags(cmd.Flags())

	var logConf log.Config
	logConf.RegisterFlags(cmd.Flags())

	cmd.Run = func(cmd *cobra.Command, args []string) {
		if err := conf.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid config: broadcast: %s\n", err.Error())
			os.Exit(1)
		}

		logger := newLogger(&logConf)

		node := maelstrom.NewNode(os.Stdin, os.Stdout, logger)
		b := maelstrom.NewBroadcast(node, &conf, logger)
		defer b.Close()

		run(node, logger)
	}

	return cmd
}

func newEchoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "echo",
		Short: "run the echo workload",
	}

	var logConf log.Config
	logConf.RegisterFlags(cmd.Flags())

	cmd.Run = func(cmd *cobra.Command, args []string) {
		logger := newLogger(&logConf)

		node := maelstrom.NewNode(os.Stdin, os.Stdout, logger)
		maelstrom.NewEcho(node)

		run(node, logger)
	}

	return cmd
}

func newUniqueIDsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unique-ids",
		Short: "run the unique ID workload",
		Long: `Run the unique ID workload.

Each node allocates IDs from its own stripe, so IDs are unique across the
cluster without coordination, even when the network is partitioned.
`,
	}

	var logConf log.Config
	logConf.RegisterFlags(cmd.Flags())

	cmd.Run = func(cmd *cobra.Command, args []string) {
		logger := newLogger(&logConf)

		node := maelstrom.NewNode(os.Stdin, os.Stdout, logger)
		maelstrom.NewUniqueIDs(node)

		run(node, logger)
	}

	return cmd
}

func newCounterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "g-counter",
		Short: "run the grow-only counter workload",
		Long: `Run the grow-only counter workload.

The counter is stored in the Maelstrom 'seq-kv' service and updated using
compare-and-swap.
`,
	}

	var timeout time.Duration
	cmd.Flags().DurationVar(
		&timeout,
		"counter.timeout",
		time.Second,
		`
The timeout for each counter operation, including retries.`,
	)

	var logConf log.Config
	logConf.RegisterFlags(cmd.Flags())

	cmd.Run = func(cmd *cobra.Command, args []string) {
		logger := newLogger(&logConf)

		node := maelstrom.NewNode(os.Stdin, os.Stdout, logger)
		maelstrom.NewCounter(node, timeout, logger)

		run(node, logger)
	}

	return cmd
}

// newLogger creates a logger writing to stderr, since stdout is reserved
// for Maelstrom messages.
func newLogger(conf *log.Config) log.Logger {
	if err := conf.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: log: %s\n", err.Error())
		os.Exit(1)
	}

	logger, err := log.NewLogger(conf.Level, conf.Subsystems)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup logger: %s\n", err.Error())
		os.Exit(1)
	}
	return logger
}

func run(node *maelstrom.Node, logger log.Logger) {
	if err := node.Run(); err != nil {
		logger.Error("failed to run node", zap.Error(err))
		os.Exit(1)
	}
}
