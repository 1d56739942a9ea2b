package cli

import (
	"github.com/spf13/cobra"

	"github.com/andydunstall/rumor/cli/maelstrom"
	"github.com/andydunstall/rumor/cli/server"
	"github.com/andydunstall/rumor/cli/status"
	"github.com/andydunstall/rumor/cli/workload"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "rumor [command] (flags)",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Long: `rumor is a gossip broadcast service.

Clients submit values to any node in the cluster. Each node propagates the
values it knows to its neighbours in periodic anti-entropy rounds, so every
node eventually learns every value, even across network partitions.

Start a server node with:

  $ rumor server --cluster.node-id n1 --cluster.peers n2=10.26.104.14:8003

You can also inspect the status of the server using:

  $ rumor status values

rumor nodes can also run as Maelstrom nodes, reading and writing messages on
stdin and stdout:

  $ maelstrom test -w broadcast --bin "rumor maelstrom broadcast" --node-count 5
`,
	}

	cmd.AddCommand(server.NewCommand())
	cmd.AddCommand(maelstrom.NewCommand())
	cmd.AddCommand(status.NewCommand())
	cmd.AddCommand(workload.NewCommand())

	return cmd
}

func init() {
	cobra.EnableCommandSorting = false
}
