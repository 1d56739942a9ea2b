package workload

import "github.com/spf13/cobra"

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workload",
		Short: "generate test workloads",
		Long: `Generate test workloads.

This tool can be used to submit values to a rumor cluster then verify every
node converges on the same set of values.

Examples:
  # Submit 1000 values to the nodes at localhost:8001 and localhost:9001.
  rumor workload broadcast --values 1000 \
    --servers http://localhost:8001,http://localhost:9001

  # Start a local cluster of 5 nodes and submit 1000 values.
  rumor workload broadcast --values 1000 --local-cluster 5
`,
	}

	cmd.AddCommand(newBroadcastCommand())

	return cmd
}
