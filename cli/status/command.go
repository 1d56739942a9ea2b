package status

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	yaml "github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/andydunstall/rumor/status/client"
	"github.com/andydunstall/rumor/status/config"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "inspect server status",
		Long: `Inspect server status.

Each rumor server exposes a status API to inspect the state of the node, this
can be used to answer questions such as:
* What values does this node know?
* How many values has each neighbour acknowledged?
* What are this nodes neighbours?
* How many rounds has this node completed?

See 'status --help' for the availale commands.

Examples:
  # Inspect the values known by the node.
  rumor status values

  # Inspect the neighbour cursors.
  rumor status cursors

  # Inspect the status of server 10.26.104.56:8002.
  rumor status topology --server.url http://10.26.104.56:8002
`,
	}

	cmd.AddCommand(newValuesCommand())
	cmd.AddCommand(newCursorsCommand())
	cmd.AddCommand(newTopologyCommand())
	cmd.AddCommand(newGenerationCommand())

	return cmd
}

type valuesOutput struct {
	Count  int     `json:"count"`
	Values []int64 `json:"values"`
}

func newValuesCommand() *cobra.Command {
	return newStatusCommand(
		"values",
		"inspect known values",
		`Inspect known values.

Queries the server for the values it knows, in the order they were learned.

Examples:
  rumor status values
`,
		func(ctx context.Context, c *client.Client) (any, error) {
			values, err := c.Values(ctx)
			if err != nil {
				return nil, err
			}
			output := valuesOutput{
				Count:  len(values),
				Values: make([]int64, 0, len(values)),
			}
			for _, v := range values {
				output.Values = append(output.Values, int64(v))
			}
			return output, nil
		},
	)
}

type cursorsOutput struct {
	Cursors map[string]int `json:"cursors"`
}

func newCursorsCommand() *cobra.Command {
	return newStatusCommand(
		"cursors",
		"inspect neighbour cursors",
		`Inspect neighbour cursors.

Queries the server for the number of values each neighbour has acknowledged.
A neighbour whose cursor is behind the number of known values has values
pending.

Examples:
  rumor status cursors
`,
		func(ctx context.Context, c *client.Client) (any, error) {
			cursors, err := c.Cursors(ctx)
			if err != nil {
				return nil, err
			}
			return cursorsOutput{Cursors: cursors}, nil
		},
	)
}

func newTopologyCommand() *cobra.Command {
	return newStatusCommand(
		"topology",
		"inspect node neighbours",
		`Inspect node neighbours.

Queries the server for its node ID and the neighbours it propagates values
to.

Examples:
  rumor status topology
`,
		func(ctx context.Context, c *client.Client) (any, error) {
			return c.Topology(ctx)
		},
	)
}

type generationOutput struct {
	Generation uint64 `json:"generation"`
}

func newGenerationCommand() *cobra.Command {
	return newStatusCommand(
		"generation",
		"inspect completed rounds",
		`Inspect completed rounds.

Queries the server for the number of anti-entropy rounds it has completed.

Examples:
  rumor status generation
`,
		func(ctx context.Context, c *client.Client) (any, error) {
			generation, err := c.Generation(ctx)
			if err != nil {
				return nil, err
			}
			return generationOutput{Generation: generation}, nil
		},
	)
}

func newStatusCommand(
	use string,
	short string,
	long string,
	query func(ctx context.Context, c *client.Client) (any, error),
) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
	}

	var conf config.Config
	conf.RegisterFlags(cmd.Flags())

	var timeout time.Duration
	cmd.Flags().DurationVar(
		&timeout,
		"timeout",
		time.Second*10,
		`
Timeout querying the server.`,
	)

	cmd.Run = func(cmd *cobra.Command, args []string) {
		if err := conf.Validate(); err != nil {
			fmt.Printf("invalid config: %s\n", err.Error())
			os.Exit(1)
		}

		// The URL has already been validated in conf.
		url, _ := url.Parse(conf.Server.URL)
		c := client.NewClient(url)
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		output, err := query(ctx, c)
		if err != nil {
			fmt.Printf("failed to get %s: %s\n", use, err.Error())
			os.Exit(1)
		}

		b, _ := yaml.Marshal(output)
		fmt.Println(string(b))
	}

	return cmd
}
