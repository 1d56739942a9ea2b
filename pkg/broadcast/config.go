package broadcast

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

type Config struct {
	// Interval is the rate to run anti-entropy rounds. If zero rounds are
	// only run when a value is submitted, which requires PushOnSubmit.
	Interval time.Duration `json:"interval" yaml:"interval"`

	// Jitter adds up to 10% of the interval to each round to avoid nodes
	// synchronising.
	Jitter bool `json:"jitter" yaml:"jitter"`

	// PushOnSubmit runs a round as soon as a value is submitted, before
	// acknowledging the client.
	PushOnSubmit bool `json:"push_on_submit" yaml:"push_on_submit"`

	// TransferTimeout is the timeout for each transfer RPC.
	TransferTimeout time.Duration `json:"transfer_timeout" yaml:"transfer_timeout"`

	// SubmitTimeout is the maximum duration to wait for a round to complete
	// before acknowledging a submitted value. Zero waits until the request
	// is cancelled.
	SubmitTimeout time.Duration `json:"submit_timeout" yaml:"submit_timeout"`

	// MaxTransferValues is the maximum number of values sent to a neighbour
	// in a single transfer. Zero is unlimited.
	MaxTransferValues int `json:"max_transfer_values" yaml:"max_transfer_values"`

	// MaxConcurrentTransfers is the maximum number of transfers in flight in
	// a single round. Zero is unlimited.
	MaxConcurrentTransfers int `json:"max_concurrent_transfers" yaml:"max_concurrent_transfers"`
}

func (c *Config) Validate() error {
	if c.Interval < 0 {
		return fmt.Errorf("negative interval")
	}
	if c.Interval == 0 && !c.PushOnSubmit {
		return fmt.Errorf("interval must be set unless push on submit is enabled")
	}
	if c.TransferTimeout <= 0 {
		return fmt.Errorf("missing transfer timeout")
	}
	if c.SubmitTimeout < 0 {
		return fmt.Errorf("negative submit timeout")
	}
	if c.MaxTransferValues < 0 {
		return fmt.Errorf("negative max transfer values")
	}
	if c.MaxConcurrentTransfers < 0 {
		return fmt.Errorf("negative max concurrent transfers")
	}
	return nil
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.DurationVar(
		&c.Interval,
		"broadcast.interval",
		time.Millisecond*500,
		`
The interval to run anti-entropy rounds.

Each round sends every neighbour the values it hasn't yet acknowledged.

Setting the interval to 0 disables periodic rounds, though this requires
'--broadcast.push-on-submit'. Note without periodic rounds a failed transfer
is only retried when the next value is submitted.`,
	)
	fs.BoolVar(
		&c.Jitter,
		"broadcast.jitter",
		true,
		`
Whether to add up to 10% of the interval to each round to avoid nodes
synchronising.`,
	)
	fs.BoolVar(
		&c.PushOnSubmit,
		"broadcast.push-on-submit",
		false,
		`
Whether to run a round as soon as a value is submitted, rather than waiting
for the next periodic round.

This reduces latency at the cost of more transfers.`,
	)
	fs.DurationVar(
		&c.TransferTimeout,
		"broadcast.transfer-timeout",
		time.Second,
		`
Timeout for each transfer to a neighbour. A transfer that times out is
retried in the next round.`,
	)
	fs.DurationVar(
		&c.SubmitTimeout,
		"broadcast.submit-timeout",
		time.Second*5,
		`
Maximum duration to wait for a round to complete before acknowledging a
submitted value.

If the timeout expires the request fails, though the value is still stored
and will be propagated.`,
	)
	fs.IntVar(
		&c.MaxTransferValues,
		"broadcast.max-transfer-values",
		0,
		`
Maximum number of values to send to a neighbour in a single transfer. The
rest are sent in later rounds.

0 means unlimited.`,
	)
	fs.IntVar(
		&c.MaxConcurrentTransfers,
		"broadcast.max-concurrent-transfers",
		0,
		`
Maximum number of transfers in flight during a round.

0 means unlimited.`,
	)
}
