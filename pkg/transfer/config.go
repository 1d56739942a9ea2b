package transfer

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

type Config struct {
	// BindAddr is the address to bind to listen for incoming transfers.
	BindAddr string `json:"bind_addr" yaml:"bind_addr"`

	// AdvertiseAddr is the address to advertise to other nodes.
	AdvertiseAddr string `json:"advertise_addr" yaml:"advertise_addr"`

	// Timeout is the maximum duration to read a transfer from an incoming
	// connection and write the acknowledgement.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

func (c *Config) Validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("missing bind addr")
	}
	if c.Timeout == 0 {
		return fmt.Errorf("missing timeout")
	}
	return nil
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(
		&c.BindAddr,
		"transfer.bind-addr",
		":8003",
		`
The host/port to listen for transfers from other nodes.

If the host is unspecified it defaults to all listeners, such as
'--transfer.bind-addr :8003' will listen on '0.0.0.0:8003'`,
	)
	fs.StringVar(
		&c.AdvertiseAddr,
		"transfer.advertise-addr",
		"",
		`
Transfer listen address to advertise to other nodes in the cluster.

Such as if the listen address is ':8003', the advertised address may be
'10.26.104.45:8003' or 'node1.cluster:8003'.

By default, if the bind address includes an IP to bind to that will be used.
If the bind address does not include an IP (such as ':8003') the nodes
private IP will be used.`,
	)
	fs.DurationVar(
		&c.Timeout,
		"transfer.timeout",
		time.Second*5,
		`
The timeout to read an incoming transfer and write the acknowledgement.`,
	)
}
