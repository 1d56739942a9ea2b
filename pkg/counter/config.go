package counter

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

const (
	BackendNone = "none"
	BackendEtcd = "etcd"
)

type EtcdConfig struct {
	// Endpoints is the list of etcd endpoints.
	Endpoints []string `json:"endpoints" yaml:"endpoints"`

	// DialTimeout is the timeout to connect to etcd.
	DialTimeout time.Duration `json:"dial_timeout" yaml:"dial_timeout"`

	// Prefix is prepended to every key.
	Prefix string `json:"prefix" yaml:"prefix"`
}

type Config struct {
	// Backend is the store holding the counter. Either 'none', which
	// disables the counter, or 'etcd'.
	Backend string `json:"backend" yaml:"backend"`

	// Key is the key of the counter.
	Key string `json:"key" yaml:"key"`

	Etcd EtcdConfig `json:"etcd" yaml:"etcd"`
}

func (c *Config) Enabled() bool {
	return c.Backend != BackendNone
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendNone:
		return nil
	case BackendEtcd:
		if len(c.Etcd.Endpoints) == 0 {
			return fmt.Errorf("missing etcd endpoints")
		}
		if c.Etcd.DialTimeout == 0 {
			return fmt.Errorf("missing etcd dial timeout")
		}
	default:
		return fmt.Errorf("unsupported backend: %s", c.Backend)
	}
	if c.Key == "" {
		return fmt.Errorf("missing key")
	}
	return nil
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(
		&c.Backend,
		"counter.backend",
		BackendNone,
		`
The store holding the grow-only counter.

Supports 'none', which disables the counter API, and 'etcd'.`,
	)
	fs.StringVar(
		&c.Key,
		"counter.key",
		"counter",
		`
The key of the counter in the store.`,
	)
	fs.StringSliceVar(
		&c.Etcd.Endpoints,
		"counter.etcd.endpoints",
		nil,
		`
The etcd endpoints, such as '--counter.etcd.endpoints 10.26.104.14:2379'.`,
	)
	fs.DurationVar(
		&c.Etcd.DialTimeout,
		"counter.etcd.dial-timeout",
		time.Second*5,
		`
Timeout connecting to etcd.`,
	)
	fs.StringVar(
		&c.Etcd.Prefix,
		"counter.etcd.prefix",
		"/rumor/",
		`
Prefix prepended to the counter key in etcd.`,
	)
}
