package cluster

import (
	"github.com/andydunstall/rumor/pkg/broadcast"
	"github.com/andydunstall/rumor/pkg/log"
)

type options struct {
	broadcastConfig *broadcast.Config
	logger          log.Logger
}

type broadcastConfigOption struct {
	Config *broadcast.Config
}

func (o broadcastConfigOption) apply(opts *options) {
	opts.broadcastConfig = o.Config
}

// WithBroadcastConfig configures the broadcast engine of each node. Defaults
// to running rounds every 10ms.
func WithBroadcastConfig(config *broadcast.Config) Option {
	return broadcastConfigOption{Config: config}
}

type loggerOption struct {
	Logger log.Logger
}

func (o loggerOption) apply(opts *options) {
	opts.logger = o.Logger
}

// WithLogger configures the logger. Defaults to no output.
func WithLogger(logger log.Logger) Option {
	return loggerOption{Logger: logger}
}

type Option interface {
	apply(*options)
}
