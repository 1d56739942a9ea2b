package workload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/andydunstall/rumor/pkg/broadcast"
	"github.com/andydunstall/rumor/pkg/log"
)

func TestMissing(t *testing.T) {
	assert.Equal(t, 0, missing([]broadcast.Value{2, 0, 1}, 3))
	assert.Equal(t, 2, missing([]broadcast.Value{1, 7}, 3))
	assert.Equal(t, 3, missing(nil, 3))
}

func TestRunBroadcast_LocalCluster(t *testing.T) {
	conf := &broadcastConfig{
		LocalCluster:       3,
		Values:             50,
		Clients:            5,
		Timeout:            time.Second * 5,
		ConvergenceTimeout: time.Second * 10,
	}
	assert.NoError(t, runBroadcast(conf, log.NewNopLogger()))
}
